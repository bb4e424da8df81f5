package entities

// Document is the primitive representation of a written source.
type Document struct {
	Metadata
	Title        string   `json:"title,omitempty"`
	DocumentType string   `json:"documentType,omitempty"`
	Date         Datable  `json:"date,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Links        []string `json:"links,omitempty"`
}

func (*Document) Kind() Kind {
	return KindDocument
}

// EMWDocument is the "emw" project variation of Document.
type EMWDocument struct {
	Document
	Genres   []string `json:"genres,omitempty"`
	Language string   `json:"language,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
}

func (*EMWDocument) Kind() Kind {
	return KindEMWDocument
}
