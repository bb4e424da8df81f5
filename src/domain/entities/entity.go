package entities

// Kind identifies one member of the closed set of storable types. The value
// doubles as the internal type name used for graph labels and property
// prefixes, so it never changes once data has been written.
type Kind string

const (
	KindPerson       Kind = "person"
	KindDocument     Kind = "document"
	KindEMWPerson    Kind = "emwperson"
	KindEMWDocument  Kind = "emwdocument"
	KindUser         Kind = "user"
	KindRelationType Kind = "relationtype"
	KindRelation     Kind = "relation"
)

func (k Kind) String() string {
	return string(k)
}

// Entity is anything the storage layer can persist: a domain entity, a
// system entity or a relation. Implementations are pointers to the concrete
// structs in this package.
type Entity interface {
	Kind() Kind
	Meta() *Metadata
}

// Metadata carries the administrative fields shared by every stored
// entity. Embed it by value; the pointer receiver on Meta() makes the
// embedding struct satisfy Entity.
type Metadata struct {
	ID       string `json:"id"`
	Rev      int    `json:"rev"`
	PID      string `json:"pid,omitempty"`
	Created  Change `json:"created"`
	Modified Change `json:"modified"`
}

func (m *Metadata) Meta() *Metadata {
	return m
}

// Persistent reports whether the entity has been published under a
// persistent identifier.
func (m *Metadata) Persistent() bool {
	return m.PID != ""
}
