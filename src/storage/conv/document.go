package conv

import (
	"archivum/src/domain/entities"
	"archivum/src/graph"
)

var (
	documentTitle    = PropertyName(entities.KindDocument, "title")
	documentDocType  = PropertyName(entities.KindDocument, "documentType")
	documentDate     = PropertyName(entities.KindDocument, "date")
	documentKeywords = PropertyName(entities.KindDocument, "keywords")
	documentLinks    = PropertyName(entities.KindDocument, "links")

	emwDocumentGenres   = PropertyName(entities.KindEMWDocument, "genres")
	emwDocumentLanguage = PropertyName(entities.KindEMWDocument, "language")
	emwDocumentAbstract = PropertyName(entities.KindEMWDocument, "abstract")
)

type documentConverter struct{}

func (documentConverter) Kind() entities.Kind {
	return entities.KindDocument
}

func (documentConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	d, ok := e.(*entities.Document)
	if !ok {
		return nil, typeMismatch(entities.KindDocument, e)
	}
	props := graph.Properties{}
	putString(props, documentTitle, d.Title)
	putString(props, documentDocType, d.DocumentType)
	putString(props, documentDate, d.Date.String())
	putStrings(props, documentKeywords, d.Keywords)
	putStrings(props, documentLinks, d.Links)
	return props, nil
}

func (documentConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	d, ok := e.(*entities.Document)
	if !ok {
		return typeMismatch(entities.KindDocument, e)
	}
	r := reader{props: props}
	d.Title = r.string(documentTitle)
	d.DocumentType = r.string(documentDocType)
	d.Date = r.datable(documentDate)
	d.Keywords = r.strings(documentKeywords)
	d.Links = r.strings(documentLinks)
	return r.err
}

func (documentConverter) FieldNames() []string {
	return []string{documentTitle, documentDocType, documentDate, documentKeywords, documentLinks}
}

type emwDocumentConverter struct{}

func (emwDocumentConverter) Kind() entities.Kind {
	return entities.KindEMWDocument
}

func (emwDocumentConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	d, ok := e.(*entities.EMWDocument)
	if !ok {
		return nil, typeMismatch(entities.KindEMWDocument, e)
	}
	props, err := documentConverter{}.ToProperties(&d.Document)
	if err != nil {
		return nil, err
	}
	putStrings(props, emwDocumentGenres, d.Genres)
	putString(props, emwDocumentLanguage, d.Language)
	putString(props, emwDocumentAbstract, d.Abstract)
	return props, nil
}

func (emwDocumentConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	d, ok := e.(*entities.EMWDocument)
	if !ok {
		return typeMismatch(entities.KindEMWDocument, e)
	}
	if err := (documentConverter{}).FromProperties(&d.Document, props); err != nil {
		return err
	}
	r := reader{props: props}
	d.Genres = r.strings(emwDocumentGenres)
	d.Language = r.string(emwDocumentLanguage)
	d.Abstract = r.string(emwDocumentAbstract)
	return r.err
}

func (emwDocumentConverter) FieldNames() []string {
	return append(documentConverter{}.FieldNames(),
		emwDocumentGenres, emwDocumentLanguage, emwDocumentAbstract)
}
