package stubs

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"archivum/src/domain/entities"
)

type DocumentStub struct {
	document entities.Document
}

func NewDocumentStub() DocumentStub {
	return DocumentStub{
		document: entities.Document{
			Title:        gofakeit.Sentence(3),
			DocumentType: gofakeit.RandomString([]string{"letter", "book", "charter"}),
			Date:         entities.Datable(fmt.Sprintf("%d", gofakeit.Number(1500, 1700))),
			Keywords:     []string{gofakeit.Word(), gofakeit.Word()},
			Links:        []string{gofakeit.URL()},
		},
	}
}

func (ds DocumentStub) WithID(id string) DocumentStub {
	ds.document.ID = id
	return ds
}

func (ds DocumentStub) WithRev(rev int) DocumentStub {
	ds.document.Rev = rev
	return ds
}

func (ds DocumentStub) WithTitle(title string) DocumentStub {
	ds.document.Title = title
	return ds
}

func (ds DocumentStub) Get() *entities.Document {
	d := ds.document
	return &d
}
