package stubs

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"archivum/src/domain/entities"
)

type PersonStub struct {
	person entities.Person
}

func NewPersonStub() PersonStub {
	return PersonStub{
		person: entities.Person{
			Names:     []string{gofakeit.Name()},
			Gender:    gofakeit.RandomString([]string{"male", "female", "unknown"}),
			BirthDate: entities.Datable(fmt.Sprintf("%d", gofakeit.Number(1500, 1700))),
			Links:     []string{gofakeit.URL()},
		},
	}
}

func (ps PersonStub) WithID(id string) PersonStub {
	ps.person.ID = id
	return ps
}

func (ps PersonStub) WithRev(rev int) PersonStub {
	ps.person.Rev = rev
	return ps
}

func (ps PersonStub) WithNames(names ...string) PersonStub {
	ps.person.Names = names
	return ps
}

func (ps PersonStub) WithBirthDate(date string) PersonStub {
	ps.person.BirthDate = entities.Datable(date)
	return ps
}

func (ps PersonStub) Get() *entities.Person {
	p := ps.person
	return &p
}

type EMWPersonStub struct {
	person entities.EMWPerson
}

func NewEMWPersonStub() EMWPersonStub {
	return EMWPersonStub{
		person: entities.EMWPerson{
			Person:       *NewPersonStub().Get(),
			Bibliography: []string{gofakeit.Sentence(4)},
			Residence:    gofakeit.City(),
		},
	}
}

func (es EMWPersonStub) WithID(id string) EMWPersonStub {
	es.person.ID = id
	return es
}

func (es EMWPersonStub) WithRev(rev int) EMWPersonStub {
	es.person.Rev = rev
	return es
}

func (es EMWPersonStub) Get() *entities.EMWPerson {
	p := es.person
	return &p
}
