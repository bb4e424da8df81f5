package entities_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"archivum/src/domain/entities"
)

func TestEntities(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Entities Suite")
}

// Every concrete entity must satisfy Entity through the embedded
// Metadata accessor.
var (
	_ entities.Entity = (*entities.Person)(nil)
	_ entities.Entity = (*entities.EMWPerson)(nil)
	_ entities.Entity = (*entities.Document)(nil)
	_ entities.Entity = (*entities.EMWDocument)(nil)
	_ entities.Entity = (*entities.User)(nil)
	_ entities.Entity = (*entities.RelationType)(nil)
	_ entities.Entity = (*entities.Relation)(nil)
)

var _ = Describe("Entity", func() {
	It("exposes the embedded admin block through Meta", func() {
		all := []entities.Entity{
			&entities.Person{},
			&entities.EMWPerson{},
			&entities.Document{},
			&entities.EMWDocument{},
			&entities.User{},
			&entities.RelationType{},
			&entities.Relation{},
		}
		for _, e := range all {
			e.Meta().ID = "X"
			e.Meta().Rev = 3
			Expect(e.Meta().ID).To(Equal("X"), "%T", e)
			Expect(e.Meta().Rev).To(Equal(3), "%T", e)
		}
	})

	It("reports persistence from the assigned PID", func() {
		p := &entities.Person{}
		Expect(p.Persistent()).To(BeFalse())
		p.Meta().PID = "10.5072/abc"
		Expect(p.Persistent()).To(BeTrue())
	})
})
