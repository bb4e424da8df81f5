package conv_test

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/storage/conv"
	"archivum/src/test_artefacts/stubs"
)

var _ = Describe("PropertyName", func() {
	It("namespaces domain fields under their kind", func() {
		Expect(conv.PropertyName(entities.KindPerson, "names")).To(Equal("person:names"))
		Expect(conv.PropertyName(entities.KindEMWPerson, "residence")).To(Equal("emwperson:residence"))
	})

	It("leaves names not starting with a letter alone", func() {
		Expect(conv.PropertyName(entities.KindPerson, "_matched")).To(Equal("_matched"))
	})
})

var _ = Describe("Set", func() {
	var set *conv.Set

	BeforeEach(func() {
		set = conv.NewSet(domain.NewRegistry())
	})

	It("has a converter for every registered kind", func() {
		registry := domain.NewRegistry()
		for _, kind := range registry.Kinds() {
			_, err := set.For(kind)
			Expect(err).NotTo(HaveOccurred(), "kind %s", kind)
		}
	})

	It("fails for an unregistered kind", func() {
		_, err := set.For(entities.Kind("castle"))
		Expect(err).To(MatchError(domain.ErrInstantiation))
	})

	Describe("round-tripping entities", func() {
		roundTrip := func(e entities.Entity) entities.Entity {
			GinkgoHelper()
			props, err := set.CompositeProperties(e)
			Expect(err).NotTo(HaveOccurred())
			got, err := set.Decode(e.Kind(), props)
			Expect(err).NotTo(HaveOccurred())
			return got
		}

		It("preserves a person, administrative fields included", func() {
			person := stubs.NewPersonStub().WithID("PERS000000000007").WithRev(3).Get()
			person.PID = "10.5072/abc"
			person.Created = entities.NewChange("USER000000000001", "TestVRE")
			person.Modified = person.Created

			got := roundTrip(person)
			Expect(cmp.Diff(person, got)).To(BeEmpty())
		})

		It("preserves a project variation with its inherited fields", func() {
			emw := stubs.NewEMWPersonStub().WithID("PERS000000000007").WithRev(2).Get()
			got := roundTrip(emw)
			Expect(cmp.Diff(emw, got)).To(BeEmpty())
		})

		It("preserves a document", func() {
			doc := stubs.NewDocumentStub().WithID("DOCU000000000001").WithRev(1).Get()
			got := roundTrip(doc)
			Expect(cmp.Diff(doc, got)).To(BeEmpty())
		})

		It("preserves a relation type", func() {
			rt := stubs.NewRelationTypeStub().WithSymmetric(true).Get()
			rt.ID = "RELT000000000001"
			rt.Rev = 1
			got := roundTrip(rt)
			Expect(cmp.Diff(rt, got)).To(BeEmpty())
		})

		It("preserves a relation", func() {
			rel := stubs.NewRelationStub("RELT000000000001", "PERS000000000001", "PERS000000000002").
				WithID("RELA000000000001").
				WithRev(1).
				Get()
			got := roundTrip(rel)
			Expect(cmp.Diff(rel, got)).To(BeEmpty())
		})
	})

	Describe("writing properties", func() {
		It("omits empty fields so absent equals empty", func() {
			person := &entities.Person{Names: []string{"Hugo de Groot"}}
			props, err := set.CompositeProperties(person)
			Expect(err).NotTo(HaveOccurred())

			Expect(props).To(HaveKey("person:names"))
			Expect(props).NotTo(HaveKey("person:gender"))
			Expect(props).NotTo(HaveKey("person:birthDate"))
			Expect(props).NotTo(HaveKey(conv.PropPID))
		})

		It("reads absent collections back as empty, not nil", func() {
			person := &entities.Person{Names: []string{"Hugo de Groot"}}
			props, err := set.CompositeProperties(person)
			Expect(err).NotTo(HaveOccurred())

			got, err := set.Decode(entities.KindPerson, props)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.(*entities.Person).Links).NotTo(BeNil())
			Expect(got.(*entities.Person).Links).To(BeEmpty())
		})

		It("lists emptied fields as removals on update", func() {
			person := stubs.NewPersonStub().Get()
			person.Gender = ""
			person.Links = nil

			props, removals, err := set.UpdateProperties(person)
			Expect(err).NotTo(HaveOccurred())
			Expect(props).To(HaveKey("person:names"))
			Expect(removals).To(ContainElements("person:gender", "person:links"))
			Expect(removals).NotTo(ContainElement("person:names"))
		})

		It("rejects an entity that does not match its converter", func() {
			_, err := set.CompositeProperties(&mislabeled{})
			Expect(err).To(MatchError(domain.ErrConversion))
		})
	})

	Describe("decoding shapes", func() {
		It("decodes a primitive's properties as a variation shape", func() {
			person := stubs.NewPersonStub().WithID("PERS000000000001").WithRev(1).WithNames("Anna Maria van Schurman").Get()
			props, err := set.CompositeProperties(person)
			Expect(err).NotTo(HaveOccurred())

			got, err := set.Decode(entities.KindEMWPerson, props)
			Expect(err).NotTo(HaveOccurred())
			emw := got.(*entities.EMWPerson)
			Expect(emw.Names).To(Equal([]string{"Anna Maria van Schurman"}))
			Expect(emw.Residence).To(BeEmpty())
		})

		It("fails on a property holding the wrong type", func() {
			person := stubs.NewPersonStub().WithID("PERS000000000001").WithRev(1).Get()
			props, err := set.CompositeProperties(person)
			Expect(err).NotTo(HaveOccurred())
			props["person:names"] = 42

			_, err = set.Decode(entities.KindPerson, props)
			Expect(err).To(MatchError(domain.ErrConversion))
		})
	})
})

// mislabeled claims the person kind but is not a Person.
type mislabeled struct {
	entities.Metadata
}

func (mislabeled) Kind() entities.Kind {
	return entities.KindPerson
}
