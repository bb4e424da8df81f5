package storage_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/infra/memgraph"
	"archivum/src/storage"
	"archivum/src/test_artefacts/comparer"
	"archivum/src/test_artefacts/stubs"
)

var _ = Describe("GraphStorage", func() {
	var (
		ctx      context.Context
		store    *memgraph.Store
		registry *domain.Registry
		engine   *storage.GraphStorage
		change   entities.Change
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memgraph.NewStore()
		registry = domain.NewRegistry()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine = storage.NewGraphStorage(logger, store, registry)
		change = entities.NewChange("USER000000000001", "TestVRE")
	})

	addPerson := func(p *entities.Person) string {
		GinkgoHelper()
		id, err := engine.AddDomainEntity(ctx, p, change)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	addRelationType := func(rt *entities.RelationType) string {
		GinkgoHelper()
		id, err := engine.AddSystemEntity(ctx, rt)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	Describe("adding and reading domain entities", func() {
		It("stores a new entity at revision 1 under a generated id", func() {
			id := addPerson(stubs.NewPersonStub().Get())
			Expect(id).To(HavePrefix("PERS"))
			Expect(id).To(HaveLen(16))

			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Meta().ID).To(Equal(id))
			Expect(got.Meta().Rev).To(Equal(1))
			Expect(got.Meta().PID).To(BeEmpty())
			Expect(got.Meta().Created).To(Equal(change))
			Expect(got.Meta().Modified).To(Equal(change))
		})

		It("round-trips the domain fields", func() {
			person := stubs.NewPersonStub().
				WithNames("Pieter van der Werff").
				WithBirthDate("1646-09-18").
				Get()
			id := addPerson(person)

			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(person, got, comparer.IgnoreMeta())).To(BeEmpty())
		})

		It("hands out ids sequentially per type prefix", func() {
			first := addPerson(stubs.NewPersonStub().Get())
			second := addPerson(stubs.NewPersonStub().Get())
			Expect(second).NotTo(Equal(first))

			docID, err := engine.AddDomainEntity(ctx, stubs.NewDocumentStub().Get(), change)
			Expect(err).NotTo(HaveOccurred())
			Expect(docID).To(HavePrefix("DOCU"))
		})

		It("returns nil for an unknown id", func() {
			got, err := engine.GetEntity(ctx, entities.KindPerson, "PERS999999999999")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("rejects relation kinds on the entity paths", func() {
			_, err := engine.GetEntity(ctx, entities.KindRelation, "RELA000000000001")
			Expect(err).To(MatchError(domain.ErrIllegalArgument))
		})

		It("finds a latest entity by property value", func() {
			person := stubs.NewPersonStub().WithNames("Johannes Vermeer").Get()
			id := addPerson(person)

			got, err := engine.FindEntityByProperty(ctx, entities.KindPerson, "names", person.Names)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.Meta().ID).To(Equal(id))

			missing, err := engine.FindEntityByProperty(ctx, entities.KindPerson, "names", []string{"nobody"})
			Expect(err).NotTo(HaveOccurred())
			Expect(missing).To(BeNil())
		})
	})

	Describe("updating domain entities", func() {
		var (
			id     string
			person *entities.Person
		)

		BeforeEach(func() {
			person = stubs.NewPersonStub().WithNames("Rembrandt").Get()
			id = addPerson(person)
		})

		It("writes new values in place and bumps the revision", func() {
			update := stubs.NewPersonStub().
				WithID(id).
				WithRev(2).
				WithNames("Rembrandt van Rijn").
				Get()

			Expect(engine.UpdateEntity(ctx, update, change)).To(Succeed())

			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Meta().Rev).To(Equal(2))
			Expect(got.(*entities.Person).Names).To(Equal([]string{"Rembrandt van Rijn"}))
		})

		It("removes fields that became empty", func() {
			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			updated := got.(*entities.Person)
			updated.Rev = 2
			updated.Gender = ""

			Expect(engine.UpdateEntity(ctx, updated, change)).To(Succeed())

			after, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.(*entities.Person).Gender).To(BeEmpty())
		})

		It("rejects a revision equal to the stored one", func() {
			update := stubs.NewPersonStub().WithID(id).WithRev(1).Get()
			Expect(engine.UpdateEntity(ctx, update, change)).To(MatchError(domain.ErrUpdateConflict))
		})

		It("rejects a revision more than one ahead", func() {
			update := stubs.NewPersonStub().WithID(id).WithRev(3).Get()
			Expect(engine.UpdateEntity(ctx, update, change)).To(MatchError(domain.ErrUpdateConflict))
		})

		It("reports a conflict for an unknown id", func() {
			update := stubs.NewPersonStub().WithID("PERS999999999999").WithRev(2).Get()
			Expect(engine.UpdateEntity(ctx, update, change)).To(MatchError(domain.ErrUpdateConflict))
		})

		It("leaves the stored entity untouched after a rejected update", func() {
			update := stubs.NewPersonStub().WithID(id).WithRev(7).WithNames("Wrong").Get()
			Expect(engine.UpdateEntity(ctx, update, change)).NotTo(Succeed())

			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Meta().Rev).To(Equal(1))
			Expect(got.(*entities.Person).Names).To(Equal([]string{"Rembrandt"}))
		})
	})

	Describe("variations", func() {
		var id string

		BeforeEach(func() {
			id = addPerson(stubs.NewPersonStub().WithNames("Maria Duyst").Get())
		})

		It("promotes a primitive into a project variation", func() {
			variant := stubs.NewEMWPersonStub().WithID(id).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			got, err := engine.GetEntity(ctx, entities.KindEMWPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Meta().Rev).To(Equal(2))
			Expect(got.(*entities.EMWPerson).Residence).To(Equal(variant.Residence))

			asPrimitive, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(asPrimitive.Meta().Rev).To(Equal(2))
		})

		It("keeps inherited fields the variant left empty", func() {
			variant := &entities.EMWPerson{Residence: "Delft"}
			variant.ID = id
			variant.Rev = 2
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			got, err := engine.GetEntity(ctx, entities.KindEMWPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.(*entities.EMWPerson).Names).To(Equal([]string{"Maria Duyst"}))
		})

		It("rejects a second promotion to the same variation", func() {
			variant := stubs.NewEMWPersonStub().WithID(id).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			again := stubs.NewEMWPersonStub().WithID(id).WithRev(3).Get()
			Expect(engine.AddVariant(ctx, again, change)).To(MatchError(domain.ErrUpdateConflict))
		})

		It("requires the primitive to exist", func() {
			variant := stubs.NewEMWPersonStub().WithID("PERS999999999999").WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(MatchError(domain.ErrNotFound))
		})

		It("enforces the revision contract against the primitive", func() {
			variant := stubs.NewEMWPersonStub().WithID(id).WithRev(1).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(MatchError(domain.ErrUpdateConflict))
		})

		It("rejects promoting with a primitive kind", func() {
			variant := stubs.NewPersonStub().WithID(id).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(MatchError(domain.ErrIllegalArgument))
		})

		It("shapes a primitive as a requested variation by default", func() {
			got, err := engine.GetDefaultVariation(ctx, entities.KindEMWPerson, id)
			Expect(err).NotTo(HaveOccurred())
			emw := got.(*entities.EMWPerson)
			Expect(emw.Names).To(Equal([]string{"Maria Duyst"}))
			Expect(emw.Residence).To(BeEmpty())
		})

		It("prefers the stored variation over the default shape", func() {
			fallback, err := engine.GetEntityOrDefaultVariation(ctx, entities.KindEMWPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(fallback.(*entities.EMWPerson).Residence).To(BeEmpty())

			variant := stubs.NewEMWPersonStub().WithID(id).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			got, err := engine.GetEntityOrDefaultVariation(ctx, entities.KindEMWPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.(*entities.EMWPerson).Residence).To(Equal(variant.Residence))
		})

		It("lists every variation recorded on the latest node", func() {
			variant := stubs.NewEMWPersonStub().WithID(id).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			variations, err := engine.GetAllVariations(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(variations).To(HaveLen(2))
			Expect(variations[0].Kind()).To(Equal(entities.KindPerson))
			Expect(variations[1].Kind()).To(Equal(entities.KindEMWPerson))
		})
	})

	Describe("persistent identifiers", func() {
		var id string

		BeforeEach(func() {
			id = addPerson(stubs.NewPersonStub().Get())
		})

		It("assigns a PID on a fresh revision and keeps history", func() {
			Expect(engine.SetEntityPID(ctx, entities.KindPerson, id, "10.5072/abc")).To(Succeed())

			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Meta().Rev).To(Equal(2))
			Expect(got.Meta().PID).To(Equal("10.5072/abc"))

			count, err := engine.CountEntities(ctx, entities.KindPerson)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("refuses a second assignment and keeps the first pid", func() {
			Expect(engine.SetEntityPID(ctx, entities.KindPerson, id, "10.5072/abc")).To(Succeed())
			err := engine.SetEntityPID(ctx, entities.KindPerson, id, "10.5072/def")
			Expect(err).To(MatchError(domain.ErrIllegalState))

			got, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Meta().PID).To(Equal("10.5072/abc"))
		})

		It("fails for an unknown id", func() {
			err := engine.SetEntityPID(ctx, entities.KindPerson, "PERS999999999999", "10.5072/abc")
			Expect(err).To(MatchError(domain.ErrNotFound))
		})

		It("only serves revisions that carry a PID", func() {
			before, err := engine.GetRevision(ctx, entities.KindPerson, id, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(BeNil())

			Expect(engine.SetEntityPID(ctx, entities.KindPerson, id, "10.5072/abc")).To(Succeed())

			published, err := engine.GetRevision(ctx, entities.KindPerson, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(published).NotTo(BeNil())
			Expect(published.Meta().PID).To(Equal("10.5072/abc"))

			unpublished, err := engine.GetRevision(ctx, entities.KindPerson, id, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(unpublished).To(BeNil())
		})

		It("lists the ids still lacking a PID", func() {
			second := addPerson(stubs.NewPersonStub().Get())
			Expect(engine.SetEntityPID(ctx, entities.KindPerson, id, "10.5072/abc")).To(Succeed())

			ids, err := engine.IDsOfNonPersistent(ctx, entities.KindPerson)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(ConsistOf(second))
		})

		It("cleans up unpublished lineages and spares published ones", func() {
			second := addPerson(stubs.NewPersonStub().Get())
			Expect(engine.SetEntityPID(ctx, entities.KindPerson, id, "10.5072/abc")).To(Succeed())

			Expect(engine.DeleteNonPersistent(ctx, entities.KindPerson, second)).To(Succeed())
			Expect(engine.DeleteNonPersistent(ctx, entities.KindPerson, id)).To(Succeed())

			gone, err := engine.GetEntity(ctx, entities.KindPerson, second)
			Expect(err).NotTo(HaveOccurred())
			Expect(gone).To(BeNil())

			kept, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(kept).NotTo(BeNil())
		})
	})

	Describe("deleting domain entities", func() {
		It("removes every revision and variation in one go", func() {
			id := addPerson(stubs.NewPersonStub().Get())
			variant := stubs.NewEMWPersonStub().WithID(id).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			Expect(engine.DeleteDomainEntity(ctx, entities.KindPerson, id, change)).To(Succeed())

			asPrimitive, err := engine.GetEntity(ctx, entities.KindPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(asPrimitive).To(BeNil())

			asVariant, err := engine.GetEntity(ctx, entities.KindEMWPerson, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(asVariant).To(BeNil())
		})

		It("cascades over attached relations first", func() {
			typeID := addRelationType(stubs.NewRelationTypeStub().Get())
			source := addPerson(stubs.NewPersonStub().Get())
			target := addPerson(stubs.NewPersonStub().Get())

			relID, err := engine.AddRelation(ctx, stubs.NewRelationStub(typeID, source, target).Get(), change)
			Expect(err).NotTo(HaveOccurred())

			Expect(engine.DeleteDomainEntity(ctx, entities.KindPerson, source, change)).To(Succeed())

			rel, err := engine.GetRelation(ctx, relID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rel).To(BeNil())

			survivor, err := engine.GetEntity(ctx, entities.KindPerson, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(survivor).NotTo(BeNil())
		})

		It("only accepts the primitive kind", func() {
			id := addPerson(stubs.NewPersonStub().Get())
			err := engine.DeleteDomainEntity(ctx, entities.KindEMWPerson, id, change)
			Expect(err).To(MatchError(domain.ErrIllegalArgument))
		})

		It("fails for an unknown id", func() {
			err := engine.DeleteDomainEntity(ctx, entities.KindPerson, "PERS999999999999", change)
			Expect(err).To(MatchError(domain.ErrNotFound))
		})
	})

	Describe("system entities", func() {
		It("stores and deletes users by node count", func() {
			user := &entities.User{DisplayName: "archivist", Email: "archivist@example.org", Role: "ADMIN"}
			id, err := engine.AddSystemEntity(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(HavePrefix("USER"))

			got, err := engine.GetEntity(ctx, entities.KindUser, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.(*entities.User).DisplayName).To(Equal("archivist"))

			count, err := engine.DeleteSystemEntity(ctx, entities.KindUser, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("returns zero when deleting an unknown system entity", func() {
			count, err := engine.DeleteSystemEntity(ctx, entities.KindUser, "USER999999999999")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("rejects domain kinds on the system paths", func() {
			_, err := engine.AddSystemEntity(ctx, stubs.NewPersonStub().Get())
			Expect(err).To(MatchError(domain.ErrIllegalArgument))
		})
	})

	Describe("counters restarting", func() {
		It("resumes id generation after the highest stored id", func() {
			first := addPerson(stubs.NewPersonStub().Get())

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			restarted := storage.NewGraphStorage(logger, store, registry)
			Expect(restarted.Initialize(ctx)).To(Succeed())

			second, err := restarted.AddDomainEntity(ctx, stubs.NewPersonStub().Get(), change)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))
		})
	})
})
