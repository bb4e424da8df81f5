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

var _ = Describe("GraphStorage relations", func() {
	var (
		ctx    context.Context
		engine *storage.GraphStorage
		change entities.Change

		typeID string
		person string
		other  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store := memgraph.NewStore()
		registry := domain.NewRegistry()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		engine = storage.NewGraphStorage(logger, store, registry)
		change = entities.NewChange("USER000000000001", "TestVRE")

		var err error
		typeID, err = engine.AddSystemEntity(ctx, stubs.NewRelationTypeStub().WithNames("knowsPerson", "knowsPerson").Get())
		Expect(err).NotTo(HaveOccurred())
		person, err = engine.AddDomainEntity(ctx, stubs.NewPersonStub().Get(), change)
		Expect(err).NotTo(HaveOccurred())
		other, err = engine.AddDomainEntity(ctx, stubs.NewPersonStub().Get(), change)
		Expect(err).NotTo(HaveOccurred())
	})

	addRelation := func(rel *entities.Relation) string {
		GinkgoHelper()
		id, err := engine.AddRelation(ctx, rel, change)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	Describe("adding relations", func() {
		It("stores a new relation at revision 1 under a generated id", func() {
			id := addRelation(stubs.NewRelationStub(typeID, person, other).Get())
			Expect(id).To(HavePrefix("RELA"))

			got, err := engine.GetRelation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Rev).To(Equal(1))
			Expect(got.TypeID).To(Equal(typeID))
			Expect(got.SourceID).To(Equal(person))
			Expect(got.TargetID).To(Equal(other))
			Expect(got.Accepted).To(BeTrue())
		})

		It("returns the existing id instead of duplicating", func() {
			first := addRelation(stubs.NewRelationStub(typeID, person, other).Get())
			second := addRelation(stubs.NewRelationStub(typeID, person, other).Get())
			Expect(second).To(Equal(first))

			count, err := engine.CountRelations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("rejects an unknown relation type", func() {
			_, err := engine.AddRelation(ctx, stubs.NewRelationStub("RELT999999999999", person, other).Get(), change)
			Expect(err).To(MatchError(domain.ErrNotFound))
		})

		It("rejects a missing endpoint", func() {
			_, err := engine.AddRelation(ctx, stubs.NewRelationStub(typeID, person, "PERS999999999999").Get(), change)
			Expect(err).To(MatchError(domain.ErrNotFound))
		})

		It("rejects both ends on the same entity unless the type is reflexive", func() {
			_, err := engine.AddRelation(ctx, stubs.NewRelationStub(typeID, person, person).Get(), change)
			Expect(err).To(MatchError(domain.ErrIllegalArgument))

			reflexiveType, err := engine.AddSystemEntity(ctx,
				stubs.NewRelationTypeStub().WithNames("references", "isReferencedBy").WithReflexive(true).Get())
			Expect(err).NotTo(HaveOccurred())
			addRelation(stubs.NewRelationStub(reflexiveType, person, person).Get())
		})

		It("rejects endpoint kinds the type does not declare", func() {
			doc, err := engine.AddDomainEntity(ctx, stubs.NewDocumentStub().Get(), change)
			Expect(err).NotTo(HaveOccurred())

			rel := stubs.NewRelationStub(typeID, person, doc).
				WithKinds(entities.KindPerson, entities.KindDocument).
				Get()
			_, err = engine.AddRelation(ctx, rel, change)
			Expect(err).To(MatchError(domain.ErrIllegalArgument))
		})

		It("admits a variation endpoint through its primitive", func() {
			variant := stubs.NewEMWPersonStub().WithID(person).WithRev(2).Get()
			Expect(engine.AddVariant(ctx, variant, change)).To(Succeed())

			rel := stubs.NewRelationStub(typeID, person, other).
				WithKinds(entities.KindEMWPerson, entities.KindPerson).
				Get()
			addRelation(rel)
		})
	})

	Describe("symmetric types", func() {
		var symmetricType string

		BeforeEach(func() {
			var err error
			symmetricType, err = engine.AddSystemEntity(ctx,
				stubs.NewRelationTypeStub().WithNames("isSiblingOf", "isSiblingOf").WithSymmetric(true).Get())
			Expect(err).NotTo(HaveOccurred())
		})

		It("stores the endpoints in canonical order", func() {
			id := addRelation(stubs.NewRelationStub(symmetricType, other, person).Get())

			got, err := engine.GetRelation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SourceID).To(Equal(person))
			Expect(got.TargetID).To(Equal(other))
		})

		It("detects the duplicate regardless of endpoint order", func() {
			first := addRelation(stubs.NewRelationStub(symmetricType, person, other).Get())
			second := addRelation(stubs.NewRelationStub(symmetricType, other, person).Get())
			Expect(second).To(Equal(first))
		})

		It("finds the relation with the endpoints swapped", func() {
			id := addRelation(stubs.NewRelationStub(symmetricType, person, other).Get())

			got, err := engine.FindRelation(ctx, symmetricType, other, person)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ID).To(Equal(id))
		})
	})

	Describe("updating relations", func() {
		var id string

		BeforeEach(func() {
			id = addRelation(stubs.NewRelationStub(typeID, person, other).Get())
		})

		It("toggles the accepted flag and bumps the revision", func() {
			got, err := engine.GetRelation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			got.Rev = 2
			got.Accepted = false

			Expect(engine.UpdateRelation(ctx, got, change)).To(Succeed())

			after, err := engine.GetRelation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Rev).To(Equal(2))
			Expect(after.Accepted).To(BeFalse())
			Expect(cmp.Diff(change, after.Modified, comparer.IgnoreChangeTimestamps())).To(BeEmpty())
		})

		It("rejects a stale revision", func() {
			got, err := engine.GetRelation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			got.Accepted = false

			Expect(engine.UpdateRelation(ctx, got, change)).To(MatchError(domain.ErrUpdateConflict))
		})

		It("reports a conflict for an unknown id", func() {
			rel := stubs.NewRelationStub(typeID, person, other).WithID("RELA999999999999").WithRev(2).Get()
			Expect(engine.UpdateRelation(ctx, rel, change)).To(MatchError(domain.ErrUpdateConflict))
		})
	})

	Describe("persistent identifiers", func() {
		var id string

		BeforeEach(func() {
			id = addRelation(stubs.NewRelationStub(typeID, person, other).Get())
		})

		It("assigns a PID on a fresh revision without multiplying the relation", func() {
			Expect(engine.SetRelationPID(ctx, id, "10.5072/rel")).To(Succeed())

			got, err := engine.GetRelation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Rev).To(Equal(2))
			Expect(got.PID).To(Equal("10.5072/rel"))

			count, err := engine.CountRelations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("refuses a second assignment", func() {
			Expect(engine.SetRelationPID(ctx, id, "10.5072/rel")).To(Succeed())
			Expect(engine.SetRelationPID(ctx, id, "10.5072/again")).To(MatchError(domain.ErrIllegalState))
		})

		It("fails for an unknown id", func() {
			Expect(engine.SetRelationPID(ctx, "RELA999999999999", "10.5072/rel")).To(MatchError(domain.ErrNotFound))
		})

		It("only serves revisions that carry a PID", func() {
			before, err := engine.GetRelationRevision(ctx, id, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(BeNil())

			Expect(engine.SetRelationPID(ctx, id, "10.5072/rel")).To(Succeed())

			published, err := engine.GetRelationRevision(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(published).NotTo(BeNil())
			Expect(published.PID).To(Equal("10.5072/rel"))
		})
	})

	Describe("querying relations", func() {
		It("lists relations by endpoint", func() {
			third, err := engine.AddDomainEntity(ctx, stubs.NewPersonStub().Get(), change)
			Expect(err).NotTo(HaveOccurred())

			outgoing := addRelation(stubs.NewRelationStub(typeID, person, other).Get())
			incoming := addRelation(stubs.NewRelationStub(typeID, third, person).Get())

			bySource, err := engine.RelationsBySource(ctx, person)
			Expect(err).NotTo(HaveOccurred())
			Expect(bySource).To(HaveLen(1))
			Expect(bySource[0].ID).To(Equal(outgoing))

			byTarget, err := engine.RelationsByTarget(ctx, person)
			Expect(err).NotTo(HaveOccurred())
			Expect(byTarget).To(HaveLen(1))
			Expect(byTarget[0].ID).To(Equal(incoming))

			all, err := engine.GetRelations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("returns nil for an unknown lookup", func() {
			got, err := engine.GetRelation(ctx, "RELA999999999999")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())

			found, err := engine.FindRelation(ctx, typeID, person, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
		})

		It("reports existence across revisions", func() {
			id := addRelation(stubs.NewRelationStub(typeID, person, other).Get())
			Expect(engine.SetRelationPID(ctx, id, "10.5072/rel")).To(Succeed())

			exists, err := engine.RelationExists(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = engine.RelationExists(ctx, "RELA999999999999")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})
})
