package memgraph_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"archivum/src/graph"
	"archivum/src/infra/memgraph"
)

func TestMemgraph(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memgraph Suite")
}

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *memgraph.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memgraph.NewStore()
	})

	begin := func() graph.Tx {
		GinkgoHelper()
		tx, err := store.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		return tx
	}

	createNode := func(tx graph.Tx, labels []string, props graph.Properties) graph.NodeHandle {
		GinkgoHelper()
		h, err := tx.CreateNode(ctx, labels, props)
		Expect(err).NotTo(HaveOccurred())
		return h
	}

	Describe("transactions", func() {
		It("makes committed writes visible to later transactions", func() {
			tx := begin()
			h := createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000001"})
			Expect(tx.Commit(ctx)).To(Succeed())

			tx2 := begin()
			defer tx2.Rollback(ctx)
			node, found, err := tx2.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(node.Props["id"]).To(Equal("PERS000000000001"))
		})

		It("discards everything on rollback", func() {
			tx := begin()
			h := createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000001"})
			Expect(tx.Rollback(ctx)).To(Succeed())

			tx2 := begin()
			defer tx2.Rollback(ctx)
			_, found, err := tx2.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("restores overwritten values on rollback", func() {
			tx := begin()
			h := createNode(tx, []string{"person"}, graph.Properties{"rev": 1})
			Expect(tx.Commit(ctx)).To(Succeed())

			tx2 := begin()
			Expect(tx2.SetNodeProperties(ctx, h, graph.Properties{"rev": 2})).To(Succeed())
			Expect(tx2.Rollback(ctx)).To(Succeed())

			tx3 := begin()
			defer tx3.Rollback(ctx)
			node, _, err := tx3.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Props["rev"]).To(Equal(1))
		})

		It("treats rollback after commit as a no-op", func() {
			tx := begin()
			h := createNode(tx, []string{"person"}, nil)
			Expect(tx.Commit(ctx)).To(Succeed())
			Expect(tx.Rollback(ctx)).To(Succeed())

			tx2 := begin()
			defer tx2.Rollback(ctx)
			_, found, err := tx2.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
		})

		It("rejects operations on a finished transaction", func() {
			tx := begin()
			Expect(tx.Commit(ctx)).To(Succeed())
			_, err := tx.CreateNode(ctx, []string{"person"}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("fails to begin when the context is already cancelled and a transaction holds the slot", func() {
			tx := begin()
			defer tx.Rollback(ctx)

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := store.Begin(cancelled)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("refuses new transactions after Close", func() {
			Expect(store.Close(ctx)).To(Succeed())
			Expect(store.IsAvailable(ctx)).To(BeFalse())
			_, err := store.Begin(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("property writes", func() {
		It("merges on set and deletes on remove", func() {
			tx := begin()
			defer tx.Rollback(ctx)
			h := createNode(tx, []string{"person"}, graph.Properties{"a": "1", "b": "2"})

			Expect(tx.SetNodeProperties(ctx, h, graph.Properties{"b": "3", "c": "4"})).To(Succeed())
			Expect(tx.RemoveNodeProperties(ctx, h, "a", "missing")).To(Succeed())

			node, _, err := tx.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Props).To(Equal(graph.Properties{"b": "3", "c": "4"}))
		})

		It("adds a label once", func() {
			tx := begin()
			defer tx.Rollback(ctx)
			h := createNode(tx, []string{"person"}, nil)

			Expect(tx.AddNodeLabel(ctx, h, "emwperson")).To(Succeed())
			Expect(tx.AddNodeLabel(ctx, h, "emwperson")).To(Succeed())

			node, _, err := tx.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Labels).To(Equal([]string{"person", "emwperson"}))
		})

		It("isolates snapshots from the stored state", func() {
			tx := begin()
			defer tx.Rollback(ctx)
			h := createNode(tx, []string{"person"}, graph.Properties{"names": []string{"a"}})

			node, _, err := tx.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			node.Props["names"].([]string)[0] = "mutated"

			again, _, err := tx.Node(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Props["names"]).To(Equal([]string{"a"}))
		})
	})

	Describe("queries", func() {
		It("filters by label and property values with numeric widening", func() {
			tx := begin()
			defer tx.Rollback(ctx)
			createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000001", "rev": 1})
			createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000001", "rev": 2})
			createNode(tx, []string{"document"}, graph.Properties{"id": "DOCU000000000001", "rev": 1})

			persons, err := tx.Nodes(ctx, graph.Query{Label: "person"})
			Expect(err).NotTo(HaveOccurred())
			Expect(persons).To(HaveLen(2))

			rev2, err := tx.Nodes(ctx, graph.Query{Label: "person", Has: graph.Properties{"rev": int64(2)}})
			Expect(err).NotTo(HaveOccurred())
			Expect(rev2).To(HaveLen(1))
			Expect(rev2[0].Props["id"]).To(Equal("PERS000000000001"))
		})

		It("filters by property absence", func() {
			tx := begin()
			defer tx.Rollback(ctx)
			createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000001", "pid": "10.5072/abc"})
			createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000002"})

			unpublished, err := tx.Nodes(ctx, graph.Query{Label: "person", HasNot: []string{"pid"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(unpublished).To(HaveLen(1))
			Expect(unpublished[0].Props["id"]).To(Equal("PERS000000000002"))
		})

		It("matches slice-valued properties by equality", func() {
			tx := begin()
			defer tx.Rollback(ctx)
			createNode(tx, []string{"person"}, graph.Properties{"names": []string{"a", "b"}})

			hit, err := tx.Nodes(ctx, graph.Query{Has: graph.Properties{"names": []string{"a", "b"}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(HaveLen(1))

			miss, err := tx.Nodes(ctx, graph.Query{Has: graph.Properties{"names": []string{"a"}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(miss).To(BeEmpty())
		})
	})

	Describe("edges", func() {
		var (
			tx             graph.Tx
			source, target graph.NodeHandle
		)

		BeforeEach(func() {
			tx = begin()
			source = createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000001"})
			target = createNode(tx, []string{"person"}, graph.Properties{"id": "PERS000000000002"})
		})

		AfterEach(func() {
			tx.Rollback(ctx)
		})

		It("traverses by direction", func() {
			_, err := tx.CreateEdge(ctx, source, target, []string{"relation"}, graph.Properties{"id": "RELA000000000001"})
			Expect(err).NotTo(HaveOccurred())

			out, err := tx.NodeEdges(ctx, source, graph.Out)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].Target).To(Equal(target))

			in, err := tx.NodeEdges(ctx, source, graph.In)
			Expect(err).NotTo(HaveOccurred())
			Expect(in).To(BeEmpty())

			both, err := tx.NodeEdges(ctx, target, graph.Both)
			Expect(err).NotTo(HaveOccurred())
			Expect(both).To(HaveLen(1))
		})

		It("rejects edges to nodes that do not exist", func() {
			_, err := tx.CreateEdge(ctx, source, graph.NodeHandle{ID: 999}, []string{"relation"}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("refuses to delete a node with edges still attached", func() {
			edge, err := tx.CreateEdge(ctx, source, target, []string{"relation"}, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(tx.DeleteNode(ctx, source)).NotTo(Succeed())

			Expect(tx.DeleteEdge(ctx, edge)).To(Succeed())
			Expect(tx.DeleteNode(ctx, source)).To(Succeed())
		})
	})
})
