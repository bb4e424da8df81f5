package postgres

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"archivum/src/graph"
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Suite")
}

var _ = Describe("buildFilter", func() {
	It("returns no clause for an empty query", func() {
		where, args, err := buildFilter(graph.Query{})
		Expect(err).NotTo(HaveOccurred())
		Expect(where).To(BeEmpty())
		Expect(args).To(BeEmpty())
	})

	It("filters on the label column", func() {
		where, args, err := buildFilter(graph.Query{Label: "person"})
		Expect(err).NotTo(HaveOccurred())
		Expect(where).To(Equal(" WHERE $1 = ANY (labels)"))
		Expect(args).To(Equal([]any{"person"}))
	})

	It("compares property values per key, not by containment", func() {
		where, args, err := buildFilter(graph.Query{
			Has: graph.Properties{"person:gender": "female"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(where).To(Equal(" WHERE props -> $1 = $2::jsonb"))
		Expect(args).To(HaveLen(2))
		Expect(args[0]).To(Equal("person:gender"))
		Expect(args[1]).To(Equal([]byte(`"female"`)))
	})

	It("encodes slice values as the full json array", func() {
		_, args, err := buildFilter(graph.Query{
			Has: graph.Properties{"person:names": []string{"Ada", "Countess"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(args[1]).To(Equal([]byte(`["Ada","Countess"]`)))
	})

	It("combines label, equality and absence clauses", func() {
		where, args, err := buildFilter(graph.Query{
			Label:  "person",
			Has:    graph.Properties{"rev": 2},
			HasNot: []string{"pid"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(where).To(Equal(" WHERE $1 = ANY (labels) AND props -> $2 = $3::jsonb AND NOT (props ? $4)"))
		Expect(args).To(Equal([]any{"person", "rev", []byte("2"), "pid"}))
	})
})
