package ids_test

import (
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/storage/ids"
)

func TestIDs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "IDs Suite")
}

var _ = Describe("Generator", func() {
	var gen *ids.Generator

	BeforeEach(func() {
		gen = ids.NewGenerator(domain.NewRegistry())
	})

	It("produces prefixed, zero-padded, increasing identifiers", func() {
		first, err := gen.NextID(entities.KindPerson)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal("PERS000000000001"))

		second, err := gen.NextID(entities.KindPerson)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal("PERS000000000002"))
	})

	It("keeps an independent counter per prefix", func() {
		_, err := gen.NextID(entities.KindPerson)
		Expect(err).NotTo(HaveOccurred())

		doc, err := gen.NextID(entities.KindDocument)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).To(Equal("DOCU000000000001"))
	})

	It("shares the primitive's counter with its variations", func() {
		_, err := gen.NextID(entities.KindPerson)
		Expect(err).NotTo(HaveOccurred())

		next, err := gen.NextID(entities.KindEMWPerson)
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(Equal("PERS000000000002"))
	})

	It("resumes after a seeded high-water mark", func() {
		Expect(gen.Seed(entities.KindPerson, 41)).To(Succeed())

		next, err := gen.NextID(entities.KindPerson)
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(Equal("PERS000000000042"))
	})

	It("never lowers a counter when seeding", func() {
		Expect(gen.Seed(entities.KindPerson, 10)).To(Succeed())
		Expect(gen.Seed(entities.KindPerson, 3)).To(Succeed())

		next, err := gen.NextID(entities.KindPerson)
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(Equal("PERS000000000011"))
	})

	It("rejects unregistered kinds", func() {
		_, err := gen.NextID(entities.Kind("castle"))
		Expect(err).To(MatchError(domain.ErrIllegalArgument))

		Expect(gen.Seed(entities.Kind("castle"), 1)).To(MatchError(domain.ErrIllegalArgument))
	})

	It("hands out unique ids under concurrency", func() {
		const workers = 8
		const perWorker = 50

		var wg sync.WaitGroup
		results := make(chan string, workers*perWorker)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					id, err := gen.NextID(entities.KindPerson)
					if err == nil {
						results <- id
					}
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool)
		for id := range results {
			Expect(seen[id]).To(BeFalse(), "duplicate id %s", id)
			seen[id] = true
		}
		Expect(seen).To(HaveLen(workers * perWorker))
	})
})

var _ = Describe("Suffix", func() {
	It("extracts the numeric part of a well-formed id", func() {
		n, ok := ids.Suffix("PERS000000000042", "PERS")
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(42)))
	})

	It("rejects ids with a different prefix or a malformed suffix", func() {
		_, ok := ids.Suffix("DOCU000000000042", "PERS")
		Expect(ok).To(BeFalse())

		_, ok = ids.Suffix("PERSabc", "PERS")
		Expect(ok).To(BeFalse())
	})
})
