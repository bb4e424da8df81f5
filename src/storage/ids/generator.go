// Package ids produces the type-prefixed identifiers of stored entities.
package ids

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"archivum/src/domain"
	"archivum/src/domain/entities"
)

// suffixWidth is the zero-padded width of the numeric part, e.g.
// "PERS000000000012".
const suffixWidth = 12

var maxSuffix = func() int64 {
	n := int64(1)
	for i := 0; i < suffixWidth; i++ {
		n *= 10
	}
	return n - 1
}()

// Generator hands out unique, strictly increasing identifiers per id
// prefix. Variations share their primitive's prefix and therefore its
// counter. Safe for concurrent callers.
type Generator struct {
	registry *domain.Registry

	mu       sync.Mutex
	counters map[string]int64
}

func NewGenerator(registry *domain.Registry) *Generator {
	return &Generator{
		registry: registry,
		counters: make(map[string]int64),
	}
}

// Seed raises a prefix counter to at least the given value. Used at
// startup to resume after the highest identifier already in the store.
func (g *Generator) Seed(kind entities.Kind, highest int64) error {
	info, ok := g.registry.Info(kind)
	if !ok {
		return fmt.Errorf("cannot seed ids for kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if highest > g.counters[info.IDPrefix] {
		g.counters[info.IDPrefix] = highest
	}
	return nil
}

// NextID returns the next identifier for the kind. Exhaustion of the
// numeric space is a fatal configuration error, not a caller-visible one.
func (g *Generator) NextID(kind entities.Kind) (string, error) {
	info, ok := g.registry.Info(kind)
	if !ok {
		return "", fmt.Errorf("cannot generate id for kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	next := g.counters[info.IDPrefix] + 1
	if next > maxSuffix {
		panic(fmt.Sprintf("id space exhausted for prefix %s", info.IDPrefix))
	}
	g.counters[info.IDPrefix] = next
	return fmt.Sprintf("%s%0*d", info.IDPrefix, suffixWidth, next), nil
}

// Suffix extracts the numeric part of an identifier with the given prefix.
// The second return is false when the id does not match the prefix format.
func Suffix(id, prefix string) (int64, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(id[len(prefix):], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
