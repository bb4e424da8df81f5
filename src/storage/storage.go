// Package storage implements the versioned graph storage engine: add, get,
// update, variant promotion, PID assignment and deletion of domain
// entities, system entities and relations, with optimistic concurrency per
// (id, kind) lineage.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/graph"
	"archivum/src/storage/conv"
	"archivum/src/storage/ids"
)

// GraphStorage orchestrates every storage operation. Each public method
// owns exactly one transaction on the graph store: it commits on success
// and rolls back before any error reaches the caller. No transaction ever
// survives a method boundary.
type GraphStorage struct {
	logger     *slog.Logger
	store      graph.Store
	registry   *domain.Registry
	converters *conv.Set
	ids        *ids.Generator
}

func NewGraphStorage(logger *slog.Logger, store graph.Store, registry *domain.Registry) *GraphStorage {
	return &GraphStorage{
		logger:     logger,
		store:      store,
		registry:   registry,
		converters: conv.NewSet(registry),
		ids:        ids.NewGenerator(registry),
	}
}

// Initialize seeds the id counters from the highest identifiers already in
// the store, so restarts never re-issue an id.
func (s *GraphStorage) Initialize(ctx context.Context) error {
	return s.inTx(ctx, func(tx graph.Tx) error {
		for _, kind := range s.registry.Kinds() {
			info, _ := s.registry.Info(kind)
			if !info.IsPrimitive() {
				continue
			}

			var elemIDs []string
			if info.Category == domain.CategoryRelation {
				edges, err := tx.Edges(ctx, graph.Query{Label: kind.String()})
				if err != nil {
					return fmt.Errorf("GraphStorage.Initialize - scanning %s edges: %w", kind, err)
				}
				for _, e := range edges {
					id, err := conv.ID(e.Props)
					if err != nil {
						return err
					}
					elemIDs = append(elemIDs, id)
				}
			} else {
				nodes, err := tx.Nodes(ctx, graph.Query{Label: kind.String()})
				if err != nil {
					return fmt.Errorf("GraphStorage.Initialize - scanning %s nodes: %w", kind, err)
				}
				for _, n := range nodes {
					id, err := conv.ID(n.Props)
					if err != nil {
						return err
					}
					elemIDs = append(elemIDs, id)
				}
			}

			for _, id := range elemIDs {
				if suffix, ok := ids.Suffix(id, info.IDPrefix); ok {
					if err := s.ids.Seed(kind, suffix); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

// Close closes the underlying graph store.
func (s *GraphStorage) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

// IsAvailable delegates the bounded health check to the store.
func (s *GraphStorage) IsAvailable(ctx context.Context) bool {
	return s.store.IsAvailable(ctx)
}

// inTx runs fn inside a single transaction. Rollback is deferred
// unconditionally; adapters treat rollback-after-commit as a no-op.
func (s *GraphStorage) inTx(ctx context.Context, fn func(tx graph.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *GraphStorage) domainInfo(kind entities.Kind) (domain.KindInfo, error) {
	info, ok := s.registry.Info(kind)
	if !ok {
		return domain.KindInfo{}, fmt.Errorf("unregistered kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	if info.Category != domain.CategoryDomain {
		return domain.KindInfo{}, fmt.Errorf("kind %q is not a domain entity: %w", kind, domain.ErrIllegalArgument)
	}
	return info, nil
}

func (s *GraphStorage) systemInfo(kind entities.Kind) (domain.KindInfo, error) {
	info, ok := s.registry.Info(kind)
	if !ok {
		return domain.KindInfo{}, fmt.Errorf("unregistered kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	if info.Category != domain.CategorySystem {
		return domain.KindInfo{}, fmt.Errorf("kind %q is not a system entity: %w", kind, domain.ErrIllegalArgument)
	}
	return info, nil
}

// duplicateNode creates a structurally independent copy of a node: same
// labels, same scalar properties, none of the attached edges. The copy is
// the new latest revision once its rev is bumped; the original stays
// retrievable by revision number.
func duplicateNode(ctx context.Context, tx graph.Tx, node graph.Node) (graph.NodeHandle, error) {
	handle, err := tx.CreateNode(ctx, append([]string(nil), node.Labels...), node.Props.Copy())
	if err != nil {
		return graph.NodeHandle{}, fmt.Errorf("duplicating node: %w", err)
	}
	return handle, nil
}

// duplicateEdge copies an edge between the same endpoints.
func duplicateEdge(ctx context.Context, tx graph.Tx, edge graph.Edge) (graph.EdgeHandle, error) {
	handle, err := tx.CreateEdge(ctx, edge.Source, edge.Target,
		append([]string(nil), edge.Labels...), edge.Props.Copy())
	if err != nil {
		return graph.EdgeHandle{}, fmt.Errorf("duplicating edge: %w", err)
	}
	return handle, nil
}
