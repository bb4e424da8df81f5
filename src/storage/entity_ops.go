package storage

import (
	"context"
	"fmt"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/graph"
	"archivum/src/storage/conv"
	"archivum/src/storage/lowlevel"
)

func labelsFor(info domain.KindInfo) []string {
	if info.IsPrimitive() {
		return []string{info.Kind.String()}
	}
	return []string{info.Primitive.String(), info.Kind.String()}
}

// AddDomainEntity stores a new domain entity at revision 1 and returns its
// generated id. A variation kind writes both the primitive's and its own
// property set onto one node carrying both type labels.
func (s *GraphStorage) AddDomainEntity(ctx context.Context, e entities.Entity, change entities.Change) (string, error) {
	info, err := s.domainInfo(e.Kind())
	if err != nil {
		return "", err
	}
	id, err := s.ids.NextID(e.Kind())
	if err != nil {
		return "", err
	}
	meta := e.Meta()
	meta.ID = id
	meta.Rev = 1
	meta.PID = ""
	meta.Created = change
	meta.Modified = change

	props, err := s.converters.CompositeProperties(e)
	if err != nil {
		return "", err
	}
	err = s.inTx(ctx, func(tx graph.Tx) error {
		if _, err := tx.CreateNode(ctx, labelsFor(info), props); err != nil {
			return fmt.Errorf("GraphStorage.AddDomainEntity - creating %s node: %w", e.Kind(), err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AddSystemEntity stores a new system entity; the change stamps are tied to
// the call itself rather than supplied by a VRE user.
func (s *GraphStorage) AddSystemEntity(ctx context.Context, e entities.Entity) (string, error) {
	info, err := s.systemInfo(e.Kind())
	if err != nil {
		return "", err
	}
	id, err := s.ids.NextID(e.Kind())
	if err != nil {
		return "", err
	}
	change := entities.NewChange("system", "")
	meta := e.Meta()
	meta.ID = id
	meta.Rev = 1
	meta.PID = ""
	meta.Created = change
	meta.Modified = change

	props, err := s.converters.CompositeProperties(e)
	if err != nil {
		return "", err
	}
	err = s.inTx(ctx, func(tx graph.Tx) error {
		if _, err := tx.CreateNode(ctx, labelsFor(info), props); err != nil {
			return fmt.Errorf("GraphStorage.AddSystemEntity - creating %s node: %w", e.Kind(), err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetEntity returns the latest revision of a node-backed entity, or nil if
// the id is unknown for that kind. Absence is not an error on read paths.
func (s *GraphStorage) GetEntity(ctx context.Context, kind entities.Kind, id string) (entities.Entity, error) {
	if err := s.nodeKind(kind); err != nil {
		return nil, err
	}
	var result entities.Entity
	err := s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.LatestNodeByID(ctx, tx, kind.String(), id)
		if err != nil || !found {
			return err
		}
		result, err = s.converters.Decode(kind, node.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetDefaultVariation reads the primitive's latest node for the id and
// shapes it as the requested variation kind: inherited fields filled,
// variation-specific fields zero.
func (s *GraphStorage) GetDefaultVariation(ctx context.Context, kind entities.Kind, id string) (entities.Entity, error) {
	info, err := s.domainInfo(kind)
	if err != nil {
		return nil, err
	}
	var result entities.Entity
	err = s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := s.defaultVariationNode(ctx, tx, info, id)
		if err != nil || !found {
			return err
		}
		result, err = s.converters.Decode(kind, node.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetEntityOrDefaultVariation returns the kind's own latest node when one
// exists and falls back to the primitive's shape otherwise.
func (s *GraphStorage) GetEntityOrDefaultVariation(ctx context.Context, kind entities.Kind, id string) (entities.Entity, error) {
	info, err := s.domainInfo(kind)
	if err != nil {
		return nil, err
	}
	var result entities.Entity
	err = s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.LatestNodeByID(ctx, tx, kind.String(), id)
		if err != nil {
			return err
		}
		if !found {
			node, found, err = s.defaultVariationNode(ctx, tx, info, id)
			if err != nil || !found {
				return err
			}
		}
		result, err = s.converters.Decode(kind, node.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GraphStorage) defaultVariationNode(ctx context.Context, tx graph.Tx, info domain.KindInfo, id string) (graph.Node, bool, error) {
	return lowlevel.LatestNodeByID(ctx, tx, info.Primitive.String(), id)
}

// GetRevision returns the exact revision of an entity. Only published
// revisions are addressable: a revision without a PID yields nil, as does
// an unknown id or revision.
func (s *GraphStorage) GetRevision(ctx context.Context, kind entities.Kind, id string, rev int) (entities.Entity, error) {
	if err := s.nodeKind(kind); err != nil {
		return nil, err
	}
	var result entities.Entity
	err := s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.NodeWithRevision(ctx, tx, kind.String(), id, rev)
		if err != nil || !found {
			return err
		}
		if _, ok := node.Props[conv.PropPID]; !ok {
			return nil
		}
		result, err = s.converters.Decode(kind, node.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateEntity writes new field values onto the latest node in place and
// bumps the administrative metadata. The caller must supply the intended
// new revision: exactly one higher than the stored one. No new node is
// created.
func (s *GraphStorage) UpdateEntity(ctx context.Context, e entities.Entity, change entities.Change) error {
	if err := s.nodeKind(e.Kind()); err != nil {
		return err
	}
	meta := e.Meta()
	return s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.LatestNodeByID(ctx, tx, e.Kind().String(), meta.ID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.UpdateEntity - no %s with id %s: %w", e.Kind(), meta.ID, domain.ErrUpdateConflict)
		}
		if err := checkNextRev(e.Kind(), meta, node.Props); err != nil {
			return err
		}
		props, removals, err := s.converters.UpdateProperties(e)
		if err != nil {
			return err
		}
		if err := tx.SetNodeProperties(ctx, node.Handle, props); err != nil {
			return fmt.Errorf("GraphStorage.UpdateEntity - writing fields: %w", err)
		}
		if err := tx.RemoveNodeProperties(ctx, node.Handle, removals...); err != nil {
			return fmt.Errorf("GraphStorage.UpdateEntity - clearing emptied fields: %w", err)
		}
		_, err = conv.UpdateNodeModifiedAndRev(ctx, tx, node.Handle, change)
		return err
	})
}

// AddVariant attaches a new variation to an already persisted primitive:
// the primitive's latest node is duplicated, the variation label and fields
// are added to the copy, and the revision is bumped. The pre-variant state
// stays retrievable by revision number.
func (s *GraphStorage) AddVariant(ctx context.Context, e entities.Entity, change entities.Change) error {
	info, err := s.domainInfo(e.Kind())
	if err != nil {
		return err
	}
	if info.IsPrimitive() {
		return fmt.Errorf("kind %q is a primitive, not a variation: %w", e.Kind(), domain.ErrIllegalArgument)
	}
	meta := e.Meta()
	return s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.LatestNodeByID(ctx, tx, info.Primitive.String(), meta.ID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.AddVariant - no %s with id %s: %w", info.Primitive, meta.ID, domain.ErrNotFound)
		}
		if err := checkNextRev(e.Kind(), meta, node.Props); err != nil {
			return err
		}
		hasVariant, err := lowlevel.NodeExists(ctx, tx, e.Kind().String(), meta.ID)
		if err != nil {
			return err
		}
		if hasVariant {
			return fmt.Errorf("GraphStorage.AddVariant - %s already has variant %s: %w", meta.ID, e.Kind(), domain.ErrUpdateConflict)
		}

		copyHandle, err := duplicateNode(ctx, tx, node)
		if err != nil {
			return err
		}
		if err := tx.AddNodeLabel(ctx, copyHandle, e.Kind().String()); err != nil {
			return fmt.Errorf("GraphStorage.AddVariant - labeling copy: %w", err)
		}
		// Only written fields land on the copy. Fields the variant leaves
		// empty keep their inherited value from the primitive.
		props, _, err := s.converters.UpdateProperties(e)
		if err != nil {
			return err
		}
		if err := tx.SetNodeProperties(ctx, copyHandle, props); err != nil {
			return fmt.Errorf("GraphStorage.AddVariant - writing variant fields: %w", err)
		}
		_, err = conv.UpdateNodeModifiedAndRev(ctx, tx, copyHandle, change)
		return err
	})
}

// SetEntityPID publishes an entity under a persistent identifier. The
// latest node is duplicated, the copy gets the PID and the next revision;
// the pre-PID revision stays in the store. A second assignment fails and
// leaves the stored PID untouched.
func (s *GraphStorage) SetEntityPID(ctx context.Context, kind entities.Kind, id, pid string) error {
	if _, err := s.domainInfo(kind); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.LatestNodeByID(ctx, tx, kind.String(), id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.SetEntityPID - no %s with id %s: %w", kind, id, domain.ErrNotFound)
		}
		if _, ok := node.Props[conv.PropPID]; ok {
			return fmt.Errorf("GraphStorage.SetEntityPID - %s already has a pid: %w", id, domain.ErrIllegalState)
		}
		rev, err := conv.Rev(node.Props)
		if err != nil {
			return err
		}
		copyHandle, err := duplicateNode(ctx, tx, node)
		if err != nil {
			return err
		}
		err = tx.SetNodeProperties(ctx, copyHandle, graph.Properties{
			conv.PropPID: pid,
			conv.PropRev: rev + 1,
		})
		if err != nil {
			return fmt.Errorf("GraphStorage.SetEntityPID - writing pid: %w", err)
		}
		return nil
	})
}

// DeleteDomainEntity removes every revision and variation of a primitive
// domain entity, its attached relations first, all in one transaction.
// Only the primitive kind may be deleted.
func (s *GraphStorage) DeleteDomainEntity(ctx context.Context, kind entities.Kind, id string, change entities.Change) error {
	info, err := s.domainInfo(kind)
	if err != nil {
		return err
	}
	if !info.IsPrimitive() {
		return fmt.Errorf("delete requires the primitive kind, got %q: %w", kind, domain.ErrIllegalArgument)
	}
	return s.inTx(ctx, func(tx graph.Tx) error {
		nodes, err := lowlevel.NodesByID(ctx, tx, kind.String(), id)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return fmt.Errorf("GraphStorage.DeleteDomainEntity - no %s with id %s: %w", kind, id, domain.ErrNotFound)
		}
		return s.cascadeDelete(ctx, tx, nodes)
	})
}

// DeleteSystemEntity removes every revision of a system entity and returns
// the number of nodes removed; an unknown id is not an error and yields 0.
func (s *GraphStorage) DeleteSystemEntity(ctx context.Context, kind entities.Kind, id string) (int, error) {
	if _, err := s.systemInfo(kind); err != nil {
		return 0, err
	}
	var count int
	err := s.inTx(ctx, func(tx graph.Tx) error {
		nodes, err := lowlevel.NodesByID(ctx, tx, kind.String(), id)
		if err != nil {
			return err
		}
		count = len(nodes)
		return s.cascadeDelete(ctx, tx, nodes)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteNonPersistent removes a PID-less lineage by id. It is a no-op for
// relation kinds and for lineages that turn out to be published.
func (s *GraphStorage) DeleteNonPersistent(ctx context.Context, kind entities.Kind, id string) error {
	info, ok := s.registry.Info(kind)
	if !ok {
		return fmt.Errorf("unregistered kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	if info.Category == domain.CategoryRelation {
		return nil
	}
	return s.inTx(ctx, func(tx graph.Tx) error {
		latest, found, err := lowlevel.LatestNodeByID(ctx, tx, info.Primitive.String(), id)
		if err != nil || !found {
			return err
		}
		if _, ok := latest.Props[conv.PropPID]; ok {
			s.logger.Warn("skipping cleanup of published entity", "kind", kind.String(), "id", id)
			return nil
		}
		nodes, err := lowlevel.NodesByID(ctx, tx, info.Primitive.String(), id)
		if err != nil {
			return err
		}
		return s.cascadeDelete(ctx, tx, nodes)
	})
}

// cascadeDelete removes the given nodes and every edge attached to any of
// them. Edges shared between two doomed nodes are deleted once.
func (s *GraphStorage) cascadeDelete(ctx context.Context, tx graph.Tx, nodes []graph.Node) error {
	seen := make(map[int64]bool)
	for _, node := range nodes {
		edges, err := tx.NodeEdges(ctx, node.Handle, graph.Both)
		if err != nil {
			return fmt.Errorf("collecting edges for cascade delete: %w", err)
		}
		for _, edge := range edges {
			if seen[edge.Handle.ID] {
				continue
			}
			seen[edge.Handle.ID] = true
			if err := tx.DeleteEdge(ctx, edge.Handle); err != nil {
				return fmt.Errorf("deleting edge: %w", err)
			}
		}
	}
	for _, node := range nodes {
		if err := tx.DeleteNode(ctx, node.Handle); err != nil {
			return fmt.Errorf("deleting node: %w", err)
		}
	}
	return nil
}

// FindEntityByProperty returns the first latest entity of the kind whose
// field has the given value, or nil.
func (s *GraphStorage) FindEntityByProperty(ctx context.Context, kind entities.Kind, field string, value any) (entities.Entity, error) {
	if err := s.nodeKind(kind); err != nil {
		return nil, err
	}
	name := conv.PropertyName(kind, field)
	var result entities.Entity
	err := s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.FindLatestNodeByProperty(ctx, tx, kind.String(), name, value)
		if err != nil || !found {
			return err
		}
		result, err = s.converters.Decode(kind, node.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetEntities returns the latest revision of every lineage of the kind.
func (s *GraphStorage) GetEntities(ctx context.Context, kind entities.Kind) ([]entities.Entity, error) {
	if err := s.nodeKind(kind); err != nil {
		return nil, err
	}
	var result []entities.Entity
	err := s.inTx(ctx, func(tx graph.Tx) error {
		nodes, err := lowlevel.LatestNodesOfKind(ctx, tx, kind.String())
		if err != nil {
			return err
		}
		for _, node := range nodes {
			e, err := s.converters.Decode(kind, node.Props)
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetAllVariations returns the entity in the shape of every variation
// recorded on its latest node, the primitive included. The kind must be a
// primitive.
func (s *GraphStorage) GetAllVariations(ctx context.Context, kind entities.Kind, id string) ([]entities.Entity, error) {
	info, err := s.domainInfo(kind)
	if err != nil {
		return nil, err
	}
	if !info.IsPrimitive() {
		return nil, fmt.Errorf("variations are listed from the primitive kind, got %q: %w", kind, domain.ErrIllegalArgument)
	}
	var result []entities.Entity
	err = s.inTx(ctx, func(tx graph.Tx) error {
		node, found, err := lowlevel.LatestNodeByID(ctx, tx, kind.String(), id)
		if err != nil || !found {
			return err
		}
		for _, vk := range s.registry.VariationsOf(kind) {
			if !node.HasLabel(vk.String()) {
				continue
			}
			e, err := s.converters.Decode(vk, node.Props)
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IDsOfNonPersistent lists the ids of the kind's latest elements that have
// no PID yet.
func (s *GraphStorage) IDsOfNonPersistent(ctx context.Context, kind entities.Kind) ([]string, error) {
	info, ok := s.registry.Info(kind)
	if !ok {
		return nil, fmt.Errorf("unregistered kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	var result []string
	err := s.inTx(ctx, func(tx graph.Tx) error {
		if info.Category == domain.CategoryRelation {
			edges, err := lowlevel.LatestEdgesWithoutProperty(ctx, tx, kind.String(), conv.PropPID)
			if err != nil {
				return err
			}
			for _, e := range edges {
				id, err := conv.ID(e.Props)
				if err != nil {
					return err
				}
				result = append(result, id)
			}
			return nil
		}
		nodes, err := lowlevel.LatestNodesWithoutProperty(ctx, tx, kind.String(), conv.PropPID)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			id, err := conv.ID(n.Props)
			if err != nil {
				return err
			}
			result = append(result, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountEntities counts the lineages of a node-backed kind.
func (s *GraphStorage) CountEntities(ctx context.Context, kind entities.Kind) (int, error) {
	if err := s.nodeKind(kind); err != nil {
		return 0, err
	}
	var count int
	err := s.inTx(ctx, func(tx graph.Tx) error {
		var err error
		count, err = lowlevel.CountNodesOfKind(ctx, tx, kind.String())
		return err
	})
	return count, err
}

// EntityExists reports whether any revision of the id exists for the kind.
func (s *GraphStorage) EntityExists(ctx context.Context, kind entities.Kind, id string) (bool, error) {
	if err := s.nodeKind(kind); err != nil {
		return false, err
	}
	var exists bool
	err := s.inTx(ctx, func(tx graph.Tx) error {
		var err error
		exists, err = lowlevel.NodeExists(ctx, tx, kind.String(), id)
		return err
	})
	return exists, err
}

// nodeKind rejects kinds that are not stored as nodes.
func (s *GraphStorage) nodeKind(kind entities.Kind) error {
	info, ok := s.registry.Info(kind)
	if !ok {
		return fmt.Errorf("unregistered kind %q: %w", kind, domain.ErrIllegalArgument)
	}
	if info.Category == domain.CategoryRelation {
		return fmt.Errorf("kind %q is a relation, not a node entity: %w", kind, domain.ErrIllegalArgument)
	}
	return nil
}

// checkNextRev enforces the optimistic-concurrency contract: the entity
// must claim exactly one revision above the stored element.
func checkNextRev(kind entities.Kind, meta *entities.Metadata, props graph.Properties) error {
	stored, err := conv.Rev(props)
	if err != nil {
		return err
	}
	if meta.Rev != stored+1 {
		return fmt.Errorf("%s %s: claimed rev %d, stored rev %d: %w",
			kind, meta.ID, meta.Rev, stored, domain.ErrUpdateConflict)
	}
	return nil
}
