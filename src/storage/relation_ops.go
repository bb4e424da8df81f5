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

// AddRelation stores a new edge between the latest revisions of its
// endpoints and returns its generated id. The declared relation type
// governs admission: reflexivity, allowed endpoint kinds and, for symmetric
// types, canonical endpoint order. An already existing equivalent relation
// is not duplicated; its id is returned instead.
func (s *GraphStorage) AddRelation(ctx context.Context, rel *entities.Relation, change entities.Change) (string, error) {
	var id string
	err := s.inTx(ctx, func(tx graph.Tx) error {
		rt, err := s.relationTypeByID(ctx, tx, rel.TypeID)
		if err != nil {
			return err
		}
		if err := s.checkEndpointKinds(rel, rt); err != nil {
			return err
		}
		if rel.SourceID == rel.TargetID && !rt.Reflexive {
			return fmt.Errorf("relation type %q is not reflexive, got %s on both ends: %w",
				rt.RegularName, rel.SourceID, domain.ErrIllegalArgument)
		}
		if rt.Symmetric {
			rel.Canonicalize()
		}

		source, found, err := lowlevel.LatestNodeByID(ctx, tx, "", rel.SourceID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.AddRelation - source %s not found: %w", rel.SourceID, domain.ErrNotFound)
		}
		target, found, err := lowlevel.LatestNodeByID(ctx, tx, "", rel.TargetID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.AddRelation - target %s not found: %w", rel.TargetID, domain.ErrNotFound)
		}

		existing, err := lowlevel.FindLatestEdgesByProperties(ctx, tx, entities.KindRelation.String(), graph.Properties{
			conv.RelationTypeID:   rel.TypeID,
			conv.RelationSourceID: rel.SourceID,
			conv.RelationTargetID: rel.TargetID,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			id, err = conv.ID(existing[0].Props)
			if err != nil {
				return err
			}
			s.logger.Warn("relation already exists, skipping duplicate",
				"id", id, "typeId", rel.TypeID, "sourceId", rel.SourceID, "targetId", rel.TargetID)
			return nil
		}

		id, err = s.ids.NextID(entities.KindRelation)
		if err != nil {
			return err
		}
		meta := rel.Meta()
		meta.ID = id
		meta.Rev = 1
		meta.PID = ""
		meta.Created = change
		meta.Modified = change

		props, err := s.converters.CompositeProperties(rel)
		if err != nil {
			return err
		}
		_, err = tx.CreateEdge(ctx, source.Handle, target.Handle,
			[]string{entities.KindRelation.String()}, props)
		if err != nil {
			return fmt.Errorf("GraphStorage.AddRelation - creating edge: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetRelation returns the latest revision of a relation, or nil when the id
// is unknown.
func (s *GraphStorage) GetRelation(ctx context.Context, id string) (*entities.Relation, error) {
	var result *entities.Relation
	err := s.inTx(ctx, func(tx graph.Tx) error {
		edge, found, err := lowlevel.LatestEdgeByID(ctx, tx, entities.KindRelation.String(), id)
		if err != nil || !found {
			return err
		}
		result, err = s.decodeRelation(edge.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetRelationRevision returns the exact revision of a relation, nil unless
// that revision carries a PID.
func (s *GraphStorage) GetRelationRevision(ctx context.Context, id string, rev int) (*entities.Relation, error) {
	var result *entities.Relation
	err := s.inTx(ctx, func(tx graph.Tx) error {
		edge, found, err := lowlevel.EdgeWithRevision(ctx, tx, entities.KindRelation.String(), id, rev)
		if err != nil || !found {
			return err
		}
		if _, ok := edge.Props[conv.PropPID]; !ok {
			return nil
		}
		result, err = s.decodeRelation(edge.Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateRelation writes new mutable fields onto the latest edge in place.
// Endpoints and type are fixed at creation; the accepted flag is the usual
// mutation. The optimistic-concurrency contract matches UpdateEntity.
func (s *GraphStorage) UpdateRelation(ctx context.Context, rel *entities.Relation, change entities.Change) error {
	meta := rel.Meta()
	return s.inTx(ctx, func(tx graph.Tx) error {
		edge, found, err := lowlevel.LatestEdgeByID(ctx, tx, entities.KindRelation.String(), meta.ID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.UpdateRelation - no relation with id %s: %w", meta.ID, domain.ErrUpdateConflict)
		}
		if err := checkNextRev(entities.KindRelation, meta, edge.Props); err != nil {
			return err
		}
		props, removals, err := s.converters.UpdateProperties(rel)
		if err != nil {
			return err
		}
		if err := tx.SetEdgeProperties(ctx, edge.Handle, props); err != nil {
			return fmt.Errorf("GraphStorage.UpdateRelation - writing fields: %w", err)
		}
		if err := tx.RemoveEdgeProperties(ctx, edge.Handle, removals...); err != nil {
			return fmt.Errorf("GraphStorage.UpdateRelation - clearing emptied fields: %w", err)
		}
		_, err = conv.UpdateEdgeModifiedAndRev(ctx, tx, edge.Handle, change)
		return err
	})
}

// SetRelationPID publishes a relation under a persistent identifier, with
// the same duplicate-and-bump behavior as SetEntityPID.
func (s *GraphStorage) SetRelationPID(ctx context.Context, id, pid string) error {
	return s.inTx(ctx, func(tx graph.Tx) error {
		edge, found, err := lowlevel.LatestEdgeByID(ctx, tx, entities.KindRelation.String(), id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("GraphStorage.SetRelationPID - no relation with id %s: %w", id, domain.ErrNotFound)
		}
		if _, ok := edge.Props[conv.PropPID]; ok {
			return fmt.Errorf("GraphStorage.SetRelationPID - %s already has a pid: %w", id, domain.ErrIllegalState)
		}
		rev, err := conv.Rev(edge.Props)
		if err != nil {
			return err
		}
		copyHandle, err := duplicateEdge(ctx, tx, edge)
		if err != nil {
			return err
		}
		err = tx.SetEdgeProperties(ctx, copyHandle, graph.Properties{
			conv.PropPID: pid,
			conv.PropRev: rev + 1,
		})
		if err != nil {
			return fmt.Errorf("GraphStorage.SetRelationPID - writing pid: %w", err)
		}
		return nil
	})
}

// FindRelation looks a relation up by type and endpoints, or nil. Symmetric
// types match regardless of the order the endpoints are passed in.
func (s *GraphStorage) FindRelation(ctx context.Context, typeID, sourceID, targetID string) (*entities.Relation, error) {
	var result *entities.Relation
	err := s.inTx(ctx, func(tx graph.Tx) error {
		rt, err := s.relationTypeByID(ctx, tx, typeID)
		if err != nil {
			return err
		}
		if rt.Symmetric && targetID < sourceID {
			sourceID, targetID = targetID, sourceID
		}
		edges, err := lowlevel.FindLatestEdgesByProperties(ctx, tx, entities.KindRelation.String(), graph.Properties{
			conv.RelationTypeID:   typeID,
			conv.RelationSourceID: sourceID,
			conv.RelationTargetID: targetID,
		})
		if err != nil || len(edges) == 0 {
			return err
		}
		result, err = s.decodeRelation(edges[0].Props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetRelations returns the latest revision of every stored relation.
func (s *GraphStorage) GetRelations(ctx context.Context) ([]*entities.Relation, error) {
	var result []*entities.Relation
	err := s.inTx(ctx, func(tx graph.Tx) error {
		edges, err := lowlevel.LatestEdgesOfKind(ctx, tx, entities.KindRelation.String())
		if err != nil {
			return err
		}
		result, err = s.decodeRelations(edges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RelationsBySource returns the latest relations leaving the entity.
func (s *GraphStorage) RelationsBySource(ctx context.Context, sourceID string) ([]*entities.Relation, error) {
	var result []*entities.Relation
	err := s.inTx(ctx, func(tx graph.Tx) error {
		edges, err := lowlevel.EdgesBySourceID(ctx, tx, entities.KindRelation.String(), sourceID)
		if err != nil {
			return err
		}
		result, err = s.decodeRelations(edges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RelationsByTarget returns the latest relations arriving at the entity.
func (s *GraphStorage) RelationsByTarget(ctx context.Context, targetID string) ([]*entities.Relation, error) {
	var result []*entities.Relation
	err := s.inTx(ctx, func(tx graph.Tx) error {
		edges, err := lowlevel.EdgesByTargetID(ctx, tx, entities.KindRelation.String(), targetID)
		if err != nil {
			return err
		}
		result, err = s.decodeRelations(edges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountRelations counts the logical relations in the store.
func (s *GraphStorage) CountRelations(ctx context.Context) (int, error) {
	var count int
	err := s.inTx(ctx, func(tx graph.Tx) error {
		var err error
		count, err = lowlevel.CountEdgesOfKind(ctx, tx, entities.KindRelation.String())
		return err
	})
	return count, err
}

// RelationExists reports whether any revision of the relation id exists.
func (s *GraphStorage) RelationExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.inTx(ctx, func(tx graph.Tx) error {
		var err error
		exists, err = lowlevel.EdgeExists(ctx, tx, entities.KindRelation.String(), id)
		return err
	})
	return exists, err
}

func (s *GraphStorage) relationTypeByID(ctx context.Context, tx graph.Tx, typeID string) (*entities.RelationType, error) {
	node, found, err := lowlevel.LatestNodeByID(ctx, tx, entities.KindRelationType.String(), typeID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("unknown relation type %s: %w", typeID, domain.ErrNotFound)
	}
	e, err := s.converters.Decode(entities.KindRelationType, node.Props)
	if err != nil {
		return nil, err
	}
	rt, ok := e.(*entities.RelationType)
	if !ok {
		return nil, fmt.Errorf("decoding relation type %s got %T: %w", typeID, e, domain.ErrConversion)
	}
	return rt, nil
}

// checkEndpointKinds verifies the relation's endpoint kinds against the
// type's declaration. Declarations name primitives; a variation endpoint is
// admitted through its primitive.
func (s *GraphStorage) checkEndpointKinds(rel *entities.Relation, rt *entities.RelationType) error {
	check := func(declared, got entities.Kind, side string) error {
		if declared == "" || got == "" {
			return nil
		}
		primitive, err := s.registry.PrimitiveOf(got)
		if err != nil {
			return err
		}
		if got != declared && primitive != declared {
			return fmt.Errorf("relation type %q does not accept %s kind %q: %w",
				rt.RegularName, side, got, domain.ErrIllegalArgument)
		}
		return nil
	}
	if err := check(rt.SourceKind, rel.SourceKind, "source"); err != nil {
		return err
	}
	return check(rt.TargetKind, rel.TargetKind, "target")
}

func (s *GraphStorage) decodeRelation(props graph.Properties) (*entities.Relation, error) {
	e, err := s.converters.Decode(entities.KindRelation, props)
	if err != nil {
		return nil, err
	}
	rel, ok := e.(*entities.Relation)
	if !ok {
		return nil, fmt.Errorf("decoding relation got %T: %w", e, domain.ErrConversion)
	}
	return rel, nil
}

func (s *GraphStorage) decodeRelations(edges []graph.Edge) ([]*entities.Relation, error) {
	var out []*entities.Relation
	for _, e := range edges {
		rel, err := s.decodeRelation(e.Props)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}
