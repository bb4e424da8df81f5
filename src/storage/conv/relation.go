package conv

import (
	"archivum/src/domain/entities"
	"archivum/src/graph"
)

// Endpoint ids and kinds are written onto the edge itself. That keeps
// decoding free of endpoint lookups and makes relations findable by
// property queries.
var (
	RelationTypeID     = PropertyName(entities.KindRelation, "typeId")
	RelationSourceID   = PropertyName(entities.KindRelation, "sourceId")
	RelationSourceKind = PropertyName(entities.KindRelation, "sourceKind")
	RelationTargetID   = PropertyName(entities.KindRelation, "targetId")
	RelationTargetKind = PropertyName(entities.KindRelation, "targetKind")
	relationAccepted   = PropertyName(entities.KindRelation, "accepted")
)

type relationConverter struct{}

func (relationConverter) Kind() entities.Kind {
	return entities.KindRelation
}

func (relationConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	rel, ok := e.(*entities.Relation)
	if !ok {
		return nil, typeMismatch(entities.KindRelation, e)
	}
	props := graph.Properties{}
	putString(props, RelationTypeID, rel.TypeID)
	putString(props, RelationSourceID, rel.SourceID)
	putString(props, RelationSourceKind, rel.SourceKind.String())
	putString(props, RelationTargetID, rel.TargetID)
	putString(props, RelationTargetKind, rel.TargetKind.String())
	putBool(props, relationAccepted, rel.Accepted)
	return props, nil
}

func (relationConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	rel, ok := e.(*entities.Relation)
	if !ok {
		return typeMismatch(entities.KindRelation, e)
	}
	r := reader{props: props}
	rel.TypeID = r.string(RelationTypeID)
	rel.SourceID = r.string(RelationSourceID)
	rel.SourceKind = r.kind(RelationSourceKind)
	rel.TargetID = r.string(RelationTargetID)
	rel.TargetKind = r.kind(RelationTargetKind)
	rel.Accepted = r.bool(relationAccepted)
	return r.err
}

func (relationConverter) FieldNames() []string {
	return []string{
		RelationTypeID,
		RelationSourceID, RelationSourceKind,
		RelationTargetID, RelationTargetKind,
		relationAccepted,
	}
}
