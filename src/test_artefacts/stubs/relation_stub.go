package stubs

import (
	"archivum/src/domain/entities"
)

type RelationTypeStub struct {
	relationType entities.RelationType
}

func NewRelationTypeStub() RelationTypeStub {
	return RelationTypeStub{
		relationType: entities.RelationType{
			RegularName: "isRelatedTo",
			InverseName: "isRelatedTo",
			SourceKind:  entities.KindPerson,
			TargetKind:  entities.KindPerson,
		},
	}
}

func (rs RelationTypeStub) WithNames(regular, inverse string) RelationTypeStub {
	rs.relationType.RegularName = regular
	rs.relationType.InverseName = inverse
	return rs
}

func (rs RelationTypeStub) WithSymmetric(symmetric bool) RelationTypeStub {
	rs.relationType.Symmetric = symmetric
	return rs
}

func (rs RelationTypeStub) WithReflexive(reflexive bool) RelationTypeStub {
	rs.relationType.Reflexive = reflexive
	return rs
}

func (rs RelationTypeStub) WithKinds(source, target entities.Kind) RelationTypeStub {
	rs.relationType.SourceKind = source
	rs.relationType.TargetKind = target
	return rs
}

func (rs RelationTypeStub) Get() *entities.RelationType {
	rt := rs.relationType
	return &rt
}

type RelationStub struct {
	relation entities.Relation
}

func NewRelationStub(typeID, sourceID, targetID string) RelationStub {
	return RelationStub{
		relation: entities.Relation{
			TypeID:     typeID,
			SourceID:   sourceID,
			SourceKind: entities.KindPerson,
			TargetID:   targetID,
			TargetKind: entities.KindPerson,
			Accepted:   true,
		},
	}
}

func (rs RelationStub) WithKinds(source, target entities.Kind) RelationStub {
	rs.relation.SourceKind = source
	rs.relation.TargetKind = target
	return rs
}

func (rs RelationStub) WithRev(rev int) RelationStub {
	rs.relation.Rev = rev
	return rs
}

func (rs RelationStub) WithID(id string) RelationStub {
	rs.relation.ID = id
	return rs
}

func (rs RelationStub) WithAccepted(accepted bool) RelationStub {
	rs.relation.Accepted = accepted
	return rs
}

func (rs RelationStub) Get() *entities.Relation {
	r := rs.relation
	return &r
}
