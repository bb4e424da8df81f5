package conv

import (
	"archivum/src/domain/entities"
	"archivum/src/graph"
)

var (
	userDisplayName = PropertyName(entities.KindUser, "displayName")
	userEmail       = PropertyName(entities.KindUser, "email")
	userVREID       = PropertyName(entities.KindUser, "vreId")
	userRole        = PropertyName(entities.KindUser, "role")

	relationTypeRegularName = PropertyName(entities.KindRelationType, "regularName")
	relationTypeInverseName = PropertyName(entities.KindRelationType, "inverseName")
	relationTypeSymmetric   = PropertyName(entities.KindRelationType, "symmetric")
	relationTypeReflexive   = PropertyName(entities.KindRelationType, "reflexive")
	relationTypeSourceKind  = PropertyName(entities.KindRelationType, "sourceKind")
	relationTypeTargetKind  = PropertyName(entities.KindRelationType, "targetKind")
)

type userConverter struct{}

func (userConverter) Kind() entities.Kind {
	return entities.KindUser
}

func (userConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	u, ok := e.(*entities.User)
	if !ok {
		return nil, typeMismatch(entities.KindUser, e)
	}
	props := graph.Properties{}
	putString(props, userDisplayName, u.DisplayName)
	putString(props, userEmail, u.Email)
	putString(props, userVREID, u.VREID)
	putString(props, userRole, u.Role)
	return props, nil
}

func (userConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	u, ok := e.(*entities.User)
	if !ok {
		return typeMismatch(entities.KindUser, e)
	}
	r := reader{props: props}
	u.DisplayName = r.string(userDisplayName)
	u.Email = r.string(userEmail)
	u.VREID = r.string(userVREID)
	u.Role = r.string(userRole)
	return r.err
}

func (userConverter) FieldNames() []string {
	return []string{userDisplayName, userEmail, userVREID, userRole}
}

type relationTypeConverter struct{}

func (relationTypeConverter) Kind() entities.Kind {
	return entities.KindRelationType
}

func (relationTypeConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	rt, ok := e.(*entities.RelationType)
	if !ok {
		return nil, typeMismatch(entities.KindRelationType, e)
	}
	props := graph.Properties{}
	putString(props, relationTypeRegularName, rt.RegularName)
	putString(props, relationTypeInverseName, rt.InverseName)
	putBool(props, relationTypeSymmetric, rt.Symmetric)
	putBool(props, relationTypeReflexive, rt.Reflexive)
	putString(props, relationTypeSourceKind, rt.SourceKind.String())
	putString(props, relationTypeTargetKind, rt.TargetKind.String())
	return props, nil
}

func (relationTypeConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	rt, ok := e.(*entities.RelationType)
	if !ok {
		return typeMismatch(entities.KindRelationType, e)
	}
	r := reader{props: props}
	rt.RegularName = r.string(relationTypeRegularName)
	rt.InverseName = r.string(relationTypeInverseName)
	rt.Symmetric = r.bool(relationTypeSymmetric)
	rt.Reflexive = r.bool(relationTypeReflexive)
	rt.SourceKind = r.kind(relationTypeSourceKind)
	rt.TargetKind = r.kind(relationTypeTargetKind)
	return r.err
}

func (relationTypeConverter) FieldNames() []string {
	return []string{
		relationTypeRegularName, relationTypeInverseName,
		relationTypeSymmetric, relationTypeReflexive,
		relationTypeSourceKind, relationTypeTargetKind,
	}
}
