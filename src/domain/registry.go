package domain

import (
	"fmt"

	"archivum/src/domain/entities"
)

// Category classifies a kind's lifecycle.
type Category int

const (
	// CategoryDomain entities have variations and change-tracked mutations.
	CategoryDomain Category = iota
	// CategorySystem entities have only latest-vs-historical revisions.
	CategorySystem
	// CategoryRelation entities are stored as edges.
	CategoryRelation
)

// KindInfo is one entry of the closed type registry.
type KindInfo struct {
	Kind     entities.Kind
	Category Category
	// Primitive is the base kind this kind is a variation of. Equals Kind
	// for primitives, system entities and relations.
	Primitive entities.Kind
	// IDPrefix is the short prefix of generated identifiers. Variations
	// share their primitive's prefix because they share its id.
	IDPrefix string
	New      func() entities.Entity
}

// IsPrimitive reports whether the kind is its own base type.
func (i KindInfo) IsPrimitive() bool {
	return i.Kind == i.Primitive
}

// Registry maps every storable kind to its label, primitive and
// constructor. It replaces runtime type lookups: the set of kinds is closed
// and built once at startup, then passed by reference into the engine.
type Registry struct {
	infos map[entities.Kind]KindInfo
	order []entities.Kind
}

func NewRegistry() *Registry {
	r := &Registry{infos: make(map[entities.Kind]KindInfo)}

	r.add(KindInfo{
		Kind:      entities.KindPerson,
		Category:  CategoryDomain,
		Primitive: entities.KindPerson,
		IDPrefix:  "PERS",
		New:       func() entities.Entity { return &entities.Person{} },
	})
	r.add(KindInfo{
		Kind:      entities.KindEMWPerson,
		Category:  CategoryDomain,
		Primitive: entities.KindPerson,
		IDPrefix:  "PERS",
		New:       func() entities.Entity { return &entities.EMWPerson{} },
	})
	r.add(KindInfo{
		Kind:      entities.KindDocument,
		Category:  CategoryDomain,
		Primitive: entities.KindDocument,
		IDPrefix:  "DOCU",
		New:       func() entities.Entity { return &entities.Document{} },
	})
	r.add(KindInfo{
		Kind:      entities.KindEMWDocument,
		Category:  CategoryDomain,
		Primitive: entities.KindDocument,
		IDPrefix:  "DOCU",
		New:       func() entities.Entity { return &entities.EMWDocument{} },
	})
	r.add(KindInfo{
		Kind:      entities.KindUser,
		Category:  CategorySystem,
		Primitive: entities.KindUser,
		IDPrefix:  "USER",
		New:       func() entities.Entity { return &entities.User{} },
	})
	r.add(KindInfo{
		Kind:      entities.KindRelationType,
		Category:  CategorySystem,
		Primitive: entities.KindRelationType,
		IDPrefix:  "RELT",
		New:       func() entities.Entity { return &entities.RelationType{} },
	})
	r.add(KindInfo{
		Kind:      entities.KindRelation,
		Category:  CategoryRelation,
		Primitive: entities.KindRelation,
		IDPrefix:  "RELA",
		New:       func() entities.Entity { return &entities.Relation{} },
	})

	return r
}

func (r *Registry) add(info KindInfo) {
	r.infos[info.Kind] = info
	r.order = append(r.order, info.Kind)
}

// Info looks up a kind; the second return is false for unknown kinds.
func (r *Registry) Info(kind entities.Kind) (KindInfo, bool) {
	info, ok := r.infos[kind]
	return info, ok
}

// New instantiates an empty entity of the kind.
func (r *Registry) New(kind entities.Kind) (entities.Entity, error) {
	info, ok := r.infos[kind]
	if !ok {
		return nil, fmt.Errorf("unregistered kind %q: %w", kind, ErrInstantiation)
	}
	return info.New(), nil
}

// PrimitiveOf returns the base kind of a (possibly variation) kind.
func (r *Registry) PrimitiveOf(kind entities.Kind) (entities.Kind, error) {
	info, ok := r.infos[kind]
	if !ok {
		return "", fmt.Errorf("unregistered kind %q: %w", kind, ErrIllegalArgument)
	}
	return info.Primitive, nil
}

// IsPrimitive reports whether the kind is a base type. Unknown kinds are
// not primitive.
func (r *Registry) IsPrimitive(kind entities.Kind) bool {
	info, ok := r.infos[kind]
	return ok && info.IsPrimitive()
}

// VariationsOf lists the kinds whose primitive is the given kind, the
// primitive itself included, in registration order.
func (r *Registry) VariationsOf(primitive entities.Kind) []entities.Kind {
	var kinds []entities.Kind
	for _, k := range r.order {
		if r.infos[k].Primitive == primitive {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Kinds lists every registered kind in registration order.
func (r *Registry) Kinds() []entities.Kind {
	return append([]entities.Kind(nil), r.order...)
}
