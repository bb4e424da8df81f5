// Package conv maps typed entities to and from graph property maps. Every
// kind has a hand-written converter; the administrative fields (id, rev,
// pid, created, modified) are handled centrally so the revision logic lives
// in one place.
package conv

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/graph"
)

// Reserved administrative property names. Domain fields are namespaced as
// "<kind>:<field>" and can never collide with these.
const (
	PropID       = "id"
	PropRev      = "rev"
	PropPID      = "pid"
	PropCreated  = "created"
	PropModified = "modified"
)

// PropertyName namespaces a domain field name under its kind. Names not
// starting with a letter are stored as-is.
func PropertyName(kind entities.Kind, field string) string {
	if field == "" {
		return string(kind) + ":"
	}
	for _, r := range field {
		if !unicode.IsLetter(r) {
			return field
		}
		break
	}
	return string(kind) + ":" + field
}

// Converter maps the non-administrative fields of one kind.
type Converter interface {
	Kind() entities.Kind
	// ToProperties writes the domain fields. Zero scalars and empty
	// collections are omitted so storage never distinguishes empty from
	// absent.
	ToProperties(e entities.Entity) (graph.Properties, error)
	// FromProperties fills the domain fields from stored properties.
	// Absent collections come back as empty, not nil.
	FromProperties(e entities.Entity, props graph.Properties) error
	// FieldNames lists every property name the converter may write, used
	// to remove now-empty fields on in-place updates.
	FieldNames() []string
}

// Set holds the converters for all registered kinds.
type Set struct {
	registry *domain.Registry
	byKind   map[entities.Kind]Converter
}

func NewSet(registry *domain.Registry) *Set {
	s := &Set{
		registry: registry,
		byKind:   make(map[entities.Kind]Converter),
	}
	for _, c := range []Converter{
		personConverter{},
		emwPersonConverter{},
		documentConverter{},
		emwDocumentConverter{},
		userConverter{},
		relationTypeConverter{},
		relationConverter{},
	} {
		s.byKind[c.Kind()] = c
	}
	return s
}

// For returns the converter of a kind.
func (s *Set) For(kind entities.Kind) (Converter, error) {
	c, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no converter for kind %q: %w", kind, domain.ErrInstantiation)
	}
	return c, nil
}

// CompositeProperties writes domain fields plus the administrative block.
func (s *Set) CompositeProperties(e entities.Entity) (graph.Properties, error) {
	c, err := s.For(e.Kind())
	if err != nil {
		return nil, err
	}
	props, err := c.ToProperties(e)
	if err != nil {
		return nil, err
	}
	if err := writeMeta(props, e.Meta()); err != nil {
		return nil, err
	}
	return props, nil
}

// UpdateProperties writes only the domain fields of e. The second return
// lists properties to remove: fields the converter owns but did not write,
// i.e. fields that became empty.
func (s *Set) UpdateProperties(e entities.Entity) (graph.Properties, []string, error) {
	c, err := s.For(e.Kind())
	if err != nil {
		return nil, nil, err
	}
	props, err := c.ToProperties(e)
	if err != nil {
		return nil, nil, err
	}
	var removals []string
	for _, name := range c.FieldNames() {
		if _, ok := props[name]; !ok {
			removals = append(removals, name)
		}
	}
	return props, removals, nil
}

// Decode instantiates an entity of the kind and fills it, administrative
// fields included.
func (s *Set) Decode(kind entities.Kind, props graph.Properties) (entities.Entity, error) {
	e, err := s.registry.New(kind)
	if err != nil {
		return nil, err
	}
	if err := s.DecodeInto(e, props); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeInto fills an existing entity from stored properties.
func (s *Set) DecodeInto(e entities.Entity, props graph.Properties) error {
	c, err := s.For(e.Kind())
	if err != nil {
		return err
	}
	if err := readMeta(props, e.Meta()); err != nil {
		return err
	}
	return c.FromProperties(e, props)
}

// UpdateNodeModifiedAndRev stamps modified and bumps rev by one relative to
// the value read from the node inside the same transaction. Returns the new
// revision.
func UpdateNodeModifiedAndRev(ctx context.Context, tx graph.Tx, h graph.NodeHandle, change entities.Change) (int, error) {
	node, ok, err := tx.Node(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("reading node for rev bump: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("node vanished during rev bump: %w", domain.ErrNotFound)
	}
	return bumpRev(node.Props, change, func(p graph.Properties) error {
		return tx.SetNodeProperties(ctx, h, p)
	})
}

// UpdateEdgeModifiedAndRev is the edge counterpart of
// UpdateNodeModifiedAndRev.
func UpdateEdgeModifiedAndRev(ctx context.Context, tx graph.Tx, h graph.EdgeHandle, change entities.Change) (int, error) {
	edge, ok, err := tx.Edge(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("reading edge for rev bump: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("edge vanished during rev bump: %w", domain.ErrNotFound)
	}
	return bumpRev(edge.Props, change, func(p graph.Properties) error {
		return tx.SetEdgeProperties(ctx, h, p)
	})
}

func bumpRev(props graph.Properties, change entities.Change, write func(graph.Properties) error) (int, error) {
	rev, err := intProp(props, PropRev)
	if err != nil {
		return 0, err
	}
	newRev := rev + 1
	stamp, err := encodeChange(change)
	if err != nil {
		return 0, err
	}
	if err := write(graph.Properties{PropRev: newRev, PropModified: stamp}); err != nil {
		return 0, err
	}
	return newRev, nil
}

// Rev reads the revision property of a stored element.
func Rev(props graph.Properties) (int, error) {
	return intProp(props, PropRev)
}

// ID reads the id property of a stored element.
func ID(props graph.Properties) (string, error) {
	v, ok := props[PropID]
	if !ok {
		return "", fmt.Errorf("element has no id property: %w", domain.ErrConversion)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("id property is %T, not string: %w", v, domain.ErrConversion)
	}
	return s, nil
}

func writeMeta(props graph.Properties, m *entities.Metadata) error {
	props[PropID] = m.ID
	props[PropRev] = m.Rev
	if m.PID != "" {
		props[PropPID] = m.PID
	}
	created, err := encodeChange(m.Created)
	if err != nil {
		return err
	}
	modified, err := encodeChange(m.Modified)
	if err != nil {
		return err
	}
	props[PropCreated] = created
	props[PropModified] = modified
	return nil
}

func readMeta(props graph.Properties, m *entities.Metadata) error {
	r := reader{props: props}
	m.ID = r.string(PropID)
	m.PID = r.string(PropPID)
	m.Created = r.change(PropCreated)
	m.Modified = r.change(PropModified)
	if r.err != nil {
		return r.err
	}
	rev, err := intProp(props, PropRev)
	if err != nil {
		return err
	}
	m.Rev = rev
	return nil
}

// Change stamps are JSON-encoded into a single string property; not every
// backend can store nested maps.
func encodeChange(c entities.Change) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding change stamp: %w", domain.ErrConversion)
	}
	return string(raw), nil
}

func decodeChange(raw string) (entities.Change, error) {
	var c entities.Change
	if raw == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, fmt.Errorf("decoding change stamp %q: %w", raw, domain.ErrConversion)
	}
	return c, nil
}

func intProp(props graph.Properties, name string) (int, error) {
	v, ok := props[name]
	if !ok {
		return 0, fmt.Errorf("element has no %s property: %w", name, domain.ErrConversion)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("property %s is %T, not a number: %w", name, v, domain.ErrConversion)
	}
}

// put helpers omit zero values so storage never records empty fields.

func putString(props graph.Properties, name, value string) {
	if value != "" {
		props[name] = value
	}
}

func putBool(props graph.Properties, name string, value bool) {
	if value {
		props[name] = value
	}
}

func putStrings(props graph.Properties, name string, values []string) {
	if len(values) > 0 {
		props[name] = append([]string(nil), values...)
	}
}

// reader decodes properties, remembering the first failure so converters
// read straight through without per-field error plumbing.
type reader struct {
	props graph.Properties
	err   error
}

func (r *reader) string(name string) string {
	v, ok := r.props[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(name, v, "string")
		return ""
	}
	return s
}

func (r *reader) bool(name string) bool {
	v, ok := r.props[name]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(name, v, "bool")
		return false
	}
	return b
}

func (r *reader) strings(name string) []string {
	v, ok := r.props[name]
	if !ok {
		return []string{}
	}
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				r.fail(name, item, "string element")
				return []string{}
			}
			out = append(out, str)
		}
		return out
	default:
		r.fail(name, v, "string slice")
		return []string{}
	}
}

func (r *reader) datable(name string) entities.Datable {
	return entities.Datable(r.string(name))
}

func (r *reader) kind(name string) entities.Kind {
	return entities.Kind(r.string(name))
}

func (r *reader) change(name string) entities.Change {
	c, err := decodeChange(r.string(name))
	if err != nil && r.err == nil {
		r.err = err
	}
	return c
}

func typeMismatch(kind entities.Kind, e entities.Entity) error {
	return fmt.Errorf("converter for %q got %T: %w", kind, e, domain.ErrConversion)
}

func (r *reader) fail(name string, v any, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("property %s is %T, want %s: %w", name, v, want, domain.ErrConversion)
	}
}
