// Package graph defines the capability port over the underlying
// labeled-property graph. The storage engine talks only to these
// interfaces; Postgres, Neo4j and the in-memory store implement them.
package graph

import "context"

// Properties is the scalar property map of a node or edge. Values are
// JSON-compatible: string, bool, int/int64/float64 or []string. Nested maps
// are not supported by every backend and must be encoded by the caller.
type Properties map[string]any

// Copy returns an independent shallow copy; []string values are cloned so
// no live references cross the adapter boundary.
func (p Properties) Copy() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		if s, ok := v.([]string); ok {
			out[k] = append([]string(nil), s...)
			continue
		}
		out[k] = v
	}
	return out
}

// NodeHandle is an opaque value reference to a stored node. It is only
// meaningful within the store that issued it.
type NodeHandle struct {
	ID int64
}

// EdgeHandle is an opaque value reference to a stored edge.
type EdgeHandle struct {
	ID int64
}

// Node is a snapshot of a stored node. Mutating it has no effect on the
// store; writes go through Tx methods with the handle.
type Node struct {
	Handle NodeHandle
	Labels []string
	Props  Properties
}

// Edge is a snapshot of a stored edge.
type Edge struct {
	Handle EdgeHandle
	Source NodeHandle
	Target NodeHandle
	Labels []string
	Props  Properties
}

// HasLabel reports whether the node carries the given type label.
func (n Node) HasLabel(label string) bool {
	return hasLabel(n.Labels, label)
}

func (e Edge) HasLabel(label string) bool {
	return hasLabel(e.Labels, label)
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// Direction selects which edges of a node to traverse.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

// Query filters nodes or edges. A zero Label matches every label.
type Query struct {
	Label  string
	Has    Properties
	HasNot []string
}

// Store is a connection to a graph database.
type Store interface {
	// Begin opens a transaction. Every storage-engine operation runs in
	// exactly one transaction; the store serializes concurrent ones.
	Begin(ctx context.Context) (Tx, error)
	// IsAvailable is a bounded health check.
	IsAvailable(ctx context.Context) bool
	Close(ctx context.Context) error
}

// Tx is a graph transaction. Rollback after Commit must be a no-op so
// callers can `defer tx.Rollback(ctx)` unconditionally.
type Tx interface {
	CreateNode(ctx context.Context, labels []string, props Properties) (NodeHandle, error)
	CreateEdge(ctx context.Context, source, target NodeHandle, labels []string, props Properties) (EdgeHandle, error)

	// Node and Edge return found=false, not an error, when the handle does
	// not resolve.
	Node(ctx context.Context, h NodeHandle) (Node, bool, error)
	Edge(ctx context.Context, h EdgeHandle) (Edge, bool, error)

	// SetNodeProperties merges props into the node; existing keys are
	// overwritten, others are left alone.
	SetNodeProperties(ctx context.Context, h NodeHandle, props Properties) error
	SetEdgeProperties(ctx context.Context, h EdgeHandle, props Properties) error
	RemoveNodeProperties(ctx context.Context, h NodeHandle, names ...string) error
	RemoveEdgeProperties(ctx context.Context, h EdgeHandle, names ...string) error
	AddNodeLabel(ctx context.Context, h NodeHandle, label string) error

	DeleteNode(ctx context.Context, h NodeHandle) error
	DeleteEdge(ctx context.Context, h EdgeHandle) error

	Nodes(ctx context.Context, q Query) ([]Node, error)
	Edges(ctx context.Context, q Query) ([]Edge, error)
	// NodeEdges returns the edges attached to a node in the given
	// direction, any label.
	NodeEdges(ctx context.Context, h NodeHandle, dir Direction) ([]Edge, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
