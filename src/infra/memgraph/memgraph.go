// Package memgraph is an in-memory implementation of the graph port. It
// backs unit tests and local development, where spinning up Postgres or
// Neo4j would be overhead with no extra coverage.
//
// Transactions are fully serialized: Begin admits one transaction at a
// time and a deep snapshot taken at Begin backs Rollback. That gives the
// same one-writer-at-a-time semantics the engine relies on in the real
// backends.
package memgraph

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"archivum/src/graph"
)

type node struct {
	labels []string
	props  graph.Properties
}

type edge struct {
	source int64
	target int64
	labels []string
	props  graph.Properties
}

type state struct {
	nodes      map[int64]*node
	edges      map[int64]*edge
	nextNodeID int64
	nextEdgeID int64
}

func (s *state) clone() *state {
	out := &state{
		nodes:      make(map[int64]*node, len(s.nodes)),
		edges:      make(map[int64]*edge, len(s.edges)),
		nextNodeID: s.nextNodeID,
		nextEdgeID: s.nextEdgeID,
	}
	for id, n := range s.nodes {
		out.nodes[id] = &node{
			labels: append([]string(nil), n.labels...),
			props:  n.props.Copy(),
		}
	}
	for id, e := range s.edges {
		out.edges[id] = &edge{
			source: e.source,
			target: e.target,
			labels: append([]string(nil), e.labels...),
			props:  e.props.Copy(),
		}
	}
	return out
}

// Store is the in-memory graph store. The zero value is not usable; create
// it with NewStore.
type Store struct {
	sem chan struct{}

	mu     sync.Mutex
	state  *state
	closed bool
}

func NewStore() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		state: &state{
			nodes: make(map[int64]*node),
			edges: make(map[int64]*edge),
		},
	}
}

// Begin blocks until the single transaction slot frees up or the context
// is done.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("memgraph: beginning transaction: %w", ctx.Err())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		<-s.sem
		return nil, fmt.Errorf("memgraph: store is closed")
	}
	return &tx{store: s, snapshot: s.state.clone()}, nil
}

func (s *Store) IsAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type tx struct {
	store    *Store
	snapshot *state
	done     bool
}

func (t *tx) CreateNode(ctx context.Context, labels []string, props graph.Properties) (graph.NodeHandle, error) {
	if err := t.active(); err != nil {
		return graph.NodeHandle{}, err
	}
	st := t.store.state
	st.nextNodeID++
	st.nodes[st.nextNodeID] = &node{
		labels: append([]string(nil), labels...),
		props:  props.Copy(),
	}
	return graph.NodeHandle{ID: st.nextNodeID}, nil
}

func (t *tx) CreateEdge(ctx context.Context, source, target graph.NodeHandle, labels []string, props graph.Properties) (graph.EdgeHandle, error) {
	if err := t.active(); err != nil {
		return graph.EdgeHandle{}, err
	}
	st := t.store.state
	if _, ok := st.nodes[source.ID]; !ok {
		return graph.EdgeHandle{}, fmt.Errorf("memgraph: source node %d does not exist", source.ID)
	}
	if _, ok := st.nodes[target.ID]; !ok {
		return graph.EdgeHandle{}, fmt.Errorf("memgraph: target node %d does not exist", target.ID)
	}
	st.nextEdgeID++
	st.edges[st.nextEdgeID] = &edge{
		source: source.ID,
		target: target.ID,
		labels: append([]string(nil), labels...),
		props:  props.Copy(),
	}
	return graph.EdgeHandle{ID: st.nextEdgeID}, nil
}

func (t *tx) Node(ctx context.Context, h graph.NodeHandle) (graph.Node, bool, error) {
	if err := t.active(); err != nil {
		return graph.Node{}, false, err
	}
	n, ok := t.store.state.nodes[h.ID]
	if !ok {
		return graph.Node{}, false, nil
	}
	return snapshotNode(h.ID, n), true, nil
}

func (t *tx) Edge(ctx context.Context, h graph.EdgeHandle) (graph.Edge, bool, error) {
	if err := t.active(); err != nil {
		return graph.Edge{}, false, err
	}
	e, ok := t.store.state.edges[h.ID]
	if !ok {
		return graph.Edge{}, false, nil
	}
	return snapshotEdge(h.ID, e), true, nil
}

func (t *tx) SetNodeProperties(ctx context.Context, h graph.NodeHandle, props graph.Properties) error {
	if err := t.active(); err != nil {
		return err
	}
	n, ok := t.store.state.nodes[h.ID]
	if !ok {
		return fmt.Errorf("memgraph: node %d does not exist", h.ID)
	}
	for k, v := range props.Copy() {
		n.props[k] = v
	}
	return nil
}

func (t *tx) SetEdgeProperties(ctx context.Context, h graph.EdgeHandle, props graph.Properties) error {
	if err := t.active(); err != nil {
		return err
	}
	e, ok := t.store.state.edges[h.ID]
	if !ok {
		return fmt.Errorf("memgraph: edge %d does not exist", h.ID)
	}
	for k, v := range props.Copy() {
		e.props[k] = v
	}
	return nil
}

func (t *tx) RemoveNodeProperties(ctx context.Context, h graph.NodeHandle, names ...string) error {
	if err := t.active(); err != nil {
		return err
	}
	n, ok := t.store.state.nodes[h.ID]
	if !ok {
		return fmt.Errorf("memgraph: node %d does not exist", h.ID)
	}
	for _, name := range names {
		delete(n.props, name)
	}
	return nil
}

func (t *tx) RemoveEdgeProperties(ctx context.Context, h graph.EdgeHandle, names ...string) error {
	if err := t.active(); err != nil {
		return err
	}
	e, ok := t.store.state.edges[h.ID]
	if !ok {
		return fmt.Errorf("memgraph: edge %d does not exist", h.ID)
	}
	for _, name := range names {
		delete(e.props, name)
	}
	return nil
}

func (t *tx) AddNodeLabel(ctx context.Context, h graph.NodeHandle, label string) error {
	if err := t.active(); err != nil {
		return err
	}
	n, ok := t.store.state.nodes[h.ID]
	if !ok {
		return fmt.Errorf("memgraph: node %d does not exist", h.ID)
	}
	for _, l := range n.labels {
		if l == label {
			return nil
		}
	}
	n.labels = append(n.labels, label)
	return nil
}

func (t *tx) DeleteNode(ctx context.Context, h graph.NodeHandle) error {
	if err := t.active(); err != nil {
		return err
	}
	st := t.store.state
	if _, ok := st.nodes[h.ID]; !ok {
		return fmt.Errorf("memgraph: node %d does not exist", h.ID)
	}
	for id, e := range st.edges {
		if e.source == h.ID || e.target == h.ID {
			return fmt.Errorf("memgraph: node %d still has edge %d attached", h.ID, id)
		}
	}
	delete(st.nodes, h.ID)
	return nil
}

func (t *tx) DeleteEdge(ctx context.Context, h graph.EdgeHandle) error {
	if err := t.active(); err != nil {
		return err
	}
	if _, ok := t.store.state.edges[h.ID]; !ok {
		return fmt.Errorf("memgraph: edge %d does not exist", h.ID)
	}
	delete(t.store.state.edges, h.ID)
	return nil
}

func (t *tx) Nodes(ctx context.Context, q graph.Query) ([]graph.Node, error) {
	if err := t.active(); err != nil {
		return nil, err
	}
	var out []graph.Node
	for id, n := range t.store.state.nodes {
		if matches(n.labels, n.props, q) {
			out = append(out, snapshotNode(id, n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle.ID < out[j].Handle.ID })
	return out, nil
}

func (t *tx) Edges(ctx context.Context, q graph.Query) ([]graph.Edge, error) {
	if err := t.active(); err != nil {
		return nil, err
	}
	var out []graph.Edge
	for id, e := range t.store.state.edges {
		if matches(e.labels, e.props, q) {
			out = append(out, snapshotEdge(id, e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle.ID < out[j].Handle.ID })
	return out, nil
}

func (t *tx) NodeEdges(ctx context.Context, h graph.NodeHandle, dir graph.Direction) ([]graph.Edge, error) {
	if err := t.active(); err != nil {
		return nil, err
	}
	var out []graph.Edge
	for id, e := range t.store.state.edges {
		match := false
		switch dir {
		case graph.Out:
			match = e.source == h.ID
		case graph.In:
			match = e.target == h.ID
		case graph.Both:
			match = e.source == h.ID || e.target == h.ID
		}
		if match {
			out = append(out, snapshotEdge(id, e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle.ID < out[j].Handle.ID })
	return out, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.active(); err != nil {
		return err
	}
	t.done = true
	t.snapshot = nil
	<-t.store.sem
	return nil
}

// Rollback restores the pre-transaction snapshot. After Commit it is a
// no-op, so callers can defer it unconditionally.
func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.state = t.snapshot
	t.store.mu.Unlock()
	t.snapshot = nil
	<-t.store.sem
	return nil
}

func (t *tx) active() error {
	if t.done {
		return fmt.Errorf("memgraph: transaction already finished")
	}
	return nil
}

func snapshotNode(id int64, n *node) graph.Node {
	return graph.Node{
		Handle: graph.NodeHandle{ID: id},
		Labels: append([]string(nil), n.labels...),
		Props:  n.props.Copy(),
	}
}

func snapshotEdge(id int64, e *edge) graph.Edge {
	return graph.Edge{
		Handle: graph.EdgeHandle{ID: id},
		Source: graph.NodeHandle{ID: e.source},
		Target: graph.NodeHandle{ID: e.target},
		Labels: append([]string(nil), e.labels...),
		Props:  e.props.Copy(),
	}
}

func matches(labels []string, props graph.Properties, q graph.Query) bool {
	if q.Label != "" {
		found := false
		for _, l := range labels {
			if l == q.Label {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for name, want := range q.Has {
		got, ok := props[name]
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	for _, name := range q.HasNot {
		if _, ok := props[name]; ok {
			return false
		}
	}
	return true
}

// valueEqual compares property values with numeric widening, so a query
// for int 2 matches a stored int64 or float64.
func valueEqual(a, b any) bool {
	if an, ok := asFloat(a); ok {
		bn, ok := asFloat(b)
		return ok && an == bn
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
