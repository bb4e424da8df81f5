// Package neo4jgraph implements the graph port on Neo4j with explicit
// transactions. Labels cannot be parameterized in Cypher, so they are
// validated against a strict pattern before interpolation; every value
// goes through query parameters.
package neo4jgraph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"archivum/src/graph"
)

// Config holds the Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4jgraph - creating driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4jgraph - connecting: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Store{driver: driver, database: database}, nil
}

func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	neoTx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, fmt.Errorf("neo4jgraph - beginning transaction: %w", err)
	}
	return &tx{session: session, tx: neoTx}, nil
}

func (s *Store) IsAvailable(ctx context.Context) bool {
	return s.driver.VerifyConnectivity(ctx) == nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

var validLabel = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)

// labelFragment renders ":a:b" for interpolation into Cypher. Labels are
// the registry's kind names; anything else is rejected.
func labelFragment(labels []string) (string, error) {
	var b strings.Builder
	for _, l := range labels {
		if !validLabel.MatchString(l) {
			return "", fmt.Errorf("neo4jgraph - invalid label %q", l)
		}
		b.WriteString(":")
		b.WriteString(l)
	}
	return b.String(), nil
}

func singleLabel(labels []string) (string, error) {
	if len(labels) != 1 {
		return "", fmt.Errorf("neo4jgraph - edges take exactly one label, got %d", len(labels))
	}
	if !validLabel.MatchString(labels[0]) {
		return "", fmt.Errorf("neo4jgraph - invalid label %q", labels[0])
	}
	return labels[0], nil
}

type tx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	done    bool
}

func (t *tx) run(ctx context.Context, query string, params map[string]any) (neo4j.ResultWithContext, error) {
	if t.done {
		return nil, fmt.Errorf("neo4jgraph - transaction already finished")
	}
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neo4jgraph - running query: %w", err)
	}
	return result, nil
}

func (t *tx) CreateNode(ctx context.Context, labels []string, props graph.Properties) (graph.NodeHandle, error) {
	frag, err := labelFragment(labels)
	if err != nil {
		return graph.NodeHandle{}, err
	}
	result, err := t.run(ctx,
		`CREATE (n`+frag+`) SET n = $props RETURN id(n) AS id`,
		map[string]any{"props": map[string]any(props)},
	)
	if err != nil {
		return graph.NodeHandle{}, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return graph.NodeHandle{}, fmt.Errorf("neo4jgraph - creating node: %w", err)
	}
	id, _ := record.Get("id")
	return graph.NodeHandle{ID: id.(int64)}, nil
}

func (t *tx) CreateEdge(ctx context.Context, source, target graph.NodeHandle, labels []string, props graph.Properties) (graph.EdgeHandle, error) {
	label, err := singleLabel(labels)
	if err != nil {
		return graph.EdgeHandle{}, err
	}
	result, err := t.run(ctx,
		`MATCH (s), (d) WHERE id(s) = $source AND id(d) = $target
		 CREATE (s)-[r:`+label+`]->(d) SET r = $props RETURN id(r) AS id`,
		map[string]any{
			"source": source.ID,
			"target": target.ID,
			"props":  map[string]any(props),
		},
	)
	if err != nil {
		return graph.EdgeHandle{}, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return graph.EdgeHandle{}, fmt.Errorf("neo4jgraph - creating edge: %w", err)
	}
	id, _ := record.Get("id")
	return graph.EdgeHandle{ID: id.(int64)}, nil
}

func (t *tx) Node(ctx context.Context, h graph.NodeHandle) (graph.Node, bool, error) {
	result, err := t.run(ctx,
		`MATCH (n) WHERE id(n) = $id RETURN n`,
		map[string]any{"id": h.ID},
	)
	if err != nil {
		return graph.Node{}, false, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("neo4jgraph - reading node %d: %w", h.ID, err)
	}
	if len(records) == 0 {
		return graph.Node{}, false, nil
	}
	value, _ := records[0].Get("n")
	return toNode(value.(neo4j.Node)), true, nil
}

func (t *tx) Edge(ctx context.Context, h graph.EdgeHandle) (graph.Edge, bool, error) {
	result, err := t.run(ctx,
		`MATCH (s)-[r]->(d) WHERE id(r) = $id
		 RETURN r, id(s) AS source, id(d) AS target`,
		map[string]any{"id": h.ID},
	)
	if err != nil {
		return graph.Edge{}, false, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return graph.Edge{}, false, fmt.Errorf("neo4jgraph - reading edge %d: %w", h.ID, err)
	}
	if len(records) == 0 {
		return graph.Edge{}, false, nil
	}
	return toEdge(records[0]), true, nil
}

func (t *tx) SetNodeProperties(ctx context.Context, h graph.NodeHandle, props graph.Properties) error {
	result, err := t.run(ctx,
		`MATCH (n) WHERE id(n) = $id SET n += $props RETURN id(n)`,
		map[string]any{"id": h.ID, "props": map[string]any(props)},
	)
	if err != nil {
		return err
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("neo4jgraph - node %d does not exist: %w", h.ID, err)
	}
	return nil
}

func (t *tx) SetEdgeProperties(ctx context.Context, h graph.EdgeHandle, props graph.Properties) error {
	result, err := t.run(ctx,
		`MATCH ()-[r]->() WHERE id(r) = $id SET r += $props RETURN id(r)`,
		map[string]any{"id": h.ID, "props": map[string]any(props)},
	)
	if err != nil {
		return err
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("neo4jgraph - edge %d does not exist: %w", h.ID, err)
	}
	return nil
}

// Removal goes through `+=` with null values, which deletes the keys; that
// keeps the property names parameterized.
func nullMap(names []string) map[string]any {
	m := make(map[string]any, len(names))
	for _, name := range names {
		m[name] = nil
	}
	return m
}

func (t *tx) RemoveNodeProperties(ctx context.Context, h graph.NodeHandle, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := t.run(ctx,
		`MATCH (n) WHERE id(n) = $id SET n += $props`,
		map[string]any{"id": h.ID, "props": nullMap(names)},
	)
	return err
}

func (t *tx) RemoveEdgeProperties(ctx context.Context, h graph.EdgeHandle, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := t.run(ctx,
		`MATCH ()-[r]->() WHERE id(r) = $id SET r += $props`,
		map[string]any{"id": h.ID, "props": nullMap(names)},
	)
	return err
}

func (t *tx) AddNodeLabel(ctx context.Context, h graph.NodeHandle, label string) error {
	frag, err := labelFragment([]string{label})
	if err != nil {
		return err
	}
	_, err = t.run(ctx,
		`MATCH (n) WHERE id(n) = $id SET n`+frag,
		map[string]any{"id": h.ID},
	)
	return err
}

func (t *tx) DeleteNode(ctx context.Context, h graph.NodeHandle) error {
	_, err := t.run(ctx,
		`MATCH (n) WHERE id(n) = $id DELETE n`,
		map[string]any{"id": h.ID},
	)
	return err
}

func (t *tx) DeleteEdge(ctx context.Context, h graph.EdgeHandle) error {
	_, err := t.run(ctx,
		`MATCH ()-[r]->() WHERE id(r) = $id DELETE r`,
		map[string]any{"id": h.ID},
	)
	return err
}

func (t *tx) Nodes(ctx context.Context, q graph.Query) ([]graph.Node, error) {
	match := `MATCH (n`
	if q.Label != "" {
		frag, err := labelFragment([]string{q.Label})
		if err != nil {
			return nil, err
		}
		match += frag
	}
	match += `)`
	query := match + `
		WHERE all(key IN keys($has) WHERE n[key] = $has[key])
		  AND all(key IN $hasNot WHERE n[key] IS NULL)
		RETURN n ORDER BY id(n)`
	result, err := t.run(ctx, query, filterParams(q))
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo4jgraph - querying nodes: %w", err)
	}
	out := make([]graph.Node, 0, len(records))
	for _, record := range records {
		value, _ := record.Get("n")
		out = append(out, toNode(value.(neo4j.Node)))
	}
	return out, nil
}

func (t *tx) Edges(ctx context.Context, q graph.Query) ([]graph.Edge, error) {
	match := `MATCH (s)-[r`
	if q.Label != "" {
		label, err := singleLabel([]string{q.Label})
		if err != nil {
			return nil, err
		}
		match += ":" + label
	}
	match += `]->(d)`
	query := match + `
		WHERE all(key IN keys($has) WHERE r[key] = $has[key])
		  AND all(key IN $hasNot WHERE r[key] IS NULL)
		RETURN r, id(s) AS source, id(d) AS target ORDER BY id(r)`
	result, err := t.run(ctx, query, filterParams(q))
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo4jgraph - querying edges: %w", err)
	}
	out := make([]graph.Edge, 0, len(records))
	for _, record := range records {
		out = append(out, toEdge(record))
	}
	return out, nil
}

func (t *tx) NodeEdges(ctx context.Context, h graph.NodeHandle, dir graph.Direction) ([]graph.Edge, error) {
	var pattern string
	switch dir {
	case graph.Out:
		pattern = `(n)-[r]->()`
	case graph.In:
		pattern = `()-[r]->(n)`
	default:
		pattern = `(n)-[r]-()`
	}
	result, err := t.run(ctx,
		`MATCH `+pattern+` WHERE id(n) = $id
		 MATCH (s)-[r]->(d)
		 RETURN r, id(s) AS source, id(d) AS target ORDER BY id(r)`,
		map[string]any{"id": h.ID},
	)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo4jgraph - querying node %d edges: %w", h.ID, err)
	}
	out := make([]graph.Edge, 0, len(records))
	for _, record := range records {
		out = append(out, toEdge(record))
	}
	return out, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("neo4jgraph - transaction already finished")
	}
	t.done = true
	err := t.tx.Commit(ctx)
	t.session.Close(ctx)
	if err != nil {
		return fmt.Errorf("neo4jgraph - committing transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback(ctx)
	t.session.Close(ctx)
	if err != nil {
		return fmt.Errorf("neo4jgraph - rolling back transaction: %w", err)
	}
	return nil
}

func filterParams(q graph.Query) map[string]any {
	has := map[string]any{}
	for k, v := range q.Has {
		has[k] = v
	}
	hasNot := q.HasNot
	if hasNot == nil {
		hasNot = []string{}
	}
	return map[string]any{"has": has, "hasNot": hasNot}
}

func toNode(n neo4j.Node) graph.Node {
	return graph.Node{
		Handle: graph.NodeHandle{ID: n.GetId()},
		Labels: append([]string(nil), n.Labels...),
		Props:  graph.Properties(n.Props),
	}
}

func toEdge(record *neo4j.Record) graph.Edge {
	value, _ := record.Get("r")
	rel := value.(neo4j.Relationship)
	source, _ := record.Get("source")
	target, _ := record.Get("target")
	return graph.Edge{
		Handle: graph.EdgeHandle{ID: rel.GetId()},
		Source: graph.NodeHandle{ID: source.(int64)},
		Target: graph.NodeHandle{ID: target.(int64)},
		Labels: []string{rel.Type},
		Props:  graph.Properties(rel.Props),
	}
}
