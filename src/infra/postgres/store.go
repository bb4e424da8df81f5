// Package postgres implements the graph port on PostgreSQL. Nodes and
// edges live in two tables with a text[] label column and a jsonb property
// document; property filters compare jsonb values per key so array-valued
// properties match exactly. This is the primary production backend.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"archivum/src/graph"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Begin - opening transaction: %w", err)
	}
	return &tx{tx: pgtx}, nil
}

func (s *Store) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx) == nil
}

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// EnsureSchema creates the node and edge tables and their indexes. Safe to
// run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			internal_id bigserial PRIMARY KEY,
			labels      text[]    NOT NULL,
			props       jsonb     NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS graph_nodes_labels_idx
			ON graph_nodes USING gin (labels)`,
		`CREATE INDEX IF NOT EXISTS graph_nodes_props_idx
			ON graph_nodes USING gin (props)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			internal_id bigserial PRIMARY KEY,
			source_id   bigint    NOT NULL REFERENCES graph_nodes (internal_id),
			target_id   bigint    NOT NULL REFERENCES graph_nodes (internal_id),
			labels      text[]    NOT NULL,
			props       jsonb     NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_source_idx
			ON graph_edges (source_id)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_target_idx
			ON graph_edges (target_id)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_labels_idx
			ON graph_edges USING gin (labels)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_props_idx
			ON graph_edges USING gin (props)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres.Store.EnsureSchema - applying schema: %w", err)
		}
	}
	return nil
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) CreateNode(ctx context.Context, labels []string, props graph.Properties) (graph.NodeHandle, error) {
	doc, err := marshalProps(props)
	if err != nil {
		return graph.NodeHandle{}, err
	}
	var id int64
	err = t.tx.QueryRow(ctx,
		`INSERT INTO graph_nodes (labels, props) VALUES ($1, $2) RETURNING internal_id`,
		labels, doc,
	).Scan(&id)
	if err != nil {
		return graph.NodeHandle{}, fmt.Errorf("postgres - inserting node: %w", err)
	}
	return graph.NodeHandle{ID: id}, nil
}

func (t *tx) CreateEdge(ctx context.Context, source, target graph.NodeHandle, labels []string, props graph.Properties) (graph.EdgeHandle, error) {
	doc, err := marshalProps(props)
	if err != nil {
		return graph.EdgeHandle{}, err
	}
	var id int64
	err = t.tx.QueryRow(ctx,
		`INSERT INTO graph_edges (source_id, target_id, labels, props)
		 VALUES ($1, $2, $3, $4) RETURNING internal_id`,
		source.ID, target.ID, labels, doc,
	).Scan(&id)
	if err != nil {
		return graph.EdgeHandle{}, fmt.Errorf("postgres - inserting edge: %w", err)
	}
	return graph.EdgeHandle{ID: id}, nil
}

func (t *tx) Node(ctx context.Context, h graph.NodeHandle) (graph.Node, bool, error) {
	var (
		labels []string
		doc    []byte
	)
	err := t.tx.QueryRow(ctx,
		`SELECT labels, props FROM graph_nodes WHERE internal_id = $1`,
		h.ID,
	).Scan(&labels, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return graph.Node{}, false, nil
	}
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("postgres - reading node %d: %w", h.ID, err)
	}
	props, err := unmarshalProps(doc)
	if err != nil {
		return graph.Node{}, false, err
	}
	return graph.Node{Handle: h, Labels: labels, Props: props}, true, nil
}

func (t *tx) Edge(ctx context.Context, h graph.EdgeHandle) (graph.Edge, bool, error) {
	var (
		sourceID, targetID int64
		labels             []string
		doc                []byte
	)
	err := t.tx.QueryRow(ctx,
		`SELECT source_id, target_id, labels, props FROM graph_edges WHERE internal_id = $1`,
		h.ID,
	).Scan(&sourceID, &targetID, &labels, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return graph.Edge{}, false, nil
	}
	if err != nil {
		return graph.Edge{}, false, fmt.Errorf("postgres - reading edge %d: %w", h.ID, err)
	}
	props, err := unmarshalProps(doc)
	if err != nil {
		return graph.Edge{}, false, err
	}
	return graph.Edge{
		Handle: h,
		Source: graph.NodeHandle{ID: sourceID},
		Target: graph.NodeHandle{ID: targetID},
		Labels: labels,
		Props:  props,
	}, true, nil
}

func (t *tx) SetNodeProperties(ctx context.Context, h graph.NodeHandle, props graph.Properties) error {
	doc, err := marshalProps(props)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE graph_nodes SET props = props || $2::jsonb WHERE internal_id = $1`,
		h.ID, doc,
	)
	if err != nil {
		return fmt.Errorf("postgres - updating node %d props: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres - node %d does not exist", h.ID)
	}
	return nil
}

func (t *tx) SetEdgeProperties(ctx context.Context, h graph.EdgeHandle, props graph.Properties) error {
	doc, err := marshalProps(props)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE graph_edges SET props = props || $2::jsonb WHERE internal_id = $1`,
		h.ID, doc,
	)
	if err != nil {
		return fmt.Errorf("postgres - updating edge %d props: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres - edge %d does not exist", h.ID)
	}
	return nil
}

func (t *tx) RemoveNodeProperties(ctx context.Context, h graph.NodeHandle, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE graph_nodes SET props = props - $2::text[] WHERE internal_id = $1`,
		h.ID, names,
	)
	if err != nil {
		return fmt.Errorf("postgres - removing node %d props: %w", h.ID, err)
	}
	return nil
}

func (t *tx) RemoveEdgeProperties(ctx context.Context, h graph.EdgeHandle, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE graph_edges SET props = props - $2::text[] WHERE internal_id = $1`,
		h.ID, names,
	)
	if err != nil {
		return fmt.Errorf("postgres - removing edge %d props: %w", h.ID, err)
	}
	return nil
}

func (t *tx) AddNodeLabel(ctx context.Context, h graph.NodeHandle, label string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE graph_nodes
		 SET labels = array_append(labels, $2)
		 WHERE internal_id = $1 AND NOT ($2 = ANY (labels))`,
		h.ID, label,
	)
	if err != nil {
		return fmt.Errorf("postgres - labeling node %d: %w", h.ID, err)
	}
	return nil
}

func (t *tx) DeleteNode(ctx context.Context, h graph.NodeHandle) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM graph_nodes WHERE internal_id = $1`, h.ID)
	if err != nil {
		return fmt.Errorf("postgres - deleting node %d: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres - node %d does not exist", h.ID)
	}
	return nil
}

func (t *tx) DeleteEdge(ctx context.Context, h graph.EdgeHandle) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM graph_edges WHERE internal_id = $1`, h.ID)
	if err != nil {
		return fmt.Errorf("postgres - deleting edge %d: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres - edge %d does not exist", h.ID)
	}
	return nil
}

func (t *tx) Nodes(ctx context.Context, q graph.Query) ([]graph.Node, error) {
	where, args, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx,
		`SELECT internal_id, labels, props FROM graph_nodes`+where+` ORDER BY internal_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres - querying nodes: %w", err)
	}
	defer rows.Close()

	var out []graph.Node
	for rows.Next() {
		var (
			id     int64
			labels []string
			doc    []byte
		)
		if err := rows.Scan(&id, &labels, &doc); err != nil {
			return nil, fmt.Errorf("postgres - scanning node row: %w", err)
		}
		props, err := unmarshalProps(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.Node{Handle: graph.NodeHandle{ID: id}, Labels: labels, Props: props})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres - iterating nodes: %w", err)
	}
	return out, nil
}

func (t *tx) Edges(ctx context.Context, q graph.Query) ([]graph.Edge, error) {
	where, args, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx,
		`SELECT internal_id, source_id, target_id, labels, props FROM graph_edges`+where+` ORDER BY internal_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres - querying edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (t *tx) NodeEdges(ctx context.Context, h graph.NodeHandle, dir graph.Direction) ([]graph.Edge, error) {
	var where string
	switch dir {
	case graph.Out:
		where = ` WHERE source_id = $1`
	case graph.In:
		where = ` WHERE target_id = $1`
	default:
		where = ` WHERE source_id = $1 OR target_id = $1`
	}
	rows, err := t.tx.Query(ctx,
		`SELECT internal_id, source_id, target_id, labels, props FROM graph_edges`+where+` ORDER BY internal_id`,
		h.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres - querying node %d edges: %w", h.ID, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres - committing transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return fmt.Errorf("postgres - rolling back transaction: %w", err)
}

// buildFilter translates a Query into a WHERE clause. Property equality
// compares the jsonb value per key. Containment (@>) would be cheaper
// through the GIN index but matches array supersets, and the other
// backends match arrays exactly.
func buildFilter(q graph.Query) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if q.Label != "" {
		args = append(args, q.Label)
		clauses = append(clauses, next()+` = ANY (labels)`)
	}
	for name, value := range q.Has {
		doc, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("postgres - encoding query value for %q: %w", name, err)
		}
		args = append(args, name)
		key := next()
		args = append(args, doc)
		clauses = append(clauses, `props -> `+key+` = `+next()+`::jsonb`)
	}
	for _, name := range q.HasNot {
		args = append(args, name)
		clauses = append(clauses, `NOT (props ? `+next()+`)`)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args, nil
}

func scanEdges(rows pgx.Rows) ([]graph.Edge, error) {
	var out []graph.Edge
	for rows.Next() {
		var (
			id, sourceID, targetID int64
			labels                 []string
			doc                    []byte
		)
		if err := rows.Scan(&id, &sourceID, &targetID, &labels, &doc); err != nil {
			return nil, fmt.Errorf("postgres - scanning edge row: %w", err)
		}
		props, err := unmarshalProps(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.Edge{
			Handle: graph.EdgeHandle{ID: id},
			Source: graph.NodeHandle{ID: sourceID},
			Target: graph.NodeHandle{ID: targetID},
			Labels: labels,
			Props:  props,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres - iterating edges: %w", err)
	}
	return out, nil
}

func marshalProps(props graph.Properties) ([]byte, error) {
	doc, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("postgres - encoding props: %w", err)
	}
	return doc, nil
}

func unmarshalProps(doc []byte) (graph.Properties, error) {
	props := graph.Properties{}
	if err := json.Unmarshal(doc, &props); err != nil {
		return nil, fmt.Errorf("postgres - decoding props: %w", err)
	}
	return props, nil
}
