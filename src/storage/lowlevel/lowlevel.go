// Package lowlevel provides the type-aware node and edge lookup primitives
// the storage engine is built on. "Latest" means the numerically highest
// revision among the elements sharing an id; that rule is written atomically
// with element creation, so it needs no secondary marker.
//
// Lookups never fail on absence: they return found=false or an empty slice.
// Only adapter I/O errors propagate.
package lowlevel

import (
	"context"
	"fmt"

	"archivum/src/graph"
	"archivum/src/storage/conv"
)

// LatestNodeByID returns the highest-revision node carrying the id under
// the given label. An empty label matches any type.
func LatestNodeByID(ctx context.Context, tx graph.Tx, label, id string) (graph.Node, bool, error) {
	nodes, err := tx.Nodes(ctx, graph.Query{
		Label: label,
		Has:   graph.Properties{conv.PropID: id},
	})
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("querying nodes by id %s: %w", id, err)
	}
	return latestNode(nodes)
}

// NodeWithRevision returns the exact revision of an id, or found=false.
func NodeWithRevision(ctx context.Context, tx graph.Tx, label, id string, rev int) (graph.Node, bool, error) {
	nodes, err := tx.Nodes(ctx, graph.Query{
		Label: label,
		Has:   graph.Properties{conv.PropID: id, conv.PropRev: rev},
	})
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("querying node %s rev %d: %w", id, rev, err)
	}
	if len(nodes) == 0 {
		return graph.Node{}, false, nil
	}
	return nodes[0], true, nil
}

// NodesByID returns every stored revision node of an id under the label.
func NodesByID(ctx context.Context, tx graph.Tx, label, id string) ([]graph.Node, error) {
	return tx.Nodes(ctx, graph.Query{
		Label: label,
		Has:   graph.Properties{conv.PropID: id},
	})
}

// LatestNodesOfKind returns one node per id: the latest revision of every
// lineage carrying the label.
func LatestNodesOfKind(ctx context.Context, tx graph.Tx, label string) ([]graph.Node, error) {
	nodes, err := tx.Nodes(ctx, graph.Query{Label: label})
	if err != nil {
		return nil, fmt.Errorf("querying nodes of %s: %w", label, err)
	}
	return dedupLatestNodes(nodes)
}

// FindLatestNodeByProperty returns the first latest-revision node with the
// given property value.
func FindLatestNodeByProperty(ctx context.Context, tx graph.Tx, label, name string, value any) (graph.Node, bool, error) {
	nodes, err := tx.Nodes(ctx, graph.Query{
		Label: label,
		Has:   graph.Properties{name: value},
	})
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("querying nodes by %s: %w", name, err)
	}
	latest, err := dedupLatestNodes(nodes)
	if err != nil {
		return graph.Node{}, false, err
	}
	if len(latest) == 0 {
		return graph.Node{}, false, nil
	}
	return latest[0], true, nil
}

// LatestNodesWithoutProperty returns the latest nodes of a kind that lack
// the property. The latest filter runs first: a historical revision without
// the property does not make its lineage a match.
func LatestNodesWithoutProperty(ctx context.Context, tx graph.Tx, label, name string) ([]graph.Node, error) {
	latest, err := LatestNodesOfKind(ctx, tx, label)
	if err != nil {
		return nil, err
	}
	var out []graph.Node
	for _, n := range latest {
		if _, ok := n.Props[name]; !ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// LatestEdgeByID returns the highest-revision edge carrying the id.
func LatestEdgeByID(ctx context.Context, tx graph.Tx, label, id string) (graph.Edge, bool, error) {
	edges, err := tx.Edges(ctx, graph.Query{
		Label: label,
		Has:   graph.Properties{conv.PropID: id},
	})
	if err != nil {
		return graph.Edge{}, false, fmt.Errorf("querying edges by id %s: %w", id, err)
	}
	return latestEdge(edges)
}

// EdgeWithRevision returns the exact revision of an edge id, or found=false.
func EdgeWithRevision(ctx context.Context, tx graph.Tx, label, id string, rev int) (graph.Edge, bool, error) {
	edges, err := tx.Edges(ctx, graph.Query{
		Label: label,
		Has:   graph.Properties{conv.PropID: id, conv.PropRev: rev},
	})
	if err != nil {
		return graph.Edge{}, false, fmt.Errorf("querying edge %s rev %d: %w", id, rev, err)
	}
	if len(edges) == 0 {
		return graph.Edge{}, false, nil
	}
	return edges[0], true, nil
}

// LatestEdgesOfKind returns one edge per logical relation id.
func LatestEdgesOfKind(ctx context.Context, tx graph.Tx, label string) ([]graph.Edge, error) {
	edges, err := tx.Edges(ctx, graph.Query{Label: label})
	if err != nil {
		return nil, fmt.Errorf("querying edges of %s: %w", label, err)
	}
	return dedupLatestEdges(edges)
}

// FindLatestEdgesByProperties returns the latest edges matching every given
// property.
func FindLatestEdgesByProperties(ctx context.Context, tx graph.Tx, label string, has graph.Properties) ([]graph.Edge, error) {
	edges, err := tx.Edges(ctx, graph.Query{Label: label, Has: has})
	if err != nil {
		return nil, fmt.Errorf("querying edges by properties: %w", err)
	}
	return dedupLatestEdges(edges)
}

// LatestEdgesWithoutProperty returns the latest edges of a kind lacking the
// property.
func LatestEdgesWithoutProperty(ctx context.Context, tx graph.Tx, label, name string) ([]graph.Edge, error) {
	latest, err := LatestEdgesOfKind(ctx, tx, label)
	if err != nil {
		return nil, err
	}
	var out []graph.Edge
	for _, e := range latest {
		if _, ok := e.Props[name]; !ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// EdgesBySourceID returns the latest outgoing edges of the latest version
// of the vertex with the given id, deduplicated per relation id.
func EdgesBySourceID(ctx context.Context, tx graph.Tx, label, sourceID string) ([]graph.Edge, error) {
	return edgesByVertex(ctx, tx, label, sourceID, graph.Out)
}

// EdgesByTargetID is the incoming counterpart of EdgesBySourceID.
func EdgesByTargetID(ctx context.Context, tx graph.Tx, label, targetID string) ([]graph.Edge, error) {
	return edgesByVertex(ctx, tx, label, targetID, graph.In)
}

func edgesByVertex(ctx context.Context, tx graph.Tx, label, vertexID string, dir graph.Direction) ([]graph.Edge, error) {
	node, found, err := LatestNodeByID(ctx, tx, "", vertexID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	edges, err := tx.NodeEdges(ctx, node.Handle, dir)
	if err != nil {
		return nil, fmt.Errorf("traversing edges of %s: %w", vertexID, err)
	}
	if label != "" {
		filtered := edges[:0]
		for _, e := range edges {
			if e.HasLabel(label) {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}
	return dedupLatestEdges(edges)
}

// CountNodesOfKind counts the lineages (not revisions) of a kind.
func CountNodesOfKind(ctx context.Context, tx graph.Tx, label string) (int, error) {
	latest, err := LatestNodesOfKind(ctx, tx, label)
	if err != nil {
		return 0, err
	}
	return len(latest), nil
}

// CountEdgesOfKind counts the logical relations of a kind.
func CountEdgesOfKind(ctx context.Context, tx graph.Tx, label string) (int, error) {
	latest, err := LatestEdgesOfKind(ctx, tx, label)
	if err != nil {
		return 0, err
	}
	return len(latest), nil
}

// NodeExists reports whether any revision of the id exists under the label.
func NodeExists(ctx context.Context, tx graph.Tx, label, id string) (bool, error) {
	_, found, err := LatestNodeByID(ctx, tx, label, id)
	return found, err
}

// EdgeExists reports whether any revision of the edge id exists.
func EdgeExists(ctx context.Context, tx graph.Tx, label, id string) (bool, error) {
	_, found, err := LatestEdgeByID(ctx, tx, label, id)
	return found, err
}

func latestNode(nodes []graph.Node) (graph.Node, bool, error) {
	var (
		best    graph.Node
		bestRev = -1
	)
	for _, n := range nodes {
		rev, err := conv.Rev(n.Props)
		if err != nil {
			return graph.Node{}, false, err
		}
		if rev > bestRev {
			best, bestRev = n, rev
		}
	}
	return best, bestRev >= 0, nil
}

func latestEdge(edges []graph.Edge) (graph.Edge, bool, error) {
	var (
		best    graph.Edge
		bestRev = -1
	)
	for _, e := range edges {
		rev, err := conv.Rev(e.Props)
		if err != nil {
			return graph.Edge{}, false, err
		}
		if rev > bestRev {
			best, bestRev = e, rev
		}
	}
	return best, bestRev >= 0, nil
}

func dedupLatestNodes(nodes []graph.Node) ([]graph.Node, error) {
	byID := make(map[string]int)
	var out []graph.Node
	for _, n := range nodes {
		id, err := conv.ID(n.Props)
		if err != nil {
			return nil, err
		}
		rev, err := conv.Rev(n.Props)
		if err != nil {
			return nil, err
		}
		if i, ok := byID[id]; ok {
			prev, err := conv.Rev(out[i].Props)
			if err != nil {
				return nil, err
			}
			if rev > prev {
				out[i] = n
			}
			continue
		}
		byID[id] = len(out)
		out = append(out, n)
	}
	return out, nil
}

func dedupLatestEdges(edges []graph.Edge) ([]graph.Edge, error) {
	byID := make(map[string]int)
	var out []graph.Edge
	for _, e := range edges {
		id, err := conv.ID(e.Props)
		if err != nil {
			return nil, err
		}
		rev, err := conv.Rev(e.Props)
		if err != nil {
			return nil, err
		}
		if i, ok := byID[id]; ok {
			prev, err := conv.Rev(out[i].Props)
			if err != nil {
				return nil, err
			}
			if rev > prev {
				out[i] = e
			}
			continue
		}
		byID[id] = len(out)
		out = append(out, e)
	}
	return out, nil
}
