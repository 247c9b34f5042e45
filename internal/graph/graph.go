// Package graph provides the in-memory transfer graph a screening search grows.
//
// A Graph is owned by a single search and is not safe for concurrent use; the
// search engine funnels every write through one goroutine.
package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/persistorai/screener/internal/models"
)

// Direction selects how edges are interpreted for degree and path queries.
type Direction int

// Edge directions.
const (
	Undirected Direction = iota
	Directed
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Directed {
		return "directed"
	}

	return "undirected"
}

// ParseDirection converts a config string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "undirected":
		return Undirected, nil
	case "directed":
		return Directed, nil
	default:
		return Undirected, fmt.Errorf("%w: edge direction must be 'directed' or 'undirected', got %q", models.ErrInvalidInput, s)
	}
}

// Options configures a Graph.
type Options struct {
	Direction        Direction
	RetainAttributes bool
}

// edgeKey identifies an edge by its endpoints. Undirected keys are ordered so
// that (a,b) and (b,a) collapse into one edge.
type edgeKey struct {
	from, to models.Address
}

// Graph holds discovered addresses and the transfers between them.
type Graph struct {
	opts Options

	nodes []models.Address // discovery order
	meta  map[models.Address]*models.NodeMeta

	// succ holds out-neighbours (all neighbours when undirected) in edge
	// discovery order; pred is only populated for directed graphs.
	succ map[models.Address][]models.Address
	pred map[models.Address][]models.Address

	edges     map[edgeKey]*models.Edge
	edgeOrder []edgeKey
}

// MergeStats reports what a Merge call added.
type MergeStats struct {
	NodesAdded int
	EdgesAdded int
	Skipped    int
}

// New creates an empty Graph.
func New(opts Options) *Graph {
	return &Graph{
		opts:  opts,
		meta:  make(map[models.Address]*models.NodeMeta),
		succ:  make(map[models.Address][]models.Address),
		pred:  make(map[models.Address][]models.Address),
		edges: make(map[edgeKey]*models.Edge),
	}
}

// Options returns the options the graph was created with.
func (g *Graph) Options() Options { return g.opts }

// Directed reports whether edges are directed.
func (g *Graph) Directed() bool { return g.opts.Direction == Directed }

func (g *Graph) key(a, b models.Address) edgeKey {
	if !g.Directed() && b < a {
		a, b = b, a
	}

	return edgeKey{from: a, to: b}
}

// Merge adds the given edges and their endpoints. Existing edges and node
// metadata are never overwritten, so merging the same data twice is a no-op.
// Self-transfers and edges with an empty endpoint are skipped.
func (g *Graph) Merge(edges []models.Edge) MergeStats {
	var stats MergeStats

	for i := range edges {
		e := &edges[i]
		if e.From == "" || e.To == "" || e.IsSelfLoop() {
			stats.Skipped++
			continue
		}

		k := g.key(e.From, e.To)
		if existing, ok := g.edges[k]; ok {
			g.enrich(existing, e)
			continue
		}

		for _, a := range [2]models.Address{e.From, e.To} {
			if g.addNode(a) {
				stats.NodesAdded++
			}
		}

		stored := &models.Edge{From: e.From, To: e.To}
		if g.opts.RetainAttributes {
			stored.Attributes = maps.Clone(e.Attributes)
			if e.Timestamp != nil {
				ts := *e.Timestamp
				stored.Timestamp = &ts
			}
		}

		g.edges[k] = stored
		g.edgeOrder = append(g.edgeOrder, k)
		g.succ[e.From] = append(g.succ[e.From], e.To)

		if g.Directed() {
			g.pred[e.To] = append(g.pred[e.To], e.From)
		} else {
			g.succ[e.To] = append(g.succ[e.To], e.From)
		}

		stats.EdgesAdded++
	}

	return stats
}

// enrich adds attribute keys the stored edge does not have yet.
func (g *Graph) enrich(stored, incoming *models.Edge) {
	if !g.opts.RetainAttributes {
		return
	}

	for k, v := range incoming.Attributes {
		if stored.Attributes == nil {
			stored.Attributes = make(map[string]any, len(incoming.Attributes))
		}

		if _, ok := stored.Attributes[k]; !ok {
			stored.Attributes[k] = v
		}
	}

	if stored.Timestamp == nil && incoming.Timestamp != nil {
		ts := *incoming.Timestamp
		stored.Timestamp = &ts
	}
}

func (g *Graph) addNode(a models.Address) bool {
	if _, ok := g.meta[a]; ok {
		return false
	}

	g.meta[a] = &models.NodeMeta{}
	g.nodes = append(g.nodes, a)

	return true
}

// HasNode reports whether the address is in the graph.
func (g *Graph) HasNode(a models.Address) bool {
	_, ok := g.meta[a]
	return ok
}

// Degree returns the number of edges incident to a.
func (g *Graph) Degree(a models.Address) (int, error) {
	if !g.HasNode(a) {
		return 0, fmt.Errorf("degree of %s: %w", a, models.ErrNodeNotFound)
	}

	return len(g.succ[a]) + len(g.pred[a]), nil
}

// NodeCount returns the number of addresses.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edgeOrder) }

// Nodes returns all addresses in discovery order.
func (g *Graph) Nodes() []models.Address { return slices.Clone(g.nodes) }

// Edges returns copies of all edges in discovery order.
func (g *Graph) Edges() []models.Edge {
	out := make([]models.Edge, 0, len(g.edgeOrder))
	for _, k := range g.edgeOrder {
		e := *g.edges[k]
		e.Attributes = maps.Clone(e.Attributes)
		out = append(out, e)
	}

	return out
}

// Neighbors returns the addresses reachable in one hop from a, in discovery order.
func (g *Graph) Neighbors(a models.Address) []models.Address {
	return slices.Clone(g.succ[a])
}

// Meta returns a copy of the metadata for a.
func (g *Graph) Meta(a models.Address) (models.NodeMeta, bool) {
	m, ok := g.meta[a]
	if !ok {
		return models.NodeMeta{}, false
	}

	out := *m
	if m.Score != nil {
		s := *m.Score
		out.Score = &s
	}
	out.Attributes = maps.Clone(m.Attributes)

	return out, true
}

func (g *Graph) mutate(a models.Address, fn func(*models.NodeMeta)) error {
	m, ok := g.meta[a]
	if !ok {
		return fmt.Errorf("updating %s: %w", a, models.ErrNodeNotFound)
	}

	fn(m)

	return nil
}

// SetProcessed marks a as expanded.
func (g *Graph) SetProcessed(a models.Address) error {
	return g.mutate(a, func(m *models.NodeMeta) { m.Processed = true })
}

// SetErroredOut marks a as permanently failed.
func (g *Graph) SetErroredOut(a models.Address) error {
	return g.mutate(a, func(m *models.NodeMeta) { m.ErroredOut = true })
}

// SetScore stores a score for a; nil clears it.
func (g *Graph) SetScore(a models.Address, score *float64) error {
	return g.mutate(a, func(m *models.NodeMeta) { m.Score = score })
}

// Annotate adds node-level attributes without overwriting existing keys. It is
// a no-op unless attribute retention is on.
func (g *Graph) Annotate(a models.Address, attrs map[string]any) error {
	if !g.opts.RetainAttributes || len(attrs) == 0 {
		return nil
	}

	return g.mutate(a, func(m *models.NodeMeta) {
		if m.Attributes == nil {
			m.Attributes = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			if _, ok := m.Attributes[k]; !ok {
				m.Attributes[k] = v
			}
		}
	})
}

// RemoveNodes deletes the given addresses and all their edges. Any address left
// without edges is removed as well. It returns every address removed, in
// discovery order.
func (g *Graph) RemoveNodes(addrs []models.Address) []models.Address {
	doomed := make(map[models.Address]bool, len(addrs))
	for _, a := range addrs {
		if g.HasNode(a) {
			doomed[a] = true
		}
	}

	if len(doomed) == 0 {
		return nil
	}

	touched := make(map[models.Address]bool)

	for a := range doomed {
		for _, n := range g.succ[a] {
			touched[n] = true
		}
		for _, n := range g.pred[a] {
			touched[n] = true
		}
	}

	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(k edgeKey) bool {
		if doomed[k.from] || doomed[k.to] {
			delete(g.edges, k)
			return true
		}

		return false
	})

	drop := func(list []models.Address) []models.Address {
		return slices.DeleteFunc(list, func(n models.Address) bool { return doomed[n] })
	}

	for n := range touched {
		if doomed[n] {
			continue
		}

		g.succ[n] = drop(g.succ[n])
		g.pred[n] = drop(g.pred[n])

		if len(g.succ[n])+len(g.pred[n]) == 0 {
			doomed[n] = true
		}
	}

	var removed []models.Address

	g.nodes = slices.DeleteFunc(g.nodes, func(n models.Address) bool {
		if !doomed[n] {
			return false
		}

		delete(g.meta, n)
		delete(g.succ, n)
		delete(g.pred, n)
		removed = append(removed, n)

		return true
	})

	return removed
}

// Compose merges every edge of other into g, leaving g's metadata untouched.
func (g *Graph) Compose(other *Graph) MergeStats {
	return g.Merge(other.Edges())
}
