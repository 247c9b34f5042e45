package graph

import (
	"fmt"

	"github.com/persistorai/screener/internal/models"
)

// NodeRecord pairs an address with its metadata in a Snapshot.
type NodeRecord struct {
	Address models.Address  `json:"address"`
	Meta    models.NodeMeta `json:"meta"`
}

// Snapshot is a plain, serialisable copy of a Graph.
type Snapshot struct {
	Directed         bool          `json:"directed"`
	RetainAttributes bool          `json:"retain_attributes"`
	Nodes            []NodeRecord  `json:"nodes"`
	Edges            []models.Edge `json:"edges"`
}

// Snapshot copies the graph into its serialisable form.
func (g *Graph) Snapshot() *Snapshot {
	s := &Snapshot{
		Directed:         g.Directed(),
		RetainAttributes: g.opts.RetainAttributes,
		Nodes:            make([]NodeRecord, 0, len(g.nodes)),
		Edges:            g.Edges(),
	}

	for _, a := range g.nodes {
		m, _ := g.Meta(a)
		s.Nodes = append(s.Nodes, NodeRecord{Address: a, Meta: m})
	}

	return s
}

// FromSnapshot rebuilds a Graph, keeping the node discovery order of the
// snapshot. Nodes that no edge references are rejected.
func FromSnapshot(s *Snapshot) (*Graph, error) {
	opts := Options{RetainAttributes: s.RetainAttributes}
	if s.Directed {
		opts.Direction = Directed
	}

	g := New(opts)
	for _, rec := range s.Nodes {
		g.addNode(rec.Address)
	}

	g.Merge(s.Edges)

	for _, rec := range s.Nodes {
		if d, _ := g.Degree(rec.Address); d == 0 {
			return nil, fmt.Errorf("snapshot node %s has no edges", rec.Address)
		}

		m := rec.Meta
		g.meta[rec.Address] = &m
	}

	return g, nil
}
