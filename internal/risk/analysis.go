package risk

import (
	"fmt"

	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
)

// Analysis is the post-hoc exposure summary between two addresses of a
// saved graph.
type Analysis struct {
	Client     models.Address `json:"client"`
	Sanctioned models.Address `json:"sanctioned"`
	Path       graph.Path     `json:"path"`
	Hops       int            `json:"hops"`
	// PairWeight is the all-paths weighting as a fraction; Percent is the
	// same value scaled to percent and banded by Classification.
	PairWeight     float64               `json:"pair_weight"`
	Percent        float64               `json:"percent"`
	Classification models.Classification `json:"classification"`
	Cutoff         int                   `json:"cutoff"`
}

// Analyze summarizes client's exposure to sanctioned in g. Paths longer than
// cutoff hops do not contribute to the weighting. It fails with
// models.ErrUnreachable when no path joins the two.
func Analyze(g *graph.Graph, client, sanctioned models.Address, cutoff int) (*Analysis, error) {
	if cutoff < 1 {
		return nil, fmt.Errorf("%w: cutoff must be at least 1, got %d", models.ErrInvalidInput, cutoff)
	}

	path, err := g.ShortestPath(client, sanctioned)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s -> %s: %w", client, sanctioned, err)
	}

	w, err := PairRiskWeight(g, client, sanctioned, sanctioned, cutoff)
	if err != nil {
		return nil, err
	}

	pct := Round4(w * 100)

	return &Analysis{
		Client:         client,
		Sanctioned:     sanctioned,
		Path:           path,
		Hops:           path.Hops(),
		PairWeight:     w,
		Percent:        pct,
		Classification: Classify(pct),
		Cutoff:         cutoff,
	}, nil
}
