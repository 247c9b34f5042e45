// Package risk scores how closely an address is tied to a root address by the
// inverse degrees of the addresses that connect them.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
)

// pathWeight multiplies 1/degree over every address in p except skip.
func pathWeight(g *graph.Graph, p graph.Path, skip models.Address) (float64, error) {
	w := 1.0

	for _, n := range p {
		if n == skip {
			continue
		}

		d, err := g.Degree(n)
		if err != nil {
			return 0, err
		}

		// Nodes only exist through an incident edge, so d >= 1.
		w /= float64(d)
	}

	return w, nil
}

// ScoreNode returns 100 * product(1/degree) along the shortest path from root to
// node, endpoints included. It fails with models.ErrUnreachable when no path
// exists, in which case the score is unset.
func ScoreNode(g *graph.Graph, root, node models.Address) (float64, error) {
	p, err := g.ShortestPath(root, node)
	if err != nil {
		return 0, err
	}

	w, err := pathWeight(g, p, "")
	if err != nil {
		return 0, fmt.Errorf("scoring %s: %w", node, err)
	}

	return 100 * w, nil
}

// Summary describes one scoring pass.
type Summary struct {
	Scored      int
	Unreachable int
	// Max is the highest score assigned in the pass, root excluded.
	Max float64
}

// ScoreAll recomputes and stores the score of every listed node against the
// current graph. Nodes with no path from root have their score cleared.
func ScoreAll(g *graph.Graph, root models.Address, nodes []models.Address) (Summary, error) {
	var sum Summary

	for _, n := range nodes {
		s, err := ScoreNode(g, root, n)
		switch {
		case err == nil:
			if err := g.SetScore(n, &s); err != nil {
				return sum, err
			}

			sum.Scored++
			if n != root && s > sum.Max {
				sum.Max = s
			}
		case errors.Is(err, models.ErrUnreachable), errors.Is(err, models.ErrNodeNotFound):
			if g.HasNode(n) {
				if err := g.SetScore(n, nil); err != nil {
					return sum, err
				}
			}

			sum.Unreachable++
		default:
			return sum, err
		}
	}

	return sum, nil
}

// PairRiskWeight sums, over every simple path of at most cutoff hops between a
// and b, the product of 1/degree of the path's addresses other than excluded.
// The result is a fraction (not a percentage) rounded to 4 decimal places.
func PairRiskWeight(g *graph.Graph, a, b, excluded models.Address, cutoff int) (float64, error) {
	for _, n := range [2]models.Address{a, b} {
		if !g.HasNode(n) {
			return 0, fmt.Errorf("pair weight %s/%s: %s: %w", a, b, n, models.ErrNodeNotFound)
		}
	}

	total := 0.0

	for p := range g.AllSimplePaths(a, b, cutoff) {
		w, err := pathWeight(g, p, excluded)
		if err != nil {
			return 0, err
		}

		total += w
	}

	return Round4(total), nil
}

// Round4 rounds x to 4 decimal places.
func Round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

// Classify maps a score in percent onto its risk band.
func Classify(percent float64) models.Classification {
	switch {
	case percent > 10:
		return models.ClassHigh
	case percent >= 1:
		return models.ClassModerate
	case percent >= 0.1:
		return models.ClassLow
	default:
		return models.ClassMinimal
	}
}
