package graph

import (
	"fmt"
	"iter"

	"github.com/persistorai/screener/internal/models"
)

// Path is an ordered sequence of addresses with no repeated element.
type Path []models.Address

// Hops returns the number of edges along the path.
func (p Path) Hops() int {
	if len(p) == 0 {
		return 0
	}

	return len(p) - 1
}

// HasPath reports whether b is reachable from a.
func (g *Graph) HasPath(a, b models.Address) bool {
	_, err := g.ShortestPath(a, b)
	return err == nil
}

// ShortestPath finds an unweighted shortest path from a to b using BFS. Ties
// between equal-length paths go to the path found first in edge discovery order.
func (g *Graph) ShortestPath(a, b models.Address) (Path, error) {
	for _, n := range [2]models.Address{a, b} {
		if !g.HasNode(n) {
			return nil, fmt.Errorf("shortest path %s -> %s: %s: %w", a, b, n, models.ErrNodeNotFound)
		}
	}

	if a == b {
		return Path{a}, nil
	}

	visited := map[models.Address]bool{a: true}
	parent := map[models.Address]models.Address{} // child -> parent
	frontier := []models.Address{a}
	found := false

	for len(frontier) > 0 && !found {
		var next []models.Address

		for _, from := range frontier {
			for _, to := range g.succ[from] {
				if visited[to] {
					continue
				}

				visited[to] = true
				parent[to] = from
				next = append(next, to)

				if to == b {
					found = true
					break
				}
			}

			if found {
				break
			}
		}

		frontier = next
	}

	if !found {
		return nil, fmt.Errorf("shortest path %s -> %s: %w", a, b, models.ErrUnreachable)
	}

	// Walk parents back from b, then reverse into a -> b order.
	trail := Path{b}
	for current := b; current != a; {
		current = parent[current]
		trail = append(trail, current)
	}

	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}

	return trail, nil
}

// AllSimplePaths lazily enumerates, depth first, every simple path from a to b
// with at most cutoff hops. Each call to the returned sequence starts a fresh
// enumeration. The number of paths grows quickly with cutoff, so callers must
// keep it small. The graph must not be modified while iterating.
func (g *Graph) AllSimplePaths(a, b models.Address, cutoff int) iter.Seq[Path] {
	return func(yield func(Path) bool) {
		if cutoff < 1 || a == b || !g.HasNode(a) || !g.HasNode(b) {
			return
		}

		onPath := map[models.Address]bool{a: true}
		path := Path{a}

		var walk func(models.Address) bool
		walk = func(n models.Address) bool {
			for _, next := range g.succ[n] {
				if onPath[next] {
					continue
				}

				if next == b {
					out := make(Path, len(path), len(path)+1)
					copy(out, path)

					if !yield(append(out, b)) {
						return false
					}

					continue
				}

				// Extending to next leaves room for at least one more hop only
				// while the path is shorter than cutoff.
				if len(path) >= cutoff {
					continue
				}

				onPath[next] = true
				path = append(path, next)

				if !walk(next) {
					return false
				}

				path = path[:len(path)-1]
				delete(onPath, next)
			}

			return true
		}

		walk(a)
	}
}
