// Package frontier decides which discovered addresses a search expands next and
// keeps aggregation hubs out of the expansion set.
package frontier

import (
	"fmt"
	"slices"

	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
)

// Mode selects what happens to a pruned hub.
type Mode int

// Prune modes.
const (
	// Exclude keeps hubs and their edges in the graph but never expands them.
	Exclude Mode = iota
	// Delete removes hubs and their edges from the graph.
	Delete
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == Delete {
		return "delete"
	}

	return "exclude"
}

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "exclude":
		return Exclude, nil
	case "delete":
		return Delete, nil
	default:
		return Exclude, fmt.Errorf("%w: prune mode must be 'exclude' or 'delete', got %q", models.ErrInvalidInput, s)
	}
}

// AllowList reports whether an address is known infrastructure.
type AllowList interface {
	Contains(models.Address) bool
}

// Options configures a Controller.
type Options struct {
	// MaxOut is the hub degree ceiling. Zero or less disables pruning.
	MaxOut    int
	Mode      Mode
	AllowList AllowList
	// Protected addresses are never pruned.
	Protected []models.Address
}

// Controller tracks the expansion frontier of one search. It is not safe for
// concurrent use.
type Controller struct {
	opts      Options
	protected map[models.Address]bool
	excluded  map[models.Address]bool
}

// New creates a Controller.
func New(opts Options) *Controller {
	c := &Controller{
		opts:      opts,
		protected: make(map[models.Address]bool, len(opts.Protected)),
		excluded:  make(map[models.Address]bool),
	}

	for _, a := range opts.Protected {
		c.protected[a] = true
	}

	return c
}

// Mode returns the configured prune mode.
func (c *Controller) Mode() Mode { return c.opts.Mode }

// Hubs returns the candidates whose degree is at least MaxOut, in the order given.
func (c *Controller) Hubs(g *graph.Graph, candidates []models.Address) []models.Address {
	if c.opts.MaxOut <= 0 {
		return nil
	}

	var hubs []models.Address

	for _, a := range candidates {
		if c.protected[a] || c.excluded[a] {
			continue
		}

		d, err := g.Degree(a)
		if err != nil {
			continue
		}

		if d >= c.opts.MaxOut {
			hubs = append(hubs, a)
		}
	}

	return hubs
}

// PruneResult describes one PruneHubs call.
type PruneResult struct {
	Hubs []models.Address
	// Removed lists every address deleted from the graph, hubs and the
	// neighbours they orphaned. It is empty in Exclude mode.
	Removed []models.Address
}

// PruneHubs applies the prune mode to every hub among candidates. History that
// was already expanded is never touched.
func (c *Controller) PruneHubs(g *graph.Graph, candidates []models.Address) PruneResult {
	hubs := c.Hubs(g, candidates)
	if len(hubs) == 0 {
		return PruneResult{}
	}

	res := PruneResult{Hubs: hubs}

	switch c.opts.Mode {
	case Delete:
		res.Removed = g.RemoveNodes(hubs)
	default:
		for _, h := range hubs {
			c.excluded[h] = true
		}
	}

	return res
}

// Candidates returns unprocessed addresses that have not errored out, in
// discovery order.
func Candidates(g *graph.Graph) []models.Address {
	var out []models.Address

	for _, a := range g.Nodes() {
		m, ok := g.Meta(a)
		if !ok || m.Processed || m.ErroredOut {
			continue
		}

		out = append(out, a)
	}

	return out
}

// SelectPending returns the addresses to expand next: unprocessed, not errored
// out, not excluded as a hub, not allow-listed, and either unscored or scored
// above riskLimit.
func (c *Controller) SelectPending(g *graph.Graph, riskLimit float64) []models.Address {
	var out []models.Address

	for _, a := range Candidates(g) {
		if c.excluded[a] || c.allowListed(a) {
			continue
		}

		m, _ := g.Meta(a)
		if m.Score == nil || *m.Score > riskLimit {
			out = append(out, a)
		}
	}

	return out
}

// MarkProcessed records that a's edges have been fetched and merged.
func (c *Controller) MarkProcessed(g *graph.Graph, a models.Address) error {
	return g.SetProcessed(a)
}

// Excluded returns the hubs barred from expansion, sorted.
func (c *Controller) Excluded() []models.Address {
	out := make([]models.Address, 0, len(c.excluded))
	for a := range c.excluded {
		out = append(out, a)
	}
	slices.Sort(out)

	return out
}

// Restore re-applies a previously saved exclusion list.
func (c *Controller) Restore(excluded []models.Address) {
	for _, a := range excluded {
		c.excluded[a] = true
	}
}

func (c *Controller) allowListed(a models.Address) bool {
	return c.opts.AllowList != nil && c.opts.AllowList.Contains(a)
}
