package config

import (
	"fmt"

	"github.com/persistorai/screener/internal/frontier"
	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/search"
)

// SearchConfig converts the loaded settings into engine settings. allow may be
// nil when no allow-list is configured.
func (c *Config) SearchConfig(allow frontier.AllowList) (search.Config, error) {
	mode, err := frontier.ParseMode(c.PruneMode)
	if err != nil {
		return search.Config{}, fmt.Errorf("PRUNE_MODE: %w", err)
	}

	dir, err := graph.ParseDirection(c.EdgeDirection)
	if err != nil {
		return search.Config{}, fmt.Errorf("EDGE_DIRECTION: %w", err)
	}

	sc := search.DefaultConfig()
	sc.RiskLimit = c.RiskLimit
	sc.MaxIters = c.MaxIters
	sc.Workers = c.FetchWorkers
	sc.Rate = c.FetchRate
	sc.Burst = c.FetchBurst
	sc.Retry.MaxAttempts = c.FetchMaxAttempts
	sc.HubThreshold = c.HubThreshold
	sc.PruneMode = mode
	sc.Direction = dir
	sc.RetainAttributes = c.RetainAttributes
	sc.PathCutoff = c.PathCutoff
	sc.Timeout = c.SearchTimeout

	if allow != nil {
		sc.AllowList = allow
	}

	return sc, nil
}
