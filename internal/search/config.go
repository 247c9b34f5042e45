package search

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/persistorai/screener/internal/frontier"
	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
	"github.com/persistorai/screener/internal/retry"
)

// Config parameterizes one Engine.
type Config struct {
	// RiskLimit is the score, in percent, a node must exceed to be expanded.
	RiskLimit float64
	MaxIters  int

	Workers int
	// Rate is the fetch budget in requests per second; zero means unlimited.
	Rate  float64
	Burst int
	Retry retry.Policy

	// HubThreshold is the degree at which a candidate is treated as a hub.
	// Zero disables pruning.
	HubThreshold     int
	PruneMode        frontier.Mode
	Direction        graph.Direction
	RetainAttributes bool
	AllowList        frontier.AllowList

	// PathCutoff bounds the pair weight path enumeration, in hops.
	PathCutoff int
	// Timeout bounds a whole search; zero means none.
	Timeout time.Duration
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		RiskLimit:    0.01,
		MaxIters:     10,
		Workers:      4,
		Rate:         5,
		Burst:        1,
		Retry:        retry.Policy{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Jitter: 100 * time.Millisecond},
		HubThreshold: 10000,
		PruneMode:    frontier.Exclude,
		PathCutoff:   4,
	}
}

func (c *Config) validate() error {
	switch {
	case c.RiskLimit <= 0:
		return invalid("risk_limit must be positive, got %v", c.RiskLimit)
	case c.MaxIters <= 0:
		return invalid("max_iters must be positive, got %d", c.MaxIters)
	case c.Workers <= 0:
		return invalid("workers must be positive, got %d", c.Workers)
	case c.Rate < 0:
		return invalid("rate must not be negative, got %v", c.Rate)
	case c.HubThreshold < 0:
		return invalid("hub_threshold must not be negative, got %d", c.HubThreshold)
	case c.PathCutoff < 1:
		return invalid("path_cutoff must be at least 1, got %d", c.PathCutoff)
	case c.Timeout < 0:
		return invalid("timeout must not be negative, got %s", c.Timeout)
	}

	return nil
}

func (c *Config) limiter() *rate.Limiter {
	if c.Rate == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	burst := max(c.Burst, 1)

	return rate.NewLimiter(rate.Limit(c.Rate), burst)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Option configures an Engine.
type Option func(*Engine)

// WithCheckpoint saves the search state through p after every layer.
func WithCheckpoint(p persist.Persistence) Option {
	return func(e *Engine) { e.checkpoint = p }
}

// WithLimiter shares a fetch rate limiter between engines, so that concurrent
// searches stay inside one upstream budget together.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithGraph hands each search's final graph to fn once the report is built.
func WithGraph(fn func(*graph.Graph)) Option {
	return func(e *Engine) { e.onGraph = fn }
}

// NewLimiter builds the limiter Config describes, for use with WithLimiter.
func NewLimiter(cfg Config) *rate.Limiter {
	return cfg.limiter()
}
