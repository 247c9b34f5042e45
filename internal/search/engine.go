// Package search runs a screening search: it grows a transfer graph outward
// from a client address, layer by layer, until the sanctioned address shows
// up, the frontier is empty, or the iteration budget is spent.
package search

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/persistorai/screener/internal/frontier"
	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/metrics"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
	"github.com/persistorai/screener/internal/risk"
	"github.com/persistorai/screener/internal/source"
)

const checkpointTimeout = 30 * time.Second

// Engine runs searches against one transaction source. An Engine may run
// several searches concurrently; each search owns its own State.
type Engine struct {
	cfg        Config
	src        source.Source
	log        *logrus.Logger
	limiter    *rate.Limiter
	checkpoint persist.Persistence
	onGraph    func(*graph.Graph)
}

// New validates cfg and returns an Engine. Configuration problems are
// reported as models.ErrInvalidInput.
func New(cfg Config, src source.Source, log *logrus.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if src == nil {
		return nil, invalid("transaction source is required")
	}

	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	e := &Engine{cfg: cfg, src: src, log: log}
	for _, o := range opts {
		o(e)
	}

	if e.limiter == nil {
		e.limiter = cfg.limiter()
	}

	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run screens client for exposure to sanctioned. It returns an error only for
// invalid input; every runtime failure is absorbed into the report.
func (e *Engine) Run(ctx context.Context, client, sanctioned models.Address) (*models.RiskReport, error) {
	client = source.Canonical(e.src, client)
	sanctioned = source.Canonical(e.src, sanctioned)

	req := models.ScreenRequest{Client: client, Sanctioned: sanctioned}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s := &State{
		ID:         uuid.New(),
		Graph:      graph.New(graph.Options{Direction: e.cfg.Direction, RetainAttributes: e.cfg.RetainAttributes}),
		Frontier:   e.newFrontier(client, sanctioned),
		Client:     client,
		Sanctioned: sanctioned,
		RiskLimit:  e.cfg.RiskLimit,
		MaxIters:   e.cfg.MaxIters,
		Phase:      PhaseInit,
		StartedAt:  time.Now().UTC(),
	}

	return e.run(ctx, s), nil
}

// Resume continues a checkpointed search from its last completed layer. The
// engine's own limits apply, so a resumed search may be given more iterations
// than it started with.
func (e *Engine) Resume(ctx context.Context, cp *persist.Checkpoint) (*models.RiskReport, error) {
	if err := cp.Validate(); err != nil {
		return nil, err
	}

	g, err := graph.FromSnapshot(cp.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	s := &State{
		ID:         cp.SearchID,
		Graph:      g,
		Frontier:   e.newFrontier(cp.Client, cp.Sanctioned),
		Client:     cp.Client,
		Sanctioned: cp.Sanctioned,
		RiskLimit:  e.cfg.RiskLimit,
		MaxIters:   e.cfg.MaxIters,
		Iteration:  cp.Iteration,
		MaxScore:   cp.MaxScore,
		Phase:      PhaseCheckTarget,
		StartedAt:  cp.StartedAt,
	}
	s.Frontier.Restore(cp.Excluded)

	for _, a := range g.Nodes() {
		if m, _ := g.Meta(a); m.ErroredOut {
			s.ErroredOut = append(s.ErroredOut, a)
		}
	}

	e.log.WithFields(logrus.Fields{
		"search_id": s.ID,
		"iteration": s.Iteration,
		"nodes":     g.NodeCount(),
	}).Info("resuming search")

	return e.run(ctx, s), nil
}

func (e *Engine) newFrontier(client, sanctioned models.Address) *frontier.Controller {
	return frontier.New(frontier.Options{
		MaxOut:    e.cfg.HubThreshold,
		Mode:      e.cfg.PruneMode,
		AllowList: e.cfg.AllowList,
		Protected: []models.Address{client, sanctioned},
	})
}

func (e *Engine) run(ctx context.Context, s *State) *models.RiskReport {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()

	metrics.ActiveSearches.Inc()
	defer metrics.ActiveSearches.Dec()

	log := e.log.WithFields(logrus.Fields{
		"search_id":  s.ID,
		"client":     s.Client,
		"sanctioned": s.Sanctioned,
	})
	log.Info("search started")

	for !s.Phase.Terminal() {
		prev := s.Phase

		switch s.Phase {
		case PhaseInit:
			e.initialize(ctx, s)
		case PhaseCheckTarget:
			e.checkTarget(ctx, s)
		case PhaseScoring:
			e.score(s, log)
		case PhaseExpanding:
			e.expand(ctx, s, log)
		}

		log.WithFields(logrus.Fields{
			"from":      prev,
			"to":        s.Phase,
			"iteration": s.Iteration,
		}).Debug("search transition")
	}

	report := e.buildReport(s, start)

	metrics.SearchesTotal.WithLabelValues(string(report.Terminal)).Inc()
	metrics.SearchIterations.Observe(float64(report.Iterations))
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.GraphNodes.Set(float64(report.Nodes))
	metrics.GraphEdges.Set(float64(report.Edges))

	log.WithFields(logrus.Fields{
		"terminal":       report.Terminal,
		"risk_score":     report.RiskScore,
		"classification": report.Classification,
		"iterations":     report.Iterations,
		"nodes":          report.Nodes,
		"degraded":       report.Degraded,
		"interrupted":    report.Interrupted,
	}).Info("search finished")

	if e.onGraph != nil {
		e.onGraph(s.Graph)
	}

	return report
}

// initialize fetches and merges the client's own transfers.
func (e *Engine) initialize(ctx context.Context, s *State) {
	e.fetchLayer(ctx, s, []models.Address{s.Client})
	s.Phase = PhaseCheckTarget
}

// checkTarget runs on every loop entry, including after the last permitted
// layer. The target test deliberately precedes the iteration budget, so a
// target merged in the final layer ends FOUND rather than MAX_ITERS.
func (e *Engine) checkTarget(ctx context.Context, s *State) {
	switch {
	case s.Graph.HasNode(s.Sanctioned):
		s.Phase = PhaseFound
	case s.Iteration >= s.MaxIters:
		s.Phase = PhaseMaxIters
	case s.Interrupted || ctx.Err() != nil:
		s.Interrupted = true
		s.Phase = PhaseMaxIters
	default:
		s.Phase = PhaseScoring
	}
}

// score recomputes every candidate's score against the current graph.
func (e *Engine) score(s *State, log *logrus.Entry) {
	sum, err := risk.ScoreAll(s.Graph, s.Client, frontier.Candidates(s.Graph))
	if err != nil {
		log.WithError(err).Warn("scoring pass incomplete")
	}

	s.MaxScore = max(s.MaxScore, sum.Max)

	log.WithFields(logrus.Fields{
		"scored":      sum.Scored,
		"unreachable": sum.Unreachable,
		"max_score":   sum.Max,
	}).Debug("scoring pass")

	s.Phase = PhaseExpanding
}

// expand prunes hubs, selects the next layer and fetches it.
func (e *Engine) expand(ctx context.Context, s *State, log *logrus.Entry) {
	pruned := s.Frontier.PruneHubs(s.Graph, frontier.Candidates(s.Graph))
	if len(pruned.Hubs) > 0 {
		metrics.PrunedHubs.WithLabelValues(s.Frontier.Mode().String()).Add(float64(len(pruned.Hubs)))

		log.WithFields(logrus.Fields{
			"hubs":    len(pruned.Hubs),
			"removed": len(pruned.Removed),
			"mode":    s.Frontier.Mode(),
		}).Info("pruned hub addresses")
	}

	if slices.Contains(pruned.Removed, s.Client) {
		log.Warn("hub pruning disconnected the client; no further expansion possible")
		s.Phase = PhaseExhausted

		return
	}

	pending := s.Frontier.SelectPending(s.Graph, s.RiskLimit)
	if len(pending) == 0 {
		s.Phase = PhaseExhausted
		return
	}

	log.WithFields(logrus.Fields{
		"iteration": s.Iteration + 1,
		"pending":   len(pending),
	}).Info("expanding layer")

	e.fetchLayer(ctx, s, pending)
	s.Iteration++

	e.saveCheckpoint(s, log)

	s.Phase = PhaseCheckTarget
}

func (e *Engine) saveCheckpoint(s *State, log *logrus.Entry) {
	if e.checkpoint == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	if err := e.checkpoint.Save(ctx, s.checkpoint()); err != nil {
		log.WithError(err).Warn("saving checkpoint failed")
	}
}
