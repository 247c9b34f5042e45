package search

import (
	"time"

	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/risk"
)

// buildReport turns a terminal State into a RiskReport. Scores are read from
// the final graph.
func (e *Engine) buildReport(s *State, start time.Time) *models.RiskReport {
	r := &models.RiskReport{
		SearchID:    s.ID,
		Client:      s.Client,
		Target:      s.Sanctioned,
		Terminal:    s.Phase.terminal(),
		Iterations:  s.Iteration,
		Confidence:  risk.Round4(s.MaxScore),
		Interrupted: s.Interrupted,
		ErroredOut:  s.ErroredOut,
		Degraded:    len(s.ErroredOut) > 0,
		Nodes:       s.Graph.NodeCount(),
		Edges:       s.Graph.EdgeCount(),
		StartedAt:   s.StartedAt,
		Duration:    time.Since(start),
	}

	if s.Phase == PhaseFound {
		r.Found = true
		e.scoreTarget(s, r)
	}

	r.Classification = risk.Classify(r.RiskScore)

	return r
}

// scoreTarget fills the path fields of a found report. In a directed graph the
// target can be present without a path from the client; the score then stays
// zero and the path fields stay empty.
func (e *Engine) scoreTarget(s *State, r *models.RiskReport) {
	path, err := s.Graph.ShortestPath(s.Client, s.Sanctioned)
	if err != nil {
		e.log.WithError(err).WithField("search_id", s.ID).Warn("target present but unreachable from client")
		return
	}

	score, err := risk.ScoreNode(s.Graph, s.Client, s.Sanctioned)
	if err != nil {
		return
	}

	hops := path.Hops()
	r.ShortestPathLength = &hops
	r.Path = path
	r.RiskScore = risk.Round4(score)

	pw, err := risk.PairRiskWeight(s.Graph, s.Client, s.Sanctioned, s.Sanctioned, e.cfg.PathCutoff)
	if err == nil {
		r.PairWeight = &pw
	}
}
