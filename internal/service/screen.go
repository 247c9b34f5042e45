// Package service runs screening searches on behalf of the API and CLI.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
	"github.com/persistorai/screener/internal/search"
	"github.com/persistorai/screener/internal/source"
)

// ReportEnqueuer accepts finished reports for asynchronous storage.
type ReportEnqueuer interface {
	Enqueue(r *models.RiskReport)
}

// ScreenService builds one engine per request from a base configuration.
// All engines share a single fetch limiter, so concurrent requests stay
// inside one upstream budget.
type ScreenService struct {
	base        search.Config
	src         source.Source
	log         *logrus.Logger
	limiter     *rate.Limiter
	checkpoints persist.Persistence
	reports     persist.Reports
	writer      ReportEnqueuer
}

// ScreenOption configures a ScreenService.
type ScreenOption func(*ScreenService)

// WithCheckpoints saves every search's state after each layer.
func WithCheckpoints(p persist.Persistence) ScreenOption {
	return func(s *ScreenService) { s.checkpoints = p }
}

// WithReports makes finished reports retrievable by search ID. When w is
// non-nil reports are written through it instead of synchronously.
func WithReports(r persist.Reports, w ReportEnqueuer) ScreenOption {
	return func(s *ScreenService) {
		s.reports = r
		s.writer = w
	}
}

// NewScreenService creates a ScreenService.
func NewScreenService(base search.Config, src source.Source, log *logrus.Logger, opts ...ScreenOption) *ScreenService {
	s := &ScreenService{
		base:    base,
		src:     src,
		log:     log,
		limiter: search.NewLimiter(base),
	}
	for _, o := range opts {
		o(s)
	}

	return s
}

// Screen runs one search. Per-request limits override the base configuration.
// Only invalid input is returned as an error.
func (s *ScreenService) Screen(ctx context.Context, req models.ScreenRequest) (*models.RiskReport, error) {
	req.Client = models.Address(strings.TrimSpace(req.Client.String()))
	req.Sanctioned = models.Address(strings.TrimSpace(req.Sanctioned.String()))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	cfg := s.base
	if req.RiskLimit != nil {
		cfg.RiskLimit = *req.RiskLimit
	}

	if req.MaxIters != nil {
		cfg.MaxIters = *req.MaxIters
	}

	opts := []search.Option{search.WithLimiter(s.limiter)}
	if s.checkpoints != nil {
		opts = append(opts, search.WithCheckpoint(s.checkpoints))
	}

	engine, err := search.New(cfg, s.src, s.log, opts...)
	if err != nil {
		return nil, err
	}

	report, err := engine.Run(ctx, req.Client, req.Sanctioned)
	if err != nil {
		return nil, err
	}

	s.store(ctx, report)

	return report, nil
}

// GetReport returns a stored report.
func (s *ScreenService) GetReport(ctx context.Context, id uuid.UUID) (*models.RiskReport, error) {
	if s.reports == nil {
		return nil, fmt.Errorf("%w: report storage is not configured", persist.ErrNotFound)
	}

	return s.reports.GetReport(ctx, id)
}

func (s *ScreenService) store(ctx context.Context, r *models.RiskReport) {
	switch {
	case s.writer != nil:
		s.writer.Enqueue(r)
	case s.reports != nil:
		if err := s.reports.SaveReport(context.WithoutCancel(ctx), r); err != nil {
			s.log.WithError(err).WithField("search_id", r.SearchID).Warn("saving report failed")
		}
	}
}
