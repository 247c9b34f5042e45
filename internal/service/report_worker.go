package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
)

// ReportWorker buffers finished reports and writes them via a single worker goroutine.
type ReportWorker struct {
	store persist.Reports
	log   *logrus.Logger
	jobs  chan *models.RiskReport
}

// NewReportWorker creates a ReportWorker with the given queue capacity.
func NewReportWorker(store persist.Reports, log *logrus.Logger, queueSize int) *ReportWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &ReportWorker{
		store: store,
		log:   log,
		jobs:  make(chan *models.RiskReport, queueSize),
	}
}

// Enqueue adds a report. Non-blocking; drops the report if the queue is full.
func (w *ReportWorker) Enqueue(r *models.RiskReport) {
	select {
	case w.jobs <- r:
	default:
		w.log.WithField("search_id", r.SearchID).Warn("report queue full, dropping report")
	}
}

// Run writes reports until the context is cancelled, then drains remaining reports.
func (w *ReportWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case r := <-w.jobs:
			w.process(r)
		}
	}
}

func (w *ReportWorker) drain() {
	for {
		select {
		case r := <-w.jobs:
			w.process(r)
		default:
			return
		}
	}
}

func (w *ReportWorker) process(r *models.RiskReport) {
	if err := w.store.SaveReport(context.Background(), r); err != nil {
		w.log.WithError(err).WithField("search_id", r.SearchID).Warn("report save failed")
	}
}
