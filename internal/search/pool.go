package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/screener/internal/metrics"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/retry"
	"github.com/persistorai/screener/internal/source"
)

// errAdmissionClosed marks a fetch abandoned because the layer stopped
// admitting work before it could run.
var errAdmissionClosed = errors.New("admission closed")

type outcome int

const (
	outcomeOK outcome = iota
	outcomeDeadEnd
	outcomeErroredOut
	outcomeInterrupted
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return metrics.FetchOK
	case outcomeDeadEnd:
		return metrics.FetchDeadEnd
	case outcomeErroredOut:
		return metrics.FetchErroredOut
	default:
		return metrics.FetchInterrupted
	}
}

type fetchResult struct {
	index    int
	addr     models.Address
	edges    []models.Edge
	err      error
	attempts int
	outcome  outcome
}

// fetchLayer fetches addrs with a bounded worker pool and merges every result
// into the graph from the calling goroutine, which is the only writer. Results
// are merged in addrs order so a layer produces the same graph whatever order
// the fetches complete in.
//
// Admission stops when ctx is done or when the sanctioned address is merged.
// Fetches already admitted run on a context detached from ctx and are merged
// before fetchLayer returns.
func (e *Engine) fetchLayer(ctx context.Context, s *State, addrs []models.Address) {
	admitCtx, stopAdmission := context.WithCancel(ctx)
	defer stopAdmission()

	fetchCtx := context.WithoutCancel(ctx)

	jobs := make(chan int)
	results := make(chan fetchResult, len(addrs))

	var g errgroup.Group

	g.Go(func() error {
		defer close(jobs)

		for i := range addrs {
			if admitCtx.Err() != nil {
				return nil
			}

			select {
			case <-admitCtx.Done():
				return nil
			case jobs <- i:
			}
		}

		return nil
	})

	for range min(e.cfg.Workers, len(addrs)) {
		g.Go(func() error {
			for i := range jobs {
				results <- e.fetchOne(admitCtx, fetchCtx, i, addrs[i])
			}

			return nil
		})
	}

	go func() {
		_ = g.Wait() //nolint:errcheck // workers never return errors.
		close(results)
	}()

	held := make(map[int]fetchResult)
	next := 0

	for r := range results {
		held[r.index] = r

		for {
			ready, ok := held[next]
			if !ok {
				break
			}

			delete(held, next)
			next++

			e.apply(s, ready)

			if s.Graph.HasNode(s.Sanctioned) {
				stopAdmission()
			}
		}
	}

	// Gaps are addresses that were never admitted; merge whatever finished
	// after them in order.
	for i := next; i < len(addrs); i++ {
		if r, ok := held[i]; ok {
			e.apply(s, r)
		}
	}

	if ctx.Err() != nil {
		s.Interrupted = true
	}
}

// fetchOne runs one address through the limiter, the retry policy and the
// source. Retries stop as soon as admission closes; the request in flight at
// that moment still completes on fetchCtx.
func (e *Engine) fetchOne(admitCtx, fetchCtx context.Context, index int, addr models.Address) fetchResult {
	res := fetchResult{index: index, addr: addr}
	start := time.Now()

	policy := e.cfg.Retry
	policy.Classify = retry.Transient
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		metrics.FetchRetries.Inc()
		e.log.WithError(err).WithFields(logrus.Fields{
			"address": addr,
			"attempt": attempt,
			"wait":    wait,
		}).Warn("fetch failed, retrying")
	}

	res.err = retry.Do(admitCtx, policy, func(context.Context) error {
		if err := e.limiter.Wait(admitCtx); err != nil {
			return fmt.Errorf("%w: %v", errAdmissionClosed, err)
		}

		res.attempts++

		edges, err := e.src.Fetch(fetchCtx, addr)
		if err != nil {
			return err
		}

		res.edges = edges

		return nil
	})

	switch {
	case res.err == nil:
		res.outcome = outcomeOK
	case errors.Is(res.err, models.ErrAddressNotFound):
		res.outcome = outcomeDeadEnd
	case errors.Is(res.err, errAdmissionClosed), admitCtx.Err() != nil:
		res.outcome = outcomeInterrupted
	default:
		res.outcome = outcomeErroredOut
	}

	metrics.FetchesTotal.WithLabelValues(res.outcome.String()).Inc()
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	return res
}

// apply merges one fetch result into the search state.
func (e *Engine) apply(s *State, r fetchResult) {
	log := e.log.WithFields(logrus.Fields{"search_id": s.ID, "address": r.addr})

	switch r.outcome {
	case outcomeOK:
		stats := s.Graph.Merge(r.edges)

		if s.Graph.HasNode(r.addr) {
			attrs := source.Summarize(r.addr, r.edges)
			if e.cfg.AllowList != nil {
				attrs[source.AttrHasABI] = e.cfg.AllowList.Contains(r.addr)
			}
			_ = s.Graph.Annotate(r.addr, attrs) //nolint:errcheck // node presence checked above.
		}

		e.markProcessed(s, r.addr, log)

		log.WithFields(logrus.Fields{
			"transfers": len(r.edges),
			"new_nodes": stats.NodesAdded,
			"new_edges": stats.EdgesAdded,
		}).Debug("merged transfers")
	case outcomeDeadEnd:
		e.markProcessed(s, r.addr, log)
		log.Debug("address has no transfers")
	case outcomeErroredOut:
		s.ErroredOut = append(s.ErroredOut, r.addr)
		if s.Graph.HasNode(r.addr) {
			_ = s.Graph.SetErroredOut(r.addr) //nolint:errcheck // node presence checked above.
		}

		log.WithError(r.err).WithField("attempts", r.attempts).Warn("address errored out")
	case outcomeInterrupted:
		log.Debug("fetch not admitted before the layer closed")
	}
}

func (e *Engine) markProcessed(s *State, a models.Address, log *logrus.Entry) {
	// An address whose fetch returned nothing is not in the graph; there is
	// nothing to mark.
	if !s.Graph.HasNode(a) {
		return
	}

	if err := s.Frontier.MarkProcessed(s.Graph, a); err != nil {
		log.WithError(err).Warn("marking address processed")
	}
}
