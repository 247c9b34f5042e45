package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/persistorai/screener/internal/models"
)

// Failure names a simulated fetch failure in a replay fixture.
type Failure string

// Simulated failures.
const (
	FailRateLimited Failure = "rate_limited"
	FailNetwork     Failure = "network"
	FailNotFound    Failure = "not_found"
)

func (f Failure) err() error {
	switch f {
	case FailRateLimited:
		return models.ErrRateLimited
	case FailNetwork:
		return models.ErrNetwork
	case FailNotFound:
		return models.ErrAddressNotFound
	default:
		return nil
	}
}

// Fixture is the on-disk replay format.
type Fixture struct {
	Transfers []models.Edge `json:"transfers"`
	// Failures makes every fetch of an address fail with the given kind.
	Failures map[models.Address]Failure `json:"failures,omitempty"`
}

// Replay serves transfers from a fixed set of edges, for offline runs and tests.
type Replay struct {
	byAddr   map[models.Address][]models.Edge
	failures map[models.Address]Failure
	delay    time.Duration

	mu    sync.Mutex
	calls map[models.Address]int
}

// NewReplay indexes the fixture by endpoint.
func NewReplay(f Fixture) *Replay {
	r := &Replay{
		byAddr:   make(map[models.Address][]models.Edge),
		failures: make(map[models.Address]Failure, len(f.Failures)),
		calls:    make(map[models.Address]int),
	}

	for a, kind := range f.Failures {
		if kind.err() == nil {
			continue
		}
		r.failures[models.NormalizeAddress(a.String())] = kind
	}

	for _, e := range f.Transfers {
		e.From = models.NormalizeAddress(e.From.String())
		e.To = models.NormalizeAddress(e.To.String())

		r.byAddr[e.From] = append(r.byAddr[e.From], e)
		if e.To != e.From {
			r.byAddr[e.To] = append(r.byAddr[e.To], e)
		}
	}

	return r
}

// LoadReplay reads a JSON fixture from path.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator.
	if err != nil {
		return nil, fmt.Errorf("reading replay fixture: %w", err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding replay fixture %s: %w", path, err)
	}

	return NewReplay(f), nil
}

// WithDelay makes every fetch take at least d. It returns r.
func (r *Replay) WithDelay(d time.Duration) *Replay {
	r.delay = d
	return r
}

// Fetch implements Source.
func (r *Replay) Fetch(ctx context.Context, addr models.Address) ([]models.Edge, error) {
	addr = models.NormalizeAddress(addr.String())

	r.mu.Lock()
	r.calls[addr]++
	r.mu.Unlock()

	if r.delay > 0 {
		t := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if kind, ok := r.failures[addr]; ok {
		return nil, fmt.Errorf("replay %s: %w", addr, kind.err())
	}

	src := r.byAddr[addr]
	out := make([]models.Edge, len(src))
	copy(out, src)

	return dropZero(out), nil
}

// Canonical lowercases hex addresses, matching how fixtures are indexed.
func (r *Replay) Canonical(addr models.Address) models.Address {
	return models.NormalizeAddress(addr.String())
}

// Calls returns how many times addr was fetched.
func (r *Replay) Calls(addr models.Address) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[models.NormalizeAddress(addr.String())]
}

// TotalCalls returns the number of fetches served.
func (r *Replay) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		n += c
	}

	return n
}
