package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/persistorai/screener/internal/allowlist"
	"github.com/persistorai/screener/internal/frontier"
	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
	"github.com/persistorai/screener/internal/retry"
	"github.com/persistorai/screener/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Rate = 0
	cfg.Retry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	return cfg
}

func transfers(pairs ...string) []models.Edge {
	edges := make([]models.Edge, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		edges = append(edges, models.Edge{From: models.Address(pairs[i]), To: models.Address(pairs[i+1])})
	}

	return edges
}

func newEngine(t *testing.T, cfg Config, src source.Source, opts ...Option) *Engine {
	t.Helper()

	e, err := New(cfg, src, testLogger(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return e
}

func run(t *testing.T, e *Engine, client, sanctioned models.Address) *models.RiskReport {
	t.Helper()

	r, err := e.Run(context.Background(), client, sanctioned)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	return r
}

func TestRun_FoundInFirstFetch(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "y", "x", "a", "a", "b")})

	r := run(t, newEngine(t, testConfig(), src), "x", "y")

	if r.Terminal != models.TerminalFound || !r.Found {
		t.Fatalf("terminal = %s, found = %v", r.Terminal, r.Found)
	}
	if r.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", r.Iterations)
	}
	if src.TotalCalls() != 1 {
		t.Errorf("fetched %d addresses, want only the client", src.TotalCalls())
	}

	// degree(x)=2, degree(y)=1
	if r.RiskScore != 50 || r.Classification != models.ClassHigh {
		t.Errorf("score = %v (%s), want 50 (HIGH)", r.RiskScore, r.Classification)
	}
	if r.ShortestPathLength == nil || *r.ShortestPathLength != 1 {
		t.Errorf("ShortestPathLength = %v, want 1", r.ShortestPathLength)
	}
	if r.PairWeight == nil || *r.PairWeight != 0.5 {
		t.Errorf("PairWeight = %v, want 0.5", r.PairWeight)
	}
	if r.SearchID == uuid.Nil {
		t.Error("missing search id")
	}
}

func TestRun_ExhaustedWhenClientHasNoTransfers(t *testing.T) {
	src := source.NewReplay(source.Fixture{})

	r := run(t, newEngine(t, testConfig(), src), "x", "y")

	if r.Terminal != models.TerminalExhausted || r.Found {
		t.Fatalf("terminal = %s, found = %v", r.Terminal, r.Found)
	}
	if r.RiskScore != 0 || r.ShortestPathLength != nil || r.Classification != models.ClassMinimal {
		t.Errorf("unexpected score fields: %+v", r)
	}
	if r.Degraded || r.Interrupted {
		t.Errorf("degraded = %v, interrupted = %v", r.Degraded, r.Interrupted)
	}
}

func TestRun_ExhaustedAfterOneIteration(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a")})

	r := run(t, newEngine(t, testConfig(), src), "x", "y")

	if r.Terminal != models.TerminalExhausted {
		t.Fatalf("terminal = %s, want EXHAUSTED", r.Terminal)
	}
	if r.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", r.Iterations)
	}
	if r.Confidence != 100 {
		t.Errorf("Confidence = %v, want 100", r.Confidence)
	}
	if r.RiskScore != 0 {
		t.Errorf("RiskScore = %v, want 0", r.RiskScore)
	}
}

func TestRun_MaxItersWithCandidatesRemaining(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "a", "b", "b", "c", "c", "y")})

	cfg := testConfig()
	cfg.MaxIters = 1

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalMaxIters || !r.Inconclusive() {
		t.Fatalf("terminal = %s, want MAX_ITERS", r.Terminal)
	}
	if r.Found || r.Interrupted {
		t.Errorf("found = %v, interrupted = %v", r.Found, r.Interrupted)
	}
	if r.Nodes != 3 || r.Edges != 2 {
		t.Errorf("partial graph = %d nodes / %d edges, want 3 / 2", r.Nodes, r.Edges)
	}
	if src.Calls("b") != 0 {
		t.Error("b expanded beyond the iteration budget")
	}
}

func TestRun_TargetMergedInFinalLayerIsFound(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "a", "y")})

	cfg := testConfig()
	cfg.MaxIters = 1

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalFound {
		t.Fatalf("terminal = %s, want FOUND", r.Terminal)
	}
	if r.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", r.Iterations)
	}
	if !slices.Equal(r.Path, []models.Address{"x", "a", "y"}) {
		t.Errorf("Path = %v", r.Path)
	}
	// (1/1)(1/2)(1/1)
	if r.RiskScore != 50 {
		t.Errorf("RiskScore = %v, want 50", r.RiskScore)
	}
	if r.ShortestPathLength == nil || *r.ShortestPathLength != 2 {
		t.Errorf("ShortestPathLength = %v, want 2", r.ShortestPathLength)
	}
}

func TestRun_ErroredOutAddressIsIsolated(t *testing.T) {
	src := source.NewReplay(source.Fixture{
		Transfers: transfers("x", "a", "x", "b", "b", "y"),
		Failures:  map[models.Address]source.Failure{"a": source.FailNetwork},
	})

	r := run(t, newEngine(t, testConfig(), src), "x", "y")

	if r.Terminal != models.TerminalFound {
		t.Fatalf("terminal = %s, want FOUND", r.Terminal)
	}
	if !r.Degraded || !slices.Equal(r.ErroredOut, []models.Address{"a"}) {
		t.Errorf("degraded = %v, errored = %v", r.Degraded, r.ErroredOut)
	}
	if got := src.Calls("a"); got != 2 {
		t.Errorf("a fetched %d times, want 2 attempts", got)
	}
}

func TestRun_ErroredOutIsNotRetriedNextLayer(t *testing.T) {
	src := source.NewReplay(source.Fixture{
		Transfers: transfers("x", "a", "x", "b", "b", "c", "c", "d"),
		Failures:  map[models.Address]source.Failure{"a": source.FailRateLimited},
	})

	r := run(t, newEngine(t, testConfig(), src), "x", "y")

	if r.Terminal != models.TerminalExhausted {
		t.Fatalf("terminal = %s, want EXHAUSTED", r.Terminal)
	}
	if got := src.Calls("a"); got != 2 {
		t.Errorf("a fetched %d times across layers, want 2", got)
	}
}

// flaky fails the first n fetches of every address with err.
type flaky struct {
	source.Source

	mu    sync.Mutex
	n     int
	err   error
	calls map[models.Address]int
}

func (f *flaky) Fetch(ctx context.Context, a models.Address) ([]models.Edge, error) {
	f.mu.Lock()
	f.calls[a]++
	c := f.calls[a]
	f.mu.Unlock()

	if c <= f.n {
		return nil, fmt.Errorf("flaky %s: %w", a, f.err)
	}

	return f.Source.Fetch(ctx, a)
}

func TestRun_TransientFailuresAreRetried(t *testing.T) {
	src := &flaky{
		Source: source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "a", "y")}),
		n:      2,
		err:    models.ErrRateLimited,
		calls:  make(map[models.Address]int),
	}

	cfg := testConfig()
	cfg.Retry.MaxAttempts = 3

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalFound || r.Degraded {
		t.Fatalf("terminal = %s, degraded = %v", r.Terminal, r.Degraded)
	}
	if src.calls["a"] != 3 {
		t.Errorf("a attempted %d times, want 3", src.calls["a"])
	}
}

func TestRun_NodesBelowRiskLimitAreNotExpanded(t *testing.T) {
	var pairs []string
	for i := range 200 {
		pairs = append(pairs, "x", fmt.Sprintf("leaf%d", i))
	}
	src := source.NewReplay(source.Fixture{Transfers: transfers(pairs...)})

	cfg := testConfig()
	cfg.RiskLimit = 1.0

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalExhausted || r.Iterations != 0 {
		t.Fatalf("terminal = %s after %d iterations", r.Terminal, r.Iterations)
	}
	if src.TotalCalls() != 1 {
		t.Errorf("fetched %d addresses, want 1", src.TotalCalls())
	}
	if r.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", r.Confidence)
	}
}

func hubFixture() []models.Edge {
	var pairs []string
	for i := range 12 {
		a := fmt.Sprintf("a%d", i)
		pairs = append(pairs, "x", a, a, "h")
	}
	pairs = append(pairs, "h", "y")

	return transfers(pairs...)
}

func TestRun_HubPruning(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		mode      frontier.Mode
		terminal  models.Terminal
		nodes     int
		hubCalls  int
	}{
		{"exclude", 10, frontier.Exclude, models.TerminalExhausted, 14, 0},
		{"delete", 10, frontier.Delete, models.TerminalExhausted, 13, 0},
		{"disabled", 0, frontier.Exclude, models.TerminalFound, 15, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := source.NewReplay(source.Fixture{Transfers: hubFixture()})

			cfg := testConfig()
			cfg.RiskLimit = 1e-9
			cfg.HubThreshold = tc.threshold
			cfg.PruneMode = tc.mode

			r := run(t, newEngine(t, cfg, src), "x", "y")

			if r.Terminal != tc.terminal {
				t.Fatalf("terminal = %s, want %s", r.Terminal, tc.terminal)
			}
			if r.Nodes != tc.nodes {
				t.Errorf("Nodes = %d, want %d", r.Nodes, tc.nodes)
			}
			if got := src.Calls("h"); got != tc.hubCalls {
				t.Errorf("hub fetched %d times, want %d", got, tc.hubCalls)
			}
		})
	}
}

func TestRun_AllowListedAddressIsNeverExpanded(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "c", "c", "y")})

	cfg := testConfig()
	cfg.AllowList = allowlist.New("C")

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalExhausted {
		t.Fatalf("terminal = %s, want EXHAUSTED", r.Terminal)
	}
	if src.Calls("c") != 0 {
		t.Error("allow-listed contract was fetched")
	}
}

func TestRun_TimeoutMergesInFlightFetches(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "a", "y")}).WithDelay(100 * time.Millisecond)

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalMaxIters || !r.Interrupted {
		t.Fatalf("terminal = %s, interrupted = %v", r.Terminal, r.Interrupted)
	}
	if r.Nodes != 2 {
		t.Errorf("Nodes = %d, want the client fetch merged (2)", r.Nodes)
	}
	if src.Calls("a") != 0 {
		t.Error("fetch admitted after the deadline")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "y")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := newEngine(t, testConfig(), src).Run(ctx, "x", "y")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.Terminal != models.TerminalMaxIters || !r.Interrupted {
		t.Errorf("terminal = %s, interrupted = %v", r.Terminal, r.Interrupted)
	}
	if src.TotalCalls() != 0 {
		t.Errorf("fetched %d addresses after cancellation", src.TotalCalls())
	}
}

func TestRun_TargetStopsAdmission(t *testing.T) {
	src := source.NewReplay(source.Fixture{
		Transfers: transfers("x", "a", "x", "b", "x", "c", "x", "d", "x", "e", "b", "y"),
	}).WithDelay(5 * time.Millisecond)

	cfg := testConfig()
	cfg.Workers = 1

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalFound {
		t.Fatalf("terminal = %s, want FOUND", r.Terminal)
	}
	if r.Interrupted {
		t.Error("stopping on the target is not an interruption")
	}
	if src.Calls("d") != 0 || src.Calls("e") != 0 {
		t.Errorf("fetches admitted after the target merged: d=%d e=%d", src.Calls("d"), src.Calls("e"))
	}
}

func TestRun_DirectedTargetWithoutPath(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("y", "x")})

	cfg := testConfig()
	cfg.Direction = graph.Directed

	r := run(t, newEngine(t, cfg, src), "x", "y")

	if r.Terminal != models.TerminalFound || !r.Found {
		t.Fatalf("terminal = %s", r.Terminal)
	}
	if r.RiskScore != 0 || r.ShortestPathLength != nil {
		t.Errorf("score = %v, path length = %v; want 0 and none", r.RiskScore, r.ShortestPathLength)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	src := source.NewReplay(source.Fixture{})

	mutate := map[string]func(*Config){
		"risk limit":  func(c *Config) { c.RiskLimit = 0 },
		"max iters":   func(c *Config) { c.MaxIters = 0 },
		"workers":     func(c *Config) { c.Workers = 0 },
		"rate":        func(c *Config) { c.Rate = -1 },
		"path cutoff": func(c *Config) { c.PathCutoff = 0 },
	}

	for name, fn := range mutate {
		cfg := testConfig()
		fn(&cfg)

		if _, err := New(cfg, src, testLogger()); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}

	if _, err := New(testConfig(), nil, testLogger()); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("nil source: err = %v", err)
	}

	e := newEngine(t, testConfig(), src)
	for _, pair := range [][2]models.Address{{"", "y"}, {"x", ""}, {"x", "X"}, {"x y", "z"}} {
		if _, err := e.Run(context.Background(), pair[0], pair[1]); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Run(%q, %q): err = %v, want ErrInvalidInput", pair[0], pair[1], err)
		}
	}
}

// recorder keeps every checkpoint in memory.
type recorder struct {
	mu    sync.Mutex
	saved []*persist.Checkpoint
}

func (r *recorder) Save(_ context.Context, cp *persist.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saved = append(r.saved, cp)

	return nil
}

func (r *recorder) Load(_ context.Context, id uuid.UUID) (*persist.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.saved) - 1; i >= 0; i-- {
		if r.saved[i].SearchID == id {
			return r.saved[i], nil
		}
	}

	return nil, persist.ErrNotFound
}

func TestRun_GraphGrowsMonotonically(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers(
		"x", "a", "x", "b", "a", "c", "b", "c", "c", "d", "d", "e", "e", "f", "b", "g", "g", "e",
	)})

	rec := &recorder{}
	cfg := testConfig()
	cfg.RiskLimit = 1e-9

	run(t, newEngine(t, cfg, src, WithCheckpoint(rec)), "x", "y")

	if len(rec.saved) < 2 {
		t.Fatalf("only %d checkpoints saved", len(rec.saved))
	}

	for i := 1; i < len(rec.saved); i++ {
		prev, cur := rec.saved[i-1], rec.saved[i]
		if len(cur.Graph.Nodes) < len(prev.Graph.Nodes) || len(cur.Graph.Edges) < len(prev.Graph.Edges) {
			t.Errorf("layer %d shrank the graph: %d/%d -> %d/%d", cur.Iteration,
				len(prev.Graph.Nodes), len(prev.Graph.Edges), len(cur.Graph.Nodes), len(cur.Graph.Edges))
		}
		if cur.Iteration != prev.Iteration+1 {
			t.Errorf("iteration %d followed %d", cur.Iteration, prev.Iteration)
		}
	}
}

func TestRun_AnnotatesProcessedAddresses(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "b", "x", "a", "c")})

	rec := &recorder{}
	cfg := testConfig()
	cfg.RetainAttributes = true
	cfg.MaxIters = 1
	cfg.AllowList = allowlist.New()

	run(t, newEngine(t, cfg, src, WithCheckpoint(rec)), "x", "y")

	if len(rec.saved) != 1 {
		t.Fatalf("saved %d checkpoints, want 1", len(rec.saved))
	}

	g, err := graph.FromSnapshot(rec.saved[0].Graph)
	if err != nil {
		t.Fatal(err)
	}

	m, _ := g.Meta("x")
	if m.Attributes[source.AttrTransactionCount] != 2 ||
		m.Attributes[source.AttrFromTransactionCount] != 1 ||
		m.Attributes[source.AttrToTransactionCount] != 1 ||
		m.Attributes[source.AttrHasABI] != false {
		t.Errorf("client attributes = %v", m.Attributes)
	}
}

func TestResume(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "a", "b", "b", "y")})

	store, err := persist.NewFileStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.MaxIters = 1

	first := run(t, newEngine(t, cfg, src, WithCheckpoint(store)), "x", "y")
	if first.Terminal != models.TerminalMaxIters {
		t.Fatalf("first run terminal = %s, want MAX_ITERS", first.Terminal)
	}

	cp, err := store.Load(context.Background(), first.SearchID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg.MaxIters = 10
	second, err := newEngine(t, cfg, src).Resume(context.Background(), cp)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if second.Terminal != models.TerminalFound {
		t.Fatalf("resumed terminal = %s, want FOUND", second.Terminal)
	}
	if second.SearchID != first.SearchID || second.Iterations != 2 {
		t.Errorf("resumed id = %s iterations = %d", second.SearchID, second.Iterations)
	}
	if src.Calls("x") != 1 || src.Calls("a") != 1 {
		t.Errorf("processed addresses refetched: x=%d a=%d", src.Calls("x"), src.Calls("a"))
	}

	if _, err := newEngine(t, cfg, src).Resume(context.Background(), &persist.Checkpoint{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRun_WithGraphReceivesFinalGraph(t *testing.T) {
	src := source.NewReplay(source.Fixture{Transfers: transfers("x", "a", "a", "y")})

	var got *graph.Graph
	report := run(t, newEngine(t, testConfig(), src, WithGraph(func(g *graph.Graph) { got = g })), "x", "y")

	if got == nil {
		t.Fatal("graph hook was not called")
	}
	if got.NodeCount() != report.Nodes || !got.HasNode("y") {
		t.Errorf("hook graph has %d nodes, report %d", got.NodeCount(), report.Nodes)
	}
}
