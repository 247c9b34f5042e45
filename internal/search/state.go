package search

import (
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/screener/internal/frontier"
	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
)

// Phase is a step of the search state machine.
type Phase string

// Phases. Found, Exhausted and MaxIters are terminal.
const (
	PhaseInit        Phase = "INIT"
	PhaseCheckTarget Phase = "CHECK_TARGET"
	PhaseScoring     Phase = "SCORING"
	PhaseExpanding   Phase = "EXPANDING"
	PhaseFound       Phase = "FOUND"
	PhaseExhausted   Phase = "EXHAUSTED"
	PhaseMaxIters    Phase = "MAX_ITERS"
)

// Terminal reports whether the search stops in p.
func (p Phase) Terminal() bool {
	return p == PhaseFound || p == PhaseExhausted || p == PhaseMaxIters
}

func (p Phase) terminal() models.Terminal {
	switch p {
	case PhaseFound:
		return models.TerminalFound
	case PhaseExhausted:
		return models.TerminalExhausted
	default:
		return models.TerminalMaxIters
	}
}

// State is everything one search knows. Every transition takes the State and
// leaves the next Phase in it; nothing outside the State is mutated.
type State struct {
	ID         uuid.UUID
	Graph      *graph.Graph
	Frontier   *frontier.Controller
	Client     models.Address
	Sanctioned models.Address
	RiskLimit  float64
	MaxIters   int
	Iteration  int
	Phase      Phase

	// MaxScore is the highest score seen on any non-client node.
	MaxScore    float64
	ErroredOut  []models.Address
	Interrupted bool
	StartedAt   time.Time
}

func (s *State) checkpoint() *persist.Checkpoint {
	return &persist.Checkpoint{
		SearchID:   s.ID,
		Client:     s.Client,
		Sanctioned: s.Sanctioned,
		RiskLimit:  s.RiskLimit,
		MaxIters:   s.MaxIters,
		Iteration:  s.Iteration,
		MaxScore:   s.MaxScore,
		Excluded:   s.Frontier.Excluded(),
		StartedAt:  s.StartedAt,
		SavedAt:    time.Now().UTC(),
		Graph:      s.Graph.Snapshot(),
	}
}
