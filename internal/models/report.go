package models

import (
	"time"

	"github.com/google/uuid"
)

// Classification is the banded risk label attached to a report.
type Classification string

// Risk bands, by score in percent.
const (
	ClassHigh     Classification = "HIGH"     // > 10%
	ClassModerate Classification = "MODERATE" // 1% - 10%
	ClassLow      Classification = "LOW"      // 0.1% - 1%
	ClassMinimal  Classification = "MINIMAL"  // < 0.1%
)

// Terminal is the state a search stopped in.
type Terminal string

// Terminal states.
const (
	TerminalFound     Terminal = "FOUND"
	TerminalExhausted Terminal = "EXHAUSTED"
	TerminalMaxIters  Terminal = "MAX_ITERS"
)

// RiskReport is the outcome of one screening search.
type RiskReport struct {
	SearchID           uuid.UUID      `json:"search_id"`
	Client             Address        `json:"client"`
	Target             Address        `json:"target"`
	Found              bool           `json:"found"`
	RiskScore          float64        `json:"risk_score"`
	ShortestPathLength *int           `json:"shortest_path_length"`
	Path               []Address      `json:"path,omitempty"`
	Classification     Classification `json:"classification"`
	Terminal           Terminal       `json:"terminal"`
	Iterations         int            `json:"iterations"`
	// Confidence is the highest score observed on any non-client node.
	Confidence float64 `json:"confidence"`
	// PairWeight is the all-paths weighting between client and target, when found.
	PairWeight *float64 `json:"pair_weight,omitempty"`
	// Degraded is set when at least one address errored out.
	Degraded    bool          `json:"degraded"`
	Interrupted bool          `json:"interrupted"`
	ErroredOut  []Address     `json:"errored_out,omitempty"`
	Nodes       int           `json:"nodes"`
	Edges       int           `json:"edges"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// Inconclusive reports whether the search stopped before reaching a verdict.
func (r *RiskReport) Inconclusive() bool {
	return r.Terminal == TerminalMaxIters
}

// ScreenRequest is the payload for requesting a screening search.
type ScreenRequest struct {
	Client     Address  `json:"client"`
	Sanctioned Address  `json:"sanctioned"`
	RiskLimit  *float64 `json:"risk_limit,omitempty"`
	MaxIters   *int     `json:"max_iters,omitempty"`
}

// Validate checks that required fields are present and within limits.
func (r *ScreenRequest) Validate() error {
	if err := r.Client.Validate(); err != nil {
		return err
	}

	if err := r.Sanctioned.Validate(); err != nil {
		return err
	}

	if r.Client == r.Sanctioned {
		return errInvalid("client and sanctioned addresses must differ")
	}

	if r.RiskLimit != nil && *r.RiskLimit <= 0 {
		return errInvalid("risk_limit must be positive")
	}

	if r.MaxIters != nil && (*r.MaxIters <= 0 || *r.MaxIters > 100) {
		return errInvalid("max_iters must be between 1 and 100")
	}

	return nil
}
