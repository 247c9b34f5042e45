package client

import "time"

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ScreenRequest asks for one screening search. Nil limits use the server's
// configuration.
type ScreenRequest struct {
	Client     string   `json:"client"`
	Sanctioned string   `json:"sanctioned"`
	RiskLimit  *float64 `json:"risk_limit,omitempty"`
	MaxIters   *int     `json:"max_iters,omitempty"`
}

// RiskReport is the outcome of one screening search.
type RiskReport struct {
	SearchID           string        `json:"search_id"`
	Client             string        `json:"client"`
	Target             string        `json:"target"`
	Found              bool          `json:"found"`
	RiskScore          float64       `json:"risk_score"`
	ShortestPathLength *int          `json:"shortest_path_length"`
	Path               []string      `json:"path,omitempty"`
	Classification     string        `json:"classification"`
	Terminal           string        `json:"terminal"`
	Iterations         int           `json:"iterations"`
	Confidence         float64       `json:"confidence"`
	PairWeight         *float64      `json:"pair_weight,omitempty"`
	Degraded           bool          `json:"degraded"`
	Interrupted        bool          `json:"interrupted"`
	ErroredOut         []string      `json:"errored_out,omitempty"`
	Nodes              int           `json:"nodes"`
	Edges              int           `json:"edges"`
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration_ns"`
}

// Inconclusive reports whether the search stopped before reaching a verdict.
func (r *RiskReport) Inconclusive() bool {
	return r.Terminal == "MAX_ITERS"
}
