// Package persist saves and restores search graphs and checkpoints.
//
// Two backends are provided: FileStore keeps JSON files in a directory and
// PGStore keeps rows in PostgreSQL. Both implement Persistence and Reports.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
)

// ErrNotFound is returned when no checkpoint or report exists for an ID.
var ErrNotFound = errors.New("not found")

// Checkpoint is the resumable state of a search after a completed layer.
type Checkpoint struct {
	SearchID   uuid.UUID        `json:"search_id"`
	Client     models.Address   `json:"client"`
	Sanctioned models.Address   `json:"sanctioned"`
	RiskLimit  float64          `json:"risk_limit"`
	MaxIters   int              `json:"max_iters"`
	Iteration  int              `json:"iteration"`
	MaxScore   float64          `json:"max_score"`
	Excluded   []models.Address `json:"excluded,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	SavedAt    time.Time        `json:"saved_at"`
	Graph      *graph.Snapshot  `json:"graph"`
}

// Validate checks the fields a resume depends on.
func (c *Checkpoint) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil checkpoint", models.ErrInvalidInput)
	case c.SearchID == uuid.Nil:
		return fmt.Errorf("%w: checkpoint has no search id", models.ErrInvalidInput)
	case c.Graph == nil:
		return fmt.Errorf("%w: checkpoint %s has no graph", models.ErrInvalidInput, c.SearchID)
	}

	return nil
}

// Persistence stores checkpoints keyed by search ID.
type Persistence interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, id uuid.UUID) (*Checkpoint, error)
}

// Reports stores finished reports keyed by search ID.
type Reports interface {
	SaveReport(ctx context.Context, r *models.RiskReport) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.RiskReport, error)
}

// SaveGraph writes g's snapshot to path as JSON, atomically.
func SaveGraph(path string, g *graph.Graph) error {
	return writeJSON(path, g.Snapshot())
}

// LoadGraph reads a graph from path. The file may hold a bare snapshot or a
// checkpoint, in which case its graph is used.
func LoadGraph(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator.
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}

	var probe struct {
		Graph *graph.Snapshot `json:"graph"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding graph %s: %w", path, err)
	}

	snap := probe.Graph
	if snap == nil {
		snap = new(graph.Snapshot)
		if err := json.Unmarshal(data, snap); err != nil {
			return nil, fmt.Errorf("decoding graph %s: %w", path, err)
		}
	}

	g, err := graph.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("loading graph %s: %w", path, err)
	}

	return g, nil
}

// writeJSON marshals v and replaces path with it via a temp file and rename.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}
