package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/models"
)

// FileStore keeps one JSON file per checkpoint and per report under a directory.
type FileStore struct {
	dir string
	log *logrus.Logger
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, log *logrus.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: checkpoint directory is empty", models.ErrInvalidInput)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	return &FileStore{dir: dir, log: log}, nil
}

// CheckpointPath returns the file a checkpoint for id is written to.
func (s *FileStore) CheckpointPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".checkpoint.json")
}

func (s *FileStore) reportPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".report.json")
}

// Save implements Persistence.
func (s *FileStore) Save(_ context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	if err := writeJSON(s.CheckpointPath(cp.SearchID), cp); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"search_id": cp.SearchID,
		"iteration": cp.Iteration,
		"nodes":     len(cp.Graph.Nodes),
	}).Debug("checkpoint saved")

	return nil
}

// Load implements Persistence.
func (s *FileStore) Load(_ context.Context, id uuid.UUID) (*Checkpoint, error) {
	var cp Checkpoint
	if err := readJSON(s.CheckpointPath(id), &cp); err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", id, err)
	}

	if err := cp.Validate(); err != nil {
		return nil, err
	}

	return &cp, nil
}

// SaveReport implements Reports.
func (s *FileStore) SaveReport(_ context.Context, r *models.RiskReport) error {
	return writeJSON(s.reportPath(r.SearchID), r)
}

// GetReport implements Reports.
func (s *FileStore) GetReport(_ context.Context, id uuid.UUID) (*models.RiskReport, error) {
	var r models.RiskReport
	if err := readJSON(s.reportPath(id), &r); err != nil {
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}

	return &r, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a UUID.
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
