package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/db"
	"github.com/persistorai/screener/internal/dbpool"
	"github.com/persistorai/screener/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// PGStore keeps checkpoints and reports in PostgreSQL. The schema is created
// by db.RunMigrations.
type PGStore struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// NewPGStore returns a store backed by pool.
func NewPGStore(pool *dbpool.Pool, log *logrus.Logger) *PGStore {
	return &PGStore{Pool: pool, Log: log}
}

// Save implements Persistence. A later save for the same search replaces the
// earlier one.
func (s *PGStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	state, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO checkpoints (search_id, client, sanctioned, iteration, schema_version, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (search_id) DO UPDATE
		SET iteration = EXCLUDED.iteration,
		    schema_version = EXCLUDED.schema_version,
		    state = EXCLUDED.state,
		    updated_at = now()`,
		cp.SearchID.String(), cp.Client.String(), cp.Sanctioned.String(), cp.Iteration, db.SchemaVersion(), state,
	)
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", cp.SearchID, err)
	}

	s.Log.WithFields(logrus.Fields{
		"search_id": cp.SearchID,
		"iteration": cp.Iteration,
	}).Debug("checkpoint saved")

	return nil
}

// Load implements Persistence.
func (s *PGStore) Load(ctx context.Context, id uuid.UUID) (*Checkpoint, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		version int
		state   []byte
	)

	err := s.Pool.QueryRow(ctx,
		"SELECT schema_version, state FROM checkpoints WHERE search_id = $1", id.String(),
	).Scan(&version, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading checkpoint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", id, err)
	}

	if version != db.SchemaVersion() {
		s.Log.WithFields(logrus.Fields{
			"search_id": id,
			"stored":    version,
			"current":   db.SchemaVersion(),
		}).Warn("checkpoint written by a different schema version")
	}

	var cp Checkpoint
	if err := json.Unmarshal(state, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", id, err)
	}

	if err := cp.Validate(); err != nil {
		return nil, err
	}

	return &cp, nil
}

// Latest returns the most recently updated checkpoint for a client and
// sanctioned address pair.
func (s *PGStore) Latest(ctx context.Context, client, sanctioned models.Address) (*Checkpoint, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw string

	err := s.Pool.QueryRow(ctx, `
		SELECT search_id FROM checkpoints
		WHERE client = $1 AND sanctioned = $2
		ORDER BY updated_at DESC LIMIT 1`,
		client.String(), sanctioned.String(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding checkpoint: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing checkpoint id: %w", err)
	}

	return s.Load(ctx, id)
}

// SaveReport implements Reports.
func (s *PGStore) SaveReport(ctx context.Context, r *models.RiskReport) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO reports (search_id, client, target, found, risk_score, classification, terminal, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (search_id) DO NOTHING`,
		r.SearchID.String(), r.Client.String(), r.Target.String(), r.Found, r.RiskScore,
		string(r.Classification), string(r.Terminal), body,
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", r.SearchID, err)
	}

	return nil
}

// GetReport implements Reports.
func (s *PGStore) GetReport(ctx context.Context, id uuid.UUID) (*models.RiskReport, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var body []byte

	err := s.Pool.QueryRow(ctx, "SELECT report FROM reports WHERE search_id = $1", id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}

	var r models.RiskReport
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", id, err)
	}

	return &r, nil
}

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.Pool.HealthCheck(ctx)
}
