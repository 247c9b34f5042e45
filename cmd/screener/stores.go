package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/config"
	"github.com/persistorai/screener/internal/db"
	"github.com/persistorai/screener/internal/db/migrations"
	"github.com/persistorai/screener/internal/dbpool"
	"github.com/persistorai/screener/internal/persist"
)

// stores holds the configured persistence backends. Postgres wins over the
// checkpoint directory; with neither, both fields stay nil.
type stores struct {
	checkpoints persist.Persistence
	reports     persist.Reports
	pg          *persist.PGStore
	pool        *dbpool.Pool
}

func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stores, error) {
	switch {
	case cfg.DatabaseURL.Value() != "":
		pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.DefaultMaxConns)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}

		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			pool.Close()
			return nil, err
		}

		pg := persist.NewPGStore(pool, log)

		return &stores{checkpoints: pg, reports: pg, pg: pg, pool: pool}, nil

	case cfg.CheckpointDir != "":
		files, err := persist.NewFileStore(cfg.CheckpointDir, log)
		if err != nil {
			return nil, err
		}

		return &stores{checkpoints: files, reports: files}, nil
	}

	return &stores{}, nil
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
