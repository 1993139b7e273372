package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository owns the connection pool to the time-partitioned store. Loaders
// and the query builder share it; pipelines never open their own connections.
type Repository struct {
	db *pgxpool.Pool

	// SubBatchSize caps how many rows go into a single multi-row upsert.
	SubBatchSize int
}

const defaultSubBatchSize = 1000

func NewRepository(ctx context.Context, dbURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse db url: %w", err)
	}

	// Pool of 5 with overflow headroom. Long-running jobs can outlive idle
	// timeout windows, so keep the health check tight (pre-ping).
	config.MinConns = 5
	config.MaxConns = 15
	config.HealthCheckPeriod = 30 * time.Second
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &Repository{db: pool, SubBatchSize: defaultSubBatchSize}, nil
}

func (r *Repository) Close() {
	r.db.Close()
}

// Ping verifies the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
