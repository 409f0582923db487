package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared pgx pool every repository reads and writes through
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool pinned to UTC and fails fast when the server is unreachable
func NewConnection(ctx context.Context, databaseURL string) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	// Timestamps are stored and compared in UTC; calendar bucketing converts explicitly
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases every pooled connection
func (db *DB) Close() {
	db.Pool.Close()
}
