package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

type PoolConfig struct {
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetimeS int
	ConnMaxIdleTimeS int
}

const connectTimeout = 30 * time.Second

// NewPostgresDB opens a pool and waits for the database to accept
// connections, backing off between pings until connectTimeout.
func NewPostgresDB(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresDB: open: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTimeS) * time.Second)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = connectTimeout

	attempt := 0
	ping := func() error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			slog.Info("waiting for database", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewPostgresDB: gave up after %d attempts: %w", attempt, err)
	}
	return db, nil
}
