package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type IdempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewIdempotencyRepository(db *sql.DB, now func() time.Time) *IdempotencyRepository {
	if now == nil {
		now = time.Now
	}
	return &IdempotencyRepository{db: db, now: now}
}

// Add inserts key unless a live row exists. An expired row is taken over in
// the same statement, so concurrent callers see exactly one winner.
func (r *IdempotencyRepository) Add(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := r.now().UTC()
	var inserted string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO idempotency_keys (key_hash, created_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO UPDATE
			SET created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
			WHERE idempotency_keys.expires_at <= EXCLUDED.created_at
		RETURNING key_hash`,
		key, now, now.Add(ttl),
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("Add: %w", err)
	}
	return false, nil
}

func (r *IdempotencyRepository) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key_hash = $1`, key); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at <= $1`, r.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}
