package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key, userID string) (*domain.IdempotencyRecord, error) {
	const q = `
SELECT key, user_id, status, response, created_at, expires_at
FROM idempotency_keys
WHERE key = $1 AND user_id = $2`

	var rec domain.IdempotencyRecord
	var status string
	err := queryRow(ctx, r.pool, q, key, userID).
		Scan(&rec.Key, &rec.UserID, &status, &rec.Response, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.Status = domain.IdempotencyStatus(status)
	return &rec, nil
}

// Claim atomically takes ownership of (key, user). It succeeds when no row
// exists or the existing row has expired; a live row means another request
// holds or completed the key.
func (r *IdempotencyRepository) Claim(ctx context.Context, rec domain.IdempotencyRecord) error {
	const stmt = `
INSERT INTO idempotency_keys (key, user_id, status, response, created_at, expires_at)
VALUES ($1, $2, $3, NULL, $4, $5)
ON CONFLICT (key, user_id) DO UPDATE
SET status = EXCLUDED.status, response = NULL,
	created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
WHERE idempotency_keys.expires_at <= EXCLUDED.created_at`

	tag, err := exec(ctx, r.pool, stmt, rec.Key, rec.UserID, rec.Status, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, key, userID string, response []byte) error {
	const stmt = `
UPDATE idempotency_keys
SET status = 'completed', response = $3
WHERE key = $1 AND user_id = $2 AND status = 'in_flight'`

	tag, err := exec(ctx, r.pool, stmt, key, userID, response)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key, userID string) error {
	const stmt = `DELETE FROM idempotency_keys WHERE key = $1 AND user_id = $2 AND status = 'in_flight'`

	if _, err := exec(ctx, r.pool, stmt, key, userID); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Purge(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `DELETE FROM idempotency_keys WHERE expires_at <= $1`

	tag, err := exec(ctx, r.pool, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
