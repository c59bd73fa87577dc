package app

import (
	"context"
	"time"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/clock"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/metrics"
)

// IdempotencyStore persists idempotency records keyed by (key, userID).
// Claim must be atomic: it succeeds only when no unexpired record exists,
// so two concurrent first-attempts can never both claim a key.
type IdempotencyStore interface {
	Get(ctx context.Context, key, userID string) (*domain.IdempotencyRecord, error)
	Claim(ctx context.Context, rec domain.IdempotencyRecord) error
	Complete(ctx context.Context, key, userID string, response []byte) error
	Release(ctx context.Context, key, userID string) error
	Purge(ctx context.Context, now time.Time) (int64, error)
}

const defaultIdempotencyTTL = 24 * time.Hour

// Gate deduplicates client-submitted mutating requests. The first call with
// a key runs the operation and stores its result; a replay before expiry
// returns the stored result without re-executing. A concurrent second
// first-attempt is rejected with ErrIdempotencyInFlight and told to retry.
type Gate struct {
	store IdempotencyStore
	clock clock.Clock
	ttl   time.Duration
}

type GateOption func(*Gate)

// WithIdempotencyTTL overrides how long stored responses are replayable.
func WithIdempotencyTTL(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.ttl = d
		}
	}
}

func NewGate(store IdempotencyStore, clk clock.Clock, opts ...GateOption) *Gate {
	g := &Gate{store: store, clock: clk, ttl: defaultIdempotencyTTL}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type GateResult struct {
	Response []byte
	Replayed bool
}

// Execute runs op at most once per (key, userID) within the TTL.
func (g *Gate) Execute(ctx context.Context, key, userID string, op func(ctx context.Context) ([]byte, error)) (GateResult, error) {
	if key == "" {
		return GateResult{}, domain.ErrIdempotencyKeyRequired
	}

	now := g.clock.Now()
	claim := domain.IdempotencyRecord{
		Key:       key,
		UserID:    userID,
		Status:    domain.IdempotencyStatusInFlight,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	if err := g.store.Claim(ctx, claim); err != nil {
		if err != domain.ErrIdempotencyConflict {
			return GateResult{}, err
		}
		existing, err := g.store.Get(ctx, key, userID)
		if err != nil {
			return GateResult{}, err
		}
		if existing == nil {
			// The holder released between our claim and read; the caller
			// simply retries.
			return GateResult{}, domain.ErrIdempotencyInFlight
		}
		if existing.Status == domain.IdempotencyStatusCompleted {
			metrics.IdempotentReplays.Inc()
			return GateResult{Response: existing.Response, Replayed: true}, nil
		}
		return GateResult{}, domain.ErrIdempotencyInFlight
	}

	response, err := op(ctx)
	if err != nil {
		// Release the claim so a retry can re-execute the operation.
		_ = g.store.Release(ctx, key, userID)
		return GateResult{}, err
	}

	if err := g.store.Complete(ctx, key, userID, response); err != nil {
		return GateResult{}, err
	}
	return GateResult{Response: response}, nil
}

// PurgeExpired removes records past their expiry.
func (g *Gate) PurgeExpired(ctx context.Context) (int64, error) {
	return g.store.Purge(ctx, g.clock.Now())
}
