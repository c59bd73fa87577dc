// Package redisstore provides a Redis-backed idempotency store. Record
// expiry rides on native key TTLs, so Purge has nothing to do.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type IdempotencyStore struct {
	rdb *redis.Client
}

func NewIdempotencyStore(rdb *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

func recordKey(key, userID string) string {
	return "idem:" + userID + ":" + key
}

// completeScript swaps the record for its completed form only while the
// exact in-flight value read by the caller is still present. Without the
// guard a key expiring between read and write would be recreated by a plain
// SET with no TTL and never evicted.
var completeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw or raw ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
return 1
`)

// releaseScript deletes the record only while it is still in flight, so a
// late Release cannot discard a completed response.
var releaseScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return 0 end
local rec = cjson.decode(raw)
if rec.status == "in_flight" then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *IdempotencyStore) Get(ctx context.Context, key, userID string) (*domain.IdempotencyRecord, error) {
	raw, err := s.rdb.Get(ctx, recordKey(key, userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}

	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec.toDomain(key, userID), nil
}

// Claim takes ownership via SET NX with the record's TTL. An existing live
// key belongs to another request.
func (s *IdempotencyStore) Claim(ctx context.Context, rec domain.IdempotencyRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrIdempotencyConflict
	}

	raw, err := json.Marshal(storedRecord{
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, recordKey(rec.Key, rec.UserID), raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if !ok {
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, userID string, response []byte) error {
	k := recordKey(key, userID)

	raw, err := s.rdb.Get(ctx, k).Bytes()
	if err == redis.Nil {
		return domain.ErrIdempotencyConflict
	}
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}

	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("decode idempotency record: %w", err)
	}
	if rec.Status != string(domain.IdempotencyStatusInFlight) {
		return domain.ErrIdempotencyConflict
	}
	rec.Status = string(domain.IdempotencyStatusCompleted)
	rec.Response = response

	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	swapped, err := completeScript.Run(ctx, s.rdb, []string{k}, raw, updated).Int()
	if err != nil {
		return fmt.Errorf("store idempotency response: %w", err)
	}
	if swapped == 0 {
		// The key expired or changed hands between the read and the swap.
		return domain.ErrIdempotencyConflict
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key, userID string) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{recordKey(key, userID)}).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Purge is a no-op: Redis evicts expired keys itself.
func (s *IdempotencyStore) Purge(ctx context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type storedRecord struct {
	Status    string    `json:"status"`
	Response  []byte    `json:"response,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r storedRecord) toDomain(key, userID string) *domain.IdempotencyRecord {
	return &domain.IdempotencyRecord{
		Key:       key,
		UserID:    userID,
		Status:    domain.IdempotencyStatus(r.Status),
		Response:  r.Response,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}
