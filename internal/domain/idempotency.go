package domain

import "time"

type IdempotencyStatus string

const (
	IdempotencyStatusInFlight  IdempotencyStatus = "in_flight"
	IdempotencyStatusCompleted IdempotencyStatus = "completed"
)

// IdempotencyRecord maps a caller-supplied key and user to the stored
// response of the first successful execution. Replays before ExpiresAt read
// the stored response instead of re-executing.
type IdempotencyRecord struct {
	Key       string
	UserID    string
	Status    IdempotencyStatus
	Response  []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
