// Package gacha defines the randomized-allocation capability. The draw
// contract is reproducibility: the same order id and seed source always
// produce the same awarded set, so a retried fulfillment can be audited
// against the original outcome.
package gacha

import "context"

// Result is the outcome of one draw.
type Result struct {
	DrawID    string
	Seed      string
	PlayerIDs []string
}

// Drawer performs the seeded random selection for a purchase.
type Drawer interface {
	Draw(ctx context.Context, poolID, seed, orderID string) (Result, error)
}
