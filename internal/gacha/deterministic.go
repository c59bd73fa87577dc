package gacha

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// DeterministicDrawer selects players from configured pools using a PRNG
// seeded from the order id and seed string. Replaying a draw with the same
// inputs yields the same awarded set.
type DeterministicDrawer struct {
	pools map[string][]string
	picks int
}

func NewDeterministicDrawer(pools map[string][]string, picksPerDraw int) *DeterministicDrawer {
	if picksPerDraw <= 0 {
		picksPerDraw = 1
	}
	return &DeterministicDrawer{pools: pools, picks: picksPerDraw}
}

func (d *DeterministicDrawer) Draw(ctx context.Context, poolID, seed, orderID string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	pool, ok := d.pools[poolID]
	if !ok || len(pool) == 0 {
		return Result{}, fmt.Errorf("gacha: unknown or empty pool %q", poolID)
	}

	sum := sha256.Sum256([]byte(seed + ":" + orderID))
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))

	awarded := make([]string, 0, d.picks)
	for i := 0; i < d.picks; i++ {
		awarded = append(awarded, pool[rng.Intn(len(pool))])
	}

	return Result{
		DrawID:    uuid.NewString(),
		Seed:      seed,
		PlayerIDs: awarded,
	}, nil
}
