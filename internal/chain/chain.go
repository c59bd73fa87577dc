// Package chain defines the chain-indexing capability consumed by payment
// verification. Implementations query an external block explorer or node;
// the pipeline only depends on this interface.
package chain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is one observed stablecoin transfer.
type Transfer struct {
	Hash        string
	From        string
	To          string
	Amount      decimal.Decimal
	BlockHeight int64
	Timestamp   time.Time
}

// Client is the read-only chain query capability. Calls may block on network
// I/O and must honor ctx deadlines; a timeout is retryable, never proof that
// a transfer is absent.
type Client interface {
	// GetTransfersTo returns transfers received by address with a block
	// height strictly greater than sinceBlock. The result is finite per
	// call; callers resume discovery by re-issuing with a higher bound.
	GetTransfersTo(ctx context.Context, address string, sinceBlock int64) ([]Transfer, error)

	// GetConfirmationDepth returns the number of blocks mined after the
	// given block height.
	GetConfirmationDepth(ctx context.Context, blockHeight int64) (int, error)
}
