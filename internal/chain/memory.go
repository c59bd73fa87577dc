package chain

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryClient is an in-memory Client used in tests and local development.
// Transfers are appended via Add and served by the query methods.
type MemoryClient struct {
	mu        sync.RWMutex
	transfers []Transfer
	tipHeight int64
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// Add records a transfer. The chain tip advances to at least the transfer's
// block height.
func (c *MemoryClient) Add(t Transfer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers = append(c.transfers, t)
	if t.BlockHeight > c.tipHeight {
		c.tipHeight = t.BlockHeight
	}
}

// SetTipHeight moves the chain tip, which controls confirmation depth.
func (c *MemoryClient) SetTipHeight(h int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tipHeight = h
}

func (c *MemoryClient) GetTransfersTo(ctx context.Context, address string, sinceBlock int64) ([]Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Transfer
	for _, t := range c.transfers {
		if strings.EqualFold(t.To, address) && t.BlockHeight > sinceBlock {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockHeight < out[j].BlockHeight })
	return out, nil
}

func (c *MemoryClient) GetConfirmationDepth(ctx context.Context, blockHeight int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if blockHeight <= 0 || blockHeight > c.tipHeight {
		return 0, nil
	}
	return int(c.tipHeight - blockHeight), nil
}
