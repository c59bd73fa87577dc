package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/chain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/metrics"
)

const (
	defaultMinConfirmations = 12
	defaultQueryTimeout     = 10 * time.Second
)

// defaultAmountEpsilon absorbs rounding between the order's fixed-point
// price and the on-chain token representation.
var defaultAmountEpsilon = decimal.RequireFromString("0.01")

// PaymentVerifier classifies candidate transfers against an order's expected
// sender, receiver, and amount, and discovers candidates for an address.
type PaymentVerifier struct {
	chain        chain.Client
	epsilon      decimal.Decimal
	minDepth     int
	queryTimeout time.Duration
}

type VerifierOption func(*PaymentVerifier)

// WithAmountEpsilon overrides the absolute amount-comparison tolerance.
func WithAmountEpsilon(e decimal.Decimal) VerifierOption {
	return func(v *PaymentVerifier) {
		if e.IsPositive() {
			v.epsilon = e
		}
	}
}

// WithMinConfirmations overrides the minimum confirmation depth.
func WithMinConfirmations(n int) VerifierOption {
	return func(v *PaymentVerifier) {
		if n > 0 {
			v.minDepth = n
		}
	}
}

// WithQueryTimeout bounds individual chain queries.
func WithQueryTimeout(d time.Duration) VerifierOption {
	return func(v *PaymentVerifier) {
		if d > 0 {
			v.queryTimeout = d
		}
	}
}

func NewPaymentVerifier(client chain.Client, opts ...VerifierOption) *PaymentVerifier {
	v := &PaymentVerifier{
		chain:        client,
		epsilon:      defaultAmountEpsilon,
		minDepth:     defaultMinConfirmations,
		queryTimeout: defaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify classifies a candidate transfer and reports the confirmation depth
// it observed. Address comparison is case-insensitive; amounts match within
// the configured epsilon. A matching transfer below the minimum confirmation
// depth is Unconfirmed and must not drive fulfillment, since a
// reorganization could still invalidate it. A chain query failure returns
// ErrExternalUnavailable and no result.
func (v *PaymentVerifier) Verify(ctx context.Context, t chain.Transfer, expectedFrom, expectedTo string, expectedAmount decimal.Decimal) (domain.VerificationResult, int, error) {
	result, depth, err := v.verify(ctx, t, expectedFrom, expectedTo, expectedAmount)
	if err != nil {
		metrics.ChainQueryErrors.Inc()
		return "", 0, err
	}
	metrics.PaymentVerifications.WithLabelValues(string(result)).Inc()
	return result, depth, nil
}

func (v *PaymentVerifier) verify(ctx context.Context, t chain.Transfer, expectedFrom, expectedTo string, expectedAmount decimal.Decimal) (domain.VerificationResult, int, error) {
	if t.Hash == "" {
		return domain.VerificationNotFound, 0, nil
	}
	if !strings.EqualFold(t.From, expectedFrom) || !strings.EqualFold(t.To, expectedTo) {
		return domain.VerificationAddressMismatch, 0, nil
	}
	if t.Amount.Sub(expectedAmount).Abs().GreaterThan(v.epsilon) {
		return domain.VerificationAmountMismatch, 0, nil
	}

	qctx, cancel := context.WithTimeout(ctx, v.queryTimeout)
	defer cancel()
	depth, err := v.chain.GetConfirmationDepth(qctx, t.BlockHeight)
	if err != nil {
		// A timeout is never proof of anything; the caller retries.
		return "", 0, fmt.Errorf("confirmation depth for block %d: %w: %w", t.BlockHeight, domain.ErrExternalUnavailable, err)
	}
	if depth < v.minDepth {
		return domain.VerificationUnconfirmed, depth, nil
	}
	return domain.VerificationValid, depth, nil
}

// Candidates returns a finite page of transfers received by address above
// sinceBlock, plus the lower bound to pass on the next call. Discovery is
// restartable by re-issuing with the returned bound.
func (v *PaymentVerifier) Candidates(ctx context.Context, address string, sinceBlock int64) ([]chain.Transfer, int64, error) {
	qctx, cancel := context.WithTimeout(ctx, v.queryTimeout)
	defer cancel()

	transfers, err := v.chain.GetTransfersTo(qctx, address, sinceBlock)
	if err != nil {
		metrics.ChainQueryErrors.Inc()
		return nil, sinceBlock, fmt.Errorf("transfers to %s since %d: %w: %w", address, sinceBlock, domain.ErrExternalUnavailable, err)
	}

	next := sinceBlock
	for _, t := range transfers {
		if t.BlockHeight > next {
			next = t.BlockHeight
		}
	}
	return transfers, next, nil
}

// FindByHash scans transfers received by address for the given transaction
// hash. The zero Transfer and false mean the hash was not observed.
func (v *PaymentVerifier) FindByHash(ctx context.Context, address string, sinceBlock int64, txHash string) (chain.Transfer, bool, error) {
	transfers, _, err := v.Candidates(ctx, address, sinceBlock)
	if err != nil {
		return chain.Transfer{}, false, err
	}
	for _, t := range transfers {
		if strings.EqualFold(t.Hash, txHash) {
			return t, true, nil
		}
	}
	return chain.Transfer{}, false, nil
}
