package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/clock"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/metrics"
)

type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error
	GetEntriesByRef(ctx context.Context, refType, refID string) ([]domain.LedgerEntry, error)
	SumByAccount(ctx context.Context, account, asset string) (debits, credits decimal.Decimal, err error)
}

// LedgerService is the single writer of balances. All monetary movement goes
// through PostDoubleEntry; no component reads-then-writes a balance.
type LedgerService struct {
	repo  LedgerRepository
	clock clock.Clock
}

func NewLedgerService(repo LedgerRepository, clk clock.Clock) *LedgerService {
	return &LedgerService{repo: repo, clock: clk}
}

type PostingResult struct {
	Entries []domain.LedgerEntry
	Created bool
}

// PostDoubleEntry writes a matched debit/credit pair atomically, keyed by
// (refType, refID). A replay for an existing reference resolves to the
// entries already written instead of duplicating them.
func (s *LedgerService) PostDoubleEntry(ctx context.Context, debitAccount, creditAccount string, amount decimal.Decimal, asset, memo, refType, refID string) (PostingResult, error) {
	if !amount.IsPositive() {
		return PostingResult{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var result PostingResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.GetEntriesByRef(txCtx, refType, refID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = PostingResult{Entries: existing, Created: false}
			return nil
		}

		postingID := newID()
		pair := []domain.LedgerEntry{
			{
				ID:        newID(),
				PostingID: postingID,
				Account:   debitAccount,
				Side:      domain.EntrySideDebit,
				Amount:    amount,
				Asset:     asset,
				Memo:      memo,
				RefType:   refType,
				RefID:     refID,
				CreatedAt: now,
			},
			{
				ID:        newID(),
				PostingID: postingID,
				Account:   creditAccount,
				Side:      domain.EntrySideCredit,
				Amount:    amount,
				Asset:     asset,
				Memo:      memo,
				RefType:   refType,
				RefID:     refID,
				CreatedAt: now,
			},
		}

		if err := s.repo.InsertEntries(txCtx, pair); err != nil {
			return err
		}

		result = PostingResult{Entries: pair, Created: true}
		return nil
	})
	if err != nil {
		// A concurrent posting for the same reference won the unique check.
		// The transaction is already rolled back, so re-read outside it.
		if err == domain.ErrPostingExists {
			existing, rerr := s.repo.GetEntriesByRef(ctx, refType, refID)
			if rerr != nil {
				return PostingResult{}, rerr
			}
			if len(existing) > 0 {
				return PostingResult{Entries: existing, Created: false}, nil
			}
		}
		return PostingResult{}, err
	}

	if result.Created {
		metrics.LedgerPostings.WithLabelValues(refType).Inc()
	}
	return result, nil
}

// AccountBalance computes credits minus debits for an account and asset.
func (s *LedgerService) AccountBalance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	debits, credits, err := s.repo.SumByAccount(ctx, account, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return credits.Sub(debits), nil
}

// EntriesByRef returns the posting legs recorded for a reference.
func (s *LedgerService) EntriesByRef(ctx context.Context, refType, refID string) ([]domain.LedgerEntry, error) {
	return s.repo.GetEntriesByRef(ctx, refType, refID)
}
