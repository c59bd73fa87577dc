package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/clock"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry

	insertErr error
}

func (f *fakeLedgerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeLedgerRepo) InsertEntries(_ context.Context, entries []domain.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, e := range entries {
		for _, existing := range f.entries {
			if existing.RefType == e.RefType && existing.RefID == e.RefID && existing.Side == e.Side {
				return domain.ErrPostingExists
			}
		}
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLedgerRepo) GetEntriesByRef(_ context.Context, refType, refID string) ([]domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range f.entries {
		if e.RefType == refType && e.RefID == refID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) SumByAccount(_ context.Context, account, asset string) (decimal.Decimal, decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range f.entries {
		if e.Account != account || e.Asset != asset {
			continue
		}
		switch e.Side {
		case domain.EntrySideDebit:
			debits = debits.Add(e.Amount)
		case domain.EntrySideCredit:
			credits = credits.Add(e.Amount)
		}
	}
	return debits, credits, nil
}

// racingLedgerRepo models a concurrent posting for the same reference
// committing between the pre-check and the insert. After the unique
// violation the open transaction behaves like an aborted Postgres
// transaction: every statement inside it errors until rollback.
type racingLedgerRepo struct {
	fakeLedgerRepo
	rivalRefType string
	rivalRefID   string

	inTx    bool
	aborted bool
}

func (f *racingLedgerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.inTx = true
	defer func() { f.inTx = false; f.aborted = false }()
	return fn(ctx)
}

func (f *racingLedgerRepo) InsertEntries(ctx context.Context, _ []domain.LedgerEntry) error {
	rival := []domain.LedgerEntry{
		{ID: "rival-d", PostingID: "rival-posting", Account: "a", Side: domain.EntrySideDebit, Amount: dec("5.00"), Asset: "USDT", RefType: f.rivalRefType, RefID: f.rivalRefID},
		{ID: "rival-c", PostingID: "rival-posting", Account: "b", Side: domain.EntrySideCredit, Amount: dec("5.00"), Asset: "USDT", RefType: f.rivalRefType, RefID: f.rivalRefID},
	}
	_ = f.fakeLedgerRepo.InsertEntries(ctx, rival)
	f.aborted = true
	return domain.ErrPostingExists
}

func (f *racingLedgerRepo) GetEntriesByRef(ctx context.Context, refType, refID string) ([]domain.LedgerEntry, error) {
	if f.inTx && f.aborted {
		return nil, errors.New("current transaction is aborted, commands ignored until end of transaction block")
	}
	return f.fakeLedgerRepo.GetEntriesByRef(ctx, refType, refID)
}

func TestLedgerService_PostDoubleEntry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("writes a matched pair sharing a posting id", func(t *testing.T) {
		repo := &fakeLedgerRepo{}
		svc := NewLedgerService(repo, clock.NewFixed(now))

		result, err := svc.PostDoubleEntry(context.Background(), "platform:revenue", "user:ref-1", dec("1.50"), "USDT", "referral payout", "referral_commission", "order-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result.Created {
			t.Fatalf("expected a fresh posting")
		}
		if len(result.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(result.Entries))
		}

		debit, credit := result.Entries[0], result.Entries[1]
		if debit.Side != domain.EntrySideDebit || credit.Side != domain.EntrySideCredit {
			t.Fatalf("expected one debit and one credit")
		}
		if debit.PostingID != credit.PostingID {
			t.Fatalf("legs must share a posting id")
		}
		if !debit.Amount.Equal(credit.Amount) {
			t.Fatalf("legs must carry the same amount")
		}
		if debit.Account != "platform:revenue" || credit.Account != "user:ref-1" {
			t.Fatalf("unexpected accounts %s / %s", debit.Account, credit.Account)
		}
	})

	t.Run("replay for the same reference resolves to existing entries", func(t *testing.T) {
		repo := &fakeLedgerRepo{}
		svc := NewLedgerService(repo, clock.NewFixed(now))

		first, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("5.00"), "USDT", "", "referral_commission", "order-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("5.00"), "USDT", "", "referral_commission", "order-1")
		if err != nil {
			t.Fatalf("expected no error on replay, got %v", err)
		}
		if second.Created {
			t.Fatalf("replay must not create new entries")
		}
		if len(repo.entries) != 2 {
			t.Fatalf("expected 2 entries total, got %d", len(repo.entries))
		}
		if second.Entries[0].PostingID != first.Entries[0].PostingID {
			t.Fatalf("replay must return the original posting")
		}
	})

	t.Run("concurrent loser resolves outside the aborted transaction", func(t *testing.T) {
		repo := &racingLedgerRepo{rivalRefType: "referral_commission", rivalRefID: "order-1"}
		svc := NewLedgerService(repo, clock.NewFixed(now))

		result, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("5.00"), "USDT", "", "referral_commission", "order-1")
		if err != nil {
			t.Fatalf("expected the loser to resolve, got %v", err)
		}
		if result.Created {
			t.Fatalf("loser must not report a fresh posting")
		}
		if len(result.Entries) != 2 || result.Entries[0].PostingID != "rival-posting" {
			t.Fatalf("expected the rival's entries, got %+v", result.Entries)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		repo := &fakeLedgerRepo{}
		svc := NewLedgerService(repo, clock.NewFixed(now))

		if _, err := svc.PostDoubleEntry(context.Background(), "a", "b", decimal.Zero, "USDT", "", "t", "r"); err != domain.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		if _, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("-1"), "USDT", "", "t", "r"); err != domain.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("distinct references post independently", func(t *testing.T) {
		repo := &fakeLedgerRepo{}
		svc := NewLedgerService(repo, clock.NewFixed(now))

		if _, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("1"), "USDT", "", "referral_commission", "order-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("1"), "USDT", "", "referral_commission", "order-2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.entries) != 4 {
			t.Fatalf("expected 4 entries, got %d", len(repo.entries))
		}
	})
}

func TestLedgerService_AccountBalance(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeLedgerRepo{}
	svc := NewLedgerService(repo, clock.NewFixed(now))

	ctx := context.Background()
	mustPost := func(debit, credit, amount, refID string) {
		t.Helper()
		if _, err := svc.PostDoubleEntry(ctx, debit, credit, dec(amount), "USDT", "", "referral_commission", refID); err != nil {
			t.Fatalf("post failed: %v", err)
		}
	}
	mustPost("platform:revenue", "user:ref-1", "1.50", "order-1")
	mustPost("platform:revenue", "user:ref-1", "0.25", "order-2")
	mustPost("user:ref-1", "platform:payouts", "1.00", "order-3")

	balance, err := svc.AccountBalance(ctx, "user:ref-1", "USDT")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !balance.Equal(dec("0.75")) {
		t.Fatalf("expected balance 0.75, got %s", balance)
	}

	// Different asset contributes nothing.
	other, err := svc.AccountBalance(ctx, "user:ref-1", "BNB")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !other.IsZero() {
		t.Fatalf("expected zero balance for unused asset, got %s", other)
	}
}

func TestLedgerService_EntriesByRef(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeLedgerRepo{}
	svc := NewLedgerService(repo, clock.NewFixed(now))

	if _, err := svc.PostDoubleEntry(context.Background(), "a", "b", dec("2"), "USDT", "", "referral_commission", "order-1"); err != nil {
		t.Fatalf("post failed: %v", err)
	}

	entries, err := svc.EntriesByRef(context.Background(), "referral_commission", "order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	none, err := svc.EntriesByRef(context.Background(), "referral_commission", "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no entries, got %d", len(none))
	}
}
