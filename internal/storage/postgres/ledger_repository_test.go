package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/testutil"
)

func postingPair(refID string, amount decimal.Decimal) []domain.LedgerEntry {
	postingID := uuid.NewString()
	now := time.Now().UTC()
	return []domain.LedgerEntry{
		{
			ID: uuid.NewString(), PostingID: postingID,
			Account: "platform:revenue", Side: domain.EntrySideDebit,
			Amount: amount, Asset: "USDT",
			RefType: "referral_commission", RefID: refID, CreatedAt: now,
		},
		{
			ID: uuid.NewString(), PostingID: postingID,
			Account: "user:ref-1", Side: domain.EntrySideCredit,
			Amount: amount, Asset: "USDT",
			RefType: "referral_commission", RefID: refID, CreatedAt: now,
		},
	}
}

func TestLedgerRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewLedgerRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("InsertEntries persists a pair and GetEntriesByRef returns it", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		refID := uuid.NewString()
		if err := repo.InsertEntries(ctx, postingPair(refID, decimal.RequireFromString("1.50"))); err != nil {
			t.Fatalf("insert entries: %v", err)
		}

		entries, err := repo.GetEntriesByRef(ctx, "referral_commission", refID)
		if err != nil {
			t.Fatalf("get entries: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Side != domain.EntrySideCredit || entries[1].Side != domain.EntrySideDebit {
			t.Fatalf("expected side ordering, got %s / %s", entries[0].Side, entries[1].Side)
		}
		if entries[0].PostingID != entries[1].PostingID {
			t.Fatalf("legs must share a posting id")
		}

		none, err := repo.GetEntriesByRef(ctx, "referral_commission", uuid.NewString())
		if err != nil {
			t.Fatalf("get entries: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no entries, got %d", len(none))
		}
	})

	t.Run("second posting for the same reference is rejected", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		refID := uuid.NewString()
		if err := repo.InsertEntries(ctx, postingPair(refID, decimal.RequireFromString("1.50"))); err != nil {
			t.Fatalf("insert entries: %v", err)
		}
		err := repo.InsertEntries(ctx, postingPair(refID, decimal.RequireFromString("1.50")))
		if err != domain.ErrPostingExists {
			t.Fatalf("expected ErrPostingExists, got %v", err)
		}

		entries, _ := repo.GetEntriesByRef(ctx, "referral_commission", refID)
		if len(entries) != 2 {
			t.Fatalf("expected the original pair intact, got %d entries", len(entries))
		}
	})

	t.Run("SumByAccount splits debits and credits per asset", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.InsertEntries(ctx, postingPair(uuid.NewString(), decimal.RequireFromString("1.50"))); err != nil {
			t.Fatalf("insert entries: %v", err)
		}
		if err := repo.InsertEntries(ctx, postingPair(uuid.NewString(), decimal.RequireFromString("0.25"))); err != nil {
			t.Fatalf("insert entries: %v", err)
		}

		debits, credits, err := repo.SumByAccount(ctx, "user:ref-1", "USDT")
		if err != nil {
			t.Fatalf("sum by account: %v", err)
		}
		if !debits.IsZero() {
			t.Fatalf("expected no debits, got %s", debits)
		}
		if !credits.Equal(decimal.RequireFromString("1.75")) {
			t.Fatalf("expected credits 1.75, got %s", credits)
		}

		debits, credits, err = repo.SumByAccount(ctx, "user:ref-1", "BNB")
		if err != nil {
			t.Fatalf("sum by account: %v", err)
		}
		if !debits.IsZero() || !credits.IsZero() {
			t.Fatalf("expected zero sums for unused asset, got %s / %s", debits, credits)
		}
	})
}
