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

func TestDrawRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewDrawRepository(pool)
	orders := NewOrderRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	setup := func(ctx context.Context) (buyerID string, order domain.Order) {
		t.Helper()
		testutil.TruncateAll(t, ctx, pool)
		buyerID = testutil.InsertUser(t, ctx, pool, "0xBuyer")
		productID := testutil.InsertProduct(t, ctx, pool, "Starter Pack", "starter", decimal.RequireFromString("10.00"), 0)
		order = insertTestOrder(t, ctx, orders, buyerID, productID, 30*time.Minute)
		return buyerID, order
	}

	t.Run("CreateDraw persists and GetDrawByOrder returns it", func(t *testing.T) {
		ctx := context.Background()
		_, order := setup(ctx)

		draw := domain.GachaDraw{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			PoolID:    "starter",
			Seed:      "seed-a",
			PlayerIDs: []string{"p1", "p2", "p3"},
		}
		if err := repo.CreateDraw(ctx, draw); err != nil {
			t.Fatalf("create draw: %v", err)
		}

		got, err := repo.GetDrawByOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("get draw: %v", err)
		}
		if got == nil || got.ID != draw.ID || len(got.PlayerIDs) != 3 || got.PlayerIDs[0] != "p1" {
			t.Fatalf("unexpected draw: %+v", got)
		}

		none, err := repo.GetDrawByOrder(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("get missing draw: %v", err)
		}
		if none != nil {
			t.Fatalf("expected nil for an order without a draw")
		}
	})

	t.Run("second draw for the same order is rejected", func(t *testing.T) {
		ctx := context.Background()
		_, order := setup(ctx)

		first := domain.GachaDraw{ID: uuid.NewString(), OrderID: order.ID, PoolID: "starter", Seed: "s", PlayerIDs: []string{"p1"}}
		if err := repo.CreateDraw(ctx, first); err != nil {
			t.Fatalf("create draw: %v", err)
		}

		second := domain.GachaDraw{ID: uuid.NewString(), OrderID: order.ID, PoolID: "starter", Seed: "s", PlayerIDs: []string{"p2"}}
		if err := repo.CreateDraw(ctx, second); err != domain.ErrIdempotencyConflict {
			t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
		}

		got, _ := repo.GetDrawByOrder(ctx, order.ID)
		if got.ID != first.ID {
			t.Fatalf("the first draw must survive, got %s", got.ID)
		}
	})

	t.Run("GrantPlayers is idempotent per draw slot", func(t *testing.T) {
		ctx := context.Background()
		buyerID, order := setup(ctx)

		draw := domain.GachaDraw{ID: uuid.NewString(), OrderID: order.ID, PoolID: "starter", Seed: "s", PlayerIDs: []string{"p1", "p1", "p2"}}
		if err := repo.CreateDraw(ctx, draw); err != nil {
			t.Fatalf("create draw: %v", err)
		}

		grant := func() []domain.OwnedPlayer {
			players := make([]domain.OwnedPlayer, 0, len(draw.PlayerIDs))
			for _, playerID := range draw.PlayerIDs {
				players = append(players, domain.OwnedPlayer{
					ID:       uuid.NewString(),
					BuyerID:  buyerID,
					PlayerID: playerID,
					OrderID:  order.ID,
					DrawID:   draw.ID,
				})
			}
			return players
		}

		if err := repo.GrantPlayers(ctx, grant()); err != nil {
			t.Fatalf("grant players: %v", err)
		}
		// A retried fulfillment re-grants the same slots.
		if err := repo.GrantPlayers(ctx, grant()); err != nil {
			t.Fatalf("re-grant players: %v", err)
		}

		holdings, err := repo.ListHoldings(ctx, buyerID)
		if err != nil {
			t.Fatalf("list holdings: %v", err)
		}
		if len(holdings) != 3 {
			t.Fatalf("expected 3 holdings, got %d", len(holdings))
		}
		// Duplicate picks within one draw occupy distinct slots.
		if holdings[0].PlayerID != "p1" || holdings[1].PlayerID != "p1" || holdings[2].PlayerID != "p2" {
			t.Fatalf("unexpected holdings %+v", holdings)
		}
	})
}
