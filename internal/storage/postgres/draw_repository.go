package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type DrawRepository struct {
	pool *pgxpool.Pool
}

func NewDrawRepository(pool *pgxpool.Pool) *DrawRepository {
	return &DrawRepository{pool: pool}
}

func (r *DrawRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *DrawRepository) GetDrawByOrder(ctx context.Context, orderID string) (*domain.GachaDraw, error) {
	const q = `SELECT id, order_id, pool_id, seed, player_ids FROM gacha_draws WHERE order_id = $1`

	var d domain.GachaDraw
	err := queryRow(ctx, r.pool, q, orderID).Scan(&d.ID, &d.OrderID, &d.PoolID, &d.Seed, &d.PlayerIDs)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get draw by order: %w", err)
	}
	return &d, nil
}

// CreateDraw records the awarded set. The unique index on order_id keeps at
// most one draw per order.
func (r *DrawRepository) CreateDraw(ctx context.Context, d domain.GachaDraw) error {
	const stmt = `
INSERT INTO gacha_draws (id, order_id, pool_id, seed, player_ids)
VALUES ($1, $2, $3, $4, $5)`

	_, err := exec(ctx, r.pool, stmt, d.ID, d.OrderID, d.PoolID, d.Seed, d.PlayerIDs)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create draw: %w", err)
	}
	return nil
}

// GrantPlayers inserts holdings tagged with the originating order and draw.
// Rows already granted for the same draw slot are skipped, so a retried
// fulfillment never double-grants.
func (r *DrawRepository) GrantPlayers(ctx context.Context, players []domain.OwnedPlayer) error {
	const stmt = `
INSERT INTO owned_players (id, buyer_id, player_id, order_id, draw_id, slot)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (draw_id, slot) DO NOTHING`

	for i, p := range players {
		_, err := exec(ctx, r.pool, stmt, p.ID, p.BuyerID, p.PlayerID, p.OrderID, p.DrawID, i)
		if err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("grant player: %w", err)
		}
	}
	return nil
}

// ListHoldings returns the players granted to a buyer.
func (r *DrawRepository) ListHoldings(ctx context.Context, buyerID string) ([]domain.OwnedPlayer, error) {
	const q = `
SELECT id, buyer_id, player_id, order_id, draw_id
FROM owned_players
WHERE buyer_id = $1
ORDER BY slot`

	rows, err := query(ctx, r.pool, q, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []domain.OwnedPlayer
	for rows.Next() {
		var p domain.OwnedPlayer
		if err := rows.Scan(&p.ID, &p.BuyerID, &p.PlayerID, &p.OrderID, &p.DrawID); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("holdings rows: %w", err)
	}
	return out, nil
}
