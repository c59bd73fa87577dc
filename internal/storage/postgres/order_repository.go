package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `id, buyer_id, product_id, quantity, unit_price, total_price, status,
source_wallet, receiving_wallet, chain_id, tx_hash, block_height, confirmations,
created_at, expires_at, paid_at, fulfilled_at, cancelled_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, o domain.Order) error {
	const stmt = `
INSERT INTO orders (id, buyer_id, product_id, quantity, unit_price, total_price, status,
	source_wallet, receiving_wallet, chain_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := exec(ctx, r.pool, stmt,
		o.ID,
		o.BuyerID,
		o.ProductID,
		o.Quantity,
		o.UnitPrice,
		o.TotalPrice,
		o.Status,
		o.SourceWallet,
		o.ReceivingWallet,
		o.ChainID,
		o.CreatedAt,
		o.ExpiresAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(queryRow(ctx, r.pool, q, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) BuyerExists(ctx context.Context, buyerID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := queryRow(ctx, r.pool, q, buyerID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("buyer exists: %w", err)
	}
	return exists, nil
}

func (r *OrderRepository) CountFulfilled(ctx context.Context, buyerID, productID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM orders
WHERE buyer_id = $1 AND product_id = $2 AND status = 'fulfilled'`

	var count int
	if err := queryRow(ctx, r.pool, q, buyerID, productID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count fulfilled orders: %w", err)
	}
	return count, nil
}

// MarkPaid commits the pending -> paid transition. The guard also covers
// expiry, so an order past its payment window can never become paid; a false
// return means a concurrent transition or the expiry sweep won.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, txHash string, blockHeight int64, confirmations int, paidAt time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET status = 'paid', tx_hash = $2, block_height = $3, confirmations = $4, paid_at = $5
WHERE id = $1 AND status = 'pending' AND expires_at > $5`

	tag, err := exec(ctx, r.pool, stmt, id, txHash, blockHeight, confirmations, paidAt)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET status = 'cancelled', cancelled_at = $2
WHERE id = $1 AND status = 'pending'`

	tag, err := exec(ctx, r.pool, stmt, id, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark cancelled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) MarkFulfilled(ctx context.Context, id string, at time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET status = 'fulfilled', fulfilled_at = $2
WHERE id = $1 AND status = 'paid'`

	tag, err := exec(ctx, r.pool, stmt, id, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark fulfilled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelPaid forces a paid order to cancelled after a fulfillment failure.
func (r *OrderRepository) CancelPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET status = 'cancelled', cancelled_at = $2
WHERE id = $1 AND status = 'paid'`

	tag, err := exec(ctx, r.pool, stmt, id, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("cancel paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelExpired sweeps every pending order past its expiry in one
// conditional update and returns the affected ids.
func (r *OrderRepository) CancelExpired(ctx context.Context, now time.Time) ([]string, error) {
	const stmt = `
UPDATE orders
SET status = 'cancelled', cancelled_at = $1
WHERE status = 'pending' AND expires_at <= $1
RETURNING id`

	rows, err := query(ctx, r.pool, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("cancel expired: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cancel expired scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cancel expired rows: %w", err)
	}
	return ids, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.ProductID,
		&o.Quantity,
		&o.UnitPrice,
		&o.TotalPrice,
		&status,
		&o.SourceWallet,
		&o.ReceivingWallet,
		&o.ChainID,
		&o.TxHash,
		&o.BlockHeight,
		&o.Confirmations,
		&o.CreatedAt,
		&o.ExpiresAt,
		&o.PaidAt,
		&o.FulfilledAt,
		&o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}
