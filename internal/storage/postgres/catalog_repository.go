package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

// CatalogRepository backs the catalog lookup capability with the products
// table.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetPurchasableItem(ctx context.Context, id string) (domain.Product, error) {
	const q = `
SELECT id, name, pool_id, unit_price, per_user_limit, active
FROM products
WHERE id = $1`

	var p domain.Product
	err := queryRow(ctx, r.pool, q, id).
		Scan(&p.ID, &p.Name, &p.PoolID, &p.UnitPrice, &p.PerUserLimit, &p.Active)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Product{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
