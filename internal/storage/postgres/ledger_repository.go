package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// InsertEntries writes posting legs. The unique index on
// (ref_type, ref_id, side) rejects a second posting for the same reference.
func (r *LedgerRepository) InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error {
	const stmt = `
INSERT INTO ledger_entries (id, posting_id, account, side, amount, asset, memo, ref_type, ref_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, e := range entries {
		_, err := exec(ctx, r.pool, stmt,
			e.ID,
			e.PostingID,
			e.Account,
			e.Side,
			e.Amount,
			e.Asset,
			e.Memo,
			e.RefType,
			e.RefID,
			e.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrPostingExists
			}
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return nil
}

func (r *LedgerRepository) GetEntriesByRef(ctx context.Context, refType, refID string) ([]domain.LedgerEntry, error) {
	const q = `
SELECT id, posting_id, account, side, amount, asset, memo, ref_type, ref_id, created_at
FROM ledger_entries
WHERE ref_type = $1 AND ref_id = $2
ORDER BY side`

	rows, err := query(ctx, r.pool, q, refType, refID)
	if err != nil {
		return nil, fmt.Errorf("get entries by ref: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var side string
		if err := rows.Scan(&e.ID, &e.PostingID, &e.Account, &side, &e.Amount, &e.Asset, &e.Memo, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Side = domain.EntrySide(side)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger entries rows: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) SumByAccount(ctx context.Context, account, asset string) (decimal.Decimal, decimal.Decimal, error) {
	const q = `
SELECT
	COALESCE(SUM(amount) FILTER (WHERE side = 'debit'), 0),
	COALESCE(SUM(amount) FILTER (WHERE side = 'credit'), 0)
FROM ledger_entries
WHERE account = $1 AND asset = $2`

	var debits, credits decimal.Decimal
	if err := queryRow(ctx, r.pool, q, account, asset).Scan(&debits, &credits); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum by account: %w", err)
	}
	return debits, credits, nil
}
