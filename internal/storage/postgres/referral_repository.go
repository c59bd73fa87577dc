package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

type ReferralRepository struct {
	pool *pgxpool.Pool
}

func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

func (r *ReferralRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CreateRegistration links a referred user to a referrer. The partial unique
// index on active registrations makes concurrent first registrations resolve
// to exactly one winner.
func (r *ReferralRepository) CreateRegistration(ctx context.Context, reg domain.ReferralRegistration) error {
	const stmt = `
INSERT INTO referral_registrations (id, referrer_id, referred_id, code, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := exec(ctx, r.pool, stmt, reg.ID, reg.ReferrerID, reg.ReferredID, reg.Code, reg.Active, reg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyReferred
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create referral registration: %w", err)
	}
	return nil
}

func (r *ReferralRepository) GetActiveReferrer(ctx context.Context, referredID string) (*domain.ReferralRegistration, error) {
	const q = `
SELECT id, referrer_id, referred_id, code, active, created_at
FROM referral_registrations
WHERE referred_id = $1 AND active`

	var reg domain.ReferralRegistration
	err := queryRow(ctx, r.pool, q, referredID).
		Scan(&reg.ID, &reg.ReferrerID, &reg.ReferredID, &reg.Code, &reg.Active, &reg.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active referrer: %w", err)
	}
	return &reg, nil
}

func (r *ReferralRepository) GetCommissionByOrder(ctx context.Context, orderID string) (*domain.ReferralCommission, error) {
	const q = `
SELECT id, referrer_id, referred_id, order_id, order_amount, commission_amount, asset, status, created_at, paid_at
FROM referral_commissions
WHERE order_id = $1`

	var c domain.ReferralCommission
	var status string
	err := queryRow(ctx, r.pool, q, orderID).
		Scan(&c.ID, &c.ReferrerID, &c.ReferredID, &c.OrderID, &c.OrderAmount, &c.CommissionAmount, &c.Asset, &status, &c.CreatedAt, &c.PaidAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get commission by order: %w", err)
	}
	c.Status = domain.CommissionStatus(status)
	return &c, nil
}

// CreateCommission records a commission at most once per order via the
// unique index on order_id.
func (r *ReferralRepository) CreateCommission(ctx context.Context, c domain.ReferralCommission) error {
	const stmt = `
INSERT INTO referral_commissions (id, referrer_id, referred_id, order_id, order_amount, commission_amount, asset, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := exec(ctx, r.pool, stmt,
		c.ID, c.ReferrerID, c.ReferredID, c.OrderID, c.OrderAmount, c.CommissionAmount, c.Asset, c.Status, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create commission: %w", err)
	}
	return nil
}

func (r *ReferralRepository) MarkCommissionPaid(ctx context.Context, id string, at time.Time) error {
	const stmt = `UPDATE referral_commissions SET status = 'paid', paid_at = $2 WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, id, at)
	if err != nil {
		return fmt.Errorf("mark commission paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *ReferralRepository) MarkCommissionFailed(ctx context.Context, id string) error {
	const stmt = `UPDATE referral_commissions SET status = 'failed' WHERE id = $1 AND status = 'pending'`

	if _, err := exec(ctx, r.pool, stmt, id); err != nil {
		return fmt.Errorf("mark commission failed: %w", err)
	}
	return nil
}
