package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/clock"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/gacha"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/metrics"
)

// DrawRepository persists draws and granted holdings. CreateDraw enforces at
// most one draw per order; GrantPlayers ignores rows already granted for the
// same draw so a retried fulfillment never double-grants.
type DrawRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetDrawByOrder(ctx context.Context, orderID string) (*domain.GachaDraw, error)
	CreateDraw(ctx context.Context, draw domain.GachaDraw) error
	GrantPlayers(ctx context.Context, players []domain.OwnedPlayer) error
}

// ReferralRepository persists referral registrations and commissions.
type ReferralRepository interface {
	GetActiveReferrer(ctx context.Context, referredID string) (*domain.ReferralRegistration, error)
	GetCommissionByOrder(ctx context.Context, orderID string) (*domain.ReferralCommission, error)
	CreateCommission(ctx context.Context, c domain.ReferralCommission) error
	MarkCommissionPaid(ctx context.Context, id string, at time.Time) error
	MarkCommissionFailed(ctx context.Context, id string) error
}

// OrderTransitioner is the slice of order persistence the dispatcher needs.
type OrderTransitioner interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	MarkFulfilled(ctx context.Context, id string, at time.Time) (bool, error)
	CancelPaid(ctx context.Context, id string, at time.Time) (bool, error)
}

var defaultCommissionRate = decimal.RequireFromString("0.05")

const defaultSettlementAsset = "USDT"

// FulfillmentDispatcher drives the post-payment side effects for an order:
// the seeded draw, holdings grants, and referral commission, then the
// fulfilled transition. The whole sequence is idempotent on the order id.
type FulfillmentDispatcher struct {
	draws     DrawRepository
	referrals ReferralRepository
	orders    OrderTransitioner
	ledger    *LedgerService
	drawer    gacha.Drawer
	catalog   Catalog
	clock     clock.Clock
	logger    *slog.Logger

	commissionRate decimal.Decimal
	seedSource     string
	revenueAccount string
	asset          string
}

type DispatcherOption func(*FulfillmentDispatcher)

// WithCommissionRate overrides the referral commission percentage.
func WithCommissionRate(rate decimal.Decimal) DispatcherOption {
	return func(d *FulfillmentDispatcher) {
		if rate.IsPositive() {
			d.commissionRate = rate
		}
	}
}

// WithSettlementAsset overrides the asset commissions are denominated in
// and posted to the ledger with.
func WithSettlementAsset(asset string) DispatcherOption {
	return func(d *FulfillmentDispatcher) {
		if asset != "" {
			d.asset = asset
		}
	}
}

// WithSeedSource overrides the static component of draw seed derivation.
func WithSeedSource(src string) DispatcherOption {
	return func(d *FulfillmentDispatcher) {
		if src != "" {
			d.seedSource = src
		}
	}
}

func NewFulfillmentDispatcher(draws DrawRepository, referrals ReferralRepository, orders OrderTransitioner, ledger *LedgerService, drawer gacha.Drawer, catalog Catalog, clk clock.Clock, logger *slog.Logger, opts ...DispatcherOption) *FulfillmentDispatcher {
	d := &FulfillmentDispatcher{
		draws:          draws,
		referrals:      referrals,
		orders:         orders,
		ledger:         ledger,
		drawer:         drawer,
		catalog:        catalog,
		clock:          clk,
		logger:         logger,
		commissionRate: defaultCommissionRate,
		seedSource:     "gacha-v1",
		revenueAccount: "platform:revenue",
		asset:          defaultSettlementAsset,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fulfill runs the post-payment steps for a paid order. Each step is
// independently retryable; re-invocation for an order already in a terminal
// status is a no-op returning the prior state. If any step fails the order
// is forced to cancelled and the failure is reported for reconciliation,
// since money was received but goods were not granted.
func (d *FulfillmentDispatcher) Fulfill(ctx context.Context, order domain.Order) (domain.Order, error) {
	current, err := d.orders.GetOrder(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if current.Status.Terminal() {
		return current, nil
	}
	if current.Status != domain.OrderStatusPaid {
		return current, domain.ErrInvalidTransition
	}

	if err := d.run(ctx, current); err != nil {
		return d.fail(ctx, current, err)
	}

	now := d.clock.Now()
	if _, err := d.orders.MarkFulfilled(ctx, current.ID, now); err != nil {
		return d.fail(ctx, current, err)
	}

	final, err := d.orders.GetOrder(ctx, current.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if final.Status == domain.OrderStatusFulfilled {
		metrics.OrdersFulfilled.Inc()
		d.logger.Info("order fulfilled", "order_id", final.ID)
	}
	return final, nil
}

func (d *FulfillmentDispatcher) run(ctx context.Context, order domain.Order) error {
	draw, err := d.ensureDraw(ctx, order)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	if err := d.grant(ctx, order, draw); err != nil {
		return fmt.Errorf("grant holdings: %w", err)
	}
	if err := d.postCommission(ctx, order); err != nil {
		return fmt.Errorf("referral commission: %w", err)
	}
	return nil
}

func (d *FulfillmentDispatcher) ensureDraw(ctx context.Context, order domain.Order) (domain.GachaDraw, error) {
	existing, err := d.draws.GetDrawByOrder(ctx, order.ID)
	if err != nil {
		return domain.GachaDraw{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	product, err := d.catalog.GetPurchasableItem(ctx, order.ProductID)
	if err != nil {
		return domain.GachaDraw{}, err
	}

	seed := d.seedFor(order.ID)
	result, err := d.drawer.Draw(ctx, product.PoolID, seed, order.ID)
	if err != nil {
		return domain.GachaDraw{}, err
	}

	draw := domain.GachaDraw{
		ID:        result.DrawID,
		OrderID:   order.ID,
		PoolID:    product.PoolID,
		Seed:      seed,
		PlayerIDs: result.PlayerIDs,
	}
	if err := d.draws.CreateDraw(ctx, draw); err != nil {
		// A concurrent fulfillment recorded the draw first; reuse it so the
		// awarded set stays the one actually persisted.
		if err == domain.ErrIdempotencyConflict {
			existing, err := d.draws.GetDrawByOrder(ctx, order.ID)
			if err != nil {
				return domain.GachaDraw{}, err
			}
			if existing != nil {
				return *existing, nil
			}
		}
		return domain.GachaDraw{}, err
	}
	return draw, nil
}

func (d *FulfillmentDispatcher) grant(ctx context.Context, order domain.Order, draw domain.GachaDraw) error {
	players := make([]domain.OwnedPlayer, 0, len(draw.PlayerIDs))
	for _, playerID := range draw.PlayerIDs {
		players = append(players, domain.OwnedPlayer{
			ID:       newID(),
			BuyerID:  order.BuyerID,
			PlayerID: playerID,
			OrderID:  order.ID,
			DrawID:   draw.ID,
		})
	}
	return d.draws.GrantPlayers(ctx, players)
}

func (d *FulfillmentDispatcher) postCommission(ctx context.Context, order domain.Order) error {
	registration, err := d.referrals.GetActiveReferrer(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	if registration == nil {
		// Buyer was not referred; nothing to post.
		return nil
	}

	commission, err := d.referrals.GetCommissionByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if commission == nil {
		c := domain.ReferralCommission{
			ID:               newID(),
			ReferrerID:       registration.ReferrerID,
			ReferredID:       order.BuyerID,
			OrderID:          order.ID,
			OrderAmount:      order.TotalPrice,
			CommissionAmount: order.TotalPrice.Mul(d.commissionRate).Round(2),
			Asset:            d.asset,
			Status:           domain.CommissionStatusPending,
			CreatedAt:        d.clock.Now(),
		}
		if err := d.referrals.CreateCommission(ctx, c); err != nil {
			if err != domain.ErrIdempotencyConflict {
				return err
			}
			c2, err := d.referrals.GetCommissionByOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			if c2 == nil {
				return domain.ErrIdempotencyConflict
			}
			commission = c2
		} else {
			commission = &c
		}
	}
	if commission.Status == domain.CommissionStatusPaid {
		return nil
	}

	_, err = d.ledger.PostDoubleEntry(ctx,
		d.revenueAccount,
		"user:"+commission.ReferrerID,
		commission.CommissionAmount,
		commission.Asset,
		"referral commission for order "+order.ID,
		"referral_commission",
		order.ID,
	)
	if err != nil {
		return err
	}
	return d.referrals.MarkCommissionPaid(ctx, commission.ID, d.clock.Now())
}

// fail forces a paid order to cancelled and reports the failure as an
// operational alert, distinguishable from a normal cancellation.
func (d *FulfillmentDispatcher) fail(ctx context.Context, order domain.Order, cause error) (domain.Order, error) {
	now := d.clock.Now()
	if _, err := d.orders.CancelPaid(ctx, order.ID, now); err != nil {
		d.logger.Error("failed to cancel order after fulfillment failure",
			"order_id", order.ID, "error", err)
	}

	// A commission created by an earlier step must not stay pending for an
	// order that will never fulfill.
	if commission, err := d.referrals.GetCommissionByOrder(ctx, order.ID); err != nil {
		d.logger.Error("failed to load commission after fulfillment failure",
			"order_id", order.ID, "error", err)
	} else if commission != nil && commission.Status == domain.CommissionStatusPending {
		if err := d.referrals.MarkCommissionFailed(ctx, commission.ID); err != nil {
			d.logger.Error("failed to mark commission failed",
				"order_id", order.ID, "commission_id", commission.ID, "error", err)
		}
	}

	metrics.FulfillmentFailures.Inc()
	d.logger.Error("order fulfillment failed, payment received but goods not granted",
		"alert", "fulfillment_failed",
		"order_id", order.ID,
		"buyer_id", order.BuyerID,
		"amount", order.TotalPrice.String(),
		"error", cause,
	)

	final, err := d.orders.GetOrder(ctx, order.ID)
	if err != nil {
		final = order
	}
	return final, fmt.Errorf("%w: order %s: %w", domain.ErrFulfillmentFailed, order.ID, cause)
}

func (d *FulfillmentDispatcher) seedFor(orderID string) string {
	sum := sha256.Sum256([]byte(d.seedSource + ":" + orderID))
	return hex.EncodeToString(sum[:])
}
