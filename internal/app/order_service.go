package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/chain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/clock"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/metrics"
)

// OrderRepository persists orders. The Mark* methods are conditional
// updates: they return false when the guard no longer holds, so exactly one
// of any racing transitions commits per order.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	BuyerExists(ctx context.Context, buyerID string) (bool, error)
	CountFulfilled(ctx context.Context, buyerID, productID string) (int, error)
	MarkPaid(ctx context.Context, id, txHash string, blockHeight int64, confirmations int, paidAt time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFulfilled(ctx context.Context, id string, at time.Time) (bool, error)
	CancelPaid(ctx context.Context, id string, at time.Time) (bool, error)
	CancelExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Catalog is the product lookup capability.
type Catalog interface {
	GetPurchasableItem(ctx context.Context, id string) (domain.Product, error)
}

// Fulfiller drives the post-payment side effects for a paid order.
type Fulfiller interface {
	Fulfill(ctx context.Context, order domain.Order) (domain.Order, error)
}

// PaymentScheduler arms and cancels per-order background payment checks.
type PaymentScheduler interface {
	Watch(order domain.Order)
	Cancel(orderID string)
}

const defaultOrderTTL = 30 * time.Minute

// OrderService owns the order lifecycle: pending -> paid -> fulfilled on the
// success path, pending -> cancelled on the user/expiry path. Terminal
// orders are immutable.
type OrderService struct {
	repo      OrderRepository
	catalog   Catalog
	verifier  *PaymentVerifier
	fulfiller Fulfiller
	clock     clock.Clock
	logger    *slog.Logger
	scheduler PaymentScheduler

	orderTTL        time.Duration
	receivingWallet string
	chainID         string
}

type OrderServiceOption func(*OrderService)

// WithOrderTTL overrides the payment window for new orders.
func WithOrderTTL(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.orderTTL = d
		}
	}
}

func NewOrderService(repo OrderRepository, catalog Catalog, verifier *PaymentVerifier, fulfiller Fulfiller, clk clock.Clock, logger *slog.Logger, receivingWallet, chainID string, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		repo:            repo,
		catalog:         catalog,
		verifier:        verifier,
		fulfiller:       fulfiller,
		clock:           clk,
		logger:          logger,
		orderTTL:        defaultOrderTTL,
		receivingWallet: receivingWallet,
		chainID:         chainID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScheduler installs the background payment scheduler. The scheduler
// needs the service to run checks, so it is wired after construction.
func (s *OrderService) SetScheduler(sched PaymentScheduler) {
	s.scheduler = sched
}

type CreateOrderInput struct {
	BuyerID      string
	ProductID    string
	Quantity     int
	SourceWallet string
	ChainID      string
}

// CreateOrder validates the product and per-buyer limit, fixes the price,
// and persists a pending order with a 30 minute payment window.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.Quantity <= 0 {
		return domain.Order{}, domain.ErrInvalidQuantity
	}

	exists, err := s.repo.BuyerExists(ctx, in.BuyerID)
	if err != nil {
		return domain.Order{}, err
	}
	if !exists {
		return domain.Order{}, domain.ErrBuyerNotFound
	}

	product, err := s.catalog.GetPurchasableItem(ctx, in.ProductID)
	if err != nil {
		return domain.Order{}, err
	}
	if !product.Active {
		return domain.Order{}, domain.ErrProductNotFound
	}

	if product.PerUserLimit > 0 {
		fulfilled, err := s.repo.CountFulfilled(ctx, in.BuyerID, in.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if fulfilled >= product.PerUserLimit {
			return domain.Order{}, domain.ErrLimitExceeded
		}
	}

	now := s.clock.Now()
	chainID := in.ChainID
	if chainID == "" {
		chainID = s.chainID
	}

	order := domain.Order{
		ID:              newID(),
		BuyerID:         in.BuyerID,
		ProductID:       in.ProductID,
		Quantity:        in.Quantity,
		UnitPrice:       product.UnitPrice,
		TotalPrice:      product.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:          domain.OrderStatusPending,
		SourceWallet:    in.SourceWallet,
		ReceivingWallet: s.receivingWallet,
		ChainID:         chainID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.orderTTL),
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}

	metrics.OrdersCreated.Inc()
	if s.scheduler != nil {
		s.scheduler.Watch(order)
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

type PaymentObservation struct {
	OrderID     string
	TxHash      string
	From        string
	To          string
	Amount      decimal.Decimal
	BlockHeight int64
}

// RecordPaymentObservation verifies a candidate transfer against a pending
// order. A Valid result commits the paid transition through a conditional
// update that also guards expiry, then drives fulfillment. A mismatch leaves
// the order pending for future observations; the error reports why. An
// observation against an order that already left pending is a no-op
// returning the current state.
func (s *OrderService) RecordPaymentObservation(ctx context.Context, in PaymentObservation) (domain.Order, domain.VerificationResult, error) {
	order, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return domain.Order{}, "", err
	}
	if order.Status != domain.OrderStatusPending {
		return order, "", nil
	}

	candidate := chain.Transfer{
		Hash:        in.TxHash,
		From:        in.From,
		To:          in.To,
		Amount:      in.Amount,
		BlockHeight: in.BlockHeight,
	}

	result, depth, err := s.verifier.Verify(ctx, candidate, order.SourceWallet, order.ReceivingWallet, order.TotalPrice)
	if err != nil {
		return order, "", err
	}

	switch result {
	case domain.VerificationValid:
	case domain.VerificationUnconfirmed:
		return order, result, domain.ErrUnconfirmed
	default:
		return order, result, domain.ErrVerificationFailed
	}

	now := s.clock.Now()
	won, err := s.repo.MarkPaid(ctx, order.ID, in.TxHash, in.BlockHeight, depth, now)
	if err != nil {
		return order, result, err
	}

	order, err = s.repo.GetOrder(ctx, order.ID)
	if err != nil {
		return domain.Order{}, result, err
	}
	if !won {
		// A concurrent observation, cancel, or expiry sweep committed
		// first; this attempt is a no-op.
		return order, result, nil
	}

	metrics.OrdersPaid.Inc()
	s.logger.Info("order paid",
		"order_id", order.ID,
		"tx_hash", in.TxHash,
		"block_height", in.BlockHeight,
	)
	if s.scheduler != nil {
		s.scheduler.Cancel(order.ID)
	}

	fulfilled, err := s.fulfiller.Fulfill(ctx, order)
	if err != nil {
		return fulfilled, result, err
	}
	return fulfilled, result, nil
}

// NotifyPayment handles a synchronous payment notification: it discovers the
// transfer by hash on the receiving wallet and records the observation.
// Verification and confirmation shortfalls surface as retryable errors.
func (s *OrderService) NotifyPayment(ctx context.Context, orderID, txHash string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return order, nil
	}

	transfer, found, err := s.verifier.FindByHash(ctx, order.ReceivingWallet, 0, txHash)
	if err != nil {
		return order, err
	}
	if !found {
		return order, domain.ErrVerificationFailed
	}

	order, _, err = s.RecordPaymentObservation(ctx, PaymentObservation{
		OrderID:     orderID,
		TxHash:      transfer.Hash,
		From:        transfer.From,
		To:          transfer.To,
		Amount:      transfer.Amount,
		BlockHeight: transfer.BlockHeight,
	})
	return order, err
}

type PaymentStatus struct {
	OrderID       string
	Status        domain.OrderStatus
	TxHash        string
	BlockHeight   int64
	Confirmations int
	PaidAt        *time.Time
}

func (s *OrderService) GetPaymentStatus(ctx context.Context, orderID string) (PaymentStatus, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PaymentStatus{}, err
	}
	return PaymentStatus{
		OrderID:       order.ID,
		Status:        order.Status,
		TxHash:        order.TxHash,
		BlockHeight:   order.BlockHeight,
		Confirmations: order.Confirmations,
		PaidAt:        order.PaidAt,
	}, nil
}

// Cancel moves a pending order to cancelled on behalf of its buyer.
func (s *OrderService) Cancel(ctx context.Context, orderID, requesterID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.BuyerID != requesterID {
		return domain.Order{}, domain.ErrForbidden
	}
	if order.Status != domain.OrderStatusPending {
		return order, domain.ErrInvalidTransition
	}

	won, err := s.repo.MarkCancelled(ctx, orderID, s.clock.Now())
	if err != nil {
		return order, err
	}

	order, err = s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !won && order.Status != domain.OrderStatusCancelled {
		// Payment committed first; the cancel is rejected.
		return order, domain.ErrInvalidTransition
	}

	if s.scheduler != nil {
		s.scheduler.Cancel(orderID)
	}
	return order, nil
}

// ExpireStale cancels every pending order whose payment window has closed.
// The sweep is a single conditional bulk update, so it is safe to run
// concurrently with payment observations for the same orders: whichever
// transition commits first wins and the loser is a no-op.
func (s *OrderService) ExpireStale(ctx context.Context) ([]string, error) {
	ids, err := s.repo.CancelExpired(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		metrics.OrdersExpired.Add(float64(len(ids)))
		s.logger.Info("expired stale orders", "count", len(ids))
		if s.scheduler != nil {
			for _, id := range ids {
				s.scheduler.Cancel(id)
			}
		}
	}
	return ids, nil
}
