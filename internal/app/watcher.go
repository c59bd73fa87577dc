package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

const (
	defaultPollInterval  = 15 * time.Second
	defaultSweepInterval = time.Minute
	defaultCheckTimeout  = 30 * time.Second
	maxPollBackoff       = 4
)

// PaymentWatcher polls the chain for payments to pending orders. Each
// watched order owns one cancellable re-armed handle, so timers cannot leak:
// handles are dropped when the order reaches a terminal status, wins its
// paid transition, or passes expiry. It also runs the periodic expiry sweep
// and idempotency purge.
type PaymentWatcher struct {
	orders   *OrderService
	verifier *PaymentVerifier
	gate     *Gate
	logger   *slog.Logger

	pollInterval  time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	handles map[string]*watchHandle
	closed  bool
}

type watchHandle struct {
	timer      *time.Timer
	sinceBlock int64
	misses     int
}

type WatcherOption func(*PaymentWatcher)

// WithPollInterval overrides the base payment polling interval.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *PaymentWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithSweepInterval overrides the expiry sweep interval.
func WithSweepInterval(d time.Duration) WatcherOption {
	return func(w *PaymentWatcher) {
		if d > 0 {
			w.sweepInterval = d
		}
	}
}

func NewPaymentWatcher(orders *OrderService, verifier *PaymentVerifier, gate *Gate, logger *slog.Logger, opts ...WatcherOption) *PaymentWatcher {
	w := &PaymentWatcher{
		orders:        orders,
		verifier:      verifier,
		gate:          gate,
		logger:        logger,
		pollInterval:  defaultPollInterval,
		sweepInterval: defaultSweepInterval,
		handles:       make(map[string]*watchHandle),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch arms a payment check for a pending order. Watching an order twice
// keeps the existing handle.
func (w *PaymentWatcher) Watch(order domain.Order) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.handles[order.ID]; ok {
		return
	}

	h := &watchHandle{}
	h.timer = time.AfterFunc(w.pollInterval, func() { w.check(order.ID) })
	w.handles[order.ID] = h
}

// Cancel drops the handle for an order, stopping further checks.
func (w *PaymentWatcher) Cancel(orderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if h, ok := w.handles[orderID]; ok {
		h.timer.Stop()
		delete(w.handles, orderID)
	}
}

// Close stops every handle. New Watch calls become no-ops.
func (w *PaymentWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, h := range w.handles {
		h.timer.Stop()
		delete(w.handles, id)
	}
}

func (w *PaymentWatcher) check(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCheckTimeout)
	defer cancel()

	order, err := w.orders.GetOrder(ctx, orderID)
	if err != nil {
		w.rearm(orderID, err)
		return
	}
	if order.Status != domain.OrderStatusPending {
		w.Cancel(orderID)
		return
	}
	if order.Expired(time.Now().UTC()) {
		// The sweep owns expired orders; checking further would only race it.
		w.Cancel(orderID)
		return
	}

	w.mu.Lock()
	h, ok := w.handles[orderID]
	sinceBlock := int64(0)
	if ok {
		sinceBlock = h.sinceBlock
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	candidates, next, err := w.verifier.Candidates(ctx, order.ReceivingWallet, sinceBlock)
	if err != nil {
		w.rearm(orderID, err)
		return
	}

	for _, t := range candidates {
		updated, result, err := w.orders.RecordPaymentObservation(ctx, PaymentObservation{
			OrderID:     orderID,
			TxHash:      t.Hash,
			From:        t.From,
			To:          t.To,
			Amount:      t.Amount,
			BlockHeight: t.BlockHeight,
		})
		if err != nil {
			if errors.Is(err, domain.ErrFulfillmentFailed) {
				// Terminal outcome; the dispatcher already alerted.
				w.Cancel(orderID)
				return
			}
			// Mismatches and shallow confirmations are expected here; keep
			// polling with the next candidate or cycle.
			w.logger.Debug("candidate rejected",
				"order_id", orderID, "tx_hash", t.Hash, "result", string(result), "error", err)
			continue
		}
		if updated.Status != domain.OrderStatusPending {
			w.Cancel(orderID)
			return
		}
	}

	w.mu.Lock()
	if h, ok := w.handles[orderID]; ok {
		// Do not advance past unconfirmed candidates: a transfer below the
		// confirmation threshold must be re-observed on the next cycle.
		if len(candidates) == 0 {
			h.sinceBlock = next
		}
		h.misses = 0
		h.timer.Reset(w.pollInterval)
	}
	w.mu.Unlock()
}

// rearm schedules the next check with linear backoff after a retryable
// failure. Order state is unchanged.
func (w *PaymentWatcher) rearm(orderID string, cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, ok := w.handles[orderID]
	if !ok {
		return
	}
	if h.misses < maxPollBackoff {
		h.misses++
	}
	delay := w.pollInterval * time.Duration(h.misses)
	h.timer.Reset(delay)
	w.logger.Warn("payment check failed, retrying",
		"order_id", orderID, "retry_in", delay.String(), "error", cause)
}

// Run executes the periodic expiry sweep and idempotency purge until ctx is
// done.
func (w *PaymentWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-ticker.C:
			if _, err := w.orders.ExpireStale(ctx); err != nil {
				w.logger.Warn("expiry sweep failed", "error", err)
			}
			if w.gate != nil {
				if _, err := w.gate.PurgeExpired(ctx); err != nil {
					w.logger.Warn("idempotency purge failed", "error", err)
				}
			}
		}
	}
}
