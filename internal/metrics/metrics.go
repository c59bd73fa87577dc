// Package metrics provides Prometheus instrumentation for the payment and
// fulfillment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts orders accepted into the pipeline.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_created_total",
		Help: "Total orders created",
	})

	// PaymentVerifications counts verification outcomes by result.
	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_payment_verifications_total",
		Help: "Payment verification attempts by result",
	}, []string{"result"})

	// OrdersPaid counts successful paid transitions.
	OrdersPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_paid_total",
		Help: "Orders transitioned to paid",
	})

	// OrdersFulfilled counts successful fulfillments.
	OrdersFulfilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_fulfilled_total",
		Help: "Orders transitioned to fulfilled",
	})

	// FulfillmentFailures counts fulfillments that forced a cancellation.
	// Money was received but goods were not granted; each increment needs
	// manual reconciliation.
	FulfillmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_fulfillment_failures_total",
		Help: "Paid orders cancelled because a fulfillment step failed",
	})

	// OrdersExpired counts pending orders cancelled by the expiry sweep.
	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_expired_total",
		Help: "Pending orders cancelled after their payment window closed",
	})

	// LedgerPostings counts double-entry postings by reference type.
	LedgerPostings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_ledger_postings_total",
		Help: "Double-entry ledger postings by reference type",
	}, []string{"ref_type"})

	// IdempotentReplays counts requests served from a stored idempotency
	// record instead of re-execution.
	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_idempotent_replays_total",
		Help: "Mutating requests answered from a stored idempotency record",
	})

	// ChainQueryErrors counts chain lookups that failed or timed out.
	ChainQueryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_chain_query_errors_total",
		Help: "Chain query failures treated as retryable",
	})
)
