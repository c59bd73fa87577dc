package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusCancelled
}

// Order represents one purchase intent. TotalPrice is fixed at creation
// (UnitPrice times Quantity) and never recomputed. Orders are never deleted
// and become immutable once fulfilled or cancelled.
type Order struct {
	ID              string
	BuyerID         string
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	Status          OrderStatus
	SourceWallet    string
	ReceivingWallet string
	ChainID         string
	TxHash          string
	BlockHeight     int64
	Confirmations   int
	CreatedAt       time.Time
	ExpiresAt       time.Time
	PaidAt          *time.Time
	FulfilledAt     *time.Time
	CancelledAt     *time.Time
}

// Expired reports whether the payment window has closed as of now.
func (o Order) Expired(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}
