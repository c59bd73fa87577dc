package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
	CommissionStatusFailed  CommissionStatus = "failed"
)

// ReferralCommission is created at most once per qualifying order.
type ReferralCommission struct {
	ID               string
	ReferrerID       string
	ReferredID       string
	OrderID          string
	OrderAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	Asset            string
	Status           CommissionStatus
	CreatedAt        time.Time
	PaidAt           *time.Time
}

// ReferralRegistration links a referred user to their referrer. The storage
// layer enforces one active registration per referred user and one active
// code per referrer.
type ReferralRegistration struct {
	ID         string
	ReferrerID string
	ReferredID string
	Code       string
	Active     bool
	CreatedAt  time.Time
}
