package domain

import "errors"

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrBuyerNotFound          = errors.New("buyer not found")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrForbidden              = errors.New("requester does not own this order")
	ErrInvalidID              = errors.New("invalid id")
	ErrLimitExceeded          = errors.New("per-user purchase limit exceeded")
	ErrInvalidTransition      = errors.New("invalid order state transition")
	ErrVerificationFailed     = errors.New("payment verification failed")
	ErrUnconfirmed            = errors.New("payment not yet confirmed")
	ErrExternalUnavailable    = errors.New("external dependency unavailable")
	ErrFulfillmentFailed      = errors.New("order fulfillment failed")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")
	ErrIdempotencyInFlight    = errors.New("request with this idempotency key is in flight")
	ErrAlreadyReferred        = errors.New("user already has an active referral registration")
	ErrPostingExists          = errors.New("ledger posting already exists for reference")
)
