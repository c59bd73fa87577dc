package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/app"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

// userHeader carries the authenticated caller id, populated by the upstream
// auth layer.
const userHeader = "X-User-ID"

// OrderCreator is the minimal interface needed to create orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
}

// IdempotencyGate deduplicates mutating requests by caller-supplied key.
type IdempotencyGate interface {
	Execute(ctx context.Context, key, userID string, op func(ctx context.Context) ([]byte, error)) (app.GateResult, error)
}

// gateEnvelope is the stored shape of a gated response, so a replay can
// reproduce the original status code as well as the body.
type gateEnvelope struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// HandleCreateOrder returns an HTTP handler for POST /orders. The request
// is routed through the idempotency gate before the state machine runs.
func HandleCreateOrder(svc OrderCreator, gate IdempotencyGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		userID := r.Header.Get(userHeader)
		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeDomainError(w, err)
			return
		}

		result, err := gate.Execute(r.Context(), key, userID, func(ctx context.Context) ([]byte, error) {
			order, err := svc.CreateOrder(ctx, app.CreateOrderInput{
				BuyerID:      userID,
				ProductID:    req.ProductID,
				Quantity:     req.Quantity,
				SourceWallet: req.SourceWallet,
				ChainID:      req.ChainID,
			})
			if err != nil {
				return nil, err
			}
			return marshalEnvelope(http.StatusCreated, orderToResponse(order))
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeEnvelope(w, result.Response)
	}
}

type createOrderRequest struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	SourceWallet string `json:"source_wallet"`
	ChainID      string `json:"chain_id"`
}

func (r createOrderRequest) validate() error {
	if r.ProductID == "" {
		return domain.ErrProductNotFound
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

type orderResponse struct {
	ID              string     `json:"id"`
	BuyerID         string     `json:"buyer_id"`
	ProductID       string     `json:"product_id"`
	Quantity        int        `json:"quantity"`
	UnitPrice       string     `json:"unit_price"`
	TotalPrice      string     `json:"total_price"`
	Status          string     `json:"status"`
	SourceWallet    string     `json:"source_wallet"`
	ReceivingWallet string     `json:"receiving_wallet"`
	ChainID         string     `json:"chain_id"`
	TxHash          string     `json:"tx_hash,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	FulfilledAt     *time.Time `json:"fulfilled_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func orderToResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		ProductID:       o.ProductID,
		Quantity:        o.Quantity,
		UnitPrice:       o.UnitPrice.StringFixed(2),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		Status:          string(o.Status),
		SourceWallet:    o.SourceWallet,
		ReceivingWallet: o.ReceivingWallet,
		ChainID:         o.ChainID,
		TxHash:          o.TxHash,
		CreatedAt:       o.CreatedAt,
		ExpiresAt:       o.ExpiresAt,
		PaidAt:          o.PaidAt,
		FulfilledAt:     o.FulfilledAt,
		CancelledAt:     o.CancelledAt,
	}
}

func marshalEnvelope(status int, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(gateEnvelope{Status: status, Body: raw})
}

func writeEnvelope(w http.ResponseWriter, stored []byte) {
	var env gateEnvelope
	if err := json.Unmarshal(stored, &env); err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	_, _ = w.Write(env.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
