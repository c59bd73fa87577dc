package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/app"
	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

// OrderReader serves order and payment-status lookups.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetPaymentStatus(ctx context.Context, orderID string) (app.PaymentStatus, error)
}

// OrderMutator serves the gated mutating operations on an existing order.
type OrderMutator interface {
	Cancel(ctx context.Context, orderID, requesterID string) (domain.Order, error)
	NotifyPayment(ctx context.Context, orderID, txHash string) (domain.Order, error)
}

// HandleOrderByID routes /orders/{id}, /orders/{id}/cancel, and
// /orders/{id}/payment.
func HandleOrderByID(reader OrderReader, mutator OrderMutator, gate IdempotencyGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseOrderPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			order, err := reader.GetOrder(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, orderToResponse(order))

		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleCancel(w, r, id, mutator, gate)

		case "payment":
			switch r.Method {
			case http.MethodPost:
				handleNotifyPayment(w, r, id, mutator, gate)
			case http.MethodGet:
				status, err := reader.GetPaymentStatus(r.Context(), id)
				if err != nil {
					writeDomainError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, paymentStatusToResponse(status))
			default:
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			}

		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleCancel(w http.ResponseWriter, r *http.Request, orderID string, mutator OrderMutator, gate IdempotencyGate) {
	userID := r.Header.Get(userHeader)
	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
		return
	}

	result, err := gate.Execute(r.Context(), key, userID, func(ctx context.Context) ([]byte, error) {
		order, err := mutator.Cancel(ctx, orderID, userID)
		if err != nil {
			return nil, err
		}
		return marshalEnvelope(http.StatusOK, orderToResponse(order))
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeEnvelope(w, result.Response)
}

func handleNotifyPayment(w http.ResponseWriter, r *http.Request, orderID string, mutator OrderMutator, gate IdempotencyGate) {
	userID := r.Header.Get(userHeader)
	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
		return
	}

	var req notifyPaymentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.TxHash == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "tx_hash is required")
		return
	}

	result, err := gate.Execute(r.Context(), key, userID, func(ctx context.Context) ([]byte, error) {
		order, err := mutator.NotifyPayment(ctx, orderID, req.TxHash)
		if err != nil {
			return nil, err
		}
		return marshalEnvelope(http.StatusOK, orderToResponse(order))
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeEnvelope(w, result.Response)
}

func parseOrderPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "orders" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	return parts[1], parts[2], true
}

type notifyPaymentRequest struct {
	TxHash string `json:"tx_hash"`
}

type paymentStatusResponse struct {
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	TxHash        string     `json:"tx_hash,omitempty"`
	BlockHeight   int64      `json:"block_height,omitempty"`
	Confirmations int        `json:"confirmations,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

func paymentStatusToResponse(s app.PaymentStatus) paymentStatusResponse {
	return paymentStatusResponse{
		OrderID:       s.OrderID,
		Status:        string(s.Status),
		TxHash:        s.TxHash,
		BlockHeight:   s.BlockHeight,
		Confirmations: s.Confirmations,
		PaidAt:        s.PaidAt,
	}
}
