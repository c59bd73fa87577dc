package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Goal-Play-Pro/game-app-sub001/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeLimitExceeded       = "limit_exceeded"
	codeInvalidTransition   = "invalid_transition"
	codeVerificationFailed  = "verification_failed"
	codeUnconfirmed         = "unconfirmed"
	codeExternalUnavailable = "external_unavailable"
	codeFulfillmentFailed   = "fulfillment_failed"
	codeIdempotencyRequired = "idempotency_key_required"
	codeIdempotencyConflict = "idempotency_conflict"
	codeIdempotencyInFlight = "idempotency_in_flight"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the pipeline's error taxonomy onto HTTP responses.
// Recoverable verification outcomes surface as retryable statuses so a
// client can re-notify once the transfer confirms.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrBuyerNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrLimitExceeded):
		writeError(w, http.StatusConflict, codeLimitExceeded, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrVerificationFailed):
		writeError(w, http.StatusUnprocessableEntity, codeVerificationFailed, err.Error())
	case errors.Is(err, domain.ErrUnconfirmed):
		writeError(w, http.StatusAccepted, codeUnconfirmed, err.Error())
	case errors.Is(err, domain.ErrExternalUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeExternalUnavailable, err.Error())
	case errors.Is(err, domain.ErrFulfillmentFailed):
		writeError(w, http.StatusConflict, codeFulfillmentFailed, err.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
	case errors.Is(err, domain.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, codeIdempotencyConflict, err.Error())
	case errors.Is(err, domain.ErrIdempotencyInFlight):
		writeError(w, http.StatusConflict, codeIdempotencyInFlight, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
