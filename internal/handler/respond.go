package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavolo/loyalty-core/internal/domain/catalog"
	"github.com/tavolo/loyalty-core/internal/domain/order"
	"github.com/tavolo/loyalty-core/internal/domain/payment"
	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: msg})
}

// uuidParam parses a path parameter as a UUID; it writes a 400 response and
// returns false on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to HTTP responses. Unknown errors are logged
// and answered with a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Code: status, Message: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Code: status, Message: err.Error()})
}

func errorStatus(err error) int {
	var (
		walletVErr *wallet.ValidationError
		orderVErr  *order.ValidationError
		itErr      *order.InvalidTransitionError
		payErr     *payment.PaymentError
	)

	switch {
	case errors.As(err, &walletVErr), errors.As(err, &orderVErr):
		return http.StatusBadRequest

	case errors.Is(err, wallet.ErrCustomerNotFound),
		errors.Is(err, wallet.ErrTransactionNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrRiderNotFound):
		return http.StatusNotFound

	case errors.Is(err, wallet.ErrInsufficientFunds), errors.As(err, &payErr):
		return http.StatusPaymentRequired

	case errors.Is(err, catalog.ErrItemNotFound):
		return http.StatusUnprocessableEntity

	case errors.As(err, &itErr),
		errors.Is(err, wallet.ErrUndoWindowExpired),
		errors.Is(err, order.ErrRiderAlreadyAssigned),
		errors.Is(err, order.ErrRiderInactive),
		errors.Is(err, order.ErrMessagingClosed):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
