package handler

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/tavolo/loyalty-core/internal/domain/catalog"
	"github.com/tavolo/loyalty-core/internal/domain/order"
	"github.com/tavolo/loyalty-core/internal/domain/payment"
	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"wallet validation", &wallet.ValidationError{Field: "amount", Reason: "must be non-zero"}, http.StatusBadRequest},
		{"order validation", &order.ValidationError{Field: "items", Reason: "required"}, http.StatusBadRequest},
		{"customer not found", wallet.ErrCustomerNotFound, http.StatusNotFound},
		{"order not found", order.ErrNotFound, http.StatusNotFound},
		{"rider not found", order.ErrRiderNotFound, http.StatusNotFound},
		{"insufficient funds", wallet.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"wrapped insufficient funds", errors.Wrap(wallet.ErrInsufficientFunds, "debit"), http.StatusPaymentRequired},
		{"payment failure", &payment.PaymentError{Retryable: true, Err: errors.New("timeout")}, http.StatusPaymentRequired},
		{"missing menu item", errors.Wrap(catalog.ErrItemNotFound, "item x"), http.StatusUnprocessableEntity},
		{"invalid transition", &order.InvalidTransitionError{From: order.StatusPending, Attempted: order.StatusReady}, http.StatusConflict},
		{"undo window expired", wallet.ErrUndoWindowExpired, http.StatusConflict},
		{"rider already assigned", order.ErrRiderAlreadyAssigned, http.StatusConflict},
		{"rider inactive", order.ErrRiderInactive, http.StatusConflict},
		{"messaging closed", order.ErrMessagingClosed, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}
