// Package handler exposes the ledger, order lifecycle, and checkout over
// HTTP. It does no business logic of its own: requests are decoded,
// delegated, and domain errors mapped to status codes in one place.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/tavolo/loyalty-core/internal/domain/order"
	"github.com/tavolo/loyalty-core/internal/domain/payment"
	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

// Handler carries the domain dependencies for all routes.
type Handler struct {
	ledger      *wallet.Ledger
	orders      *order.Service
	coordinator *payment.Coordinator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(ledger *wallet.Ledger, orders *order.Service, coordinator *payment.Coordinator) *Handler {
	return &Handler{
		ledger:      ledger,
		orders:      orders,
		coordinator: coordinator,
	}
}

// Routes mounts all API routes on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/customers/{customerID}/wallet", func(r chi.Router) {
		r.Get("/", h.getBalance)
		r.Get("/transactions", h.listTransactions)
		r.Post("/transactions", h.applyTransaction)
	})
	r.Post("/wallet/transactions/{transactionID}/undo", h.undoTopUp)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/{orderID}", h.getOrder)
		r.Post("/{orderID}/accept", h.acceptOrder)
		r.Post("/{orderID}/preparing", h.markPreparing)
		r.Post("/{orderID}/ready", h.markReady)
		r.Post("/{orderID}/dispatch", h.markOnTheWay)
		r.Post("/{orderID}/complete", h.markCompleted)
		r.Post("/{orderID}/cancel", h.cancelOrder)
		r.Post("/{orderID}/rider", h.assignRider)
		r.Post("/{orderID}/messages", h.sendMessage)
		r.Get("/{orderID}/messages", h.listMessages)
	})

	return r
}
