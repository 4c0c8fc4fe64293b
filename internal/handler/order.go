package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo/loyalty-core/internal/domain/order"
	"github.com/tavolo/loyalty-core/internal/domain/payment"
)

type orderResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Number             string          `json:"number"`
	RestaurantID       uuid.UUID       `json:"restaurant_id"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	BranchID           uuid.UUID       `json:"branch_id"`
	Type               string          `json:"type"`
	Status             string          `json:"status"`
	Items              []order.Item    `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalPointsUsed    int             `json:"total_points_used"`
	PaymentMethod      string          `json:"payment_method"`
	PaymentStatus      string          `json:"payment_status"`
	AddressID          *uuid.UUID      `json:"address_id,omitempty"`
	RiderID            *uuid.UUID      `json:"rider_id,omitempty"`
	RiderAssignedAt    *time.Time      `json:"rider_assigned_at,omitempty"`
	AcceptedAt         *time.Time      `json:"accepted_at,omitempty"`
	PreparingAt        *time.Time      `json:"preparing_at,omitempty"`
	ReadyAt            *time.Time      `json:"ready_at,omitempty"`
	OutForDeliveryAt   *time.Time      `json:"out_for_delivery_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                 o.ID,
		Number:             o.Number,
		RestaurantID:       o.RestaurantID,
		CustomerID:         o.CustomerID,
		BranchID:           o.BranchID,
		Type:               string(o.Type),
		Status:             string(o.Status),
		Items:              o.Items,
		Subtotal:           o.Subtotal,
		TotalAmount:        o.TotalAmount,
		TotalPointsUsed:    o.TotalPointsUsed,
		PaymentMethod:      o.PaymentMethod,
		PaymentStatus:      string(o.PaymentStatus),
		AddressID:          o.AddressID,
		RiderID:            o.RiderID,
		RiderAssignedAt:    o.RiderAssignedAt,
		AcceptedAt:         o.AcceptedAt,
		PreparingAt:        o.PreparingAt,
		ReadyAt:            o.ReadyAt,
		OutForDeliveryAt:   o.OutForDeliveryAt,
		CompletedAt:        o.CompletedAt,
		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
	}
}

type createOrderItem struct {
	ItemID     uuid.UUID `json:"item_id"`
	Quantity   int       `json:"quantity"`
	PointsUsed int       `json:"points_used"`
}

type createOrderRequest struct {
	RestaurantID  uuid.UUID         `json:"restaurant_id"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	BranchID      uuid.UUID         `json:"branch_id"`
	Type          string            `json:"type"`
	Items         []createOrderItem `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	AddressID     *uuid.UUID        `json:"address_id"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	items := make([]payment.ItemParams, len(req.Items))
	for i, it := range req.Items {
		items[i] = payment.ItemParams{
			ItemID:     it.ItemID,
			Quantity:   it.Quantity,
			PointsUsed: it.PointsUsed,
		}
	}

	o, err := h.coordinator.CreateOrder(r.Context(), payment.CreateOrderParams{
		RestaurantID:  req.RestaurantID,
		CustomerID:    req.CustomerID,
		BranchID:      req.BranchID,
		Type:          order.Type(req.Type),
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		AddressID:     req.AddressID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// transition wraps the single-argument lifecycle moves that differ only in
// the service method they call.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, move func(r *http.Request, id uuid.UUID) (*order.Order, error)) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	o, err := move(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return h.orders.Accept(r.Context(), id)
	})
}

func (h *Handler) markPreparing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return h.orders.MarkPreparing(r.Context(), id)
	})
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return h.orders.MarkReady(r.Context(), id)
	})
}

func (h *Handler) markCompleted(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uuid.UUID) (*order.Order, error) {
		return h.orders.MarkCompleted(r.Context(), id)
	})
}

type riderRequest struct {
	RiderID uuid.UUID `json:"rider_id"`
}

func (h *Handler) markOnTheWay(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req riderRequest
	if err := decodeJSON(r, &req); err != nil || req.RiderID == uuid.Nil {
		badRequest(w, "rider_id is required")
		return
	}

	o, err := h.orders.MarkOnTheWay(r.Context(), id, req.RiderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) assignRider(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req riderRequest
	if err := decodeJSON(r, &req); err != nil || req.RiderID == uuid.Nil {
		badRequest(w, "rider_id is required")
		return
	}

	o, err := h.orders.AssignRider(r.Context(), id, req.RiderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	// The reason is optional; so is the body itself.
	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	o, err := h.orders.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type messageResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	SenderType string    `json:"sender_type"`
	SenderID   uuid.UUID `json:"sender_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func toMessageResponse(m *order.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SenderType: string(m.SenderType),
		SenderID:   m.SenderID,
		Message:    m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

type sendMessageRequest struct {
	SenderType string    `json:"sender_type"`
	SenderID   uuid.UUID `json:"sender_id"`
	Message    string    `json:"message"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	m, err := h.orders.SendMessage(r.Context(), id, order.SenderType(req.SenderType), req.SenderID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(m))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	msgs, err := h.orders.Messages(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]messageResponse, len(msgs))
	for i := range msgs {
		out[i] = toMessageResponse(&msgs[i])
	}
	writeJSON(w, http.StatusOK, out)
}
