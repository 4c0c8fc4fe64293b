package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

// Service drives orders through their lifecycle. Every mutating operation
// re-derives the allowed move from the transition table, so invalid
// transitions are rejected here rather than left to the presentation layer.
type Service struct {
	orders Repository
	riders RiderRepository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository, riders RiderRepository) *Service {
	return &Service{
		orders: orders,
		riders: riders,
		now:    time.Now,
	}
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Accept moves a pending order to accepted.
func (s *Service) Accept(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.advance(ctx, id, StatusAccepted, nil)
}

// MarkPreparing moves an accepted order to preparing.
func (s *Service) MarkPreparing(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.advance(ctx, id, StatusPreparing, nil)
}

// MarkReady moves a preparing order to ready.
func (s *Service) MarkReady(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.advance(ctx, id, StatusReady, nil)
}

// MarkCompleted moves an order into its terminal completed state.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.advance(ctx, id, StatusCompleted, nil)
}

// MarkOnTheWay dispatches a delivery order: it validates the rider, stamps
// rider linkage when not already assigned, and advances to out_for_delivery.
// Rider and status land in one repository write, so there is no window where
// a rider is linked but the status is stale.
func (s *Service) MarkOnTheWay(ctx context.Context, id, riderID uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Type != TypeDelivery {
		return nil, &InvalidTransitionError{From: o.Status, Attempted: StatusOutForDelivery}
	}
	if o.RiderID != nil && *o.RiderID != riderID {
		return nil, ErrRiderAlreadyAssigned
	}
	if err := s.checkRider(ctx, riderID); err != nil {
		return nil, err
	}

	return s.applyAdvance(ctx, o, StatusOutForDelivery, &riderID)
}

// AssignRider pre-attaches a rider to a delivery order waiting at ready.
// It does not advance the status; dispatching is MarkOnTheWay.
func (s *Service) AssignRider(ctx context.Context, id, riderID uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Type != TypeDelivery || o.Status != StatusReady {
		return nil, &InvalidTransitionError{From: o.Status, Attempted: StatusOutForDelivery}
	}
	if o.RiderID != nil {
		return nil, ErrRiderAlreadyAssigned
	}
	if err := s.checkRider(ctx, riderID); err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.orders.AssignRider(ctx, o.ID, riderID, at); err != nil {
		return nil, errors.Wrap(err, "assign rider")
	}
	o.RiderID = &riderID
	o.RiderAssignedAt = &at
	return o, nil
}

// Cancel moves a non-terminal order to cancelled. A paid order with a
// positive total gets a compensating refund committed in the same
// transaction as the status write: either the order ends up
// cancelled-and-refunded or it is left untouched.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanCancel(o.Status) {
		return nil, &InvalidTransitionError{From: o.Status, Attempted: StatusCancelled}
	}

	p := CancelParams{
		OrderID: o.ID,
		Reason:  reason,
		At:      s.now(),
	}
	if o.PaymentStatus == PaymentPaid && o.TotalAmount.IsPositive() {
		p.Refund = &wallet.Entry{
			CustomerID:    o.CustomerID,
			Type:          wallet.EntryRefund,
			Amount:        o.TotalAmount,
			Description:   "Refund for cancelled order " + o.Number,
			ReferenceType: wallet.RefOrder,
			ReferenceID:   o.ID.String(),
		}
	}

	if err := s.orders.Cancel(ctx, p); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}

	o.Status = StatusCancelled
	o.CancelledAt = &p.At
	o.CancellationReason = reason
	if p.Refund != nil {
		o.PaymentStatus = PaymentRefunded
	}
	return o, nil
}

// CanMessage reports whether messaging is open for the order at the given
// moment: early lifecycle states only, and never before the order is ten
// minutes old.
func CanMessage(o *Order, now time.Time) bool {
	switch o.Status {
	case StatusPending, StatusAccepted, StatusPreparing:
	default:
		return false
	}
	return now.Sub(o.CreatedAt) >= MessageWindow
}

// SendMessage appends a message to the order thread after the eligibility
// check.
func (s *Service) SendMessage(ctx context.Context, orderID uuid.UUID, sender SenderType, senderID uuid.UUID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Field: "message", Reason: "required"}
	}
	if sender != SenderCustomer && sender != SenderStaff {
		return nil, &ValidationError{Field: "sender_type", Reason: "unknown sender type"}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanMessage(o, s.now()) {
		return nil, ErrMessagingClosed
	}

	m := &Message{
		ID:         uuid.New(),
		OrderID:    o.ID,
		SenderType: sender,
		SenderID:   senderID,
		Body:       body,
		CreatedAt:  s.now(),
	}
	if err := s.orders.CreateMessage(ctx, m); err != nil {
		return nil, errors.Wrap(err, "create message")
	}
	return m, nil
}

// Messages lists the order's message thread, oldest first.
func (s *Service) Messages(ctx context.Context, orderID uuid.UUID) ([]Message, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.MessagesByOrder(ctx, orderID)
}

// advance performs a validated single-step forward move.
func (s *Service) advance(ctx context.Context, id uuid.UUID, target Status, riderID *uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyAdvance(ctx, o, target, riderID)
}

func (s *Service) applyAdvance(ctx context.Context, o *Order, target Status, riderID *uuid.UUID) (*Order, error) {
	next, ok := NextStatus(o.Status, o.Type)
	if !ok || next != target {
		return nil, &InvalidTransitionError{From: o.Status, Attempted: target}
	}

	at := s.now()
	u := StatusUpdate{OrderID: o.ID, From: o.Status, Status: target, At: at, RiderID: riderID}
	if err := s.orders.UpdateStatus(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update status")
	}

	o.Status = target
	switch target {
	case StatusAccepted:
		o.AcceptedAt = &at
	case StatusPreparing:
		o.PreparingAt = &at
	case StatusReady:
		o.ReadyAt = &at
	case StatusOutForDelivery:
		o.OutForDeliveryAt = &at
		if riderID != nil && o.RiderID == nil {
			o.RiderID = riderID
			o.RiderAssignedAt = &at
		}
	case StatusCompleted:
		o.CompletedAt = &at
	}
	return o, nil
}

func (s *Service) checkRider(ctx context.Context, riderID uuid.UUID) error {
	rider, err := s.riders.GetByID(ctx, riderID)
	if err != nil {
		return err
	}
	if !rider.IsActive {
		return ErrRiderInactive
	}
	return nil
}
