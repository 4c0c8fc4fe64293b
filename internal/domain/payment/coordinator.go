// Package payment sequences order creation and wallet movement. It owns
// neither the ledger nor the order rows; it only coordinates the two.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo/loyalty-core/internal/domain/catalog"
	"github.com/tavolo/loyalty-core/internal/domain/order"
	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

// Payment methods accepted at checkout. Only wallet payments move money
// through the ledger; the rest settle outside this system.
const (
	MethodWallet = "wallet"
	MethodCash   = "cash"
	MethodCard   = "card"
)

// DefaultDebitTimeout bounds the wallet debit during checkout. A debit that
// exceeds it fails as a retryable PaymentError instead of blocking the
// caller indefinitely.
const DefaultDebitTimeout = 10 * time.Second

// PaymentError wraps a failed debit or credit. Retryable is set for
// timeouts and other transient downstream failures.
type PaymentError struct {
	Retryable bool
	Err       error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %v", e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// ItemParams is one requested line at checkout.
type ItemParams struct {
	ItemID     uuid.UUID
	Quantity   int
	PointsUsed int
}

// CreateOrderParams is the checkout input.
type CreateOrderParams struct {
	RestaurantID  uuid.UUID
	CustomerID    uuid.UUID
	BranchID      uuid.UUID
	Type          order.Type
	Items         []ItemParams
	PaymentMethod string
	AddressID     *uuid.UUID
}

// Ledger is the slice of the wallet ledger the coordinator needs. The
// advisory CanAfford pre-check deliberately has no place here: the order row
// must exist before the debit is attempted, so a failed payment always
// leaves a cancelled order behind as evidence.
type Ledger interface {
	Apply(ctx context.Context, e wallet.Entry) (*wallet.Transaction, error)
}

// Coordinator runs checkout as a two-step saga: the order row is inserted
// first and exists regardless of payment outcome; a failed wallet debit is
// compensated by cancelling the order with the failure reason, never by
// deleting it. The cancelled row is the audit trail of the attempt.
type Coordinator struct {
	catalog      catalog.Repository
	orders       order.Repository
	lifecycle    *order.Service
	ledger       Ledger
	debitTimeout time.Duration
}

// NewCoordinator creates a payment Coordinator. debitTimeout <= 0 falls back
// to DefaultDebitTimeout.
func NewCoordinator(
	cat catalog.Repository,
	orders order.Repository,
	lifecycle *order.Service,
	ledger Ledger,
	debitTimeout time.Duration,
) *Coordinator {
	if debitTimeout <= 0 {
		debitTimeout = DefaultDebitTimeout
	}
	return &Coordinator{
		catalog:      cat,
		orders:       orders,
		lifecycle:    lifecycle,
		ledger:       ledger,
		debitTimeout: debitTimeout,
	}
}

// CreateOrder snapshots catalog pricing into a new pending order and, for
// wallet payments, debits the customer's balance. On debit failure the order
// is cancelled with the reason and the original error is returned.
func (c *Coordinator) CreateOrder(ctx context.Context, p CreateOrderParams) (*order.Order, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	items, subtotal, pointsUsed, err := c.snapshotItems(ctx, p.Items)
	if err != nil {
		return nil, err
	}
	total := subtotal.Round(2)

	number, err := c.orders.NextNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "allocate order number")
	}

	o := &order.Order{
		ID:              uuid.New(),
		Number:          number,
		RestaurantID:    p.RestaurantID,
		CustomerID:      p.CustomerID,
		BranchID:        p.BranchID,
		Type:            p.Type,
		Status:          order.StatusPending,
		Items:           items,
		Subtotal:        subtotal,
		TotalAmount:     total,
		TotalPointsUsed: pointsUsed,
		PaymentMethod:   p.PaymentMethod,
		PaymentStatus:   order.PaymentPending,
		AddressID:       p.AddressID,
		CreatedAt:       time.Now(),
	}
	if err := c.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if p.PaymentMethod != MethodWallet || !total.IsPositive() {
		return o, nil
	}

	if err := c.debit(ctx, o); err != nil {
		reason := "Payment failed: " + err.Error()
		if _, cancelErr := c.lifecycle.Cancel(ctx, o.ID, reason); cancelErr != nil {
			// The compensation itself failed; surface both.
			return nil, errors.Wrapf(err, "payment failed and cancellation failed: %v", cancelErr)
		}
		return nil, err
	}

	if err := c.orders.MarkPaid(ctx, o.ID); err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}
	o.PaymentStatus = order.PaymentPaid
	return o, nil
}

// debit charges the order total against the customer wallet under a
// deadline. Timeouts come back as retryable payment failures.
func (c *Coordinator) debit(ctx context.Context, o *order.Order) error {
	dctx, cancel := context.WithTimeout(ctx, c.debitTimeout)
	defer cancel()

	_, err := c.ledger.Apply(dctx, wallet.Entry{
		CustomerID:    o.CustomerID,
		Type:          wallet.EntryPayment,
		Amount:        o.TotalAmount.Neg(),
		Description:   "Payment for order " + o.Number,
		ReferenceType: wallet.RefOrder,
		ReferenceID:   o.ID.String(),
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &PaymentError{Retryable: true, Err: err}
	}
	if errors.Is(err, wallet.ErrInsufficientFunds) {
		return err
	}
	return &PaymentError{Err: err}
}

// snapshotItems copies catalog data into immutable order lines and totals
// them. Missing catalog items fail the whole checkout.
func (c *Coordinator) snapshotItems(ctx context.Context, reqs []ItemParams) ([]order.Item, decimal.Decimal, int, error) {
	ids := make([]uuid.UUID, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ItemID
	}

	fetched, err := c.catalog.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, 0, errors.Wrap(err, "fetch menu items")
	}
	byID := make(map[uuid.UUID]catalog.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	items := make([]order.Item, len(reqs))
	subtotal := decimal.Zero
	pointsUsed := 0
	for i, r := range reqs {
		it, ok := byID[r.ItemID]
		if !ok {
			return nil, decimal.Zero, 0, errors.Wrapf(catalog.ErrItemNotFound, "item %s", r.ItemID)
		}
		items[i] = order.Item{
			ItemID:     it.ID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			PointsUsed: r.PointsUsed,
			Quantity:   r.Quantity,
		}
		qty := decimal.NewFromInt(int64(r.Quantity))
		subtotal = subtotal.Add(it.UnitPrice.Mul(qty))
		pointsUsed += r.PointsUsed
	}
	return items, subtotal, pointsUsed, nil
}

func validateParams(p CreateOrderParams) error {
	if p.CustomerID == uuid.Nil {
		return &order.ValidationError{Field: "customer_id", Reason: "required"}
	}
	if len(p.Items) == 0 {
		return &order.ValidationError{Field: "items", Reason: "required"}
	}
	for _, it := range p.Items {
		if it.Quantity <= 0 {
			return &order.ValidationError{Field: "quantity", Reason: "must be greater than 0"}
		}
		if it.PointsUsed < 0 {
			return &order.ValidationError{Field: "points_used", Reason: "must not be negative"}
		}
	}
	switch p.Type {
	case order.TypePickup:
	case order.TypeDelivery:
		if p.AddressID == nil {
			return &order.ValidationError{Field: "address_id", Reason: "required for delivery"}
		}
	default:
		return &order.ValidationError{Field: "type", Reason: "unknown order type"}
	}
	switch p.PaymentMethod {
	case MethodWallet, MethodCash, MethodCard:
	default:
		return &order.ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}
	return nil
}
