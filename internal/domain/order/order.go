package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

// Type distinguishes pickup and delivery orders; the two run different
// status sequences.
type Type string

const (
	TypePickup   Type = "pickup"
	TypeDelivery Type = "delivery"
)

// PaymentStatus tracks whether the order's money has moved.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// MessageWindow is the minimum order age before messaging opens.
const MessageWindow = 10 * time.Minute

// Sentinel errors raised by order operations.
var (
	ErrNotFound             = errors.New("order not found")
	ErrRiderNotFound        = errors.New("rider not found")
	ErrRiderInactive        = errors.New("rider is not active")
	ErrRiderAlreadyAssigned = errors.New("order already has a rider")
	ErrMessagingClosed      = errors.New("messaging is not open for this order")
)

// ValidationError indicates malformed order input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError rejects a lifecycle move the transition table does
// not allow.
type InvalidTransitionError struct {
	From      Status
	Attempted Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.Attempted)
}

// Item is a line item snapshotted from the menu catalog at creation time.
// Later catalog edits never change it.
type Item struct {
	ItemID     uuid.UUID       `json:"item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	PointsUsed int             `json:"points_used"`
	Quantity   int             `json:"quantity"`
}

// Order is a customer order moving through a bounded lifecycle.
// Rows are never hard-deleted; cancellation is a terminal status.
type Order struct {
	ID                 uuid.UUID
	Number             string
	RestaurantID       uuid.UUID
	CustomerID         uuid.UUID
	BranchID           uuid.UUID
	Type               Type
	Status             Status
	Items              []Item
	Subtotal           decimal.Decimal
	TotalAmount        decimal.Decimal
	TotalPointsUsed    int
	PaymentMethod      string
	PaymentStatus      PaymentStatus
	AddressID          *uuid.UUID
	RiderID            *uuid.UUID
	RiderAssignedAt    *time.Time
	AcceptedAt         *time.Time
	PreparingAt        *time.Time
	ReadyAt            *time.Time
	OutForDeliveryAt   *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
}

// Rider is a delivery rider reference entity.
type Rider struct {
	ID       uuid.UUID
	Name     string
	Phone    string
	IsActive bool
}

// SenderType identifies who wrote an order message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderStaff    SenderType = "staff"
)

// Message is a chat message attached to an order.
type Message struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	SenderType SenderType
	SenderID   uuid.UUID
	Body       string
	CreatedAt  time.Time
}

// StatusUpdate carries one validated lifecycle write. From is the status the
// move was derived from; the repository writes only while the row still holds
// it, so a concurrent status change fails the move instead of being
// overwritten. RiderID is set only for the dispatch move, which stamps the
// rider and the status together.
type StatusUpdate struct {
	OrderID uuid.UUID
	From    Status
	Status  Status
	At      time.Time
	RiderID *uuid.UUID
}

// CancelParams describes an atomic cancellation. When Refund is non-nil the
// repository must commit the status write, the payment flag flip, and the
// refund ledger entry as a single transaction; a partial outcome is not a
// completed cancellation.
type CancelParams struct {
	OrderID uuid.UUID
	Reason  string
	At      time.Time
	Refund  *wallet.Entry
}

// Repository defines persistence for orders and their messages.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	NextNumber(ctx context.Context) (string, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) error
	AssignRider(ctx context.Context, orderID, riderID uuid.UUID, at time.Time) error
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	Cancel(ctx context.Context, p CancelParams) error
	CreateMessage(ctx context.Context, m *Message) error
	MessagesByOrder(ctx context.Context, orderID uuid.UUID) ([]Message, error)
}

// RiderRepository provides rider directory reads.
type RiderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Rider, error)
}
