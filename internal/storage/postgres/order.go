package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tavolo/loyalty-core/internal/domain/order"
)

const (
	insertOrderQuery = `
		INSERT INTO orders
			(id, order_number, restaurant_id, customer_id, branch_id, type, status,
			 items, subtotal, total_amount, total_points_used,
			 payment_method, payment_status, address_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`

	orderColumns = `
		id, order_number, restaurant_id, customer_id, branch_id, type, status,
		items, subtotal, total_amount, total_points_used,
		payment_method, payment_status, address_id,
		rider_id, rider_assigned_at, accepted_at, preparing_at, ready_at,
		out_for_delivery_at, completed_at, cancelled_at, cancellation_reason, created_at`

	nextOrderNumberQuery = `SELECT nextval('order_numbers')`

	assignRiderQuery = `
		UPDATE orders
		SET rider_id = $2, rider_assigned_at = $3
		WHERE id = $1 AND rider_id IS NULL`

	markPaidQuery = `UPDATE orders SET payment_status = 'paid' WHERE id = $1`

	// Dispatch stamps rider linkage and status in one statement. COALESCE
	// keeps a pre-assigned rider and its original assignment time. The
	// status guard makes the move a compare-and-set against the state the
	// service derived it from.
	dispatchQuery = `
		UPDATE orders
		SET status = $2, out_for_delivery_at = $3,
		    rider_id = COALESCE(rider_id, $4),
		    rider_assigned_at = COALESCE(rider_assigned_at, $3)
		WHERE id = $1 AND status = $5`

	cancelOrderQuery = `
		UPDATE orders
		SET status = 'cancelled', cancelled_at = $2, cancellation_reason = $3,
		    payment_status = CASE WHEN $4 THEN 'refunded' ELSE payment_status END
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`

	selectOrderStatusQuery = `SELECT status FROM orders WHERE id = $1`
)

// statusTimestampColumn maps each forward status to the column stamped when
// the order enters it.
var statusTimestampColumn = map[order.Status]string{
	order.StatusAccepted:  "accepted_at",
	order.StatusPreparing: "preparing_at",
	order.StatusReady:     "ready_at",
	order.StatusCompleted: "completed_at",
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The item snapshot is serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	err = r.pool.QueryRow(ctx, insertOrderQuery,
		o.ID, o.Number, o.RestaurantID, o.CustomerID, o.BranchID, o.Type, o.Status,
		itemsJSON, o.Subtotal, o.TotalAmount, o.TotalPointsUsed,
		o.PaymentMethod, o.PaymentStatus, o.AddressID,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// GetByID loads one order including its item snapshot.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)

	var (
		o         order.Order
		itemsJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.RestaurantID, &o.CustomerID, &o.BranchID, &o.Type, &o.Status,
		&itemsJSON, &o.Subtotal, &o.TotalAmount, &o.TotalPointsUsed,
		&o.PaymentMethod, &o.PaymentStatus, &o.AddressID,
		&o.RiderID, &o.RiderAssignedAt, &o.AcceptedAt, &o.PreparingAt, &o.ReadyAt,
		&o.OutForDeliveryAt, &o.CompletedAt, &o.CancelledAt, &o.CancellationReason, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("selecting order: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return &o, nil
}

// NextNumber issues the next order number from the central sequence.
// Numbers are collision-free and ordered by issue time.
func (r *OrderRepository) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, nextOrderNumberQuery).Scan(&n); err != nil {
		return "", fmt.Errorf("allocating order number: %w", err)
	}
	return fmt.Sprintf("ORD-%06d", n), nil
}

// UpdateStatus writes one validated lifecycle move and its timestamp as a
// compare-and-set on the status the move was derived from. The dispatch move
// additionally stamps rider linkage in the same statement.
func (r *OrderRepository) UpdateStatus(ctx context.Context, u order.StatusUpdate) error {
	var cmd pgconn.CommandTag
	var err error

	if u.Status == order.StatusOutForDelivery {
		cmd, err = r.pool.Exec(ctx, dispatchQuery, u.OrderID, u.Status, u.At, u.RiderID, u.From)
	} else {
		col, ok := statusTimestampColumn[u.Status]
		if !ok {
			return fmt.Errorf("no timestamp column for status %q", u.Status)
		}
		query := fmt.Sprintf(`UPDATE orders SET status = $2, %s = $3 WHERE id = $1 AND status = $4`, col)
		cmd, err = r.pool.Exec(ctx, query, u.OrderID, u.Status, u.At, u.From)
	}
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return r.statusConflict(ctx, u.OrderID, u.Status)
	}
	return nil
}

// AssignRider pre-attaches a rider without advancing the status.
func (r *OrderRepository) AssignRider(ctx context.Context, orderID, riderID uuid.UUID, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, assignRiderQuery, orderID, riderID, at)
	if err != nil {
		return fmt.Errorf("assigning rider: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		// The service checked for an existing rider; losing the race to a
		// concurrent assignment surfaces the same way.
		return order.ErrRiderAlreadyAssigned
	}
	return nil
}

// MarkPaid flips the payment flag after a successful wallet debit.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, markPaidQuery, orderID)
	if err != nil {
		return fmt.Errorf("marking order paid: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Cancel commits the cancellation and, when present, the compensating
// refund in a single transaction: the order cannot end up cancelled with
// the refund lost, or refunded without being cancelled.
func (r *OrderRepository) Cancel(ctx context.Context, p order.CancelParams) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, cancelOrderQuery, p.OrderID, p.At, p.Reason, p.Refund != nil)
	if err != nil {
		return fmt.Errorf("cancelling order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return r.statusConflict(ctx, p.OrderID, order.StatusCancelled)
	}

	if p.Refund != nil {
		if _, err := applyEntry(ctx, tx, *p.Refund); err != nil {
			return errors.Wrap(err, "applying refund")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// statusConflict resolves why a guarded status UPDATE matched nothing: the
// order is gone, or a concurrent writer changed its status first.
func (r *OrderRepository) statusConflict(ctx context.Context, orderID uuid.UUID, attempted order.Status) error {
	var status order.Status
	err := r.pool.QueryRow(ctx, selectOrderStatusQuery, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("selecting order status: %w", err)
	}
	return &order.InvalidTransitionError{From: status, Attempted: attempted}
}
