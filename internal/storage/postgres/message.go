package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tavolo/loyalty-core/internal/domain/order"
)

const (
	insertMessageQuery = `
		INSERT INTO order_messages (id, order_id, sender_type, sender_id, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	selectMessagesQuery = `
		SELECT id, order_id, sender_type, sender_id, message, created_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY created_at`
)

// CreateMessage appends a message to the order thread.
func (r *OrderRepository) CreateMessage(ctx context.Context, m *order.Message) error {
	err := r.pool.QueryRow(ctx, insertMessageQuery,
		m.ID, m.OrderID, m.SenderType, m.SenderID, m.Body,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order message: %w", err)
	}
	return nil
}

// MessagesByOrder lists the order's messages, oldest first.
func (r *OrderRepository) MessagesByOrder(ctx context.Context, orderID uuid.UUID) ([]order.Message, error) {
	rows, err := r.pool.Query(ctx, selectMessagesQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("selecting order messages: %w", err)
	}
	defer rows.Close()

	var out []order.Message
	for rows.Next() {
		var m order.Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderType, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
