package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tavolo/loyalty-core/internal/domain/order"
)

const selectRiderQuery = `SELECT id, name, phone, is_active FROM riders WHERE id = $1`

var _ order.RiderRepository = (*RiderRepository)(nil)

// RiderRepository implements order.RiderRepository backed by PostgreSQL.
type RiderRepository struct {
	pool *pgxpool.Pool
}

// NewRiderRepository returns a RiderRepository that uses the given pool.
func NewRiderRepository(pool *pgxpool.Pool) *RiderRepository {
	return &RiderRepository{pool: pool}
}

// GetByID loads one rider.
func (r *RiderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Rider, error) {
	var rider order.Rider
	err := r.pool.QueryRow(ctx, selectRiderQuery, id).
		Scan(&rider.ID, &rider.Name, &rider.Phone, &rider.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrRiderNotFound
		}
		return nil, fmt.Errorf("selecting rider: %w", err)
	}
	return &rider, nil
}
