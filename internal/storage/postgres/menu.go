package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tavolo/loyalty-core/internal/domain/catalog"
)

const selectMenuItemsQuery = `
	SELECT id, name, unit_price, pricing_type, points_discount_percent
	FROM menu_items
	WHERE id = ANY($1)`

var _ catalog.Repository = (*MenuRepository)(nil)

// MenuRepository implements catalog.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// ItemsByIDs fetches the requested menu items in a single batch. Missing ids
// are simply absent from the result; callers decide whether that is fatal.
func (r *MenuRepository) ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, selectMenuItemsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("selecting menu items: %w", err)
	}
	defer rows.Close()

	var out []catalog.Item
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.PricingType, &it.PointsDiscountPercent); err != nil {
			return nil, fmt.Errorf("scanning menu item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
