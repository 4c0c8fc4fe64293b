// Package catalog exposes the menu catalog as a read-only collaborator.
// Orders consume it exactly once, at creation time, to snapshot line items.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when a requested menu item does not exist.
var ErrItemNotFound = errors.New("menu item not found")

// Item is one menu entry as priced at lookup time.
type Item struct {
	ID                    uuid.UUID
	Name                  string
	UnitPrice             decimal.Decimal
	PricingType           string
	PointsDiscountPercent int
}

// Repository defines read operations on the menu catalog.
type Repository interface {
	ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]Item, error)
}
