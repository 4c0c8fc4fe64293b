package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UndoWindow is how long after a top-up it can still be reversed.
const UndoWindow = 5 * time.Minute

// Ledger owns customer balances and their append-only transaction log.
// All balance-affecting operations go through Apply.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Apply validates the entry and appends it to the customer's ledger.
// The repository enforces atomicity and the non-negative balance invariant;
// Apply never assumes an earlier CanAfford check still holds.
func (l *Ledger) Apply(ctx context.Context, e Entry) (*Transaction, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}

	tx, err := l.repo.Apply(ctx, e)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// UndoTopUp reverses a recent top-up by applying a compensating adjustment
// of the negated original amount. It fails with ErrUndoWindowExpired once
// the top-up is older than UndoWindow.
func (l *Ledger) UndoTopUp(ctx context.Context, transactionID uuid.UUID, staffID *uuid.UUID) (*Transaction, error) {
	orig, err := l.repo.TransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if orig.Type != EntryTopUp {
		return nil, &ValidationError{Field: "transaction", Reason: "only top-ups can be undone"}
	}
	if l.now().Sub(orig.CreatedAt) > UndoWindow {
		return nil, ErrUndoWindowExpired
	}

	tx, err := l.Apply(ctx, Entry{
		CustomerID:    orig.CustomerID,
		Type:          EntryAdjustment,
		Amount:        orig.Amount.Neg(),
		Description:   "Top-up reversal",
		ReferenceType: RefManual,
		ReferenceID:   orig.ID.String(),
		StaffID:       staffID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "apply reversal")
	}
	return tx, nil
}

// Balance returns the customer's current balance. Read-only.
func (l *Ledger) Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	return l.repo.Balance(ctx, customerID)
}

// History returns the customer's ledger entries, newest first. Read-only.
func (l *Ledger) History(ctx context.Context, customerID uuid.UUID) ([]Transaction, error) {
	return l.repo.Transactions(ctx, customerID)
}

// CanAfford reports whether the balance currently covers amount. It is a
// lock-free advisory read used to fail fast with a friendlier error; the
// balance can change before a later Apply, which re-checks on its own.
func (l *Ledger) CanAfford(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (bool, error) {
	balance, err := l.repo.Balance(ctx, customerID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}

func validateEntry(e Entry) error {
	if e.CustomerID == uuid.Nil {
		return &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if e.Amount.IsZero() {
		return &ValidationError{Field: "amount", Reason: "must be non-zero"}
	}

	switch e.Type {
	case EntryTopUp, EntryRefund:
		if e.Amount.IsNegative() {
			return &ValidationError{Field: "amount", Reason: "must be positive for " + string(e.Type)}
		}
	case EntryPayment:
		if e.Amount.IsPositive() {
			return &ValidationError{Field: "amount", Reason: "must be negative for payment"}
		}
	case EntryAdjustment:
		// Either sign.
	default:
		return &ValidationError{Field: "type", Reason: "unknown entry type"}
	}

	switch e.ReferenceType {
	case RefOrder, RefQRPayment, RefManual:
	default:
		return &ValidationError{Field: "reference_type", Reason: "unknown reference type"}
	}

	return nil
}
