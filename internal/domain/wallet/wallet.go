package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType enumerates the kinds of ledger entries.
type EntryType string

const (
	// EntryTopUp credits the balance with funds added by staff or self-service.
	EntryTopUp EntryType = "top_up"
	// EntryPayment debits the balance to pay for an order or QR payment.
	EntryPayment EntryType = "payment"
	// EntryRefund credits the balance to reverse an earlier payment.
	EntryRefund EntryType = "refund"
	// EntryAdjustment is a signed manual correction, including top-up reversals.
	EntryAdjustment EntryType = "adjustment"
)

// ReferenceType identifies what a ledger entry points at.
type ReferenceType string

const (
	RefOrder     ReferenceType = "order"
	RefQRPayment ReferenceType = "qr_payment"
	RefManual    ReferenceType = "manual"
)

// Sentinel errors raised by ledger operations.
var (
	// ErrInsufficientFunds is returned when an entry would drive the
	// balance below zero. No write happens in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrCustomerNotFound is returned when the customer row does not exist.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrTransactionNotFound is returned when a ledger entry lookup misses.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUndoWindowExpired is returned when a top-up reversal is requested
	// after the undo window has passed.
	ErrUndoWindowExpired = errors.New("undo window expired")
)

// ValidationError indicates a malformed entry rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Transaction is an immutable ledger row. Rows are append-only: they are
// never updated or deleted, and BalanceAfter is the authoritative running
// balance at the moment the row was inserted.
type Transaction struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	CustomerID    uuid.UUID
	Type          EntryType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	ReferenceType ReferenceType
	ReferenceID   string
	StaffID       *uuid.UUID
	BranchID      *uuid.UUID
	CreatedAt     time.Time
}

// Entry is the input for appending one ledger row. Amount is signed:
// positive for top_up/refund, negative for payment, either for adjustment.
type Entry struct {
	CustomerID    uuid.UUID
	Type          EntryType
	Amount        decimal.Decimal
	Description   string
	ReferenceType ReferenceType
	ReferenceID   string
	StaffID       *uuid.UUID
	BranchID      *uuid.UUID
}

// Repository defines persistence for customer balances and their ledger.
//
// Apply must execute the balance update and the ledger insert as one atomic
// unit serialized per customer: concurrent entries for the same customer are
// applied strictly one after another, and an entry that would make the
// balance negative fails with ErrInsufficientFunds without writing anything.
type Repository interface {
	Apply(ctx context.Context, e Entry) (*Transaction, error)
	Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	Transactions(ctx context.Context, customerID uuid.UUID) ([]Transaction, error)
	TransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
}
