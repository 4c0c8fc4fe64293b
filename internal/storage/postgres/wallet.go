package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

const (
	// The conditional UPDATE is the critical section: its row lock
	// serializes concurrent entries per customer, and the WHERE clause
	// enforces the non-negative balance in the same statement. No separate
	// read-then-write ever happens.
	applyBalanceQuery = `
		UPDATE customers
		SET wallet_balance = wallet_balance + $2
		WHERE id = $1 AND wallet_balance + $2 >= 0
		RETURNING wallet_balance, restaurant_id`

	customerExistsQuery = `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`

	insertTransactionQuery = `
		INSERT INTO wallet_transactions
			(id, restaurant_id, customer_id, type, amount, balance_after,
			 description, reference_type, reference_id, staff_id, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	selectBalanceQuery = `SELECT wallet_balance FROM customers WHERE id = $1`

	selectTransactionsQuery = `
		SELECT id, restaurant_id, customer_id, type, amount, balance_after,
		       description, reference_type, reference_id, staff_id, branch_id, created_at
		FROM wallet_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC`

	selectTransactionByIDQuery = `
		SELECT id, restaurant_id, customer_id, type, amount, balance_after,
		       description, reference_type, reference_id, staff_id, branch_id, created_at
		FROM wallet_transactions
		WHERE id = $1`
)

var _ wallet.Repository = (*WalletRepository)(nil)

// WalletRepository implements wallet.Repository backed by PostgreSQL.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository returns a WalletRepository that uses the given pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Apply commits the balance update and the ledger insert as one transaction.
func (r *WalletRepository) Apply(ctx context.Context, e wallet.Entry) (*wallet.Transaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := applyEntry(ctx, tx, e)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// Balance returns the customer's current balance.
func (r *WalletRepository) Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, selectBalanceQuery, customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, wallet.ErrCustomerNotFound
		}
		return decimal.Zero, fmt.Errorf("selecting balance: %w", err)
	}
	return balance, nil
}

// Transactions returns the customer's ledger entries, newest first.
func (r *WalletRepository) Transactions(ctx context.Context, customerID uuid.UUID) ([]wallet.Transaction, error) {
	rows, err := r.pool.Query(ctx, selectTransactionsQuery, customerID)
	if err != nil {
		return nil, fmt.Errorf("selecting transactions: %w", err)
	}
	defer rows.Close()

	var out []wallet.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// TransactionByID loads a single ledger entry.
func (r *WalletRepository) TransactionByID(ctx context.Context, id uuid.UUID) (*wallet.Transaction, error) {
	row := r.pool.QueryRow(ctx, selectTransactionByIDQuery, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// applyEntry runs the atomic balance update plus ledger insert inside the
// caller's transaction. The order repository reuses it so that a refund
// commits together with the cancellation it compensates.
func applyEntry(ctx context.Context, tx pgx.Tx, e wallet.Entry) (*wallet.Transaction, error) {
	t := wallet.Transaction{
		ID:            uuid.New(),
		CustomerID:    e.CustomerID,
		Type:          e.Type,
		Amount:        e.Amount,
		Description:   e.Description,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		StaffID:       e.StaffID,
		BranchID:      e.BranchID,
	}

	err := tx.QueryRow(ctx, applyBalanceQuery, e.CustomerID, e.Amount).
		Scan(&t.BalanceAfter, &t.RestaurantID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("updating balance: %w", err)
		}
		// Zero rows: either the customer is missing or the entry would
		// overdraw the account.
		var exists bool
		if err := tx.QueryRow(ctx, customerExistsQuery, e.CustomerID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking customer: %w", err)
		}
		if !exists {
			return nil, wallet.ErrCustomerNotFound
		}
		return nil, wallet.ErrInsufficientFunds
	}

	err = tx.QueryRow(ctx, insertTransactionQuery,
		t.ID, t.RestaurantID, t.CustomerID, t.Type, t.Amount, t.BalanceAfter,
		t.Description, t.ReferenceType, t.ReferenceID, t.StaffID, t.BranchID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}

	return &t, nil
}

func scanTransaction(row pgx.Row) (*wallet.Transaction, error) {
	var t wallet.Transaction
	err := row.Scan(
		&t.ID, &t.RestaurantID, &t.CustomerID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.Description, &t.ReferenceType, &t.ReferenceID, &t.StaffID, &t.BranchID, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
