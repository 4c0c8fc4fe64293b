package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

type transactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	RestaurantID  uuid.UUID       `json:"restaurant_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	StaffID       *uuid.UUID      `json:"staff_id,omitempty"`
	BranchID      *uuid.UUID      `json:"branch_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toTransactionResponse(tx *wallet.Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		RestaurantID:  tx.RestaurantID,
		CustomerID:    tx.CustomerID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		BalanceAfter:  tx.BalanceAfter,
		Description:   tx.Description,
		ReferenceType: string(tx.ReferenceType),
		ReferenceID:   tx.ReferenceID,
		StaffID:       tx.StaffID,
		BranchID:      tx.BranchID,
		CreatedAt:     tx.CreatedAt,
	}
}

type balanceResponse struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{CustomerID: customerID, Balance: balance})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	txs, err := h.ledger.History(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionResponse, len(txs))
	for i := range txs {
		out[i] = toTransactionResponse(&txs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

type applyTransactionRequest struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	StaffID       *uuid.UUID      `json:"staff_id"`
	BranchID      *uuid.UUID      `json:"branch_id"`
}

func (h *Handler) applyTransaction(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	var req applyTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	refType := wallet.ReferenceType(req.ReferenceType)
	if refType == "" {
		refType = wallet.RefManual
	}
	tx, err := h.ledger.Apply(r.Context(), wallet.Entry{
		CustomerID:    customerID,
		Type:          wallet.EntryType(req.Type),
		Amount:        req.Amount,
		Description:   req.Description,
		ReferenceType: refType,
		ReferenceID:   req.ReferenceID,
		StaffID:       req.StaffID,
		BranchID:      req.BranchID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

type undoTopUpRequest struct {
	StaffID *uuid.UUID `json:"staff_id"`
}

func (h *Handler) undoTopUp(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := uuidParam(w, r, "transactionID")
	if !ok {
		return
	}

	// The body is optional; an absent staff id is a self-service undo.
	var req undoTopUpRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	tx, err := h.ledger.UndoTopUp(r.Context(), transactionID, req.StaffID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}
