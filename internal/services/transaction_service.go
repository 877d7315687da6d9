package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/pagination"
	"treasurer/internal/repository"
)

// transactionService handles ledger reads and expense recording.
type transactionService struct {
	store repository.Store
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(store repository.Store) TransactionServicer {
	return &transactionService{store: store}
}

// ListTransactions returns a page of transactions, newest first
func (s *transactionService) ListTransactions(ctx context.Context, filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date must not be before from_date")
	}

	txs, total, err := s.store.Ledger().ListTransactions(ctx, filter.asRepoFilter(page))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(txs, page.Page, page.PageSize, total)
	return &resp, nil
}

// GetTransaction retrieves a transaction with its allocation entries
func (s *transactionService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.store.Ledger().GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entries, err := s.store.Ledger().ListEntries(ctx, repository.EntryFilter{TransactionID: tx.ID})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	tx.Entries = entries
	return tx, nil
}

// CreateExpense records money leaving the fund. Expenses carry no entries
// and complete immediately.
func (s *transactionService) CreateExpense(ctx context.Context, amount int64, description string, date time.Time) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	}
	if date.IsZero() {
		date = time.Now()
	}

	tx := &models.Transaction{
		Type:            models.TransactionTypeExpense,
		Amount:          amount,
		TransactionDate: date,
		Status:          models.TransactionStatusCompleted,
		Source:          models.TransactionSourceManual,
		Description:     description,
	}
	if err := s.store.Ledger().CreateTransaction(ctx, tx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tx, nil
}
