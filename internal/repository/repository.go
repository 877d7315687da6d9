// Package repository holds the ledger store capabilities the services depend
// on, with a gorm implementation for production and an in-memory one for
// tests and local tooling.
package repository

import (
	"context"
	"errors"
	"time"

	"treasurer/internal/models"
	"treasurer/internal/pagination"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrPeriodConflict is returned when a FUND entry already exists for the
	// same user and period_month.
	ErrPeriodConflict = errors.New("repository: fund period already paid")
	// ErrStatusConflict is returned when a conditional status update finds
	// the row in a different state than expected.
	ErrStatusConflict = errors.New("repository: transaction status changed concurrently")
	// ErrDebtSettled is returned when marking a debt paid that is already paid.
	ErrDebtSettled = errors.New("repository: debt already settled")
	// ErrDuplicateCorrelation is returned when a transaction that has not
	// FAILED already uses the order code.
	ErrDuplicateCorrelation = errors.New("repository: duplicate order code")
	// ErrDuplicate is returned for any other unique constraint violation.
	ErrDuplicate = errors.New("repository: duplicate record")
)

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Ledger() LedgerStore
	Debts() DebtRepository
	Users() UserRepository
	Outbox() OutboxRepository
	Audit() AuditRepository

	// InTx runs fn against a transactional view of the store. All writes made
	// through the Store passed to fn commit together or not at all.
	InTx(ctx context.Context, fn func(Store) error) error
}

// StatusUpdate carries the optional columns written alongside a status change.
type StatusUpdate struct {
	UserID              *string
	ErrMessage          *string
	FailureClass        *models.FailureClass
	UnallocatedAmount   *int64
	ProcessingStartedAt *time.Time
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	UserID string
	Type   models.TransactionType
	Status models.TransactionStatus
	From   *time.Time
	To     *time.Time
	Search string
	Page   pagination.PageRequest
}

// EntryFilter narrows entry scans. Empty fields match everything.
type EntryFilter struct {
	UserID        string
	TransactionID string
	Type          models.EntryType
	Year          *int
}

// LedgerStore persists transactions and their allocation entries.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// GetTransactionByOrderCode returns the live (not FAILED) transaction for
	// the order code, or the most recent FAILED one when every attempt failed.
	GetTransactionByOrderCode(ctx context.Context, orderCode string) (*models.Transaction, error)
	// TransitionStatus moves a transaction from one status to another only if
	// it is still in from; otherwise it returns ErrStatusConflict.
	TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update StatusUpdate) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error)
	ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, txType models.TransactionType, status models.TransactionStatus) (int64, error)

	// CreateEntries inserts allocation lines; a FUND line for an already
	// paid (user, period_month) yields ErrPeriodConflict.
	CreateEntries(ctx context.Context, entries []models.TransactionEntry) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.TransactionEntry, error)
	// LatestFundPeriod returns the most recent FUND period_month for the
	// user, or "" when the user has never paid dues.
	LatestFundPeriod(ctx context.Context, userID string) (string, error)
	SumEntries(ctx context.Context, entryType models.EntryType) (int64, error)
}

// DebtFilter narrows debt listings.
type DebtFilter struct {
	UserID     string
	IsFullPaid *bool
}

// DebtRepository persists ad-hoc debts.
type DebtRepository interface {
	CreateDebt(ctx context.Context, debt *models.Debt) error
	GetDebt(ctx context.Context, id string) (*models.Debt, error)
	// OldestUnpaid returns the user's oldest unpaid debt, or nil when none.
	OldestUnpaid(ctx context.Context, userID string) (*models.Debt, error)
	// MarkFullPaid flips is_full_paid exactly once; a second call returns
	// ErrDebtSettled.
	MarkFullPaid(ctx context.Context, id string) error
	ListDebts(ctx context.Context, filter DebtFilter) ([]models.Debt, error)
}

// UserRepository persists members.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error)
}

// OutboxRepository persists messages awaiting publication.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *models.OutboxMessage) error
	ListPending(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	// MarkAttemptFailed records a failed publish; the message becomes FAILED
	// once its retry count reaches maxRetries.
	MarkAttemptFailed(ctx context.Context, id, lastError string, maxRetries int) error
}

// AuditRepository persists audit records.
type AuditRepository interface {
	Record(ctx context.Context, entry *models.AuditLog) error
	ListByResource(ctx context.Context, resourceID string) ([]models.AuditLog, error)
}
