package models

import "time"

// TransactionType represents the direction of a money movement
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

// TransactionStatus is the lifecycle state of a transaction. Transitions only
// move forward: PENDING -> PROCESSING -> COMPLETED or FAILED.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// FailureClass tells whether a FAILED transaction may be attempted again
// under the same correlation id.
type FailureClass string

const (
	// FailureRetryable marks failures caused by the store or by contention.
	// A redelivery of the event opens a new attempt.
	FailureRetryable FailureClass = "RETRYABLE"
	// FailureTerminal marks failures a redelivery cannot fix, such as an
	// amount mismatch or an unknown payer.
	FailureTerminal FailureClass = "TERMINAL"
)

// TransactionSource records which pipeline produced a transaction.
type TransactionSource string

const (
	TransactionSourceGateway    TransactionSource = "GATEWAY"
	TransactionSourceManual     TransactionSource = "MANUAL"
	TransactionSourceExtraction TransactionSource = "EXTRACTION"
)

// Transaction is a single money-movement event. OrderCode holds the external
// correlation id. It is unique among rows that have not FAILED, so a
// retryable failure can be followed by a fresh attempt with the same id.
type Transaction struct {
	Base
	Type                TransactionType   `gorm:"size:16;not null;index" json:"type"`
	Amount              int64             `gorm:"type:bigint;not null" json:"amount"`
	UserID              *string           `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TransactionDate     time.Time         `gorm:"not null;index" json:"transaction_date"`
	Status              TransactionStatus `gorm:"size:16;not null;index" json:"status"`
	Source              TransactionSource `gorm:"size:16" json:"source,omitempty"`
	Description         string            `json:"description"`
	OrderCode           *string           `gorm:"uniqueIndex:idx_transactions_order_code,where:status <> 'FAILED'" json:"order_code,omitempty"`
	ErrMessage          string            `json:"err_message,omitempty"`
	FailureClass        FailureClass      `gorm:"size:16" json:"failure_class,omitempty"`
	UnallocatedAmount   int64             `gorm:"type:bigint;not null;default:0" json:"unallocated_amount"`
	CheckoutURL         string            `json:"checkout_url,omitempty"`
	ProcessingStartedAt *time.Time        `json:"processing_started_at,omitempty"`

	Entries []TransactionEntry `gorm:"foreignKey:TransactionID" json:"entries,omitempty"`
}

// RetryableFailure reports whether t FAILED in a way a redelivery may retry.
func (t *Transaction) RetryableFailure() bool {
	return t.Status == TransactionStatusFailed && t.FailureClass == FailureRetryable
}
