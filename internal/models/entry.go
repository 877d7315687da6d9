package models

// EntryType distinguishes dues lines from debt settlement lines.
type EntryType string

const (
	EntryTypeFund        EntryType = "FUND"
	EntryTypeDebtPayment EntryType = "DEBT_PAYMENT"
)

// TransactionEntry is one allocation line of a transaction. A user can hold
// at most one FUND entry per period_month; the partial unique index enforces it.
type TransactionEntry struct {
	Base
	TransactionID string    `gorm:"type:uuid;not null;index" json:"transaction_id"`
	UserID        string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_entries_fund_period,where:type = 'FUND'" json:"user_id"`
	DebtID        *string   `gorm:"type:uuid;index" json:"debt_id,omitempty"`
	Amount        int64     `gorm:"type:bigint;not null" json:"amount"`
	Type          EntryType `gorm:"size:16;not null" json:"type"`
	PeriodMonth   string    `gorm:"size:7;not null;uniqueIndex:idx_entries_fund_period" json:"period_month"`
}
