package models

// DebtType is a free-form category for ad-hoc amounts owed.
type DebtType string

const (
	DebtTypeAdHoc   DebtType = "AD_HOC"
	DebtTypePenalty DebtType = "PENALTY"
	DebtTypeAdvance DebtType = "ADVANCE"
)

// Debt is settled in full exactly once; Amount is never reduced.
type Debt struct {
	Base
	UserID      string   `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount      int64    `gorm:"type:bigint;not null" json:"amount"`
	Description string   `json:"description"`
	Type        DebtType `gorm:"size:16;not null" json:"type"`
	IsFullPaid  bool     `gorm:"not null;default:false;index" json:"is_full_paid"`
}
