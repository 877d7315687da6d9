package models

// OutboxStatus tracks delivery of an outbox message to the broker.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// OutboxMessage is written in the same DB transaction as the ledger change it
// describes and published asynchronously by the outbox sender job.
type OutboxMessage struct {
	Base
	MessageKey string       `gorm:"not null;uniqueIndex" json:"message_key"`
	Topic      string       `gorm:"size:128;not null" json:"topic"`
	Payload    string       `gorm:"type:text;not null" json:"payload"`
	Status     OutboxStatus `gorm:"size:16;not null;index" json:"status"`
	RetryCount int          `gorm:"not null;default:0" json:"retry_count"`
	LastError  string       `json:"last_error,omitempty"`
}
