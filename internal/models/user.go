package models

// User is a fund member. JoinedPeriod (YYYY-MM) is the first dues month
// for a member with no payment history.
type User struct {
	Base
	Name         string  `gorm:"not null" json:"name"`
	Email        *string `gorm:"uniqueIndex" json:"email,omitempty"`
	Active       bool    `gorm:"not null" json:"active"`
	JoinedPeriod string  `gorm:"size:7" json:"joined_period,omitempty"`
}
