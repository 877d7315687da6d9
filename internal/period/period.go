// Package period implements the calendar-month arithmetic behind dues
// allocation. Every function is pure: the "current month" ceiling is always
// passed in by the caller and never read from the system clock.
package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFee is returned when a monthly fee is zero or negative.
var ErrInvalidFee = errors.New("period: monthly fee must be positive")

// Month is a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

// New builds a Month, normalizing out-of-range month numbers
// (New(2024, 13) is January 2025).
func New(year int, month time.Month) Month {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf truncates t to its calendar month.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Parse reads a "YYYY-MM" string.
func Parse(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("period: invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Month {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Next returns the following calendar month, rolling December into January.
func (m Month) Next() Month {
	return m.Add(1)
}

// Add moves n months forward (or backward when n is negative).
func (m Month) Add(n int) Month {
	return New(m.Year, m.Month+time.Month(n))
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	return m.index() < o.index()
}

// After reports whether m is strictly later than o.
func (m Month) After(o Month) bool {
	return m.index() > o.index()
}

// InYear reports whether m falls in the given calendar year.
func (m Month) InYear(year int) bool {
	return m.Year == year
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Max returns the later of a and b.
func Max(a, b Month) Month {
	if a.After(b) {
		return a
	}
	return b
}

// NextUnpaid returns the month after latestPaid, or fallback when the user
// has no paid month at all.
func NextUnpaid(latestPaid *Month, fallback Month) Month {
	if latestPaid == nil {
		return fallback
	}
	return latestPaid.Next()
}

// CoveredBy greedily claims one fee per month starting at start while the
// remaining amount covers a full fee and the month is not after ceiling.
// It returns the claimed months in order and the amount left over.
func CoveredBy(start, ceiling Month, amount, fee int64) ([]Month, int64, error) {
	if fee <= 0 {
		return nil, 0, ErrInvalidFee
	}
	if amount < 0 {
		return nil, 0, fmt.Errorf("period: negative amount %d", amount)
	}

	var months []Month
	remaining := amount
	for m := start; remaining >= fee && !m.After(ceiling); m = m.Next() {
		months = append(months, m)
		remaining -= fee
	}
	return months, remaining, nil
}

// Prepaid claims one fee per month starting at start, with no ceiling, until
// the amount no longer covers a full fee.
func Prepaid(start Month, amount, fee int64) ([]Month, int64, error) {
	if fee <= 0 {
		return nil, 0, ErrInvalidFee
	}
	if amount < 0 {
		return nil, 0, fmt.Errorf("period: negative amount %d", amount)
	}

	n := amount / fee
	months := make([]Month, 0, n)
	for i := int64(0); i < n; i++ {
		months = append(months, start.Add(int(i)))
	}
	return months, amount - n*fee, nil
}

// DuesMonths is the number of months owed in year as of current: all twelve
// for a past year, none for a future year, and January through the current
// month otherwise.
func DuesMonths(year int, current Month) int {
	switch {
	case year < current.Year:
		return 12
	case year > current.Year:
		return 0
	default:
		return int(current.Month)
	}
}

// Strings formats months as "YYYY-MM" values.
func Strings(months []Month) []string {
	out := make([]string, len(months))
	for i, m := range months {
		out[i] = m.String()
	}
	return out
}
