package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/period"
	"treasurer/internal/repository"
)

// balanceService derives member balances from the ledger.
type balanceService struct {
	store  repository.Store
	policy DuesPolicy
}

// NewBalanceService creates a new BalanceServicer.
func NewBalanceService(store repository.Store, policy DuesPolicy) BalanceServicer {
	return &balanceService{store: store, policy: policy}
}

// UserBalance returns the member's paid periods and debt balance. A negative
// debt balance is the amount the member owes.
func (s *balanceService) UserBalance(ctx context.Context, userID string, year *int) (*UserBalance, error) {
	user, err := s.store.Users().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entries, err := s.store.Ledger().ListEntries(ctx, repository.EntryFilter{UserID: user.ID})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	debts, err := s.store.Debts().ListDebts(ctx, repository.DebtFilter{UserID: user.ID})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.summarize(user.ID, entries, debts, year), nil
}

// MemberReport builds one row per active member from three bulk reads.
func (s *balanceService) MemberReport(ctx context.Context, year *int) ([]MemberReport, error) {
	users, err := s.store.Users().ListUsers(ctx, true)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	entries, err := s.store.Ledger().ListEntries(ctx, repository.EntryFilter{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	debts, err := s.store.Debts().ListDebts(ctx, repository.DebtFilter{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entriesByUser := make(map[string][]models.TransactionEntry, len(users))
	for _, e := range entries {
		entriesByUser[e.UserID] = append(entriesByUser[e.UserID], e)
	}
	debtsByUser := make(map[string][]models.Debt, len(users))
	for _, d := range debts {
		debtsByUser[d.UserID] = append(debtsByUser[d.UserID], d)
	}

	report := make([]MemberReport, 0, len(users))
	for _, u := range users {
		b := s.summarize(u.ID, entriesByUser[u.ID], debtsByUser[u.ID], year)
		report = append(report, MemberReport{
			ID:              u.ID,
			Name:            u.Name,
			JoinedPeriod:    u.JoinedPeriod,
			Contributions:   b.PaidPeriods,
			DebtAmount:      -b.DebtBalance,
			DebtDescription: b.DebtDescription,
		})
	}
	return report, nil
}

// DashboardStats reports fund totals: income is every FUND line, expense is
// every completed EXPENSE transaction.
func (s *balanceService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	income, err := s.store.Ledger().SumEntries(ctx, models.EntryTypeFund)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	expense, err := s.store.Ledger().SumTransactions(ctx, models.TransactionTypeExpense, models.TransactionStatusCompleted)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &DashboardStats{
		TotalIncome:  income,
		TotalExpense: expense,
		FundBalance:  income - expense,
	}, nil
}

// summarize computes a balance from one member's entries and debts. Paid
// periods are de-duplicated on read even though the store forbids repeats.
func (s *balanceService) summarize(userID string, entries []models.TransactionEntry, debts []models.Debt, year *int) *UserBalance {
	current := s.policy.currentMonth()
	effectiveYear := current.Year
	if year != nil {
		effectiveYear = *year
	}

	seen := make(map[string]struct{}, len(entries))
	paid := []string{}
	var fundPaid, debtPayments int64
	for _, e := range entries {
		switch e.Type {
		case models.EntryTypeDebtPayment:
			debtPayments += e.Amount
		case models.EntryTypeFund:
			if _, dup := seen[e.PeriodMonth]; dup {
				continue
			}
			seen[e.PeriodMonth] = struct{}{}

			m, err := period.Parse(e.PeriodMonth)
			if err != nil {
				continue
			}
			if m.InYear(effectiveYear) {
				fundPaid += e.Amount
			}
			if year == nil || m.InYear(*year) {
				paid = append(paid, e.PeriodMonth)
			}
		}
	}
	sort.Strings(paid)

	var debtTotal int64
	var open []string
	for _, d := range debts {
		debtTotal += d.Amount
		if !d.IsFullPaid && d.Description != "" {
			open = append(open, d.Description)
		}
	}

	duesOwed := int64(period.DuesMonths(effectiveYear, current)) * s.policy.MonthlyFee
	balance := fundPaid - duesOwed - debtTotal + debtPayments
	if balance > 0 || (s.policy.AdminUserID != "" && userID == s.policy.AdminUserID) {
		balance = 0
	}

	return &UserBalance{
		UserID:          userID,
		Year:            effectiveYear,
		PaidPeriods:     paid,
		TotalFundPaid:   fundPaid,
		DuesOwed:        duesOwed,
		DebtBalance:     balance,
		DebtDescription: strings.Join(open, ", "),
	}
}
