package services

import (
	"context"
	"errors"
	"time"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/period"
	"treasurer/internal/repository"
)

// periodSequencer resolves dues periods against the ledger.
type periodSequencer struct {
	store  repository.Store
	policy DuesPolicy
}

// NewPeriodSequencer creates a new PeriodSequencer.
func NewPeriodSequencer(store repository.Store, policy DuesPolicy) PeriodSequencer {
	return &periodSequencer{store: store, policy: policy}
}

func (s *periodSequencer) NextUnpaidPeriod(ctx context.Context, userID string, eventDate time.Time) (period.Month, error) {
	user, err := s.store.Users().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return period.Month{}, apperrors.ErrUserNotFound
		}
		return period.Month{}, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	start, _, err := nextUnpaid(ctx, s.store.Ledger(), user, eventDate, s.policy.now())
	return start, err
}

func (s *periodSequencer) PeriodsCoveredBy(ctx context.Context, userID string, amount, fee int64, eventDate time.Time, current period.Month) ([]period.Month, int64, error) {
	if amount < 0 {
		return nil, 0, apperrors.ErrInvalidAmount
	}
	if fee <= 0 {
		return nil, 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "monthly fee must be positive")
	}

	start, err := s.NextUnpaidPeriod(ctx, userID, eventDate)
	if err != nil {
		return nil, 0, err
	}
	months, remaining, err := period.CoveredBy(start, current, amount, fee)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	return months, remaining, nil
}

// nextUnpaid returns the first month the user still owes and the latest
// month already paid, if any. Without history the user's joined period is
// used, then the event month, then January of the current year.
func nextUnpaid(ctx context.Context, ledger repository.LedgerStore, user *models.User, eventDate, now time.Time) (period.Month, *period.Month, error) {
	latestStr, err := ledger.LatestFundPeriod(ctx, user.ID)
	if err != nil {
		return period.Month{}, nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	var latest *period.Month
	if latestStr != "" {
		m, err := period.Parse(latestStr)
		if err != nil {
			return period.Month{}, nil, apperrors.Wrap(apperrors.ErrLogicInvariant, err)
		}
		latest = &m
	}

	return period.NextUnpaid(latest, fallbackStart(user, eventDate, now)), latest, nil
}

func fallbackStart(user *models.User, eventDate, now time.Time) period.Month {
	if user.JoinedPeriod != "" {
		if m, err := period.Parse(user.JoinedPeriod); err == nil {
			return m
		}
	}
	if !eventDate.IsZero() {
		return period.MonthOf(eventDate)
	}
	return period.New(now.Year(), time.January)
}
