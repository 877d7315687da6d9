package services

import (
	"context"
	"errors"
	"strings"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/repository"
)

// debtService handles ad-hoc debts. Settling a debt is left to the
// allocation engine.
type debtService struct {
	store repository.Store
}

// NewDebtService creates a new DebtServicer.
func NewDebtService(store repository.Store) DebtServicer {
	return &debtService{store: store}
}

// CreateDebt records an unpaid debt for an existing member
func (s *debtService) CreateDebt(ctx context.Context, userID string, amount int64, debtType models.DebtType, description string) (*models.Debt, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if debtType == "" {
		debtType = models.DebtTypeAdHoc
	}

	if _, err := s.store.Users().GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	debt := &models.Debt{
		UserID:      userID,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Type:        debtType,
	}
	if err := s.store.Debts().CreateDebt(ctx, debt); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return debt, nil
}

// GetDebt retrieves a debt by ID
func (s *debtService) GetDebt(ctx context.Context, id string) (*models.Debt, error) {
	debt, err := s.store.Debts().GetDebt(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrDebtNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return debt, nil
}

// ListDebts returns debts oldest first, optionally narrowed by member and paid flag
func (s *debtService) ListDebts(ctx context.Context, userID string, isFullPaid *bool) ([]models.Debt, error) {
	debts, err := s.store.Debts().ListDebts(ctx, repository.DebtFilter{UserID: userID, IsFullPaid: isFullPaid})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return debts, nil
}
