package services

import (
	"context"
	"errors"
	"strings"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/models"
	"treasurer/internal/period"
	"treasurer/internal/repository"
)

// userService handles member management.
type userService struct {
	store repository.Store
}

// NewUserService creates a new UserServicer.
func NewUserService(store repository.Store) UserServicer {
	return &userService{store: store}
}

// CreateUser registers a new active member
func (s *userService) CreateUser(ctx context.Context, name string, email *string, joinedPeriod string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if joinedPeriod != "" {
		if _, err := period.Parse(joinedPeriod); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "joined_period must be YYYY-MM")
		}
	}

	user := &models.User{
		Name:         name,
		Active:       true,
		JoinedPeriod: joinedPeriod,
	}
	if email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*email))
		if normalized != "" {
			user.Email = &normalized
		}
	}

	if err := s.store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// GetUser retrieves a member by ID
func (s *userService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users().GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// ListUsers returns members ordered by name
func (s *userService) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	users, err := s.store.Users().ListUsers(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return users, nil
}

func (s *userService) FindActiveByName(ctx context.Context, name string) (*models.User, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "payer name is required")
	}

	users, err := s.store.Users().ListUsers(ctx, true)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	var match *models.User
	for i := range users {
		if strings.ToLower(strings.TrimSpace(users[i].Name)) != needle {
			continue
		}
		if match != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "payer name matches more than one member")
		}
		match = &users[i]
	}
	if match == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return match, nil
}
