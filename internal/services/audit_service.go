package services

import (
	"context"
	"encoding/json"

	apperrors "treasurer/internal/errors"
	"treasurer/internal/logger"
	"treasurer/internal/models"
	"treasurer/internal/repository"
)

// auditService handles audit log recording.
type auditService struct {
	store repository.Store
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(store repository.Store) AuditServicer {
	return &auditService{store: store}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(ctx context.Context, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}

	if err := s.store.Audit().Record(ctx, entry); err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

// List returns the audit trail of one resource, oldest first.
func (s *auditService) List(ctx context.Context, resourceID string) ([]models.AuditLog, error) {
	logs, err := s.store.Audit().ListByResource(ctx, resourceID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return logs, nil
}
