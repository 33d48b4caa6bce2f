package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/models"
)

// Audit actions.
const (
	ActionUserCreated           = "USER_CREATED"
	ActionIdentityLinked        = "IDENTITY_LINKED"
	ActionProfileUpdate         = "PROFILE_UPDATE"
	ActionNotificationsUpdate   = "NOTIFICATIONS_UPDATE"
	ActionPasswordChange        = "PASSWORD_CHANGE"
	ActionAccountDelete         = "ACCOUNT_DELETE"
	ActionAssistantCreate       = "ASSISTANT_CREATE"
	ActionAssistantUpdate       = "ASSISTANT_UPDATE"
	ActionAssistantDelete       = "ASSISTANT_DELETE"
	ActionAssistantToggle       = "ASSISTANT_TOGGLE"
	ActionPhoneNumberCreate     = "PHONE_NUMBER_CREATE"
	ActionPhoneNumberDelete     = "PHONE_NUMBER_DELETE"
	ActionPhoneNumberAssign     = "PHONE_NUMBER_ASSIGN"
	ActionSubscriptionStart     = "SUBSCRIPTION_START"
	ActionSubscriptionCancel    = "SUBSCRIPTION_CANCEL"
	ActionSubscriptionEnded     = "SUBSCRIPTION_ENDED"
	ActionPaymentFailed         = "PAYMENT_FAILED"
)

const defaultActivityLimit = 50

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService backed by the Mongo or Firestore repository.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{auditRepo: auditRepo, logger: logger}
}

// CreateAuditLog creates a new audit log entry.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		return errors.New("AuditRepository not initialized in AuditService")
	}
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}
	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}
	return nil
}

func (s *auditService) Record(ctx context.Context, userID, action, targetType, targetID string, details map[string]interface{}) {
	err := s.CreateAuditLog(ctx, models.AuditLog{
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	})
	if err != nil {
		s.logger.Warn("Audit log write failed",
			zap.String("userID", userID), zap.String("action", action), zap.Error(err))
	}
}

func (s *auditService) ListActivity(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultActivityLimit
	}
	entries, err := s.auditRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity for user '%s': %w", userID, err)
	}
	return entries, nil
}
