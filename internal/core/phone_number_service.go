package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/voiceprovider"
)

var (
	ErrPhoneNumberNotFound     = errors.New("phone number not found")
	ErrPhoneNumberLimitReached = errors.New("phone number limit reached for current plan")
)

const defaultCarrier = "vapi"

// NewPhoneNumberServiceConfig holds the collaborators of the phone number service.
type NewPhoneNumberServiceConfig struct {
	PhoneNumbers db.PhoneNumberRepository
	Assistants   db.AssistantRepository
	Provider     voiceprovider.API
	Plans        *PlanCatalog
	Audit        AuditService
	Logger       *zap.Logger
}

type phoneNumberService struct {
	NewPhoneNumberServiceConfig
	now func() time.Time
}

// NewPhoneNumberService creates a new PhoneNumberService.
func NewPhoneNumberService(cfg NewPhoneNumberServiceConfig) PhoneNumberService {
	return &phoneNumberService{NewPhoneNumberServiceConfig: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *phoneNumberService) List(ctx context.Context, user *models.User) ([]*models.PhoneNumber, error) {
	numbers, err := s.PhoneNumbers.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers for user '%s': %w", user.ID.Hex(), err)
	}
	return numbers, nil
}

func (s *phoneNumberService) Create(ctx context.Context, user *models.User, req models.CreatePhoneNumberRequest) (*models.PhoneNumber, error) {
	plan := s.Plans.ForUser(user)
	existing, err := s.PhoneNumbers.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count phone numbers for user '%s': %w", user.ID.Hex(), err)
	}
	if !withinLimit(plan.MaxPhoneNumbers, int64(len(existing))) {
		return nil, fmt.Errorf("%w: plan '%s' allows %d", ErrPhoneNumberLimitReached, plan.Name, plan.MaxPhoneNumbers)
	}

	var assistant *models.Assistant
	if req.AssistantID != "" {
		assistant, err = s.ownedAssistant(ctx, user, req.AssistantID)
		if err != nil {
			return nil, err
		}
	}

	carrier := strings.ToLower(strings.TrimSpace(req.Carrier))
	if carrier == "" {
		carrier = defaultCarrier
	}
	spec := voiceprovider.PhoneNumberSpec{
		Provider: carrier,
		Number:   req.Number,
		Name:     strings.TrimSpace(req.Name),
		AreaCode: req.AreaCode,
	}
	if assistant != nil {
		spec.AssistantID = assistant.ProviderID
	}
	remote, err := s.Provider.CreatePhoneNumber(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: create phone number: %v", ErrVoiceProvider, err)
	}

	now := s.now()
	number := &models.PhoneNumber{
		UserID:     user.ID,
		ProviderID: remote.ID,
		Number:     remote.Number,
		Name:       spec.Name,
		Carrier:    carrier,
		Status:     remote.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if number.Number == "" {
		number.Number = req.Number
	}
	if number.Status == "" {
		number.Status = "active"
	}
	if assistant != nil {
		number.AssistantID = &assistant.ID
	}
	if err := s.PhoneNumbers.Create(ctx, number); err != nil {
		if delErr := s.Provider.DeletePhoneNumber(ctx, remote.ID); delErr != nil {
			s.Logger.Error("Failed to release orphaned remote phone number",
				zap.String("providerID", remote.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to store phone number for user '%s': %w", user.ID.Hex(), err)
	}
	if assistant != nil {
		if assistant.PhoneNumberID != nil {
			s.detachNumber(ctx, user, *assistant.PhoneNumberID)
		}
		s.attachToAssistant(ctx, assistant, number.ID)
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionPhoneNumberCreate, "phone_number", number.ID.Hex(),
		map[string]interface{}{"number": number.Number})
	return number, nil
}

func (s *phoneNumberService) Delete(ctx context.Context, user *models.User, id string) error {
	number, err := s.get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.Provider.DeletePhoneNumber(ctx, number.ProviderID); err != nil && !errors.Is(err, voiceprovider.ErrNotFound) {
		return fmt.Errorf("%w: delete phone number: %v", ErrVoiceProvider, err)
	}
	if number.AssistantID != nil {
		if err := s.Assistants.SetPhoneNumber(ctx, *number.AssistantID, nil); err != nil && !errors.Is(err, db.ErrNotFound) {
			s.Logger.Warn("Failed to detach phone number from assistant", zap.String("phoneNumberID", id), zap.Error(err))
		}
	}
	if err := s.PhoneNumbers.Delete(ctx, user.ID, number.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to delete phone number '%s': %w", id, err)
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionPhoneNumberDelete, "phone_number", id,
		map[string]interface{}{"number": number.Number})
	return nil
}

// Assign keeps numbers and assistants one-to-one: a number already on the target
// assistant is detached first, and the number's previous assistant is cleared.
func (s *phoneNumberService) Assign(ctx context.Context, user *models.User, id string, assistantID *string) (*models.PhoneNumber, error) {
	number, err := s.get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	var target *models.Assistant
	if assistantID != nil && *assistantID != "" {
		target, err = s.ownedAssistant(ctx, user, *assistantID)
		if err != nil {
			return nil, err
		}
	}
	if target != nil && number.AssistantID != nil && *number.AssistantID == target.ID {
		return number, nil
	}

	if target != nil && target.PhoneNumberID != nil && *target.PhoneNumberID != number.ID {
		s.detachNumber(ctx, user, *target.PhoneNumberID)
	}

	var remoteAssistant *string
	if target != nil {
		remoteAssistant = &target.ProviderID
	}
	if _, err := s.Provider.UpdatePhoneNumber(ctx, number.ProviderID, remoteAssistant); err != nil {
		return nil, fmt.Errorf("%w: assign phone number: %v", ErrVoiceProvider, err)
	}

	var localAssistant *bson.ObjectID
	if target != nil {
		localAssistant = &target.ID
	}
	if err := s.PhoneNumbers.Assign(ctx, number.ID, localAssistant); err != nil {
		return nil, fmt.Errorf("failed to assign phone number '%s': %w", id, err)
	}
	if number.AssistantID != nil {
		if err := s.Assistants.SetPhoneNumber(ctx, *number.AssistantID, nil); err != nil && !errors.Is(err, db.ErrNotFound) {
			s.Logger.Warn("Failed to detach previous assistant", zap.String("phoneNumberID", id), zap.Error(err))
		}
	}
	if target != nil {
		s.attachToAssistant(ctx, target, number.ID)
	}

	number.AssistantID = localAssistant
	number.UpdatedAt = s.now()
	details := map[string]interface{}{"assistantId": nil}
	if target != nil {
		details["assistantId"] = target.ID.Hex()
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionPhoneNumberAssign, "phone_number", id, details)
	return number, nil
}

func (s *phoneNumberService) get(ctx context.Context, user *models.User, id string) (*models.PhoneNumber, error) {
	oid, err := parseID(id, ErrPhoneNumberNotFound)
	if err != nil {
		return nil, err
	}
	number, err := s.PhoneNumbers.GetByID(ctx, user.ID, oid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: phone number with ID '%s'", ErrPhoneNumberNotFound, id)
		}
		return nil, fmt.Errorf("failed to get phone number '%s': %w", id, err)
	}
	return number, nil
}

func (s *phoneNumberService) ownedAssistant(ctx context.Context, user *models.User, id string) (*models.Assistant, error) {
	oid, err := parseID(id, ErrAssistantNotFound)
	if err != nil {
		return nil, err
	}
	a, err := s.Assistants.GetByID(ctx, user.ID, oid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: assistant with ID '%s'", ErrAssistantNotFound, id)
		}
		return nil, fmt.Errorf("failed to get assistant '%s': %w", id, err)
	}
	return a, nil
}

// detachNumber clears the assistant of another number owned by user. Failures are logged.
func (s *phoneNumberService) detachNumber(ctx context.Context, user *models.User, phoneID bson.ObjectID) {
	other, err := s.PhoneNumbers.GetByID(ctx, user.ID, phoneID)
	if err != nil {
		return
	}
	if _, err := s.Provider.UpdatePhoneNumber(ctx, other.ProviderID, nil); err != nil && !errors.Is(err, voiceprovider.ErrNotFound) {
		s.Logger.Warn("Failed to detach number remotely", zap.String("phoneNumberID", phoneID.Hex()), zap.Error(err))
	}
	if err := s.PhoneNumbers.Assign(ctx, phoneID, nil); err != nil {
		s.Logger.Warn("Failed to detach number", zap.String("phoneNumberID", phoneID.Hex()), zap.Error(err))
	}
}

func (s *phoneNumberService) attachToAssistant(ctx context.Context, a *models.Assistant, phoneID bson.ObjectID) {
	if err := s.Assistants.SetPhoneNumber(ctx, a.ID, &phoneID); err != nil {
		s.Logger.Warn("Failed to record phone number on assistant",
			zap.String("assistantID", a.ID.Hex()), zap.String("phoneNumberID", phoneID.Hex()), zap.Error(err))
	}
}
