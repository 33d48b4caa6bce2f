package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/voiceprovider"
	"voicedesk-backend-go/pkg/cache"
)

var (
	ErrAssistantNotFound     = errors.New("assistant not found")
	ErrAssistantLimitReached = errors.New("assistant limit reached for current plan")
	ErrVoiceProvider         = errors.New("voice provider request failed")
)

const (
	statsCacheTTL    = 5 * time.Minute
	statsCachePrefix = "assistant:stats:"

	// pendingCallGrace is how long an unfinished call holds back the
	// watermark. Older unfinished calls are folded without talk time.
	pendingCallGrace = 2 * time.Hour
)

// NewAssistantServiceConfig holds the collaborators of the assistant service.
type NewAssistantServiceConfig struct {
	Assistants   db.AssistantRepository
	PhoneNumbers db.PhoneNumberRepository
	Users        db.UserRepository
	Provider     voiceprovider.API
	Cache        cache.Cache
	Plans        *PlanCatalog
	Audit        AuditService
	Logger       *zap.Logger
}

type assistantService struct {
	NewAssistantServiceConfig
	now func() time.Time
}

// NewAssistantService creates a new AssistantService.
func NewAssistantService(cfg NewAssistantServiceConfig) AssistantService {
	return &assistantService{NewAssistantServiceConfig: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *assistantService) List(ctx context.Context, user *models.User) ([]*models.Assistant, error) {
	assistants, err := s.Assistants.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants for user '%s': %w", user.ID.Hex(), err)
	}
	return assistants, nil
}

func (s *assistantService) Get(ctx context.Context, user *models.User, id string) (*models.Assistant, error) {
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

func (s *assistantService) Create(ctx context.Context, user *models.User, req models.CreateAssistantRequest) (*models.Assistant, error) {
	plan := s.Plans.ForUser(user)
	count, err := s.Assistants.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assistants for user '%s': %w", user.ID.Hex(), err)
	}
	if !withinLimit(plan.MaxAssistants, count) {
		return nil, fmt.Errorf("%w: plan '%s' allows %d", ErrAssistantLimitReached, plan.Name, plan.MaxAssistants)
	}

	name := strings.TrimSpace(req.Name)
	remote, err := s.Provider.CreateAssistant(ctx, assistantSpec(name, req.Config))
	if err != nil {
		return nil, fmt.Errorf("%w: create assistant: %v", ErrVoiceProvider, err)
	}

	now := s.now()
	a := &models.Assistant{
		UserID:     user.ID,
		ProviderID: remote.ID,
		Name:       name,
		Status:     models.AssistantStatusActive,
		Config:     req.Config,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Assistants.Create(ctx, a); err != nil {
		if delErr := s.Provider.DeleteAssistant(ctx, remote.ID); delErr != nil {
			s.Logger.Error("Failed to remove orphaned remote assistant",
				zap.String("providerID", remote.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to store assistant for user '%s': %w", user.ID.Hex(), err)
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionAssistantCreate, "assistant", a.ID.Hex(), map[string]interface{}{"name": name})
	return a, nil
}

func (s *assistantService) Update(ctx context.Context, user *models.User, id string, req models.UpdateAssistantRequest) (*models.Assistant, error) {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		a.Name = strings.TrimSpace(*req.Name)
	}
	applyConfig(&a.Config, req)

	if _, err := s.Provider.UpdateAssistant(ctx, a.ProviderID, assistantSpec(a.Name, a.Config)); err != nil {
		return nil, fmt.Errorf("%w: update assistant: %v", ErrVoiceProvider, err)
	}
	a.UpdatedAt = s.now()
	if err := s.Assistants.Update(ctx, a); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: assistant with ID '%s'", ErrAssistantNotFound, id)
		}
		return nil, fmt.Errorf("failed to update assistant '%s': %w", id, err)
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionAssistantUpdate, "assistant", id, nil)
	return a, nil
}

// Delete removes the assistant remotely and locally and detaches its phone numbers.
// An assistant already gone from the provider is still deleted locally.
func (s *assistantService) Delete(ctx context.Context, user *models.User, id string) error {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.Provider.DeleteAssistant(ctx, a.ProviderID); err != nil && !errors.Is(err, voiceprovider.ErrNotFound) {
		return fmt.Errorf("%w: delete assistant: %v", ErrVoiceProvider, err)
	}
	if n, err := s.PhoneNumbers.UnassignAssistant(ctx, a.ID); err != nil {
		s.Logger.Warn("Failed to unassign phone numbers", zap.String("assistantID", id), zap.Error(err))
	} else if n > 0 {
		s.Logger.Info("Phone numbers unassigned", zap.String("assistantID", id), zap.Int64("count", n))
	}
	if err := s.Assistants.Delete(ctx, user.ID, a.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to delete assistant '%s': %w", id, err)
	}
	if s.Cache != nil {
		_ = s.Cache.Delete(ctx, statsCachePrefix+id)
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionAssistantDelete, "assistant", id, map[string]interface{}{"name": a.Name})
	return nil
}

// Toggle flips the assistant between active and inactive.
func (s *assistantService) Toggle(ctx context.Context, user *models.User, id string) (*models.Assistant, error) {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	next := models.AssistantStatusActive
	if a.Status == models.AssistantStatusActive {
		next = models.AssistantStatusInactive
	}
	if err := s.Assistants.UpdateStatus(ctx, user.ID, a.ID, next); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: assistant with ID '%s'", ErrAssistantNotFound, id)
		}
		return nil, fmt.Errorf("failed to toggle assistant '%s': %w", id, err)
	}
	a.Status = next
	a.UpdatedAt = s.now()
	s.Audit.Record(ctx, user.ID.Hex(), ActionAssistantToggle, "assistant", id, map[string]interface{}{"status": next})
	return a, nil
}

// RefreshStats folds the calls made since the last refresh into the
// assistant's statistics and adds the difference to the owner's usage.
// Without force, a cached result younger than five minutes is returned and
// provider failures fall back to the stored stats.
func (s *assistantService) RefreshStats(ctx context.Context, user *models.User, id string, force bool) (*models.AssistantStats, error) {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	key := statsCachePrefix + a.ID.Hex()
	if !force && s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, key); err == nil {
			var cached models.AssistantStats
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.Logger.Warn("Stats cache read failed", zap.String("assistantID", id), zap.Error(err))
		}
	}

	// Documents written before the watermark existed are rebuilt from the
	// full history.
	var base models.AssistantStats
	if a.Stats.SyncedThrough != nil {
		base = a.Stats
	}
	calls, err := s.Provider.ListCallsSince(ctx, a.ProviderID, base.SyncedThrough)
	if err != nil {
		if !force {
			s.Logger.Warn("Provider stats unavailable, serving stored stats", zap.String("assistantID", id), zap.Error(err))
			return &a.Stats, nil
		}
		return nil, fmt.Errorf("%w: list calls: %v", ErrVoiceProvider, err)
	}

	now := s.now()
	stats := foldCalls(base, calls, now)
	stored, err := s.Assistants.UpdateStats(ctx, a.ID, a.Stats.SyncedThrough, stats, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store stats for assistant '%s': %w", id, err)
	}
	if !stored {
		// A concurrent refresh moved the watermark and accounted the usage.
		s.Logger.Debug("Stats refreshed concurrently", zap.String("assistantID", id))
		latest, err := s.Assistants.GetByID(ctx, user.ID, a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload stats for assistant '%s': %w", id, err)
		}
		return &latest.Stats, nil
	}

	dCalls := stats.TotalCalls - a.Stats.TotalCalls
	dMinutes := round(stats.TotalMinutes-a.Stats.TotalMinutes, 2)
	if dCalls < 0 {
		dCalls = 0
	}
	if dMinutes < 0 {
		dMinutes = 0
	}
	if dCalls > 0 || dMinutes > 0 {
		if err := s.Users.IncrementUsage(ctx, user.ID, dMinutes, dCalls); err != nil {
			s.Logger.Warn("Failed to update usage", zap.String("userID", user.ID.Hex()), zap.Error(err))
		}
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.Cache.Set(ctx, key, string(raw), statsCacheTTL); err != nil {
				s.Logger.Warn("Stats cache write failed", zap.String("assistantID", id), zap.Error(err))
			}
		}
	}
	return &stats, nil
}

// foldCalls adds calls, oldest first, to the running totals in base. Folding
// stops at the first unfinished call younger than pendingCallGrace so it is
// picked up again once it ends.
func foldCalls(base models.AssistantStats, calls []voiceprovider.Call, now time.Time) models.AssistantStats {
	stats := base
	for i := range calls {
		c := &calls[i]
		created := c.CreatedAt.UTC().Truncate(time.Millisecond)
		if stats.SyncedThrough != nil && !created.After(*stats.SyncedThrough) {
			continue
		}
		ended := c.Status == "ended"
		if !ended && now.Sub(c.CreatedAt) < pendingCallGrace {
			break
		}
		stats.TotalCalls++
		if ended {
			stats.EndedCalls++
			stats.TalkSeconds += c.Duration().Seconds()
		}
		if c.Successful() {
			stats.SuccessfulCalls++
		}
		at := c.CreatedAt
		if c.StartedAt != nil {
			at = *c.StartedAt
		}
		if !at.IsZero() && (stats.LastCallAt == nil || at.After(*stats.LastCallAt)) {
			last := at.UTC()
			stats.LastCallAt = &last
		}
		if !created.IsZero() {
			stats.SyncedThrough = &created
		}
	}

	stats.TotalMinutes = round(stats.TalkSeconds/60, 2)
	stats.AverageDurationSec = 0
	if stats.EndedCalls > 0 {
		stats.AverageDurationSec = round(stats.TalkSeconds/float64(stats.EndedCalls), 1)
	}
	stats.SuccessRate = 0
	if stats.TotalCalls > 0 {
		stats.SuccessRate = round(float64(stats.SuccessfulCalls)/float64(stats.TotalCalls)*100, 1)
	}
	return stats
}

func applyConfig(cfg *models.AssistantConfig, req models.UpdateAssistantRequest) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cfg.FirstMessage, req.FirstMessage)
	set(&cfg.SystemPrompt, req.SystemPrompt)
	set(&cfg.Model, req.Model)
	set(&cfg.ModelVendor, req.ModelVendor)
	set(&cfg.Voice, req.Voice)
	set(&cfg.VoiceVendor, req.VoiceVendor)
	set(&cfg.Language, req.Language)
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
}

func assistantSpec(name string, cfg models.AssistantConfig) voiceprovider.AssistantSpec {
	return voiceprovider.AssistantSpec{
		Name:         name,
		FirstMessage: cfg.FirstMessage,
		SystemPrompt: cfg.SystemPrompt,
		Model:        cfg.Model,
		ModelVendor:  cfg.ModelVendor,
		Voice:        cfg.Voice,
		VoiceVendor:  cfg.VoiceVendor,
		Language:     cfg.Language,
		Temperature:  cfg.Temperature,
	}
}
