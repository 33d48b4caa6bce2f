package core

import (
	"context"
	"fmt"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/models"
)

type statsService struct {
	assistants   db.AssistantRepository
	phoneNumbers db.PhoneNumberRepository
	plans        *PlanCatalog
}

// NewStatsService creates a new StatsService. Call statistics come from the values
// stored by the last RefreshStats of each assistant.
func NewStatsService(assistants db.AssistantRepository, phoneNumbers db.PhoneNumberRepository, plans *PlanCatalog) StatsService {
	return &statsService{assistants: assistants, phoneNumbers: phoneNumbers, plans: plans}
}

func (s *statsService) Overview(ctx context.Context, user *models.User) (*Overview, error) {
	assistants, err := s.assistants.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants for user '%s': %w", user.ID.Hex(), err)
	}
	numbers, err := s.phoneNumbers.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers for user '%s': %w", user.ID.Hex(), err)
	}

	plan := s.plans.ForUser(user)
	o := &Overview{
		TotalAssistants:    len(assistants),
		PhoneNumbers:       len(numbers),
		Plan:               plan.Name,
		PlanDisplayName:    plan.DisplayName,
		SubscriptionStatus: user.Subscription.Status,
		HasAccess:          user.HasAccess,
	}

	var totalSec, successWeighted, durationWeight float64
	for _, a := range assistants {
		if a.Status == models.AssistantStatusActive {
			o.ActiveAssistants++
		}
		o.TotalCalls += a.Stats.TotalCalls
		o.TotalMinutes += a.Stats.TotalMinutes
		successWeighted += a.Stats.SuccessRate * float64(a.Stats.TotalCalls)
		if a.Stats.AverageDurationSec > 0 {
			totalSec += a.Stats.TotalMinutes * 60
			durationWeight += a.Stats.TotalMinutes * 60 / a.Stats.AverageDurationSec
		}
	}
	o.TotalMinutes = round(o.TotalMinutes, 2)
	if o.TotalCalls > 0 {
		o.SuccessRate = round(successWeighted/float64(o.TotalCalls), 1)
	}
	if durationWeight > 0 {
		o.AverageDurationSec = round(totalSec/durationWeight, 1)
	}

	o.MinutesUsed = user.Usage.MinutesUsed
	if o.MinutesUsed == 0 {
		o.MinutesUsed = o.TotalMinutes
	}
	o.MinutesLimit = user.Usage.MinutesLimit
	if o.MinutesLimit == 0 {
		o.MinutesLimit = plan.MinutesLimit
	}
	if o.MinutesLimit > 0 {
		o.UsagePercent = round(o.MinutesUsed/o.MinutesLimit*100, 1)
	}
	return o, nil
}
