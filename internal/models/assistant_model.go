package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Assistant status values. The provider may report others; they are stored as-is.
const (
	AssistantStatusActive   = "active"
	AssistantStatusInactive = "inactive"
)

// Assistant mirrors a voice assistant hosted by the voice provider.
type Assistant struct {
	ID               bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID           bson.ObjectID   `json:"userId" bson:"userId"`
	ProviderID       string          `json:"providerId" bson:"providerId"` // Remote assistant id
	Name             string          `json:"name" bson:"name"`
	Status           string          `json:"status" bson:"status"`
	Config           AssistantConfig `json:"config" bson:"config"`
	PhoneNumberID    *bson.ObjectID  `json:"phoneNumberId,omitempty" bson:"phoneNumberId,omitempty"`
	Stats            AssistantStats  `json:"stats" bson:"stats"`
	StatsRefreshedAt *time.Time      `json:"statsRefreshedAt,omitempty" bson:"statsRefreshedAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// AssistantConfig is the subset of the remote configuration the dashboard edits.
type AssistantConfig struct {
	FirstMessage string  `json:"firstMessage,omitempty" bson:"firstMessage,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty" bson:"systemPrompt,omitempty"`
	Model        string  `json:"model,omitempty" bson:"model,omitempty"`
	ModelVendor  string  `json:"modelVendor,omitempty" bson:"modelVendor,omitempty"`
	Voice        string  `json:"voice,omitempty" bson:"voice,omitempty"`
	VoiceVendor  string  `json:"voiceVendor,omitempty" bson:"voiceVendor,omitempty"`
	Language     string  `json:"language,omitempty" bson:"language,omitempty"`
	Temperature  float64 `json:"temperature,omitempty" bson:"temperature,omitempty"`
}

// AssistantStats are folded from the provider's call log and stored on the
// document. The counters below the derived fields carry the running totals
// between refreshes; SyncedThrough is the creation time of the last folded call.
type AssistantStats struct {
	TotalCalls         int64      `json:"totalCalls" bson:"totalCalls"`
	TotalMinutes       float64    `json:"totalMinutes" bson:"totalMinutes"`
	AverageDurationSec float64    `json:"averageDurationSec" bson:"averageDurationSec"`
	SuccessRate        float64    `json:"successRate" bson:"successRate"` // 0..100
	LastCallAt         *time.Time `json:"lastCallAt,omitempty" bson:"lastCallAt,omitempty"`

	EndedCalls      int64      `json:"-" bson:"endedCalls,omitempty"`
	SuccessfulCalls int64      `json:"-" bson:"successfulCalls,omitempty"`
	TalkSeconds     float64    `json:"-" bson:"talkSeconds,omitempty"`
	SyncedThrough   *time.Time `json:"-" bson:"syncedThrough,omitempty"`
}
