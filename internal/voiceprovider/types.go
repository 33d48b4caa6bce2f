package voiceprovider

import (
	"strings"
	"time"
)

// AssistantSpec is what the dashboard sends when creating or updating an assistant.
// Nil/empty fields are left out of the request.
type AssistantSpec struct {
	Name         string
	FirstMessage string
	SystemPrompt string
	Model        string
	ModelVendor  string
	Voice        string
	VoiceVendor  string
	Language     string
	Temperature  float64
}

// Assistant is the provider's view of an assistant.
type Assistant struct {
	ID           string     `json:"id"`
	OrgID        string     `json:"orgId,omitempty"`
	Name         string     `json:"name"`
	FirstMessage string     `json:"firstMessage,omitempty"`
	Model        *ModelSpec `json:"model,omitempty"`
	Voice        *VoiceSpec `json:"voice,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ModelSpec is the LLM section of an assistant.
type ModelSpec struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
}

// Message is a prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VoiceSpec is the TTS section of an assistant.
type VoiceSpec struct {
	Provider string `json:"provider,omitempty"`
	VoiceID  string `json:"voiceId,omitempty"`
}

// TranscriberSpec is the STT section of an assistant.
type TranscriberSpec struct {
	Provider string `json:"provider,omitempty"`
	Language string `json:"language,omitempty"`
}

// Call is a single call handled by an assistant.
type Call struct {
	ID          string     `json:"id"`
	AssistantID string     `json:"assistantId"`
	Type        string     `json:"type"`
	Status      string     `json:"status"` // "queued", "ringing", "in-progress", "ended"
	EndedReason string     `json:"endedReason,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Cost        float64    `json:"cost,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

var unsuccessfulEndings = []string{"error", "did-not-answer", "customer-busy", "voicemail", "failed"}

// Duration is the talk time of an ended call.
func (c *Call) Duration() time.Duration {
	if c.StartedAt == nil || c.EndedAt == nil || c.EndedAt.Before(*c.StartedAt) {
		return 0
	}
	return c.EndedAt.Sub(*c.StartedAt)
}

// Successful reports whether the call ended without a failure reason.
func (c *Call) Successful() bool {
	if c.Status != "ended" {
		return false
	}
	reason := strings.ToLower(c.EndedReason)
	for _, bad := range unsuccessfulEndings {
		if strings.Contains(reason, bad) {
			return false
		}
	}
	return true
}

// PhoneNumberSpec describes a number to buy or import.
type PhoneNumberSpec struct {
	Provider    string `json:"provider"`
	Number      string `json:"number,omitempty"`
	Name        string `json:"name,omitempty"`
	AreaCode    string `json:"numberDesiredAreaCode,omitempty"`
	AssistantID string `json:"assistantId,omitempty"`
}

// PhoneNumber is the provider's view of a phone number.
type PhoneNumber struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	Name        string    `json:"name,omitempty"`
	Provider    string    `json:"provider"`
	Status      string    `json:"status,omitempty"`
	AssistantID string    `json:"assistantId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
