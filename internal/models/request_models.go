package models

import "encoding/json"

// CreateAssistantRequest represents the request body for creating a new assistant.
type CreateAssistantRequest struct {
	Name   string          `json:"name" binding:"required,max=80"`
	Config AssistantConfig `json:"config"`
}

// UpdateAssistantRequest represents the request body for updating an assistant.
// Pointers are used to distinguish between empty values and fields not provided for update.
type UpdateAssistantRequest struct {
	Name         *string  `json:"name,omitempty" binding:"omitempty,max=80"`
	FirstMessage *string  `json:"firstMessage,omitempty"`
	SystemPrompt *string  `json:"systemPrompt,omitempty"`
	Model        *string  `json:"model,omitempty"`
	ModelVendor  *string  `json:"modelVendor,omitempty"`
	Voice        *string  `json:"voice,omitempty"`
	VoiceVendor  *string  `json:"voiceVendor,omitempty"`
	Language     *string  `json:"language,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
}

// CreatePhoneNumberRequest represents the request body for registering a phone number.
// An empty Number asks the provider to allocate one.
type CreatePhoneNumberRequest struct {
	Number      string `json:"number,omitempty" binding:"omitempty,e164"`
	Name        string `json:"name,omitempty"`
	Carrier     string `json:"carrier,omitempty"`
	AreaCode    string `json:"areaCode,omitempty"`
	AssistantID string `json:"assistantId,omitempty" binding:"omitempty,objectid"`
}

// AssignPhoneNumberRequest attaches a number to an assistant. A nil AssistantID unassigns it.
type AssignPhoneNumberRequest struct {
	AssistantID *string `json:"assistantId" binding:"omitempty,objectid"`
}

// UpdateProfileSectionRequest is the body of PATCH /profile. Data is decoded
// according to Section.
type UpdateProfileSectionRequest struct {
	Section string          `json:"section" binding:"required,oneof=profile notifications password"`
	Data    json.RawMessage `json:"data" binding:"required"`
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" binding:"omitempty,max=120"`
	Company  *string `json:"company,omitempty" binding:"omitempty,max=120"`
	Phone    *string `json:"phone,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
	Image    *string `json:"image,omitempty" binding:"omitempty,url"`
}

// UpdateNotificationsRequest only carries the flags the client wants to change.
type UpdateNotificationsRequest struct {
	EmailNotifications *bool `json:"emailNotifications,omitempty"`
	CallSummaries      *bool `json:"callSummaries,omitempty"`
	BillingAlerts      *bool `json:"billingAlerts,omitempty"`
	ProductUpdates     *bool `json:"productUpdates,omitempty"`
	WeeklyReports      *bool `json:"weeklyReports,omitempty"`
}

// ChangePasswordRequest represents the password section of PATCH /profile.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

// CreateCheckoutSessionRequest selects the plan to subscribe to.
type CreateCheckoutSessionRequest struct {
	PriceID string `json:"priceId" binding:"required"`
}
