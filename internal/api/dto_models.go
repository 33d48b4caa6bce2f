package api

import "voicedesk-backend-go/internal/models"

// ErrorResponse is the body of every error returned by the API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message
	Details string `json:"details,omitempty"` // More specific details, never set for internal errors
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// WebhookAck acknowledges a processed Stripe event.
type WebhookAck struct {
	Received bool `json:"received"`
}

// InitializeUserResponse is returned by POST /api/users/initialize.
type InitializeUserResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

// PortalSessionResponse carries the Stripe customer portal URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}
