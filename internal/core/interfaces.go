package core

import (
	"context"
	"time"

	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
)

// Identity is the authenticated caller as reported by the token verifier.
// Subject is a Firebase UID or, for session tokens, the user's ObjectID hex.
// Email is only trusted for account lookup when EmailVerified is set.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetOrCreate resolves the caller's user and creates it with free-plan defaults if missing.
	GetOrCreate(ctx context.Context, identity Identity) (*models.User, bool, error)
	Resolve(ctx context.Context, identity Identity) (*models.User, error)
	// FindByRef accepts an ObjectID hex or an e-mail address.
	FindByRef(ctx context.Context, ref string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User, req models.UpdateProfileRequest) (*models.User, error)
	UpdateNotifications(ctx context.Context, user *models.User, req models.UpdateNotificationsRequest) (*models.User, error)
	ChangePassword(ctx context.Context, user *models.User, req models.ChangePasswordRequest) error
	DeleteAccount(ctx context.Context, user *models.User) error
}

// BillingService defines the interface for billing operations (e.g., Stripe integration).
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, user *models.User, priceID string) (*payments.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, user *models.User) (string, error)
	CancelSubscription(ctx context.Context, user *models.User) (*models.Subscription, error)
	// HandleStripeWebhook verifies and applies a webhook delivery. Errors wrapping
	// payments.ErrSignature or ErrWebhookPayload are the caller's fault.
	HandleStripeWebhook(ctx context.Context, signature string, payload []byte) error
}

// ReconcileService serves the billing views, rebuilding them from legacy data when needed.
type ReconcileService interface {
	ListInvoices(ctx context.Context, user *models.User) ([]*models.Invoice, error)
	ListPaymentMethods(ctx context.Context, user *models.User) ([]payments.Card, error)
	GetSubscription(ctx context.Context, user *models.User) (*SubscriptionView, error)
	// RebuildInvoices re-runs the invoice repair even when invoices already exist.
	RebuildInvoices(ctx context.Context, user *models.User) (int, error)
}

// AssistantService manages assistants mirrored from the voice provider.
type AssistantService interface {
	List(ctx context.Context, user *models.User) ([]*models.Assistant, error)
	Get(ctx context.Context, user *models.User, id string) (*models.Assistant, error)
	Create(ctx context.Context, user *models.User, req models.CreateAssistantRequest) (*models.Assistant, error)
	Update(ctx context.Context, user *models.User, id string, req models.UpdateAssistantRequest) (*models.Assistant, error)
	Delete(ctx context.Context, user *models.User, id string) error
	Toggle(ctx context.Context, user *models.User, id string) (*models.Assistant, error)
	RefreshStats(ctx context.Context, user *models.User, id string, force bool) (*models.AssistantStats, error)
}

// PhoneNumberService manages phone numbers mirrored from the voice provider.
type PhoneNumberService interface {
	List(ctx context.Context, user *models.User) ([]*models.PhoneNumber, error)
	Create(ctx context.Context, user *models.User, req models.CreatePhoneNumberRequest) (*models.PhoneNumber, error)
	Delete(ctx context.Context, user *models.User, id string) error
	// Assign attaches the number to assistantID, or detaches it when assistantID is nil.
	Assign(ctx context.Context, user *models.User, id string, assistantID *string) (*models.PhoneNumber, error)
}

// StatsService builds the dashboard overview.
type StatsService interface {
	Overview(ctx context.Context, user *models.User) (*Overview, error)
}

// NotificationService turns billing events into e-mails.
type NotificationService interface {
	HandleBillingEvent(ctx context.Context, body []byte) error
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
	// Record writes an entry and only logs failures.
	Record(ctx context.Context, userID, action, targetType, targetID string, details map[string]interface{})
	ListActivity(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}

// EventPublisher is satisfied by messagequeue.RabbitMQService.
type EventPublisher interface {
	PublishJSON(ctx context.Context, queueName string, v interface{}) error
}

// EmailSender is satisfied by mailer.Mailer.
type EmailSender interface {
	Send(recipient, subject, body string) error
}

// Billing event types published to the billing events queue.
const (
	BillingEventPaymentSucceeded     = "payment_succeeded"
	BillingEventPaymentFailed        = "payment_failed"
	BillingEventSubscriptionCanceled = "subscription_canceled"
)

// BillingEvent is the message published after a billing state change.
type BillingEvent struct {
	Type        string    `json:"type"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	AmountCents int64     `json:"amountCents,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	PlanName    string    `json:"planName,omitempty"`
	InvoiceURL  string    `json:"invoiceUrl,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// SubscriptionView is the subscription route's response.
type SubscriptionView struct {
	models.Subscription
	PlanDetails PlanDetails  `json:"planDetails"`
	HasAccess   bool         `json:"hasAccess"`
	Usage       models.Usage `json:"usage"`
	Source      string       `json:"source"` // "snapshot" or "read_repair"
}

// PlanDetails is the public part of a catalog plan.
type PlanDetails struct {
	Name              string  `json:"name"`
	DisplayName       string  `json:"displayName"`
	MonthlyPriceCents int64   `json:"monthlyPriceCents"`
	MaxAssistants     int     `json:"maxAssistants"`
	MaxPhoneNumbers   int     `json:"maxPhoneNumbers"`
	MinutesLimit      float64 `json:"minutesLimit"`
}

// Overview is the dashboard stats response.
type Overview struct {
	TotalAssistants    int     `json:"totalAssistants"`
	ActiveAssistants   int     `json:"activeAssistants"`
	PhoneNumbers       int     `json:"phoneNumbers"`
	TotalCalls         int64   `json:"totalCalls"`
	TotalMinutes       float64 `json:"totalMinutes"`
	AverageDurationSec float64 `json:"averageDurationSec"`
	SuccessRate        float64 `json:"successRate"`
	Plan               string  `json:"plan"`
	PlanDisplayName    string  `json:"planDisplayName"`
	SubscriptionStatus string  `json:"subscriptionStatus"`
	HasAccess          bool    `json:"hasAccess"`
	MinutesUsed        float64 `json:"minutesUsed"`
	MinutesLimit       float64 `json:"minutesLimit"`
	UsagePercent       float64 `json:"usagePercent"`
}
