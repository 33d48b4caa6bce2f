package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents a dashboard account together with its subscription snapshot.
type User struct {
	ID            bson.ObjectID        `json:"id" bson:"_id,omitempty"`
	Email         string               `json:"email" bson:"email"`
	Name          string               `json:"name,omitempty" bson:"name,omitempty"`
	Image         string               `json:"image,omitempty" bson:"image,omitempty"`
	Company       string               `json:"company,omitempty" bson:"company,omitempty"`
	Phone         string               `json:"phone,omitempty" bson:"phone,omitempty"`
	Timezone      string               `json:"timezone,omitempty" bson:"timezone,omitempty"`
	PasswordHash  string               `json:"-" bson:"passwordHash,omitempty"`
	AuthSubject   string               `json:"-" bson:"authSubject,omitempty"` // identity provider UID bound to this account
	CustomerID    string               `json:"customerId,omitempty" bson:"customerId,omitempty"` // Stripe customer
	PriceID       string               `json:"priceId,omitempty" bson:"priceId,omitempty"`
	HasAccess     bool                 `json:"hasAccess" bson:"hasAccess"`
	Subscription  Subscription         `json:"subscription" bson:"subscription"`
	Usage         Usage                `json:"usage" bson:"usage"`
	Notifications NotificationSettings `json:"notifications" bson:"notifications"`
	CreatedAt     time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// Subscription is the locally recorded copy of the user's Stripe subscription.
type Subscription struct {
	ID                 string     `json:"id,omitempty" bson:"id,omitempty"`
	Plan               string     `json:"plan" bson:"plan"`
	Status             string     `json:"status" bson:"status"` // e.g. "active", "past_due", "canceled"
	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty" bson:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty" bson:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd" bson:"cancelAtPeriodEnd"`
}

// Usage holds the per-period counters shown on the dashboard.
type Usage struct {
	MinutesUsed  float64 `json:"minutesUsed" bson:"minutesUsed"`
	MinutesLimit float64 `json:"minutesLimit" bson:"minutesLimit"`
	CallsCount   int64   `json:"callsCount" bson:"callsCount"`
}

// NotificationSettings are the per-user e-mail preferences.
type NotificationSettings struct {
	EmailNotifications bool `json:"emailNotifications" bson:"emailNotifications"`
	CallSummaries      bool `json:"callSummaries" bson:"callSummaries"`
	BillingAlerts      bool `json:"billingAlerts" bson:"billingAlerts"`
	ProductUpdates     bool `json:"productUpdates" bson:"productUpdates"`
	WeeklyReports      bool `json:"weeklyReports" bson:"weeklyReports"`
}

// DefaultNotificationSettings is applied to newly created users.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		EmailNotifications: true,
		CallSummaries:      true,
		BillingAlerts:      true,
		ProductUpdates:     false,
		WeeklyReports:      false,
	}
}
