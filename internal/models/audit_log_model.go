package models

import "time"

// AuditLog represents an account activity event.
type AuditLog struct {
	ID         string                 `json:"id" bson:"-" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
	UserID     string                 `json:"userId" bson:"userId" firestore:"userId"`
	Action     string                 `json:"action" bson:"action" firestore:"action"` // e.g. "PROFILE_UPDATE", "SUBSCRIPTION_CANCEL"
	TargetType string                 `json:"targetType,omitempty" bson:"targetType,omitempty" firestore:"targetType,omitempty"`
	TargetID   string                 `json:"targetId,omitempty" bson:"targetId,omitempty" firestore:"targetId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" bson:"details,omitempty" firestore:"details,omitempty"`
}
