package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PhoneNumber mirrors a phone number registered with the voice provider.
type PhoneNumber struct {
	ID          bson.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID      bson.ObjectID  `json:"userId" bson:"userId"`
	ProviderID  string         `json:"providerId" bson:"providerId"`
	Number      string         `json:"number" bson:"number"`
	Name        string         `json:"name,omitempty" bson:"name,omitempty"`
	Carrier     string         `json:"carrier" bson:"carrier"` // "vapi", "twilio", ...
	Status      string         `json:"status" bson:"status"`
	AssistantID *bson.ObjectID `json:"assistantId,omitempty" bson:"assistantId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}
