package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Invoice source values.
const (
	InvoiceSourceWebhook = "webhook"
	InvoiceSourceRepair  = "read_repair"
)

// Invoice is the display record derived from a payment. StripeInvoiceID is the
// external transaction id and is unique across the collection.
type Invoice struct {
	ID               bson.ObjectID `json:"id" bson:"_id,omitempty"`
	InvoiceID        string        `json:"invoiceId" bson:"invoiceId"` // Generated, human readable
	UserID           bson.ObjectID `json:"userId" bson:"userId"`
	StripeInvoiceID  string        `json:"stripeInvoiceId" bson:"stripeInvoiceId"`
	AmountCents      int64         `json:"amountCents" bson:"amountCents"`
	Amount           float64       `json:"amount" bson:"amount"`
	Currency         string        `json:"currency" bson:"currency"`
	Status           string        `json:"status" bson:"status"`
	Description      string        `json:"description,omitempty" bson:"description,omitempty"`
	PlanName         string        `json:"planName,omitempty" bson:"planName,omitempty"`
	HostedInvoiceURL string        `json:"hostedInvoiceUrl,omitempty" bson:"hostedInvoiceUrl,omitempty"`
	InvoicePDF       string        `json:"invoicePdf,omitempty" bson:"invoicePdf,omitempty"`
	ReceiptURL       string        `json:"receiptUrl,omitempty" bson:"receiptUrl,omitempty"`
	Source           string        `json:"source" bson:"source"`
	IssuedAt         time.Time     `json:"issuedAt" bson:"issuedAt"`
	CreatedAt        time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// Transaction is the normalized payment record keyed by the provider's id.
type Transaction struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	ExternalID  string        `json:"externalId" bson:"externalId"`
	UserID      bson.ObjectID `json:"userId" bson:"userId"`
	CustomerID  string        `json:"customerId,omitempty" bson:"customerId,omitempty"`
	PriceID     string        `json:"priceId,omitempty" bson:"priceId,omitempty"`
	AmountCents int64         `json:"amountCents" bson:"amountCents"`
	Currency    string        `json:"currency" bson:"currency"`
	Status      string        `json:"status" bson:"status"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	ReceiptURL  string        `json:"receiptUrl,omitempty" bson:"receiptUrl,omitempty"`
	InvoiceURL  string        `json:"invoiceUrl,omitempty" bson:"invoiceUrl,omitempty"`
	InvoicePDF  string        `json:"invoicePdf,omitempty" bson:"invoicePdf,omitempty"`
	OccurredAt  time.Time     `json:"occurredAt" bson:"occurredAt"`
	CreatedAt   time.Time     `json:"createdAt" bson:"createdAt"`
}
