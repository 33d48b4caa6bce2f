package models

import "go.mongodb.org/mongo-driver/v2/bson"

// ClientRecord is a document from the legacy "clients" collection. It predates
// the normalized collections and was written by several code paths, so UserID,
// dates and amounts have no fixed type; see db.MatchUserKey and the legacy
// parsers in core.
type ClientRecord struct {
	ID           bson.ObjectID       `bson:"_id,omitempty"`
	UserID       any                 `bson:"userId,omitempty"`
	Email        string              `bson:"email,omitempty"`
	Purchases    []ClientPurchase    `bson:"purchases,omitempty"`
	Transactions []ClientTransaction `bson:"transactions,omitempty"`
}

// ClientTransaction is one entry of a legacy transactions array. Entries pushed by
// the webhook use the typed fields; older ones may carry a per-entry owner.
type ClientTransaction struct {
	ID          string `bson:"id"`
	UserID      any    `bson:"userId,omitempty"`
	Email       string `bson:"email,omitempty"`
	Date        any    `bson:"date,omitempty"`
	Amount      any    `bson:"amount,omitempty"` // major units
	Currency    string `bson:"currency,omitempty"`
	Status      string `bson:"status,omitempty"`
	Description string `bson:"description,omitempty"`
	PriceID     string `bson:"priceId,omitempty"`
	ReceiptURL  string `bson:"receiptUrl,omitempty"`
	InvoiceURL  string `bson:"invoiceUrl,omitempty"`
	InvoicePDF  string `bson:"invoicePdf,omitempty"`
}

// ClientPurchase is one entry of a legacy purchases array.
type ClientPurchase struct {
	ID            string `bson:"id,omitempty"`
	UserID        any    `bson:"userId,omitempty"`
	Email         string `bson:"email,omitempty"`
	Plan          string `bson:"plan,omitempty"`
	PriceID       string `bson:"priceId,omitempty"`
	Amount        any    `bson:"amount,omitempty"`
	Currency      string `bson:"currency,omitempty"`
	Status        string `bson:"status,omitempty"`
	Date          any    `bson:"date,omitempty"`
	PeriodEnd     any    `bson:"periodEnd,omitempty"`
	CardBrand     string `bson:"cardBrand,omitempty"`
	CardLast4     string `bson:"cardLast4,omitempty"`
	CardExpMonth  any    `bson:"cardExpMonth,omitempty"`
	CardExpYear   any    `bson:"cardExpYear,omitempty"`
	TransactionID string `bson:"transactionId,omitempty"`
	ReceiptURL    string `bson:"receiptUrl,omitempty"`
}
