package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"voicedesk-backend-go/internal/models"
)

type mongoInvoiceRepository struct {
	col *mongo.Collection
}

// NewMongoInvoiceRepository creates a new InvoiceRepository backed by MongoDB.
func NewMongoInvoiceRepository(m *Mongo) InvoiceRepository {
	return &mongoInvoiceRepository{col: m.DB.Collection(invoicesCollection)}
}

func (r *mongoInvoiceRepository) ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "issuedAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices for user '%s': %w", userID.Hex(), err)
	}
	invoices := []*models.Invoice{}
	if err := cur.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("failed to decode invoices for user '%s': %w", userID.Hex(), err)
	}
	return invoices, nil
}

func (r *mongoInvoiceRepository) GetByStripeID(ctx context.Context, stripeInvoiceID string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.col.FindOne(ctx, bson.M{"stripeInvoiceId": stripeInvoiceID}).Decode(&inv); err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("invoice '%s' not found: %w", stripeInvoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice '%s': %w", stripeInvoiceID, err)
	}
	return &inv, nil
}

// Upsert is a single atomic write keyed by stripeInvoiceId. The generated
// invoiceId, the amount and the creation data are only written on insert, so a
// replayed event can refresh status and links but never renumber or reprice.
func (r *mongoInvoiceRepository) Upsert(ctx context.Context, inv *models.Invoice) (bool, error) {
	if inv.StripeInvoiceID == "" {
		return false, fmt.Errorf("invoice upsert requires a stripe invoice id")
	}
	now := time.Now().UTC()
	set := bson.M{"status": inv.Status, "updatedAt": now}
	setIfNotEmpty(set, "hostedInvoiceUrl", inv.HostedInvoiceURL)
	setIfNotEmpty(set, "invoicePdf", inv.InvoicePDF)
	setIfNotEmpty(set, "receiptUrl", inv.ReceiptURL)

	update := bson.M{
		"$setOnInsert": bson.M{
			"invoiceId":   inv.InvoiceID,
			"userId":      inv.UserID,
			"amountCents": inv.AmountCents,
			"amount":      inv.Amount,
			"currency":    inv.Currency,
			"description": inv.Description,
			"planName":    inv.PlanName,
			"source":      inv.Source,
			"issuedAt":    inv.IssuedAt,
			"createdAt":   now,
		},
		"$set": set,
	}
	filter := bson.M{"stripeInvoiceId": inv.StripeInvoiceID}
	opts := options.UpdateOne().SetUpsert(true)

	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Lost an insert race with a concurrent delivery; the document exists now.
		res, err = r.col.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert invoice '%s': %w", inv.StripeInvoiceID, err)
	}
	return res.UpsertedCount > 0, nil
}

func setIfNotEmpty(set bson.M, path, value string) {
	if value != "" {
		set[path] = value
	}
}
