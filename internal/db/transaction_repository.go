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

type mongoTransactionRepository struct {
	col *mongo.Collection
}

// NewMongoTransactionRepository creates a new TransactionRepository backed by MongoDB.
func NewMongoTransactionRepository(m *Mongo) TransactionRepository {
	return &mongoTransactionRepository{col: m.DB.Collection(transactionsCollection)}
}

// Upsert writes tx keyed by externalId; amounts and ownership are immutable once stored.
func (r *mongoTransactionRepository) Upsert(ctx context.Context, tx *models.Transaction) (bool, error) {
	if tx.ExternalID == "" {
		return false, fmt.Errorf("transaction upsert requires an external id")
	}
	set := bson.M{"status": tx.Status}
	setIfNotEmpty(set, "receiptUrl", tx.ReceiptURL)
	setIfNotEmpty(set, "invoiceUrl", tx.InvoiceURL)
	setIfNotEmpty(set, "invoicePdf", tx.InvoicePDF)

	update := bson.M{
		"$setOnInsert": bson.M{
			"userId":      tx.UserID,
			"customerId":  tx.CustomerID,
			"priceId":     tx.PriceID,
			"amountCents": tx.AmountCents,
			"currency":    tx.Currency,
			"description": tx.Description,
			"occurredAt":  tx.OccurredAt,
			"createdAt":   time.Now().UTC(),
		},
		"$set": set,
	}
	filter := bson.M{"externalId": tx.ExternalID}
	opts := options.UpdateOne().SetUpsert(true)

	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		res, err = r.col.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert transaction '%s': %w", tx.ExternalID, err)
	}
	return res.UpsertedCount > 0, nil
}

func (r *mongoTransactionRepository) ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user '%s': %w", userID.Hex(), err)
	}
	txs := []*models.Transaction{}
	if err := cur.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions for user '%s': %w", userID.Hex(), err)
	}
	return txs, nil
}
