package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

// Collection names.
const (
	usersCollection        = "users"
	assistantsCollection   = "assistants"
	phoneNumbersCollection = "phone_numbers"
	invoicesCollection     = "invoices"
	transactionsCollection = "transactions"
	clientsCollection      = "clients"
	auditLogsCollection    = "audit_logs"
)

// Mongo bundles the process-wide client and the application database.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect opens a client against uri and verifies it with a ping.
func Connect(ctx context.Context, uri, dbName string) (*Mongo, error) {
	if uri == "" || dbName == "" {
		return nil, fmt.Errorf("mongo: uri and database name are required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Mongo{Client: client, DB: client.Database(dbName)}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// EnsureIndexes creates every index the repositories rely on. The unique
// indexes on invoices.stripeInvoiceId and transactions.externalId are what make
// webhook replays idempotent.
func (m *Mongo) EnsureIndexes(ctx context.Context, logger *zap.Logger) error {
	for col, models := range migrationIndexes() {
		names, err := m.DB.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
		if logger != nil {
			logger.Info("Indexes ensured", zap.String("collection", col), zap.Strings("indexes", names))
		}
	}
	return nil
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "customerId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{
				Keys: bson.D{{Key: "authSubject", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"authSubject": bson.M{"$type": "string"}}),
			},
		},
		invoicesCollection: {
			{
				Keys: bson.D{{Key: "stripeInvoiceId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"stripeInvoiceId": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "issuedAt", Value: -1}}},
		},
		transactionsCollection: {
			{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "occurredAt", Value: -1}}},
		},
		assistantsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "providerId", Value: 1}}},
		},
		phoneNumbersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "assistantId", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		clientsCollection: {
			// Only documents already keyed by ObjectId take part, legacy string keys are left alone.
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"userId": bson.M{"$type": "objectId"}}),
			},
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		auditLogsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}
