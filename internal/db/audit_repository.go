package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"voicedesk-backend-go/internal/models"
)

// mongoAuditRepository stores audit entries next to the rest of the data when
// Firebase is not configured.
type mongoAuditRepository struct {
	col *mongo.Collection
}

// NewMongoAuditRepository creates an AuditRepository backed by MongoDB.
func NewMongoAuditRepository(m *Mongo) AuditRepository {
	return &mongoAuditRepository{col: m.DB.Collection(auditLogsCollection)}
}

type auditDocument struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	models.AuditLog `bson:",inline"`
}

func (r *mongoAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if _, err := r.col.InsertOne(ctx, auditDocument{AuditLog: logEntry}); err != nil {
		return fmt.Errorf("failed to create audit log for user '%s': %w", logEntry.UserID, err)
	}
	return nil
}

func (r *mongoAuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs for user '%s': %w", userID, err)
	}
	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs for user '%s': %w", userID, err)
	}
	logs := make([]*models.AuditLog, 0, len(docs))
	for i := range docs {
		entry := docs[i].AuditLog
		entry.ID = docs[i].ID.Hex()
		logs = append(logs, &entry)
	}
	return logs, nil
}
