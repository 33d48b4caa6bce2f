package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voicedesk-backend-go/internal/models"
)

const firestoreAuditCollection = "auditLogs"

// firestoreAuditRepository implements AuditRepository on Firestore.
type firestoreAuditRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreAuditRepository creates a new instance of firestoreAuditRepository.
func NewFirestoreAuditRepository(client *firestore.Client, logger *zap.Logger) AuditRepository {
	if client == nil {
		logger.Fatal("Firestore client is not initialized for AuditRepository")
	}
	return &firestoreAuditRepository{client: client, logger: logger}
}

// Create adds a new audit log entry with an auto-generated document ID.
func (r *firestoreAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	docRef := r.client.Collection(firestoreAuditCollection).NewDoc()
	if _, err := docRef.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListByUser returns the most recent entries for userID, newest first.
func (r *firestoreAuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	query := r.client.Collection(firestoreAuditCollection).
		Where("userId", "==", userID).
		OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	logs := []*models.AuditLog{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.FailedPrecondition {
				// The composite index (userId, timestamp desc) has not been created yet.
				return nil, fmt.Errorf("audit log index missing for user '%s': %w", userID, err)
			}
			return nil, fmt.Errorf("failed to iterate audit logs for user '%s': %w", userID, err)
		}
		var entry models.AuditLog
		if err := doc.DataTo(&entry); err != nil {
			r.logger.Warn("Skipping undecodable audit log", zap.String("docID", doc.Ref.ID), zap.Error(err))
			continue
		}
		entry.ID = doc.Ref.ID
		logs = append(logs, &entry)
	}
	return logs, nil
}
