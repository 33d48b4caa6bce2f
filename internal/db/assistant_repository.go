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

type mongoAssistantRepository struct {
	col *mongo.Collection
}

// NewMongoAssistantRepository creates a new AssistantRepository backed by MongoDB.
func NewMongoAssistantRepository(m *Mongo) AssistantRepository {
	return &mongoAssistantRepository{col: m.DB.Collection(assistantsCollection)}
}

func (r *mongoAssistantRepository) ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.Assistant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants for user '%s': %w", userID.Hex(), err)
	}
	assistants := []*models.Assistant{}
	if err := cur.All(ctx, &assistants); err != nil {
		return nil, fmt.Errorf("failed to decode assistants for user '%s': %w", userID.Hex(), err)
	}
	return assistants, nil
}

func (r *mongoAssistantRepository) GetByID(ctx context.Context, userID, id bson.ObjectID) (*models.Assistant, error) {
	var a models.Assistant
	err := r.col.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&a)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assistant '%s' not found: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get assistant '%s': %w", id.Hex(), err)
	}
	return &a, nil
}

func (r *mongoAssistantRepository) Create(ctx context.Context, a *models.Assistant) error {
	if a.ID.IsZero() {
		a.ID = bson.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a.
func (r *mongoAssistantRepository) Update(ctx context.Context, a *models.Assistant) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": a.ID, "userId": a.UserID},
		bson.M{"$set": bson.M{
			"name":      a.Name,
			"status":    a.Status,
			"config":    a.Config,
			"updatedAt": a.UpdatedAt,
		}})
	if err != nil {
		return fmt.Errorf("failed to update assistant '%s': %w", a.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("assistant '%s' not found for update: %w", a.ID.Hex(), ErrNotFound)
	}
	return nil
}

func (r *mongoAssistantRepository) UpdateStatus(ctx context.Context, userID, id bson.ObjectID, status string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update status of assistant '%s': %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("assistant '%s' not found for update: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// UpdateStats stores stats only while the stored watermark still equals
// prevSyncedThrough. A nil prevSyncedThrough matches documents without one.
// It reports false when another refresh got there first.
func (r *mongoAssistantRepository) UpdateStats(ctx context.Context, id bson.ObjectID, prevSyncedThrough *time.Time, stats models.AssistantStats, refreshedAt time.Time) (bool, error) {
	filter := bson.M{"_id": id, "stats.syncedThrough": nil}
	if prevSyncedThrough != nil {
		filter["stats.syncedThrough"] = *prevSyncedThrough
	}
	res, err := r.col.UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"stats": stats, "statsRefreshedAt": refreshedAt}})
	if err != nil {
		return false, fmt.Errorf("failed to update stats of assistant '%s': %w", id.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoAssistantRepository) SetPhoneNumber(ctx context.Context, id bson.ObjectID, phoneID *bson.ObjectID) error {
	update := bson.M{"$set": bson.M{"updatedAt": time.Now().UTC()}}
	if phoneID == nil {
		update["$unset"] = bson.M{"phoneNumberId": ""}
	} else {
		update["$set"].(bson.M)["phoneNumberId"] = *phoneID
	}
	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to set phone number of assistant '%s': %w", id.Hex(), err)
	}
	return nil
}

func (r *mongoAssistantRepository) CountByUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count assistants for user '%s': %w", userID.Hex(), err)
	}
	return n, nil
}

func (r *mongoAssistantRepository) Delete(ctx context.Context, userID, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete assistant '%s': %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("assistant '%s' not found for deletion: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
