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

type mongoPhoneNumberRepository struct {
	col *mongo.Collection
}

// NewMongoPhoneNumberRepository creates a new PhoneNumberRepository backed by MongoDB.
func NewMongoPhoneNumberRepository(m *Mongo) PhoneNumberRepository {
	return &mongoPhoneNumberRepository{col: m.DB.Collection(phoneNumbersCollection)}
}

func (r *mongoPhoneNumberRepository) ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.PhoneNumber, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers for user '%s': %w", userID.Hex(), err)
	}
	numbers := []*models.PhoneNumber{}
	if err := cur.All(ctx, &numbers); err != nil {
		return nil, fmt.Errorf("failed to decode phone numbers for user '%s': %w", userID.Hex(), err)
	}
	return numbers, nil
}

func (r *mongoPhoneNumberRepository) GetByID(ctx context.Context, userID, id bson.ObjectID) (*models.PhoneNumber, error) {
	var n models.PhoneNumber
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&n); err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("phone number '%s' not found: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get phone number '%s': %w", id.Hex(), err)
	}
	return &n, nil
}

func (r *mongoPhoneNumberRepository) Create(ctx context.Context, n *models.PhoneNumber) error {
	if n.ID.IsZero() {
		n.ID = bson.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("failed to create phone number '%s': %w", n.Number, err)
	}
	return nil
}

func (r *mongoPhoneNumberRepository) Assign(ctx context.Context, id bson.ObjectID, assistantID *bson.ObjectID) error {
	update := bson.M{"$set": bson.M{"updatedAt": time.Now().UTC()}}
	if assistantID == nil {
		update["$unset"] = bson.M{"assistantId": ""}
	} else {
		update["$set"].(bson.M)["assistantId"] = *assistantID
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to assign phone number '%s': %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("phone number '%s' not found for assignment: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (r *mongoPhoneNumberRepository) UnassignAssistant(ctx context.Context, assistantID bson.ObjectID) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"assistantId": assistantID},
		bson.M{"$unset": bson.M{"assistantId": ""}, "$set": bson.M{"updatedAt": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to unassign phone numbers from assistant '%s': %w", assistantID.Hex(), err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoPhoneNumberRepository) Delete(ctx context.Context, userID, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete phone number '%s': %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("phone number '%s' not found for deletion: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
