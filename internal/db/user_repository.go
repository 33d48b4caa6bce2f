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

// mongoUserRepository implements the UserRepository interface using MongoDB.
type mongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
func NewMongoUserRepository(m *Mongo) UserRepository {
	return &mongoUserRepository{col: m.DB.Collection(usersCollection)}
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	var user models.User
	if err := r.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user %s not found: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", what, err)
	}
	return &user, nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "with ID '"+id.Hex()+"'")
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty: %w", ErrNotFound)
	}
	return r.findOne(ctx, bson.M{"email": email}, "with email '"+email+"'")
}

func (r *mongoUserRepository) GetByAuthSubject(ctx context.Context, subject string) (*models.User, error) {
	if subject == "" {
		return nil, fmt.Errorf("auth subject cannot be empty: %w", ErrNotFound)
	}
	return r.findOne(ctx, bson.M{"authSubject": subject}, "with auth subject '"+subject+"'")
}

// BindAuthSubject records subject on a user that has none yet. It fails with
// ErrDuplicate when the user is already bound or the subject belongs to
// another user.
func (r *mongoUserRepository) BindAuthSubject(ctx context.Context, id bson.ObjectID, subject string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "authSubject": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"authSubject": subject, "updatedAt": time.Now().UTC()}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("auth subject '%s' is bound to another user: %w", subject, ErrDuplicate)
		}
		return fmt.Errorf("failed to bind auth subject of user '%s': %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user '%s' is already bound to an auth subject: %w", id.Hex(), ErrDuplicate)
	}
	return nil
}

func (r *mongoUserRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id cannot be empty: %w", ErrNotFound)
	}
	return r.findOne(ctx, bson.M{"customerId": customerID}, "with customer '"+customerID+"'")
}

// Create inserts user, assigning a new ObjectID when none is set.
func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	user.Email = normalizeEmail(user.Email)
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user with email '%s' or its auth subject already exists: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user '%s': %w", user.Email, err)
	}
	return nil
}

func (r *mongoUserRepository) SetBillingCustomer(ctx context.Context, id bson.ObjectID, customerID, priceID, plan string) error {
	set := bson.M{"customerId": customerID, "updatedAt": time.Now().UTC()}
	if priceID != "" {
		set["priceId"] = priceID
	}
	if plan != "" {
		set["subscription.plan"] = plan
	}
	return r.updateByID(ctx, id, bson.M{"$set": set})
}

func (r *mongoUserRepository) UpdateSubscription(ctx context.Context, id bson.ObjectID, sub models.Subscription) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"subscription": sub, "updatedAt": time.Now().UTC()}})
}

func (r *mongoUserRepository) SetAccess(ctx context.Context, id bson.ObjectID, hasAccess bool) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"hasAccess": hasAccess, "updatedAt": time.Now().UTC()}})
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, id bson.ObjectID, req models.UpdateProfileRequest) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	setIfPresent(set, "name", req.Name)
	setIfPresent(set, "company", req.Company)
	setIfPresent(set, "phone", req.Phone)
	setIfPresent(set, "timezone", req.Timezone)
	setIfPresent(set, "image", req.Image)
	return r.findOneAndSet(ctx, id, set)
}

// UpdateNotifications writes each provided flag under its own dotted path so the
// omitted flags keep their stored values.
func (r *mongoUserRepository) UpdateNotifications(ctx context.Context, id bson.ObjectID, req models.UpdateNotificationsRequest) (*models.User, error) {
	return r.findOneAndSet(ctx, id, notificationsSet(req, time.Now().UTC()))
}

func notificationsSet(req models.UpdateNotificationsRequest, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	setIfPresent(set, "notifications.emailNotifications", req.EmailNotifications)
	setIfPresent(set, "notifications.callSummaries", req.CallSummaries)
	setIfPresent(set, "notifications.billingAlerts", req.BillingAlerts)
	setIfPresent(set, "notifications.productUpdates", req.ProductUpdates)
	setIfPresent(set, "notifications.weeklyReports", req.WeeklyReports)
	return set
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id bson.ObjectID, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()}})
}

func (r *mongoUserRepository) IncrementUsage(ctx context.Context, id bson.ObjectID, minutes float64, calls int64) error {
	return r.updateByID(ctx, id, bson.M{
		"$inc": bson.M{"usage.minutesUsed": minutes, "usage.callsCount": calls},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoUserRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user '%s': %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("user '%s' not found for deletion: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (r *mongoUserRepository) updateByID(ctx context.Context, id bson.ObjectID, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update user '%s': %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user '%s' not found for update: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (r *mongoUserRepository) findOneAndSet(ctx context.Context, id bson.ObjectID, set bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user '%s' not found for update: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update user '%s': %w", id.Hex(), err)
	}
	return &user, nil
}

func setIfPresent[T any](set bson.M, path string, value *T) {
	if value != nil {
		set[path] = *value
	}
}
