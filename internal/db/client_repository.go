package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"voicedesk-backend-go/internal/models"
)

// KeyMigrationReport summarizes a NormalizeKeys run.
type KeyMigrationReport struct {
	Scanned     int      `json:"scanned" yaml:"scanned"`
	Converted   int      `json:"converted" yaml:"converted"`
	Unparseable []string `json:"unparseable,omitempty" yaml:"unparseable,omitempty"` // document ids whose userId is not an ObjectId in any form
	Conflicts   []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`     // document ids whose user already has an ObjectId-keyed document
	DryRun      bool     `json:"dryRun" yaml:"dryRun"`
}

type mongoClientRepository struct {
	col *mongo.Collection
}

// NewMongoClientRepository creates a ClientRepository over the legacy "clients" collection.
func NewMongoClientRepository(m *Mongo) ClientRepository {
	return &mongoClientRepository{col: m.DB.Collection(clientsCollection)}
}

// EnsureDocument creates an ObjectId-keyed document for the user unless one is
// already reachable through any key representation or the email.
func (r *mongoClientRepository) EnsureDocument(ctx context.Context, userID bson.ObjectID, email string) error {
	err := r.col.FindOne(ctx, UserKeyFilter(userID, email)).Err()
	if err == nil {
		return nil
	}
	if !isNoDocuments(err) {
		return fmt.Errorf("failed to look up client document for user '%s': %w", userID.Hex(), err)
	}
	doc := bson.M{
		"userId":       userID,
		"email":        normalizeEmail(email),
		"purchases":    bson.A{},
		"transactions": bson.A{},
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to create client document for user '%s': %w", userID.Hex(), err)
	}
	return nil
}

// AppendTransaction is a conditional push: the filter excludes documents that
// already hold an entry with the same id, so replays leave the array untouched.
func (r *mongoClientRepository) AppendTransaction(ctx context.Context, userID bson.ObjectID, email string, entry models.ClientTransaction) (bool, error) {
	if entry.ID == "" {
		return false, fmt.Errorf("client transaction requires an id")
	}
	filter := bson.M{"$and": bson.A{
		UserKeyFilter(userID, email),
		bson.M{"transactions.id": bson.M{"$ne": entry.ID}},
	}}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"transactions": entry}})
	if err != nil {
		return false, fmt.Errorf("failed to append transaction '%s' for user '%s': %w", entry.ID, userID.Hex(), err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *mongoClientRepository) FindForUser(ctx context.Context, userID bson.ObjectID, email string) ([]*models.ClientRecord, error) {
	return r.find(ctx, UserKeyFilter(userID, email))
}

func (r *mongoClientRepository) FindByEmailDomain(ctx context.Context, domain string) ([]*models.ClientRecord, error) {
	if domain == "" {
		return []*models.ClientRecord{}, nil
	}
	return r.find(ctx, EmailDomainFilter(domain))
}

func (r *mongoClientRepository) find(ctx context.Context, filter bson.M) ([]*models.ClientRecord, error) {
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query client documents: %w", err)
	}
	records := []*models.ClientRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode client documents: %w", err)
	}
	return records, nil
}

// NormalizeKeys rewrites every userId stored as a hex string or nested $oid to a
// real ObjectId.
func (r *mongoClientRepository) NormalizeKeys(ctx context.Context, dryRun bool) (*KeyMigrationReport, error) {
	filter := bson.M{"userId": bson.M{"$exists": true, "$not": bson.M{"$type": "objectId"}}}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to scan client documents: %w", err)
	}
	defer cur.Close(ctx)

	report := &KeyMigrationReport{DryRun: dryRun}
	for cur.Next(ctx) {
		var doc struct {
			ID     bson.ObjectID `bson:"_id"`
			UserID any           `bson:"userId"`
		}
		if err := cur.Decode(&doc); err != nil {
			return report, fmt.Errorf("failed to decode client document: %w", err)
		}
		report.Scanned++

		oid, ok := NormalizeUserKey(doc.UserID)
		if !ok {
			report.Unparseable = append(report.Unparseable, doc.ID.Hex())
			continue
		}
		if dryRun {
			report.Converted++
			continue
		}
		_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{"userId": oid}})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				report.Conflicts = append(report.Conflicts, doc.ID.Hex())
				continue
			}
			return report, fmt.Errorf("failed to normalize client document '%s': %w", doc.ID.Hex(), err)
		}
		report.Converted++
	}
	if err := cur.Err(); err != nil {
		return report, fmt.Errorf("client document cursor: %w", err)
	}
	return report, nil
}
