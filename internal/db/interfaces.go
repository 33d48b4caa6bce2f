package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"voicedesk-backend-go/internal/models"
)

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAuthSubject(ctx context.Context, subject string) (*models.User, error)
	// BindAuthSubject sets the identity provider UID on a user that has none.
	BindAuthSubject(ctx context.Context, id bson.ObjectID, subject string) error
	GetByCustomerID(ctx context.Context, customerID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// SetBillingCustomer links a Stripe customer and records the purchased price and plan.
	SetBillingCustomer(ctx context.Context, id bson.ObjectID, customerID, priceID, plan string) error
	UpdateSubscription(ctx context.Context, id bson.ObjectID, sub models.Subscription) error
	SetAccess(ctx context.Context, id bson.ObjectID, hasAccess bool) error
	UpdateProfile(ctx context.Context, id bson.ObjectID, req models.UpdateProfileRequest) (*models.User, error)
	// UpdateNotifications only writes the flags that are non-nil in req.
	UpdateNotifications(ctx context.Context, id bson.ObjectID, req models.UpdateNotificationsRequest) (*models.User, error)
	UpdatePassword(ctx context.Context, id bson.ObjectID, passwordHash string) error
	IncrementUsage(ctx context.Context, id bson.ObjectID, minutes float64, calls int64) error
	Delete(ctx context.Context, id bson.ObjectID) error
}

// AssistantRepository defines storage for assistants. Lookups are scoped to the owner.
type AssistantRepository interface {
	ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.Assistant, error)
	GetByID(ctx context.Context, userID, id bson.ObjectID) (*models.Assistant, error)
	Create(ctx context.Context, assistant *models.Assistant) error
	Update(ctx context.Context, assistant *models.Assistant) error
	UpdateStatus(ctx context.Context, userID, id bson.ObjectID, status string) error
	UpdateStats(ctx context.Context, id bson.ObjectID, prevSyncedThrough *time.Time, stats models.AssistantStats, refreshedAt time.Time) (bool, error)
	// SetPhoneNumber attaches phoneID, or detaches the current number when phoneID is nil.
	SetPhoneNumber(ctx context.Context, id bson.ObjectID, phoneID *bson.ObjectID) error
	CountByUser(ctx context.Context, userID bson.ObjectID) (int64, error)
	Delete(ctx context.Context, userID, id bson.ObjectID) error
}

// PhoneNumberRepository defines storage for phone numbers.
type PhoneNumberRepository interface {
	ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.PhoneNumber, error)
	GetByID(ctx context.Context, userID, id bson.ObjectID) (*models.PhoneNumber, error)
	Create(ctx context.Context, number *models.PhoneNumber) error
	Assign(ctx context.Context, id bson.ObjectID, assistantID *bson.ObjectID) error
	// UnassignAssistant detaches every number currently pointing at assistantID.
	UnassignAssistant(ctx context.Context, assistantID bson.ObjectID) (int64, error)
	Delete(ctx context.Context, userID, id bson.ObjectID) error
}

// InvoiceRepository stores invoices keyed by their Stripe invoice id.
type InvoiceRepository interface {
	ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.Invoice, error)
	GetByStripeID(ctx context.Context, stripeInvoiceID string) (*models.Invoice, error)
	// Upsert inserts the invoice or refreshes its mutable fields. Reports whether a new document was created.
	Upsert(ctx context.Context, invoice *models.Invoice) (bool, error)
}

// TransactionRepository stores normalized payments keyed by their external id.
type TransactionRepository interface {
	Upsert(ctx context.Context, tx *models.Transaction) (bool, error)
	ListByUser(ctx context.Context, userID bson.ObjectID) ([]*models.Transaction, error)
}

// ClientRepository gives access to the legacy per-user client documents.
type ClientRepository interface {
	EnsureDocument(ctx context.Context, userID bson.ObjectID, email string) error
	// AppendTransaction pushes entry unless an entry with the same id is already present.
	AppendTransaction(ctx context.Context, userID bson.ObjectID, email string, entry models.ClientTransaction) (bool, error)
	FindForUser(ctx context.Context, userID bson.ObjectID, email string) ([]*models.ClientRecord, error)
	FindByEmailDomain(ctx context.Context, domain string) ([]*models.ClientRecord, error)
	NormalizeKeys(ctx context.Context, dryRun bool) (*KeyMigrationReport, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}
