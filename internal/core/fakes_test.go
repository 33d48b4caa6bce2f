package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
	"voicedesk-backend-go/internal/voiceprovider"
)

// In-memory repositories with the same observable semantics as the Mongo ones.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[bson.ObjectID]*models.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = bson.NewObjectID()
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) get(id bson.ObjectID) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeUserRepo) mutate(id bson.ObjectID, fn func(*models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), db.ErrNotFound)
	}
	fn(u)
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *fakeUserRepo) GetByAuthSubject(_ context.Context, subject string) (*models.User, error) {
	if subject == "" {
		return nil, db.ErrNotFound
	}
	return r.find(func(u *models.User) bool { return u.AuthSubject == subject })
}

func (r *fakeUserRepo) BindAuthSubject(_ context.Context, id bson.ObjectID, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return db.ErrNotFound
	}
	for _, other := range r.users {
		if other.AuthSubject == subject {
			return db.ErrDuplicate
		}
	}
	if u.AuthSubject != "" {
		return db.ErrDuplicate
	}
	u.AuthSubject = subject
	return nil
}

func (r *fakeUserRepo) GetByCustomerID(_ context.Context, customerID string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.CustomerID == customerID })
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) || (user.AuthSubject != "" && u.AuthSubject == user.AuthSubject) {
			return db.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) SetBillingCustomer(_ context.Context, id bson.ObjectID, customerID, priceID, plan string) error {
	_, err := r.mutate(id, func(u *models.User) {
		u.CustomerID, u.PriceID, u.Subscription.Plan = customerID, priceID, plan
	})
	return err
}

func (r *fakeUserRepo) UpdateSubscription(_ context.Context, id bson.ObjectID, sub models.Subscription) error {
	_, err := r.mutate(id, func(u *models.User) { u.Subscription = sub })
	return err
}

func (r *fakeUserRepo) SetAccess(_ context.Context, id bson.ObjectID, hasAccess bool) error {
	_, err := r.mutate(id, func(u *models.User) { u.HasAccess = hasAccess })
	return err
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id bson.ObjectID, req models.UpdateProfileRequest) (*models.User, error) {
	return r.mutate(id, func(u *models.User) {
		assign(&u.Name, req.Name)
		assign(&u.Company, req.Company)
		assign(&u.Phone, req.Phone)
		assign(&u.Timezone, req.Timezone)
		assign(&u.Image, req.Image)
	})
}

func (r *fakeUserRepo) UpdateNotifications(_ context.Context, id bson.ObjectID, req models.UpdateNotificationsRequest) (*models.User, error) {
	return r.mutate(id, func(u *models.User) {
		assign(&u.Notifications.EmailNotifications, req.EmailNotifications)
		assign(&u.Notifications.CallSummaries, req.CallSummaries)
		assign(&u.Notifications.BillingAlerts, req.BillingAlerts)
		assign(&u.Notifications.ProductUpdates, req.ProductUpdates)
		assign(&u.Notifications.WeeklyReports, req.WeeklyReports)
	})
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id bson.ObjectID, hash string) error {
	_, err := r.mutate(id, func(u *models.User) { u.PasswordHash = hash })
	return err
}

func (r *fakeUserRepo) IncrementUsage(_ context.Context, id bson.ObjectID, minutes float64, calls int64) error {
	_, err := r.mutate(id, func(u *models.User) {
		u.Usage.MinutesUsed += minutes
		u.Usage.CallsCount += calls
	})
	return err
}

func (r *fakeUserRepo) Delete(_ context.Context, id bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func assign[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

type fakeInvoiceRepo struct {
	mu        sync.Mutex
	byStripe  map[string]*models.Invoice
	upsertErr error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{byStripe: map[string]*models.Invoice{}}
}

func (r *fakeInvoiceRepo) ListByUser(_ context.Context, userID bson.ObjectID) ([]*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Invoice{}
	for _, inv := range r.byStripe {
		if inv.UserID == userID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (r *fakeInvoiceRepo) GetByStripeID(_ context.Context, id string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byStripe[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

// Upsert mirrors the $setOnInsert/$set split of the Mongo repository.
func (r *fakeInvoiceRepo) Upsert(_ context.Context, inv *models.Invoice) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return false, r.upsertErr
	}
	if existing, ok := r.byStripe[inv.StripeInvoiceID]; ok {
		existing.Status = inv.Status
		existing.UpdatedAt = inv.UpdatedAt
		if inv.HostedInvoiceURL != "" {
			existing.HostedInvoiceURL = inv.HostedInvoiceURL
		}
		if inv.InvoicePDF != "" {
			existing.InvoicePDF = inv.InvoicePDF
		}
		return false, nil
	}
	cp := *inv
	cp.ID = bson.NewObjectID()
	r.byStripe[inv.StripeInvoiceID] = &cp
	return true, nil
}

func (r *fakeInvoiceRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byStripe)
}

type fakeTransactionRepo struct {
	mu         sync.Mutex
	byExternal map[string]*models.Transaction
}

func newFakeTransactionRepo(txs ...*models.Transaction) *fakeTransactionRepo {
	r := &fakeTransactionRepo{byExternal: map[string]*models.Transaction{}}
	for _, tx := range txs {
		r.byExternal[tx.ExternalID] = tx
	}
	return r
}

func (r *fakeTransactionRepo) Upsert(_ context.Context, tx *models.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byExternal[tx.ExternalID]; ok {
		existing.Status = tx.Status
		return false, nil
	}
	cp := *tx
	r.byExternal[tx.ExternalID] = &cp
	return true, nil
}

func (r *fakeTransactionRepo) ListByUser(_ context.Context, userID bson.ObjectID) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range r.byExternal {
		if tx.UserID == userID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeClientRepo matches documents with db.MatchUserKey, like the $or filter does.
type fakeClientRepo struct {
	mu      sync.Mutex
	records []*models.ClientRecord
}

func (r *fakeClientRepo) matches(rec *models.ClientRecord, userID bson.ObjectID, email string) bool {
	if db.MatchUserKey(rec.UserID, userID) {
		return true
	}
	return email != "" && strings.EqualFold(rec.Email, email)
}

func (r *fakeClientRepo) EnsureDocument(_ context.Context, userID bson.ObjectID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if r.matches(rec, userID, email) {
			return nil
		}
	}
	r.records = append(r.records, &models.ClientRecord{ID: bson.NewObjectID(), UserID: userID, Email: email})
	return nil
}

func (r *fakeClientRepo) AppendTransaction(_ context.Context, userID bson.ObjectID, email string, entry models.ClientTransaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if !r.matches(rec, userID, email) {
			continue
		}
		for _, tx := range rec.Transactions {
			if tx.ID == entry.ID {
				return false, nil
			}
		}
		rec.Transactions = append(rec.Transactions, entry)
		return true, nil
	}
	return false, nil
}

func (r *fakeClientRepo) FindForUser(_ context.Context, userID bson.ObjectID, email string) ([]*models.ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ClientRecord
	for _, rec := range r.records {
		if r.matches(rec, userID, email) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) FindByEmailDomain(_ context.Context, domain string) ([]*models.ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ClientRecord
	for _, rec := range r.records {
		if strings.HasSuffix(strings.ToLower(rec.Email), "@"+strings.ToLower(domain)) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) NormalizeKeys(_ context.Context, dryRun bool) (*db.KeyMigrationReport, error) {
	return &db.KeyMigrationReport{DryRun: dryRun}, nil
}

func (r *fakeClientRepo) transactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		n += len(rec.Transactions)
	}
	return n
}

type fakeAssistantRepo struct {
	mu         sync.Mutex
	assistants map[bson.ObjectID]*models.Assistant
}

func newFakeAssistantRepo(items ...*models.Assistant) *fakeAssistantRepo {
	r := &fakeAssistantRepo{assistants: map[bson.ObjectID]*models.Assistant{}}
	for _, a := range items {
		if a.ID.IsZero() {
			a.ID = bson.NewObjectID()
		}
		r.assistants[a.ID] = a
	}
	return r
}

func (r *fakeAssistantRepo) ListByUser(_ context.Context, userID bson.ObjectID) ([]*models.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Assistant{}
	for _, a := range r.assistants {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAssistantRepo) GetByID(_ context.Context, userID, id bson.ObjectID) (*models.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assistants[id]
	if !ok || a.UserID != userID {
		return nil, db.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssistantRepo) Create(_ context.Context, a *models.Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = bson.NewObjectID()
	cp := *a
	r.assistants[a.ID] = &cp
	return nil
}

func (r *fakeAssistantRepo) Update(_ context.Context, a *models.Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assistants[a.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *a
	r.assistants[a.ID] = &cp
	return nil
}

func (r *fakeAssistantRepo) with(id bson.ObjectID, fn func(*models.Assistant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assistants[id]
	if !ok {
		return db.ErrNotFound
	}
	fn(a)
	return nil
}

func (r *fakeAssistantRepo) UpdateStatus(_ context.Context, _, id bson.ObjectID, status string) error {
	return r.with(id, func(a *models.Assistant) { a.Status = status })
}

func (r *fakeAssistantRepo) UpdateStats(_ context.Context, id bson.ObjectID, prev *time.Time, stats models.AssistantStats, at time.Time) (bool, error) {
	stored := false
	err := r.with(id, func(a *models.Assistant) {
		cur := a.Stats.SyncedThrough
		if (cur == nil) != (prev == nil) || (cur != nil && !cur.Equal(*prev)) {
			return
		}
		a.Stats, a.StatsRefreshedAt = stats, &at
		stored = true
	})
	return stored, err
}

func (r *fakeAssistantRepo) SetPhoneNumber(_ context.Context, id bson.ObjectID, phoneID *bson.ObjectID) error {
	return r.with(id, func(a *models.Assistant) { a.PhoneNumberID = phoneID })
}

func (r *fakeAssistantRepo) CountByUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	list, _ := r.ListByUser(ctx, userID)
	return int64(len(list)), nil
}

func (r *fakeAssistantRepo) Delete(_ context.Context, _, id bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assistants[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.assistants, id)
	return nil
}

func (r *fakeAssistantRepo) stored(id bson.ObjectID) *models.Assistant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assistants[id]
}

type fakePhoneRepo struct {
	mu      sync.Mutex
	numbers map[bson.ObjectID]*models.PhoneNumber
}

func newFakePhoneRepo(items ...*models.PhoneNumber) *fakePhoneRepo {
	r := &fakePhoneRepo{numbers: map[bson.ObjectID]*models.PhoneNumber{}}
	for _, n := range items {
		if n.ID.IsZero() {
			n.ID = bson.NewObjectID()
		}
		r.numbers[n.ID] = n
	}
	return r
}

func (r *fakePhoneRepo) ListByUser(_ context.Context, userID bson.ObjectID) ([]*models.PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.PhoneNumber{}
	for _, n := range r.numbers {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePhoneRepo) GetByID(_ context.Context, userID, id bson.ObjectID) (*models.PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.numbers[id]
	if !ok || n.UserID != userID {
		return nil, db.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *fakePhoneRepo) Create(_ context.Context, n *models.PhoneNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = bson.NewObjectID()
	cp := *n
	r.numbers[n.ID] = &cp
	return nil
}

func (r *fakePhoneRepo) Assign(_ context.Context, id bson.ObjectID, assistantID *bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.numbers[id]
	if !ok {
		return db.ErrNotFound
	}
	n.AssistantID = assistantID
	return nil
}

func (r *fakePhoneRepo) UnassignAssistant(_ context.Context, assistantID bson.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, num := range r.numbers {
		if num.AssistantID != nil && *num.AssistantID == assistantID {
			num.AssistantID = nil
			n++
		}
	}
	return n, nil
}

func (r *fakePhoneRepo) Delete(_ context.Context, _, id bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.numbers[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.numbers, id)
	return nil
}

func (r *fakePhoneRepo) stored(id bson.ObjectID) *models.PhoneNumber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numbers[id]
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (r *fakeAuditRepo) Create(_ context.Context, e models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeAuditRepo) ListByUser(_ context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			e := r.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeGateway verifies signatures with the real Stripe code and stubs the API calls.
type fakeGateway struct {
	*payments.StripeGateway
	cards        []payments.Card
	listErr      error
	cancelResult *payments.SubscriptionPayload
	checkouts    []payments.CheckoutParams
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{StripeGateway: payments.NewStripeGateway("sk_test_unused", secret)}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p payments.CheckoutParams) (*payments.CheckoutSession, error) {
	g.checkouts = append(g.checkouts, p)
	return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.stripe.com/p/" + customerID, nil
}

func (g *fakeGateway) ListCards(_ context.Context, _ string) ([]payments.Card, error) {
	return g.cards, g.listErr
}

func (g *fakeGateway) CancelAtPeriodEnd(_ context.Context, subscriptionID string) (*payments.SubscriptionPayload, error) {
	if g.cancelResult != nil {
		return g.cancelResult, nil
	}
	return &payments.SubscriptionPayload{ID: subscriptionID, Status: "active", CancelAtPeriodEnd: true}, nil
}

type fakeProvider struct {
	mu               sync.Mutex
	calls            []voiceprovider.Call
	listErr          error
	createErr        error
	deleteErr        error
	deletedAssistant []string
	deletedNumbers   []string
	numberTargets    map[string]*string
	nextID           int
	// beforeList runs once, outside the lock, before the next call listing.
	beforeList func()
}

func (p *fakeProvider) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s_%d", prefix, p.nextID)
}

func (p *fakeProvider) CreateAssistant(_ context.Context, spec voiceprovider.AssistantSpec) (*voiceprovider.Assistant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &voiceprovider.Assistant{ID: p.id("asst"), Name: spec.Name}, nil
}

func (p *fakeProvider) UpdateAssistant(_ context.Context, id string, spec voiceprovider.AssistantSpec) (*voiceprovider.Assistant, error) {
	return &voiceprovider.Assistant{ID: id, Name: spec.Name}, nil
}

func (p *fakeProvider) GetAssistant(_ context.Context, id string) (*voiceprovider.Assistant, error) {
	return &voiceprovider.Assistant{ID: id}, nil
}

func (p *fakeProvider) DeleteAssistant(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletedAssistant = append(p.deletedAssistant, id)
	return p.deleteErr
}

func (p *fakeProvider) ListCallsSince(_ context.Context, _ string, since *time.Time) ([]voiceprovider.Call, error) {
	p.mu.Lock()
	hook := p.beforeList
	p.beforeList = nil
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	var out []voiceprovider.Call
	for _, c := range p.calls {
		if since == nil || c.CreatedAt.After(*since) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *fakeProvider) addCalls(calls ...voiceprovider.Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, calls...)
}

func (p *fakeProvider) CreatePhoneNumber(_ context.Context, spec voiceprovider.PhoneNumberSpec) (*voiceprovider.PhoneNumber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	number := spec.Number
	if number == "" {
		number = "+15550000001"
	}
	return &voiceprovider.PhoneNumber{ID: p.id("pn"), Number: number, Provider: spec.Provider, Status: "active", AssistantID: spec.AssistantID}, nil
}

func (p *fakeProvider) UpdatePhoneNumber(_ context.Context, id string, assistantID *string) (*voiceprovider.PhoneNumber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.numberTargets == nil {
		p.numberTargets = map[string]*string{}
	}
	p.numberTargets[id] = assistantID
	return &voiceprovider.PhoneNumber{ID: id}, nil
}

func (p *fakeProvider) DeletePhoneNumber(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletedNumbers = append(p.deletedNumbers, id)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []BillingEvent
}

func (p *fakePublisher) PublishJSON(_ context.Context, _ string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := v.(BillingEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(recipient, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{recipient, subject, body})
	return nil
}
