package api

import (
	"context"
	"errors"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/middleware"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
)

var errNotMocked = errors.New("not mocked")

type stubVerifier struct {
	tokens map[string]*middleware.VerifiedToken
}

func (s stubVerifier) Verify(_ context.Context, raw string) (*middleware.VerifiedToken, error) {
	if t, ok := s.tokens[raw]; ok {
		return t, nil
	}
	return nil, errors.New("unknown token")
}

type MockUserService struct {
	GetOrCreateFunc         func(ctx context.Context, identity core.Identity) (*models.User, bool, error)
	ResolveFunc             func(ctx context.Context, identity core.Identity) (*models.User, error)
	UpdateProfileFunc       func(ctx context.Context, user *models.User, req models.UpdateProfileRequest) (*models.User, error)
	UpdateNotificationsFunc func(ctx context.Context, user *models.User, req models.UpdateNotificationsRequest) (*models.User, error)
	ChangePasswordFunc      func(ctx context.Context, user *models.User, req models.ChangePasswordRequest) error
	DeleteAccountFunc       func(ctx context.Context, user *models.User) error
}

func (m *MockUserService) GetOrCreate(ctx context.Context, identity core.Identity) (*models.User, bool, error) {
	if m.GetOrCreateFunc == nil {
		return nil, false, errNotMocked
	}
	return m.GetOrCreateFunc(ctx, identity)
}

func (m *MockUserService) Resolve(ctx context.Context, identity core.Identity) (*models.User, error) {
	if m.ResolveFunc == nil {
		return nil, errNotMocked
	}
	return m.ResolveFunc(ctx, identity)
}

func (m *MockUserService) FindByRef(context.Context, string) (*models.User, error) {
	return nil, errNotMocked
}

func (m *MockUserService) UpdateProfile(ctx context.Context, user *models.User, req models.UpdateProfileRequest) (*models.User, error) {
	if m.UpdateProfileFunc == nil {
		return nil, errNotMocked
	}
	return m.UpdateProfileFunc(ctx, user, req)
}

func (m *MockUserService) UpdateNotifications(ctx context.Context, user *models.User, req models.UpdateNotificationsRequest) (*models.User, error) {
	if m.UpdateNotificationsFunc == nil {
		return nil, errNotMocked
	}
	return m.UpdateNotificationsFunc(ctx, user, req)
}

func (m *MockUserService) ChangePassword(ctx context.Context, user *models.User, req models.ChangePasswordRequest) error {
	if m.ChangePasswordFunc == nil {
		return errNotMocked
	}
	return m.ChangePasswordFunc(ctx, user, req)
}

func (m *MockUserService) DeleteAccount(ctx context.Context, user *models.User) error {
	if m.DeleteAccountFunc == nil {
		return errNotMocked
	}
	return m.DeleteAccountFunc(ctx, user)
}

type MockBillingService struct {
	HandleStripeWebhookFunc func(ctx context.Context, signature string, payload []byte) error
	CancelSubscriptionFunc  func(ctx context.Context, user *models.User) (*models.Subscription, error)
}

func (m *MockBillingService) CreateCheckoutSession(context.Context, *models.User, string) (*payments.CheckoutSession, error) {
	return nil, errNotMocked
}

func (m *MockBillingService) CreatePortalSession(context.Context, *models.User) (string, error) {
	return "", errNotMocked
}

func (m *MockBillingService) CancelSubscription(ctx context.Context, user *models.User) (*models.Subscription, error) {
	if m.CancelSubscriptionFunc == nil {
		return nil, errNotMocked
	}
	return m.CancelSubscriptionFunc(ctx, user)
}

func (m *MockBillingService) HandleStripeWebhook(ctx context.Context, signature string, payload []byte) error {
	if m.HandleStripeWebhookFunc == nil {
		return errNotMocked
	}
	return m.HandleStripeWebhookFunc(ctx, signature, payload)
}

type MockReconcileService struct {
	ListInvoicesFunc func(ctx context.Context, user *models.User) ([]*models.Invoice, error)
}

func (m *MockReconcileService) ListInvoices(ctx context.Context, user *models.User) ([]*models.Invoice, error) {
	if m.ListInvoicesFunc == nil {
		return nil, errNotMocked
	}
	return m.ListInvoicesFunc(ctx, user)
}

func (m *MockReconcileService) ListPaymentMethods(context.Context, *models.User) ([]payments.Card, error) {
	return nil, nil
}

func (m *MockReconcileService) GetSubscription(context.Context, *models.User) (*core.SubscriptionView, error) {
	return nil, errNotMocked
}

func (m *MockReconcileService) RebuildInvoices(context.Context, *models.User) (int, error) {
	return 0, errNotMocked
}

type MockAssistantService struct {
	CreateFunc       func(ctx context.Context, user *models.User, req models.CreateAssistantRequest) (*models.Assistant, error)
	RefreshStatsFunc func(ctx context.Context, user *models.User, id string, force bool) (*models.AssistantStats, error)
}

func (m *MockAssistantService) List(context.Context, *models.User) ([]*models.Assistant, error) {
	return nil, nil
}

func (m *MockAssistantService) Get(context.Context, *models.User, string) (*models.Assistant, error) {
	return nil, core.ErrAssistantNotFound
}

func (m *MockAssistantService) Create(ctx context.Context, user *models.User, req models.CreateAssistantRequest) (*models.Assistant, error) {
	if m.CreateFunc == nil {
		return nil, errNotMocked
	}
	return m.CreateFunc(ctx, user, req)
}

func (m *MockAssistantService) Update(context.Context, *models.User, string, models.UpdateAssistantRequest) (*models.Assistant, error) {
	return nil, errNotMocked
}

func (m *MockAssistantService) Delete(context.Context, *models.User, string) error {
	return errNotMocked
}

func (m *MockAssistantService) Toggle(context.Context, *models.User, string) (*models.Assistant, error) {
	return nil, errNotMocked
}

func (m *MockAssistantService) RefreshStats(ctx context.Context, user *models.User, id string, force bool) (*models.AssistantStats, error) {
	if m.RefreshStatsFunc == nil {
		return nil, errNotMocked
	}
	return m.RefreshStatsFunc(ctx, user, id, force)
}

type MockPhoneNumberService struct {
	AssignFunc func(ctx context.Context, user *models.User, id string, assistantID *string) (*models.PhoneNumber, error)
}

func (m *MockPhoneNumberService) List(context.Context, *models.User) ([]*models.PhoneNumber, error) {
	return nil, nil
}

func (m *MockPhoneNumberService) Create(context.Context, *models.User, models.CreatePhoneNumberRequest) (*models.PhoneNumber, error) {
	return nil, errNotMocked
}

func (m *MockPhoneNumberService) Delete(context.Context, *models.User, string) error {
	return errNotMocked
}

func (m *MockPhoneNumberService) Assign(ctx context.Context, user *models.User, id string, assistantID *string) (*models.PhoneNumber, error) {
	if m.AssignFunc == nil {
		return nil, errNotMocked
	}
	return m.AssignFunc(ctx, user, id, assistantID)
}

type MockStatsService struct{}

func (MockStatsService) Overview(_ context.Context, user *models.User) (*core.Overview, error) {
	return &core.Overview{Plan: user.Subscription.Plan}, nil
}

type MockAuditService struct{}

func (MockAuditService) CreateAuditLog(context.Context, models.AuditLog) error { return nil }

func (MockAuditService) Record(context.Context, string, string, string, string, map[string]interface{}) {
}

func (MockAuditService) ListActivity(context.Context, string, int) ([]*models.AuditLog, error) {
	return nil, nil
}
