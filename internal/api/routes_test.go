package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/middleware"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
)

const testToken = "good-token"

type testServer struct {
	router     *gin.Engine
	user       *models.User
	users      *MockUserService
	billing    *MockBillingService
	reconcile  *MockReconcileService
	assistants *MockAssistantService
	phones     *MockPhoneNumberService
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	user := &models.User{ID: bson.NewObjectID(), Email: "ana@acme.io", Subscription: models.Subscription{Plan: "pro"}}
	s := &testServer{
		user: user,
		users: &MockUserService{
			ResolveFunc: func(_ context.Context, id core.Identity) (*models.User, error) {
				if id.Subject == user.ID.Hex() {
					return user, nil
				}
				return nil, fmt.Errorf("%w: subject '%s'", core.ErrUserNotFound, id.Subject)
			},
		},
		billing:    &MockBillingService{},
		reconcile:  &MockReconcileService{},
		assistants: &MockAssistantService{},
		phones:     &MockPhoneNumberService{},
	}
	s.router = gin.New()
	SetupRoutes(s.router, SetupRoutesConfig{
		Logger: zap.NewNop(),
		Verifier: stubVerifier{tokens: map[string]*middleware.VerifiedToken{
			testToken:     {Subject: user.ID.Hex(), Email: user.Email},
			"stranger":    {Subject: bson.NewObjectID().Hex(), Email: "who@acme.io"},
			"unverified":  {Subject: "fb-uid-1", Email: "ana@acme.io"},
			"other-login": {Subject: "fb-uid-2", Email: "ana@acme.io", EmailVerified: true},
		}},
		RateLimiter:        middleware.NewRateLimiter(1000, 1000),
		UserService:        s.users,
		AuditService:       MockAuditService{},
		BillingService:     s.billing,
		ReconcileService:   s.reconcile,
		AssistantService:   s.assistants,
		PhoneNumberService: s.phones,
		StatsService:       MockStatsService{},
	})
	return s
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	if w := s.do(http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/metrics", "", ""); w.Code != http.StatusOK {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestDashboardAuth(t *testing.T) {
	s := newTestServer()
	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "forged", http.StatusUnauthorized},
		{"unknown user", "stranger", http.StatusNotFound},
		{"ok", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(http.MethodGet, "/api/dashboard/stats", tt.token, ""); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDashboardAuthRejectsUntrustedEmailMatch(t *testing.T) {
	s := newTestServer()
	s.users.ResolveFunc = func(_ context.Context, id core.Identity) (*models.User, error) {
		if !id.EmailVerified {
			return nil, fmt.Errorf("%w: '%s'", core.ErrEmailNotVerified, id.Email)
		}
		return nil, fmt.Errorf("%w: user '%s'", core.ErrIdentityConflict, s.user.ID.Hex())
	}
	tests := []struct {
		token     string
		wantError string
	}{
		{"unverified", "Verify your e-mail address before signing in"},
		{"other-login", "This e-mail is linked to a different sign-in account"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/dashboard/stats", tt.token, "")
			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403 (body %s)", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Error; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestInitializeUser(t *testing.T) {
	s := newTestServer()
	s.users.GetOrCreateFunc = func(_ context.Context, id core.Identity) (*models.User, bool, error) {
		if id.Email != "who@acme.io" {
			t.Errorf("identity = %+v", id)
		}
		return &models.User{ID: bson.NewObjectID(), Email: id.Email}, true, nil
	}
	w := s.do(http.MethodPost, "/api/users/initialize", "stranger", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp InitializeUserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.Created || resp.User.Email != "who@acme.io" {
		t.Errorf("response = %+v, %v", resp, err)
	}
}

func TestStripeWebhook(t *testing.T) {
	s := newTestServer()
	var gotPayload string
	s.billing.HandleStripeWebhookFunc = func(_ context.Context, signature string, payload []byte) error {
		gotPayload = string(payload)
		if signature != "t=1,v1=abc" {
			return fmt.Errorf("%w: no signatures found matching the expected signature for payload", payments.ErrSignature)
		}
		return nil
	}
	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", strings.NewReader(`{"id":"evt_1"}`))
		if signature != "" {
			req.Header.Set("Stripe-Signature", signature)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := post("t=1,v1=abc")
	if w.Code != http.StatusOK || w.Body.String() != `{"received":true}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if gotPayload != `{"id":"evt_1"}` {
		t.Errorf("payload = %q", gotPayload)
	}

	w = post("t=1,v1=forged")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); !strings.Contains(resp.Details, "no signatures found") {
		t.Errorf("details = %q, want the verification error", resp.Details)
	}

	if w := post(""); w.Code != http.StatusBadRequest {
		t.Errorf("missing signature status = %d, want 400", w.Code)
	}
}

func TestPatchProfileNotificationsSendsOnlyPresentFlags(t *testing.T) {
	s := newTestServer()
	var got models.UpdateNotificationsRequest
	s.users.UpdateNotificationsFunc = func(_ context.Context, _ *models.User, req models.UpdateNotificationsRequest) (*models.User, error) {
		got = req
		return s.user, nil
	}

	w := s.do(http.MethodPatch, "/api/dashboard/profile", testToken,
		`{"section":"notifications","data":{"emailNotifications":false}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
	}
	if got.EmailNotifications == nil || *got.EmailNotifications {
		t.Errorf("emailNotifications = %v, want false", got.EmailNotifications)
	}
	if got.CallSummaries != nil || got.BillingAlerts != nil || got.ProductUpdates != nil || got.WeeklyReports != nil {
		t.Errorf("omitted flags must stay nil: %+v", got)
	}
}

func TestPatchProfileValidation(t *testing.T) {
	s := newTestServer()
	tests := []struct {
		name string
		body string
	}{
		{"unknown section", `{"section":"billing","data":{}}`},
		{"missing data", `{"section":"profile"}`},
		{"short password", `{"section":"password","data":{"newPassword":"short"}}`},
		{"bad image url", `{"section":"profile","data":{"image":"not a url"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(http.MethodPatch, "/api/dashboard/profile", testToken, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestPasswordSectionErrors(t *testing.T) {
	s := newTestServer()
	s.users.ChangePasswordFunc = func(context.Context, *models.User, models.ChangePasswordRequest) error {
		return core.ErrInvalidPassword
	}
	w := s.do(http.MethodPatch, "/api/dashboard/profile", testToken,
		`{"section":"password","data":{"currentPassword":"x","newPassword":"long-enough"}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteAccountConflict(t *testing.T) {
	s := newTestServer()
	s.users.DeleteAccountFunc = func(context.Context, *models.User) error { return core.ErrActiveSubscription }
	if w := s.do(http.MethodDelete, "/api/dashboard/profile", testToken, ""); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreateAssistantErrors(t *testing.T) {
	s := newTestServer()
	s.assistants.CreateFunc = func(_ context.Context, _ *models.User, req models.CreateAssistantRequest) (*models.Assistant, error) {
		switch req.Name {
		case "limit":
			return nil, fmt.Errorf("%w: plan 'free' allows 1", core.ErrAssistantLimitReached)
		case "provider":
			return nil, fmt.Errorf("%w: create assistant: timeout", core.ErrVoiceProvider)
		case "boom":
			return nil, errors.New("mongo: connection reset")
		}
		return &models.Assistant{Name: req.Name}, nil
	}
	tests := []struct {
		body       string
		wantStatus int
	}{
		{`{"name":"Front desk"}`, http.StatusCreated},
		{`{}`, http.StatusBadRequest},
		{`{"name":"limit"}`, http.StatusPaymentRequired},
		{`{"name":"provider"}`, http.StatusServiceUnavailable},
		{`{"name":"boom"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := s.do(http.MethodPost, "/api/dashboard/assistants", testToken, tt.body)
		if w.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.body, w.Code, tt.wantStatus)
		}
		if tt.wantStatus == http.StatusInternalServerError {
			if resp := decodeError(t, w); resp.Details != "" || strings.Contains(w.Body.String(), "mongo") {
				t.Errorf("internal error leaked details: %s", w.Body.String())
			}
		}
	}
}

func TestGetAssistantNotFound(t *testing.T) {
	s := newTestServer()
	if w := s.do(http.MethodGet, "/api/dashboard/assistants/abc", testToken, ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAssistantStatsRefreshFlag(t *testing.T) {
	s := newTestServer()
	var forced []bool
	s.assistants.RefreshStatsFunc = func(_ context.Context, _ *models.User, _ string, force bool) (*models.AssistantStats, error) {
		forced = append(forced, force)
		return &models.AssistantStats{TotalCalls: 3}, nil
	}
	s.do(http.MethodGet, "/api/dashboard/assistants/a1/stats", testToken, "")
	s.do(http.MethodGet, "/api/dashboard/assistants/a1/stats?refresh=true", testToken, "")
	if len(forced) != 2 || forced[0] || !forced[1] {
		t.Errorf("force flags = %v, want [false true]", forced)
	}
}

func TestAssignPhoneNumber(t *testing.T) {
	s := newTestServer()
	var got []*string
	s.phones.AssignFunc = func(_ context.Context, _ *models.User, _ string, assistantID *string) (*models.PhoneNumber, error) {
		got = append(got, assistantID)
		return &models.PhoneNumber{}, nil
	}
	target := bson.NewObjectID().Hex()

	if w := s.do(http.MethodPost, "/api/dashboard/phone-numbers/n1/assign", testToken, `{"assistantId":"nope"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/dashboard/phone-numbers/n1/assign", testToken, `{"assistantId":"`+target+`"}`); w.Code != http.StatusOK {
		t.Errorf("assign status = %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/dashboard/phone-numbers/n1/assign", testToken, `{"assistantId":null}`); w.Code != http.StatusOK {
		t.Errorf("unassign status = %d", w.Code)
	}
	if len(got) != 2 || got[0] == nil || *got[0] != target || got[1] != nil {
		t.Errorf("assistant ids = %v", got)
	}
}

func TestListInvoicesEmptyIsArray(t *testing.T) {
	s := newTestServer()
	s.reconcile.ListInvoicesFunc = func(context.Context, *models.User) ([]*models.Invoice, error) { return nil, nil }
	w := s.do(http.MethodGet, "/api/dashboard/invoices", testToken, "")
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Errorf("got %d %s, want 200 []", w.Code, w.Body.String())
	}
}

func TestCancelSubscriptionWithoutSubscription(t *testing.T) {
	s := newTestServer()
	s.billing.CancelSubscriptionFunc = func(context.Context, *models.User) (*models.Subscription, error) {
		return nil, core.ErrNoActiveSubscription
	}
	if w := s.do(http.MethodPost, "/api/dashboard/subscription/cancel", testToken, ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
