package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/voiceprovider"
	"voicedesk-backend-go/pkg/cache"
)

type assistantFixture struct {
	users      *fakeUserRepo
	assistants *fakeAssistantRepo
	phones     *fakePhoneRepo
	provider   *fakeProvider
	cache      *cache.MemoryCache
	svc        AssistantService
}

func newAssistantFixture(user *models.User, assistants ...*models.Assistant) *assistantFixture {
	f := &assistantFixture{
		users:      newFakeUserRepo(user),
		assistants: newFakeAssistantRepo(assistants...),
		phones:     newFakePhoneRepo(),
		provider:   &fakeProvider{},
		cache:      cache.NewMemoryCache(),
	}
	f.svc = NewAssistantService(NewAssistantServiceConfig{
		Assistants:   f.assistants,
		PhoneNumbers: f.phones,
		Users:        f.users,
		Provider:     f.provider,
		Cache:        f.cache,
		Plans:        testPlans(),
		Audit:        NewAuditService(&fakeAuditRepo{}, zap.NewNop()),
		Logger:       zap.NewNop(),
	})
	return f
}

func freeUser() *models.User {
	return &models.User{ID: bson.NewObjectID(), Email: "ana@acme.io", Subscription: models.Subscription{Plan: "free"}}
}

func TestCreateAssistantEnforcesPlanLimit(t *testing.T) {
	user := freeUser()
	f := newAssistantFixture(user)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, user, models.CreateAssistantRequest{Name: "  Front desk ", Config: models.AssistantConfig{FirstMessage: "Hi"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.Name != "Front desk" || a.ProviderID == "" || a.Status != models.AssistantStatusActive {
		t.Errorf("unexpected assistant: %+v", a)
	}

	_, err = f.svc.Create(ctx, user, models.CreateAssistantRequest{Name: "Second"})
	if !errors.Is(err, ErrAssistantLimitReached) {
		t.Errorf("error = %v, want ErrAssistantLimitReached", err)
	}
}

func TestCreateAssistantUnlimitedPlan(t *testing.T) {
	user := freeUser()
	user.HasAccess = true
	user.PriceID = "price_ent"
	f := newAssistantFixture(user)
	for i := 0; i < 5; i++ {
		if _, err := f.svc.Create(context.Background(), user, models.CreateAssistantRequest{Name: "A"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
}

func TestCreateAssistantProviderFailure(t *testing.T) {
	user := freeUser()
	f := newAssistantFixture(user)
	f.provider.createErr = &voiceprovider.APIError{StatusCode: 500, Message: "boom"}

	_, err := f.svc.Create(context.Background(), user, models.CreateAssistantRequest{Name: "A"})
	if !errors.Is(err, ErrVoiceProvider) {
		t.Errorf("error = %v, want ErrVoiceProvider", err)
	}
}

func TestGetAssistantScopedToOwner(t *testing.T) {
	owner, other := freeUser(), freeUser()
	a := &models.Assistant{UserID: owner.ID, Name: "A"}
	f := newAssistantFixture(owner, a)

	if _, err := f.svc.Get(context.Background(), other, a.ID.Hex()); !errors.Is(err, ErrAssistantNotFound) {
		t.Errorf("error = %v, want ErrAssistantNotFound", err)
	}
	if _, err := f.svc.Get(context.Background(), owner, "not-an-id"); !errors.Is(err, ErrAssistantNotFound) {
		t.Errorf("error = %v, want ErrAssistantNotFound", err)
	}
}

func TestUpdateAssistantAppliesOnlyProvidedFields(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1", Name: "A",
		Config: models.AssistantConfig{FirstMessage: "Hello", Voice: "jennifer", Temperature: 0.7}}
	f := newAssistantFixture(user, a)

	voice := "ryan"
	updated, err := f.svc.Update(context.Background(), user, a.ID.Hex(), models.UpdateAssistantRequest{Voice: &voice})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Config.Voice != "ryan" || updated.Config.FirstMessage != "Hello" || updated.Config.Temperature != 0.7 {
		t.Errorf("unexpected config: %+v", updated.Config)
	}
	if f.assistants.stored(a.ID).Config.Voice != "ryan" {
		t.Error("update not stored")
	}
}

func TestDeleteAssistantUnassignsNumbers(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1", Name: "A"}
	f := newAssistantFixture(user, a)
	n := &models.PhoneNumber{UserID: user.ID, ProviderID: "pn_1", AssistantID: &a.ID}
	f.phones = newFakePhoneRepo(n)
	f.svc.(*assistantService).PhoneNumbers = f.phones
	f.provider.deleteErr = voiceprovider.ErrNotFound

	if err := f.svc.Delete(context.Background(), user, a.ID.Hex()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if f.assistants.stored(a.ID) != nil {
		t.Error("assistant not deleted")
	}
	if f.phones.stored(n.ID).AssistantID != nil {
		t.Error("phone number still assigned")
	}
}

func TestToggleAssistant(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, Status: models.AssistantStatusActive}
	f := newAssistantFixture(user, a)

	got, err := f.svc.Toggle(context.Background(), user, a.ID.Hex())
	if err != nil || got.Status != models.AssistantStatusInactive {
		t.Fatalf("Toggle() = %+v, %v", got, err)
	}
	got, _ = f.svc.Toggle(context.Background(), user, a.ID.Hex())
	if got.Status != models.AssistantStatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func callAt(start time.Time, seconds int, status, reason string) voiceprovider.Call {
	end := start.Add(time.Duration(seconds) * time.Second)
	return voiceprovider.Call{ID: start.String(), Status: status, EndedReason: reason, StartedAt: &start, EndedAt: &end, CreatedAt: start}
}

func TestRefreshStats(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1"}
	f := newAssistantFixture(user, a)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.provider.calls = []voiceprovider.Call{
		callAt(base, 120, "ended", "customer-ended-call"),
		callAt(base.Add(time.Hour), 60, "ended", "assistant-error"),
		callAt(base.Add(2*time.Hour), 0, "in-progress", ""),
	}
	ctx := context.Background()

	stats, err := f.svc.RefreshStats(ctx, user, a.ID.Hex(), false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 3 || stats.TotalMinutes != 3 || stats.AverageDurationSec != 90 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.SuccessRate != 33.3 {
		t.Errorf("success rate = %v, want 33.3", stats.SuccessRate)
	}
	if stats.LastCallAt == nil || !stats.LastCallAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("last call = %v", stats.LastCallAt)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 3 || u.Usage.MinutesUsed != 3 {
		t.Errorf("usage = %+v", u.Usage)
	}

	// Served from cache: provider changes are not visible until forced.
	f.provider.addCalls(callAt(base.Add(3*time.Hour), 60, "ended", "customer-ended-call"))
	cached, _ := f.svc.RefreshStats(ctx, user, a.ID.Hex(), false)
	if cached.TotalCalls != 3 {
		t.Errorf("cached total = %d, want 3", cached.TotalCalls)
	}
	forced, err := f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if err != nil {
		t.Fatal(err)
	}
	if forced.TotalCalls != 4 || forced.TotalMinutes != 4 || forced.SuccessRate != 50 {
		t.Errorf("forced stats = %+v", forced)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 4 || u.Usage.MinutesUsed != 4 {
		t.Errorf("usage after forced refresh = %+v", u.Usage)
	}

	// Nothing new: totals and usage stay put.
	again, _ := f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if again.TotalCalls != 4 {
		t.Errorf("total after idle refresh = %d, want 4", again.TotalCalls)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 4 {
		t.Errorf("usage after idle refresh = %+v", u.Usage)
	}
}

func minuteCalls(from time.Time, start, n int) []voiceprovider.Call {
	calls := make([]voiceprovider.Call, 0, n)
	for i := start; i < start+n; i++ {
		calls = append(calls, callAt(from.Add(time.Duration(i)*time.Minute), 30, "ended", "customer-ended-call"))
	}
	return calls
}

func TestRefreshStatsCountsFullHistory(t *testing.T) {
	user := freeUser()
	user.Usage = models.Usage{CallsCount: 100, MinutesUsed: 50}
	// Stored before the watermark existed, from a capped call listing.
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1", Stats: models.AssistantStats{TotalCalls: 100, TotalMinutes: 50}}
	f := newAssistantFixture(user, a)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.provider.calls = minuteCalls(base, 0, 250)
	ctx := context.Background()

	stats, err := f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 250 || stats.TotalMinutes != 125 {
		t.Errorf("stats = %+v, want 250 calls and 125 minutes", stats)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 250 || u.Usage.MinutesUsed != 125 {
		t.Errorf("usage = %+v, want 250 calls and 125 minutes", u.Usage)
	}

	f.provider.addCalls(minuteCalls(base, 250, 30)...)
	stats, err = f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 280 || stats.TotalMinutes != 140 {
		t.Errorf("stats = %+v, want 280 calls and 140 minutes", stats)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 280 || u.Usage.MinutesUsed != 140 {
		t.Errorf("usage = %+v, want 280 calls and 140 minutes", u.Usage)
	}
	stored, _ := f.assistants.GetByID(ctx, user.ID, a.ID)
	if want := base.Add(279 * time.Minute); stored.Stats.SyncedThrough == nil || !stored.Stats.SyncedThrough.Equal(want) {
		t.Errorf("syncedThrough = %v, want %v", stored.Stats.SyncedThrough, want)
	}
}

func TestRefreshStatsConcurrentRefreshCountsOnce(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1"}
	f := newAssistantFixture(user, a)
	f.provider.calls = minuteCalls(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 0, 3)
	ctx := context.Background()

	// Another refresh completes between this one reading the watermark and
	// storing its result.
	f.provider.beforeList = func() {
		if _, err := f.svc.RefreshStats(ctx, user, a.ID.Hex(), true); err != nil {
			t.Errorf("concurrent refresh: %v", err)
		}
	}
	stats, err := f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("total = %d, want 3", stats.TotalCalls)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 3 || u.Usage.MinutesUsed != 1.5 {
		t.Errorf("usage = %+v, want 3 calls and 1.5 minutes", u.Usage)
	}
}

func TestRefreshStatsHoldsBackRecentUnfinishedCall(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1"}
	f := newAssistantFixture(user, a)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc.(*assistantService).now = func() time.Time { return now }
	done := callAt(now.Add(-3*time.Hour), 60, "ended", "customer-ended-call")
	live := voiceprovider.Call{ID: "live", Status: "in-progress", CreatedAt: now.Add(-10 * time.Minute)}
	f.provider.calls = []voiceprovider.Call{done, live}
	ctx := context.Background()

	stats, err := f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 1 {
		t.Errorf("total = %d, want 1 while the call is live", stats.TotalCalls)
	}

	started, ended := live.CreatedAt, live.CreatedAt.Add(2*time.Minute)
	f.provider.mu.Lock()
	f.provider.calls[1] = voiceprovider.Call{ID: "live", Status: "ended", EndedReason: "customer-ended-call", StartedAt: &started, EndedAt: &ended, CreatedAt: live.CreatedAt}
	f.provider.mu.Unlock()

	stats, err = f.svc.RefreshStats(ctx, user, a.ID.Hex(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 2 || stats.TotalMinutes != 3 {
		t.Errorf("stats = %+v, want 2 calls and 3 minutes", stats)
	}
	if u := f.users.get(user.ID); u.Usage.CallsCount != 2 || u.Usage.MinutesUsed != 3 {
		t.Errorf("usage = %+v", u.Usage)
	}
}

func TestRefreshStatsProviderFailure(t *testing.T) {
	user := freeUser()
	a := &models.Assistant{UserID: user.ID, ProviderID: "asst_1", Stats: models.AssistantStats{TotalCalls: 7}}
	f := newAssistantFixture(user, a)
	f.provider.listErr = errors.New("timeout")

	stats, err := f.svc.RefreshStats(context.Background(), user, a.ID.Hex(), false)
	if err != nil || stats.TotalCalls != 7 {
		t.Errorf("RefreshStats() = %+v, %v; want stored stats", stats, err)
	}
	if _, err := f.svc.RefreshStats(context.Background(), user, a.ID.Hex(), true); !errors.Is(err, ErrVoiceProvider) {
		t.Errorf("forced error = %v, want ErrVoiceProvider", err)
	}
}
