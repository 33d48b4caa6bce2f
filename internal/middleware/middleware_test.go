package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRateLimiterPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set(ContextUserID, c.Query("user"))
		c.Next()
	}, limiter.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(user string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?user="+user, nil))
		return w.Code
	}
	for i := 0; i < 2; i++ {
		if code := call("ana"); code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := call("ana"); code != http.StatusTooManyRequests {
		t.Errorf("third request: status %d, want 429", code)
	}
	if code := call("bob"); code != http.StatusNoContent {
		t.Errorf("other user: status %d, want 204", code)
	}
}

func TestRateLimiterEvictsIdleUsers(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.get("ana")
	now = now.Add(2 * limiterIdleTTL)
	l.get("bob")
	if _, ok := l.limiters["ana"]; ok {
		t.Error("idle limiter not evicted")
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/items/:id", func(c *gin.Context) {
		c.Set(ContextUserID, "u1")
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/7?x=1", nil))
	generated := w.Header().Get("X-Request-ID")
	if generated == "" {
		t.Fatal("expected a generated X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/items/8", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", first.Level)
	}
	fields := first.ContextMap()
	if fields["request_id"] != generated || fields["user_id"] != "u1" || fields["route"] != "/items/:id" || fields["query"] != "x=1" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if entries[1].ContextMap()["request_id"] != "req-42" {
		t.Errorf("second entry request_id = %v", entries[1].ContextMap()["request_id"])
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if w.Body.String() != `{"error":"Internal Server Error"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware("https://app.example.com/, https://admin.example.com"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin status = %d, want 403", w.Code)
	}
}
