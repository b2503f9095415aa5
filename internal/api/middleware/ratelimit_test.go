package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestIdentityKeyAfterAuthKeysByUser(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	userID := uuid.New()

	var key string
	chain := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = identityKey(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}))
	chain.ServeHTTP(httptest.NewRecorder(), req)

	want := "user:" + userID.String()
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestIdentityKeyFallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.RemoteAddr = "203.0.113.9:51204"

	if got, want := identityKey(req), "ip:203.0.113.9"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestMiddlewarePassthroughWithoutRedis(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	called := false
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if !called {
		t.Fatal("handler not reached")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("limit headers set without a redis client")
	}
}

func TestLimitForMatchesRoute(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	cases := []struct {
		path string
		want int
	}{
		{"/api/notifications", 120},
		{"/api/notifications/unread-count", 120},
		{"/api/chats/abc/messages", 120},
		{"/api/teachers/online", 60},
		{"/ws", 20},
		{"/health", 300},
	}
	for _, tc := range cases {
		if got := rl.limitFor(tc.path).Requests; got != tc.want {
			t.Errorf("limitFor(%q).Requests = %d, want %d", tc.path, got, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:9999"
	if got := clientIP(req); got != "192.0.2.4" {
		t.Errorf("clientIP = %q, want 192.0.2.4", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Errorf("clientIP with forwarded header = %q, want 198.51.100.7", got)
	}
}

func TestRoutePrefix(t *testing.T) {
	cases := map[string]string{
		"/api/notifications/123/read": "api/notifications",
		"/api/chats":                  "api/chats",
		"/ws":                         "ws",
	}
	for path, want := range cases {
		if got := routePrefix(path); got != want {
			t.Errorf("routePrefix(%q) = %q, want %q", path, got, want)
		}
	}
}
