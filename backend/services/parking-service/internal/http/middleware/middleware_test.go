package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/auth"
)

type stubValidator struct {
	identity auth.Identity
	err      error
}

func (s stubValidator) Validate(string) (auth.Identity, error) {
	return s.identity, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		header string
		v      stubValidator
		want   int
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("bad")}, http.StatusUnauthorized},
		{"valid token", "bearer abc", stubValidator{identity: auth.Identity{UserID: "U_1"}}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen auth.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = auth.FromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/me/card", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(tc.v)(next).ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusNoContent && seen.UserID != "U_1" {
				t.Fatalf("identity not propagated: %+v", seen)
			}
		})
	}
}

func TestAccessTokenQueryOnlyOnWebSocketAuth(t *testing.T) {
	v := stubValidator{identity: auth.Identity{UserID: "U_1"}}
	cases := []struct {
		name string
		mw   func(http.Handler) http.Handler
		url  string
		want int
	}{
		{"api rejects query token", AuthMiddleware(v), "/me/card?access_token=abc", http.StatusUnauthorized},
		{"ws accepts query token", WSAuthMiddleware(v), "/ws/events?access_token=abc", http.StatusNoContent},
		{"ws requires some token", WSAuthMiddleware(v), "/ws/events", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.mw(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/events?access_token=abc", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	WSAuthMiddleware(v)(okHandler()).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("malformed header must not fall back to query token, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "U_1", Role: "user"}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user: status = %d", w.Code)
	}

	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "U_2", Role: "admin"}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin: status = %d", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	w := httptest.NewRecorder()
	RecoveryMiddleware(zap.NewNop())(panicking).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	w := httptest.NewRecorder()
	LoggingMiddleware(zap.NewNop())(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(60, 2, zap.NewNop())
	defer rl.Stop()
	handler := rl.Middleware(okHandler())

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:1234"); code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i, code)
		}
	}
	if code := do("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := do("10.0.0.2:1234"); code != http.StatusNoContent {
		t.Fatalf("other ip should pass, got %d", code)
	}

	rl.sweep(time.Now().Add(time.Hour))
	if rl.Len() != 0 {
		t.Fatalf("expected idle entries swept, got %d", rl.Len())
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mw("a"), mw("b")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
}
