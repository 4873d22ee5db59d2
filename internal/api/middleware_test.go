package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/codr1/showcase/internal/auth"
	"github.com/codr1/showcase/internal/metrics"
	"github.com/codr1/showcase/internal/ratelimit"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration, int) (ratelimit.Window, bool, error) {
	return ratelimit.Window{}, false, errors.New("redis down")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainMiddleware(okHandler(), mark("inner"), mark("outer"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "outer,inner" {
		t.Fatalf("order = %v, want outer,inner", order)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected request id in context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header %q != context %q", rec.Header().Get("X-Request-ID"), seen)
	}
}

func TestWithRecovery(t *testing.T) {
	h := ChainMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), WithRecovery, WithLogging, WithRequestID)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestWithRateLimit(t *testing.T) {
	clock := fixedClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(&ratelimit.Config{Window: 15 * time.Minute, Limit: 2, Clock: clock}, nil)
	reg := metrics.NewRegistry()
	h := WithRateLimit(limiter, RateLimitOptions{PathPrefixes: []string{"/api/"}, Metrics: reg})(okHandler())

	do := func(path, remoteAddr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := do("/api/themes", "203.0.113.1:5000")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := do("/api/themes", "203.0.113.1:5000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Too many requests" {
		t.Fatalf("error = %q", body["error"])
	}
	if rec.Header().Get("Retry-After") != "900" {
		t.Fatalf("Retry-After = %q, want 900", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", rec.Header())
	}
	wantReset := clock.now.Add(15 * time.Minute).Unix()
	if rec.Header().Get("X-RateLimit-Reset") != strconv.FormatInt(wantReset, 10) {
		t.Fatalf("X-RateLimit-Reset = %q, want %d", rec.Header().Get("X-RateLimit-Reset"), wantReset)
	}

	// Other clients and ungated paths are unaffected.
	if rec := do("/api/themes", "203.0.113.2:5000"); rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d", rec.Code)
	}
	if rec := do("/", "203.0.113.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("ungated path status = %d", rec.Code)
	}
	if rec := do("/", "203.0.113.1:5000"); rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("ungated path should not carry rate limit headers")
	}
}

func TestWithRateLimitFailsOpen(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{Window: time.Minute, Limit: 1}, failingStore{})
	h := WithRateLimit(limiter, RateLimitOptions{PathPrefixes: []string{"/api/"}})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/themes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when the store fails", rec.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := map[time.Duration]int{
		0:                       1,
		500 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		15 * time.Minute:        900,
	}
	for d, want := range tests {
		if got := retryAfterSeconds(d); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestWithAdminAuth(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	authenticator := auth.NewAuthenticator("secret", "showcase", hash, time.Hour)
	token, _, err := authenticator.Login("hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	var sawClaims bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawClaims = auth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := WithAdminAuth(authenticator)(next)

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
		wantClaims bool
	}{
		{name: "public_path", path: "/api/themes", wantStatus: http.StatusOK},
		{name: "admin_prefix_lookalike", path: "/administrator", wantStatus: http.StatusOK},
		{name: "login_open", path: "/admin/login", wantStatus: http.StatusOK},
		{name: "missing_token", path: "/admin/themes", wantStatus: http.StatusUnauthorized},
		{name: "bad_token", path: "/admin", authHeader: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "valid_token", path: "/admin/themes", authHeader: "Bearer " + token, wantStatus: http.StatusOK, wantClaims: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sawClaims = false
			r := httptest.NewRequest(http.MethodGet, test.path, nil)
			if test.authHeader != "" {
				r.Header.Set("Authorization", test.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, test.wantStatus)
			}
			if sawClaims != test.wantClaims {
				t.Fatalf("claims in context = %t, want %t", sawClaims, test.wantClaims)
			}
		})
	}
}

func TestWithAdminAuthNotConfigured(t *testing.T) {
	h := WithAdminAuth(auth.NewAuthenticator("", "showcase", "", time.Hour))(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/themes", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	authenticator := auth.NewAuthenticator("secret", "showcase", hash, time.Hour)
	token, _, err := authenticator.Login("hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	h := RequireAdmin(authenticator)(okHandler())

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "missing_token", wantStatus: http.StatusUnauthorized},
		{name: "bad_token", authHeader: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "valid_token", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Gated regardless of path.
			r := httptest.NewRequest(http.MethodPut, "/api/themes/abc", strings.NewReader(`{"name":"x"}`))
			if test.authHeader != "" {
				r.Header.Set("Authorization", test.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, test.wantStatus)
			}
		})
	}

	rec := httptest.NewRecorder()
	RequireAdmin(nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/themes/abc/activate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status without authenticator = %d, want 503", rec.Code)
	}
}

func TestWithMetricsRecordsStatus(t *testing.T) {
	reg := metrics.NewRegistry()
	h := WithMetrics(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `showcase_http_requests_total{method="GET",status="418"} 1`) {
		t.Fatalf("metrics missing teapot request:\n%s", rec.Body.String())
	}
}
