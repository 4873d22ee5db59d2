package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codr1/showcase/internal/api"
	"github.com/codr1/showcase/internal/auth"
	"github.com/codr1/showcase/internal/config"
	"github.com/codr1/showcase/internal/ratelimit"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte("app:\n  name: Showcase\n  port: 8080\ndatabase:\n  driver: sqlite\n  filename: x.db\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestThemeMutationRoutesRequireAdmin(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	authenticator := auth.NewAuthenticator("secret", "showcase", hash, time.Hour)

	mux := http.NewServeMux()
	registerRoutes(mux, testConfig(t), nil, authenticator)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{method: http.MethodPut, path: "/api/themes/abc", body: `{"name":"Neon"}`},
		{method: http.MethodPost, path: "/api/themes/abc/activate"},
	}
	for _, test := range tests {
		t.Run(test.method+" "+test.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(test.method, test.path, strings.NewReader(test.body)))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestThemeMutationRoutesClosedWithoutAdmin(t *testing.T) {
	mux := http.NewServeMux()
	registerRoutes(mux, testConfig(t), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/themes/abc/activate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAdminLoginIsRateLimited(t *testing.T) {
	cfg := testConfig(t)

	mux := http.NewServeMux()
	registerRoutes(mux, cfg, nil, nil)
	limiter := ratelimit.New(&ratelimit.Config{Window: time.Minute, Limit: 2}, nil)
	h := api.ChainMiddleware(mux, api.WithRateLimit(limiter, api.RateLimitOptions{PathPrefixes: cfg.RateLimit.PathPrefixes}))

	var last int
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"guess"}`))
		r.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third login attempt status = %d, want 429", last)
	}
}
