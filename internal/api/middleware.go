// internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/api/apiutil"
	"github.com/codr1/showcase/internal/auth"
	"github.com/codr1/showcase/internal/metrics"
	"github.com/codr1/showcase/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

type requestIDKey struct{}

// ChainMiddleware wraps h so the last middleware listed runs first.
func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// RequestIDFromContext returns the id assigned by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("request_id", RequestIDFromContext(r.Context())).
			Msg("Request completed")
	})
}

// WithMetrics counts requests and their latency. A nil registry is a no-op.
func WithMetrics(reg *metrics.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		if reg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			reg.ObserveRequest(r.Method, wrapped.status, time.Since(start))
		})
	}
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger := log.Ctx(r.Context())
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		logger := log.With().Str("request_id", requestID).Logger()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitOptions configures WithRateLimit.
type RateLimitOptions struct {
	// PathPrefixes selects the gated paths; everything else passes through.
	PathPrefixes []string
	TrustProxy   bool
	Metrics      *metrics.Registry
}

// WithRateLimit admits at most the limiter's quota per client per window on the
// gated paths. When the counter store fails the request is let through.
func WithRateLimit(limiter *ratelimit.Limiter, opts RateLimitOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasAnyPrefix(r.URL.Path, opts.PathPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			logger := log.Ctx(r.Context())
			ip := ratelimit.GetClientIP(r, opts.TrustProxy)

			decision, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				opts.Metrics.ObserveRateLimit("error")
				logger.Error().Err(err).Str("ip", ip).Msg("Rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				opts.Metrics.ObserveRateLimit("denied")
				logger.Warn().
					Str("event", "rate_limit_exceeded").
					Str("ip", ip).
					Str("path", r.URL.Path).
					Dur("retry_after", decision.RetryAfter).
					Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
				apiutil.WriteError(w, r, http.StatusTooManyRequests, "Too many requests")
				return
			}

			opts.Metrics.ObserveRateLimit("allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// WithAdminAuth requires a valid admin bearer token on /admin and everything
// below it, except the login endpoint.
func WithAdminAuth(authenticator *auth.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		gated := RequireAdmin(authenticator)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAdminPath(r.URL.Path) || r.URL.Path == "/admin/login" {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects every request without a valid admin bearer token. Without
// a configured authenticator it answers 503.
func RequireAdmin(authenticator *auth.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.Ctx(r.Context())

			if !authenticator.Configured() {
				logger.Warn().Str("path", r.URL.Path).Msg("Admin access denied: admin auth not configured")
				apiutil.WriteError(w, r, http.StatusServiceUnavailable, "Admin is not configured")
				return
			}

			token, ok := auth.BearerToken(r)
			if !ok {
				logger.Warn().Str("path", r.URL.Path).Msg("Admin access denied: missing bearer token")
				w.Header().Set("WWW-Authenticate", "Bearer")
				apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			claims, err := authenticator.ParseToken(token)
			if err != nil {
				logEvent := logger.Warn()
				if !errors.Is(err, auth.ErrInvalidToken) {
					logEvent = logger.Error()
				}
				logEvent.Err(err).Str("path", r.URL.Path).Msg("Admin access denied: invalid token")
				w.Header().Set("WWW-Authenticate", "Bearer")
				apiutil.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

func isAdminPath(path string) bool {
	return path == "/admin" || strings.HasPrefix(path, "/admin/")
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
