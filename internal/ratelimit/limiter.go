// Package ratelimit provides fixed-window request limiting per client.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// UnknownClient is the bucket used when a request carries no client identifier.
const UnknownClient = "unknown"

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	Window time.Duration // Length of one counting window (default: 15m)
	Limit  int           // Requests admitted per identifier per window (default: 100)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		Window: 15 * time.Minute,
		Limit:  100,
	}
}

// Window is the counter state of one identifier.
type Window struct {
	Count int
	Start time.Time
}

// CounterStore applies one request to the counter for key. A window is reset when
// more than window has elapsed since its start; the request is admitted only if
// the count was below limit, in which case the count is incremented.
type CounterStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Window, bool, error)
}

// Sweeper is implemented by stores that need stale entries evicted explicitly.
type Sweeper interface {
	Sweep(now time.Time, window time.Duration) int
}

// Decision contains the result of a rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter decides admit/deny per client identifier.
type Limiter struct {
	config *Config
	clock  Clock
	store  CounterStore
}

// New creates a limiter over store. A nil config uses DefaultConfig and a nil
// store keeps counters in process memory.
func New(cfg *Config, store CounterStore) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	defaults := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaults.Limit
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{
		config: cfg,
		clock:  clock,
		store:  store,
	}
}

// Limit returns the configured requests per window.
func (l *Limiter) Limit() int {
	return l.config.Limit
}

// Allow records a request from identifier and reports whether it is admitted.
func (l *Limiter) Allow(ctx context.Context, identifier string) (Decision, error) {
	now := l.clock.Now()
	w, allowed, err := l.store.Hit(ctx, bucketKey(identifier), now, l.config.Window, l.config.Limit)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit hit: %w", err)
	}

	d := Decision{
		Allowed: allowed,
		Limit:   l.config.Limit,
		ResetAt: w.Start.Add(l.config.Window),
	}
	if allowed {
		d.Remaining = l.config.Limit - w.Count
	} else {
		d.RetryAfter = d.ResetAt.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d, nil
}

// Sweep evicts stale counters from stores that keep them in memory and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	sweeper, ok := l.store.(Sweeper)
	if !ok {
		return 0
	}
	return sweeper.Sweep(l.clock.Now(), l.config.Window)
}

// bucketKey hashes real identifiers so raw addresses never reach the store; the
// unknown bucket cannot collide with them.
func bucketKey(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return UnknownClient
	}
	return hashKey("ip:", identifier)
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			// All IPs are private, use the last one
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if r.RemoteAddr == "" {
		return ""
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

// privateNetworks holds parsed CIDR ranges for private/reserved IPs.
var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10", // Link-local
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP checks if an IP is in a private/reserved range, including
// IPv4-mapped IPv6 addresses.
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
