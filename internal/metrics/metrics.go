// Package metrics exposes the site's Prometheus counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns its own prometheus registry so tests can create several. All
// methods are safe to call on a nil *Registry.
type Registry struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimitResult *prometheus.CounterVec
	themeChanges    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "showcase_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		rateLimitResult: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_rate_limit_decisions_total",
				Help: "Rate limit decisions by outcome.",
			},
			[]string{"outcome"},
		),
		themeChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_theme_changes_total",
				Help: "Theme mutations by change type.",
			},
			[]string{"change_type"},
		),
	}
	r.registry.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.rateLimitResult,
		r.themeChanges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRequest records one served request.
func (r *Registry) ObserveRequest(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRateLimit records a limiter outcome: "allowed", "denied" or "error".
func (r *Registry) ObserveRateLimit(outcome string) {
	if r == nil {
		return
	}
	r.rateLimitResult.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveThemeChange(changeType string) {
	if r == nil {
		return
	}
	r.themeChanges.WithLabelValues(changeType).Inc()
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
