// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/api"
	"github.com/codr1/showcase/internal/api/admin"
	"github.com/codr1/showcase/internal/api/themes"
	"github.com/codr1/showcase/internal/auth"
	"github.com/codr1/showcase/internal/config"
	"github.com/codr1/showcase/internal/db"
	"github.com/codr1/showcase/internal/metrics"
	"github.com/codr1/showcase/internal/ratelimit"
	"github.com/codr1/showcase/internal/scheduler"
	"github.com/codr1/showcase/internal/store"
	"github.com/codr1/showcase/internal/store/mongostore"
	"github.com/codr1/showcase/internal/store/sqlitestore"
)

type app struct {
	server  *http.Server
	store   store.ThemeStore
	counter *ratelimit.RedisStore
	closed  bool
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	themeStore, err := openThemeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: themeStore}

	var counterStore ratelimit.CounterStore
	if cfg.RateLimit.Backend == "redis" {
		a.counter, err = ratelimit.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		counterStore = a.counter
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis rate limit counters")
	}
	limiter := ratelimit.New(&ratelimit.Config{
		Window: cfg.RateLimit.Window,
		Limit:  cfg.RateLimit.Limit,
	}, counterStore)

	var registry *metrics.Registry
	if cfg.Features.EnableMetrics {
		registry = metrics.NewRegistry()
	}

	var authenticator *auth.Authenticator
	if cfg.AdminEnabled() {
		authenticator = auth.NewAuthenticator(cfg.App.SecretKey, cfg.Admin.Issuer, cfg.Admin.PasswordHash, cfg.Admin.TokenTTL)
	} else {
		log.Warn().Msg("APP_SECRET_KEY or ADMIN_PASSWORD_HASH not set; admin surface disabled")
	}

	if err := scheduler.Init(); err != nil {
		a.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	svc, err := scheduler.ServiceInstance()
	if err != nil {
		a.Close()
		return nil, err
	}
	if _, err := scheduler.RegisterRateLimitSweep(svc, limiter, cfg.RateLimit.SweepCron); err != nil {
		a.Close()
		return nil, fmt.Errorf("register rate limit sweep: %w", err)
	}

	themes.InitHandlers(themeStore, registry, cfg.App.Name)
	admin.InitHandlers(authenticator, themeStore, cfg.App.Name)

	router := http.NewServeMux()
	registerRoutes(router, cfg, registry, authenticator)

	// Setup middleware chain; the last entry runs first.
	handler := api.ChainMiddleware(
		router,
		api.WithAdminAuth(authenticator),
		api.WithRateLimit(limiter, api.RateLimitOptions{
			PathPrefixes: cfg.RateLimit.PathPrefixes,
			TrustProxy:   cfg.App.TrustProxy,
			Metrics:      registry,
		}),
		api.WithRecovery,
		api.WithMetrics(registry),
		api.WithLogging,
		api.WithRequestID,
	)

	a.server = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

func openThemeStore(ctx context.Context, cfg *config.Config) (store.ThemeStore, error) {
	switch cfg.Database.Driver {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongostore.Connect(connectCtx, cfg.Database.URL, cfg.Database.Name)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		log.Info().Str("database", cfg.Database.Name).Msg("Using mongo theme store")
		return s, nil
	default:
		database, err := db.NewFromFile(cfg.Database.Filename)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		log.Info().Str("filename", cfg.Database.Filename).Msg("Using sqlite theme store")
		return sqlitestore.New(database), nil
	}
}

func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.counter != nil {
		if err := a.counter.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close theme store")
		}
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, registry *metrics.Registry, authenticator *auth.Authenticator) {
	// Home page
	mux.HandleFunc("GET /{$}", themes.HandleHomePage)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if registry != nil {
		mux.Handle("GET /metrics", registry.Handler())
	}

	// Theme routes
	mux.HandleFunc("GET /api/themes", themes.HandleListThemes)
	mux.HandleFunc("POST /api/themes", themes.HandleCreateTheme)
	mux.HandleFunc("GET /api/themes/history", themes.HandleThemeHistory)
	mux.HandleFunc("POST /api/themes/revert", themes.HandleRevertTheme)
	mux.HandleFunc("GET /api/themes/{id}", themes.HandleGetTheme)

	// Changing an existing theme or the live theme needs an admin token.
	requireAdmin := api.RequireAdmin(authenticator)
	mux.Handle("PUT /api/themes/{id}", requireAdmin(http.HandlerFunc(themes.HandleUpdateTheme)))
	mux.Handle("POST /api/themes/{id}/activate", requireAdmin(http.HandlerFunc(themes.HandleActivateTheme)))

	// Admin routes
	mux.HandleFunc("POST /admin/login", admin.HandleLogin)
	mux.HandleFunc("GET /admin/themes", admin.HandleThemesPage)

	fs := http.FileServer(http.Dir(cfg.App.StaticDir))
	mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().
			Str("path", r.URL.Path).
			Str("static_dir", cfg.App.StaticDir).
			Msg("Static file request")
		http.StripPrefix("/static/", fs).ServeHTTP(w, r)
	}))
}
