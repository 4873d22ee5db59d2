// Package admin serves the authenticated admin surface.
package admin

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/api/apiutil"
	"github.com/codr1/showcase/internal/auth"
	"github.com/codr1/showcase/internal/models"
	"github.com/codr1/showcase/internal/store"
	"github.com/codr1/showcase/internal/templates/layouts"
)

const adminQueryTimeout = 5 * time.Second

var (
	authenticator *auth.Authenticator
	themeStore    store.ThemeStore
	siteName      = "Showcase"
	initOnce      sync.Once
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(a *auth.Authenticator, s store.ThemeStore, name string) {
	initOnce.Do(func() {
		authenticator = a
		themeStore = s
		if name != "" {
			siteName = name
		}
	})
}

// POST /admin/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if !authenticator.Configured() {
		apiutil.WriteError(w, r, http.StatusServiceUnavailable, "Admin is not configured")
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil || req.Password == "" {
		apiutil.WriteError(w, r, http.StatusBadRequest, "password is required")
		return
	}

	token, expiresAt, err := authenticator.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn().Str("ip", r.RemoteAddr).Msg("Admin login failed")
			apiutil.WriteError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		logger.Error().Err(err).Msg("Failed to issue admin token")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}
	logger.Info().Time("expires_at", expiresAt).Msg("Admin logged in")

	if err := apiutil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt}); err != nil {
		logger.Error().Err(err).Msg("Failed to write login response")
	}
}

// GET /admin/themes
func HandleThemesPage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if themeStore == nil {
		logger.Error().Msg("Theme store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	themes, err := themeStore.ListThemes(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list themes")
		http.Error(w, "Failed to load themes", http.StatusInternalServerError)
		return
	}

	apiutil.RenderHTML(w, r, http.StatusOK, layouts.AdminThemes(siteName, themes, models.FirstActive(themes)))
}
