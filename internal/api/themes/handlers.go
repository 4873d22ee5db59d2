// internal/api/themes/handlers.go
package themes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/api/apiutil"
	"github.com/codr1/showcase/internal/metrics"
	"github.com/codr1/showcase/internal/models"
	"github.com/codr1/showcase/internal/store"
	"github.com/codr1/showcase/internal/templates/layouts"
)

const (
	themeQueryTimeout = 5 * time.Second
	themeIDParam      = "id"
	themeIDQueryKey   = "themeId"
)

var (
	themeStore  store.ThemeStore
	registry    *metrics.Registry
	siteName    = "Showcase"
	handlerOnce sync.Once
)

type revertRequest struct {
	ThemeID   string `json:"themeId"`
	HistoryID string `json:"historyId"`
}

type listResponse struct {
	Success     bool           `json:"success"`
	Themes      []models.Theme `json:"themes"`
	ActiveTheme *models.Theme  `json:"activeTheme"`
}

type createResponse struct {
	Success bool   `json:"success"`
	ThemeID string `json:"themeId"`
	Message string `json:"message"`
}

type historyResponse struct {
	Success bool                  `json:"success"`
	History []models.HistoryEntry `json:"history"`
}

type themeResponse struct {
	Success bool         `json:"success"`
	Theme   models.Theme `json:"theme"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s store.ThemeStore, reg *metrics.Registry, name string) {
	if s == nil {
		return
	}
	handlerOnce.Do(func() {
		themeStore = s
		registry = reg
		if name != "" {
			siteName = name
		}
	})
}

func loadStore() store.ThemeStore {
	return themeStore
}

// GET /api/themes
func HandleListThemes(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	themes, err := s.ListThemes(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list themes")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to fetch themes")
		return
	}
	if themes == nil {
		themes = []models.Theme{}
	}

	resp := listResponse{
		Success:     true,
		Themes:      themes,
		ActiveTheme: models.FirstActive(themes),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write themes response")
	}
}

// POST /api/themes
func HandleCreateTheme(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var input models.ThemeInput
	if err := apiutil.DecodeJSON(r, &input); err != nil {
		logger.Error().Err(err).Msg("Failed to decode theme payload")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to create theme")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	themeID, err := s.CreateTheme(ctx, input)
	if err != nil {
		logger.Error().Err(err).Str("name", input.Name).Msg("Failed to create theme")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to create theme")
		return
	}
	registry.ObserveThemeChange(string(models.ChangeCreated))
	logger.Info().Str("theme_id", themeID).Str("name", input.Name).Msg("Theme created")

	resp := createResponse{
		Success: true,
		ThemeID: themeID,
		Message: "Theme created successfully",
	}
	if err := apiutil.WriteJSON(w, http.StatusCreated, resp); err != nil {
		logger.Error().Err(err).Str("theme_id", themeID).Msg("Failed to write theme create response")
	}
}

// GET /api/themes/history?themeId=
func HandleThemeHistory(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	themeID := strings.TrimSpace(r.URL.Query().Get(themeIDQueryKey))

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	history, err := s.GetThemeHistory(ctx, themeID)
	if err != nil {
		logger.Error().Err(err).Str("theme_id", themeID).Msg("Failed to load theme history")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to fetch theme history")
		return
	}
	if history == nil {
		history = []models.HistoryEntry{}
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, historyResponse{Success: true, History: history}); err != nil {
		logger.Error().Err(err).Msg("Failed to write theme history response")
	}
}

// POST /api/themes/revert
func HandleRevertTheme(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req revertRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode revert payload")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to revert theme")
		return
	}
	req.ThemeID = strings.TrimSpace(req.ThemeID)
	req.HistoryID = strings.TrimSpace(req.HistoryID)
	if req.ThemeID == "" || req.HistoryID == "" {
		apiutil.WriteError(w, r, http.StatusBadRequest, "themeId and historyId are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	ok, err := s.RevertTheme(ctx, req.ThemeID, req.HistoryID)
	if err != nil {
		logger.Error().Err(err).Str("theme_id", req.ThemeID).Str("history_id", req.HistoryID).Msg("Failed to revert theme")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Failed to revert theme")
		return
	}
	if !ok {
		apiutil.WriteError(w, r, http.StatusNotFound, "Theme or history entry not found")
		return
	}
	registry.ObserveThemeChange(string(models.ChangeReverted))
	logger.Info().Str("theme_id", req.ThemeID).Str("history_id", req.HistoryID).Msg("Theme reverted")

	if err := apiutil.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Theme reverted successfully"}); err != nil {
		logger.Error().Err(err).Str("theme_id", req.ThemeID).Msg("Failed to write theme revert response")
	}
}

// GET /api/themes/{id}
func HandleGetTheme(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	themeID := r.PathValue(themeIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	theme, err := s.GetTheme(ctx, themeID)
	if err != nil {
		apiutil.WriteHandlerError(w, r, storeError(err, "Failed to fetch theme"), "Failed to fetch theme")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, themeResponse{Success: true, Theme: theme}); err != nil {
		logger.Error().Err(err).Str("theme_id", themeID).Msg("Failed to write theme response")
	}
}

// PUT /api/themes/{id}
func HandleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	themeID := r.PathValue(themeIDParam)

	var input models.ThemeInput
	if err := apiutil.DecodeJSON(r, &input); err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := input.Validate(); err != nil {
		apiutil.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	if err := s.UpdateTheme(ctx, themeID, input); err != nil {
		apiutil.WriteHandlerError(w, r, storeError(err, "Failed to update theme"), "Failed to update theme")
		return
	}
	registry.ObserveThemeChange(string(models.ChangeUpdated))
	logger.Info().Str("theme_id", themeID).Msg("Theme updated")

	if err := apiutil.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Theme updated successfully"}); err != nil {
		logger.Error().Err(err).Str("theme_id", themeID).Msg("Failed to write theme update response")
	}
}

// POST /api/themes/{id}/activate
func HandleActivateTheme(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	s := loadStore()
	if s == nil {
		logger.Error().Msg("Theme store not initialized")
		apiutil.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	themeID := r.PathValue(themeIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
	defer cancel()

	if err := s.ActivateTheme(ctx, themeID); err != nil {
		apiutil.WriteHandlerError(w, r, storeError(err, "Failed to activate theme"), "Failed to activate theme")
		return
	}
	registry.ObserveThemeChange(string(models.ChangeActivated))
	logger.Info().Str("theme_id", themeID).Msg("Theme activated")

	if err := apiutil.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Theme activated successfully"}); err != nil {
		logger.Error().Err(err).Str("theme_id", themeID).Msg("Failed to write theme activate response")
	}
}

// GET /
func HandleHomePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	logger := log.Ctx(r.Context())

	var active *models.Theme
	if s := loadStore(); s != nil {
		ctx, cancel := context.WithTimeout(r.Context(), themeQueryTimeout)
		defer cancel()

		themes, err := s.ListThemes(ctx)
		if err != nil {
			// The page still renders with the default theme.
			logger.Error().Err(err).Msg("Failed to load active theme")
		} else {
			active = models.FirstActive(themes)
		}
	}

	apiutil.RenderHTML(w, r, http.StatusOK, layouts.Home(siteName, active, layouts.HomeSections()))
}

func storeError(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Theme not found", Err: err}
	}
	return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: message, Err: err}
}
