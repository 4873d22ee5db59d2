// Package smokeclient drives the theme API end to end against a running server.
package smokeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/showcase/internal/models"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func New(baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type listResponse struct {
	Success     bool           `json:"success"`
	Themes      []models.Theme `json:"themes"`
	ActiveTheme *models.Theme  `json:"activeTheme"`
}

type createResponse struct {
	Success bool   `json:"success"`
	ThemeID string `json:"themeId"`
}

type historyResponse struct {
	Success bool                  `json:"success"`
	History []models.HistoryEntry `json:"history"`
}

func (c *Client) ListThemes(ctx context.Context) ([]models.Theme, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/api/themes", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Themes, nil
}

func (c *Client) CreateTheme(ctx context.Context, input models.ThemeInput) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/api/themes", input, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.ThemeID == "" {
		return "", fmt.Errorf("create theme: empty themeId in response")
	}
	return resp.ThemeID, nil
}

func (c *Client) History(ctx context.Context, themeID string) ([]models.HistoryEntry, error) {
	path := "/api/themes/history"
	if themeID != "" {
		path += "?themeId=" + themeID
	}
	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *Client) Revert(ctx context.Context, themeID, historyID string) error {
	body := map[string]string{"themeId": themeID, "historyId": historyID}
	return c.do(ctx, http.MethodPost, "/api/themes/revert", body, http.StatusOK, nil)
}

// Run exercises list, create, list, history and revert in order, returning the
// id of the theme it created.
func (c *Client) Run(ctx context.Context) (string, error) {
	before, err := c.ListThemes(ctx)
	if err != nil {
		return "", fmt.Errorf("list themes: %w", err)
	}
	c.logger.Info().Int("themes", len(before)).Msg("Listed themes")

	name := fmt.Sprintf("Smoke %d", time.Now().Unix())
	themeID, err := c.CreateTheme(ctx, models.ThemeInput{
		Name:       name,
		ThemeStyle: models.ThemeStyle{Primary: "#000", Background: "#ffffff"},
	})
	if err != nil {
		return "", fmt.Errorf("create theme: %w", err)
	}
	c.logger.Info().Str("theme_id", themeID).Msg("Created theme")

	after, err := c.ListThemes(ctx)
	if err != nil {
		return themeID, fmt.Errorf("list themes: %w", err)
	}
	if !containsTheme(after, themeID) {
		return themeID, fmt.Errorf("created theme %s missing from list", themeID)
	}
	c.logger.Info().Int("themes", len(after)).Msg("Created theme is listed")

	history, err := c.History(ctx, themeID)
	if err != nil {
		return themeID, fmt.Errorf("theme history: %w", err)
	}
	if len(history) == 0 {
		return themeID, fmt.Errorf("no history for theme %s", themeID)
	}
	c.logger.Info().Int("entries", len(history)).Msg("Fetched theme history")

	target := history[len(history)-1]
	if err := c.Revert(ctx, themeID, target.ID); err != nil {
		return themeID, fmt.Errorf("revert theme: %w", err)
	}
	c.logger.Info().Str("history_id", target.ID).Msg("Reverted theme")

	return themeID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func containsTheme(themes []models.Theme, id string) bool {
	for _, theme := range themes {
		if theme.ID == id {
			return true
		}
	}
	return false
}
