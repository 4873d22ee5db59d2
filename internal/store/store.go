// Package store defines the theme store gateway used by the HTTP layer.
package store

import (
	"context"
	"errors"

	"github.com/codr1/showcase/internal/models"
)

// ErrNotFound is returned when a theme id does not exist.
var ErrNotFound = errors.New("theme not found")

// ThemeStore persists themes and their version history. Every mutation appends a
// history entry capturing the theme's state after the write.
type ThemeStore interface {
	ListThemes(ctx context.Context) ([]models.Theme, error)
	// CreateTheme returns the id of the new theme. When input.IsActive is set every
	// other theme is deactivated in the same write.
	CreateTheme(ctx context.Context, input models.ThemeInput) (string, error)
	// GetThemeHistory returns entries newest first; an empty themeID returns all.
	GetThemeHistory(ctx context.Context, themeID string) ([]models.HistoryEntry, error)
	// RevertTheme restores the name and style captured by historyID. It reports false
	// when the theme or the history entry does not exist, or the entry belongs to a
	// different theme.
	RevertTheme(ctx context.Context, themeID, historyID string) (bool, error)
	GetTheme(ctx context.Context, id string) (models.Theme, error)
	UpdateTheme(ctx context.Context, id string, input models.ThemeInput) error
	ActivateTheme(ctx context.Context, id string) error
	Close() error
}
