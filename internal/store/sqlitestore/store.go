// Package sqlitestore stores themes as JSON style documents in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/showcase/internal/db"
	"github.com/codr1/showcase/internal/models"
	"github.com/codr1/showcase/internal/store"
)

const themeColumns = "id, name, style, is_active, created_at, updated_at"

type Store struct {
	db  *db.DB
	now func() time.Time
}

var _ store.ThemeStore = (*Store)(nil)

func New(database *db.DB) *Store {
	return &Store{
		db:  database,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanTheme(row rowScanner) (models.Theme, error) {
	var (
		theme    models.Theme
		style    string
		isActive int64
	)
	if err := row.Scan(&theme.ID, &theme.Name, &style, &isActive, &theme.CreatedAt, &theme.UpdatedAt); err != nil {
		return models.Theme{}, err
	}
	if err := json.Unmarshal([]byte(style), &theme.ThemeStyle); err != nil {
		return models.Theme{}, fmt.Errorf("decode style for theme %s: %w", theme.ID, err)
	}
	theme.IsActive = isActive != 0
	return theme, nil
}

func (s *Store) ListThemes(ctx context.Context) ([]models.Theme, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+themeColumns+" FROM themes ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query themes: %w", err)
	}
	defer rows.Close()

	themes := make([]models.Theme, 0)
	for rows.Next() {
		theme, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate themes: %w", err)
	}
	return themes, nil
}

func (s *Store) GetTheme(ctx context.Context, id string) (models.Theme, error) {
	return getTheme(ctx, s.db, id)
}

func getTheme(ctx context.Context, q querier, id string) (models.Theme, error) {
	theme, err := scanTheme(q.QueryRowContext(ctx,
		"SELECT "+themeColumns+" FROM themes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Theme{}, store.ErrNotFound
	}
	if err != nil {
		return models.Theme{}, fmt.Errorf("get theme %s: %w", id, err)
	}
	return theme, nil
}

func (s *Store) CreateTheme(ctx context.Context, input models.ThemeInput) (string, error) {
	style, err := json.Marshal(input.ThemeStyle)
	if err != nil {
		return "", fmt.Errorf("encode style: %w", err)
	}
	now := s.now()
	theme := models.Theme{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(input.Name),
		ThemeStyle: input.ThemeStyle,
		IsActive:   input.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.RunInTx(ctx, func(tx *sql.Tx) error {
		if theme.IsActive {
			if err := deactivateOthers(ctx, tx, theme.ID, now); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO themes (id, name, style, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			theme.ID, theme.Name, string(style), boolToInt(theme.IsActive), now, now,
		); err != nil {
			return fmt.Errorf("insert theme: %w", err)
		}
		return appendHistory(ctx, tx, theme, models.ChangeCreated, now)
	})
	if err != nil {
		return "", err
	}
	return theme.ID, nil
}

func (s *Store) UpdateTheme(ctx context.Context, id string, input models.ThemeInput) error {
	style, err := json.Marshal(input.ThemeStyle)
	if err != nil {
		return fmt.Errorf("encode style: %w", err)
	}
	now := s.now()

	return s.db.RunInTx(ctx, func(tx *sql.Tx) error {
		theme, err := getTheme(ctx, tx, id)
		if err != nil {
			return err
		}
		theme.Name = strings.TrimSpace(input.Name)
		theme.ThemeStyle = input.ThemeStyle
		theme.UpdatedAt = now

		if _, err := tx.ExecContext(ctx,
			"UPDATE themes SET name = ?, style = ?, updated_at = ? WHERE id = ?",
			theme.Name, string(style), now, id,
		); err != nil {
			return fmt.Errorf("update theme %s: %w", id, err)
		}
		return appendHistory(ctx, tx, theme, models.ChangeUpdated, now)
	})
}

func (s *Store) ActivateTheme(ctx context.Context, id string) error {
	now := s.now()

	return s.db.RunInTx(ctx, func(tx *sql.Tx) error {
		theme, err := getTheme(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := deactivateOthers(ctx, tx, id, now); err != nil {
			return err
		}
		theme.IsActive = true
		theme.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			"UPDATE themes SET is_active = 1, updated_at = ? WHERE id = ?", now, id,
		); err != nil {
			return fmt.Errorf("activate theme %s: %w", id, err)
		}
		return appendHistory(ctx, tx, theme, models.ChangeActivated, now)
	})
}

func (s *Store) RevertTheme(ctx context.Context, themeID, historyID string) (bool, error) {
	now := s.now()
	reverted := false

	err := s.db.RunInTx(ctx, func(tx *sql.Tx) error {
		theme, err := getTheme(ctx, tx, themeID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var snapshotJSON string
		err = tx.QueryRowContext(ctx,
			"SELECT snapshot FROM theme_history WHERE id = ? AND theme_id = ?",
			historyID, themeID,
		).Scan(&snapshotJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load history entry %s: %w", historyID, err)
		}

		var snapshot models.ThemeSnapshot
		if err := json.Unmarshal([]byte(snapshotJSON), &snapshot); err != nil {
			return fmt.Errorf("decode history entry %s: %w", historyID, err)
		}
		style, err := json.Marshal(snapshot.ThemeStyle)
		if err != nil {
			return fmt.Errorf("encode style: %w", err)
		}

		theme.Name = snapshot.Name
		theme.ThemeStyle = snapshot.ThemeStyle
		theme.UpdatedAt = now
		if _, err := tx.ExecContext(ctx,
			"UPDATE themes SET name = ?, style = ?, updated_at = ? WHERE id = ?",
			theme.Name, string(style), now, themeID,
		); err != nil {
			return fmt.Errorf("revert theme %s: %w", themeID, err)
		}
		if err := appendHistory(ctx, tx, theme, models.ChangeReverted, now); err != nil {
			return err
		}
		reverted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return reverted, nil
}

func (s *Store) GetThemeHistory(ctx context.Context, themeID string) ([]models.HistoryEntry, error) {
	query := "SELECT id, theme_id, change_type, snapshot, created_at FROM theme_history"
	var args []any
	if themeID != "" {
		query += " WHERE theme_id = ?"
		args = append(args, themeID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query theme history: %w", err)
	}
	defer rows.Close()

	history := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry    models.HistoryEntry
			snapshot string
		)
		if err := rows.Scan(&entry.ID, &entry.ThemeID, &entry.ChangeType, &snapshot, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("decode history entry %s: %w", entry.ID, err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theme history: %w", err)
	}
	return history, nil
}

// deactivateOthers clears the active flag on every theme but keepID and records
// an updated entry in each deactivated theme's history.
func deactivateOthers(ctx context.Context, q querier, keepID string, now time.Time) error {
	active, err := activeThemesExcept(ctx, q, keepID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	if _, err := q.ExecContext(ctx,
		"UPDATE themes SET is_active = 0, updated_at = ? WHERE is_active = 1 AND id != ?",
		now, keepID,
	); err != nil {
		return fmt.Errorf("deactivate themes: %w", err)
	}
	for _, theme := range active {
		theme.IsActive = false
		theme.UpdatedAt = now
		if err := appendHistory(ctx, q, theme, models.ChangeUpdated, now); err != nil {
			return err
		}
	}
	return nil
}

func activeThemesExcept(ctx context.Context, q querier, keepID string) ([]models.Theme, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+themeColumns+" FROM themes WHERE is_active = 1 AND id != ? ORDER BY created_at, rowid", keepID)
	if err != nil {
		return nil, fmt.Errorf("query active themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme
	for rows.Next() {
		theme, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active themes: %w", err)
	}
	return themes, nil
}

func appendHistory(ctx context.Context, q querier, theme models.Theme, change models.ChangeType, now time.Time) error {
	snapshot, err := json.Marshal(theme.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO theme_history (id, theme_id, change_type, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), theme.ID, string(change), string(snapshot), now,
	); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
