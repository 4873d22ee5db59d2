// Package mongostore keeps themes and their history in MongoDB collections.
//
// Mongo stores timestamps at millisecond precision, so history entries also
// carry a per-process sequence number that orders entries written within the
// same millisecond. Entries written by different processes in the same
// millisecond have no defined order.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codr1/showcase/internal/models"
	"github.com/codr1/showcase/internal/store"
)

const (
	themesCollection  = "themes"
	historyCollection = "theme_history"
)

type Store struct {
	client  *mongo.Client
	themes  *mongo.Collection
	history *mongo.Collection
	now     func() time.Time
	seq     *sequence
}

// historyDocument is a history entry as stored; seq breaks created_at ties.
type historyDocument struct {
	models.HistoryEntry `bson:",inline"`
	Seq                 int64 `bson:"seq"`
}

// sequence hands out strictly increasing values seeded from the wall clock.
type sequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (s *sequence) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.now().UnixNano()
	if v <= s.last {
		v = s.last + 1
	}
	s.last = v
	return v
}

var _ store.ThemeStore = (*Store)(nil)

// Connect dials uri, verifies the connection and ensures the history index exists.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client, database)
	_, err = s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "theme_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "seq", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create history index: %w", err)
	}
	return s, nil
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:  client,
		themes:  db.Collection(themesCollection),
		history: db.Collection(historyCollection),
		// Mongo stores milliseconds.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		seq: &sequence{now: time.Now},
	}
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) ListThemes(ctx context.Context) ([]models.Theme, error) {
	cursor, err := s.themes.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find themes: %w", err)
	}
	themes := make([]models.Theme, 0)
	if err := cursor.All(ctx, &themes); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}
	return themes, nil
}

func (s *Store) GetTheme(ctx context.Context, id string) (models.Theme, error) {
	var theme models.Theme
	err := s.themes.FindOne(ctx, bson.M{"_id": id}).Decode(&theme)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Theme{}, store.ErrNotFound
	}
	if err != nil {
		return models.Theme{}, fmt.Errorf("find theme %s: %w", id, err)
	}
	return theme, nil
}

func (s *Store) CreateTheme(ctx context.Context, input models.ThemeInput) (string, error) {
	now := s.now()
	theme := models.Theme{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(input.Name),
		ThemeStyle: input.ThemeStyle,
		IsActive:   input.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if theme.IsActive {
		if err := s.deactivateOthers(ctx, theme.ID, now); err != nil {
			return "", err
		}
	}
	if _, err := s.themes.InsertOne(ctx, theme); err != nil {
		return "", fmt.Errorf("insert theme: %w", err)
	}
	if err := s.appendHistory(ctx, theme, models.ChangeCreated, now); err != nil {
		return "", err
	}
	return theme.ID, nil
}

func (s *Store) UpdateTheme(ctx context.Context, id string, input models.ThemeInput) error {
	theme, err := s.GetTheme(ctx, id)
	if err != nil {
		return err
	}
	theme.Name = strings.TrimSpace(input.Name)
	theme.ThemeStyle = input.ThemeStyle
	theme.UpdatedAt = s.now()

	if err := s.replaceStyle(ctx, theme); err != nil {
		return err
	}
	return s.appendHistory(ctx, theme, models.ChangeUpdated, theme.UpdatedAt)
}

func (s *Store) ActivateTheme(ctx context.Context, id string) error {
	theme, err := s.GetTheme(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.deactivateOthers(ctx, id, now); err != nil {
		return err
	}
	result, err := s.themes.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("activate theme %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	theme.IsActive = true
	theme.UpdatedAt = now
	return s.appendHistory(ctx, theme, models.ChangeActivated, now)
}

func (s *Store) RevertTheme(ctx context.Context, themeID, historyID string) (bool, error) {
	theme, err := s.GetTheme(ctx, themeID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var entry models.HistoryEntry
	err = s.history.FindOne(ctx, bson.M{"_id": historyID, "theme_id": themeID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find history entry %s: %w", historyID, err)
	}

	theme.Name = entry.Snapshot.Name
	theme.ThemeStyle = entry.Snapshot.ThemeStyle
	theme.UpdatedAt = s.now()
	if err := s.replaceStyle(ctx, theme); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.appendHistory(ctx, theme, models.ChangeReverted, theme.UpdatedAt); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetThemeHistory(ctx context.Context, themeID string) ([]models.HistoryEntry, error) {
	filter := bson.M{}
	if themeID != "" {
		filter["theme_id"] = themeID
	}
	cursor, err := s.history.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find theme history: %w", err)
	}
	history := make([]models.HistoryEntry, 0)
	if err := cursor.All(ctx, &history); err != nil {
		return nil, fmt.Errorf("decode theme history: %w", err)
	}
	return history, nil
}

// replaceStyle rewrites name and style, leaving is_active alone.
func (s *Store) replaceStyle(ctx context.Context, theme models.Theme) error {
	set := bson.M{
		"name":       theme.Name,
		"updated_at": theme.UpdatedAt,
	}
	unset := bson.M{}
	for field, value := range styleFields(theme.ThemeStyle) {
		if value == "" {
			unset[field] = ""
			continue
		}
		set[field] = value
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := s.themes.UpdateOne(ctx, bson.M{"_id": theme.ID}, update)
	if err != nil {
		return fmt.Errorf("update theme %s: %w", theme.ID, err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func styleFields(style models.ThemeStyle) map[string]string {
	return map[string]string{
		"primary":    style.Primary,
		"secondary":  style.Secondary,
		"accent":     style.Accent,
		"background": style.Background,
		"text":       style.Text,
		"font":       style.Font,
	}
}

// Mongo transactions need a replica set, so the flag is cleared with one bulk
// update ahead of the write that sets it. Each deactivated theme gets an
// updated history entry.
func (s *Store) deactivateOthers(ctx context.Context, keepID string, now time.Time) error {
	filter := bson.M{"is_active": true, "_id": bson.M{"$ne": keepID}}
	cursor, err := s.themes.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("find active themes: %w", err)
	}
	var active []models.Theme
	if err := cursor.All(ctx, &active); err != nil {
		return fmt.Errorf("decode active themes: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	ids := make([]string, 0, len(active))
	for _, theme := range active {
		ids = append(ids, theme.ID)
	}
	_, err = s.themes.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("deactivate themes: %w", err)
	}
	for _, theme := range active {
		theme.IsActive = false
		theme.UpdatedAt = now
		if err := s.appendHistory(ctx, theme, models.ChangeUpdated, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendHistory(ctx context.Context, theme models.Theme, change models.ChangeType, now time.Time) error {
	doc := historyDocument{
		HistoryEntry: models.HistoryEntry{
			ID:         uuid.NewString(),
			ThemeID:    theme.ID,
			ChangeType: change,
			Snapshot:   theme.Snapshot(),
			CreatedAt:  now,
		},
		Seq: s.seq.next(),
	}
	if _, err := s.history.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}
