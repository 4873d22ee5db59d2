package smokeclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codr1/showcase/internal/api/themes"
	"github.com/codr1/showcase/internal/store/sqlitestore"
	"github.com/codr1/showcase/internal/testutil"
)

func newThemeServer(t *testing.T) *httptest.Server {
	t.Helper()

	themes.InitHandlers(sqlitestore.New(testutil.NewTestDB(t)), nil, "Smoke")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/themes", themes.HandleListThemes)
	mux.HandleFunc("POST /api/themes", themes.HandleCreateTheme)
	mux.HandleFunc("GET /api/themes/history", themes.HandleThemeHistory)
	mux.HandleFunc("POST /api/themes/revert", themes.HandleRevertTheme)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRun_AgainstThemeHandlers(t *testing.T) {
	server := newThemeServer(t)
	client := New(server.URL, server.Client(), zerolog.Nop())
	ctx := context.Background()

	themeID, err := client.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if themeID == "" {
		t.Fatal("Run() returned empty theme id")
	}

	history, err := client.History(ctx, themeID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want created + reverted", len(history))
	}
	if history[0].ChangeType != "reverted" {
		t.Fatalf("newest change = %q, want reverted", history[0].ChangeType)
	}

	if err := client.Revert(ctx, themeID, "missing"); err == nil {
		t.Fatal("expected revert of unknown history entry to fail")
	} else {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
			t.Fatalf("Revert() error = %v, want 404", err)
		}
	}
}

func TestRun_ReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Failed to fetch themes"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	_, err := New(server.URL, nil, zerolog.Nop()).Run(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Run() error = %v, want StatusError", err)
	}
	if statusErr.Status != http.StatusInternalServerError || statusErr.Path != "/api/themes" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestRun_DetectsMissingTheme(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/themes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"themes":[],"activeTheme":null}`))
	})
	mux.HandleFunc("POST /api/themes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"themeId":"abc","message":"Theme created"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	themeID, err := New(server.URL, nil, zerolog.Nop()).Run(context.Background())
	if err == nil {
		t.Fatal("expected error when created theme is not listed")
	}
	if themeID != "abc" {
		t.Fatalf("themeID = %q, want abc", themeID)
	}
}
