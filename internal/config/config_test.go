package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `app:
  name: "Showcase"
  port: 8080
database:
  driver: "sqlite"
  filename: "data/showcase.db"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RateLimit.Window != 15*time.Minute {
		t.Fatalf("window = %v, want 15m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Limit != 100 {
		t.Fatalf("limit = %d, want 100", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Backend != "memory" {
		t.Fatalf("backend = %q, want memory", cfg.RateLimit.Backend)
	}
	if len(cfg.RateLimit.PathPrefixes) != 2 || cfg.RateLimit.PathPrefixes[0] != "/api/" || cfg.RateLimit.PathPrefixes[1] != "/admin/login" {
		t.Fatalf("path prefixes = %v", cfg.RateLimit.PathPrefixes)
	}
	if cfg.App.Environment != "development" {
		t.Fatalf("environment = %q", cfg.App.Environment)
	}
	if cfg.App.ShutdownTimeout != 30*time.Second {
		t.Fatalf("shutdown timeout = %v", cfg.App.ShutdownTimeout)
	}
}

func TestLoad_ParsesDurations(t *testing.T) {
	body := minimalConfig + `rate_limit:
  window: 1m
  limit: 5
admin:
  token_ttl: 30m
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RateLimit.Window != time.Minute || cfg.RateLimit.Limit != 5 {
		t.Fatalf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if cfg.Admin.TokenTTL != 30*time.Minute {
		t.Fatalf("token ttl = %v", cfg.Admin.TokenTTL)
	}
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("APP_SECRET_KEY", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "hash")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.SecretKey != "secret" || cfg.Admin.PasswordHash != "hash" {
		t.Fatalf("secrets not loaded: %q %q", cfg.App.SecretKey, cfg.Admin.PasswordHash)
	}
	if !cfg.AdminEnabled() {
		t.Fatalf("expected admin to be enabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing_name",
			body:    "app:\n  port: 8080\ndatabase:\n  driver: sqlite\n  filename: x.db\n",
			wantErr: "app name is required",
		},
		{
			name:    "unsupported_driver",
			body:    "app:\n  name: x\n  port: 8080\ndatabase:\n  driver: postgres\n",
			wantErr: "unsupported database driver",
		},
		{
			name:    "mongo_without_url",
			body:    "app:\n  name: x\n  port: 8080\ndatabase:\n  driver: mongo\n",
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "redis_without_addr",
			body:    minimalConfig + "rate_limit:\n  backend: redis\n",
			wantErr: "redis addr is required",
		},
		{
			name:    "bad_cron",
			body:    minimalConfig + "rate_limit:\n  sweep_cron: \"every minute\"\n",
			wantErr: "invalid rate limit sweep cron",
		},
		{
			name:    "bad_prefix",
			body:    minimalConfig + "rate_limit:\n  path_prefixes: [\"api\"]\n",
			wantErr: "must start with /",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := Parse([]byte(test.body))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, test.wantErr)
			}
		})
	}
}
