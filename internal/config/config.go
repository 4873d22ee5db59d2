// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultRateLimitMax    = 100
	DefaultSweepCron       = "*/5 * * * *"
	defaultShutdownTimeout = 30 * time.Second
	defaultTokenTTL        = 8 * time.Hour
	defaultAdminIssuer     = "showcase"
	defaultMongoDatabase   = "showcase"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	// Mongo database name; the connection string is loaded from DATABASE_URL.
	Name string `yaml:"name,omitempty"`
	URL  string `yaml:"-"`
}

type RateLimitConfig struct {
	Backend      string        `yaml:"backend"`
	Window       time.Duration `yaml:"window"`
	Limit        int           `yaml:"limit"`
	PathPrefixes []string      `yaml:"path_prefixes"`
	SweepCron    string        `yaml:"sweep_cron"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // Loaded from environment
}

type AdminConfig struct {
	Issuer       string        `yaml:"issuer"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	PasswordHash string        `yaml:"-"` // Loaded from environment
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		BaseURL         string        `yaml:"base_url"`
		TrustProxy      bool          `yaml:"trust_proxy"`
		StaticDir       string        `yaml:"static_dir"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SecretKey       string        `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Admin     AdminConfig     `yaml:"admin"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.Admin.PasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Database.URL = os.Getenv("DATABASE_URL")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes yaml and fills in defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.App.StaticDir == "" {
		c.App.StaticDir = "build/bin/static"
	}
	if c.Database.Driver == "mongo" && c.Database.Name == "" {
		c.Database.Name = defaultMongoDatabase
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultRateLimitWindow
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = DefaultRateLimitMax
	}
	if len(c.RateLimit.PathPrefixes) == 0 {
		c.RateLimit.PathPrefixes = []string{"/api/", "/admin/login"}
	}
	if c.RateLimit.SweepCron == "" {
		c.RateLimit.SweepCron = DefaultSweepCron
	}
	if c.Admin.Issuer == "" {
		c.Admin.Issuer = defaultAdminIssuer
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = defaultTokenTTL
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "mongo":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for mongo")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	for _, prefix := range c.RateLimit.PathPrefixes {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("rate limit path prefix %q must start with /", prefix)
		}
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unsupported rate limit backend: %s", c.RateLimit.Backend)
	}
	if _, err := cron.ParseStandard(c.RateLimit.SweepCron); err != nil {
		return fmt.Errorf("invalid rate limit sweep cron %q: %w", c.RateLimit.SweepCron, err)
	}

	return nil
}

// AdminEnabled reports whether the admin surface has the secrets it needs.
func (c *Config) AdminEnabled() bool {
	return c.App.SecretKey != "" && c.Admin.PasswordHash != ""
}
