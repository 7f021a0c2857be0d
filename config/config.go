// Package config loads settings from an optional .env file, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"church-checkin/internal/services"
)

const (
	StoreSqlite     = "sqlite"
	StorePostgres   = "postgres"
	StorePocketBase = "pocketbase"
)

type ctxKey string

const contextKey ctxKey = "config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(contextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	// HTTP server
	BindAddr        string        `yaml:"bindAddr"        envconfig:"BIND_ADDR"`
	PublicURL       string        `yaml:"publicUrl"       envconfig:"PUBLIC_URL"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`

	// Storage backend
	Store           string `yaml:"store"           envconfig:"STORE"`
	DatabasePath    string `yaml:"databasePath"    envconfig:"DATABASE_PATH"`
	DatabaseURL     string `yaml:"databaseUrl"     envconfig:"DATABASE_URL"`
	PocketBaseURL   string `yaml:"pocketbaseUrl"   envconfig:"POCKETBASE_URL"`
	PocketBaseToken string `yaml:"pocketbaseToken" envconfig:"POCKETBASE_TOKEN"`

	// Service days are calendar dates in this IANA zone
	Timezone         string `yaml:"timezone"         envconfig:"TIMEZONE"`
	ServiceStartTime string `yaml:"serviceStartTime" envconfig:"SERVICE_START_TIME"`

	// Sessions
	JWTSecret         string        `yaml:"jwtSecret"         envconfig:"JWT_SECRET"`
	SessionTTL        time.Duration `yaml:"sessionTtl"        envconfig:"SESSION_TTL"`
	AdminSecretHash   string        `yaml:"adminSecretHash"   envconfig:"ADMIN_SECRET_HASH"`
	ScannerSecretHash string        `yaml:"scannerSecretHash" envconfig:"SCANNER_SECRET_HASH"`

	// Telegram Bot
	TelegramBotToken string `yaml:"telegramBotToken" envconfig:"TELEGRAM_BOT_TOKEN"`
	AuthorizedChatID string `yaml:"authorizedChatId" envconfig:"AUTHORIZED_CHAT_ID"`

	// Kiosk and watcher
	ServerURL      string        `yaml:"serverUrl"      envconfig:"SERVER_URL"`
	ScannerToken   string        `yaml:"scannerToken"   envconfig:"SCANNER_TOKEN"`
	DashboardToken string        `yaml:"dashboardToken" envconfig:"DASHBOARD_TOKEN"`
	StationName    string        `yaml:"stationName"    envconfig:"STATION_NAME"`
	CaptureDevice  string        `yaml:"captureDevice"  envconfig:"CAPTURE_DEVICE"`
	PollInterval   time.Duration `yaml:"pollInterval"   envconfig:"POLL_INTERVAL"`

	Debug bool `yaml:"debug" envconfig:"DEBUG"`
}

func defaults() *Config {
	return &Config{
		BindAddr:        ":8080",
		PublicURL:       "http://localhost:8080",
		ShutdownTimeout: 5 * time.Second,
		Store:           StoreSqlite,
		DatabasePath:    ".checkin",
		PocketBaseURL:   "http://127.0.0.1:8090",
		Timezone:        "Local",
		SessionTTL:      12 * time.Hour,
		ServerURL:       "http://localhost:8080",
		StationName:     "kiosk",
		CaptureDevice:   "-",
		PollInterval:    5 * time.Second,
	}
}

// LoadConfig builds the configuration. configFile may be empty.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	cfg := defaults()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings needed by every command
func (c *Config) Validate() error {
	if !slices.Contains([]string{StoreSqlite, StorePostgres, StorePocketBase}, c.Store) {
		return fmt.Errorf("invalid store: %q (must be 'sqlite', 'postgres', or 'pocketbase')", c.Store)
	}
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for the postgres store")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ServiceStartTime != "" {
		if _, err := services.ParseServiceStart(c.ServiceStartTime); err != nil {
			return fmt.Errorf("invalid service start time %q (want HH:MM or HH:MM:SS)", c.ServiceStartTime)
		}
	}
	return nil
}

// Location returns the operating timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
