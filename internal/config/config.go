// Package config loads server configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Database DatabaseConfig
	Search   SearchConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Email    EmailConfig
	Notify   NotifyConfig
	Jobs     JobsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataDir holds the database, search index and auth key unless overridden.
	DataDir string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// AllowedOrigins for CORS; "*" allows any.
	AllowedOrigins []string
}

// DatabaseConfig holds entity store configuration.
type DatabaseConfig struct {
	Path string
}

// SearchConfig holds book search index configuration.
type SearchConfig struct {
	IndexPath string
}

// AuthConfig holds access token configuration.
type AuthConfig struct {
	// KeyPath is the hex-encoded PASETO v4 key file, created on first start.
	KeyPath             string
	AccessTokenDuration time.Duration
}

// BillingConfig holds payment provider configuration. An empty SecretKey
// disables checkout and cancellation.
type BillingConfig struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	TrialDays     int
	FrontendURL   string
}

// Enabled reports whether the payment provider is configured.
func (b BillingConfig) Enabled() bool {
	return b.SecretKey != "" && b.PriceID != ""
}

// EmailConfig holds transactional email configuration. An empty APIKey
// switches email delivery to log-only.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	AppURL    string
}

// NotifyConfig sizes the notification queue and worker pool.
type NotifyConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// JobsConfig holds scheduled job configuration.
type JobsConfig struct {
	// BadgeReconcileSchedule is a cron spec; empty disables the job.
	BadgeReconcileSchedule string
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("booksswap", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataDir := fs.String("data-dir", "", "Directory for database, search index and keys")
	dbPath := fs.String("db-path", "", "SQLite database path (default: {data-dir}/booksswap.db)")
	indexPath := fs.String("search-index", "", "Search index path (default: {data-dir}/search.bleve)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	tokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 168h)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// godotenv.Load never overrides variables already set in the environment.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataDir:     getConfigValue(*dataDir, "DATA_DIR", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue("", "CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DATABASE_PATH", ""),
		},
		Search: SearchConfig{
			IndexPath: getConfigValue(*indexPath, "SEARCH_INDEX_PATH", ""),
		},
		Auth: AuthConfig{
			KeyPath: getConfigValue("", "AUTH_KEY_PATH", ""),
		},
		Billing: BillingConfig{
			SecretKey:     getConfigValue("", "STRIPE_SECRET_KEY", ""),
			PriceID:       getConfigValue("", "STRIPE_PRICE_ID", ""),
			WebhookSecret: getConfigValue("", "STRIPE_WEBHOOK_SECRET", ""),
			TrialDays:     getIntConfigValue("", "TRIAL_DAYS", 7),
			FrontendURL:   getConfigValue("", "FRONTEND_URL", "http://localhost:5173"),
		},
		Email: EmailConfig{
			APIKey:    getConfigValue("", "SENDGRID_API_KEY", ""),
			FromEmail: getConfigValue("", "SENDGRID_FROM_EMAIL", "hello@booksswap.co.uk"),
			FromName:  getConfigValue("", "SENDGRID_FROM_NAME", "BooksSwap"),
			AppURL:    getConfigValue("", "APP_URL", "http://localhost:5173"),
		},
		Notify: NotifyConfig{
			QueueSize: getIntConfigValue("", "NOTIFY_QUEUE_SIZE", 256),
			Workers:   getIntConfigValue("", "NOTIFY_WORKERS", 2),
		},
		Jobs: JobsConfig{
			BadgeReconcileSchedule: getConfigValue("", "BADGE_RECONCILE_SCHEDULE", "0 3 * * *"),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*tokenDuration, "ACCESS_TOKEN_DURATION", "168h", &cfg.Auth.AccessTokenDuration},
		{"", "NOTIFY_SEND_TIMEOUT", "10s", &cfg.Notify.SendTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}
	if c.Auth.AccessTokenDuration <= 0 {
		return errors.New("access token duration must be positive")
	}
	if c.Notify.Workers < 1 {
		return fmt.Errorf("notify workers must be at least 1, got %d", c.Notify.Workers)
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("notify queue size must be at least 1, got %d", c.Notify.QueueSize)
	}
	if c.Billing.TrialDays < 0 {
		return fmt.Errorf("trial days cannot be negative, got %d", c.Billing.TrialDays)
	}
	if c.App.Environment == "production" && c.Billing.SecretKey != "" && c.Billing.WebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in production when billing is enabled")
	}
	return nil
}

// expandPaths resolves the data directory and derives unset file paths from it.
func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dir, err := expandPath(c.App.DataDir, filepath.Join(home, ".booksswap"))
	if err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}
	c.App.DataDir = dir

	targets := []struct {
		dst *string
		def string
	}{
		{&c.Database.Path, filepath.Join(dir, "booksswap.db")},
		{&c.Search.IndexPath, filepath.Join(dir, "search.bleve")},
		{&c.Auth.KeyPath, filepath.Join(dir, "auth.key")},
	}
	for _, t := range targets {
		p, err := expandPath(*t.dst, t.def)
		if err != nil {
			return err
		}
		*t.dst = p
	}
	return nil
}

// expandPath expands ~ and makes path absolute. An empty path yields defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
