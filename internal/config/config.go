// Package config loads Flagscope service configuration from FLAGSCOPE_* environment
// variables using envconfig and validates it with go-playground/validator plus
// per-section rules that tighten in production.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the prefix shared by every environment variable.
	EnvPrefix = "FLAGSCOPE"

	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"
)

// Config holds the complete service configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Syncer        SyncerConfig        `envconfig:"SYNCER"`
	Cache         CacheConfig         `envconfig:"CACHE"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// AppConfig contains settings shared by every binary.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"flagscope"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// ServerConfig groups the HTTP listeners.
type ServerConfig struct {
	API APIConfig `envconfig:"API"`
}

// Load reads FLAGSCOPE_* environment variables and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs struct tag validation followed by the per-section checks.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if err := c.Database.Validate(c.App.Environment); err != nil {
		return err
	}
	if err := c.Redis.Validate(c.App.Environment); err != nil {
		return err
	}
	if err := c.Server.API.Validate(c.App.Environment); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// LogConfig logs the loaded configuration. Secrets are never logged.
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("api_port", c.Server.API.Port),
		slog.Bool("api_tls_enabled", c.Server.API.TLSEnabled),
		slog.Bool("api_key_configured", c.Server.API.APIKeyHash != ""),
		slog.Duration("sync_interval", c.Syncer.Interval),
		slog.Int("l1_capacity", c.Cache.L1Capacity),
		slog.Duration("l1_ttl", c.Cache.L1TTL),
		slog.String("observability_port", c.Observability.Port),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("db_auto_migrate", c.Database.AutoMigrate),
		slog.Bool("redis_configured", c.Redis.IsConfigured()),
	)
}

// validatePort checks if port is valid (1-65535)
func validatePort(port, context string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", context)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", context, err)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", context, portNum)
	}
	return nil
}

// validateToken rejects empty values and values with surrounding whitespace.
func validateToken(value, what string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s cannot contain whitespace", what)
	}
	return nil
}

// validateSecret enforces a minimum secret length in production.
func validateSecret(secret, what, environment string) error {
	if environment != EnvironmentProduction {
		return nil
	}
	if secret == "" {
		return fmt.Errorf("%s is required in production environment", what)
	}
	if len(secret) < 12 {
		return fmt.Errorf("%s must be at least 12 characters in production", what)
	}
	return nil
}

// parseURL parses rawURL and checks its scheme and host.
func parseURL(rawURL string, schemes ...string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if !slices.Contains(schemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", parsed.Scheme, schemes)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}
	return parsed, nil
}
