package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DatabaseConfig contains PostgreSQL connection settings for the datafile store.
type DatabaseConfig struct {
	// URL takes precedence over the individual components.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"10" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"false"`
}

// ConnectionString returns URL when set, otherwise a postgres:// URL built from the components.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Validate checks connection settings. Production requires a password and a verifying SSL mode.
func (c *DatabaseConfig) Validate(environment string) error {
	if c.URL != "" {
		if err := validatePostgresURL(c.URL); err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
	} else {
		if err := validateToken(c.Host, "database host"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "database"); err != nil {
			return err
		}
		if err := validateToken(c.Name, "database name"); err != nil {
			return err
		}
		if len(c.Name) > 63 {
			return fmt.Errorf("database name cannot exceed 63 characters")
		}
		if err := validateToken(c.User, "database user"); err != nil {
			return err
		}
		if err := validateSecret(c.Password, "database password", environment); err != nil {
			return err
		}
		if environment == EnvironmentProduction && !secureSSLMode(c.SSLMode) {
			return fmt.Errorf("database SSL mode must be 'require', 'verify-ca', or 'verify-full' in production environment")
		}
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// IsConfigured reports whether enough settings are present to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "" && c.Name != "" && c.User != "")
}

func secureSSLMode(mode string) bool {
	return mode == "require" || mode == "verify-ca" || mode == "verify-full"
}

func validatePostgresURL(dbURL string) error {
	parsed, err := parseURL(dbURL, "postgres", "postgresql")
	if err != nil {
		return err
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	return nil
}
