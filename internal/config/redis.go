package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RedisConfig contains settings for the shared datafile cache.
type RedisConfig struct {
	// URL takes precedence over Host/Port.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`

	TLSEnabled bool `envconfig:"TLS_ENABLED" default:"false"`

	PoolSize     int           `envconfig:"POOL_SIZE" default:"20" validate:"min=1"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2" validate:"min=0"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`

	// Startup connectivity check.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`
}

// Address returns host:port, or URL when one is configured.
func (c *RedisConfig) Address() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Host + ":" + c.Port
}

// Validate checks connection settings. Production requires a password and TLS.
func (c *RedisConfig) Validate(environment string) error {
	if c.URL != "" {
		if err := validateRedisURL(c.URL); err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
	} else {
		if err := validateToken(c.Host, "redis host"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "redis"); err != nil {
			return err
		}
		if err := validateSecret(c.Password, "redis password", environment); err != nil {
			return err
		}
		if environment == EnvironmentProduction && !c.TLSEnabled {
			return fmt.Errorf("redis TLS must be enabled in production environment")
		}
	}

	if c.MinIdleConns > c.PoolSize {
		return fmt.Errorf("min_idle_conns (%d) cannot be greater than pool_size (%d)", c.MinIdleConns, c.PoolSize)
	}
	return nil
}

// IsConfigured reports whether enough settings are present to attempt a connection.
func (c *RedisConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "")
}

func validateRedisURL(redisURL string) error {
	parsed, err := parseURL(redisURL, "redis", "rediss")
	if err != nil {
		return err
	}

	db := strings.TrimPrefix(parsed.Path, "/")
	if db == "" {
		return nil
	}
	n, err := strconv.Atoi(db)
	if err != nil {
		return fmt.Errorf("database number must be a valid integer: %s", db)
	}
	if n < 0 || n > 15 {
		return fmt.Errorf("database number must be between 0 and 15, got %d", n)
	}
	return nil
}
