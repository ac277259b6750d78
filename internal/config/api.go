package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"`

	// MaxDatafileBytes caps the size of an uploaded datafile.
	MaxDatafileBytes int64 `envconfig:"MAX_DATAFILE_BYTES" default:"10485760" validate:"min=1"`

	// APIKeyHash is the hex SHA-256 of the key that guards write endpoints.
	// Empty disables authentication outside production.
	APIKeyHash string `envconfig:"API_KEY_HASH"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// Address returns the listen address in host:port form.
func (c *APIConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Validate checks the API listener settings.
func (c *APIConfig) Validate(environment string) error {
	if err := validatePort(c.Port, "api"); err != nil {
		return err
	}
	if err := validateToken(c.Host, "api host"); err != nil {
		return err
	}

	if c.APIKeyHash != "" {
		if err := validateSHA256Hex(c.APIKeyHash); err != nil {
			return fmt.Errorf("invalid API key hash: %w", err)
		}
	}

	if environment == EnvironmentProduction {
		if c.APIKeyHash == "" {
			return fmt.Errorf("API key hash is required in production environment")
		}
		if !c.TLSEnabled {
			return fmt.Errorf("TLS must be enabled in production environment")
		}
	}

	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("TLS enabled but cert or key file not specified")
	}

	return nil
}

// validateSHA256Hex checks for 64 hexadecimal characters.
func validateSHA256Hex(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("SHA-256 hash must be 64 characters, got %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("hash must be valid hexadecimal: %w", err)
	}
	return nil
}
