package config

import "time"

// SyncerConfig controls the worker that publishes stored datafiles to Redis.
type SyncerConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// Interval between polling cycles.
	Interval time.Duration `envconfig:"INTERVAL" default:"10s" validate:"min=1s"`

	// Concurrency bounds how many datafiles are validated and published at once.
	Concurrency int `envconfig:"CONCURRENCY" default:"4" validate:"min=1,max=64"`
}
