package config

import (
	"fmt"
	"time"
)

// CacheConfig sizes the in-process cache of projected views.
type CacheConfig struct {
	L1Capacity int           `envconfig:"L1_CAPACITY" default:"1000" validate:"min=1"`
	L1TTL      time.Duration `envconfig:"L1_TTL" default:"60s"`
}

// Validate checks cache sizing.
func (c *CacheConfig) Validate() error {
	if c.L1TTL < time.Second {
		return fmt.Errorf("cache L1 TTL must be at least 1s, got %s", c.L1TTL)
	}
	return nil
}
