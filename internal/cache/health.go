package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/flagscope/internal/observability"
)

// NewHealthChecker returns a readiness check that pings Redis.
func NewHealthChecker(client *redis.Client) observability.Checker {
	return observability.CheckerFunc{
		Component: "redis",
		Fn: func(ctx context.Context) error {
			if client == nil {
				return errors.New("redis client is nil")
			}
			return client.Ping(ctx).Err()
		},
	}
}
