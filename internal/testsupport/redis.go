package testsupport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/config"
)

// RedisContainer is a running Redis with a connected client and the datafile cache on top.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	Client    *redis.Client
	Cache     *cache.RedisCache
}

// Terminate closes the client and removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Cache.Close()
	return c.Container.Terminate(ctx)
}

// StartRedisContainer runs redis:7-alpine and connects through cache.NewRedisClient.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	client, err := cache.NewRedisClient(ctx, RedisConfig(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return &RedisContainer{
		Container: ctr,
		Client:    client,
		Cache:     cache.NewRedisCache(client),
	}, nil
}

// RedisConfig returns a small-pool client configuration for addr ("host:port").
func RedisConfig(addr string) *config.RedisConfig {
	host, port, _ := net.SplitHostPort(addr)
	return &config.RedisConfig{
		Host:           host,
		Port:           port,
		PoolSize:       5,
		MinIdleConns:   1,
		DialTimeout:    2 * time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		PingMaxRetries: 5,
		PingBackoff:    500 * time.Millisecond,
	}
}
