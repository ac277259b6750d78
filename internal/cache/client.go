package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/flagscope/internal/config"
	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/observability"
)

// NewRedisClient builds a client from cfg and pings it, doubling the backoff between
// attempts up to cfg.PingMaxRetries.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := &redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = parsed
	}

	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = cfg.MaxRetries

	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	maxRetries := max(cfg.PingMaxRetries, 1)
	backoff := cfg.PingBackoff
	pingTimeout := cfg.DialTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}

	log := logger.FromContext(ctx)
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			log.Info("connected to redis", slog.String("addr", opts.Addr), slog.Int("attempt", attempt))
			return client, nil
		}

		log.Warn("redis ping failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Any("error", lastErr),
		)

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				client.Close()
				return nil, fmt.Errorf("redis connect cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

// RunPoolMonitor publishes client pool statistics every interval until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		recordPoolStats(client.PoolStats())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordPoolStats(stats *redis.PoolStats) {
	observability.RedisPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns))
	observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns))
	observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(stats.StaleConns))

	observability.RedisPoolEvents.WithLabelValues("hits").Set(float64(stats.Hits))
	observability.RedisPoolEvents.WithLabelValues("misses").Set(float64(stats.Misses))
	observability.RedisPoolEvents.WithLabelValues("timeouts").Set(float64(stats.Timeouts))
}
