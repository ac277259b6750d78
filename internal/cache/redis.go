// Package cache holds the two cache tiers of flagscope: Redis (L2) keeps the latest
// published datafile per SDK key, and an in-process otter cache (L1) keeps projected views.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/validation"
)

// KeyPrefix namespaces datafile hashes, e.g. "datafile:<sdkKey>".
const KeyPrefix = "datafile"

// ErrNotFound is returned when no datafile is published for an SDK key.
var ErrNotFound = errors.New("datafile not cached")

// SetResult reports what SetDatafile did with the entry.
type SetResult int

const (
	// SetResultStale means a newer version is already cached; nothing was written.
	SetResultStale SetResult = iota
	// SetResultUpdated means the entry was written.
	SetResultUpdated
	// SetResultUnchanged means the cached entry already has the same fingerprint.
	SetResultUnchanged
)

func (r SetResult) String() string {
	switch r {
	case SetResultStale:
		return "stale"
	case SetResultUpdated:
		return "updated"
	case SetResultUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Entry is a published datafile. Version is the store row id and only grows.
type Entry struct {
	Version     int64
	Revision    string
	Fingerprint string
	Document    []byte
	UpdatedAt   time.Time
}

// Service is the L2 datafile cache.
type Service interface {
	// SetDatafile publishes e for sdkKey unless a newer version is already cached.
	SetDatafile(ctx context.Context, sdkKey string, e *Entry) (SetResult, error)

	// GetFingerprint returns the fingerprint of the cached datafile without fetching the document.
	GetFingerprint(ctx context.Context, sdkKey string) (string, error)

	// GetDatafile returns the full cached entry.
	GetDatafile(ctx context.Context, sdkKey string) (*Entry, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

var _ Service = (*RedisCache)(nil)

// setDatafileScript writes the hash only when the incoming version is not older than the
// cached one. A cached version that is not a number is treated as corrupt and overwritten.
//
// KEYS[1]: hash key
// ARGV: version, fingerprint, document, revision, updated_at
// Returns 0 (stale), 1 (updated) or 2 (unchanged).
var setDatafileScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current then
	local cached = tonumber(current)
	if cached then
		if cached > tonumber(ARGV[1]) then
			return 0
		end
		if redis.call('HGET', KEYS[1], 'fingerprint') == ARGV[2] then
			return 2
		end
	end
end
redis.call('HSET', KEYS[1],
	'version', ARGV[1],
	'fingerprint', ARGV[2],
	'document', ARGV[3],
	'revision', ARGV[4],
	'updated_at', ARGV[5])
return 1
`)

// RedisCache implements Service on a hash per SDK key.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already connected client. See NewRedisClient.
func NewRedisCache(client *redis.Client) *RedisCache {
	validation.AssertNotNil(client, "redis client")
	return &RedisCache{client: client}
}

// Key returns the hash key holding the datafile of sdkKey.
func Key(sdkKey string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, sdkKey)
}

func (c *RedisCache) SetDatafile(ctx context.Context, sdkKey string, e *Entry) (result SetResult, err error) {
	defer observeOp("set_datafile", time.Now(), &err)

	if e == nil {
		return SetResultStale, fmt.Errorf("entry for sdk key %q cannot be nil", sdkKey)
	}

	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	code, err := setDatafileScript.Run(ctx, c.client, []string{Key(sdkKey)},
		e.Version,
		e.Fingerprint,
		string(e.Document),
		e.Revision,
		updatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return SetResultStale, fmt.Errorf("failed to set datafile for sdk key %q: %w", sdkKey, err)
	}

	return SetResult(code), nil
}

func (c *RedisCache) GetFingerprint(ctx context.Context, sdkKey string) (fp string, err error) {
	defer observeOp("get_fingerprint", time.Now(), &err)

	fp, err = c.client.HGet(ctx, Key(sdkKey), "fingerprint").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("sdk key %q: %w", sdkKey, ErrNotFound)
		}
		return "", fmt.Errorf("failed to get fingerprint for sdk key %q: %w", sdkKey, err)
	}
	return fp, nil
}

func (c *RedisCache) GetDatafile(ctx context.Context, sdkKey string) (e *Entry, err error) {
	defer observeOp("get_datafile", time.Now(), &err)

	fields, err := c.client.HGetAll(ctx, Key(sdkKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get datafile for sdk key %q: %w", sdkKey, err)
	}

	doc, ok := fields["document"]
	if !ok {
		return nil, fmt.Errorf("sdk key %q: %w", sdkKey, ErrNotFound)
	}

	e = &Entry{
		Revision:    fields["revision"],
		Fingerprint: fields["fingerprint"],
		Document:    []byte(doc),
	}
	// Metadata is informational; malformed values leave zero values behind.
	if v, perr := strconv.ParseInt(fields["version"], 10, 64); perr == nil {
		e.Version = v
	}
	if ts, perr := time.Parse(time.RFC3339Nano, fields["updated_at"]); perr == nil {
		e.UpdatedAt = ts
	}
	return e, nil
}

func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// observeOp records the latency of a Redis operation. Cache misses count as success.
func observeOp(op string, start time.Time, errp *error) {
	status := "success"
	if *errp != nil && !errors.Is(*errp, ErrNotFound) {
		status = "error"
	}
	observability.RedisOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}
