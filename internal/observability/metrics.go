package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered globally, so every binary exports the full set.
// Metrics of components a binary does not run stay at zero.

// namespace prefixes every metric (e.g., flagscope_...).
const namespace = "flagscope"

// lowLatencyBuckets resolve the sub-5ms range that default buckets skip.
var lowLatencyBuckets = []float64{.0005, .001, .002, .005, .010, .025, .050, .100, .250, .500, 1}

var (
	// -------------------------------------------------------------------------
	// API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures HTTP handling latency.
	// Metric: flagscope_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "path"})

	// APIReqTotal counts HTTP requests by route pattern and status code.
	// Metric: flagscope_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// DatafileUploadsTotal counts datafile uploads by outcome (created, invalid, conflict, error).
	DatafileUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "datafile_uploads_total",
		Help:      "Total datafile uploads by outcome",
	}, []string{"status"})

	// -------------------------------------------------------------------------
	// PROJECTION
	// -------------------------------------------------------------------------

	// ProjectionDuration measures parse plus projection time for one datafile.
	// Metric: flagscope_projection_build_seconds
	ProjectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "projection",
		Name:      "build_seconds",
		Help:      "Time taken to parse and project a datafile",
		Buckets:   lowLatencyBuckets,
	})

	// ProjectionsTotal counts projections by result (ok, invalid).
	ProjectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "projection",
		Name:      "builds_total",
		Help:      "Total datafile projections by result",
	}, []string{"result"})

	// --- View cache (L1, otter) ---

	ViewCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "view_cache",
		Name:      "hits_total",
		Help:      "Total L1 view cache hits",
	})

	ViewCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "view_cache",
		Name:      "misses_total",
		Help:      "Total L1 view cache misses (absent or stale fingerprint)",
	})

	ViewCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "view_cache",
		Name:      "evictions_total",
		Help:      "Total views evicted by capacity or TTL",
	})

	ViewCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "view_cache",
		Name:      "items_count",
		Help:      "Current number of views in the L1 cache",
	})

	ViewCacheDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "view_cache",
		Name:      "dropped_total",
		Help:      "Total sets rejected by the L1 cache",
	})

	// -------------------------------------------------------------------------
	// REDIS (L2)
	// -------------------------------------------------------------------------

	// RedisOpDuration measures datafile cache operations by operation and status.
	RedisOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "operation_seconds",
		Help:      "Latency of datafile cache operations",
		Buckets:   lowLatencyBuckets,
	}, []string{"operation", "status"})

	// RedisPoolConnections exposes go-redis pool stats (total, idle, stale).
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Redis pool connections by state",
	}, []string{"state"})

	// RedisPoolEvents exposes cumulative pool counters (hits, misses, timeouts).
	RedisPoolEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_events",
		Help:      "Cumulative Redis pool events by type",
	}, []string{"type"})

	// -------------------------------------------------------------------------
	// DATABASE
	// -------------------------------------------------------------------------

	// DatabasePoolConnections exposes pgxpool stats (total, idle, in_use, max).
	DatabasePoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "PostgreSQL pool connections by state",
	}, []string{"state"})

	// DatabaseAcquireWait is the cumulative time spent waiting for a connection.
	DatabaseAcquireWait = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_wait_seconds",
		Help:      "Cumulative time spent waiting to acquire a connection",
	})

	// -------------------------------------------------------------------------
	// SYNCER
	// -------------------------------------------------------------------------

	// SyncerCycleDuration measures one full publish cycle.
	// Metric: flagscope_syncer_cycle_duration_seconds
	SyncerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycle_duration_seconds",
		Help:      "Time taken by one sync cycle",
		Buckets:   prometheus.DefBuckets,
	})

	// SyncerDatafilesTotal counts datafiles handled per cycle by status
	// (published, unchanged, stale, invalid, failed).
	SyncerDatafilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "datafiles_total",
		Help:      "Total datafiles processed by the syncer",
	}, []string{"status"})
)
