// Package syncer publishes the latest stored datafile of every SDK key to the Redis
// cache, after checking that it parses and projects.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/config"
	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/store"
	"github.com/rafaeljc/flagscope/internal/validation"
	"github.com/rafaeljc/flagscope/internal/viewer"
)

// Source lists the datafiles to publish.
type Source interface {
	ListLatest(ctx context.Context) ([]*store.Datafile, error)
}

// Publisher writes datafiles to the serving cache.
type Publisher interface {
	SetDatafile(ctx context.Context, sdkKey string, e *cache.Entry) (cache.SetResult, error)
}

var (
	_ Source    = (store.DatafileRepository)(nil)
	_ Publisher = (cache.Service)(nil)
)

// Per-datafile outcomes, used as the status label of SyncerDatafilesTotal.
const (
	statusPublished = "published"
	statusUnchanged = "unchanged"
	statusStale     = "stale"
	statusInvalid   = "invalid"
	statusFailed    = "failed"
)

// Service runs the polling loop.
type Service struct {
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
	source      Source
	publisher   Publisher

	mu sync.Mutex
	// last fingerprint per SDK key that passed projection; it is not projected again.
	validated map[string]string
}

func New(logger *slog.Logger, cfg config.SyncerConfig, source Source, publisher Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertPresent(source, "datafile source")
	validation.AssertPresent(publisher, "publisher")

	if cfg.Interval < time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Service{
		logger:      logger,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		source:      source,
		publisher:   publisher,
		validated:   make(map[string]string),
	}
}

// Run syncs once immediately and then on every tick. It blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service",
		slog.Duration("interval", s.interval),
		slog.Int("concurrency", s.concurrency),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.SyncOnce(ctx); err != nil {
		s.logger.Error("initial sync failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping")
			return nil
		case <-ticker.C:
			// Failed cycles are retried on the next tick.
			if _, err := s.SyncOnce(ctx); err != nil {
				s.logger.Error("sync cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Report counts the outcomes of one cycle.
type Report struct {
	Published int
	Unchanged int
	Stale     int
	Invalid   int
	Failed    int
}

// SyncOnce runs a single cycle. Only a failure to list datafiles is returned;
// per-datafile failures are logged and counted.
func (s *Service) SyncOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() {
		observability.SyncerCycleDuration.Observe(time.Since(start).Seconds())
	}()

	datafiles, err := s.source.ListLatest(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list datafiles: %w", err)
	}

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, d := range datafiles {
		g.Go(func() error {
			status := s.syncDatafile(gctx, d)
			observability.SyncerDatafilesTotal.WithLabelValues(status).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case statusPublished:
				report.Published++
			case statusUnchanged:
				report.Unchanged++
			case statusStale:
				report.Stale++
			case statusInvalid:
				report.Invalid++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if report.Published > 0 || report.Invalid > 0 || report.Failed > 0 {
		s.logger.Info("sync cycle completed",
			slog.Int("published", report.Published),
			slog.Int("unchanged", report.Unchanged),
			slog.Int("stale", report.Stale),
			slog.Int("invalid", report.Invalid),
			slog.Int("failed", report.Failed),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return report, nil
}

func (s *Service) syncDatafile(ctx context.Context, d *store.Datafile) string {
	log := s.logger.With(
		slog.String("sdk_key", d.SDKKey),
		slog.Int64("datafile_id", d.ID),
		slog.String("revision", d.Revision),
	)

	if !s.isValidated(d.SDKKey, d.Fingerprint) {
		if _, err := viewer.Build(log, d.Document); err != nil {
			log.Warn("skipping datafile that cannot be projected", slog.String("error", err.Error()))
			return statusInvalid
		}
		s.markValidated(d.SDKKey, d.Fingerprint)
	}

	res, err := s.publisher.SetDatafile(ctx, d.SDKKey, &cache.Entry{
		Version:     d.ID,
		Revision:    d.Revision,
		Fingerprint: d.Fingerprint,
		Document:    d.Document,
		UpdatedAt:   d.CreatedAt,
	})
	if err != nil {
		log.Warn("failed to publish datafile", slog.String("error", err.Error()))
		return statusFailed
	}

	switch res {
	case cache.SetResultUpdated:
		log.Info("datafile published", slog.String("fingerprint", d.Fingerprint))
		return statusPublished
	case cache.SetResultUnchanged:
		return statusUnchanged
	default:
		log.Debug("cache holds a newer datafile")
		return statusStale
	}
}

func (s *Service) isValidated(sdkKey, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.validated[sdkKey]
	return ok && fp == fingerprint
}

func (s *Service) markValidated(sdkKey, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validated[sdkKey] = fingerprint
}
