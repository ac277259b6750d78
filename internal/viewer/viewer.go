// Package viewer resolves the projected configuration view of an SDK key, reading
// through the in-process view cache to the published datafile in Redis.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/datafile"
	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/projection"
	"github.com/rafaeljc/flagscope/internal/validation"
)

var (
	// ErrNotFound is returned when nothing is published for the SDK key.
	ErrNotFound = errors.New("no configuration published for sdk key")
	// ErrInvalidConfig is returned when the published datafile cannot be projected.
	ErrInvalidConfig = errors.New("published configuration is invalid")
)

// DatafileSource is the part of the L2 cache the viewer reads.
type DatafileSource interface {
	GetFingerprint(ctx context.Context, sdkKey string) (string, error)
	GetDatafile(ctx context.Context, sdkKey string) (*cache.Entry, error)
}

// ViewCache is the part of the L1 cache the viewer reads and fills.
type ViewCache interface {
	Get(sdkKey string) (*cache.ViewEntry, bool)
	Set(sdkKey string, e *cache.ViewEntry) bool
}

// Service serves views. Concurrent misses for the same SDK key share one projection.
type Service struct {
	logger *slog.Logger
	l2     DatafileSource
	l1     ViewCache
	group  singleflight.Group
}

func NewService(logger *slog.Logger, l2 DatafileSource, l1 ViewCache) *Service {
	validation.AssertPresent(l2, "datafile source")
	validation.AssertPresent(l1, "view cache")
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, l2: l2, l1: l1}
}

// View returns the current view of sdkKey together with the fingerprint of its datafile.
func (s *Service) View(ctx context.Context, sdkKey string) (*cache.ViewEntry, error) {
	fp, err := s.l2.GetFingerprint(ctx, sdkKey)
	if err != nil {
		return nil, translate(sdkKey, err)
	}

	if e, ok := s.l1.Get(sdkKey); ok && e.Fingerprint == fp {
		return e, nil
	}

	v, err, _ := s.group.Do(sdkKey, func() (any, error) {
		// The shared rebuild must not fail because the first caller went away.
		return s.rebuild(context.WithoutCancel(ctx), sdkKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*cache.ViewEntry), nil
}

// rebuild loads the published document and projects it. The entry is keyed by the
// fingerprint stored next to the document, so a concurrent publish cannot mismatch them.
func (s *Service) rebuild(ctx context.Context, sdkKey string) (*cache.ViewEntry, error) {
	log := s.logger.With(slog.String("sdk_key", sdkKey))

	published, err := s.l2.GetDatafile(ctx, sdkKey)
	if err != nil {
		return nil, translate(sdkKey, err)
	}

	start := time.Now()
	view, err := Build(log, published.Document)
	observability.ProjectionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProjectionsTotal.WithLabelValues("invalid").Inc()
		log.Error("published datafile cannot be projected",
			slog.String("fingerprint", published.Fingerprint),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("sdk key %q: %w", sdkKey, err)
	}
	observability.ProjectionsTotal.WithLabelValues("success").Inc()

	entry := &cache.ViewEntry{Fingerprint: published.Fingerprint, View: view}
	if !s.l1.Set(sdkKey, entry) {
		log.Debug("view cache rejected entry")
	}

	log.Debug("view rebuilt",
		slog.String("revision", view.Revision),
		slog.String("fingerprint", published.Fingerprint),
	)
	return entry, nil
}

// Build parses doc and projects it. Parse failures wrap ErrInvalidConfig as well as the
// datafile sentinel that caused them.
func Build(logger *slog.Logger, doc []byte) (*projection.ConfigView, error) {
	cfg, err := datafile.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	view := projection.NewService(logger, cfg).Config()
	if view == nil {
		return nil, ErrInvalidConfig
	}
	return view, nil
}

func translate(sdkKey string, err error) error {
	if errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("sdk key %q: %w", sdkKey, ErrNotFound)
	}
	return fmt.Errorf("failed to read published datafile: %w", err)
}
