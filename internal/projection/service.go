// Package projection turns a parsed datafile into a ConfigView: a denormalized,
// read-only snapshot of experiments, features, audiences, attributes and events
// with variables resolved per variation and audience conditions rendered as text.
//
// Projection is pure computation. It performs no I/O, never mutates its input and
// builds fresh lookup maps on every call.
package projection

import (
	"fmt"
	"log/slog"

	"github.com/rafaeljc/flagscope/internal/datafile"
	"github.com/rafaeljc/flagscope/internal/validation"
)

// Source is the parsed configuration a projection is built from.
type Source interface {
	Revision() string
	SDKKey() string
	EnvironmentKey() string
	Experiments() []datafile.Experiment
	FeatureFlags() []datafile.FeatureFlag
	Groups() []datafile.Group
	Rollouts() []datafile.Rollout
	RolloutByID(id string) (datafile.Rollout, bool)
	Audiences() []datafile.Audience
	TypedAudiences() []datafile.Audience
	AudienceByID(id string) (datafile.Audience, bool)
	Attributes() []datafile.Attribute
	Events() []datafile.Event
	Datafile() string
}

var _ Source = (*datafile.Config)(nil)

// Service projects a single configuration.
//
// A Service built from something that is not a usable Source is permanently invalid:
// Config returns nil for its whole lifetime.
type Service struct {
	logger *slog.Logger
	src    Source
	valid  bool
}

// NewService validates cfg and prepares a projection over it.
func NewService(logger *slog.Logger, cfg any) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{logger: logger}

	src, ok := cfg.(Source)
	if !ok || validation.IsNil(src) {
		logger.Warn("projection input is not a parsed configuration",
			slog.String("type", fmt.Sprintf("%T", cfg)),
		)
		return svc
	}

	svc.src = src
	svc.valid = true
	return svc
}

// Valid reports whether the service was given a usable configuration.
func (s *Service) Valid() bool {
	return s.valid
}

// Config builds a new ConfigView, or returns nil if the service is invalid.
// Each call builds fresh lookups and returns a view that shares nothing with
// earlier calls.
func (s *Service) Config() *ConfigView {
	if !s.valid {
		return nil
	}

	p := newProjector(s.logger, s.src)

	experiments := p.idx.projectExperiments(allExperiments(s.src), s.src.AudienceByID)
	features := p.projectFeatures(experiments.byID)

	return &ConfigView{
		Revision:       s.src.Revision(),
		SDKKey:         s.src.SDKKey(),
		EnvironmentKey: s.src.EnvironmentKey(),
		ExperimentsMap: experiments.byKey,
		FeaturesMap:    features,
		Attributes:     projectAttributes(s.src.Attributes()),
		Audiences:      projectAudiences(p.audiences),
		Events:         projectEvents(s.src.Events()),
		datafile:       s.src.Datafile(),
	}
}

// Project is shorthand for NewService(nil, cfg).Config().
func Project(cfg any) *ConfigView {
	return NewService(nil, cfg).Config()
}

// projector carries the lookups of a single projection run.
type projector struct {
	logger *slog.Logger
	src    Source
	idx    indices

	// audiences is the typed-first deduplicated audience list. Delivery rules render
	// against it rather than the global lookup.
	audiences        []datafile.Audience
	rolloutAudiences AudienceLookup
}

func newProjector(logger *slog.Logger, src Source) *projector {
	audiences := dedupeAudiences(src.TypedAudiences(), src.Audiences())
	return &projector{
		logger:           logger,
		src:              src,
		idx:              buildIndices(src.FeatureFlags()),
		audiences:        audiences,
		rolloutAudiences: audienceIndex(audiences),
	}
}
