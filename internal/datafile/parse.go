package datafile

import (
	"encoding/json"
	"fmt"
	"slices"
)

// document mirrors the top-level datafile layout.
type document struct {
	ProjectID      string        `json:"projectId"`
	AccountID      string        `json:"accountId"`
	Version        string        `json:"version"`
	Revision       string        `json:"revision"`
	SDKKey         string        `json:"sdkKey"`
	EnvironmentKey string        `json:"environmentKey"`
	Groups         []Group       `json:"groups"`
	Experiments    []Experiment  `json:"experiments"`
	FeatureFlags   []FeatureFlag `json:"featureFlags"`
	Rollouts       []Rollout     `json:"rollouts"`
	Audiences      []Audience    `json:"audiences"`
	TypedAudiences []Audience    `json:"typedAudiences"`
	Attributes     []Attribute   `json:"attributes"`
	Events         []Event       `json:"events"`
}

// Config is a parsed, read-only project configuration.
type Config struct {
	doc      document
	raw      string
	rollouts map[string]Rollout
	audience map[string]Audience
}

// Parse validates and decodes a datafile document.
//
// Variables declared as type "string" with subType "json" are reported as type "json".
func Parse(raw []byte) (*Config, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: document is not valid JSON", ErrInvalidDatafile)
	}

	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDatafile, err)
	}
	if probe.Version != "" && !slices.Contains(SupportedVersions, probe.Version) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, probe.Version)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDatafile, err)
	}

	for i := range doc.FeatureFlags {
		vars := doc.FeatureFlags[i].Variables
		for j := range vars {
			if vars[j].Type == VariableTypeString && vars[j].SubType == VariableTypeJSON {
				vars[j].Type = VariableTypeJSON
			}
		}
	}

	cfg := &Config{
		doc:      doc,
		raw:      string(raw),
		rollouts: make(map[string]Rollout, len(doc.Rollouts)),
		audience: make(map[string]Audience, len(doc.Audiences)+len(doc.TypedAudiences)),
	}

	for _, r := range doc.Rollouts {
		cfg.rollouts[r.ID] = r
	}

	// Typed audiences take precedence over legacy audiences sharing an id.
	for _, a := range doc.Audiences {
		cfg.audience[a.ID] = a
	}
	for _, a := range doc.TypedAudiences {
		cfg.audience[a.ID] = a
	}

	return cfg, nil
}

// Revision returns the datafile revision.
func (c *Config) Revision() string { return c.doc.Revision }

// SDKKey returns the SDK key the datafile was issued for. May be empty.
func (c *Config) SDKKey() string { return c.doc.SDKKey }

// EnvironmentKey returns the environment key. May be empty.
func (c *Config) EnvironmentKey() string { return c.doc.EnvironmentKey }

func (c *Config) ProjectID() string { return c.doc.ProjectID }

func (c *Config) Version() string { return c.doc.Version }

// Experiments returns the top-level experiments in declaration order.
func (c *Config) Experiments() []Experiment { return c.doc.Experiments }

func (c *Config) FeatureFlags() []FeatureFlag { return c.doc.FeatureFlags }

func (c *Config) Groups() []Group { return c.doc.Groups }

func (c *Config) Rollouts() []Rollout { return c.doc.Rollouts }

// RolloutByID looks up a rollout by id.
func (c *Config) RolloutByID(id string) (Rollout, bool) {
	r, ok := c.rollouts[id]
	return r, ok
}

// Audiences returns the legacy audiences in declaration order.
func (c *Config) Audiences() []Audience { return c.doc.Audiences }

// TypedAudiences returns the typed audiences in declaration order.
func (c *Config) TypedAudiences() []Audience { return c.doc.TypedAudiences }

// AudienceByID looks up an audience by id across both audience lists.
func (c *Config) AudienceByID(id string) (Audience, bool) {
	a, ok := c.audience[id]
	return a, ok
}

func (c *Config) Attributes() []Attribute { return c.doc.Attributes }

func (c *Config) Events() []Event { return c.doc.Events }

// Datafile returns the document exactly as it was given to Parse.
func (c *Config) Datafile() string { return c.raw }
