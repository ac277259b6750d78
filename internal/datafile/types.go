// Package datafile decodes feature-experimentation datafiles into the read-only
// records consumed by the projection layer.
//
// A datafile is the JSON document a delivery service hands to SDKs. Parse validates
// it against a JSON schema, decodes it and builds the id lookups the projection needs.
// Nothing in this package mutates a Config after Parse returns.
package datafile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DummyAudienceID is the placeholder audience id that the delivery service injects
// for backwards compatibility. It is never shown to consumers.
const DummyAudienceID = "$opt_dummy_audience"

// Variable type tags as they appear in views. The values are opaque to this service.
const (
	VariableTypeString  = "string"
	VariableTypeInteger = "integer"
	VariableTypeBoolean = "boolean"
	VariableTypeDouble  = "double"
	VariableTypeJSON    = "json"
)

// Experiment is an A/B/n test or a rollout rule.
type Experiment struct {
	ID                 string        `json:"id"`
	Key                string        `json:"key"`
	Status             string        `json:"status,omitempty"`
	LayerID            string        `json:"layerId,omitempty"`
	AudienceIDs        []string      `json:"audienceIds,omitempty"`
	AudienceConditions ConditionTree `json:"audienceConditions,omitempty"`
	Variations         []Variation   `json:"variations"`
}

// Variation is one arm of an experiment.
type Variation struct {
	ID  string `json:"id"`
	Key string `json:"key"`

	// FeatureEnabled is nil when the datafile does not say (plain A/B tests).
	FeatureEnabled *bool              `json:"featureEnabled,omitempty"`
	Variables      []VariableOverride `json:"variables,omitempty"`
}

// VariableOverride replaces a feature variable's default for one variation.
type VariableOverride struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// FeatureFlag is a named capability with variables, experiments and an optional rollout.
type FeatureFlag struct {
	ID            string     `json:"id"`
	Key           string     `json:"key"`
	RolloutID     string     `json:"rolloutId,omitempty"`
	ExperimentIDs []string   `json:"experimentIds"`
	Variables     []Variable `json:"variables"`
}

// Variable is a variable declared on a feature flag.
type Variable struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Type         string `json:"type"`
	SubType      string `json:"subType,omitempty"`
	DefaultValue string `json:"defaultValue"`
}

// Group is a mutually exclusive set of experiments.
type Group struct {
	ID          string       `json:"id"`
	Policy      string       `json:"policy"`
	Experiments []Experiment `json:"experiments"`
}

// Rollout is an ordered list of delivery rules.
type Rollout struct {
	ID          string       `json:"id"`
	Experiments []Experiment `json:"experiments"`
}

// Attribute is a user attribute known to the project.
type Attribute struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Event is a conversion event and the experiments that track it.
type Event struct {
	ID            string   `json:"id"`
	Key           string   `json:"key"`
	ExperimentIDs []string `json:"experimentIds"`
}

// Audience is a reusable targeting condition.
//
// Legacy audiences carry their conditions as a serialized string, typed audiences as
// a JSON array. Both end up in Conditions as text; the array is kept as compact JSON.
type Audience struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Conditions string `json:"conditions"`
}

// UnmarshalJSON accepts both the legacy and the typed conditions encoding.
func (a *Audience) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Conditions json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.ID = raw.ID
	a.Name = raw.Name
	a.Conditions = ""

	trimmed := bytes.TrimSpace(raw.Conditions)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &a.Conditions)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return fmt.Errorf("audience %q has malformed conditions: %w", raw.ID, err)
	}
	a.Conditions = buf.String()
	return nil
}

// ConditionTree is a nested boolean expression over audience ids.
//
// Elements are strings (the operators "and", "or", "not" or an audience id) or nested
// ConditionTrees. Non-string scalars are kept as their JSON text.
type ConditionTree []any

// UnmarshalJSON decodes nested arrays into nested ConditionTrees.
func (t *ConditionTree) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("audience conditions must be an array: %w", err)
	}

	tree := make(ConditionTree, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}

		switch {
		case string(item) == "null":
			tree = append(tree, nil)
		case item[0] == '[':
			var sub ConditionTree
			if err := sub.UnmarshalJSON(item); err != nil {
				return err
			}
			tree = append(tree, sub)
		case item[0] == '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			tree = append(tree, s)
		default:
			tree = append(tree, string(item))
		}
	}

	*t = tree
	return nil
}
