package projection

import (
	"maps"

	"github.com/rafaeljc/flagscope/internal/datafile"
)

// variableRegistry holds the declared variables of one feature, indexed both ways.
// It is never mutated after construction.
type variableRegistry struct {
	byKey map[string]VariableView
	byID  map[string]VariableView
}

func newVariableRegistry(flag datafile.FeatureFlag) variableRegistry {
	reg := variableRegistry{
		byKey: make(map[string]VariableView, len(flag.Variables)),
		byID:  make(map[string]VariableView, len(flag.Variables)),
	}
	for _, v := range flag.Variables {
		view := VariableView{ID: v.ID, Key: v.Key, Type: v.Type, Value: v.DefaultValue}
		reg.byKey[v.Key] = view
		reg.byID[v.ID] = view
	}
	return reg
}

// defaults returns a fresh copy of the key-indexed defaults.
func (r variableRegistry) defaults() map[string]VariableView {
	if r.byKey == nil {
		return make(map[string]VariableView)
	}
	return maps.Clone(r.byKey)
}

// indices are the lookups built once per projection run.
type indices struct {
	featureByExperimentID map[string]string
	variables             map[string]variableRegistry
}

func buildIndices(flags []datafile.FeatureFlag) indices {
	idx := indices{
		featureByExperimentID: make(map[string]string),
		variables:             make(map[string]variableRegistry, len(flags)),
	}
	for _, flag := range flags {
		for _, expID := range flag.ExperimentIDs {
			idx.featureByExperimentID[expID] = flag.Key
		}
		idx.variables[flag.Key] = newVariableRegistry(flag)
	}
	return idx
}

// resolveVariables returns the variables that apply to a variation of an experiment.
//
// Experiments not attached to a feature have no variables. Overrides only apply when
// the variation enables the feature; unknown override ids are skipped.
func (idx indices) resolveVariables(exp datafile.Experiment, variation datafile.Variation) map[string]VariableView {
	featureKey, ok := idx.featureByExperimentID[exp.ID]
	if !ok {
		return make(map[string]VariableView)
	}

	reg := idx.variables[featureKey]
	out := reg.defaults()

	if variation.FeatureEnabled == nil || !*variation.FeatureEnabled {
		return out
	}

	for _, override := range variation.Variables {
		declared, ok := reg.byID[override.ID]
		if !ok {
			continue
		}
		declared.Value = override.Value
		out[declared.Key] = declared
	}
	return out
}
