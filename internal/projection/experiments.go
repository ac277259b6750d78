package projection

import "github.com/rafaeljc/flagscope/internal/datafile"

// experimentMaps holds the experiment views of one walk, indexed by key and by id.
// Both maps reference the same *ExperimentView values.
type experimentMaps struct {
	byKey map[string]*ExperimentView
	byID  map[string]*ExperimentView
}

// allExperiments returns the top-level experiments followed by every group's members.
func allExperiments(src Source) []datafile.Experiment {
	exps := make([]datafile.Experiment, 0, len(src.Experiments()))
	exps = append(exps, src.Experiments()...)
	for _, g := range src.Groups() {
		exps = append(exps, g.Experiments...)
	}
	return exps
}

func (idx indices) projectExperiments(exps []datafile.Experiment, lookup AudienceLookup) experimentMaps {
	out := experimentMaps{
		byKey: make(map[string]*ExperimentView, len(exps)),
		byID:  make(map[string]*ExperimentView, len(exps)),
	}
	for _, exp := range exps {
		view := idx.projectExperiment(exp, lookup)
		out.byKey[exp.Key] = view
		out.byID[exp.ID] = view
	}
	return out
}

func (idx indices) projectExperiment(exp datafile.Experiment, lookup AudienceLookup) *ExperimentView {
	variations := make(map[string]VariationView, len(exp.Variations))
	for _, variation := range exp.Variations {
		variations[variation.Key] = VariationView{
			ID:             variation.ID,
			Key:            variation.Key,
			FeatureEnabled: cloneBool(variation.FeatureEnabled),
			VariablesMap:   idx.resolveVariables(exp, variation),
		}
	}

	return &ExperimentView{
		ID:            exp.ID,
		Key:           exp.Key,
		Audiences:     RenderConditions(exp.AudienceConditions, lookup),
		VariationsMap: variations,
	}
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
