package projection

import (
	"log/slog"

	"github.com/rafaeljc/flagscope/internal/datafile"
)

func (p *projector) projectFeatures(experimentsByID map[string]*ExperimentView) map[string]*FeatureView {
	flags := p.src.FeatureFlags()
	out := make(map[string]*FeatureView, len(flags))

	for _, flag := range flags {
		rules := make([]*ExperimentView, 0, len(flag.ExperimentIDs))
		aliases := make(map[string]*ExperimentView, len(flag.ExperimentIDs))

		for _, expID := range flag.ExperimentIDs {
			view, ok := experimentsByID[expID]
			if !ok {
				p.logger.Warn("feature references unknown experiment",
					slog.String("feature_key", flag.Key),
					slog.String("experiment_id", expID),
				)
				continue
			}
			rules = append(rules, view)
			aliases[view.Key] = view
		}

		out[flag.Key] = &FeatureView{
			ID:              flag.ID,
			Key:             flag.Key,
			ExperimentRules: rules,
			DeliveryRules:   p.deliveryRules(flag),
			VariablesMap:    p.idx.variables[flag.Key].defaults(),
			ExperimentsMap:  aliases,
		}
	}
	return out
}

// deliveryRules projects the rollout experiments of a feature in rollout order.
func (p *projector) deliveryRules(flag datafile.FeatureFlag) []*ExperimentView {
	if flag.RolloutID == "" {
		return []*ExperimentView{}
	}

	rollout, ok := p.src.RolloutByID(flag.RolloutID)
	if !ok {
		p.logger.Warn("feature references unknown rollout",
			slog.String("feature_key", flag.Key),
			slog.String("rollout_id", flag.RolloutID),
		)
		return []*ExperimentView{}
	}

	rules := make([]*ExperimentView, 0, len(rollout.Experiments))
	for _, exp := range rollout.Experiments {
		rules = append(rules, p.idx.projectExperiment(exp, p.rolloutAudiences))
	}
	return rules
}
