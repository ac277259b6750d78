package projection

// ConfigView is the read-only projection of one datafile revision.
//
// A ConfigView and everything reachable from it is immutable once returned and shares
// no mutable state with the datafile it was built from, so it may be shared across
// goroutines without locking.
type ConfigView struct {
	Revision       string                     `json:"revision"`
	SDKKey         string                     `json:"sdkKey"`
	EnvironmentKey string                     `json:"environmentKey"`
	ExperimentsMap map[string]*ExperimentView `json:"experimentsMap"`
	FeaturesMap    map[string]*FeatureView    `json:"featuresMap"`
	Attributes     []AttributeView            `json:"attributes"`
	Audiences      []AudienceView             `json:"audiences"`
	Events         []EventView                `json:"events"`

	datafile string
}

// Datafile returns the serialized document the view was projected from.
func (v *ConfigView) Datafile() string {
	return v.datafile
}

// ExperimentView is an experiment with its rendered audience expression.
type ExperimentView struct {
	ID            string                   `json:"id"`
	Key           string                   `json:"key"`
	Audiences     string                   `json:"audiences"`
	VariationsMap map[string]VariationView `json:"variationsMap"`
}

// VariationView is a variation with its fully resolved variables.
type VariationView struct {
	ID  string `json:"id"`
	Key string `json:"key"`

	// FeatureEnabled is nil when the datafile leaves it unset.
	FeatureEnabled *bool                   `json:"featureEnabled"`
	VariablesMap   map[string]VariableView `json:"variablesMap"`
}

// VariableView is a feature variable and the value that applies in its context.
type VariableView struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// FeatureView is a feature flag with its experiment and delivery rules.
type FeatureView struct {
	ID              string                     `json:"id"`
	Key             string                     `json:"key"`
	ExperimentRules []*ExperimentView          `json:"experimentRules"`
	DeliveryRules   []*ExperimentView          `json:"deliveryRules"`
	VariablesMap    map[string]VariableView    `json:"variablesMap"`
	ExperimentsMap  map[string]*ExperimentView `json:"experimentsMap"`
}

type AudienceView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Conditions string `json:"conditions"`
}

type AttributeView struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type EventView struct {
	ID            string   `json:"id"`
	Key           string   `json:"key"`
	ExperimentIDs []string `json:"experimentIds"`
}
