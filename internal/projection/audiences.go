package projection

import (
	"slices"

	"github.com/rafaeljc/flagscope/internal/datafile"
)

// dedupeAudiences merges typed and legacy audiences by id. Typed audiences with a
// non-empty id come first and shadow legacy audiences sharing their id.
func dedupeAudiences(typed, legacy []datafile.Audience) []datafile.Audience {
	seen := make(map[string]struct{}, len(typed)+len(legacy))
	out := make([]datafile.Audience, 0, len(typed)+len(legacy))

	for _, a := range typed {
		if a.ID == "" {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	for _, a := range legacy {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func projectAudiences(audiences []datafile.Audience) []AudienceView {
	out := make([]AudienceView, 0, len(audiences))
	for _, a := range audiences {
		if a.ID == datafile.DummyAudienceID {
			continue
		}
		out = append(out, AudienceView{ID: a.ID, Name: a.Name, Conditions: a.Conditions})
	}
	return out
}

func projectAttributes(attrs []datafile.Attribute) []AttributeView {
	out := make([]AttributeView, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, AttributeView{ID: a.ID, Key: a.Key})
	}
	return out
}

func projectEvents(events []datafile.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		ids := slices.Clone(e.ExperimentIDs)
		if ids == nil {
			ids = []string{}
		}
		out = append(out, EventView{ID: e.ID, Key: e.Key, ExperimentIDs: ids})
	}
	return out
}

// audienceIndex builds an id lookup over a deduplicated audience list.
func audienceIndex(audiences []datafile.Audience) AudienceLookup {
	byID := make(map[string]datafile.Audience, len(audiences))
	for _, a := range audiences {
		byID[a.ID] = a
	}
	return func(id string) (datafile.Audience, bool) {
		a, ok := byID[id]
		return a, ok
	}
}
