package projection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/flagscope/internal/datafile"
	"github.com/rafaeljc/flagscope/internal/projection"
)

func lookupFrom(names map[string]string) projection.AudienceLookup {
	return func(id string) (datafile.Audience, bool) {
		name, ok := names[id]
		if !ok {
			return datafile.Audience{}, false
		}
		return datafile.Audience{ID: id, Name: name}, true
	}
}

func TestRenderConditions(t *testing.T) {
	t.Parallel()

	lookup := lookupFrom(map[string]string{
		"11154": "Test attribute users 1",
		"11159": "Test attribute users 2",
		"11160": "Test attribute users 3",
	})

	tests := []struct {
		name     string
		tree     datafile.ConditionTree
		expected string
	}{
		{
			name:     "Should render empty tree as empty string",
			tree:     nil,
			expected: "",
		},
		{
			name:     "Should render single operand without operator",
			tree:     datafile.ConditionTree{"or", "11160"},
			expected: `"Test attribute users 3"`,
		},
		{
			name:     "Should render single bare id",
			tree:     datafile.ConditionTree{"11160"},
			expected: `"Test attribute users 3"`,
		},
		{
			name:     "Should join OR operands",
			tree:     datafile.ConditionTree{"or", "11160", "11159"},
			expected: `"Test attribute users 3" OR "Test attribute users 2"`,
		},
		{
			name:     "Should join AND operands",
			tree:     datafile.ConditionTree{"and", "11160", "11159", "11154"},
			expected: `"Test attribute users 3" AND "Test attribute users 2" AND "Test attribute users 1"`,
		},
		{
			name:     "Should prefix leading NOT",
			tree:     datafile.ConditionTree{"not", "11160"},
			expected: `NOT "Test attribute users 3"`,
		},
		{
			name:     "Should match operators case-insensitively",
			tree:     datafile.ConditionTree{"AnD", "11160", "11159"},
			expected: `"Test attribute users 3" AND "Test attribute users 2"`,
		},
		{
			name:     "Should treat bare ids as implicit OR",
			tree:     datafile.ConditionTree{"11160", "11159", "11154"},
			expected: `"Test attribute users 3" OR "Test attribute users 2" OR "Test attribute users 1"`,
		},
		{
			name: "Should parenthesize leading nested tree",
			tree: datafile.ConditionTree{
				"and", datafile.ConditionTree{"or", "11160", "11159"}, "11154",
			},
			expected: `("Test attribute users 3" OR "Test attribute users 2") AND "Test attribute users 1"`,
		},
		{
			name: "Should parenthesize trailing nested tree",
			tree: datafile.ConditionTree{
				"and", "11154", datafile.ConditionTree{"or", "11160", "11159"},
			},
			expected: `"Test attribute users 1" AND ("Test attribute users 3" OR "Test attribute users 2")`,
		},
		{
			name: "Should negate nested tree",
			tree: datafile.ConditionTree{
				"not", datafile.ConditionTree{"or", "11160", "11159"},
			},
			expected: `NOT ("Test attribute users 3" OR "Test attribute users 2")`,
		},
		{
			name: "Should render deeply nested trees",
			tree: datafile.ConditionTree{
				"or",
				datafile.ConditionTree{"and", "11154", datafile.ConditionTree{"not", "11159"}},
				datafile.ConditionTree{"and", "11160"},
			},
			expected: `("Test attribute users 1" AND (NOT "Test attribute users 2")) OR ("Test attribute users 3")`,
		},
		{
			name:     "Should accept plain slices as nested trees",
			tree:     datafile.ConditionTree{"and", []any{"or", "11160", "11159"}, "11154"},
			expected: `("Test attribute users 3" OR "Test attribute users 2") AND "Test attribute users 1"`,
		},
		{
			name:     "Should quote unknown ids as-is",
			tree:     datafile.ConditionTree{"11111"},
			expected: `"11111"`,
		},
		{
			name:     "Should mix known and unknown ids",
			tree:     datafile.ConditionTree{"and", "11160", "11111"},
			expected: `"Test attribute users 3" AND "11111"`,
		},
		{
			name:     "Should skip nil items",
			tree:     datafile.ConditionTree{"or", nil, "11160"},
			expected: `"Test attribute users 3"`,
		},
		{
			name:     "Should render operator-only tree as empty string",
			tree:     datafile.ConditionTree{"and"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, projection.RenderConditions(tt.tree, lookup))
		})
	}
}

func TestRenderConditions_NilLookup(t *testing.T) {
	t.Parallel()

	got := projection.RenderConditions(datafile.ConditionTree{"or", "1", "2"}, nil)

	assert.Equal(t, `"1" OR "2"`, got)
}
