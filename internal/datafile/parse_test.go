package datafile_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/flagscope/internal/datafile"
	"github.com/rafaeljc/flagscope/internal/datafile/datafiletest"
)

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Fixture(t *testing.T) {
	t.Parallel()

	// Act
	cfg, err := datafile.Parse(datafiletest.Document())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Revision())
	assert.Equal(t, "4", cfg.Version())
	assert.Equal(t, "111001", cfg.ProjectID())
	assert.Equal(t, "fixture-sdk-key", cfg.SDKKey())
	assert.Equal(t, "production", cfg.EnvironmentKey())
	assert.Len(t, cfg.Experiments(), 5)
	assert.Len(t, cfg.Groups(), 2)
	assert.Len(t, cfg.FeatureFlags(), 6)
	assert.Len(t, cfg.Rollouts(), 1)
	assert.Len(t, cfg.Audiences(), 4)
	assert.Len(t, cfg.TypedAudiences(), 1)
	assert.Len(t, cfg.Attributes(), 1)
	assert.Len(t, cfg.Events(), 1)
	assert.Equal(t, string(datafiletest.Document()), cfg.Datafile())
}

func TestParse_NormalizesJSONSubType(t *testing.T) {
	t.Parallel()

	cfg := datafiletest.Config(t)

	types := make(map[string]string)
	for _, v := range cfg.FeatureFlags()[0].Variables {
		types[v.Key] = v.Type
	}

	assert.Equal(t, datafile.VariableTypeJSON, types["object"], "string+json subtype should be reported as json")
	assert.Equal(t, datafile.VariableTypeJSON, types["true_object"])
	assert.Equal(t, datafile.VariableTypeString, types["environment"])
}

func TestParse_Lookups(t *testing.T) {
	t.Parallel()

	cfg := datafiletest.Config(t)

	rollout, ok := cfg.RolloutByID("211111")
	require.True(t, ok)
	assert.Len(t, rollout.Experiments, 3)

	_, ok = cfg.RolloutByID("missing")
	assert.False(t, ok)

	audience, ok := cfg.AudienceByID("11160")
	require.True(t, ok)
	assert.Equal(t, "Test attribute users 3", audience.Name)

	typed, ok := cfg.AudienceByID("3988293898")
	require.True(t, ok)
	assert.Equal(t, `["and",["or",["or",{"name":"house","type":"custom_attribute","match":"substring","value":"Slytherin"}]]]`, typed.Conditions)

	_, ok = cfg.AudienceByID("nope")
	assert.False(t, ok)
}

func TestParse_TypedAudienceShadowsLegacy(t *testing.T) {
	t.Parallel()

	// Arrange
	doc := `{
		"version": "4", "revision": "7",
		"experiments": [], "groups": [], "attributes": [], "events": [],
		"audiences": [{"id": "1", "name": "legacy", "conditions": "[]"}],
		"typedAudiences": [{"id": "1", "name": "typed", "conditions": ["or"]}]
	}`

	// Act
	cfg, err := datafile.Parse([]byte(doc))

	// Assert
	require.NoError(t, err)
	audience, ok := cfg.AudienceByID("1")
	require.True(t, ok)
	assert.Equal(t, "typed", audience.Name)
	assert.Equal(t, `["or"]`, audience.Conditions)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name:    "Should reject malformed JSON",
			doc:     `{"version": "4",`,
			wantErr: datafile.ErrInvalidDatafile,
		},
		{
			name:    "Should reject non-object document",
			doc:     `[]`,
			wantErr: datafile.ErrInvalidDatafile,
		},
		{
			name:    "Should reject missing required sections",
			doc:     `{"version": "4", "revision": "1"}`,
			wantErr: datafile.ErrInvalidDatafile,
		},
		{
			name:    "Should reject wrong field types",
			doc:     `{"version": "4", "revision": 1, "experiments": [], "groups": [], "audiences": [], "attributes": [], "events": []}`,
			wantErr: datafile.ErrInvalidDatafile,
		},
		{
			name:    "Should reject unsupported versions",
			doc:     `{"version": "1", "revision": "1", "experiments": [], "groups": [], "audiences": [], "attributes": [], "events": []}`,
			wantErr: datafile.ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := datafile.Parse([]byte(tt.doc))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, cfg)
		})
	}
}

// =============================================================================
// ConditionTree Tests
// =============================================================================

func TestConditionTree_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected datafile.ConditionTree
	}{
		{
			name:     "Should decode flat list",
			input:    `["or", "1", "2"]`,
			expected: datafile.ConditionTree{"or", "1", "2"},
		},
		{
			name:     "Should decode nested lists as nested trees",
			input:    `["and", ["or", "1", "2"], "3"]`,
			expected: datafile.ConditionTree{"and", datafile.ConditionTree{"or", "1", "2"}, "3"},
		},
		{
			name:     "Should keep non-string scalars as JSON text",
			input:    `["or", 42, true]`,
			expected: datafile.ConditionTree{"or", "42", "true"},
		},
		{
			name:     "Should decode null elements as nil",
			input:    `["or", null, "1"]`,
			expected: datafile.ConditionTree{"or", nil, "1"},
		},
		{
			name:     "Should decode empty list",
			input:    `[]`,
			expected: datafile.ConditionTree{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var tree datafile.ConditionTree
			err := json.Unmarshal([]byte(tt.input), &tree)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, tree)
		})
	}
}

func TestConditionTree_UnmarshalJSON_RejectsObjects(t *testing.T) {
	t.Parallel()

	var tree datafile.ConditionTree
	err := json.Unmarshal([]byte(`{"or": "1"}`), &tree)

	assert.Error(t, err)
}

// =============================================================================
// Fingerprint Tests
// =============================================================================

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := datafile.Fingerprint([]byte(`{"revision":"1"}`))
	b := datafile.Fingerprint([]byte(`{"revision":"1"}`))
	c := datafile.Fingerprint([]byte(`{"revision":"2"}`))

	assert.Len(t, a, 32, "128-bit hash should encode to 32 hex chars")
	assert.Equal(t, a, b, "fingerprint should be deterministic")
	assert.NotEqual(t, a, c, "different documents should produce different fingerprints")
}
