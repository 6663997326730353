package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/fuzzy"
	"sedentarism/internal/calibration"
	"sedentarism/internal/errors"
	"sedentarism/internal/markov"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"MEMBERSHIP_SHOULDERS", "LABEL_MODE", "TAU_MIN", "TAU_MAX", "TAU_STEP", "SENS_SHIFTS", "MARKOV_THRESHOLD_MODE", "RULES_FILE", "FORECAST_HORIZON"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, calibration.DefaultGrid(), cfg.Calibration.Grid)
	assert.Equal(t, []float64{-5, -3, 3, 5}, cfg.Sensitivity.Shifts)
	assert.False(t, cfg.Database.Enabled())
	plan, err := cfg.Plan()
	require.NoError(t, err)
	assert.Equal(t, fuzzy.DefaultPlan(), plan)

	fc, err := cfg.FoldConfig()
	require.NoError(t, err)
	assert.Equal(t, calibration.LabelBinary, fc.LabelMode)
	assert.Equal(t, 5, fc.Classifier.Rules().Len())

	mc, err := cfg.MarkovConfig()
	require.NoError(t, err)
	assert.Equal(t, markov.DefaultConfig(), mc)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LABEL_MODE", "cluster")
	t.Setenv("SENS_SHIFTS", "-10, 10")
	t.Setenv("MEMBERSHIP_SHOULDERS", "false")
	t.Setenv("MARKOV_GAP_POLICY", "reset")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []float64{-10, 10}, cfg.Sensitivity.Shifts)
	plan, err := cfg.Plan()
	require.NoError(t, err)
	assert.False(t, plan.Shoulders)
	mc, err := cfg.MarkovConfig()
	require.NoError(t, err)
	assert.Equal(t, markov.GapReset, mc.GapPolicy)
}

func TestLoad_InvalidValuesAreConfigErrors(t *testing.T) {
	tests := map[string]string{
		"LABEL_MODE":            "kmeans",
		"SENS_SHIFTS":           "3,abc",
		"TAU_STEP":              "0",
		"MARKOV_THRESHOLD_MODE": "quartiles",
		"FORECAST_HORIZON":      "0",
		"CLIP_LOW_PCT":          "96",
		"RULE_AGGREGATION":      "product",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err), "%v", err)
		})
	}
}

func TestRules_RoundTrip(t *testing.T) {
	data, err := MarshalRules(fuzzy.DefaultRuleBase())
	require.NoError(t, err)

	rb, err := ParseRules(data)
	require.NoError(t, err)
	assert.Equal(t, fuzzy.DefaultRules(), rb.Rules())
}

func TestParseRules_Malformed(t *testing.T) {
	tests := map[string]string{
		"unknown label": `
rules:
  - id: X
    if: [{feature: cardiac_delta, label: high}]
    then: high
    weight: 1
`,
		"unknown feature": `
rules:
  - id: X
    if: [{feature: steps, label: low}]
    then: high
    weight: 1
`,
		"unknown consequent": `
rules:
  - id: X
    if: [{feature: activity_level, label: low}]
    then: extreme
    weight: 1
`,
		"zero weight": `
rules:
  - id: X
    if: [{feature: activity_level, label: low}]
    then: high
`,
		"not yaml": "rules: [",
		"empty":    "rules: []",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err), "%v", err)
		})
	}
}

func TestLoadRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: only
    if:
      - feature: heart_rate_variability
        label: low
      - feature: cardiac_delta
        label: high-load
    then: high
    weight: 0.5
`), 0o644))

	rb, err := LoadRuleFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, rb.Len())
	assert.Equal(t, fuzzy.HighLoad, rb.Rules()[0].Antecedent[1].Label)

	_, err = LoadRuleFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
}
