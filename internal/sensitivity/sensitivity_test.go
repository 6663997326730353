package sensitivity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
	"sedentarism/internal/calibration"
	"sedentarism/internal/classifier"
	"sedentarism/internal/errors"
	"sedentarism/internal/testkit"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.TauStep = 0
	assert.True(t, errors.IsConfigError(bad.Validate()))

	bad = DefaultConfig()
	bad.Shifts = []float64{-100}
	assert.True(t, errors.IsConfigError(bad.Validate()))

	bad = DefaultConfig()
	bad.RobustBelow, bad.SensitiveAbove = 0.2, 0.1
	_, err := NewAnalyzer(bad, nil)
	assert.True(t, errors.IsConfigError(err))
}

func TestSweep_StableBand(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig(), nil)
	require.NoError(t, err)

	var scores []float64
	var positives []bool
	for i := 0; i < 200; i++ {
		s := (float64(i) + 0.5) / 200
		scores = append(scores, s)
		positives = append(positives, i >= 80)
	}

	sweep := a.sweep(scores, positives, 0.4)
	assert.Len(t, sweep.Curve, 21)
	assert.InDelta(t, 0.40, sweep.BestTau, 1e-9)
	assert.Equal(t, 1.0, sweep.BestF1)
	assert.InDelta(t, 0.34, sweep.Band.Lo, 1e-9)
	assert.InDelta(t, 0.45, sweep.Band.Hi, 1e-9)
	assert.InDelta(t, 0.11, sweep.Band.Width, 1e-9)
}

func TestVerdict(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictRobust, a.verdict(0.01))
	assert.Equal(t, VerdictModerate, a.verdict(0.05))
	assert.Equal(t, VerdictModerate, a.verdict(0.10))
	assert.Equal(t, VerdictSensitive, a.verdict(0.2))
}

func TestAnalyze_GlobalFit(t *testing.T) {
	c := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	joined, err := weekly.Join(c.Vectors, c.Labels)
	require.NoError(t, err)
	vectors := weekly.Vectors(joined.Records)
	positives := make([]bool, len(joined.Records))
	for i, w := range joined.Records {
		positives[i] = w.Class == 1
	}

	model, err := classifier.Fit(vectors, classifier.DefaultConfig())
	require.NoError(t, err)
	cal, err := calibration.Calibrate(classifier.Values(model.ScoreAll(vectors)), positives, calibration.DefaultGrid())
	require.NoError(t, err)

	a, err := NewAnalyzer(DefaultConfig(), nil)
	require.NoError(t, err)
	r, err := a.Analyze(model, vectors, positives, cal.Threshold)
	require.NoError(t, err)

	assert.Equal(t, cal.Best.F1, r.Baseline.F1)
	require.Len(t, r.Shifts, 4)
	for _, s := range r.Shifts {
		assert.InDelta(t, s.Metrics.F1-r.Baseline.F1, s.DeltaF1, 1e-12)
		assert.LessOrEqual(t, math.Abs(s.DeltaF1), r.MaxAbsDelta)
	}
	assert.Contains(t, []Verdict{VerdictRobust, VerdictModerate, VerdictSensitive}, r.Verdict)
	assert.LessOrEqual(t, r.Sweep.Band.Lo, r.Sweep.BestTau)
	assert.GreaterOrEqual(t, r.Sweep.Band.Hi, r.Sweep.BestTau)
	assert.GreaterOrEqual(t, r.Sweep.BestF1, r.Baseline.F1)
}

func TestAnalyze_UndefinedThreshold(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig(), nil)
	require.NoError(t, err)
	r, err := a.Analyze(nil, nil, nil, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, VerdictUndefined, r.Verdict)
	assert.True(t, r.Flags.Has(core.FlagUndefinedMetric))
}
