package validation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
	"sedentarism/internal"
	"sedentarism/internal/calibration"
	"sedentarism/internal/classifier"
	"sedentarism/internal/errors"
	"sedentarism/internal/testkit"
)

func cohortWeeks(t *testing.T, cfg testkit.CohortConfig) []weekly.LabeledWeek {
	t.Helper()
	c := testkit.NewCohortGenerator(cfg).Generate()
	joined, err := weekly.Join(c.Vectors, c.Labels)
	require.NoError(t, err)
	return joined.Records
}

func defaultFoldConfig() FoldConfig {
	return FoldConfig{
		Classifier: classifier.DefaultConfig(),
		Grid:       calibration.DefaultGrid(),
		LabelMode:  calibration.LabelBinary,
	}
}

func TestCrossValidator_EvaluatesEveryGroup(t *testing.T) {
	weeks := cohortWeeks(t, testkit.DefaultCohortConfig())
	cv := NewCrossValidator(defaultFoldConfig(), 3, internal.NewDiscardLogger())

	report, err := cv.Run(context.Background(), weeks)
	require.NoError(t, err)

	groups := weekly.Groups(weekly.Vectors(weeks))
	require.Len(t, report.Folds, len(groups))
	total := 0
	for i, fold := range report.Folds {
		assert.Equal(t, groups[i], fold.Group)
		assert.Equal(t, len(weeks), fold.TrainSize+fold.HeldOutSize)
		total += fold.Metrics.Confusion.Total()
	}
	assert.Equal(t, len(weeks), total)
	assert.Equal(t, len(weeks), report.Pooled.Total())

	f1, ok := report.Summary(MetricF1)
	require.True(t, ok)
	assert.Equal(t, len(groups), f1.Total)
}

func TestFitAndEvaluate_NoLeakage(t *testing.T) {
	weeks := cohortWeeks(t, testkit.DefaultCohortConfig())
	groups := weekly.Groups(weekly.Vectors(weeks))
	target := groups[0]

	train, heldOut := weekly.SplitByGroup(weeks, target)
	base, err := FitAndEvaluate(train, heldOut, defaultFoldConfig())
	require.NoError(t, err)

	// the held-out group's values change wildly; the fitted parameters must not
	perturbed := make([]weekly.LabeledWeek, len(heldOut))
	for i, w := range heldOut {
		w.Features[weekly.ActivityLevel] = weekly.Present(1e6 + float64(i))
		w.Class = 1 - w.Class
		perturbed[i] = w
	}
	again, err := FitAndEvaluate(train, perturbed, defaultFoldConfig())
	require.NoError(t, err)
	assert.Equal(t, base.Memberships, again.Memberships)
	assert.Equal(t, base.Bounds, again.Bounds)
	assert.Equal(t, base.Threshold, again.Threshold)

	// and the validator reproduces the standalone fold bit for bit
	report, err := NewCrossValidator(defaultFoldConfig(), 2, nil).Run(context.Background(), weeks)
	require.NoError(t, err)
	assert.Equal(t, base.Memberships, report.Folds[0].Memberships)
	assert.Equal(t, base.Threshold, report.Folds[0].Threshold)
	assert.Equal(t, base.Metrics.Confusion, report.Folds[0].Metrics.Confusion)
}

func TestCrossValidator_DeterministicAcrossWorkerCounts(t *testing.T) {
	weeks := cohortWeeks(t, testkit.DefaultCohortConfig())
	serial, err := NewCrossValidator(defaultFoldConfig(), 1, nil).Run(context.Background(), weeks)
	require.NoError(t, err)
	parallel, err := NewCrossValidator(defaultFoldConfig(), 8, nil).Run(context.Background(), weeks)
	require.NoError(t, err)

	require.Len(t, parallel.Folds, len(serial.Folds))
	for i := range serial.Folds {
		assert.Equal(t, serial.Folds[i].Group, parallel.Folds[i].Group)
		assert.Equal(t, serial.Folds[i].Threshold, parallel.Folds[i].Threshold)
		assert.Equal(t, serial.Folds[i].Metrics.Confusion, parallel.Folds[i].Metrics.Confusion)
	}
}

func TestCrossValidator_DegenerateFoldDoesNotAbort(t *testing.T) {
	cfg := testkit.DefaultCohortConfig()
	cfg.Groups = 1
	weeks := cohortWeeks(t, cfg)

	report, err := NewCrossValidator(defaultFoldConfig(), 1, nil).Run(context.Background(), weeks)
	require.NoError(t, err)
	require.Len(t, report.Folds, 1)

	fold := report.Folds[0]
	assert.Equal(t, 0, fold.TrainSize)
	assert.True(t, math.IsNaN(fold.Threshold))
	assert.True(t, math.IsNaN(fold.Metrics.F1))
	assert.True(t, fold.Flags.Has(core.FlagUndefinedMetric))
	assert.True(t, fold.Flags.Has(core.FlagEmptyTraining))

	f1, _ := report.Summary(MetricF1)
	assert.Equal(t, 0, f1.Defined)
	assert.True(t, math.IsNaN(f1.Mean))
}

func TestCrossValidator_ConfigErrorAborts(t *testing.T) {
	weeks := cohortWeeks(t, testkit.DefaultCohortConfig())
	cfg := defaultFoldConfig()
	cfg.Grid = calibration.Grid{Min: 0.9, Max: 0.1, Step: 0.01}

	report, err := NewCrossValidator(cfg, 2, nil).Run(context.Background(), weeks)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.IsConfigError(err))
}

func TestCrossValidator_ClusterLabels(t *testing.T) {
	c := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	labels := make([]weekly.Label, len(c.Labels))
	for i, l := range c.Labels {
		l.Class = c.Levels[i] + 10
		labels[i] = l
	}
	joined, err := weekly.Join(c.Vectors, labels)
	require.NoError(t, err)

	cfg := defaultFoldConfig()
	cfg.LabelMode = calibration.LabelCluster
	report, err := NewCrossValidator(cfg, 2, nil).Run(context.Background(), joined.Records)
	require.NoError(t, err)
	for _, fold := range report.Folds {
		assert.Equal(t, calibration.LabelCluster, fold.Mapping.Mode)
		assert.Contains(t, []int{10, 11, 12}, fold.Mapping.Positive)
	}
}
