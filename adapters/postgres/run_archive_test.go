package postgres

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/core"
	"sedentarism/domain/run"
	"sedentarism/domain/stats"
	"sedentarism/internal/errors"
)

func sampleRecord() *run.Record {
	fp := run.NewRunFingerprint(core.NewHash([]byte("inputs")), core.NewHash([]byte("config")), run.CodeVersion)
	m := run.NewManifest(fp, 120, 118, 118, 6)
	week := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	return &run.Record{
		Manifest:         *m,
		Threshold:        0.41,
		Global:           stats.Evaluate([]bool{true, true, false, false}, []bool{true, false, false, true}),
		Grade:            "low",
		Verdict:          "robust",
		BacktestAccuracy: 0.66,
		Folds: []run.FoldRow{
			{Group: "user_000", TrainSize: 98, HeldOutSize: 20, Threshold: 0.4, Metrics: stats.Confusion{}.Metrics(), Flags: []string{"undefined_metric"}},
		},
		Forecasts: []run.ForecastRow{
			{Group: "user_000", LastWeek: week, Current: "green", Horizon: 1, TargetWeek: week.AddDate(0, 0, 7), Predicted: "green", PGreen: 0.7, PYellow: 0.2, PRed: 0.1},
		},
		Flags: []string{"join_loss"},
	}
}

func TestRunRow_RoundTrip(t *testing.T) {
	rec := sampleRecord()
	row := toRunRow(rec)

	assert.Equal(t, rec.Manifest.RunID.String(), row.RunID)
	assert.Equal(t, rec.Global.Confusion.TP, row.TP)
	assert.Equal(t, 6, row.Groups)

	back := row.record()
	assert.Equal(t, rec.Manifest, back.Manifest)
	assert.Equal(t, rec.Global, back.Global)
	assert.Equal(t, rec.Flags, back.Flags)
	assert.Equal(t, rec.Threshold, back.Threshold)
}

func TestMetricColumns_KeepsUndefinedMetrics(t *testing.T) {
	m := stats.Confusion{}.Metrics()
	back := toMetricColumns(m).metrics()
	assert.False(t, back.Defined)
	assert.True(t, math.IsNaN(back.F1) == math.IsNaN(m.F1))
}

func TestStringArray_NeverNil(t *testing.T) {
	assert.NotNil(t, stringArray(nil))
	assert.Len(t, stringArray([]string{"a"}), 1)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

// TestRunArchive_Live needs a disposable database in TEST_DATABASE_URL.
func TestRunArchive_Live(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping live test: TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	archive := NewRunArchive(db)
	rec := sampleRecord()
	require.NoError(t, archive.SaveRun(ctx, rec))

	got, err := archive.GetRun(ctx, rec.Manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.Manifest.Fingerprint, got.Manifest.Fingerprint)
	assert.WithinDuration(t, rec.Manifest.CreatedAt, got.Manifest.CreatedAt, time.Millisecond)
	require.Len(t, got.Folds, 1)
	assert.True(t, math.IsNaN(got.Folds[0].Metrics.F1))
	require.Len(t, got.Forecasts, 1)
	assert.Equal(t, rec.Forecasts[0].TargetWeek, got.Forecasts[0].TargetWeek)

	same, err := archive.FindByFingerprint(ctx, rec.Manifest.Fingerprint.Fingerprint)
	require.NoError(t, err)
	assert.NotEmpty(t, same)

	recent, err := archive.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)

	_, err = archive.GetRun(ctx, core.NewRunID())
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
