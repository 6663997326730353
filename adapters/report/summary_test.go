package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/app"
	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/internal/calibration"
	"sedentarism/internal/markov"
	"sedentarism/internal/sensitivity"
)

func sampleReport(t *testing.T) *app.RunReport {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var weeks []markov.ScoredWeek
	for i, s := range []float64{0.1, 0.5, 0.9, 0.8} {
		weeks = append(weeks, markov.ScoredWeek{Group: "user_001", WeekStart: start.AddDate(0, 0, 7*i), Score: s})
	}
	m, err := markov.Fit(weeks, markov.DefaultConfig())
	require.NoError(t, err)
	forecasts, err := m.Forecast(1)
	require.NoError(t, err)

	return &app.RunReport{
		Join:        app.JoinSummary{Features: 4, Labels: 4, Joined: 4},
		Calibration: calibration.Result{Threshold: 0.42},
		Global:      stats.Evaluate([]bool{true, false, true, false}, []bool{true, false, false, false}),
		Grade:       app.GradeModerate,
		Discordances: []app.Discordance{
			{Group: "user_001", WeekStart: start, Score: 0.3, Margin: 0.12, Actual: true},
		},
		Sensitivity: &sensitivity.Report{
			Tau:         0.42,
			Sweep:       sensitivity.TauSweep{Band: sensitivity.Band{Lo: 0.38, Hi: 0.47, Width: 0.09}},
			MaxAbsDelta: math.NaN(),
			Verdict:     sensitivity.VerdictRobust,
		},
		Markov:    m,
		Backtest:  m.Backtest(),
		Forecasts: forecasts,
		Flags:     core.Flags{core.FlagJoinLoss},
	}
}

func TestMarkdown_Sections(t *testing.T) {
	md := Markdown(sampleReport(t))

	assert.Contains(t, md, "# Sedentarism run summary")
	assert.Contains(t, md, "| 0.420 |")
	assert.Contains(t, md, "moderate")
	assert.Contains(t, md, "`join_loss`")
	assert.Contains(t, md, "## Sensitivity")
	assert.Contains(t, md, "[0.380, 0.470]")
	assert.Contains(t, md, "max |change| n/a")
	assert.Contains(t, md, "## Largest discordances")
	assert.Contains(t, md, "## Traffic light")
	assert.Contains(t, md, "user_001 | 2024-01-22")
	assert.NotContains(t, md, "Leave-one-group-out", "no cross-validation section without folds")
}

func TestWrite_MarkdownAndHTML(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(dir, sampleReport(t))
	require.NoError(t, err)
	require.Len(t, paths, 2)

	page, err := os.ReadFile(filepath.Join(dir, HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Sedentarism run summary</title>")
	assert.Contains(t, string(page), "<table>")
}

func TestWrite_MissingDirectory(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "absent"), sampleReport(t))
	assert.Error(t, err)
}
