package markov

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"sedentarism/domain/core"
	"sedentarism/internal/errors"
)

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func weeks(group string, offsets []int, scores ...float64) []ScoredWeek {
	out := make([]ScoredWeek, len(scores))
	for i, s := range scores {
		out[i] = ScoredWeek{Group: core.GroupID(group), WeekStart: monday.AddDate(0, 0, 7*offsets[i]), Score: s}
	}
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func fixed() Config {
	cfg := DefaultConfig()
	cfg.Mode = ThresholdFixed
	cfg.GreenMax, cfg.RedMin = 0.3333, 0.6667
	return cfg
}

func TestCutPoints_Classify(t *testing.T) {
	c, err := FixedCutPoints(0.3, 0.7)
	require.NoError(t, err)
	assert.Equal(t, Green, c.Classify(0.3))
	assert.Equal(t, Yellow, c.Classify(0.30001))
	assert.Equal(t, Red, c.Classify(0.7))
	assert.Equal(t, Yellow, c.Classify(math.NaN()))
	assert.Equal(t, Green, c.Classify(-1))

	for _, bad := range [][2]float64{{0.7, 0.3}, {0.5, 0.5}, {-0.1, 0.5}, {0.2, 1.1}} {
		_, err := FixedCutPoints(bad[0], bad[1])
		assert.True(t, errors.IsConfigError(err), "%v", bad)
	}
}

func TestTercileCutPoints(t *testing.T) {
	var scores []float64
	for i := 0; i < 300; i++ {
		scores = append(scores, float64(i)/299)
	}
	c, flags := TercileCutPoints(scores)
	assert.Empty(t, flags)
	assert.InDelta(t, 0.333, c.GreenMax, 0.01)
	assert.InDelta(t, 0.667, c.RedMin, 0.01)

	c, flags = TercileCutPoints([]float64{0.5, 0.5, 0.5})
	assert.True(t, flags.Has(core.FlagTercileFallback))
	assert.Equal(t, FallbackGreenMax, c.GreenMax)
	assert.Equal(t, FallbackRedMin, c.RedMin)

	_, flags = TercileCutPoints([]float64{math.NaN()})
	assert.True(t, flags.Has(core.FlagTercileFallback))

	c, flags = TercileCutPoints([]float64{0.4, 0.1, 0.3, 0.2})
	assert.Empty(t, flags)
	assert.InDelta(t, 0.19999, c.GreenMax, 1e-9)
	assert.InDelta(t, 0.30001, c.RedMin, 1e-9)
}

func TestFromCounts_RowStochasticAndIdentityRows(t *testing.T) {
	tm := FromCounts(Counts{{3, 1, 0}, {0, 0, 0}, {2, 2, 4}})
	for i, s := range tm.Probs.RowSums() {
		assert.InDelta(t, 1.0, s, 1e-12, "row %d", i)
	}
	assert.Equal(t, [NumStates]float64{0, 1, 0}, tm.Probs[Yellow])
	assert.Equal(t, [NumStates]bool{false, true, false}, tm.IdentityRows)
	assert.True(t, tm.Flags.Has(core.FlagIdentityRow))
	assert.Equal(t, 0.75, tm.Probs[Green][Green])
}

func TestFit_GlobalSumsCounts(t *testing.T) {
	var input []ScoredWeek
	input = append(input, weeks("a", seq(4), 0.1, 0.1, 0.1, 0.1)...)
	input = append(input, weeks("b", seq(2), 0.1, 0.9)...)

	m, err := Fit(input, fixed())
	require.NoError(t, err)
	assert.Equal(t, 4, m.Global.Counts.Total())
	assert.InDelta(t, 0.75, m.Global.Probs[Green][Green], 1e-12)
	assert.InDelta(t, 0.25, m.Global.Probs[Green][Red], 1e-12)
	assert.Equal(t, 1.0, m.PerGroup["a"].Probs[Green][Green])
	assert.Equal(t, 1.0, m.PerGroup["b"].Probs[Green][Red])
	assert.True(t, m.PerGroup["b"].IdentityRows[Red])

	for _, tm := range append([]TransitionMatrix{m.Global}, m.PerGroup["a"], m.PerGroup["b"]) {
		for _, s := range tm.Probs.RowSums() {
			assert.InDelta(t, 1.0, s, 1e-12)
		}
	}
}

func TestFit_OrdersChronologically(t *testing.T) {
	input := weeks("a", []int{2, 0, 1}, 0.9, 0.1, 0.5)
	m, err := Fit(input, fixed())
	require.NoError(t, err)
	require.Len(t, m.Sequences, 1)
	obs := m.Sequences[0].Observations
	assert.Equal(t, []State{Green, Yellow, Red}, []State{obs[0].State, obs[1].State, obs[2].State})
	assert.Equal(t, 1, m.Global.Counts[Green][Yellow])
	assert.Equal(t, 1, m.Global.Counts[Yellow][Red])
}

func TestFit_RejectsDuplicatesAndBadConfig(t *testing.T) {
	_, err := Fit(weeks("a", []int{0, 0}, 0.1, 0.2), fixed())
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	cfg := fixed()
	cfg.Horizon = 0
	_, err = Fit(nil, cfg)
	assert.True(t, errors.IsConfigError(err))

	cfg = fixed()
	cfg.GreenMax, cfg.RedMin = 0.8, 0.2
	_, err = Fit(nil, cfg)
	assert.True(t, errors.IsConfigError(err))
}

func TestGapPolicy(t *testing.T) {
	input := weeks("a", []int{0, 1, 4}, 0.1, 0.1, 0.9)

	cfg := fixed()
	ignore, err := Fit(input, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, ignore.Global.Counts.Total())

	cfg.GapPolicy = GapReset
	reset, err := Fit(input, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, reset.Global.Counts.Total())
	assert.Equal(t, 0, reset.Global.Counts[Green][Red])
	assert.Equal(t, 1, reset.Backtest().Pairs)
}

func TestMatrix3_PowerMatchesDenseOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var counts Counts
	for i := range counts {
		for j := range counts[i] {
			counts[i][j] = rng.Intn(10) + 1
		}
	}
	p := FromCounts(counts).Probs

	dense := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dense.Set(i, j, p[i][j])
		}
	}

	for _, h := range []int{0, 1, 2, 3, 5, 8, 13} {
		got, err := p.Power(h)
		require.NoError(t, err)

		var want mat.Dense
		want.Pow(dense, h)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, want.At(i, j), got[i][j], 1e-12, "h=%d (%d,%d)", h, i, j)
			}
		}
		for _, s := range got.RowSums() {
			assert.InDelta(t, 1.0, s, 1e-9)
		}
	}

	_, err := p.Power(-1)
	assert.True(t, errors.IsConfigError(err))
}

func TestForecast_OneStepEqualsRow(t *testing.T) {
	var input []ScoredWeek
	input = append(input, weeks("a", seq(6), 0.1, 0.5, 0.9, 0.5, 0.1, 0.5)...)
	input = append(input, weeks("b", seq(5), 0.9, 0.9, 0.5, 0.9, 0.9)...)
	m, err := Fit(input, fixed())
	require.NoError(t, err)

	forecasts, err := m.Forecast(1)
	require.NoError(t, err)
	require.Len(t, forecasts, 2)
	for _, f := range forecasts {
		assert.Equal(t, m.Global.Probs[f.Current], f.Probabilities)
		assert.Equal(t, f.LastWeek.AddDate(0, 0, 7), f.TargetWeek)
		assert.Equal(t, m.Global.Probs.ArgMax(f.Current), f.Predicted)
	}
	assert.Equal(t, Yellow, forecasts[0].Current)
	assert.Equal(t, Red, forecasts[1].Current)

	three, err := m.Forecast(3)
	require.NoError(t, err)
	assert.Equal(t, forecasts[0].LastWeek.AddDate(0, 0, 21), three[0].TargetWeek)
	var sum float64
	for _, p := range three[0].Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	_, err = m.Forecast(0)
	assert.True(t, errors.IsConfigError(err))
}

func TestBacktest(t *testing.T) {
	// green persists 3 of 4 times, so every green week predicts green
	input := weeks("a", seq(5), 0.1, 0.1, 0.1, 0.1, 0.9)
	m, err := Fit(input, fixed())
	require.NoError(t, err)

	bt := m.Backtest()
	assert.Equal(t, 4, bt.Pairs)
	assert.Equal(t, 3, bt.Hits)
	assert.InDelta(t, 0.75, bt.Accuracy, 1e-12)

	single, err := Fit(weeks("a", seq(1), 0.5), fixed())
	require.NoError(t, err)
	empty := single.Backtest()
	assert.True(t, math.IsNaN(empty.Accuracy))
	assert.True(t, empty.Flags.Has(core.FlagNoTransitions))
}

func TestArgMax_FirstMaximumWins(t *testing.T) {
	m := Matrix3{{0.5, 0.5, 0}, {0.2, 0.4, 0.4}, {0, 0, 1}}
	assert.Equal(t, Green, m.ArgMax(Green))
	assert.Equal(t, Yellow, m.ArgMax(Yellow))
	assert.Equal(t, Red, m.ArgMax(Red))
}
