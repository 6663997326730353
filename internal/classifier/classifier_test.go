package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/core"
	"sedentarism/domain/fuzzy"
	"sedentarism/domain/weekly"
	"sedentarism/internal/errors"
	"sedentarism/internal/testkit"
)

func TestNewConfig_Validation(t *testing.T) {
	_, err := NewConfig(fuzzy.DefaultPlan(), nil, fuzzy.AggregateSum)
	assert.True(t, errors.IsConfigError(err))

	plan := fuzzy.DefaultPlan()
	plan.ClipHigh = 120
	_, err = NewConfig(plan, fuzzy.DefaultRuleBase(), fuzzy.AggregateSum)
	assert.True(t, errors.IsConfigError(err))

	cfg, err := NewConfig(fuzzy.DefaultPlan(), fuzzy.DefaultRuleBase(), fuzzy.AggregateMax)
	require.NoError(t, err)
	assert.Equal(t, fuzzy.AggregateMax, cfg.Aggregation())
}

func TestFit_ScoresStayInRange(t *testing.T) {
	cohort := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	model, err := Fit(cohort.Vectors, DefaultConfig())
	require.NoError(t, err)

	scored := model.ScoreAll(cohort.Vectors)
	require.Len(t, scored, len(cohort.Vectors))
	for i, s := range scored {
		assert.GreaterOrEqual(t, s.Score.Value(), 0.0)
		assert.LessOrEqual(t, s.Score.Value(), 1.0)
		assert.Equal(t, cohort.Vectors[i].Key(), s.Key)
		assert.Len(t, s.Firing, 5)
	}
}

func TestFit_SeparatesLatentLevels(t *testing.T) {
	cohort := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	model, err := Fit(cohort.Vectors, DefaultConfig())
	require.NoError(t, err)

	var sum [3]float64
	var n [3]int
	for i, s := range model.ScoreAll(cohort.Vectors) {
		sum[cohort.Levels[i]] += s.Score.Value()
		n[cohort.Levels[i]]++
	}
	require.NotZero(t, n[0])
	require.NotZero(t, n[2])
	assert.Greater(t, sum[2]/float64(n[2]), sum[0]/float64(n[0]))
}

func TestFit_Idempotent(t *testing.T) {
	cohort := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	a, err := Fit(cohort.Vectors, DefaultConfig())
	require.NoError(t, err)
	b, err := Fit(cohort.Vectors, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, a.Memberships(), b.Memberships())
	assert.Equal(t, a.Scaler(), b.Scaler())
	assert.Equal(t, Values(a.ScoreAll(cohort.Vectors)), Values(b.ScoreAll(cohort.Vectors)))
}

func TestFit_EmptyTrainingIsFlagged(t *testing.T) {
	model, err := Fit(nil, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, model.Flags().Has(core.FlagEmptyTraining))

	cohort := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	s := model.Score(cohort.Vectors[0])
	assert.True(t, s.Score.IsDegenerate())
	assert.True(t, s.Flags.Has(core.FlagNoRuleFired))
}

func TestWithMemberships_KeepsBounds(t *testing.T) {
	cohort := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	model, err := Fit(cohort.Vectors, DefaultConfig())
	require.NoError(t, err)

	shifted, err := model.Memberships().Shift(3)
	require.NoError(t, err)
	other := model.WithMemberships(shifted)
	assert.Equal(t, model.Scaler(), other.Scaler())
	assert.NotEqual(t, model.Memberships(), other.Memberships())

	v := cohort.Vectors[0]
	assert.Equal(t, weekly.Key{Group: v.Group, WeekStart: v.WeekStart}, other.Score(v).Key)
}
