package app

import (
	"math"
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/fuzzy"
	"sedentarism/domain/run"
	"sedentarism/domain/stats"
	"sedentarism/internal/calibration"
	"sedentarism/internal/markov"
	"sedentarism/internal/sensitivity"
	"sedentarism/internal/validation"
)

// Grade is the qualitative agreement level of the global F1.
type Grade string

const (
	GradeLow       Grade = "low"
	GradeModerate  Grade = "moderate"
	GradeGood      Grade = "good"
	GradeUndefined Grade = "undefined"
)

// GradeF1 maps F1 < 0.60 to low, < 0.70 to moderate and anything higher to good.
func GradeF1(f1 float64) Grade {
	switch {
	case math.IsNaN(f1):
		return GradeUndefined
	case f1 < 0.60:
		return GradeLow
	case f1 < 0.70:
		return GradeModerate
	default:
		return GradeGood
	}
}

// JoinSummary reports the inner join of both feeds.
type JoinSummary struct {
	Features        int     `yaml:"features"`
	Labels          int     `yaml:"labels"`
	Joined          int     `yaml:"joined"`
	DroppedFeatures int     `yaml:"dropped_features"`
	UnmatchedLabels int     `yaml:"unmatched_labels"`
	DropPercent     float64 `yaml:"drop_percent"`
}

// WeekResult is the per-week output: continuous score, traffic-light state
// and, for labeled weeks, the comparison with the ground truth.
type WeekResult struct {
	Group      core.GroupID `yaml:"group"`
	WeekStart  time.Time    `yaml:"week_start"`
	Score      float64      `yaml:"score"`
	Degenerate bool         `yaml:"degenerate"`
	Firing     []float64    `yaml:"firing"`
	State      markov.State `yaml:"state"`
	Labeled    bool         `yaml:"labeled"`
	Class      int          `yaml:"class"`
	Actual     bool         `yaml:"actual"`
	Predicted  bool         `yaml:"predicted"`
	Flags      core.Flags   `yaml:"flags,omitempty"`
}

// GroupConcordance is the share of a group's labeled weeks where the
// binarized score agrees with the ground truth.
type GroupConcordance struct {
	Group core.GroupID `yaml:"group"`
	Weeks int          `yaml:"weeks"`
	Agree int          `yaml:"agree"`
	Rate  float64      `yaml:"rate"`
}

// Discordance is a labeled week where score and ground truth disagree.
type Discordance struct {
	Group     core.GroupID `yaml:"group"`
	WeekStart time.Time    `yaml:"week_start"`
	Score     float64      `yaml:"score"`
	Margin    float64      `yaml:"margin"`
	Actual    bool         `yaml:"actual"`
	Predicted bool         `yaml:"predicted"`
}

// RunReport holds every output of one pipeline run.
type RunReport struct {
	Manifest        *run.Manifest            `yaml:"manifest"`
	Join            JoinSummary              `yaml:"join"`
	Bounds          fuzzy.Scaler             `yaml:"-"`
	Memberships     fuzzy.MembershipSet      `yaml:"-"`
	Rules           []fuzzy.Rule             `yaml:"-"`
	Weeks           []WeekResult             `yaml:"-"`
	Distribution    stats.Distribution       `yaml:"distribution"`
	Calibration     calibration.Result       `yaml:"-"`
	Mapping         calibration.ClassMapping `yaml:"mapping"`
	Global          stats.BinaryMetrics      `yaml:"global"`
	Grade           Grade                    `yaml:"grade"`
	Concordance     []GroupConcordance       `yaml:"concordance"`
	Discordances    []Discordance            `yaml:"discordances"`
	CrossValidation *validation.Report       `yaml:"-"`
	Sensitivity     *sensitivity.Report      `yaml:"-"`
	Markov          *markov.Model            `yaml:"-"`
	Backtest        markov.BacktestResult    `yaml:"-"`
	Forecasts       []markov.Forecast        `yaml:"-"`
	Flags           core.Flags               `yaml:"flags,omitempty"`
	Duration        time.Duration            `yaml:"duration"`
}

// Threshold is the calibrated global τ.
func (r *RunReport) Threshold() float64 {
	return r.Calibration.Threshold
}

// Record flattens the report for the run archive.
func (r *RunReport) Record() *run.Record {
	rec := &run.Record{
		Threshold:        r.Threshold(),
		Global:           r.Global,
		Grade:            string(r.Grade),
		Verdict:          string(sensitivity.VerdictUndefined),
		BacktestAccuracy: r.Backtest.Accuracy,
		Flags:            r.Flags.Sorted().Strings(),
	}
	if r.Manifest != nil {
		rec.Manifest = *r.Manifest
	}
	if r.Sensitivity != nil {
		rec.Verdict = string(r.Sensitivity.Verdict)
	}
	if r.CrossValidation != nil {
		for _, f := range r.CrossValidation.Folds {
			rec.Folds = append(rec.Folds, run.FoldRow{
				Group:       f.Group,
				TrainSize:   f.TrainSize,
				HeldOutSize: f.HeldOutSize,
				Threshold:   f.Threshold,
				Metrics:     f.Metrics,
				Flags:       f.Flags.Sorted().Strings(),
			})
		}
	}
	for _, f := range r.Forecasts {
		rec.Forecasts = append(rec.Forecasts, run.ForecastRow{
			Group:      f.Group,
			LastWeek:   f.LastWeek,
			Current:    f.Current.String(),
			Horizon:    f.Horizon,
			TargetWeek: f.TargetWeek,
			Predicted:  f.Predicted.String(),
			PGreen:     f.Probabilities[markov.Green],
			PYellow:    f.Probabilities[markov.Yellow],
			PRed:       f.Probabilities[markov.Red],
		})
	}
	return rec
}
