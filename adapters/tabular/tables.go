package tabular

import (
	"strings"
	"time"

	"sedentarism/app"
	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/internal/calibration"
	"sedentarism/internal/markov"
	"sedentarism/internal/sensitivity"
	"sedentarism/internal/validation"
)

// Sheet is one output table. Cells hold string, int, bool or float64 values.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

func (s *Sheet) add(cells ...interface{}) {
	s.Rows = append(s.Rows, cells)
}

var metricHeader = []string{"accuracy", "precision", "recall", "f1", "mcc", "tp", "fp", "tn", "fn"}

func metricCells(m stats.BinaryMetrics) []interface{} {
	c := m.Confusion
	return []interface{}{m.Accuracy, m.Precision, m.Recall, m.F1, m.MCC, c.TP, c.FP, c.TN, c.FN}
}

func joinFlags(fs core.Flags) string {
	return strings.Join(fs.Sorted().Strings(), ";")
}

func dateCell(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeeklyScoresSheet is the per-week score, state and firing table.
func WeeklyScoresSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "weekly_scores", Header: []string{
		"group_id", "week_start", "continuous_score", "degenerate", "state",
		"labeled", "class", "actual_positive", "predicted_positive",
	}}
	for _, rule := range r.Rules {
		s.Header = append(s.Header, "firing_"+rule.ID)
	}
	s.Header = append(s.Header, "flags")

	for _, w := range r.Weeks {
		cells := []interface{}{w.Group.String(), dateCell(w.WeekStart), w.Score, w.Degenerate, w.State.String(), w.Labeled}
		if w.Labeled {
			cells = append(cells, w.Class, w.Actual, w.Predicted)
		} else {
			cells = append(cells, "", "", "")
		}
		for i := range r.Rules {
			if i < len(w.Firing) {
				cells = append(cells, w.Firing[i])
			} else {
				cells = append(cells, "")
			}
		}
		cells = append(cells, joinFlags(w.Flags))
		s.add(cells...)
	}
	return s
}

// BoundsSheet lists the scaling bounds of the global fit.
func BoundsSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "scaling_bounds", Header: []string{"feature", "min", "max", "samples", "degenerate"}}
	for _, b := range r.Bounds.Bounds {
		s.add(b.Feature.String(), b.Min, b.Max, b.Samples, b.Degenerate)
	}
	return s
}

// MembershipSheet lists every fuzzy set of the global fit in native units.
func MembershipSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "membership_functions", Header: []string{
		"feature", "direction", "label", "shape", "a", "b", "c", "pct_a", "pct_b", "pct_c", "samples", "flags",
	}}
	for _, fs := range r.Memberships.Features {
		for slot, label := range fs.Labels {
			t, p := fs.Triples[slot], fs.Percentiles[slot]
			s.add(fs.Feature.String(), fs.Direction.String(), label.String(), fs.Shapes[slot].String(),
				t.A, t.B, t.C, p[0], p[1], p[2], fs.Samples, joinFlags(fs.Flags))
		}
	}
	return s
}

// RulesSheet lists the rule base.
func RulesSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "rules", Header: []string{"id", "rule", "weight", "description"}}
	for _, rule := range r.Rules {
		s.add(rule.ID, rule.String(), rule.Weight, rule.Description)
	}
	return s
}

// CalibrationSheet is the full threshold grid.
func CalibrationSheet(name string, points []calibration.Point) Sheet {
	s := Sheet{Name: name, Header: append([]string{"tau"}, metricHeader...)}
	for _, p := range points {
		s.add(append([]interface{}{p.Tau}, metricCells(p.Metrics)...)...)
	}
	return s
}

// GlobalSheet is the single-row evaluation at the calibrated τ, with the
// score distribution.
func GlobalSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "global_metrics", Header: append([]string{"threshold", "grade"}, metricHeader...)}
	s.Header = append(s.Header, "score_n", "score_mean", "score_std", "score_min", "score_max", "score_q33", "score_q67", "positive_class", "flags")
	d := r.Distribution
	cells := append([]interface{}{r.Threshold(), string(r.Grade)}, metricCells(r.Global)...)
	cells = append(cells, d.N, d.Mean, d.Std, d.Min, d.Max, d.Q33, d.Q67, r.Mapping.Positive, joinFlags(r.Flags))
	s.add(cells...)
	return s
}

// FoldsSheet is one row per held-out group.
func FoldsSheet(cv *validation.Report) Sheet {
	s := Sheet{Name: "cv_folds", Header: append([]string{"group_id", "train_size", "held_out_size", "threshold", "train_f1"}, metricHeader...)}
	s.Header = append(s.Header, "positive_class", "flags")
	if cv == nil {
		return s
	}
	for _, f := range cv.Folds {
		cells := append([]interface{}{f.Group.String(), f.TrainSize, f.HeldOutSize, f.Threshold, f.TrainF1}, metricCells(f.Metrics)...)
		cells = append(cells, f.Mapping.Positive, joinFlags(f.Flags))
		s.add(cells...)
	}
	return s
}

// SummarySheet is mean ± std and extremes per cross-validated metric.
func SummarySheet(cv *validation.Report) Sheet {
	s := Sheet{Name: "cv_summary", Header: []string{"metric", "mean", "std", "min", "min_group", "max", "max_group", "defined", "total"}}
	if cv == nil {
		return s
	}
	for _, m := range cv.Summaries {
		s.add(m.Name, m.Mean, m.Std, m.Min, m.MinLabel, m.Max, m.MaxLabel, m.Defined, m.Total)
	}
	c := cv.Pooled.Metrics()
	s.add("pooled_f1", c.F1, "", "", "", "", "", "", "")
	return s
}

// ConcordanceSheet is the per-group agreement at τ.
func ConcordanceSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "concordance", Header: []string{"group_id", "weeks", "agree", "rate"}}
	for _, c := range r.Concordance {
		s.add(c.Group.String(), c.Weeks, c.Agree, c.Rate)
	}
	return s
}

// DiscordanceSheet lists the disagreeing weeks farthest from τ.
func DiscordanceSheet(r *app.RunReport) Sheet {
	s := Sheet{Name: "discordances", Header: []string{"group_id", "week_start", "continuous_score", "margin", "actual_positive", "predicted_positive"}}
	for _, d := range r.Discordances {
		s.add(d.Group.String(), dateCell(d.WeekStart), d.Score, d.Margin, d.Actual, d.Predicted)
	}
	return s
}

// SensitivitySheets returns the τ sweep, the shift sweep and the summary.
func SensitivitySheets(sr *sensitivity.Report) []Sheet {
	summary := Sheet{Name: "sensitivity_summary", Header: []string{
		"tau", "baseline_f1", "best_tau", "best_f1", "band_lo", "band_hi", "band_width", "max_abs_delta_f1", "verdict", "flags",
	}}
	shifts := Sheet{Name: "sensitivity_shifts", Header: append([]string{"shift_pct", "delta_f1"}, metricHeader...)}
	if sr == nil {
		return []Sheet{CalibrationSheet("sensitivity_tau", nil), shifts, summary}
	}
	sw := sr.Sweep
	summary.add(sr.Tau, sr.Baseline.F1, sw.BestTau, sw.BestF1, sw.Band.Lo, sw.Band.Hi, sw.Band.Width, sr.MaxAbsDelta, string(sr.Verdict), joinFlags(sr.Flags))
	for _, p := range sr.Shifts {
		shifts.add(append([]interface{}{p.ShiftPct, p.DeltaF1}, metricCells(p.Metrics)...)...)
	}
	return []Sheet{CalibrationSheet("sensitivity_tau", sw.Curve), shifts, summary}
}

func matrixRows(s *Sheet, scope string, tm markov.TransitionMatrix) {
	for _, from := range markov.AllStates {
		s.add(scope, from.String(),
			tm.Counts[from][markov.Green], tm.Counts[from][markov.Yellow], tm.Counts[from][markov.Red],
			tm.Probs[from][markov.Green], tm.Probs[from][markov.Yellow], tm.Probs[from][markov.Red],
			tm.IdentityRows[from])
	}
}

// TransitionSheet holds the global matrix followed by every group's, in
// count and probability form.
func TransitionSheet(m *markov.Model) Sheet {
	s := Sheet{Name: "transitions", Header: []string{
		"scope", "from", "n_green", "n_yellow", "n_red", "p_green", "p_yellow", "p_red", "identity_row",
	}}
	if m == nil {
		return s
	}
	matrixRows(&s, "global", m.Global)
	for _, g := range m.Groups() {
		matrixRows(&s, g.String(), m.PerGroup[g])
	}
	return s
}

// StatesSheet is the classified sequence of every group with the cut points.
func StatesSheet(m *markov.Model) Sheet {
	s := Sheet{Name: "states", Header: []string{"group_id", "week_start", "continuous_score", "state", "green_max", "red_min"}}
	if m == nil {
		return s
	}
	for _, seq := range m.Sequences {
		for _, o := range seq.Observations {
			s.add(seq.Group.String(), dateCell(o.WeekStart), o.Score, o.State.String(), m.Cuts.GreenMax, m.Cuts.RedMin)
		}
	}
	return s
}

// BacktestSheet is every one-step prediction.
func BacktestSheet(bt markov.BacktestResult) Sheet {
	s := Sheet{Name: "backtest", Header: []string{"group_id", "week_start", "from", "actual", "predicted", "hit"}}
	for _, r := range bt.Records {
		s.add(r.Group.String(), dateCell(r.WeekStart), r.From.String(), r.Actual.String(), r.Predicted.String(), r.Hit)
	}
	return s
}

// ForecastSheet is the h-step forecast per group.
func ForecastSheet(forecasts []markov.Forecast) Sheet {
	s := Sheet{Name: "forecast", Header: []string{
		"group_id", "last_week", "current", "horizon", "target_week", "predicted", "p_green", "p_yellow", "p_red",
	}}
	for _, f := range forecasts {
		p := f.Probabilities
		s.add(f.Group.String(), dateCell(f.LastWeek), f.Current.String(), f.Horizon, dateCell(f.TargetWeek),
			f.Predicted.String(), p[markov.Green], p[markov.Yellow], p[markov.Red])
	}
	return s
}

// RunSheets returns every table of a run in workbook order.
func RunSheets(r *app.RunReport) []Sheet {
	sheets := []Sheet{
		GlobalSheet(r),
		WeeklyScoresSheet(r),
		BoundsSheet(r),
		MembershipSheet(r),
		RulesSheet(r),
		CalibrationSheet("calibration_grid", r.Calibration.Grid),
		FoldsSheet(r.CrossValidation),
		SummarySheet(r.CrossValidation),
		ConcordanceSheet(r),
		DiscordanceSheet(r),
	}
	sheets = append(sheets, SensitivitySheets(r.Sensitivity)...)
	return append(sheets, MarkovSheets(r.Markov, r.Backtest, r.Forecasts)...)
}

// MarkovSheets returns the traffic-light tables.
func MarkovSheets(m *markov.Model, bt markov.BacktestResult, forecasts []markov.Forecast) []Sheet {
	summary := Sheet{Name: "markov_summary", Header: []string{"mode", "green_max", "red_min", "gap_policy", "pairs", "hits", "accuracy", "flags"}}
	if m != nil {
		flags := append(core.Flags(nil), m.Flags...)
		flags.Merge(bt.Flags)
		summary.add(m.Cuts.Mode.String(), m.Cuts.GreenMax, m.Cuts.RedMin, m.GapPolicy.String(), bt.Pairs, bt.Hits, bt.Accuracy, joinFlags(flags))
	}
	return []Sheet{summary, StatesSheet(m), TransitionSheet(m), BacktestSheet(bt), ForecastSheet(forecasts)}
}
