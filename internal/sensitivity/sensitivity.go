// Package sensitivity measures how the agreement of a globally fitted
// classifier reacts to threshold and breakpoint perturbations.
package sensitivity

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/domain/weekly"
	"sedentarism/internal"
	"sedentarism/internal/calibration"
	"sedentarism/internal/classifier"
	"sedentarism/internal/errors"
)

// Config holds the sweep ranges and the verdict thresholds.
type Config struct {
	TauSpan   float64   `yaml:"tau_span"`
	TauStep   float64   `yaml:"tau_step"`
	Tolerance float64   `yaml:"tolerance"`
	Shifts    []float64 `yaml:"shifts"`
	// RobustBelow and SensitiveAbove bound the maximum |ΔF1| of the shift sweep.
	RobustBelow    float64 `yaml:"robust_below"`
	SensitiveAbove float64 `yaml:"sensitive_above"`
}

// DefaultConfig sweeps τ ± 0.10 by 0.01 and shifts breakpoints by ±3% and ±5%.
func DefaultConfig() Config {
	return Config{
		TauSpan:        0.10,
		TauStep:        0.01,
		Tolerance:      0.05,
		Shifts:         []float64{-5, -3, 3, 5},
		RobustBelow:    0.05,
		SensitiveAbove: 0.10,
	}
}

// Validate rejects sweeps that cannot run.
func (c Config) Validate() error {
	if !(c.TauSpan >= 0) || !(c.TauStep > 0) {
		return errors.ConfigInvalidf("threshold sweep needs span >= 0 and step > 0, got %v/%v", c.TauSpan, c.TauStep)
	}
	if !(c.Tolerance >= 0) {
		return errors.ConfigInvalidf("stability tolerance must be >= 0, got %v", c.Tolerance)
	}
	for _, s := range c.Shifts {
		if !(s > -100) {
			return errors.ConfigInvalidf("breakpoint shift %v%% must be greater than -100%%", s)
		}
	}
	if !(c.RobustBelow >= 0 && c.RobustBelow <= c.SensitiveAbove) {
		return errors.ConfigInvalidf("verdict thresholds must satisfy 0 <= robust (%v) <= sensitive (%v)", c.RobustBelow, c.SensitiveAbove)
	}
	return nil
}

// Verdict classifies the largest observed metric change.
type Verdict string

const (
	VerdictRobust    Verdict = "robust"
	VerdictModerate  Verdict = "moderate"
	VerdictSensitive Verdict = "sensitive"
	VerdictUndefined Verdict = "undefined"
)

// Band is the contiguous threshold range whose F1 stays within tolerance of
// the sweep maximum.
type Band struct {
	Lo    float64 `yaml:"lo"`
	Hi    float64 `yaml:"hi"`
	Width float64 `yaml:"width"`
}

// TauSweep is the F1 curve around the calibrated threshold.
type TauSweep struct {
	Center  float64             `yaml:"center"`
	Curve   []calibration.Point `yaml:"curve"`
	BestTau float64             `yaml:"best_tau"`
	BestF1  float64             `yaml:"best_f1"`
	Band    Band                `yaml:"band"`
}

// ShiftPoint is the outcome of one breakpoint shift at the original τ.
type ShiftPoint struct {
	ShiftPct float64             `yaml:"shift_pct"`
	Metrics  stats.BinaryMetrics `yaml:"metrics"`
	DeltaF1  float64             `yaml:"delta_f1"`
}

// Report is the outcome of both sweeps.
type Report struct {
	Tau         float64             `yaml:"tau"`
	Baseline    stats.BinaryMetrics `yaml:"baseline"`
	Sweep       TauSweep            `yaml:"sweep"`
	Shifts      []ShiftPoint        `yaml:"shifts"`
	MaxAbsDelta float64             `yaml:"max_abs_delta"`
	Verdict     Verdict             `yaml:"verdict"`
	Flags       core.Flags          `yaml:"flags,omitempty"`
}

// Analyzer runs the sweeps against one global fit.
type Analyzer struct {
	cfg    Config
	logger *internal.Logger
}

// NewAnalyzer validates cfg.
func NewAnalyzer(cfg Config, logger *internal.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, logger: logger.With("sensitivity")}, nil
}

// Analyze sweeps τ around tau on the model's scores, then re-scores the
// vectors with every shifted membership set at the unchanged tau.
func (a *Analyzer) Analyze(model *classifier.Model, vectors []weekly.Vector, positives []bool, tau float64) (*Report, error) {
	r := &Report{Tau: tau, MaxAbsDelta: math.NaN(), Verdict: VerdictUndefined}
	if len(vectors) == 0 || math.IsNaN(tau) {
		r.Baseline = stats.Confusion{}.Metrics()
		r.Flags.Add(core.FlagUndefinedMetric)
		return r, nil
	}

	scores := classifier.Values(model.ScoreAll(vectors))
	r.Baseline = stats.Evaluate(positives, stats.Binarize(scores, tau))
	r.Sweep = a.sweep(scores, positives, tau)

	maxDelta := 0.0
	for _, pct := range a.cfg.Shifts {
		sets, err := model.Memberships().Shift(pct)
		if err != nil {
			return nil, err
		}
		shifted := classifier.Values(model.WithMemberships(sets).ScoreAll(vectors))
		m := stats.Evaluate(positives, stats.Binarize(shifted, tau))
		p := ShiftPoint{ShiftPct: pct, Metrics: m, DeltaF1: m.F1 - r.Baseline.F1}
		r.Shifts = append(r.Shifts, p)
		maxDelta = math.Max(maxDelta, math.Abs(p.DeltaF1))
		a.logger.Debug("shift %+.0f%%: F1 %.3f (Δ %+.3f)", pct, m.F1, p.DeltaF1)
	}
	r.MaxAbsDelta = maxDelta
	r.Verdict = a.verdict(maxDelta)
	a.logger.Info("stable band [%.2f, %.2f], max |ΔF1| %.3f: %s", r.Sweep.Band.Lo, r.Sweep.Band.Hi, maxDelta, r.Verdict)
	return r, nil
}

func (a *Analyzer) sweep(scores []float64, positives []bool, tau float64) TauSweep {
	grid := calibration.Around(tau, a.cfg.TauSpan, a.cfg.TauStep)
	taus := grid.Values()
	if len(taus) == 0 {
		taus = []float64{tau}
	}

	s := TauSweep{Center: tau, Curve: make([]calibration.Point, len(taus))}
	f1 := make([]float64, len(taus))
	for i, t := range taus {
		m := stats.Evaluate(positives, stats.Binarize(scores, t))
		s.Curve[i] = calibration.Point{Tau: t, Metrics: m}
		f1[i] = m.F1
	}

	best := floats.MaxIdx(f1)
	s.BestTau, s.BestF1 = taus[best], f1[best]

	floor := s.BestF1 - a.cfg.Tolerance
	lo, hi := best, best
	for lo > 0 && f1[lo-1] >= floor {
		lo--
	}
	for hi < len(f1)-1 && f1[hi+1] >= floor {
		hi++
	}
	s.Band = Band{Lo: taus[lo], Hi: taus[hi], Width: math.Round((taus[hi]-taus[lo])*1e9) / 1e9}
	return s
}

func (a *Analyzer) verdict(maxDelta float64) Verdict {
	switch {
	case maxDelta < a.cfg.RobustBelow:
		return VerdictRobust
	case maxDelta > a.cfg.SensitiveAbove:
		return VerdictSensitive
	default:
		return VerdictModerate
	}
}
