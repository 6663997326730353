package calibration

import (
	"math"

	"sedentarism/domain/core"
	"sedentarism/domain/stats"
)

// Point is one evaluated candidate of the threshold grid.
type Point struct {
	Tau     float64             `yaml:"tau"`
	Metrics stats.BinaryMetrics `yaml:"metrics"`
}

// Result is a CalibratedThreshold together with the full grid it was chosen from.
type Result struct {
	Threshold float64             `yaml:"threshold"`
	Best      stats.BinaryMetrics `yaml:"best"`
	Grid      []Point             `yaml:"grid"`
	Flags     core.Flags          `yaml:"flags,omitempty"`
}

// Calibrate evaluates every candidate τ (score >= τ is positive) and keeps the
// one with the highest F1. Candidates are visited in ascending order and only
// a strictly better F1 replaces the incumbent, so ties resolve to the
// smallest τ. An empty fit partition yields a NaN threshold and an
// undefined-metric flag.
func Calibrate(scores []float64, positives []bool, grid Grid) (Result, error) {
	if err := grid.Validate(); err != nil {
		return Result{}, err
	}
	candidates := grid.Values()

	res := Result{Threshold: math.NaN(), Grid: make([]Point, 0, len(candidates))}
	bestF1 := math.Inf(-1)
	for _, tau := range candidates {
		m := stats.Evaluate(positives, stats.Binarize(scores, tau))
		res.Grid = append(res.Grid, Point{Tau: tau, Metrics: m})
		if m.Defined && m.F1 > bestF1 {
			bestF1 = m.F1
			res.Threshold = tau
			res.Best = m
		}
	}

	if math.IsNaN(res.Threshold) {
		res.Best = stats.Confusion{}.Metrics()
		res.Flags.Add(core.FlagUndefinedMetric)
		return res, nil
	}
	if res.Best.Confusion.SingleClass() {
		res.Flags.Add(core.FlagSingleClass)
	}
	return res, nil
}

// Curve returns the F1 of every grid point in order.
func (r Result) Curve() (taus, f1 []float64) {
	taus = make([]float64, len(r.Grid))
	f1 = make([]float64, len(r.Grid))
	for i, p := range r.Grid {
		taus[i] = p.Tau
		f1[i] = p.Metrics.F1
	}
	return taus, f1
}
