// Package calibration chooses the binarization threshold of the continuous
// score against the external ground truth.
package calibration

import (
	"math"

	"sedentarism/internal/errors"
)

// Grid is a closed, evenly spaced range of candidate thresholds.
type Grid struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// DefaultGrid scans 0.10..0.70 in steps of 0.01.
func DefaultGrid() Grid {
	return Grid{Min: 0.10, Max: 0.70, Step: 0.01}
}

// Validate rejects grids that hold no candidate.
func (g Grid) Validate() error {
	for _, v := range []float64{g.Min, g.Max, g.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.ConfigInvalidf("threshold grid %+v is not finite", g)
		}
	}
	if g.Step <= 0 {
		return errors.ConfigInvalidf("threshold grid step must be positive, got %v", g.Step)
	}
	if g.Max < g.Min {
		return errors.ConfigInvalidf("threshold grid is empty: max %v < min %v", g.Max, g.Min)
	}
	return nil
}

// Values enumerates the candidates in ascending order. Each point is computed
// as Min + i*Step and rounded to 1e-9 so accumulated error never adds or drops
// the last point.
func (g Grid) Values() []float64 {
	if g.Validate() != nil {
		return nil
	}
	n := int(math.Floor((g.Max-g.Min)/g.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((g.Min+float64(i)*g.Step)*1e9) / 1e9
	}
	return out
}

// Around builds a grid of the given half-width centred on tau, clipped to [0, 1].
func Around(tau, span, step float64) Grid {
	lo := math.Max(0, tau-span)
	hi := math.Min(1, tau+span)
	return Grid{Min: lo, Max: hi, Step: step}
}
