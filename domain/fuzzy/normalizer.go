package fuzzy

import (
	"math"

	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/domain/weekly"
)

// DegenerateValue is what a range-degenerate feature normalizes to.
const DegenerateValue = 0.5

// ScalingBounds are the robust min/max of one feature, taken from the low and
// high clip percentiles of a training partition.
type ScalingBounds struct {
	Feature    weekly.FeatureID `json:"feature"`
	Min        float64          `json:"min"`
	Max        float64          `json:"max"`
	Samples    int              `json:"samples"`
	Degenerate bool             `json:"degenerate"`
}

// FitBounds computes the bounds of one feature. values should hold only the
// training partition.
func FitBounds(f weekly.FeatureID, values []float64, lowPct, highPct float64) ScalingBounds {
	q := stats.NewQuantiles(values)
	b := ScalingBounds{
		Feature: f,
		Min:     q.Percentile(lowPct),
		Max:     q.Percentile(highPct),
		Samples: q.Len(),
	}
	b.Degenerate = b.Samples == 0 || !(b.Max > b.Min)
	return b
}

// Normalize clips x into [Min, Max] and rescales to [0, 1]. A degenerate
// range yields DegenerateValue; a NaN input stays NaN.
func (b ScalingBounds) Normalize(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if b.Degenerate {
		return DegenerateValue
	}
	x = math.Min(math.Max(x, b.Min), b.Max)
	return (x - b.Min) / (b.Max - b.Min)
}

// Scaler holds the bounds of every feature for one fit.
type Scaler struct {
	Bounds [weekly.NumFeatures]ScalingBounds `json:"bounds"`
}

// FitScaler computes fresh bounds for every feature from the training vectors.
func FitScaler(training []weekly.Vector, lowPct, highPct float64) Scaler {
	var s Scaler
	for _, f := range weekly.AllFeatures {
		s.Bounds[f] = FitBounds(f, weekly.Column(training, f), lowPct, highPct)
	}
	return s
}

// Normalize rescales a raw reading of feature f.
func (s Scaler) Normalize(f weekly.FeatureID, x float64) float64 {
	return s.Bounds[f].Normalize(x)
}

// Flags reports range-degenerate and empty features.
func (s Scaler) Flags() core.Flags {
	var fs core.Flags
	for _, b := range s.Bounds {
		if b.Samples == 0 {
			fs.Add(core.FlagEmptyTraining)
		}
		if b.Degenerate {
			fs.Add(core.FlagRangeDegenerate)
		}
	}
	return fs
}
