package fuzzy

import (
	"math"

	"sedentarism/internal/errors"
)

// PercentilePlan fixes which training percentiles become breakpoints. It is
// an immutable value: callers pass it into the builder; nothing reads it from
// process-wide state.
type PercentilePlan struct {
	// Standard holds the (a, b, c) percentiles of low, medium and high for
	// higher-is-better features.
	Standard [3][3]float64 `yaml:"standard"`
	// Load holds the same for the lower-is-better feature (low/medium/high load).
	Load [3][3]float64 `yaml:"load"`
	// ClipLow and ClipHigh are the robust scaling percentiles.
	ClipLow  float64 `yaml:"clip_low"`
	ClipHigh float64 `yaml:"clip_high"`
	// Shoulders turns the outer sets of every feature into open shoulders.
	Shoulders bool `yaml:"shoulders"`
	// MinSamples is the training size below which a feature is flagged sparse.
	MinSamples int `yaml:"min_samples"`
}

// DefaultPlan returns low (10, 25, 40), medium (35, 50, 65), high (60, 75, 90)
// for both variants, with 5/95 scaling. The outer sets are shoulders so that
// a week at or beyond the 5th or 95th percentile has full membership in them.
func DefaultPlan() PercentilePlan {
	sets := [3][3]float64{
		{10, 25, 40},
		{35, 50, 65},
		{60, 75, 90},
	}
	return PercentilePlan{
		Standard:   sets,
		Load:       sets,
		ClipLow:    5,
		ClipHigh:   95,
		Shoulders:  true,
		MinSamples: 20,
	}
}

// For returns the percentile triples for features of direction d.
func (p PercentilePlan) For(d Direction) [3][3]float64 {
	if d == LowerIsBetter {
		return p.Load
	}
	return p.Standard
}

// Validate rejects plans that cannot produce ordered breakpoints. Tied
// percentiles in the data are repaired at build time; a plan whose own
// percentiles decrease within a triple is not repairable.
func (p PercentilePlan) Validate() error {
	check := func(name string, sets [3][3]float64) error {
		for i, triple := range sets {
			for j, pct := range triple {
				if math.IsNaN(pct) || pct < 0 || pct > 100 {
					return errors.ConfigInvalidf("%s percentile plan: set %d point %d = %v outside [0, 100]", name, i, j, pct)
				}
			}
			if triple[0] > triple[1] || triple[1] > triple[2] {
				return errors.ConfigInvalidf("%s percentile plan: set %d %v is not non-decreasing", name, i, triple)
			}
		}
		return nil
	}
	if err := check("standard", p.Standard); err != nil {
		return err
	}
	if err := check("load", p.Load); err != nil {
		return err
	}
	if !(p.ClipLow >= 0 && p.ClipLow < p.ClipHigh && p.ClipHigh <= 100) {
		return errors.ConfigInvalidf("clip percentiles must satisfy 0 <= low < high <= 100, got %v/%v", p.ClipLow, p.ClipHigh)
	}
	if p.MinSamples < 0 {
		return errors.ConfigInvalidf("min samples must be >= 0, got %d", p.MinSamples)
	}
	return nil
}
