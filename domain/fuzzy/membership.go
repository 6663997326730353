package fuzzy

import (
	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/domain/weekly"
	"sedentarism/internal/errors"
)

// FeatureSets are the three fuzzy sets of one feature, in native units.
type FeatureSets struct {
	Feature     weekly.FeatureID `json:"feature"`
	Direction   Direction        `json:"direction"`
	Labels      [3]FuzzyLabel    `json:"labels"`
	Percentiles [3][3]float64    `json:"percentiles"`
	Triples     [3]Triple        `json:"triples"`
	Shapes      [3]Shape         `json:"shapes"`
	Samples     int              `json:"samples"`
	Flags       core.Flags       `json:"flags,omitempty"`
}

// Set returns the triple and shape of label l.
func (fs FeatureSets) Set(l FuzzyLabel) (Triple, Shape, bool) {
	if !fs.Direction.Accepts(l) {
		return Triple{}, Triangle, false
	}
	return fs.Triples[l.Slot()], fs.Shapes[l.Slot()], true
}

// MembershipSet is the MembershipFunctionSet of one fit: three ordered sets
// per feature derived from training percentiles only.
type MembershipSet struct {
	Features [weekly.NumFeatures]FeatureSets `json:"features"`
}

// BuildMembershipSet derives breakpoints from the training partition. Ties in
// the data are repaired by Triple.Repair; the plan itself must be valid.
func BuildMembershipSet(training []weekly.Vector, plan PercentilePlan) (MembershipSet, error) {
	if err := plan.Validate(); err != nil {
		return MembershipSet{}, err
	}

	var set MembershipSet
	for _, f := range weekly.AllFeatures {
		dir := DirectionOf(f)
		q := stats.NewQuantiles(weekly.Column(training, f))
		fs := FeatureSets{
			Feature:     f,
			Direction:   dir,
			Labels:      LabelsFor(dir),
			Percentiles: plan.For(dir),
			Samples:     q.Len(),
			Shapes:      [3]Shape{Triangle, Triangle, Triangle},
		}
		if plan.Shoulders {
			fs.Shapes[0], fs.Shapes[2] = LeftShoulder, RightShoulder
		}

		switch {
		case fs.Samples == 0:
			fs.Flags.Add(core.FlagEmptyTraining)
		case fs.Samples < plan.MinSamples:
			fs.Flags.Add(core.FlagSparseTraining)
		}

		for slot, pcts := range fs.Percentiles {
			t := Triple{
				A: q.Percentile(pcts[0]),
				B: q.Percentile(pcts[1]),
				C: q.Percentile(pcts[2]),
			}
			fs.Triples[slot] = t.Repair()
		}
		set.Features[f] = fs
	}
	return set, nil
}

// Lookup returns the triple and shape for (feature, label).
func (m MembershipSet) Lookup(f weekly.FeatureID, l FuzzyLabel) (Triple, Shape, bool) {
	if !f.Valid() {
		return Triple{}, Triangle, false
	}
	return m.Features[f].Set(l)
}

// Shift returns a copy with every breakpoint multiplied by (1 + pct/100).
// pct must be greater than -100 so that the scaling keeps breakpoint order.
func (m MembershipSet) Shift(pct float64) (MembershipSet, error) {
	if !(pct > -100) {
		return MembershipSet{}, errors.ConfigInvalidf("breakpoint shift %v%% must be greater than -100%%", pct)
	}
	factor := 1 + pct/100
	out := m
	for f := range out.Features {
		for slot := range out.Features[f].Triples {
			out.Features[f].Triples[slot] = out.Features[f].Triples[slot].Scale(factor).Repair()
		}
		out.Features[f].Flags = append(core.Flags(nil), m.Features[f].Flags...)
	}
	return out, nil
}

// Flags merges the build flags of every feature.
func (m MembershipSet) Flags() core.Flags {
	var fs core.Flags
	for _, f := range m.Features {
		fs.Merge(f.Flags)
	}
	return fs
}
