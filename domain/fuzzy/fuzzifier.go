package fuzzy

import (
	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
)

// Degrees holds the membership degree of every (feature, label slot).
type Degrees [weekly.NumFeatures][3]float64

// Of returns the degree of an antecedent term.
func (d Degrees) Of(t AntecedentTerm) float64 {
	return d[t.Feature][t.Label.Slot()]
}

// Fuzzifier evaluates a fit's membership functions against feature vectors.
// Values and breakpoints are both mapped through the fit's scaling bounds, so
// evaluation happens in the clipped [0, 1] space.
type Fuzzifier struct {
	scaler     Scaler
	sets       MembershipSet
	normalized [weekly.NumFeatures][3]Triple
}

// NewFuzzifier pre-normalizes the breakpoints of sets with scaler.
func NewFuzzifier(scaler Scaler, sets MembershipSet) *Fuzzifier {
	fz := &Fuzzifier{scaler: scaler, sets: sets}
	for f := range sets.Features {
		b := scaler.Bounds[f]
		for slot, t := range sets.Features[f].Triples {
			fz.normalized[f][slot] = Triple{
				A: b.Normalize(t.A),
				B: b.Normalize(t.B),
				C: b.Normalize(t.C),
			}.Repair()
		}
	}
	return fz
}

// Scaler returns the bounds used by the fuzzifier.
func (fz *Fuzzifier) Scaler() Scaler { return fz.scaler }

// Sets returns the membership functions used by the fuzzifier.
func (fz *Fuzzifier) Sets() MembershipSet { return fz.sets }

// Fuzzify computes every membership degree of v. A missing reading or a
// range-degenerate feature carries no information: its three degrees are 0
// and the result is flagged.
func (fz *Fuzzifier) Fuzzify(v weekly.Vector) (Degrees, core.Flags) {
	var d Degrees
	var flags core.Flags
	for f := range v.Features {
		r := v.Features[f]
		if !r.Valid {
			flags.Add(core.FlagMissingFeature)
			continue
		}
		if fz.scaler.Bounds[f].Degenerate {
			flags.Add(core.FlagRangeDegenerate)
			continue
		}
		x := fz.scaler.Bounds[f].Normalize(r.Value)
		for slot := 0; slot < 3; slot++ {
			d[f][slot] = Degree(x, fz.normalized[f][slot], fz.sets.Features[f].Shapes[slot])
		}
	}
	return d, flags
}
