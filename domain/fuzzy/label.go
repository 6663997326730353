// Package fuzzy implements the rule-based classifier: robust feature scaling,
// percentile-derived membership functions, triangular fuzzification and a
// weighted Mamdani-style rule engine with centroid defuzzification.
package fuzzy

import (
	"fmt"
	"strings"

	"sedentarism/domain/weekly"
)

// Direction tells whether larger feature values are healthier.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

func (d Direction) String() string {
	if d == LowerIsBetter {
		return "lower_is_better"
	}
	return "higher_is_better"
}

// DirectionOf returns the fixed direction of a feature. Cardiac delta is the
// only feature where a lower value means a better state; it is described in
// terms of load.
func DirectionOf(f weekly.FeatureID) Direction {
	if f == weekly.CardiacDelta {
		return LowerIsBetter
	}
	return HigherIsBetter
}

// FuzzyLabel is a linguistic term of one feature. Each feature carries three
// labels, in slot order: low, medium, high.
type FuzzyLabel int

const (
	Low FuzzyLabel = iota
	Medium
	High
	LowLoad
	MediumLoad
	HighLoad
)

var labelNames = [...]string{"low", "medium", "high", "low_load", "medium_load", "high_load"}

func (l FuzzyLabel) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("label(%d)", int(l))
	}
	return labelNames[l]
}

// Slot is the position of the label among its feature's three sets.
func (l FuzzyLabel) Slot() int {
	return int(l) % 3
}

// ParseFuzzyLabel accepts the canonical names, case-insensitively, with
// '-' or ' ' in place of '_'.
func ParseFuzzyLabel(s string) (FuzzyLabel, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	for i, name := range labelNames {
		if name == norm {
			return FuzzyLabel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fuzzy label %q", s)
}

// LabelsFor returns the three labels used by features of direction d.
func LabelsFor(d Direction) [3]FuzzyLabel {
	if d == LowerIsBetter {
		return [3]FuzzyLabel{LowLoad, MediumLoad, HighLoad}
	}
	return [3]FuzzyLabel{Low, Medium, High}
}

// Accepts reports whether l belongs to the label set of direction d.
func (d Direction) Accepts(l FuzzyLabel) bool {
	for _, candidate := range LabelsFor(d) {
		if candidate == l {
			return true
		}
	}
	return false
}

// Category is a rule consequent: the sedentarism level a rule points to.
type Category int

const (
	CategoryLow Category = iota
	CategoryMedium
	CategoryHigh
)

// NumCategories is the number of consequent categories.
const NumCategories = 3

var categoryNames = [NumCategories]string{"low", "medium", "high"}

// representative values used by centroid defuzzification
var representatives = [NumCategories]float64{0.2, 0.5, 0.8}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the three categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

// Representative is the fixed crisp value of the category.
func (c Category) Representative() float64 {
	return representatives[c]
}

// ParseCategory maps low/medium/high to a category.
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == norm {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown consequent category %q", s)
}
