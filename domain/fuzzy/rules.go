package fuzzy

import (
	"fmt"
	"strings"

	"sedentarism/domain/weekly"
	"sedentarism/internal/errors"
)

// AntecedentTerm is one (feature, label) condition of a rule.
type AntecedentTerm struct {
	Feature weekly.FeatureID
	Label   FuzzyLabel
}

func (t AntecedentTerm) String() string {
	return fmt.Sprintf("%s is %s", t.Feature, t.Label)
}

// Rule is a hand-authored conjunction of terms pointing to one category.
type Rule struct {
	ID          string
	Antecedent  []AntecedentTerm
	Weight      float64
	Consequent  Category
	Description string
}

func (r Rule) String() string {
	terms := make([]string, len(r.Antecedent))
	for i, t := range r.Antecedent {
		terms[i] = t.String()
	}
	return fmt.Sprintf("%s: IF %s THEN %s (w=%.2f)", r.ID, strings.Join(terms, " AND "), r.Consequent, r.Weight)
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.ConfigInvalid("rule without id")
	}
	if len(r.Antecedent) == 0 {
		return errors.ConfigInvalidf("rule %s: empty antecedent", r.ID)
	}
	if !(r.Weight > 0 && r.Weight <= 1) {
		return errors.ConfigInvalidf("rule %s: weight %v outside (0, 1]", r.ID, r.Weight)
	}
	if !r.Consequent.Valid() {
		return errors.ConfigInvalidf("rule %s: unknown consequent %d", r.ID, int(r.Consequent))
	}
	for _, t := range r.Antecedent {
		if !t.Feature.Valid() {
			return errors.ConfigInvalidf("rule %s: undefined feature %d", r.ID, int(t.Feature))
		}
		if !DirectionOf(t.Feature).Accepts(t.Label) {
			return errors.ConfigInvalidf("rule %s: feature %s has no label %s", r.ID, t.Feature, t.Label)
		}
	}
	return nil
}

// RuleBase is a validated, immutable rule list shared by every fold.
type RuleBase struct {
	rules []Rule
}

// NewRuleBase validates every rule. A rule that references a (feature, label)
// pair the membership sets do not define fails here, not at inference time.
func NewRuleBase(rules []Rule) (*RuleBase, error) {
	if len(rules) == 0 {
		return nil, errors.ConfigInvalid("rule base is empty")
	}
	seen := make(map[string]bool, len(rules))
	out := make([]Rule, len(rules))
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, errors.ConfigInvalidf("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
		r.Antecedent = append([]AntecedentTerm(nil), r.Antecedent...)
		out[i] = r
	}
	return &RuleBase{rules: out}, nil
}

// DefaultRules returns the five expert rules of the sedentarism classifier.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "R1",
			Antecedent:  []AntecedentTerm{{weekly.ActivityLevel, Low}, {weekly.CaloricSurplus, Low}},
			Weight:      1.0,
			Consequent:  CategoryHigh,
			Description: "low activity and low caloric expenditure",
		},
		{
			ID:          "R2",
			Antecedent:  []AntecedentTerm{{weekly.ActivityLevel, High}, {weekly.CaloricSurplus, High}},
			Weight:      1.0,
			Consequent:  CategoryLow,
			Description: "high activity and high caloric expenditure",
		},
		{
			ID:          "R3",
			Antecedent:  []AntecedentTerm{{weekly.HeartRateVariability, Low}, {weekly.CardiacDelta, HighLoad}},
			Weight:      1.0,
			Consequent:  CategoryHigh,
			Description: "low heart rate variability under high cardiac load",
		},
		{
			ID:          "R4",
			Antecedent:  []AntecedentTerm{{weekly.ActivityLevel, Medium}, {weekly.HeartRateVariability, Medium}},
			Weight:      1.0,
			Consequent:  CategoryMedium,
			Description: "moderate activity and moderate variability",
		},
		{
			ID:          "R5",
			Antecedent:  []AntecedentTerm{{weekly.ActivityLevel, Low}, {weekly.CaloricSurplus, Medium}},
			Weight:      0.7,
			Consequent:  CategoryHigh,
			Description: "low activity with moderate caloric expenditure",
		},
	}
}

// DefaultRuleBase wraps DefaultRules. The defaults always validate.
func DefaultRuleBase() *RuleBase {
	rb, err := NewRuleBase(DefaultRules())
	if err != nil {
		panic(err)
	}
	return rb
}

// Rules returns a copy of the rule list in evaluation order.
func (rb *RuleBase) Rules() []Rule {
	out := make([]Rule, len(rb.rules))
	copy(out, rb.rules)
	return out
}

// Len returns the number of rules.
func (rb *RuleBase) Len() int { return len(rb.rules) }
