package fuzzy

import (
	"math"

	"sedentarism/domain/core"
	"sedentarism/internal/errors"
)

// Aggregation combines the firing strengths of rules sharing a consequent.
type Aggregation int

const (
	// AggregateSum adds firing strengths, so agreeing weak rules reinforce
	// each other.
	AggregateSum Aggregation = iota
	// AggregateMax keeps the strongest rule per category.
	AggregateMax
)

func (a Aggregation) String() string {
	if a == AggregateMax {
		return "max"
	}
	return "sum"
}

// ParseAggregation accepts "sum" and "max".
func ParseAggregation(s string) (Aggregation, error) {
	switch s {
	case "", "sum":
		return AggregateSum, nil
	case "max":
		return AggregateMax, nil
	}
	return 0, errors.ConfigInvalidf("unknown aggregation %q", s)
}

// NeutralScore is the fallback score when no rule fires.
const NeutralScore = 0.5

// ScoreResult is either a computed score or the degenerate fallback.
type ScoreResult struct {
	value      float64
	degenerate bool
}

// Computed wraps a score obtained by defuzzification.
func Computed(v float64) ScoreResult { return ScoreResult{value: v} }

// Degenerate wraps a fallback score.
func Degenerate(v float64) ScoreResult { return ScoreResult{value: v, degenerate: true} }

// Value returns the numeric score regardless of provenance.
func (s ScoreResult) Value() float64 { return s.value }

// IsDegenerate reports whether the score is a fallback.
func (s ScoreResult) IsDegenerate() bool { return s.degenerate }

// Inference is the InferenceResult of one week.
type Inference struct {
	Score      ScoreResult
	Firing     []float64
	Activation [NumCategories]float64
	Flags      core.Flags
}

// Engine evaluates a rule base over membership degrees.
type Engine struct {
	rules       []Rule
	aggregation Aggregation
}

// NewEngine binds a validated rule base to an aggregation mode.
func NewEngine(rb *RuleBase, agg Aggregation) *Engine {
	return &Engine{rules: rb.Rules(), aggregation: agg}
}

// Infer computes firing strengths, aggregates them per category and
// defuzzifies by centroid over the category representatives.
func (e *Engine) Infer(d Degrees) Inference {
	inf := Inference{Firing: make([]float64, len(e.rules))}
	for i, r := range e.rules {
		strength := 1.0
		for _, t := range r.Antecedent {
			strength = math.Min(strength, d.Of(t))
		}
		strength *= r.Weight
		inf.Firing[i] = strength

		switch e.aggregation {
		case AggregateMax:
			inf.Activation[r.Consequent] = math.Max(inf.Activation[r.Consequent], strength)
		default:
			inf.Activation[r.Consequent] += strength
		}
	}

	var num, den float64
	for c, a := range inf.Activation {
		num += Category(c).Representative() * a
		den += a
	}
	if den <= 0 {
		inf.Score = Degenerate(NeutralScore)
		inf.Flags.Add(core.FlagNoRuleFired)
		return inf
	}
	inf.Score = Computed(num / den)
	return inf
}

// Rules returns the evaluated rules in order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}
