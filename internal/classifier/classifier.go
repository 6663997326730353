// Package classifier binds the fuzzy building blocks into one fitted model:
// scaling bounds and membership functions estimated from a training
// partition, evaluated by a shared rule base.
package classifier

import (
	"sedentarism/domain/core"
	"sedentarism/domain/fuzzy"
	"sedentarism/domain/weekly"
	"sedentarism/internal/errors"
)

// Config is the immutable classifier configuration shared by every fit.
type Config struct {
	plan        fuzzy.PercentilePlan
	rules       *fuzzy.RuleBase
	aggregation fuzzy.Aggregation
}

// NewConfig validates the plan and binds it to a rule base.
func NewConfig(plan fuzzy.PercentilePlan, rules *fuzzy.RuleBase, agg fuzzy.Aggregation) (Config, error) {
	if err := plan.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid percentile plan")
	}
	if rules == nil {
		return Config{}, errors.ConfigInvalid("classifier requires a rule base")
	}
	if agg != fuzzy.AggregateSum && agg != fuzzy.AggregateMax {
		return Config{}, errors.ConfigInvalidf("unknown aggregation %d", int(agg))
	}
	return Config{plan: plan, rules: rules, aggregation: agg}, nil
}

// DefaultConfig uses the default plan, the default rules and summation.
func DefaultConfig() Config {
	return Config{plan: fuzzy.DefaultPlan(), rules: fuzzy.DefaultRuleBase(), aggregation: fuzzy.AggregateSum}
}

func (c Config) Plan() fuzzy.PercentilePlan     { return c.plan }
func (c Config) Rules() *fuzzy.RuleBase         { return c.rules }
func (c Config) Aggregation() fuzzy.Aggregation { return c.aggregation }

// Fingerprint adds the configuration to a run fingerprint.
func (c Config) Fingerprint(fp *core.Fingerprinter) {
	fp.Add("plan.standard", c.plan.Standard)
	fp.Add("plan.load", c.plan.Load)
	fp.Add("plan.clip", []float64{c.plan.ClipLow, c.plan.ClipHigh})
	fp.Add("plan.shoulders", c.plan.Shoulders)
	fp.Add("plan.min_samples", c.plan.MinSamples)
	fp.Add("aggregation", c.aggregation.String())
	for _, r := range c.rules.Rules() {
		fp.Add("rule."+r.ID, r.String())
	}
}

// Model is a classifier fitted on one training partition.
type Model struct {
	fuzzifier *fuzzy.Fuzzifier
	engine    *fuzzy.Engine
	flags     core.Flags
}

// Fit estimates fresh scaling bounds and membership functions from training.
// Degenerate or sparse features are flagged, not rejected.
func Fit(training []weekly.Vector, cfg Config) (*Model, error) {
	if cfg.rules == nil {
		return nil, errors.ConfigInvalid("classifier config is not initialised")
	}
	plan := cfg.plan
	scaler := fuzzy.FitScaler(training, plan.ClipLow, plan.ClipHigh)
	sets, err := fuzzy.BuildMembershipSet(training, plan)
	if err != nil {
		return nil, err
	}

	m := &Model{
		fuzzifier: fuzzy.NewFuzzifier(scaler, sets),
		engine:    fuzzy.NewEngine(cfg.rules, cfg.aggregation),
	}
	m.flags.Merge(scaler.Flags())
	m.flags.Merge(sets.Flags())
	return m, nil
}

// WithMemberships returns a model sharing the bounds and rules of m but
// evaluating the given membership functions.
func (m *Model) WithMemberships(sets fuzzy.MembershipSet) *Model {
	scaler := m.Scaler()
	out := &Model{
		fuzzifier: fuzzy.NewFuzzifier(scaler, sets),
		engine:    m.engine,
	}
	out.flags.Merge(scaler.Flags())
	out.flags.Merge(sets.Flags())
	return out
}

func (m *Model) Scaler() fuzzy.Scaler            { return m.fuzzifier.Scaler() }
func (m *Model) Memberships() fuzzy.MembershipSet { return m.fuzzifier.Sets() }
func (m *Model) Rules() []fuzzy.Rule              { return m.engine.Rules() }

// Flags reports fit-level degradations.
func (m *Model) Flags() core.Flags { return m.flags }

// Scored is the per-week output of a model.
type Scored struct {
	Key    weekly.Key
	Score  fuzzy.ScoreResult
	Firing []float64
	Flags  core.Flags
}

// Score runs the full inference for one week.
func (m *Model) Score(v weekly.Vector) Scored {
	d, flags := m.fuzzifier.Fuzzify(v)
	inf := m.engine.Infer(d)
	flags.Merge(inf.Flags)
	return Scored{Key: v.Key(), Score: inf.Score, Firing: inf.Firing, Flags: flags}
}

// ScoreAll scores every vector, preserving order.
func (m *Model) ScoreAll(vectors []weekly.Vector) []Scored {
	out := make([]Scored, len(vectors))
	for i, v := range vectors {
		out[i] = m.Score(v)
	}
	return out
}

// Values extracts the numeric scores.
func Values(scored []Scored) []float64 {
	out := make([]float64, len(scored))
	for i, s := range scored {
		out[i] = s.Score.Value()
	}
	return out
}
