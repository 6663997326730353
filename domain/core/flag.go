package core

import "sort"

// Flag is a machine-readable marker for a degraded but recovered condition.
// Flags travel with the record they describe; they are never only logged.
type Flag string

const (
	// FlagRangeDegenerate marks a feature whose p5 equals its p95 in the fit partition.
	FlagRangeDegenerate Flag = "range_degenerate"
	// FlagSparseTraining marks a feature with too few training values for a stable percentile.
	FlagSparseTraining Flag = "sparse_training"
	// FlagEmptyTraining marks a feature with no training values at all.
	FlagEmptyTraining Flag = "empty_training"
	// FlagMissingFeature marks a week with at least one missing feature reading.
	FlagMissingFeature Flag = "missing_feature"
	// FlagNoRuleFired marks a week whose score is the neutral fallback.
	FlagNoRuleFired Flag = "no_rule_fired"
	// FlagJoinLoss marks a run where feature weeks had no ground-truth label.
	FlagJoinLoss Flag = "join_loss"
	// FlagUndefinedMetric marks a fold or evaluation whose metrics could not be computed.
	FlagUndefinedMetric Flag = "undefined_metric"
	// FlagSingleClass marks an evaluation set where only one class is present.
	FlagSingleClass Flag = "single_class"
	// FlagDegenerateScores marks a score distribution with standard deviation below 0.05.
	FlagDegenerateScores Flag = "degenerate_scores"
	// FlagTercileFallback marks traffic-light cut points replaced by the 0.33/0.67 defaults.
	FlagTercileFallback Flag = "tercile_fallback"
	// FlagIdentityRow marks a transition matrix with a row defaulted to self-persistence.
	FlagIdentityRow Flag = "identity_row"
	// FlagNoTransitions marks a Markov backtest without any consecutive pair.
	FlagNoTransitions Flag = "no_transitions"
)

// Flags is a set of flags kept in insertion order.
type Flags []Flag

// Add appends f unless it is already present.
func (fs *Flags) Add(f Flag) {
	if fs.Has(f) {
		return
	}
	*fs = append(*fs, f)
}

// Merge adds every flag of other.
func (fs *Flags) Merge(other Flags) {
	for _, f := range other {
		fs.Add(f)
	}
}

// Has reports whether f is present.
func (fs Flags) Has(f Flag) bool {
	for _, existing := range fs {
		if existing == f {
			return true
		}
	}
	return false
}

// Sorted returns a copy in lexical order, for stable output.
func (fs Flags) Sorted() Flags {
	out := append(Flags(nil), fs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings renders the flags for tabular export.
func (fs Flags) Strings() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
