package markov

import (
	"time"

	"sedentarism/domain/core"
	"sedentarism/internal/errors"
)

// GapPolicy decides whether calendar gaps interrupt a sequence.
type GapPolicy int

const (
	// GapIgnore treats consecutive observed weeks as adjacent.
	GapIgnore GapPolicy = iota
	// GapReset counts no transition across a gap longer than one week.
	GapReset
)

func (p GapPolicy) String() string {
	if p == GapReset {
		return "reset"
	}
	return "ignore"
}

// ParseGapPolicy accepts "ignore" and "reset".
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch s {
	case "", "ignore":
		return GapIgnore, nil
	case "reset":
		return GapReset, nil
	}
	return 0, errors.ConfigInvalidf("unknown gap policy %q", s)
}

const week = 7 * 24 * time.Hour

// Observation is one classified week of a group.
type Observation struct {
	WeekStart time.Time
	Score     float64
	State     State
}

// Sequence is the chronologically ordered history of one group.
type Sequence struct {
	Group        core.GroupID
	Observations []Observation
}

// Pair is an observed (state_t -> state_t+1) transition.
type Pair struct {
	Group core.GroupID
	From  Observation
	To    Observation
}

// Pairs enumerates consecutive transitions of s under the gap policy.
func (s Sequence) Pairs(policy GapPolicy) []Pair {
	var out []Pair
	for i := 0; i+1 < len(s.Observations); i++ {
		from, to := s.Observations[i], s.Observations[i+1]
		if policy == GapReset && to.WeekStart.Sub(from.WeekStart) > week {
			continue
		}
		out = append(out, Pair{Group: s.Group, From: from, To: to})
	}
	return out
}

// Last returns the most recent observation.
func (s Sequence) Last() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// Counts is a 3x3 transition count table.
type Counts [NumStates][NumStates]int

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	for i := range c {
		for j := range c[i] {
			c[i][j] += other[i][j]
		}
	}
}

// Total is the number of transitions counted.
func (c Counts) Total() int {
	n := 0
	for i := range c {
		for j := range c[i] {
			n += c[i][j]
		}
	}
	return n
}

// TransitionMatrix is a row-stochastic transition matrix with its raw counts.
// A row without observed transitions is the identity row for its state and
// is marked in IdentityRows.
type TransitionMatrix struct {
	Counts       Counts          `yaml:"counts"`
	Probs        Matrix3         `yaml:"probs"`
	IdentityRows [NumStates]bool `yaml:"identity_rows"`
	Flags        core.Flags      `yaml:"flags,omitempty"`
}

// FromCounts normalizes every row of counts.
func FromCounts(counts Counts) TransitionMatrix {
	tm := TransitionMatrix{Counts: counts}
	for i := range counts {
		total := 0
		for _, n := range counts[i] {
			total += n
		}
		if total == 0 {
			tm.Probs[i][i] = 1
			tm.IdentityRows[i] = true
			tm.Flags.Add(core.FlagIdentityRow)
			continue
		}
		for j, n := range counts[i] {
			tm.Probs[i][j] = float64(n) / float64(total)
		}
	}
	return tm
}

// CountPairs tallies transitions.
func CountPairs(pairs []Pair) Counts {
	var c Counts
	for _, p := range pairs {
		c[p.From.State][p.To.State]++
	}
	return c
}

// Estimate builds the matrix of one sequence.
func Estimate(s Sequence, policy GapPolicy) TransitionMatrix {
	return FromCounts(CountPairs(s.Pairs(policy)))
}

// EstimateGlobal sums the per-sequence counts before normalizing, so groups
// with more observed transitions weigh more.
func EstimateGlobal(seqs []Sequence, policy GapPolicy) TransitionMatrix {
	var total Counts
	for _, s := range seqs {
		total.Add(CountPairs(s.Pairs(policy)))
	}
	return FromCounts(total)
}
