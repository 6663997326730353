// Package markov discretizes continuous scores into a traffic light and
// models week-to-week transitions between its three states.
package markov

import (
	"fmt"
	"math"

	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/internal/errors"
)

// State is an ordered traffic-light state.
type State int

const (
	Green State = iota
	Yellow
	Red
)

// NumStates is the fixed size of the state space.
const NumStates = 3

// AllStates lists the states in order.
var AllStates = [NumStates]State{Green, Yellow, Red}

var stateNames = [NumStates]string{"green", "yellow", "red"}

func (s State) String() string {
	if s < 0 || int(s) >= NumStates {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ThresholdMode selects how the cut points are obtained.
type ThresholdMode int

const (
	// ThresholdTerciles uses the global terciles of the score distribution.
	ThresholdTerciles ThresholdMode = iota
	// ThresholdFixed uses configured cut points.
	ThresholdFixed
)

func (m ThresholdMode) String() string {
	if m == ThresholdFixed {
		return "fixed"
	}
	return "terciles"
}

// ParseThresholdMode accepts "terciles" and "fixed".
func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch s {
	case "", "terciles", "global_terciles":
		return ThresholdTerciles, nil
	case "fixed":
		return ThresholdFixed, nil
	}
	return 0, errors.ConfigInvalidf("unknown threshold mode %q", s)
}

// Fallback cut points for degenerate tercile estimates.
const (
	FallbackGreenMax = 0.33
	FallbackRedMin   = 0.67
	minCutGap        = 1e-6
)

// CutPoints split the score range: score <= GreenMax is green, score >=
// RedMin is red, anything else (including a missing score) is yellow.
type CutPoints struct {
	Mode     ThresholdMode `yaml:"mode"`
	GreenMax float64       `yaml:"green_max"`
	RedMin   float64       `yaml:"red_min"`
}

// FixedCutPoints validates configured cut points.
func FixedCutPoints(greenMax, redMin float64) (CutPoints, error) {
	if !(0 <= greenMax && greenMax < redMin && redMin <= 1) {
		return CutPoints{}, errors.ConfigInvalidf("cut points must satisfy 0 <= green_max < red_min <= 1, got %v/%v", greenMax, redMin)
	}
	return CutPoints{Mode: ThresholdFixed, GreenMax: greenMax, RedMin: redMin}, nil
}

// TercileCutPoints estimates the q33.33 and q66.67 of the finite scores.
// When the sample is empty, the terciles coincide or are not finite the
// fallback 0.33/0.67 is used and flagged. RedMin is kept at least 1e-6
// above GreenMax.
func TercileCutPoints(scores []float64) (CutPoints, core.Flags) {
	var flags core.Flags
	q := stats.NewQuantiles(scores)
	lo, hi := q.Percentile(33.33), q.Percentile(66.67)
	if q.Len() == 0 || math.IsNaN(lo) || math.IsNaN(hi) || lo == hi {
		lo, hi = FallbackGreenMax, FallbackRedMin
		flags.Add(core.FlagTercileFallback)
	}
	green := math.Min(math.Max(lo, 0), 1)
	red := math.Min(math.Max(hi, green+minCutGap), 1)
	return CutPoints{Mode: ThresholdTerciles, GreenMax: green, RedMin: red}, flags
}

// Classify maps a score to its state.
func (c CutPoints) Classify(score float64) State {
	switch {
	case math.IsNaN(score):
		return Yellow
	case score <= c.GreenMax:
		return Green
	case score >= c.RedMin:
		return Red
	default:
		return Yellow
	}
}
