package fuzzy

import "math"

// Shape selects how a fuzzy set behaves outside its peak.
type Shape int

const (
	// Triangle is zero at and beyond both feet.
	Triangle Shape = iota
	// LeftShoulder saturates at 1 for every x <= B.
	LeftShoulder
	// RightShoulder saturates at 1 for every x >= B.
	RightShoulder
)

func (s Shape) String() string {
	switch s {
	case LeftShoulder:
		return "left_shoulder"
	case RightShoulder:
		return "right_shoulder"
	default:
		return "triangle"
	}
}

// Triple is a breakpoint triple (a <= b <= c) of one fuzzy set.
type Triple struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
	C float64 `json:"c" yaml:"c"`
}

// Valid reports whether the triple is finite and ordered.
func (t Triple) Valid() bool {
	if math.IsNaN(t.A) || math.IsNaN(t.B) || math.IsNaN(t.C) {
		return false
	}
	return t.A <= t.B && t.B <= t.C
}

// Repair deduplicates breakpoints in order: a later breakpoint that falls
// below an earlier one is raised to it, leaving a zero-width segment.
func (t Triple) Repair() Triple {
	if t.B < t.A {
		t.B = t.A
	}
	if t.C < t.B {
		t.C = t.B
	}
	return t
}

// Scale multiplies every breakpoint by factor.
func (t Triple) Scale(factor float64) Triple {
	return Triple{A: t.A * factor, B: t.B * factor, C: t.C * factor}
}

// Degree evaluates the membership of x. The function is total: NaN inputs
// or breakpoints yield 0 and it never divides by a zero-width segment.
//
// Boundary convention: x == b is checked first and yields 1, so a
// zero-width rising (a == b) or falling (b == c) segment acts as a step.
// Otherwise x <= a or x >= c yields 0, a < x < b rises as (x-a)/(b-a), and
// b < x < c falls as (c-x)/(c-b).
func Degree(x float64, t Triple, shape Shape) float64 {
	if math.IsNaN(x) || !t.Valid() {
		return 0
	}
	switch shape {
	case LeftShoulder:
		if x <= t.B {
			return 1
		}
	case RightShoulder:
		if x >= t.B {
			return 1
		}
	}
	if x == t.B {
		return 1
	}
	if x <= t.A || x >= t.C {
		return 0
	}
	if x < t.B {
		return (x - t.A) / (t.B - t.A)
	}
	return (t.C - x) / (t.C - t.B)
}
