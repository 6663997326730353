// Package weekly holds the records exchanged with the aggregation and
// clustering feeds: one feature vector per (group, week) and its label.
package weekly

import (
	"fmt"
	"math"
	"time"

	"sedentarism/domain/core"
)

// FeatureID enumerates the four weekly summary features.
type FeatureID int

const (
	ActivityLevel FeatureID = iota
	CaloricSurplus
	HeartRateVariability
	CardiacDelta
)

// NumFeatures is the fixed width of a feature vector.
const NumFeatures = 4

// AllFeatures lists every feature in column order.
var AllFeatures = [NumFeatures]FeatureID{ActivityLevel, CaloricSurplus, HeartRateVariability, CardiacDelta}

var featureNames = [NumFeatures]string{
	"activity_level",
	"caloric_surplus",
	"heart_rate_variability",
	"cardiac_delta",
}

func (f FeatureID) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureNames[f]
}

// Valid reports whether f is one of the four known features.
func (f FeatureID) Valid() bool {
	return f >= 0 && int(f) < NumFeatures
}

// ParseFeatureID maps a canonical feature name to its id.
func ParseFeatureID(s string) (FeatureID, error) {
	for i, name := range featureNames {
		if name == s {
			return FeatureID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", s)
}

// Reading is one feature value with an explicit missing marker.
type Reading struct {
	Value float64
	Valid bool
}

// Present builds a valid reading. NaN and infinities are treated as missing.
func Present(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing()
	}
	return Reading{Value: v, Valid: true}
}

// Missing builds a missing reading.
func Missing() Reading {
	return Reading{Value: math.NaN()}
}

// Vector is a WeeklyFeatureVector: immutable input produced by the aggregation feed.
type Vector struct {
	Group     core.GroupID
	WeekStart time.Time
	Features  [NumFeatures]Reading
}

// Key identifies the vector for joins.
func (v Vector) Key() Key {
	return Key{Group: v.Group, WeekStart: NormalizeWeek(v.WeekStart)}
}

// Feature returns the reading for f.
func (v Vector) Feature(f FeatureID) Reading {
	return v.Features[f]
}

// Complete reports whether every feature is present.
func (v Vector) Complete() bool {
	for _, r := range v.Features {
		if !r.Valid {
			return false
		}
	}
	return true
}

// Key is the (group_id, week_start_date) join key.
type Key struct {
	Group     core.GroupID
	WeekStart time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.Group, k.WeekStart.Format("2006-01-02"))
}

// Label is a GroundTruthLabel from the clustering feed. Class holds the
// cluster id; in binary mode 1 is the positive (high sedentarism) class.
type Label struct {
	Group     core.GroupID
	WeekStart time.Time
	Class     int
}

// Key identifies the label for joins.
func (l Label) Key() Key {
	return Key{Group: l.Group, WeekStart: NormalizeWeek(l.WeekStart)}
}

// LabeledWeek is a feature vector joined with its ground-truth class.
type LabeledWeek struct {
	Vector
	Class int
}

// Vectors strips the labels.
func Vectors(weeks []LabeledWeek) []Vector {
	out := make([]Vector, len(weeks))
	for i, w := range weeks {
		out[i] = w.Vector
	}
	return out
}

// NormalizeWeek reduces a timestamp to the calendar day it names, in its own
// location, as a UTC midnight without a monotonic reading. Keys built from it
// compare with ==.
func NormalizeWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
