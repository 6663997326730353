package weekly

import (
	"sort"

	"sedentarism/domain/core"
	"sedentarism/internal/errors"
)

// JoinResult is the inner join of the weekly feed with the ground-truth feed.
type JoinResult struct {
	Records []LabeledWeek
	// DroppedFeatures counts feature vectors without a matching label.
	DroppedFeatures int
	// UnmatchedLabels counts labels without a matching feature vector.
	UnmatchedLabels int
	TotalFeatures   int
	Flags           core.Flags
}

// DropPercent is the share of feature vectors lost in the join, in percent.
func (r JoinResult) DropPercent() float64 {
	if r.TotalFeatures == 0 {
		return 0
	}
	return 100 * float64(r.DroppedFeatures) / float64(r.TotalFeatures)
}

// Validate checks the feed invariant that (group, week) keys are unique.
func Validate(vectors []Vector) error {
	seen := make(map[Key]struct{}, len(vectors))
	for _, v := range vectors {
		if v.Group == "" {
			return errors.InvalidInput("feature vector without group id")
		}
		if v.WeekStart.IsZero() {
			return errors.InvalidInputf("feature vector for group %s without week start", v.Group)
		}
		k := v.Key()
		if _, dup := seen[k]; dup {
			return errors.InvalidInputf("duplicate weekly feature vector %s", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Join performs the inner join on (group_id, week_start_date). Output order
// follows the feature feed sorted by group then week, so repeated runs see the
// records in the same order.
func Join(vectors []Vector, labels []Label) (JoinResult, error) {
	index := make(map[Key]int, len(labels))
	for _, l := range labels {
		k := l.Key()
		if _, dup := index[k]; dup {
			return JoinResult{}, errors.InvalidInputf("duplicate ground-truth label %s", k)
		}
		index[k] = l.Class
	}

	result := JoinResult{TotalFeatures: len(vectors)}
	matched := make(map[Key]struct{}, len(labels))
	for _, v := range SortChronological(vectors) {
		class, ok := index[v.Key()]
		if !ok {
			result.DroppedFeatures++
			continue
		}
		matched[v.Key()] = struct{}{}
		result.Records = append(result.Records, LabeledWeek{Vector: v, Class: class})
	}
	result.UnmatchedLabels = len(labels) - len(matched)
	if result.DroppedFeatures > 0 {
		result.Flags.Add(core.FlagJoinLoss)
	}
	return result, nil
}

// SortChronological returns a copy ordered by group id, then week start.
func SortChronological(vectors []Vector) []Vector {
	out := append([]Vector(nil), vectors...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].WeekStart.Before(out[j].WeekStart)
	})
	return out
}

// Groups returns the distinct group ids in sorted order.
func Groups(vectors []Vector) []core.GroupID {
	seen := make(map[core.GroupID]struct{})
	var groups []core.GroupID
	for _, v := range vectors {
		if _, ok := seen[v.Group]; ok {
			continue
		}
		seen[v.Group] = struct{}{}
		groups = append(groups, v.Group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	return groups
}

// SplitByGroup partitions labeled weeks into those outside g (training) and
// those belonging to g (held out).
func SplitByGroup(weeks []LabeledWeek, g core.GroupID) (train, heldOut []LabeledWeek) {
	for _, w := range weeks {
		if w.Group == g {
			heldOut = append(heldOut, w)
		} else {
			train = append(train, w)
		}
	}
	return train, heldOut
}

// Column extracts the valid readings of one feature.
func Column(vectors []Vector, f FeatureID) []float64 {
	out := make([]float64, 0, len(vectors))
	for _, v := range vectors {
		if r := v.Features[f]; r.Valid {
			out = append(out, r.Value)
		}
	}
	return out
}
