package calibration

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"sedentarism/internal/errors"
)

// LabelMode says how ground-truth classes become the binary target.
type LabelMode int

const (
	// LabelBinary treats class 1 as positive.
	LabelBinary LabelMode = iota
	// LabelCluster treats the cluster with the highest mean score as positive.
	LabelCluster
)

func (m LabelMode) String() string {
	if m == LabelCluster {
		return "cluster"
	}
	return "binary"
}

// ParseLabelMode accepts "binary" and "cluster".
func ParseLabelMode(s string) (LabelMode, error) {
	switch s {
	case "", "binary":
		return LabelBinary, nil
	case "cluster":
		return LabelCluster, nil
	}
	return 0, errors.ConfigInvalidf("unknown label mode %q", s)
}

// ClassMapping maps ground-truth classes to the positive (high sedentarism)
// target. In cluster mode it is fitted on a fit partition only.
type ClassMapping struct {
	Mode         LabelMode       `yaml:"mode"`
	Positive     int             `yaml:"positive"`
	ClusterMeans map[int]float64 `yaml:"cluster_means,omitempty"`
}

// FitMapping derives the mapping. In cluster mode the cluster whose scores
// have the highest mean is positive; equal means resolve to the smaller
// cluster id. With no data nothing maps to positive.
func FitMapping(mode LabelMode, classes []int, scores []float64) ClassMapping {
	if mode != LabelCluster {
		return ClassMapping{Mode: LabelBinary, Positive: 1}
	}

	byCluster := make(map[int][]float64)
	for i, c := range classes {
		if i < len(scores) && !math.IsNaN(scores[i]) {
			byCluster[c] = append(byCluster[c], scores[i])
		}
	}
	ids := make([]int, 0, len(byCluster))
	for c := range byCluster {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	m := ClassMapping{Mode: LabelCluster, Positive: math.MinInt, ClusterMeans: make(map[int]float64, len(ids))}
	best := math.Inf(-1)
	for _, c := range ids {
		mean, err := stats.Mean(byCluster[c])
		if err != nil {
			continue
		}
		m.ClusterMeans[c] = mean
		if mean > best {
			best, m.Positive = mean, c
		}
	}
	return m
}

// IsPositive reports whether class maps to the positive target.
func (m ClassMapping) IsPositive(class int) bool {
	return class == m.Positive
}

// Apply maps every class.
func (m ClassMapping) Apply(classes []int) []bool {
	out := make([]bool, len(classes))
	for i, c := range classes {
		out[i] = m.IsPositive(c)
	}
	return out
}
