package stats

import (
	"math"
	"sort"
)

// Quantiles holds a sorted copy of a sample so that several percentiles can
// be read without re-sorting.
type Quantiles struct {
	sorted []float64
}

// NewQuantiles copies and sorts the finite values of data.
func NewQuantiles(data []float64) *Quantiles {
	sorted := make([]float64, 0, len(data))
	for _, x := range data {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			sorted = append(sorted, x)
		}
	}
	sort.Float64s(sorted)
	return &Quantiles{sorted: sorted}
}

// Len is the number of finite values in the sample.
func (q *Quantiles) Len() int {
	return len(q.sorted)
}

// Percentile returns the pct-th percentile (0..100), interpolating linearly
// between the closest ranks at position (n-1)*p. This is numpy's default
// estimator. An empty sample yields NaN; pct is clamped into [0, 100].
func (q *Quantiles) Percentile(pct float64) float64 {
	n := len(q.sorted)
	if n == 0 || math.IsNaN(pct) {
		return math.NaN()
	}
	p := math.Min(math.Max(pct/100, 0), 1)
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return q.sorted[n-1]
	}
	frac := h - float64(lo)
	return q.sorted[lo] + frac*(q.sorted[lo+1]-q.sorted[lo])
}

// Percentile is a one-shot convenience over NewQuantiles.
func Percentile(data []float64, pct float64) float64 {
	return NewQuantiles(data).Percentile(pct)
}
