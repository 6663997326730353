package stats

import (
	"math"

	"github.com/montanaflynn/stats"
)

// MetricSummary aggregates one metric across folds: mean ± sample standard
// deviation over the defined (non-NaN) values, plus the extremes and the label
// of the fold that produced each.
type MetricSummary struct {
	Name     string  `json:"name"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	MinLabel string  `json:"min_label"`
	MaxLabel string  `json:"max_label"`
	Defined  int     `json:"defined"`
	Total    int     `json:"total"`
}

// Summarize builds a MetricSummary. labels[i] names values[i]; ties on the
// extremes keep the first occurrence.
func Summarize(name string, values []float64, labels []string) MetricSummary {
	nan := math.NaN()
	s := MetricSummary{Name: name, Mean: nan, Std: nan, Min: nan, Max: nan, Total: len(values)}

	defined := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		defined = append(defined, v)
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		if len(defined) == 1 || v < s.Min {
			s.Min, s.MinLabel = v, label
		}
		if len(defined) == 1 || v > s.Max {
			s.Max, s.MaxLabel = v, label
		}
	}
	s.Defined = len(defined)
	if s.Defined == 0 {
		return s
	}

	if mean, err := stats.Mean(defined); err == nil {
		s.Mean = mean
	}
	if s.Defined > 1 {
		if sd, err := stats.StandardDeviationSample(defined); err == nil {
			s.Std = sd
		}
	}
	return s
}

// Distribution describes a score sample: mean, population standard deviation,
// extremes and the global terciles.
type Distribution struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q33    float64 `json:"q33"`
	Q67    float64 `json:"q67"`
	Median float64 `json:"median"`
}

// Describe computes a Distribution; an empty sample yields NaN fields.
func Describe(data []float64) Distribution {
	nan := math.NaN()
	d := Distribution{Mean: nan, Std: nan, Min: nan, Max: nan, Q33: nan, Q67: nan, Median: nan}
	q := NewQuantiles(data)
	d.N = q.Len()
	if d.N == 0 {
		return d
	}
	values := q.sorted

	d.Mean, _ = stats.Mean(values)
	d.Std, _ = stats.StandardDeviationPopulation(values)
	d.Min, _ = stats.Min(values)
	d.Max, _ = stats.Max(values)
	d.Q33 = q.Percentile(33.33)
	d.Q67 = q.Percentile(66.67)
	d.Median = q.Percentile(50)
	return d
}
