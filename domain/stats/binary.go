package stats

import "math"

// Confusion holds the counts of a binary agreement table. Positive is the
// "high sedentarism" class on both sides.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Total is the number of evaluated pairs.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Count tallies actual against predicted labels. Extra elements in the longer
// slice are ignored.
func Count(actual, predicted []bool) Confusion {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	var c Confusion
	for i := 0; i < n; i++ {
		switch {
		case actual[i] && predicted[i]:
			c.TP++
		case !actual[i] && predicted[i]:
			c.FP++
		case !actual[i] && !predicted[i]:
			c.TN++
		default:
			c.FN++
		}
	}
	return c
}

// BinaryMetrics are the agreement metrics reported per fold and globally.
// Ratios with a zero denominator are 0, matching the usual zero_division=0
// convention; an empty table leaves every metric NaN and Defined false.
type BinaryMetrics struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	MCC       float64   `json:"mcc"`
	Confusion Confusion `json:"confusion"`
	Defined   bool      `json:"defined"`
}

// Metrics derives the agreement metrics from the counts.
func (c Confusion) Metrics() BinaryMetrics {
	m := BinaryMetrics{Confusion: c}
	n := c.Total()
	if n == 0 {
		nan := math.NaN()
		m.Accuracy, m.Precision, m.Recall, m.F1, m.MCC = nan, nan, nan, nan, nan
		return m
	}
	m.Defined = true

	tp, fp, tn, fn := float64(c.TP), float64(c.FP), float64(c.TN), float64(c.FN)
	m.Accuracy = (tp + tn) / float64(n)
	m.Precision = ratio(tp, tp+fp)
	m.Recall = ratio(tp, tp+fn)
	m.F1 = ratio(2*tp, 2*tp+fp+fn)

	denom := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	if denom > 0 {
		m.MCC = (tp*tn - fp*fn) / denom
	}
	return m
}

// SingleClass reports whether the ground truth of the table holds only one class.
func (c Confusion) SingleClass() bool {
	positives := c.TP + c.FN
	negatives := c.TN + c.FP
	return positives == 0 || negatives == 0
}

// Evaluate is Count followed by Metrics.
func Evaluate(actual, predicted []bool) BinaryMetrics {
	return Count(actual, predicted).Metrics()
}

// Binarize applies score >= tau.
func Binarize(scores []float64, tau float64) []bool {
	out := make([]bool, len(scores))
	for i, s := range scores {
		out[i] = s >= tau
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
