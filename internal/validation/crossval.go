package validation

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"sedentarism/domain/core"
	"sedentarism/domain/stats"
	"sedentarism/domain/weekly"
	"sedentarism/internal"
	"sedentarism/internal/errors"
)

// Metric names used in summaries.
const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
	MetricMCC       = "mcc"
	MetricThreshold = "threshold"
)

// Report aggregates every fold of a cross-validation run.
type Report struct {
	Folds     []FoldResult          `yaml:"folds"`
	Summaries []stats.MetricSummary `yaml:"summaries"`
	// Pooled sums the held-out confusion tables of every fold.
	Pooled stats.Confusion `yaml:"pooled"`
	Flags  core.Flags      `yaml:"flags,omitempty"`
}

// Summary returns the summary of a named metric.
func (r *Report) Summary(name string) (stats.MetricSummary, bool) {
	for _, s := range r.Summaries {
		if s.Name == name {
			return s, true
		}
	}
	return stats.MetricSummary{}, false
}

// CrossValidator holds out each group once and refits on the rest.
type CrossValidator struct {
	cfg     FoldConfig
	workers int
	logger  *internal.Logger
}

// NewCrossValidator creates a validator running at most workers folds at a
// time; workers <= 0 uses GOMAXPROCS.
func NewCrossValidator(cfg FoldConfig, workers int, logger *internal.Logger) *CrossValidator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CrossValidator{cfg: cfg, workers: workers, logger: logger.With("cv")}
}

// Run evaluates every group. Folds are independent: each owns its slot in
// the result slice and reads only its own partitions. A degenerate fold is
// reported with NaN metrics; the run aborts only on configuration errors or
// cancellation.
func (cv *CrossValidator) Run(ctx context.Context, weeks []weekly.LabeledWeek) (*Report, error) {
	if err := cv.cfg.Validate(); err != nil {
		return nil, err
	}
	groups := weekly.Groups(weekly.Vectors(weeks))
	if len(groups) == 0 {
		return nil, errors.InvalidInput("cross-validation needs at least one group")
	}

	start := time.Now()
	folds := make([]FoldResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cv.workers)
	for i, group := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			train, heldOut := weekly.SplitByGroup(weeks, group)
			fold, err := FitAndEvaluate(train, heldOut, cv.cfg)
			if err != nil {
				return errors.Wrapf(err, "fold %s", group)
			}
			fold.Group = group
			folds[i] = fold
			cv.logger.Debug("fold %s: train=%d held_out=%d tau=%.2f f1=%.3f flags=%v",
				group, fold.TrainSize, fold.HeldOutSize, fold.Threshold, fold.Metrics.F1, fold.Flags.Strings())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := summarize(folds)
	cv.logger.Info("%d folds in %v, mean F1 %.3f", len(folds), time.Since(start).Round(time.Millisecond), f1Mean(report))
	return report, nil
}

func summarize(folds []FoldResult) *Report {
	r := &Report{Folds: folds}
	labels := make([]string, len(folds))
	series := map[string][]float64{}
	for i, f := range folds {
		labels[i] = f.Group.String()
		m := f.Metrics
		series[MetricAccuracy] = append(series[MetricAccuracy], m.Accuracy)
		series[MetricPrecision] = append(series[MetricPrecision], m.Precision)
		series[MetricRecall] = append(series[MetricRecall], m.Recall)
		series[MetricF1] = append(series[MetricF1], m.F1)
		series[MetricMCC] = append(series[MetricMCC], m.MCC)
		series[MetricThreshold] = append(series[MetricThreshold], f.Threshold)

		r.Pooled.TP += m.Confusion.TP
		r.Pooled.FP += m.Confusion.FP
		r.Pooled.TN += m.Confusion.TN
		r.Pooled.FN += m.Confusion.FN
		r.Flags.Merge(f.Flags)
	}
	for _, name := range []string{MetricAccuracy, MetricPrecision, MetricRecall, MetricF1, MetricMCC, MetricThreshold} {
		r.Summaries = append(r.Summaries, stats.Summarize(name, series[name], labels))
	}
	return r
}

func f1Mean(r *Report) float64 {
	s, _ := r.Summary(MetricF1)
	return s.Mean
}
