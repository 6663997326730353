// Package validation runs leave-one-group-out cross-validation of the full
// fit, calibrate and evaluate cycle.
package validation

import (
	"math"

	"sedentarism/domain/core"
	"sedentarism/domain/fuzzy"
	"sedentarism/domain/stats"
	"sedentarism/domain/weekly"
	"sedentarism/internal/calibration"
	"sedentarism/internal/classifier"
	"sedentarism/internal/errors"
)

// FoldConfig is everything a fold needs to refit the pipeline.
type FoldConfig struct {
	Classifier classifier.Config
	Grid       calibration.Grid
	LabelMode  calibration.LabelMode
}

// Validate checks the parts that would otherwise fail inside every fold.
func (c FoldConfig) Validate() error {
	if c.Classifier.Rules() == nil {
		return errors.ConfigInvalid("fold config without classifier")
	}
	return c.Grid.Validate()
}

// FoldResult is the outcome of one held-out group. Bounds, Memberships,
// Mapping and Threshold are fitted on the training partition only.
type FoldResult struct {
	Group       core.GroupID             `yaml:"group"`
	TrainSize   int                      `yaml:"train_size"`
	HeldOutSize int                      `yaml:"held_out_size"`
	Threshold   float64                  `yaml:"threshold"`
	TrainF1     float64                  `yaml:"train_f1"`
	Metrics     stats.BinaryMetrics      `yaml:"metrics"`
	Mapping     calibration.ClassMapping `yaml:"mapping"`
	Bounds      fuzzy.Scaler             `yaml:"-"`
	Memberships fuzzy.MembershipSet      `yaml:"-"`
	Flags       core.Flags               `yaml:"flags,omitempty"`
}

// FitAndEvaluate refits scaling bounds, membership functions, class mapping
// and threshold on train, then evaluates held-out weeks. It never reads
// anything outside its arguments. Degenerate partitions produce NaN metrics
// and flags; only configuration errors are returned.
func FitAndEvaluate(train, heldOut []weekly.LabeledWeek, cfg FoldConfig) (FoldResult, error) {
	res := FoldResult{TrainSize: len(train), HeldOutSize: len(heldOut)}
	if len(heldOut) > 0 {
		res.Group = heldOut[0].Group
	}

	model, err := classifier.Fit(weekly.Vectors(train), cfg.Classifier)
	if err != nil {
		return FoldResult{}, err
	}
	res.Bounds = model.Scaler()
	res.Memberships = model.Memberships()
	res.Flags.Merge(model.Flags())

	trainScores := classifier.Values(model.ScoreAll(weekly.Vectors(train)))
	res.Mapping = calibration.FitMapping(cfg.LabelMode, classes(train), trainScores)

	cal, err := calibration.Calibrate(trainScores, res.Mapping.Apply(classes(train)), cfg.Grid)
	if err != nil {
		return FoldResult{}, err
	}
	res.Threshold = cal.Threshold
	res.TrainF1 = cal.Best.F1
	res.Flags.Merge(cal.Flags)

	if math.IsNaN(res.Threshold) {
		res.Metrics = stats.Confusion{}.Metrics()
		res.Flags.Add(core.FlagUndefinedMetric)
		return res, nil
	}

	scored := model.ScoreAll(weekly.Vectors(heldOut))
	for _, s := range scored {
		res.Flags.Merge(s.Flags)
	}
	predicted := stats.Binarize(classifier.Values(scored), res.Threshold)
	res.Metrics = stats.Evaluate(res.Mapping.Apply(classes(heldOut)), predicted)
	if !res.Metrics.Defined {
		res.Flags.Add(core.FlagUndefinedMetric)
	} else if res.Metrics.Confusion.SingleClass() {
		res.Flags.Add(core.FlagSingleClass)
	}
	return res, nil
}

func classes(weeks []weekly.LabeledWeek) []int {
	out := make([]int, len(weeks))
	for i, w := range weeks {
		out[i] = w.Class
	}
	return out
}
