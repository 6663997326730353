package app

import (
	"context"
	"math"
	"sort"
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/run"
	"sedentarism/domain/stats"
	"sedentarism/domain/weekly"
	"sedentarism/internal"
	"sedentarism/internal/calibration"
	"sedentarism/internal/classifier"
	"sedentarism/internal/errors"
	"sedentarism/internal/markov"
	"sedentarism/internal/sensitivity"
	"sedentarism/internal/validation"
	"sedentarism/ports"
)

// DegenerateStd is the score standard deviation below which the
// distribution is flagged as degenerate.
const DegenerateStd = 0.05

// RunConfig groups the immutable settings of one pipeline run.
type RunConfig struct {
	Fold            validation.FoldConfig
	Workers         int
	Sensitivity     sensitivity.Config
	Markov          markov.Config
	DiscordanceTopN int
}

// Validate checks every stage configuration before any data is touched.
func (c RunConfig) Validate() error {
	if err := c.Fold.Validate(); err != nil {
		return err
	}
	if err := c.Sensitivity.Validate(); err != nil {
		return err
	}
	if err := c.Markov.Validate(); err != nil {
		return err
	}
	if c.DiscordanceTopN < 0 {
		return errors.ConfigInvalidf("discordance top-N must be >= 0, got %d", c.DiscordanceTopN)
	}
	return nil
}

// Fingerprint hashes everything that changes results. The worker count is
// left out: fold results do not depend on it.
func (c RunConfig) Fingerprint() core.Hash {
	fp := core.NewFingerprinter()
	c.Fold.Classifier.Fingerprint(fp)
	fp.Add("grid", []float64{c.Fold.Grid.Min, c.Fold.Grid.Max, c.Fold.Grid.Step})
	fp.Add("label_mode", c.Fold.LabelMode.String())
	s := c.Sensitivity
	fp.Add("sens.tau", []float64{s.TauSpan, s.TauStep, s.Tolerance})
	fp.Add("sens.shifts", s.Shifts)
	fp.Add("sens.verdict", []float64{s.RobustBelow, s.SensitiveAbove})
	m := c.Markov
	fp.Add("markov.mode", m.Mode.String())
	fp.Add("markov.cuts", []float64{m.GreenMax, m.RedMin})
	fp.Add("markov.gap", m.GapPolicy.String())
	fp.Add("markov.horizon", m.Horizon)
	fp.Add("discordance_top_n", c.DiscordanceTopN)
	return fp.Sum()
}

// RunService orchestrates join, global fit, calibration, evaluation,
// cross-validation, sensitivity analysis and the Markov forecast.
type RunService struct {
	cfg     RunConfig
	archive ports.RunArchive
	logger  *internal.Logger
}

// NewRunService validates cfg. archive may be nil.
func NewRunService(cfg RunConfig, archive ports.RunArchive, logger *internal.Logger) (*RunService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RunService{cfg: cfg, archive: archive, logger: logger.With("run")}, nil
}

// RunFromFeeds reads both feeds and executes the pipeline.
func (s *RunService) RunFromFeeds(ctx context.Context, feed ports.FeedReader) (*RunReport, error) {
	vectors, err := feed.ReadFeatures(ctx)
	if err != nil {
		return nil, err
	}
	labels, err := feed.ReadLabels(ctx)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, vectors, labels)
}

// Execute runs the full pipeline. The classifier is fitted on every feature
// vector; calibration, evaluation, cross-validation and sensitivity use the
// labeled weeks only. A run either completes or returns an error.
func (s *RunService) Execute(ctx context.Context, vectors []weekly.Vector, labels []weekly.Label) (*RunReport, error) {
	start := time.Now()
	if err := weekly.Validate(vectors); err != nil {
		return nil, err
	}
	joined, err := weekly.Join(vectors, labels)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		Join: JoinSummary{
			Features:        len(vectors),
			Labels:          len(labels),
			Joined:          len(joined.Records),
			DroppedFeatures: joined.DroppedFeatures,
			UnmatchedLabels: joined.UnmatchedLabels,
			DropPercent:     joined.DropPercent(),
		},
	}
	report.Flags.Merge(joined.Flags)
	if joined.DroppedFeatures > 0 {
		s.logger.Warn("%d of %d feature weeks have no label (%.1f%%)",
			joined.DroppedFeatures, len(vectors), joined.DropPercent())
	}

	ordered := weekly.SortChronological(vectors)
	model, err := classifier.Fit(ordered, s.cfg.Fold.Classifier)
	if err != nil {
		return nil, err
	}
	report.Bounds = model.Scaler()
	report.Memberships = model.Memberships()
	report.Rules = model.Rules()
	report.Flags.Merge(model.Flags())

	scored := model.ScoreAll(ordered)
	scores := classifier.Values(scored)
	report.Distribution = stats.Describe(scores)
	if report.Distribution.N > 0 && report.Distribution.Std < DegenerateStd {
		report.Flags.Add(core.FlagDegenerateScores)
		s.logger.Warn("score distribution is degenerate (std %.4f)", report.Distribution.Std)
	}

	if err := s.calibrate(report, joined.Records, model); err != nil {
		return nil, err
	}
	s.annotate(report, ordered, scored, joined.Records)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.crossValidate(ctx, report, joined.Records); err != nil {
		return nil, err
	}
	if err := s.analyze(report, joined.Records, model); err != nil {
		return nil, err
	}

	weeks := make([]markov.ScoredWeek, len(ordered))
	for i, v := range ordered {
		weeks[i] = markov.ScoredWeek{Group: v.Group, WeekStart: v.WeekStart, Score: scores[i]}
	}
	mr, err := s.forecast(weeks)
	if err != nil {
		return nil, err
	}
	report.Markov, report.Backtest, report.Forecasts = mr.Model, mr.Backtest, mr.Forecasts
	report.Flags.Merge(mr.Flags)
	for i := range report.Weeks {
		report.Weeks[i].State = mr.Model.Cuts.Classify(report.Weeks[i].Score)
	}

	inputHash := run.HashInputs(vectors, labels)
	fp := run.NewRunFingerprint(inputHash, s.cfg.Fingerprint(), run.CodeVersion)
	report.Manifest = run.NewManifest(fp, len(vectors), len(labels), len(joined.Records), len(weekly.Groups(vectors)))
	report.Duration = time.Since(start)

	s.logger.Info("run %s: tau=%.2f f1=%.3f grade=%s backtest=%.3f flags=%v",
		report.Manifest.RunID, report.Threshold(), report.Global.F1, report.Grade,
		report.Backtest.Accuracy, report.Flags.Sorted().Strings())

	if s.archive != nil {
		if err := s.archive.SaveRun(ctx, report.Record()); err != nil {
			return nil, errors.Wrap(err, "archive run")
		}
	}
	return report, nil
}

// calibrate fits the class mapping and τ on the labeled weeks and evaluates
// the global metrics at τ.
func (s *RunService) calibrate(report *RunReport, records []weekly.LabeledWeek, model *classifier.Model) error {
	labeled := classifier.Values(model.ScoreAll(weekly.Vectors(records)))
	classes := make([]int, len(records))
	for i, r := range records {
		classes[i] = r.Class
	}

	report.Mapping = calibration.FitMapping(s.cfg.Fold.LabelMode, classes, labeled)
	positives := report.Mapping.Apply(classes)
	res, err := calibration.Calibrate(labeled, positives, s.cfg.Fold.Grid)
	if err != nil {
		return err
	}
	report.Calibration = res
	report.Flags.Merge(res.Flags)

	if math.IsNaN(res.Threshold) {
		report.Global = stats.Confusion{}.Metrics()
	} else {
		report.Global = stats.Evaluate(positives, stats.Binarize(labeled, res.Threshold))
	}
	report.Grade = GradeF1(report.Global.F1)
	return nil
}

// annotate builds the per-week table, the per-group concordance and the
// top-N discordances.
func (s *RunService) annotate(report *RunReport, ordered []weekly.Vector, scored []classifier.Scored, records []weekly.LabeledWeek) {
	classOf := make(map[weekly.Key]int, len(records))
	for _, r := range records {
		classOf[r.Key()] = r.Class
	}
	tau := report.Threshold()

	report.Weeks = make([]WeekResult, len(ordered))
	concordance := map[core.GroupID]*GroupConcordance{}
	var discordances []Discordance
	for i, v := range ordered {
		sc := scored[i]
		w := WeekResult{
			Group:      v.Group,
			WeekStart:  v.WeekStart,
			Score:      sc.Score.Value(),
			Degenerate: sc.Score.IsDegenerate(),
			Firing:     sc.Firing,
			State:      markov.Yellow,
			Flags:      sc.Flags,
		}
		if class, ok := classOf[v.Key()]; ok {
			w.Labeled = true
			w.Class = class
			w.Actual = report.Mapping.IsPositive(class)
			w.Predicted = !math.IsNaN(tau) && w.Score >= tau
		}
		report.Weeks[i] = w
		if !w.Labeled || math.IsNaN(tau) {
			continue
		}

		gc, ok := concordance[v.Group]
		if !ok {
			gc = &GroupConcordance{Group: v.Group}
			concordance[v.Group] = gc
		}
		gc.Weeks++
		if w.Actual == w.Predicted {
			gc.Agree++
			continue
		}
		discordances = append(discordances, Discordance{
			Group:     w.Group,
			WeekStart: w.WeekStart,
			Score:     w.Score,
			Margin:    math.Abs(w.Score - tau),
			Actual:    w.Actual,
			Predicted: w.Predicted,
		})
	}

	for _, gc := range concordance {
		gc.Rate = float64(gc.Agree) / float64(gc.Weeks)
		report.Concordance = append(report.Concordance, *gc)
	}
	sort.Slice(report.Concordance, func(i, j int) bool {
		return report.Concordance[i].Group < report.Concordance[j].Group
	})

	sort.SliceStable(discordances, func(i, j int) bool {
		return discordances[i].Margin > discordances[j].Margin
	})
	if len(discordances) > s.cfg.DiscordanceTopN {
		discordances = discordances[:s.cfg.DiscordanceTopN]
	}
	report.Discordances = discordances
}

func (s *RunService) crossValidate(ctx context.Context, report *RunReport, records []weekly.LabeledWeek) error {
	if len(records) == 0 {
		s.logger.Warn("no labeled weeks, skipping cross-validation")
		report.Flags.Add(core.FlagUndefinedMetric)
		return nil
	}
	cv := validation.NewCrossValidator(s.cfg.Fold, s.cfg.Workers, s.logger)
	res, err := cv.Run(ctx, records)
	if err != nil {
		return err
	}
	report.CrossValidation = res
	report.Flags.Merge(res.Flags)
	return nil
}

func (s *RunService) analyze(report *RunReport, records []weekly.LabeledWeek, model *classifier.Model) error {
	analyzer, err := sensitivity.NewAnalyzer(s.cfg.Sensitivity, s.logger)
	if err != nil {
		return err
	}
	positives := make([]bool, len(records))
	for i, r := range records {
		positives[i] = report.Mapping.IsPositive(r.Class)
	}
	res, err := analyzer.Analyze(model, weekly.Vectors(records), positives, report.Threshold())
	if err != nil {
		return err
	}
	report.Sensitivity = res
	report.Flags.Merge(res.Flags)
	return nil
}

// MarkovReport is the output of the traffic-light stage alone.
type MarkovReport struct {
	Model     *markov.Model
	Backtest  markov.BacktestResult
	Forecasts []markov.Forecast
	Flags     core.Flags
}

// Forecast fits the traffic-light model on an existing score stream,
// backtests it and forecasts the configured horizon.
func (s *RunService) Forecast(weeks []markov.ScoredWeek) (*MarkovReport, error) {
	return s.forecast(weeks)
}

func (s *RunService) forecast(weeks []markov.ScoredWeek) (*MarkovReport, error) {
	model, err := markov.Fit(weeks, s.cfg.Markov)
	if err != nil {
		return nil, err
	}
	bt := model.Backtest()
	forecasts, err := model.Forecast(s.cfg.Markov.Horizon)
	if err != nil {
		return nil, err
	}

	r := &MarkovReport{Model: model, Backtest: bt, Forecasts: forecasts}
	r.Flags.Merge(model.Flags)
	r.Flags.Merge(bt.Flags)
	s.logger.Info("markov: cuts %.4f/%.4f (%s), %d groups, backtest %d/%d",
		model.Cuts.GreenMax, model.Cuts.RedMin, model.Cuts.Mode, len(model.Sequences), bt.Hits, bt.Pairs)
	return r, nil
}
