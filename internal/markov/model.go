package markov

import (
	"math"
	"sort"
	"time"

	"sedentarism/domain/core"
	"sedentarism/internal/errors"
)

// Config configures discretization, sequencing and forecasting.
type Config struct {
	Mode      ThresholdMode `yaml:"mode"`
	GreenMax  float64       `yaml:"green_max"`
	RedMin    float64       `yaml:"red_min"`
	GapPolicy GapPolicy     `yaml:"gap_policy"`
	Horizon   int           `yaml:"horizon"`
}

// DefaultConfig uses global terciles, ignores gaps and forecasts one week.
func DefaultConfig() Config {
	return Config{
		Mode:      ThresholdTerciles,
		GreenMax:  0.3333,
		RedMin:    0.6667,
		GapPolicy: GapIgnore,
		Horizon:   1,
	}
}

// Validate rejects invalid fixed cut points and horizons below one.
func (c Config) Validate() error {
	if c.Horizon < 1 {
		return errors.ConfigInvalidf("forecast horizon must be >= 1, got %d", c.Horizon)
	}
	if c.Mode == ThresholdFixed {
		if _, err := FixedCutPoints(c.GreenMax, c.RedMin); err != nil {
			return err
		}
	}
	return nil
}

// ScoredWeek is one week of the classifier's output stream.
type ScoredWeek struct {
	Group     core.GroupID
	WeekStart time.Time
	Score     float64
}

// Model is the fitted traffic light with its transition matrices.
type Model struct {
	Cuts      CutPoints
	GapPolicy GapPolicy
	Sequences []Sequence
	Global    TransitionMatrix
	PerGroup  map[core.GroupID]TransitionMatrix
	Flags     core.Flags
}

// Fit classifies every week, orders each group's weeks chronologically and
// estimates the global and per-group transition matrices.
func Fit(weeks []ScoredWeek, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model{GapPolicy: cfg.GapPolicy, PerGroup: make(map[core.GroupID]TransitionMatrix)}
	if cfg.Mode == ThresholdFixed {
		cuts, err := FixedCutPoints(cfg.GreenMax, cfg.RedMin)
		if err != nil {
			return nil, err
		}
		m.Cuts = cuts
	} else {
		scores := make([]float64, len(weeks))
		for i, w := range weeks {
			scores[i] = w.Score
		}
		cuts, flags := TercileCutPoints(scores)
		m.Cuts = cuts
		m.Flags.Merge(flags)
	}

	ordered := append([]ScoredWeek(nil), weeks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Group != ordered[j].Group {
			return ordered[i].Group < ordered[j].Group
		}
		return ordered[i].WeekStart.Before(ordered[j].WeekStart)
	})

	for i, w := range ordered {
		if i > 0 && ordered[i-1].Group == w.Group && ordered[i-1].WeekStart.Equal(w.WeekStart) {
			return nil, errors.InvalidInputf("duplicate scored week %s@%s", w.Group, w.WeekStart.Format("2006-01-02"))
		}
		if len(m.Sequences) == 0 || m.Sequences[len(m.Sequences)-1].Group != w.Group {
			m.Sequences = append(m.Sequences, Sequence{Group: w.Group})
		}
		seq := &m.Sequences[len(m.Sequences)-1]
		seq.Observations = append(seq.Observations, Observation{
			WeekStart: w.WeekStart,
			Score:     w.Score,
			State:     m.Cuts.Classify(w.Score),
		})
	}

	for _, s := range m.Sequences {
		m.PerGroup[s.Group] = Estimate(s, cfg.GapPolicy)
	}
	m.Global = EstimateGlobal(m.Sequences, cfg.GapPolicy)
	m.Flags.Merge(m.Global.Flags)
	return m, nil
}

// Groups lists the modelled groups in order.
func (m *Model) Groups() []core.GroupID {
	out := make([]core.GroupID, len(m.Sequences))
	for i, s := range m.Sequences {
		out[i] = s.Group
	}
	return out
}

// BacktestRecord is one in-sample one-step prediction.
type BacktestRecord struct {
	Group     core.GroupID `yaml:"group"`
	WeekStart time.Time    `yaml:"week_start"`
	From      State        `yaml:"from"`
	Actual    State        `yaml:"actual"`
	Predicted State        `yaml:"predicted"`
	Hit       bool         `yaml:"hit"`
}

// BacktestResult summarizes one-step predictions over every consecutive pair.
type BacktestResult struct {
	Records  []BacktestRecord `yaml:"records"`
	Pairs    int              `yaml:"pairs"`
	Hits     int              `yaml:"hits"`
	Accuracy float64          `yaml:"accuracy"`
	Flags    core.Flags       `yaml:"flags,omitempty"`
}

// Backtest predicts every next state as the argmax of the global row of the
// current state. Accuracy is NaN when no pair exists.
func (m *Model) Backtest() BacktestResult {
	r := BacktestResult{Accuracy: math.NaN()}
	for _, s := range m.Sequences {
		for _, p := range s.Pairs(m.GapPolicy) {
			pred := m.Global.Probs.ArgMax(p.From.State)
			rec := BacktestRecord{
				Group:     p.Group,
				WeekStart: p.From.WeekStart,
				From:      p.From.State,
				Actual:    p.To.State,
				Predicted: pred,
				Hit:       pred == p.To.State,
			}
			r.Records = append(r.Records, rec)
			r.Pairs++
			if rec.Hit {
				r.Hits++
			}
		}
	}
	if r.Pairs == 0 {
		r.Flags.Add(core.FlagNoTransitions)
		return r
	}
	r.Accuracy = float64(r.Hits) / float64(r.Pairs)
	return r
}

// Forecast is the h-step-ahead state distribution of one group.
type Forecast struct {
	Group         core.GroupID       `yaml:"group"`
	LastWeek      time.Time          `yaml:"last_week"`
	Current       State              `yaml:"current"`
	Horizon       int                `yaml:"horizon"`
	TargetWeek    time.Time          `yaml:"target_week"`
	Predicted     State              `yaml:"predicted"`
	Probabilities [NumStates]float64 `yaml:"probabilities"`
}

// Distribution returns the state distribution h weeks after state from.
func (m *Model) Distribution(from State, h int) ([NumStates]float64, error) {
	var out [NumStates]float64
	if h < 1 {
		return out, errors.ConfigInvalidf("forecast horizon must be >= 1, got %d", h)
	}
	ph, err := m.Global.Probs.Power(h)
	if err != nil {
		return out, err
	}
	return ph[from], nil
}

// Forecast applies the global matrix raised to horizon to every group's most
// recent state.
func (m *Model) Forecast(horizon int) ([]Forecast, error) {
	if horizon < 1 {
		return nil, errors.ConfigInvalidf("forecast horizon must be >= 1, got %d", horizon)
	}
	ph, err := m.Global.Probs.Power(horizon)
	if err != nil {
		return nil, err
	}

	out := make([]Forecast, 0, len(m.Sequences))
	for _, s := range m.Sequences {
		last, ok := s.Last()
		if !ok {
			continue
		}
		out = append(out, Forecast{
			Group:         s.Group,
			LastWeek:      last.WeekStart,
			Current:       last.State,
			Horizon:       horizon,
			TargetWeek:    last.WeekStart.AddDate(0, 0, 7*horizon),
			Predicted:     ph.ArgMax(last.State),
			Probabilities: ph[last.State],
		})
	}
	return out, nil
}
