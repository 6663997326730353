package tabular

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
	"sedentarism/internal"
	"sedentarism/internal/errors"
	"sedentarism/internal/markov"
)

// Column aliases, canonical name first. Matching ignores case.
var (
	groupColumn = []string{"group_id", "usuario_id", "user_id"}
	weekColumn  = []string{"week_start", "semana_inicio", "week_start_date"}
	classColumn = []string{"class", "cluster", "label"}
	scoreColumn = []string{"continuous_score", "Sedentarismo_score", "score"}

	featureColumns = [weekly.NumFeatures][]string{
		weekly.ActivityLevel:        {"activity_level", "Actividad_relativa_p50"},
		weekly.CaloricSurplus:       {"caloric_surplus", "Superavit_calorico_basal_p50"},
		weekly.HeartRateVariability: {"heart_rate_variability", "HRV_SDNN_p50"},
		weekly.CardiacDelta:         {"cardiac_delta", "Delta_cardiaco_p50"},
	}
)

var missingMarkers = map[string]bool{"": true, "na": true, "nan": true, "null": true, "none": true}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// resolve returns the header matching one of the aliases.
func (t *Table) resolve(aliases []string) (string, bool) {
	for _, alias := range aliases {
		for _, h := range t.Headers {
			if strings.EqualFold(h, alias) {
				return h, true
			}
		}
	}
	return "", false
}

func (t *Table) require(aliases []string) (string, error) {
	h, ok := t.resolve(aliases)
	if !ok {
		return "", errors.InvalidInputf("missing required column %s (accepted: %s)", aliases[0], strings.Join(aliases, ", "))
	}
	return h, nil
}

// ParseDate accepts ISO dates and RFC 3339 timestamps and truncates to the day.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return weekly.NormalizeWeek(t), nil
		}
	}
	return time.Time{}, errors.InvalidInputf("unparseable date %q", s)
}

// ParseReading maps the missing markers (empty, NA, NaN, null) to a missing
// reading.
func ParseReading(s string) (weekly.Reading, error) {
	if missingMarkers[strings.ToLower(s)] {
		return weekly.Missing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return weekly.Reading{}, errors.InvalidInputf("unparseable number %q", s)
	}
	return weekly.Present(v), nil
}

func parseClass(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, errors.InvalidInputf("class %q is not an integer", s)
	}
	return int(f), nil
}

func (t *Table) keyColumns() (group, week string, err error) {
	if group, err = t.require(groupColumn); err != nil {
		return "", "", err
	}
	if week, err = t.require(weekColumn); err != nil {
		return "", "", err
	}
	return group, week, nil
}

func parseKey(row Row, groupCol, weekCol string, line int) (core.GroupID, time.Time, error) {
	g, err := core.ParseGroupID(row[groupCol])
	if err != nil {
		return "", time.Time{}, errors.InvalidInputf("row %d: %v", line, err)
	}
	week, err := ParseDate(row[weekCol])
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "row %d", line)
	}
	return g, week, nil
}

// ParseVectors reads the weekly feed. A feature column that is absent
// altogether makes every reading of it missing.
func ParseVectors(t *Table) ([]weekly.Vector, error) {
	groupCol, weekCol, err := t.keyColumns()
	if err != nil {
		return nil, err
	}
	var cols [weekly.NumFeatures]string
	present := 0
	for _, f := range weekly.AllFeatures {
		if h, ok := t.resolve(featureColumns[f]); ok {
			cols[f] = h
			present++
		}
	}
	if present == 0 {
		return nil, errors.InvalidInput("weekly feed has none of the feature columns")
	}

	out := make([]weekly.Vector, 0, len(t.Rows))
	for i, row := range t.Rows {
		line := i + 2
		g, week, err := parseKey(row, groupCol, weekCol, line)
		if err != nil {
			return nil, err
		}
		v := weekly.Vector{Group: g, WeekStart: week}
		for _, f := range weekly.AllFeatures {
			if cols[f] == "" {
				v.Features[f] = weekly.Missing()
				continue
			}
			r, err := ParseReading(row[cols[f]])
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, column %s", line, cols[f])
			}
			v.Features[f] = r
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseLabels reads the ground-truth feed. Rows without a class are skipped.
func ParseLabels(t *Table) ([]weekly.Label, error) {
	groupCol, weekCol, err := t.keyColumns()
	if err != nil {
		return nil, err
	}
	classCol, err := t.require(classColumn)
	if err != nil {
		return nil, err
	}

	out := make([]weekly.Label, 0, len(t.Rows))
	for i, row := range t.Rows {
		line := i + 2
		if missingMarkers[strings.ToLower(row[classCol])] {
			continue
		}
		g, week, err := parseKey(row, groupCol, weekCol, line)
		if err != nil {
			return nil, err
		}
		class, err := parseClass(row[classCol])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", line)
		}
		out = append(out, weekly.Label{Group: g, WeekStart: week, Class: class})
	}
	return out, nil
}

// ParseScores reads a score stream for the traffic-light model. Missing
// scores stay NaN and classify as yellow.
func ParseScores(t *Table) ([]markov.ScoredWeek, error) {
	groupCol, weekCol, err := t.keyColumns()
	if err != nil {
		return nil, err
	}
	scoreCol, err := t.require(scoreColumn)
	if err != nil {
		return nil, err
	}

	out := make([]markov.ScoredWeek, 0, len(t.Rows))
	for i, row := range t.Rows {
		line := i + 2
		g, week, err := parseKey(row, groupCol, weekCol, line)
		if err != nil {
			return nil, err
		}
		r, err := ParseReading(row[scoreCol])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", line)
		}
		out = append(out, markov.ScoredWeek{Group: g, WeekStart: week, Score: r.Value})
	}
	return out, nil
}

// FileFeed reads both feeds from files.
type FileFeed struct {
	featuresPath string
	labelsPath   string
	logger       *internal.Logger
}

// NewFileFeed creates a feed over two CSV or XLSX files. labelsPath may be
// empty, in which case no labels are read.
func NewFileFeed(featuresPath, labelsPath string, logger *internal.Logger) *FileFeed {
	return &FileFeed{featuresPath: featuresPath, labelsPath: labelsPath, logger: logger}
}

func (f *FileFeed) ReadFeatures(ctx context.Context) ([]weekly.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.featuresPath == "" {
		return nil, errors.ConfigInvalid("features file is not set")
	}
	t, err := NewReader(f.featuresPath, f.logger).ReadTable()
	if err != nil {
		return nil, err
	}
	vectors, err := ParseVectors(t)
	if err != nil {
		return nil, errors.Wrapf(err, "weekly feed %s", f.featuresPath)
	}
	f.logger.Info("read %d weekly vectors from %s", len(vectors), f.featuresPath)
	return vectors, nil
}

func (f *FileFeed) ReadLabels(ctx context.Context) ([]weekly.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.labelsPath == "" {
		f.logger.Warn("no labels file, evaluation stages will be undefined")
		return nil, nil
	}
	t, err := NewReader(f.labelsPath, f.logger).ReadTable()
	if err != nil {
		return nil, err
	}
	labels, err := ParseLabels(t)
	if err != nil {
		return nil, errors.Wrapf(err, "label feed %s", f.labelsPath)
	}
	f.logger.Info("read %d labels from %s", len(labels), f.labelsPath)
	return labels, nil
}

// ReadScores reads a score stream file.
func ReadScores(path string, logger *internal.Logger) ([]markov.ScoredWeek, error) {
	t, err := NewReader(path, logger).ReadTable()
	if err != nil {
		return nil, err
	}
	weeks, err := ParseScores(t)
	if err != nil {
		return nil, errors.Wrapf(err, "score stream %s", path)
	}
	return weeks, nil
}
