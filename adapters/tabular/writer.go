package tabular

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"sedentarism/app"
	"sedentarism/domain/fuzzy"
	"sedentarism/internal"
	"sedentarism/internal/errors"
)

// Output file names.
const (
	WorkbookFile    = "results.xlsx"
	SummaryFile     = "run_summary.yaml"
	MembershipsFile = "membership_functions.yaml"
	MarkovWorkbook  = "markov.xlsx"
)

// Writer puts outputs into one directory.
type Writer struct {
	dir    string
	logger *internal.Logger
}

// NewWriter creates dir if needed.
func NewWriter(dir string, logger *internal.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError("failed to create output directory "+dir, err)
	}
	return &Writer{dir: dir, logger: logger.With("writer")}, nil
}

// Dir is the output directory.
func (w *Writer) Dir() string { return w.dir }

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return ""
	}
}

// workbookCell keeps numbers numeric; NaN and infinities cannot be stored
// as numbers and become text.
func workbookCell(v interface{}) interface{} {
	if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
		return formatCell(x)
	}
	return v
}

// WriteCSV writes one sheet to <name>.csv.
func (w *Writer) WriteCSV(s Sheet) (string, error) {
	path := filepath.Join(w.dir, s.Name+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", errors.IOError("failed to create "+path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(s.Header); err != nil {
		return "", errors.IOError("failed to write "+path, err)
	}
	record := make([]string, 0, len(s.Header))
	for _, row := range s.Rows {
		record = record[:0]
		for _, cell := range row {
			record = append(record, formatCell(cell))
		}
		if err := cw.Write(record); err != nil {
			return "", errors.IOError("failed to write "+path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", errors.IOError("failed to flush "+path, err)
	}
	return path, nil
}

// WriteWorkbook writes every sheet into one XLSX file.
func (w *Writer) WriteWorkbook(name string, sheets []Sheet) (string, error) {
	path := filepath.Join(w.dir, name)
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		var err error
		if i == 0 {
			err = f.SetSheetName("Sheet1", s.Name)
		} else {
			_, err = f.NewSheet(s.Name)
		}
		if err != nil {
			return "", errors.IOError("failed to add sheet "+s.Name, err)
		}

		header := make([]interface{}, len(s.Header))
		for j, h := range s.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return "", errors.IOError("failed to write sheet "+s.Name, err)
		}
		for r, row := range s.Rows {
			cells := make([]interface{}, len(row))
			for j, c := range row {
				cells[j] = workbookCell(c)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return "", errors.IOError("failed to address sheet "+s.Name, err)
			}
			if err := f.SetSheetRow(s.Name, cell, &cells); err != nil {
				return "", errors.IOError("failed to write sheet "+s.Name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", errors.IOError("failed to save "+path, err)
	}
	return path, nil
}

// WriteYAML marshals v into name.
func (w *Writer) WriteYAML(name string, v interface{}) (string, error) {
	path := filepath.Join(w.dir, name)
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "marshal %s", name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.IOError("failed to write "+path, err)
	}
	return path, nil
}

// SetDoc is one fuzzy set in the membership audit file.
type SetDoc struct {
	Label       string       `yaml:"label"`
	Shape       string       `yaml:"shape"`
	Breakpoints fuzzy.Triple `yaml:"breakpoints"`
	Percentiles [3]float64   `yaml:"percentiles"`
}

// FeatureDoc is one feature in the membership audit file.
type FeatureDoc struct {
	Feature   string   `yaml:"feature"`
	Direction string   `yaml:"direction"`
	Min       float64  `yaml:"min"`
	Max       float64  `yaml:"max"`
	Samples   int      `yaml:"samples"`
	Sets      []SetDoc `yaml:"sets"`
	Flags     []string `yaml:"flags,omitempty"`
}

// MembershipDocument renders the fitted sets and bounds for audit.
func MembershipDocument(sets fuzzy.MembershipSet, bounds fuzzy.Scaler) []FeatureDoc {
	out := make([]FeatureDoc, 0, len(sets.Features))
	for i, fs := range sets.Features {
		b := bounds.Bounds[i]
		doc := FeatureDoc{
			Feature:   fs.Feature.String(),
			Direction: fs.Direction.String(),
			Min:       b.Min,
			Max:       b.Max,
			Samples:   fs.Samples,
			Flags:     fs.Flags.Sorted().Strings(),
		}
		for slot, label := range fs.Labels {
			doc.Sets = append(doc.Sets, SetDoc{
				Label:       label.String(),
				Shape:       fs.Shapes[slot].String(),
				Breakpoints: fs.Triples[slot],
				Percentiles: fs.Percentiles[slot],
			})
		}
		out = append(out, doc)
	}
	return out
}

type summaryDoc struct {
	app.RunReport   `yaml:",inline"`
	Threshold       float64     `yaml:"threshold"`
	CrossValidation interface{} `yaml:"cross_validation,omitempty"`
	Sensitivity     interface{} `yaml:"sensitivity,omitempty"`
	Markov          interface{} `yaml:"markov,omitempty"`
}

type cvDoc struct {
	Summaries interface{} `yaml:"summaries"`
	PooledF1  float64     `yaml:"pooled_f1"`
	Flags     []string    `yaml:"flags,omitempty"`
}

type markovDoc struct {
	Mode     string   `yaml:"threshold_mode"`
	GreenMax float64  `yaml:"green_max"`
	RedMin   float64  `yaml:"red_min"`
	Gap      string   `yaml:"gap_policy"`
	Pairs    int      `yaml:"pairs"`
	Hits     int      `yaml:"hits"`
	Accuracy float64  `yaml:"accuracy"`
	Flags    []string `yaml:"flags,omitempty"`
}

// WriteRunReport writes every table as CSV, the combined workbook, the run
// summary and the membership audit file. It returns the written paths.
func (w *Writer) WriteRunReport(r *app.RunReport) ([]string, error) {
	sheets := RunSheets(r)
	var paths []string
	for _, s := range sheets {
		p, err := w.WriteCSV(s)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	p, err := w.WriteWorkbook(WorkbookFile, sheets)
	if err != nil {
		return paths, err
	}
	paths = append(paths, p)

	doc := summaryDoc{RunReport: *r, Threshold: r.Threshold()}
	if cv := r.CrossValidation; cv != nil {
		doc.CrossValidation = cvDoc{Summaries: cv.Summaries, PooledF1: cv.Pooled.Metrics().F1, Flags: cv.Flags.Sorted().Strings()}
	}
	if r.Sensitivity != nil {
		doc.Sensitivity = r.Sensitivity
	}
	if m := r.Markov; m != nil {
		doc.Markov = markovDoc{
			Mode:     m.Cuts.Mode.String(),
			GreenMax: m.Cuts.GreenMax,
			RedMin:   m.Cuts.RedMin,
			Gap:      m.GapPolicy.String(),
			Pairs:    r.Backtest.Pairs,
			Hits:     r.Backtest.Hits,
			Accuracy: r.Backtest.Accuracy,
			Flags:    m.Flags.Sorted().Strings(),
		}
	}
	if p, err = w.WriteYAML(SummaryFile, doc); err != nil {
		return paths, err
	}
	paths = append(paths, p)

	if p, err = w.WriteYAML(MembershipsFile, MembershipDocument(r.Memberships, r.Bounds)); err != nil {
		return paths, err
	}
	paths = append(paths, p)

	w.logger.Info("wrote %d files to %s", len(paths), w.dir)
	return paths, nil
}

// WriteMarkovReport writes the traffic-light tables of a score-stream run.
func (w *Writer) WriteMarkovReport(r *app.MarkovReport) ([]string, error) {
	sheets := MarkovSheets(r.Model, r.Backtest, r.Forecasts)
	var paths []string
	for _, s := range sheets {
		p, err := w.WriteCSV(s)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	p, err := w.WriteWorkbook(MarkovWorkbook, sheets)
	if err != nil {
		return paths, err
	}
	paths = append(paths, p)
	w.logger.Info("wrote %d files to %s", len(paths), w.dir)
	return paths, nil
}
