// Package report renders a human-readable run summary as Markdown and HTML.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"sedentarism/app"
	"sedentarism/domain/core"
	"sedentarism/internal/errors"
	"sedentarism/internal/markov"
	"sedentarism/internal/validation"
)

// File names written by Write.
const (
	MarkdownFile = "summary.md"
	HTMLFile     = "summary.html"
)

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}

func flagList(fs core.Flags) string {
	if len(fs) == 0 {
		return "none"
	}
	return "`" + strings.Join(fs.Sorted().Strings(), "`, `") + "`"
}

// Markdown renders the run summary.
func Markdown(r *app.RunReport) string {
	var b strings.Builder

	b.WriteString("# Sedentarism run summary\n\n")
	if m := r.Manifest; m != nil {
		b.WriteString(fmt.Sprintf("- Run: `%s`\n", m.RunID))
		b.WriteString(fmt.Sprintf("- Fingerprint: `%s`\n", m.Fingerprint.Fingerprint.Short()))
		b.WriteString(fmt.Sprintf("- Created: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	}
	j := r.Join
	b.WriteString(fmt.Sprintf("- Weeks: %d scored, %d labeled, %d without label (%.1f%%), %d labels unmatched\n",
		j.Features, j.Joined, j.DroppedFeatures, j.DropPercent, j.UnmatchedLabels))
	b.WriteString(fmt.Sprintf("- Flags: %s\n\n", flagList(r.Flags)))

	b.WriteString("## Agreement with ground truth\n\n")
	g := r.Global
	b.WriteString("| Threshold | Accuracy | Precision | Recall | F1 | MCC | Grade |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n\n",
		num(r.Threshold()), num(g.Accuracy), num(g.Precision), num(g.Recall), num(g.F1), num(g.MCC), r.Grade))
	c := g.Confusion
	b.WriteString(fmt.Sprintf("Confusion: TP=%d FP=%d TN=%d FN=%d. Positive class: %d.\n\n", c.TP, c.FP, c.TN, c.FN, r.Mapping.Positive))

	d := r.Distribution
	b.WriteString(fmt.Sprintf("Score distribution: n=%d, mean %s, std %s, range [%s, %s], terciles %s / %s.\n\n",
		d.N, num(d.Mean), num(d.Std), num(d.Min), num(d.Max), num(d.Q33), num(d.Q67)))

	writeCrossValidation(&b, r.CrossValidation)

	if sr := r.Sensitivity; sr != nil {
		b.WriteString("## Sensitivity\n\n")
		band := sr.Sweep.Band
		b.WriteString(fmt.Sprintf("- Stable threshold band: [%s, %s], width %s\n", num(band.Lo), num(band.Hi), num(band.Width)))
		for _, p := range sr.Shifts {
			b.WriteString(fmt.Sprintf("- Breakpoints %+.0f%%: F1 %s (change %s)\n", p.ShiftPct, num(p.Metrics.F1), num(p.DeltaF1)))
		}
		b.WriteString(fmt.Sprintf("- Verdict: **%s** (max |change| %s)\n\n", sr.Verdict, num(sr.MaxAbsDelta)))
	}

	if len(r.Discordances) > 0 {
		b.WriteString("## Largest discordances\n\n")
		b.WriteString("| Group | Week | Score | Margin | Ground truth |\n|---|---|---|---|---|\n")
		for _, dc := range r.Discordances {
			truth := "negative"
			if dc.Actual {
				truth = "positive"
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				dc.Group, dc.WeekStart.Format("2006-01-02"), num(dc.Score), num(dc.Margin), truth))
		}
		b.WriteString("\n")
	}

	writeMarkov(&b, r.Markov, r.Backtest, r.Forecasts)
	return b.String()
}

func writeCrossValidation(b *strings.Builder, cv *validation.Report) {
	if cv == nil {
		return
	}
	b.WriteString("## Leave-one-group-out validation\n\n")
	b.WriteString("| Metric | Mean | Std | Min | Max |\n|---|---|---|---|---|\n")
	for _, s := range cv.Summaries {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s (%s) | %s (%s) |\n",
			s.Name, num(s.Mean), num(s.Std), num(s.Min), s.MinLabel, num(s.Max), s.MaxLabel))
	}
	b.WriteString(fmt.Sprintf("\n%d folds, pooled F1 %s.\n\n", len(cv.Folds), num(cv.Pooled.Metrics().F1)))
}

func writeMarkov(b *strings.Builder, m *markov.Model, bt markov.BacktestResult, forecasts []markov.Forecast) {
	if m == nil {
		return
	}
	b.WriteString("## Traffic light\n\n")
	b.WriteString(fmt.Sprintf("Cut points (%s): green <= %.4f, red >= %.4f.\n\n", m.Cuts.Mode, m.Cuts.GreenMax, m.Cuts.RedMin))
	b.WriteString("| From | Green | Yellow | Red |\n|---|---|---|---|\n")
	for _, s := range markov.AllStates {
		row := m.Global.Probs[s]
		b.WriteString(fmt.Sprintf("| %s | %.3f | %.3f | %.3f |\n", s, row[markov.Green], row[markov.Yellow], row[markov.Red]))
	}
	b.WriteString(fmt.Sprintf("\nOne-step backtest: %d/%d correct (accuracy %s).\n\n", bt.Hits, bt.Pairs, num(bt.Accuracy)))

	if len(forecasts) == 0 {
		return
	}
	b.WriteString("| Group | Last week | Current | Target week | Predicted | P(green) | P(yellow) | P(red) |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, f := range forecasts {
		p := f.Probabilities
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %.3f | %.3f | %.3f |\n",
			f.Group, f.LastWeek.Format("2006-01-02"), f.Current, f.TargetWeek.Format("2006-01-02"), f.Predicted,
			p[markov.Green], p[markov.Yellow], p[markov.Red]))
	}
	b.WriteString("\n")
}

// HTML renders Markdown output as a standalone page.
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Sedentarism run summary",
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

// Write puts summary.md and summary.html into dir and returns their paths.
func Write(dir string, r *app.RunReport) ([]string, error) {
	md := Markdown(r)
	mdPath := filepath.Join(dir, MarkdownFile)
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return nil, errors.IOError("failed to write "+mdPath, err)
	}
	htmlPath := filepath.Join(dir, HTMLFile)
	if err := os.WriteFile(htmlPath, HTML(md), 0o644); err != nil {
		return []string{mdPath}, errors.IOError("failed to write "+htmlPath, err)
	}
	return []string{mdPath, htmlPath}, nil
}
