package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sedentarism/domain/core"
	"sedentarism/domain/run"
	"sedentarism/domain/stats"
	"sedentarism/internal/errors"
	"sedentarism/internal/migration"
	"sedentarism/ports"
)

// metricColumns mirrors stats.BinaryMetrics.
type metricColumns struct {
	Accuracy  float64 `db:"accuracy"`
	Precision float64 `db:"precision_score"`
	Recall    float64 `db:"recall"`
	F1        float64 `db:"f1"`
	MCC       float64 `db:"mcc"`
	TP        int     `db:"tp"`
	FP        int     `db:"fp"`
	TN        int     `db:"tn"`
	FN        int     `db:"fn"`
	Defined   bool    `db:"metrics_defined"`
}

func toMetricColumns(m stats.BinaryMetrics) metricColumns {
	c := m.Confusion
	return metricColumns{
		Accuracy: m.Accuracy, Precision: m.Precision, Recall: m.Recall, F1: m.F1, MCC: m.MCC,
		TP: c.TP, FP: c.FP, TN: c.TN, FN: c.FN, Defined: m.Defined,
	}
}

func (m metricColumns) metrics() stats.BinaryMetrics {
	return stats.BinaryMetrics{
		Accuracy: m.Accuracy, Precision: m.Precision, Recall: m.Recall, F1: m.F1, MCC: m.MCC,
		Confusion: stats.Confusion{TP: m.TP, FP: m.FP, TN: m.TN, FN: m.FN},
		Defined:   m.Defined,
	}
}

type runRow struct {
	RunID       string    `db:"run_id"`
	Fingerprint string    `db:"fingerprint"`
	InputHash   string    `db:"input_hash"`
	ConfigHash  string    `db:"config_hash"`
	CodeVersion string    `db:"code_version"`
	CreatedAt   time.Time `db:"created_at"`
	Features    int       `db:"features"`
	Labels      int       `db:"labels"`
	Joined      int       `db:"joined"`
	Groups      int       `db:"group_count"`
	Threshold   float64   `db:"threshold"`
	metricColumns
	Grade            string         `db:"grade"`
	Verdict          string         `db:"verdict"`
	BacktestAccuracy float64        `db:"backtest_accuracy"`
	Flags            pq.StringArray `db:"flags"`
}

type foldRow struct {
	RunID       string  `db:"run_id"`
	Group       string  `db:"group_id"`
	TrainSize   int     `db:"train_size"`
	HeldOutSize int     `db:"held_out_size"`
	Threshold   float64 `db:"threshold"`
	metricColumns
	Flags pq.StringArray `db:"flags"`
}

type forecastRow struct {
	RunID      string    `db:"run_id"`
	Group      string    `db:"group_id"`
	LastWeek   time.Time `db:"last_week"`
	Current    string    `db:"current_state"`
	Horizon    int       `db:"horizon"`
	TargetWeek time.Time `db:"target_week"`
	Predicted  string    `db:"predicted_state"`
	PGreen     float64   `db:"p_green"`
	PYellow    float64   `db:"p_yellow"`
	PRed       float64   `db:"p_red"`
}

func stringArray(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

func toRunRow(rec *run.Record) runRow {
	m := rec.Manifest
	return runRow{
		RunID:            m.RunID.String(),
		Fingerprint:      m.Fingerprint.Fingerprint.String(),
		InputHash:        m.Fingerprint.InputHash.String(),
		ConfigHash:       m.Fingerprint.ConfigHash.String(),
		CodeVersion:      m.Fingerprint.CodeVersion,
		CreatedAt:        m.CreatedAt,
		Features:         m.Features,
		Labels:           m.Labels,
		Joined:           m.Joined,
		Groups:           m.Groups,
		Threshold:        rec.Threshold,
		metricColumns:    toMetricColumns(rec.Global),
		Grade:            rec.Grade,
		Verdict:          rec.Verdict,
		BacktestAccuracy: rec.BacktestAccuracy,
		Flags:            stringArray(rec.Flags),
	}
}

func (r runRow) manifest() run.Manifest {
	return run.Manifest{
		RunID: core.RunID(r.RunID),
		Fingerprint: run.RunFingerprint{
			InputHash:   core.Hash(r.InputHash),
			ConfigHash:  core.Hash(r.ConfigHash),
			CodeVersion: r.CodeVersion,
			Fingerprint: core.Hash(r.Fingerprint),
		},
		CreatedAt: r.CreatedAt.UTC(),
		Features:  r.Features,
		Labels:    r.Labels,
		Joined:    r.Joined,
		Groups:    r.Groups,
	}
}

func (r runRow) record() *run.Record {
	return &run.Record{
		Manifest:         r.manifest(),
		Threshold:        r.Threshold,
		Global:           r.metrics(),
		Grade:            r.Grade,
		Verdict:          r.Verdict,
		BacktestAccuracy: r.BacktestAccuracy,
		Flags:            []string(r.Flags),
	}
}

// runArchive implements ports.RunArchive on PostgreSQL.
type runArchive struct {
	db *sqlx.DB
}

// NewRunArchive creates a run archive over an open connection.
func NewRunArchive(db *sqlx.DB) ports.RunArchive {
	return &runArchive{db: db}
}

// Open connects, pings and migrates the schema.
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required for the run archive")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const insertRun = `INSERT INTO sedentarism_runs (
	run_id, fingerprint, input_hash, config_hash, code_version, created_at,
	features, labels, joined, group_count, threshold,
	accuracy, precision_score, recall, f1, mcc, tp, fp, tn, fn, metrics_defined,
	grade, verdict, backtest_accuracy, flags
) VALUES (
	:run_id, :fingerprint, :input_hash, :config_hash, :code_version, :created_at,
	:features, :labels, :joined, :group_count, :threshold,
	:accuracy, :precision_score, :recall, :f1, :mcc, :tp, :fp, :tn, :fn, :metrics_defined,
	:grade, :verdict, :backtest_accuracy, :flags
)`

const insertFold = `INSERT INTO sedentarism_folds (
	run_id, group_id, train_size, held_out_size, threshold,
	accuracy, precision_score, recall, f1, mcc, tp, fp, tn, fn, metrics_defined, flags
) VALUES (
	:run_id, :group_id, :train_size, :held_out_size, :threshold,
	:accuracy, :precision_score, :recall, :f1, :mcc, :tp, :fp, :tn, :fn, :metrics_defined, :flags
)`

const insertForecast = `INSERT INTO sedentarism_forecasts (
	run_id, group_id, last_week, current_state, horizon, target_week, predicted_state, p_green, p_yellow, p_red
) VALUES (
	:run_id, :group_id, :last_week, :current_state, :horizon, :target_week, :predicted_state, :p_green, :p_yellow, :p_red
)`

const selectRun = `SELECT
	run_id, fingerprint, input_hash, config_hash, code_version, created_at,
	features, labels, joined, group_count, threshold,
	accuracy, precision_score, recall, f1, mcc, tp, fp, tn, fn, metrics_defined,
	grade, verdict, backtest_accuracy, flags
FROM sedentarism_runs`

// SaveRun stores the run with its folds and forecasts in one transaction.
func (a *runArchive) SaveRun(ctx context.Context, rec *run.Record) error {
	if err := rec.Manifest.Validate(); err != nil {
		return err
	}
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	row := toRunRow(rec)
	if _, err := tx.NamedExecContext(ctx, insertRun, row); err != nil {
		return errors.DatabaseError("failed to insert run "+row.RunID, err)
	}
	for _, f := range rec.Folds {
		fr := foldRow{
			RunID:         row.RunID,
			Group:         f.Group.String(),
			TrainSize:     f.TrainSize,
			HeldOutSize:   f.HeldOutSize,
			Threshold:     f.Threshold,
			metricColumns: toMetricColumns(f.Metrics),
			Flags:         stringArray(f.Flags),
		}
		if _, err := tx.NamedExecContext(ctx, insertFold, fr); err != nil {
			return errors.DatabaseError("failed to insert fold "+fr.Group, err)
		}
	}
	for _, f := range rec.Forecasts {
		fr := forecastRow{
			RunID:      row.RunID,
			Group:      f.Group.String(),
			LastWeek:   f.LastWeek,
			Current:    f.Current,
			Horizon:    f.Horizon,
			TargetWeek: f.TargetWeek,
			Predicted:  f.Predicted,
			PGreen:     f.PGreen,
			PYellow:    f.PYellow,
			PRed:       f.PRed,
		}
		if _, err := tx.NamedExecContext(ctx, insertForecast, fr); err != nil {
			return errors.DatabaseError("failed to insert forecast "+fr.Group, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run "+row.RunID, err)
	}
	return nil
}

// GetRun loads a run with its folds and forecasts.
func (a *runArchive) GetRun(ctx context.Context, runID core.RunID) (*run.Record, error) {
	var row runRow
	if err := a.db.GetContext(ctx, &row, selectRun+` WHERE run_id = $1`, runID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.InvalidInputf("run not found: %s", runID)
		}
		return nil, errors.DatabaseError("failed to get run", err)
	}
	rec := row.record()

	var folds []foldRow
	err := a.db.SelectContext(ctx, &folds, `SELECT
		run_id, group_id, train_size, held_out_size, threshold,
		accuracy, precision_score, recall, f1, mcc, tp, fp, tn, fn, metrics_defined, flags
	FROM sedentarism_folds WHERE run_id = $1 ORDER BY group_id`, runID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to get folds", err)
	}
	for _, f := range folds {
		rec.Folds = append(rec.Folds, run.FoldRow{
			Group:       core.GroupID(f.Group),
			TrainSize:   f.TrainSize,
			HeldOutSize: f.HeldOutSize,
			Threshold:   f.Threshold,
			Metrics:     f.metrics(),
			Flags:       []string(f.Flags),
		})
	}

	var forecasts []forecastRow
	err = a.db.SelectContext(ctx, &forecasts, `SELECT
		run_id, group_id, last_week, current_state, horizon, target_week, predicted_state, p_green, p_yellow, p_red
	FROM sedentarism_forecasts WHERE run_id = $1 ORDER BY group_id`, runID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to get forecasts", err)
	}
	for _, f := range forecasts {
		rec.Forecasts = append(rec.Forecasts, run.ForecastRow{
			Group:      core.GroupID(f.Group),
			LastWeek:   f.LastWeek.UTC(),
			Current:    f.Current,
			Horizon:    f.Horizon,
			TargetWeek: f.TargetWeek.UTC(),
			Predicted:  f.Predicted,
			PGreen:     f.PGreen,
			PYellow:    f.PYellow,
			PRed:       f.PRed,
		})
	}
	return rec, nil
}

func (a *runArchive) manifests(ctx context.Context, query string, args ...interface{}) ([]run.Manifest, error) {
	var rows []runRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	out := make([]run.Manifest, len(rows))
	for i, r := range rows {
		out[i] = r.manifest()
	}
	return out, nil
}

// ListRuns returns the most recent runs first.
func (a *runArchive) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	if limit <= 0 {
		limit = 50
	}
	return a.manifests(ctx, selectRun+` ORDER BY created_at DESC LIMIT $1`, limit)
}

// FindByFingerprint returns earlier runs over the same inputs and configuration.
func (a *runArchive) FindByFingerprint(ctx context.Context, fingerprint core.Hash) ([]run.Manifest, error) {
	return a.manifests(ctx, selectRun+` WHERE fingerprint = $1 ORDER BY created_at DESC`, fingerprint.String())
}
