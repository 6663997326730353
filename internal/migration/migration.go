package migration

import (
	"context"

	"sedentarism/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the run archive schema
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every statement
// is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create sedentarism_runs table", err)
	}

	if err := r.createFoldsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create sedentarism_folds table", err)
	}

	if err := r.createForecastsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create sedentarism_forecasts table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

const runsTable = `
	CREATE TABLE IF NOT EXISTS sedentarism_runs (
		run_id UUID PRIMARY KEY,
		fingerprint VARCHAR(64) NOT NULL,
		input_hash VARCHAR(64) NOT NULL,
		config_hash VARCHAR(64) NOT NULL,
		code_version VARCHAR(32) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		features INTEGER NOT NULL,
		labels INTEGER NOT NULL,
		joined INTEGER NOT NULL,
		group_count INTEGER NOT NULL,
		threshold DOUBLE PRECISION,
		accuracy DOUBLE PRECISION,
		precision_score DOUBLE PRECISION,
		recall DOUBLE PRECISION,
		f1 DOUBLE PRECISION,
		mcc DOUBLE PRECISION,
		tp INTEGER NOT NULL DEFAULT 0,
		fp INTEGER NOT NULL DEFAULT 0,
		tn INTEGER NOT NULL DEFAULT 0,
		fn INTEGER NOT NULL DEFAULT 0,
		metrics_defined BOOLEAN NOT NULL DEFAULT false,
		grade VARCHAR(16) NOT NULL,
		verdict VARCHAR(16) NOT NULL,
		backtest_accuracy DOUBLE PRECISION,
		flags TEXT[] NOT NULL DEFAULT '{}'
	)
`

const foldsTable = `
	CREATE TABLE IF NOT EXISTS sedentarism_folds (
		run_id UUID NOT NULL REFERENCES sedentarism_runs(run_id) ON DELETE CASCADE,
		group_id VARCHAR(255) NOT NULL,
		train_size INTEGER NOT NULL,
		held_out_size INTEGER NOT NULL,
		threshold DOUBLE PRECISION,
		accuracy DOUBLE PRECISION,
		precision_score DOUBLE PRECISION,
		recall DOUBLE PRECISION,
		f1 DOUBLE PRECISION,
		mcc DOUBLE PRECISION,
		tp INTEGER NOT NULL DEFAULT 0,
		fp INTEGER NOT NULL DEFAULT 0,
		tn INTEGER NOT NULL DEFAULT 0,
		fn INTEGER NOT NULL DEFAULT 0,
		metrics_defined BOOLEAN NOT NULL DEFAULT false,
		flags TEXT[] NOT NULL DEFAULT '{}',
		PRIMARY KEY (run_id, group_id)
	)
`

const forecastsTable = `
	CREATE TABLE IF NOT EXISTS sedentarism_forecasts (
		run_id UUID NOT NULL REFERENCES sedentarism_runs(run_id) ON DELETE CASCADE,
		group_id VARCHAR(255) NOT NULL,
		last_week DATE NOT NULL,
		current_state VARCHAR(16) NOT NULL,
		horizon INTEGER NOT NULL,
		target_week DATE NOT NULL,
		predicted_state VARCHAR(16) NOT NULL,
		p_green DOUBLE PRECISION NOT NULL,
		p_yellow DOUBLE PRECISION NOT NULL,
		p_red DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, group_id)
	)
`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON sedentarism_runs(fingerprint)",
	"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON sedentarism_runs(created_at DESC)",
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, runsTable)
	return err
}

func (r *MigrationRunner) createFoldsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, foldsTable)
	return err
}

func (r *MigrationRunner) createForecastsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, forecastsTable)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
