package ports

import (
	"context"

	"sedentarism/domain/core"
	"sedentarism/domain/run"
)

// RunArchive persists finished runs for later comparison
type RunArchive interface {
	SaveRun(ctx context.Context, record *run.Record) error
	GetRun(ctx context.Context, runID core.RunID) (*run.Record, error)
	ListRuns(ctx context.Context, limit int) ([]run.Manifest, error)
	// FindByFingerprint returns earlier runs over identical inputs and configuration.
	FindByFingerprint(ctx context.Context, fingerprint core.Hash) ([]run.Manifest, error)
}
