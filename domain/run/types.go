package run

import (
	"fmt"
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/stats"
)

// RunFingerprint ensures deterministic replay: identical inputs and
// configuration give the same fingerprint, while every run gets its own id.
type RunFingerprint struct {
	InputHash   core.Hash `json:"input_hash" yaml:"input_hash"`
	ConfigHash  core.Hash `json:"config_hash" yaml:"config_hash"`
	CodeVersion string    `json:"code_version" yaml:"code_version"`
	Fingerprint core.Hash `json:"fingerprint" yaml:"fingerprint"`
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(inputHash, configHash core.Hash, codeVersion string) RunFingerprint {
	data := fmt.Sprintf("inputs:%s|config:%s|code:%s", inputHash, configHash, codeVersion)
	return RunFingerprint{
		InputHash:   inputHash,
		ConfigHash:  configHash,
		CodeVersion: codeVersion,
		Fingerprint: core.NewHash([]byte(data)),
	}
}

// Record is the flattened form of a run kept by the archive.
type Record struct {
	Manifest         Manifest
	Threshold        float64
	Global           stats.BinaryMetrics
	Grade            string
	Verdict          string
	BacktestAccuracy float64
	Folds            []FoldRow
	Forecasts        []ForecastRow
	Flags            []string
}

// FoldRow is one cross-validation fold.
type FoldRow struct {
	Group       core.GroupID
	TrainSize   int
	HeldOutSize int
	Threshold   float64
	Metrics     stats.BinaryMetrics
	Flags       []string
}

// ForecastRow is one group's forecast.
type ForecastRow struct {
	Group      core.GroupID
	LastWeek   time.Time
	Current    string
	Horizon    int
	TargetWeek time.Time
	Predicted  string
	PGreen     float64
	PYellow    float64
	PRed       float64
}
