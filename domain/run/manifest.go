package run

import (
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
	"sedentarism/internal/errors"
)

// CodeVersion is stamped into every manifest.
const CodeVersion = "1.0.0"

// Manifest identifies one pipeline execution and the inputs it consumed.
type Manifest struct {
	RunID       core.RunID     `json:"run_id" yaml:"run_id"`
	Fingerprint RunFingerprint `json:"fingerprint" yaml:"fingerprint"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	Features    int            `json:"features" yaml:"features"`
	Labels      int            `json:"labels" yaml:"labels"`
	Joined      int            `json:"joined" yaml:"joined"`
	Groups      int            `json:"groups" yaml:"groups"`
}

// NewManifest creates a manifest with a fresh run id.
func NewManifest(fp RunFingerprint, features, labels, joined, groups int) *Manifest {
	return &Manifest{
		RunID:       core.NewRunID(),
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
		Features:    features,
		Labels:      labels,
		Joined:      joined,
		Groups:      groups,
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return errors.InvalidInput("run manifest: run_id cannot be empty")
	}
	if m.Fingerprint.Fingerprint.IsEmpty() {
		return errors.InvalidInput("run manifest: fingerprint cannot be empty")
	}
	if m.Fingerprint.CodeVersion == "" {
		return errors.InvalidInput("run manifest: code_version cannot be empty")
	}
	return nil
}

// HashInputs fingerprints both feeds in canonical (group, week) order, so
// the same data delivered in another row order hashes identically.
func HashInputs(vectors []weekly.Vector, labels []weekly.Label) core.Hash {
	fp := core.NewFingerprinter()
	for _, v := range weekly.SortChronological(vectors) {
		values := make([]float64, 0, weekly.NumFeatures)
		for _, r := range v.Features {
			values = append(values, r.Value)
		}
		fp.Add("f:"+v.Key().String(), values)
	}
	for _, l := range labels {
		fp.Add("l:"+l.Key().String(), l.Class)
	}
	return fp.Sum()
}
