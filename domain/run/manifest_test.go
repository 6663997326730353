package run

import (
	"testing"
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	fp1 := NewRunFingerprint(core.Hash("inputs"), core.Hash("config"), CodeVersion)
	fp2 := NewRunFingerprint(core.Hash("inputs"), core.Hash("config"), CodeVersion)

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.CodeVersion != CodeVersion {
		t.Errorf("CodeVersion mismatch: %s vs %s", fp1.CodeVersion, CodeVersion)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	base := NewRunFingerprint(core.Hash("inputs"), core.Hash("config"), "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different inputs", NewRunFingerprint(core.Hash("other"), core.Hash("config"), "1.0.0")},
		{"different config", NewRunFingerprint(core.Hash("inputs"), core.Hash("other"), "1.0.0")},
		{"different code version", NewRunFingerprint(core.Hash("inputs"), core.Hash("config"), "1.0.1")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should differ for %s", tc.name)
			}
		})
	}
}

func TestHashInputs_OrderIndependent(t *testing.T) {
	week := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := weekly.Vector{Group: "a", WeekStart: week}
	b := weekly.Vector{Group: "b", WeekStart: week}
	a.Features[0] = weekly.Present(1.5)
	b.Features[0] = weekly.Present(2.5)
	labels := []weekly.Label{{Group: "a", WeekStart: week, Class: 1}}

	h1 := HashInputs([]weekly.Vector{a, b}, labels)
	h2 := HashInputs([]weekly.Vector{b, a}, labels)
	if h1 != h2 {
		t.Errorf("hash depends on row order: %s vs %s", h1, h2)
	}

	b.Features[0] = weekly.Present(2.6)
	if HashInputs([]weekly.Vector{a, b}, labels) == h1 {
		t.Error("hash should change with feature values")
	}
}

func TestManifest_Validate(t *testing.T) {
	m := NewManifest(NewRunFingerprint("i", "c", CodeVersion), 10, 9, 9, 2)
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.RunID == "" {
		t.Error("expected a run id")
	}

	m.RunID = ""
	if err := m.Validate(); err == nil {
		t.Error("expected error for empty run id")
	}
}
