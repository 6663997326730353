package core

import (
	"strings"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestParseGroupID(t *testing.T) {
	tests := []struct {
		input    string
		expected GroupID
		hasError bool
	}{
		{"u01", GroupID("u01"), false},
		{"  u02 ", GroupID("u02"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, tt := range tests {
		got, err := ParseGroupID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ParseGroupID(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseGroupID(%q) unexpected error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("ParseGroupID(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	got, err := ParseRunID("  " + strings.ToUpper(id.String()) + " ")
	if err != nil {
		t.Fatalf("ParseRunID(%q) unexpected error: %v", id, err)
	}
	if got != id {
		t.Errorf("ParseRunID = %q, want %q", got, id)
	}

	for _, bad := range []string{"", "  ", "run-1", "1234"} {
		if _, err := ParseRunID(bad); err == nil {
			t.Errorf("ParseRunID(%q) expected error", bad)
		}
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	build := func() Hash {
		fp := NewFingerprinter()
		fp.Add("tau_grid", []float64{0.1, 0.2, 0.3})
		fp.Add("workers", 4)
		fp.Add("clip_low", 5.0)
		return fp.Sum()
	}

	if build() != build() {
		t.Error("identical components produced different fingerprints")
	}

	fp := NewFingerprinter()
	fp.Add("tau_grid", []float64{0.1, 0.2, 0.30000000000000004})
	fp.Add("workers", 4)
	fp.Add("clip_low", 5.0)
	if fp.Sum() == build() {
		t.Error("float bit differences must change the fingerprint")
	}
}

func TestFlags_AddIsIdempotent(t *testing.T) {
	var fs Flags
	fs.Add(FlagNoRuleFired)
	fs.Add(FlagMissingFeature)
	fs.Add(FlagNoRuleFired)

	if len(fs) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(fs))
	}
	if !fs.Has(FlagMissingFeature) {
		t.Error("missing_feature should be present")
	}
	sorted := fs.Sorted()
	if sorted[0] != FlagMissingFeature || sorted[1] != FlagNoRuleFired {
		t.Errorf("unexpected order: %v", sorted)
	}
}
