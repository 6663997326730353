package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough to tell runs apart in logs.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Fingerprinter accumulates the determinism-relevant parts of a run
// (configuration and inputs) into a single content hash.
type Fingerprinter struct {
	parts map[string]string
}

// NewFingerprinter creates an empty fingerprinter
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{parts: make(map[string]string)}
}

// Add records a named component. Values are rendered with %v, floats with
// their exact bit pattern so that 0.1+0.2 and 0.3 do not collide.
func (f *Fingerprinter) Add(key string, value interface{}) {
	switch v := value.(type) {
	case float64:
		f.parts[key] = fmt.Sprintf("%016x", math.Float64bits(v))
	case []float64:
		var b strings.Builder
		for _, x := range v {
			fmt.Fprintf(&b, "%016x;", math.Float64bits(x))
		}
		f.parts[key] = b.String()
	default:
		f.parts[key] = fmt.Sprintf("%v", v)
	}
}

// Sum returns the hash of all recorded components in key order.
func (f *Fingerprinter) Sum() Hash {
	keys := make([]string, 0, len(f.parts))
	for k := range f.parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteByte('=')
		data.WriteString(f.parts[key])
		data.WriteByte('\n')
	}
	return NewHash([]byte(data.String()))
}
