package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_PreservesCode(t *testing.T) {
	base := ConfigInvalid("rule R9 references cardiac_delta/low")
	wrapped := Wrap(base, "loading rule base")
	twice := Wrapf(wrapped, "fold %s", "u03")

	assert.Equal(t, CodeConfigInvalid, GetCode(twice))
	assert.True(t, IsConfigError(twice))
	assert.Contains(t, twice.Error(), "rule R9")
}

func TestWrap_ForeignErrorBecomesInternal(t *testing.T) {
	err := Wrap(fmt.Errorf("disk full"), "writing scores")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.False(t, IsConfigError(err))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestGetCode_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("cli: %w", InvalidInputf("duplicate week %s", "2024-01-01"))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}
