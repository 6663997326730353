package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/weekly"
)

func TestCohortGenerator_Deterministic(t *testing.T) {
	a := NewCohortGenerator(DefaultCohortConfig()).Generate()
	b := NewCohortGenerator(DefaultCohortConfig()).Generate()
	require.Equal(t, len(a.Vectors), len(b.Vectors))
	assert.Equal(t, a.Levels, b.Levels)
	for i := range a.Vectors {
		assert.Equal(t, a.Vectors[i].Key(), b.Vectors[i].Key())
	}
}

func TestCohortGenerator_FeedContract(t *testing.T) {
	cfg := DefaultCohortConfig()
	cfg.GapRate = 0.2
	cfg.MissingRate = 0.05
	c := NewCohortGenerator(cfg).Generate()

	assert.Len(t, c.Vectors, cfg.Groups*cfg.WeeksPerGroup)
	assert.Len(t, c.Labels, len(c.Vectors))
	require.NoError(t, weekly.Validate(c.Vectors))

	joined, err := weekly.Join(c.Vectors, c.Labels)
	require.NoError(t, err)
	assert.Len(t, joined.Records, len(c.Vectors))
	assert.Len(t, weekly.Groups(c.Vectors), cfg.Groups)
}
