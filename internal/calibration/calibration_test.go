package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sedentarism/domain/core"
	"sedentarism/internal/errors"
)

func TestGrid_Values(t *testing.T) {
	values := DefaultGrid().Values()
	require.Len(t, values, 61)
	assert.Equal(t, 0.10, values[0])
	assert.Equal(t, 0.70, values[60])
	assert.Equal(t, 0.40, values[30])

	single := Grid{Min: 0.5, Max: 0.5, Step: 0.05}.Values()
	assert.Equal(t, []float64{0.5}, single)
}

func TestGrid_EmptyIsConfigError(t *testing.T) {
	for _, g := range []Grid{
		{Min: 0.6, Max: 0.4, Step: 0.01},
		{Min: 0.1, Max: 0.7, Step: 0},
		{Min: 0.1, Max: 0.7, Step: -0.01},
		{Min: math.NaN(), Max: 0.7, Step: 0.01},
	} {
		_, err := Calibrate([]float64{0.5}, []bool{true}, g)
		require.Error(t, err, "%+v", g)
		assert.True(t, errors.IsConfigError(err))
		assert.Empty(t, g.Values())
	}
}

func TestCalibrate_KnownThreshold(t *testing.T) {
	var scores []float64
	var positives []bool
	for i := 0; i <= 200; i++ {
		s := float64(i) / 200
		scores = append(scores, s)
		positives = append(positives, s >= 0.4)
	}

	res, err := Calibrate(scores, positives, DefaultGrid())
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.Threshold, 0.01+1e-9)
	assert.Equal(t, 1.0, res.Best.F1)
	assert.Len(t, res.Grid, 61)
	assert.Empty(t, res.Flags)
}

func TestCalibrate_TiesPickSmallestTau(t *testing.T) {
	res, err := Calibrate([]float64{0.2, 0.8}, []bool{false, true}, DefaultGrid())
	require.NoError(t, err)
	assert.Equal(t, 0.21, res.Threshold)
	assert.Equal(t, 1.0, res.Best.F1)
}

func TestCalibrate_EmptyPartition(t *testing.T) {
	res, err := Calibrate(nil, nil, DefaultGrid())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Threshold))
	assert.True(t, math.IsNaN(res.Best.F1))
	assert.True(t, res.Flags.Has(core.FlagUndefinedMetric))
}

func TestCalibrate_SingleClass(t *testing.T) {
	res, err := Calibrate([]float64{0.3, 0.4, 0.5}, []bool{false, false, false}, DefaultGrid())
	require.NoError(t, err)
	assert.True(t, res.Flags.Has(core.FlagSingleClass))
	assert.Equal(t, 0.0, res.Best.F1)
	assert.Equal(t, 0.10, res.Threshold)
}

func TestFitMapping(t *testing.T) {
	binary := FitMapping(LabelBinary, []int{0, 1, 2}, []float64{0.9, 0.1, 0.5})
	assert.Equal(t, []bool{false, true, false}, binary.Apply([]int{0, 1, 2}))

	cluster := FitMapping(LabelCluster, []int{0, 0, 1, 1, 2, 2}, []float64{0.2, 0.3, 0.7, 0.8, 0.5, 0.5})
	assert.Equal(t, 1, cluster.Positive)
	assert.InDelta(t, 0.75, cluster.ClusterMeans[1], 1e-12)
	assert.Equal(t, []bool{false, true, false}, cluster.Apply([]int{0, 1, 2}))

	tied := FitMapping(LabelCluster, []int{3, 1}, []float64{0.6, 0.6})
	assert.Equal(t, 1, tied.Positive)

	none := FitMapping(LabelCluster, nil, nil)
	assert.False(t, none.IsPositive(0))
}

func TestParseLabelMode(t *testing.T) {
	m, err := ParseLabelMode("cluster")
	require.NoError(t, err)
	assert.Equal(t, LabelCluster, m)
	_, err = ParseLabelMode("kmeans")
	assert.True(t, errors.IsConfigError(err))
}
