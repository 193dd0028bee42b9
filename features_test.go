package faceshape

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures_Build(t *testing.T) {
	assert := assert.New(t)

	m := measurementsOf(100, 130, 80, 100, 60)
	v, err := BuildFeatures(m, uniformImage(100, 130, color.Gray{Y: 100}))
	require.NoError(t, err)

	assert.InDelta(1.3, v[0], 1e-9)
	assert.InDelta(0.8, v[1], 1e-9)
	assert.InDelta(0.6, v[2], 1e-9)
	assert.InDelta(80.0/60.0, v[3], 1e-9)
	assert.InDelta(0.8, v[4], 1e-9)
	assert.InDelta(1.0, v[5], 1e-9)
	assert.InDelta(0.6, v[6], 1e-9)

	mean := 80.0
	std := math.Sqrt((0 + 400 + 400) / 3.0)
	assert.InDelta(std/mean, v[7], 1e-9)
	assert.InDelta(40.0/mean, v[8], 1e-9)

	// A flat region has neither contrast nor texture.
	assert.Equal(0.0, v[9])
	assert.Equal(0.0, v[10])
}

func TestFeatures_Texture(t *testing.T) {
	m := measurementsOf(64, 80, 40, 50, 45)

	v, err := BuildFeatures(m, noiseImage(64, 80, 7))
	require.NoError(t, err)
	assert.Greater(t, v[9], 0.0)
	assert.LessOrEqual(t, v[9], 1.0)
	assert.Greater(t, v[10], 0.0)
	assert.LessOrEqual(t, v[10], 1.0)
}

func TestFeatures_AlwaysFinite(t *testing.T) {
	m := Measurements{Ratio: math.Inf(1), ForeheadToMiddleRatio: math.NaN()}

	v, err := BuildFeatures(m, noiseImage(10, 10, 3))
	require.NoError(t, err)
	for i, f := range v {
		assert.False(t, math.IsNaN(f) || math.IsInf(f, 0), "feature %d is not finite", i)
	}
}

func TestFeatures_EmptyRegion(t *testing.T) {
	m := measurementsOf(100, 130, 80, 100, 60)

	_, err := BuildFeatures(m, nil)
	assert.True(t, errors.Is(err, ErrEmptyRegion))

	_, err = BuildFeatures(m, image.NewGray(image.Rect(0, 0, 0, 10)))
	assert.True(t, errors.Is(err, ErrEmptyRegion))
}
