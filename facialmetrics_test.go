package faceshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFacialMetrics_Calibrated(t *testing.T) {
	assert := assert.New(t)

	m := measurementsOf(126, 189, 110, 120, 100)
	m.EyeDistance = 42

	fm := ComputeFacialMetrics(m)
	assert.True(fm.Calibrated())
	// 6.3cm over 42px gives 0.15cm per pixel.
	assert.InDelta(6.3, fm.EyeDistanceCm, 1e-9)
	assert.InDelta(28.35, fm.FaceHeightCm, 1e-9)
	assert.InDelta(18.9, fm.FaceWidthCm, 1e-9)
	assert.InDelta(16.5, fm.ForeheadWidthCm, 1e-9)
	assert.InDelta(15.0, fm.JawWidthCm, 1e-9)
	assert.InDelta(9.45, fm.Thirds.Upper, 1e-9)
	assert.Equal(fm.Thirds.Upper, fm.Thirds.Middle)
	assert.Equal(fm.Thirds.Upper, fm.Thirds.Lower)
	assert.InDelta(1.5, fm.Ratio, 1e-9)
	assert.InDelta(100-1.5/18.9*100, fm.SymmetryPercent, 1e-9)
}

func TestFacialMetrics_Symmetry(t *testing.T) {
	m := measurementsOf(100, 130, 90, 100, 90)
	m.EyeDistance = 30
	assert.InDelta(t, 100.0, ComputeFacialMetrics(m).SymmetryPercent, 1e-9)

	// Symmetry never drops below zero.
	m = Measurements{Width: 10, Height: 20, ForeheadWidth: 100, JawWidth: 0, EyeDistance: 5}
	assert.Equal(t, 0.0, ComputeFacialMetrics(m).SymmetryPercent)
}

func TestFacialMetrics_Uncalibrated(t *testing.T) {
	m := measurementsOf(100, 130, 90, 100, 80)

	fm := ComputeFacialMetrics(m)
	assert.False(t, fm.Calibrated())
	assert.Equal(t, FacialMetrics{Ratio: m.Ratio}, fm)
}
