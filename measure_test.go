package faceshape

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEyes struct {
	pair EyePair
	ok   bool
}

func (f fakeEyes) DetectEyes(image.Image) (EyePair, bool) {
	return f.pair, f.ok
}

func uniformImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func noiseImage(w, h int, seed int64) *image.NRGBA {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(rnd.Intn(256))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 0xff
	}
	return img
}

func TestMeasure_UniformRegion(t *testing.T) {
	assert := assert.New(t)

	m, err := NewMeasurer(nil).MeasureRegion(uniformImage(100, 160, color.Gray{Y: 128}))
	require.NoError(t, err)

	assert.Equal(100, m.Width)
	assert.Equal(160, m.Height)
	assert.InDelta(1.6, m.Ratio, 1e-9)
	// A flat projection has no column above the threshold, every band spans the whole width.
	assert.Equal(100, m.ForeheadWidth)
	assert.Equal(100, m.MiddleWidth)
	assert.Equal(100, m.JawWidth)
	assert.Equal(0, m.EyeDistance)
	assert.InDelta(1.0, m.ForeheadToMiddleRatio, 1e-9)
	assert.InDelta(1.0, m.JawToMiddleRatio, 1e-9)
	assert.InDelta(1.0, m.ForeheadToJawRatio, 1e-9)
}

func TestMeasure_WidthsAreClamped(t *testing.T) {
	// A single bright column collapses every band to a one pixel width.
	img := uniformImage(100, 100, color.Black)
	for y := 0; y < 100; y++ {
		img.Set(50, y, color.White)
	}

	m, err := NewMeasurer(nil).MeasureRegion(img)
	require.NoError(t, err)
	assert.Equal(t, 30, m.ForeheadWidth)
	assert.Equal(t, 30, m.MiddleWidth)
	assert.Equal(t, 30, m.JawWidth)
	assert.Equal(t, 1, m.TempleWidth)
	assert.Equal(t, 1, m.CheekWidth)
}

func TestMeasure_WidthsWithinBounds(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		m, err := NewMeasurer(nil).MeasureRegion(noiseImage(80, 120, seed))
		require.NoError(t, err)

		for _, w := range []int{m.ForeheadWidth, m.MiddleWidth, m.JawWidth} {
			assert.GreaterOrEqual(t, w, 24)
			assert.LessOrEqual(t, w, 80)
		}
		assert.InDelta(t, float64(m.ForeheadWidth)/float64(m.MiddleWidth), m.ForeheadToMiddleRatio, 1e-9)
		assert.InDelta(t, float64(m.JawWidth)/float64(m.MiddleWidth), m.JawToMiddleRatio, 1e-9)
		assert.InDelta(t, float64(m.ForeheadWidth)/float64(m.JawWidth), m.ForeheadToJawRatio, 1e-9)
	}
}

func TestMeasure_RatioGrowsWithHeight(t *testing.T) {
	var prev float64
	for _, h := range []int{60, 90, 100, 120, 150, 200} {
		m, err := NewMeasurer(nil).MeasureRegion(uniformImage(100, h, color.White))
		require.NoError(t, err)
		assert.Greater(t, m.Ratio, prev)
		prev = m.Ratio
	}
}

func TestMeasure_EyeCorrection(t *testing.T) {
	region := uniformImage(100, 130, color.Gray{Y: 90})

	// 10px * 3.2 = 32px deviates from the 100px middle width by more than 30% of the width.
	close := fakeEyes{pair: EyePair{Left: image.Pt(40, 50), Right: image.Pt(50, 52)}, ok: true}
	m, err := NewMeasurer(close).MeasureRegion(region)
	require.NoError(t, err)
	assert.Equal(t, 10, m.EyeDistance)
	assert.Equal(t, 66, m.MiddleWidth)
	assert.Equal(t, 100, m.ForeheadWidth)

	// 30px * 3.2 = 96px is close enough to keep the projected width.
	far := fakeEyes{pair: EyePair{Left: image.Pt(60, 50), Right: image.Pt(30, 50)}, ok: true}
	m, err = NewMeasurer(far).MeasureRegion(region)
	require.NoError(t, err)
	assert.Equal(t, 30, m.EyeDistance)
	assert.Equal(t, 100, m.MiddleWidth)

	missing := fakeEyes{ok: false}
	m, err = NewMeasurer(missing).MeasureRegion(region)
	require.NoError(t, err)
	assert.Equal(t, 0, m.EyeDistance)
	assert.Equal(t, 100, m.MiddleWidth)
}

func TestMeasure_Box(t *testing.T) {
	frame := uniformImage(200, 200, color.Gray{Y: 200})
	measurer := NewMeasurer(nil)

	m, err := measurer.Measure(FaceBox{X: 20, Y: 10, Width: 80, Height: 100}, frame)
	require.NoError(t, err)
	assert.Equal(t, 80, m.Width)
	assert.Equal(t, 100, m.Height)

	// Boxes crossing the frame border are clipped.
	m, err = measurer.Measure(FaceBox{X: 150, Y: 150, Width: 100, Height: 100}, frame)
	require.NoError(t, err)
	assert.Equal(t, 50, m.Width)
	assert.Equal(t, 50, m.Height)

	_, err = measurer.Measure(FaceBox{X: 300, Y: 300, Width: 50, Height: 50}, frame)
	assert.True(t, errors.Is(err, ErrInvalidRegion))

	_, err = measurer.Measure(FaceBox{X: 10, Y: 10, Width: 0, Height: 50}, frame)
	assert.True(t, errors.Is(err, ErrInvalidRegion))

	_, err = measurer.MeasureRegion(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, errors.Is(err, ErrInvalidRegion))
}

func TestMeasure_Deterministic(t *testing.T) {
	region := noiseImage(64, 80, 42)
	measurer := NewMeasurer(nil)

	first, err := measurer.MeasureRegion(region)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		m, err := measurer.MeasureRegion(region)
		require.NoError(t, err)
		assert.Equal(t, first, m)
	}
}

func TestMeasure_SmoothWidth(t *testing.T) {
	p := DefaultMeasureParams
	assert.Equal(t, 0.3, p.TempleWeight)
	assert.Equal(t, 0.6, p.CheekWeight)
	assert.Equal(t, 0.2, p.JawCheekWeight)

	// 1*0.7 + 31*0.3 falls just below 10, a weight derived as 1-0.7 would round it up to 10.
	assert.Equal(t, 9, smoothWidth(1, 31, p.ForeheadWeight, p.TempleWeight))
	// 1*0.8 + 6*0.2 is exactly 2, a weight derived as 1-0.8 would truncate it to 1.
	assert.Equal(t, 2, smoothWidth(1, 6, p.JawWeight, p.JawCheekWeight))
	assert.Equal(t, 100, smoothWidth(100, 100, p.EyeWeight, p.CheekWeight))
}
