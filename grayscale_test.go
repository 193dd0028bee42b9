package faceshape

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	imgWidth  = 10
	imgHeight = 10
)

func TestGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, imgWidth, imgHeight))
	for i := 0; i < img.Bounds().Dx(); i++ {
		for j := 0; j < img.Bounds().Dy(); j++ {
			img.Set(i, j, color.RGBA{177, 177, 177, 255})
		}
	}

	g := newGrayPlane(img)
	assert.Equal(t, imgWidth, g.width)
	assert.Equal(t, imgHeight, g.height)
	for _, v := range g.pix {
		if v != 177 {
			t.Errorf("Luminance value expected to be 177. Got %v", v)
		}
	}

	dst := g.toNRGBA()
	r, gg, b, a := dst.At(3, 3).RGBA()
	if r != gg || r != b || a != 0xffff {
		t.Errorf("R, G, B value expected to be equal. Got %v, %v, %v", r, gg, b)
	}
}

func TestGrayscale_OffsetOrigin(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 15, 10))
	img.Set(5, 5, color.White)

	g := newGrayPlane(img)
	assert.Equal(t, 10, g.width)
	assert.Equal(t, 5, g.height)
	assert.Equal(t, uint8(255), g.at(0, 0))
	assert.Equal(t, uint8(0), g.at(1, 0))
}

func TestGrayscale_Projection(t *testing.T) {
	g := &grayPlane{
		pix: []uint8{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
		},
		width:  3,
		height: 3,
	}
	assert.Equal(t, []float64{5, 7, 9}, g.columnProjection(0, 2))
	assert.Equal(t, []float64{12, 15, 18}, g.columnProjection(0, 3))

	mean, std := g.stats()
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.581988897, std, 1e-9)
}

func TestGrayscale_Blur(t *testing.T) {
	g := newGrayPlane(uniformImage(imgWidth, imgHeight, color.Gray{Y: 90}))
	assert.Equal(t, g.pix, g.blur(blurSigma).pix)

	empty := &grayPlane{}
	assert.True(t, empty.blur(blurSigma).empty())
}
