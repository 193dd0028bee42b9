package faceshape

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// blurSigma approximates a 5x5 Gaussian kernel with automatic sigma.
const blurSigma = 1.1

// grayPlane is a row-major buffer of 8-bit luminance values with its origin at (0, 0).
type grayPlane struct {
	pix    []uint8
	width  int
	height int
}

// newGrayPlane converts the source image to grayscale mode and
// returns the luminance values as a one dimensional array.
func newGrayPlane(src image.Image) *grayPlane {
	gray := imaging.Grayscale(src)
	return planeFromNRGBA(gray)
}

// planeFromNRGBA reads the red channel of an already desaturated image.
func planeFromNRGBA(src *image.NRGBA) *grayPlane {
	b := src.Bounds()
	dx, dy := b.Dx(), b.Dy()
	g := &grayPlane{
		pix:    make([]uint8, dx*dy),
		width:  dx,
		height: dy,
	}
	for y := 0; y < dy; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < dx; x++ {
			g.pix[y*dx+x] = src.Pix[off+x*4]
		}
	}
	return g
}

// toNRGBA expands the luminance plane back into an opaque NRGBA image.
func (g *grayPlane) toNRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, g.width, g.height))
	for i, v := range g.pix {
		dst.Pix[i*4+0] = v
		dst.Pix[i*4+1] = v
		dst.Pix[i*4+2] = v
		dst.Pix[i*4+3] = 0xff
	}
	return dst
}

func (g *grayPlane) at(x, y int) uint8 {
	return g.pix[y*g.width+x]
}

func (g *grayPlane) empty() bool {
	return g.width <= 0 || g.height <= 0
}

// blur returns a Gaussian blurred copy of the plane.
func (g *grayPlane) blur(sigma float64) *grayPlane {
	if g.empty() {
		return &grayPlane{}
	}
	return planeFromNRGBA(imaging.Blur(g.toNRGBA(), sigma))
}

// columnProjection sums the intensity of every column between rows y0 (inclusive) and y1 (exclusive).
func (g *grayPlane) columnProjection(y0, y1 int) []float64 {
	proj := make([]float64, g.width)
	for y := y0; y < y1; y++ {
		row := g.pix[y*g.width : (y+1)*g.width]
		for x, v := range row {
			proj[x] += float64(v)
		}
	}
	return proj
}

// stats returns the mean and the population standard deviation of the luminance values.
func (g *grayPlane) stats() (mean, std float64) {
	n := float64(len(g.pix))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range g.pix {
		sum += float64(v)
	}
	mean = sum / n

	var sq float64
	for _, v := range g.pix {
		d := float64(v) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
