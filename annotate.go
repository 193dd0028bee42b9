package faceshape

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	maskColor  = color.NRGBA{R: 0x2f, G: 0x1a, B: 0xf0, A: 0xff}
	boxColor   = color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
	bandColor  = color.NRGBA{R: 0xff, G: 0xd0, B: 0x00, A: 0xff}
	widthColor = color.NRGBA{R: 0x00, G: 0xe0, B: 0x60, A: 0xff}
)

// maskOpacity is the opacity of the tint laid over the face region.
const maskOpacity = 0.2

// Annotate returns a copy of the frame with the analysis drawn over it: a tinted face box,
// the band boundaries and the forehead, middle and jaw widths centered in their bands.
func Annotate(frame image.Image, a Analysis) *image.NRGBA {
	dst := imaging.Clone(frame)

	box := a.Box.Rect().Sub(frame.Bounds().Min).Intersect(dst.Bounds())
	if box.Empty() {
		return dst
	}
	mask := imaging.New(box.Dx(), box.Dy(), maskColor)
	dst = imaging.Overlay(dst, mask, box.Min, maskOpacity)

	for _, f := range bandLimits[1 : len(bandLimits)-1] {
		y := box.Min.Y + int(float64(box.Dy())*f)
		hline(dst, box.Min.X, box.Max.X, y, bandColor)
	}

	m := a.Measurements
	widths := []struct {
		band  Band
		width int
	}{
		{ForeheadBand, m.ForeheadWidth},
		{EyeBand, m.MiddleWidth},
		{JawBand, m.JawWidth},
	}
	for _, w := range widths {
		mid := (bandLimits[w.band] + bandLimits[w.band+1]) / 2
		y := box.Min.Y + int(float64(box.Dy())*mid)
		x0 := box.Min.X + (box.Dx()-w.width)/2
		hline(dst, x0, x0+w.width, y, widthColor)
	}

	hline(dst, box.Min.X, box.Max.X, box.Min.Y, boxColor)
	hline(dst, box.Min.X, box.Max.X, box.Max.Y-1, boxColor)
	vline(dst, box.Min.X, box.Min.Y, box.Max.Y, boxColor)
	vline(dst, box.Max.X-1, box.Min.Y, box.Max.Y, boxColor)

	return dst
}

func hline(dst *image.NRGBA, x0, x1, y int, c color.NRGBA) {
	for x := x0; x < x1; x++ {
		if (image.Point{X: x, Y: y}).In(dst.Rect) {
			dst.SetNRGBA(x, y, c)
		}
	}
}

func vline(dst *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	for y := y0; y < y1; y++ {
		if (image.Point{X: x, Y: y}).In(dst.Rect) {
			dst.SetNRGBA(x, y, c)
		}
	}
}
