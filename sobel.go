package faceshape

import "math"

type kernel [3][3]int32

var (
	kernelX = kernel{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}

	kernelY = kernel{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// sobelEdges computes the gradient magnitude of the luminance plane and returns a binary
// edge map, where each pixel whose magnitude exceeds the threshold is set to 255.
// The one pixel wide border is left empty.
// See https://en.wikipedia.org/wiki/Sobel_operator
func sobelEdges(g *grayPlane, threshold float64) *grayPlane {
	dst := &grayPlane{
		pix:    make([]uint8, len(g.pix)),
		width:  g.width,
		height: g.height,
	}
	if g.width < 3 || g.height < 3 {
		return dst
	}

	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			var sumX, sumY int32
			for ky := 0; ky < 3; ky++ {
				for kx := 0; kx < 3; kx++ {
					px := int32(g.at(x+kx-1, y+ky-1))
					sumX += px * kernelX[ky][kx]
					sumY += px * kernelY[ky][kx]
				}
			}
			magnitude := math.Sqrt(float64(sumX*sumX) + float64(sumY*sumY))
			if magnitude > 255 {
				magnitude = 255
			}
			if magnitude > threshold {
				dst.pix[y*g.width+x] = 255
			}
		}
	}
	return dst
}
