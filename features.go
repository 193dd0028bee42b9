package faceshape

import (
	"image"
	"math"

	"github.com/esimov/faceshape/utils"
)

// FeatureCount is the length of the feature vector consumed by the learned classifier.
const FeatureCount = 11

// FeatureVector is the ordered list of features consumed by the learned classifier:
// ratio, forehead/middle, jaw/middle, forehead/jaw, forehead/width, middle/width, jaw/width,
// width deviation, width spread, contrast and smoothness.
// The order is part of the trained model contract.
type FeatureVector [FeatureCount]float64

// BuildFeatures derives the feature vector of the measurements and the face region they were taken from.
func BuildFeatures(m Measurements, region image.Image) (FeatureVector, error) {
	var v FeatureVector
	if region == nil || region.Bounds().Empty() {
		return v, ErrEmptyRegion
	}

	width := float64(utils.Max(m.Width, 1))
	widths := [3]float64{
		float64(m.ForeheadWidth),
		float64(m.MiddleWidth),
		float64(m.JawWidth),
	}

	var sum float64
	lo, hi := widths[0], widths[0]
	for _, w := range widths {
		sum += w
		lo = math.Min(lo, w)
		hi = math.Max(hi, w)
	}
	mean := sum / 3
	var sq float64
	for _, w := range widths {
		sq += (w - mean) * (w - mean)
	}
	std := math.Sqrt(sq / 3)
	norm := math.Max(mean, 1)

	v[0] = m.Ratio
	v[1] = m.ForeheadToMiddleRatio
	v[2] = m.JawToMiddleRatio
	v[3] = m.ForeheadToJawRatio
	v[4] = widths[0] / width
	v[5] = widths[1] / width
	v[6] = widths[2] / width
	v[7] = std / norm
	v[8] = (hi - lo) / norm

	gray := newGrayPlane(region)
	_, contrast := gray.stats()
	v[9] = contrast / 255
	v[10] = smoothness(gray)

	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			v[i] = 0
		}
	}
	return v, nil
}

// smoothness is the mean absolute difference between the plane and its blurred copy, normalized to [0, 1].
func smoothness(g *grayPlane) float64 {
	if g.empty() {
		return 0
	}
	blurred := g.blur(blurSigma)

	var diff float64
	for i, v := range g.pix {
		diff += math.Abs(float64(v) - float64(blurred.pix[i]))
	}
	return diff / (float64(len(g.pix)) * 255)
}
