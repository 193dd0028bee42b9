package faceshape

import (
	"fmt"
	"image"

	"github.com/esimov/faceshape/utils"
)

// Band is a horizontal slice of the face region.
type Band int

// The five face bands from top to bottom.
const (
	ForeheadBand Band = iota
	TempleBand
	EyeBand
	CheekBand
	JawBand
)

// bandLimits holds the height fractions delimiting the five bands.
var bandLimits = [6]float64{0, .2, .4, .6, .8, 1.0}

// MeasureParams holds the tunable constants of the face region measurement.
type MeasureParams struct {
	// Percentiles is the projection threshold of every band, indexed by Band.
	Percentiles [5]float64

	// Band shares of the smoothed widths, each pair sums to 1.
	ForeheadWeight float64
	TempleWeight   float64
	EyeWeight      float64
	CheekWeight    float64
	JawWeight      float64
	JawCheekWeight float64

	// EyeWidthFactor estimates the face width from the inter-pupillary distance.
	EyeWidthFactor float64
	// EyeCorrectionTolerance is the deviation, as a fraction of the face width, above which
	// the middle width is blended with the eye based estimate.
	EyeCorrectionTolerance float64
	// MinWidthFraction is the lower bound of every smoothed width, as a fraction of the face width.
	MinWidthFraction float64
}

// DefaultMeasureParams are the empirically tuned measurement constants.
var DefaultMeasureParams = MeasureParams{
	Percentiles:            [5]float64{80, 85, 90, 85, 80},
	ForeheadWeight:         0.7,
	TempleWeight:           0.3,
	EyeWeight:              0.4,
	CheekWeight:            0.6,
	JawWeight:              0.8,
	JawCheekWeight:         0.2,
	EyeWidthFactor:         3.2,
	EyeCorrectionTolerance: 0.3,
	MinWidthFraction:       0.3,
}

// EyePair holds the centers of the two detected eyes, in face region coordinates.
type EyePair struct {
	Left  image.Point
	Right image.Point
}

// Distance returns the horizontal distance between the two eye centers.
func (e EyePair) Distance() int {
	return utils.Abs(e.Right.X - e.Left.X)
}

// EyeDetector locates the pair of eyes inside an already cropped face region.
type EyeDetector interface {
	DetectEyes(face image.Image) (EyePair, bool)
}

// Measurer computes the geometric proportions of a face region.
type Measurer struct {
	eyes   EyeDetector
	params MeasureParams
}

// NewMeasurer creates a measurer with the default parameters. The eye detector is optional;
// without it the eye distance is always reported as 0.
func NewMeasurer(eyes EyeDetector) *Measurer {
	return &Measurer{
		eyes:   eyes,
		params: DefaultMeasureParams,
	}
}

// WithParams overrides the measurement parameters.
func (m *Measurer) WithParams(p MeasureParams) *Measurer {
	m.params = p
	return m
}

// Measure computes the face measurements of the region delimited by box inside frame.
// The box is clipped to the frame bounds; an empty box or one lying completely outside
// the frame returns ErrInvalidRegion.
func (m *Measurer) Measure(box FaceBox, frame image.Image) (Measurements, error) {
	region, err := cropRegion(box, frame)
	if err != nil {
		return Measurements{}, err
	}
	return m.MeasureRegion(region)
}

// MeasureRegion computes the face measurements of an already cropped face region.
func (m *Measurer) MeasureRegion(region image.Image) (Measurements, error) {
	if region == nil || region.Bounds().Empty() {
		return Measurements{}, fmt.Errorf("%w: empty face region", ErrInvalidRegion)
	}
	gray := newGrayPlane(region)
	w, h := gray.width, gray.height
	p := m.params

	var widths [5]int
	for b := ForeheadBand; b <= JawBand; b++ {
		y0 := int(float64(h) * bandLimits[b])
		y1 := int(float64(h) * bandLimits[b+1])
		widths[b] = projectionWidth(gray, y0, y1, p.Percentiles[b])
	}

	forehead := smoothWidth(widths[ForeheadBand], widths[TempleBand], p.ForeheadWeight, p.TempleWeight)
	middle := smoothWidth(widths[EyeBand], widths[CheekBand], p.EyeWeight, p.CheekWeight)
	jaw := smoothWidth(widths[JawBand], widths[CheekBand], p.JawWeight, p.JawCheekWeight)

	var eyeDist int
	if m.eyes != nil {
		if pair, ok := m.eyes.DetectEyes(region); ok {
			eyeDist = pair.Distance()
		}
	}
	if eyeDist > 0 {
		estimated := float64(eyeDist) * p.EyeWidthFactor
		if utils.Abs(float64(middle)-estimated) > float64(w)*p.EyeCorrectionTolerance {
			middle = int((float64(middle) + estimated) / 2)
		}
	}

	minWidth := int(float64(w) * p.MinWidthFraction)
	forehead = utils.Clamp(forehead, minWidth, w)
	middle = utils.Clamp(middle, minWidth, w)
	jaw = utils.Clamp(jaw, minWidth, w)

	return Measurements{
		Width:                 w,
		Height:                h,
		Ratio:                 float64(h) / float64(w),
		ForeheadWidth:         forehead,
		MiddleWidth:           middle,
		JawWidth:              jaw,
		EyeDistance:           eyeDist,
		ForeheadToMiddleRatio: float64(forehead) / float64(utils.Max(middle, 1)),
		JawToMiddleRatio:      float64(jaw) / float64(utils.Max(middle, 1)),
		ForeheadToJawRatio:    float64(forehead) / float64(utils.Max(jaw, 1)),
		TempleWidth:           widths[TempleBand],
		CheekWidth:            widths[CheekBand],
	}, nil
}

// smoothWidth blends two band widths, truncating the weighted sum to whole pixels.
// The explicit conversions keep the products from being fused into a multiply-add.
func smoothWidth(a, b int, wa, wb float64) int {
	return int(float64(float64(a)*wa) + float64(float64(b)*wb))
}

// projectionWidth estimates the content width of the rows between y0 and y1 as the span between
// the first and the last column whose intensity sum exceeds the given percentile of the projection.
// An empty band, or one without any column above the threshold, spans the whole region width.
func projectionWidth(g *grayPlane, y0, y1 int, percentile float64) int {
	if y1 <= y0 {
		return g.width
	}
	proj := g.columnProjection(y0, y1)
	threshold := utils.Percentile(proj, percentile)

	first, last := -1, -1
	for x, v := range proj {
		if v > threshold {
			if first < 0 {
				first = x
			}
			last = x
		}
	}
	if first < 0 {
		return g.width
	}
	return last - first + 1
}
