package faceshape

import (
	"math"

	"github.com/esimov/faceshape/utils"
)

// AverageEyeDistanceCm is the average adult inter-pupillary distance used as calibration reference.
const AverageEyeDistanceCm = 6.3

// Thirds splits the face height into the upper, middle and lower facial thirds.
type Thirds struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// FacialMetrics holds the physical face measurements in centimeters.
// Without a calibration reference every physical field is zero.
type FacialMetrics struct {
	FaceHeightCm    float64 `json:"face_height_cm"`
	FaceWidthCm     float64 `json:"face_width_cm"`
	Thirds          Thirds  `json:"thirds"`
	ForeheadWidthCm float64 `json:"forehead_width_cm"`
	JawWidthCm      float64 `json:"jaw_width_cm"`
	EyeDistanceCm   float64 `json:"eye_distance_cm"`
	Ratio           float64 `json:"ratio"`
	SymmetryPercent float64 `json:"symmetry_percent"`
}

// Calibrated reports whether the metrics were derived from a detected eye pair.
func (f FacialMetrics) Calibrated() bool {
	return f.EyeDistanceCm > 0
}

// ComputeFacialMetrics converts the pixel measurements into centimeters, using the eye distance as reference.
func ComputeFacialMetrics(m Measurements) FacialMetrics {
	var pxToCm float64
	if m.EyeDistance > 0 {
		pxToCm = AverageEyeDistanceCm / float64(m.EyeDistance)
	}

	height := float64(m.Height) * pxToCm
	width := float64(m.Width) * pxToCm
	forehead := float64(m.ForeheadWidth) * pxToCm
	jaw := float64(m.JawWidth) * pxToCm

	var symmetry float64
	if width > 0 {
		symmetry = utils.Clamp(100-math.Abs(forehead-jaw)/width*100, 0, 100)
	}

	third := height / 3
	return FacialMetrics{
		FaceHeightCm:    height,
		FaceWidthCm:     width,
		Thirds:          Thirds{Upper: third, Middle: third, Lower: third},
		ForeheadWidthCm: forehead,
		JawWidthCm:      jaw,
		EyeDistanceCm:   float64(m.EyeDistance) * pxToCm,
		Ratio:           m.Ratio,
		SymmetryPercent: symmetry,
	}
}
