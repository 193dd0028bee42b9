// Package detector locates faces and pupils in video frames on top of the pigo cascades.
package detector

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/esimov/faceshape"
	pigo "github.com/esimov/pigo/core"
)

// Params holds the face detection parameters.
type Params struct {
	MinSize          int     `koanf:"min_size" validate:"gte=10"`
	MaxSize          int     `koanf:"max_size" validate:"gtefield=MinSize"`
	ShiftFactor      float64 `koanf:"shift_factor" validate:"gt=0,lte=1"`
	ScaleFactor      float64 `koanf:"scale_factor" validate:"gt=1"`
	IoUThreshold     float64 `koanf:"iou_threshold" validate:"gte=0,lte=1"`
	QualityThreshold float32 `koanf:"quality_threshold" validate:"gte=0"`
}

// DefaultParams mirrors a 1.1 scale factor with a 50px minimum face size.
var DefaultParams = Params{
	MinSize:          50,
	MaxSize:          1000,
	ShiftFactor:      0.1,
	ScaleFactor:      1.1,
	IoUThreshold:     0.2,
	QualityThreshold: 5.0,
}

// Pupil localization constants, relative to the face scale.
const (
	pupilRowOffset = 0.085
	pupilColOffset = 0.185
	pupilScale     = 0.4
	pupilPerturbs  = 63
)

// Detector finds faces with the pigo face cascade and, when a pupil localization cascade
// is provided, the eye pair of a face region. Once created it is read-only and safe for concurrent use.
type Detector struct {
	faces  *pigo.Pigo
	pupils *pigo.PuplocCascade
	params Params
}

// New unpacks the face cascade and the optional pupil localization cascade.
func New(faceCascade, pupilCascade []byte, params Params) (*Detector, error) {
	if len(faceCascade) == 0 {
		return nil, errors.New("missing face cascade")
	}
	faces, err := pigo.NewPigo().Unpack(faceCascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the face cascade: %w", err)
	}
	d := &Detector{faces: faces, params: params}

	if len(pupilCascade) > 0 {
		d.pupils, err = pigo.NewPuplocCascade().UnpackCascade(pupilCascade)
		if err != nil {
			return nil, fmt.Errorf("error unpacking the pupil cascade: %w", err)
		}
	}
	return d, nil
}

// HasEyeDetection reports whether the pupil localization cascade was loaded.
func (d *Detector) HasEyeDetection() bool {
	return d.pupils != nil
}

// Detect returns the boxes of all the faces of the frame above the quality threshold,
// the most confident one first.
func (d *Detector) Detect(frame image.Image) []faceshape.FaceBox {
	dets := d.clusterDetection(frame)
	dets = filterDetections(dets, d.params.QualityThreshold)

	boxes := make([]faceshape.FaceBox, len(dets))
	for i, det := range dets {
		boxes[i] = boxFromDetection(det)
	}
	return boxes
}

// DetectFace returns the most confident face of the frame, or faceshape.ErrNoFace.
func (d *Detector) DetectFace(frame image.Image) (faceshape.FaceBox, error) {
	boxes := d.Detect(frame)
	if len(boxes) == 0 {
		return faceshape.FaceBox{}, faceshape.ErrNoFace
	}
	return boxes[0], nil
}

// DetectEyes localizes the two pupils inside an already cropped face region.
// The face is assumed to fill the region, as produced by the face cascade boxes.
func (d *Detector) DetectEyes(face image.Image) (faceshape.EyePair, bool) {
	if d.pupils == nil || face == nil || face.Bounds().Empty() {
		return faceshape.EyePair{}, false
	}
	b := face.Bounds()
	imgParams := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(face),
		Rows:   b.Dy(),
		Cols:   b.Dx(),
		Dim:    b.Dx(),
	}
	det := pigo.Detection{
		Row:   b.Dy() / 2,
		Col:   b.Dx() / 2,
		Scale: min(b.Dx(), b.Dy()),
	}

	left, right := pupilSeeds(det)
	l := d.pupils.RunDetector(left, imgParams, 0.0, false)
	r := d.pupils.RunDetector(right, imgParams, 0.0, false)
	if !validPupil(l) || !validPupil(r) {
		return faceshape.EyePair{}, false
	}
	return faceshape.EyePair{
		Left:  image.Pt(l.Col, l.Row),
		Right: image.Pt(r.Col, r.Row),
	}, true
}

// clusterDetection runs the pigo face detector core methods
// and returns a cluster with the detected faces coordinates.
func (d *Detector) clusterDetection(frame image.Image) []pigo.Detection {
	b := frame.Bounds()
	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(frame),
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    b.Dx(),
		},
	}

	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := d.faces.RunCascade(cParams, 0.0)

	// Calculate the intersection over union (IoU) of two clusters.
	return d.faces.ClusterDetections(dets, d.params.IoUThreshold)
}

// filterDetections drops the detections below the quality threshold and sorts the rest by quality.
func filterDetections(dets []pigo.Detection, threshold float32) []pigo.Detection {
	out := make([]pigo.Detection, 0, len(dets))
	for _, det := range dets {
		if det.Q >= threshold && det.Scale > 0 {
			out = append(out, det)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Q > out[j].Q })
	return out
}

// boxFromDetection converts a detection centered on (Col, Row) into its square bounding box.
func boxFromDetection(det pigo.Detection) faceshape.FaceBox {
	return faceshape.FaceBox{
		X:      det.Col - det.Scale/2,
		Y:      det.Row - det.Scale/2,
		Width:  det.Scale,
		Height: det.Scale,
	}
}

// pupilSeeds returns the initial left and right pupil estimates of a face detection.
func pupilSeeds(det pigo.Detection) (left, right pigo.Puploc) {
	scale := float32(det.Scale)
	row := det.Row - int(pupilRowOffset*scale)
	left = pigo.Puploc{
		Row:      row,
		Col:      det.Col - int(pupilColOffset*scale),
		Scale:    scale * pupilScale,
		Perturbs: pupilPerturbs,
	}
	right = left
	right.Col = det.Col + int(pupilColOffset*scale)
	return left, right
}

func validPupil(p *pigo.Puploc) bool {
	return p != nil && p.Row > 0 && p.Col > 0
}
