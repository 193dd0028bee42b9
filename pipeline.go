package faceshape

import (
	"image"
	"time"

	"github.com/esimov/faceshape/metrics"
)

// Analysis is the outcome of running the pipeline over a single frame.
type Analysis struct {
	Box          FaceBox              `json:"box"`
	Measurements Measurements         `json:"measurements"`
	Result       ClassificationResult `json:"result"`
}

// Pipeline chains face detection, measurement and classification of a single frame.
// It holds no per-frame state and may be shared by concurrent workers.
type Pipeline struct {
	faces      FaceDetector
	measurer   *Measurer
	classifier ShapeClassifier
	contour    bool
}

// NewPipeline creates a frame analysis pipeline. A nil measurer or classifier
// falls back to the defaults without eye correction and with the heuristic scorer.
func NewPipeline(faces FaceDetector, measurer *Measurer, classifier ShapeClassifier) *Pipeline {
	if measurer == nil {
		measurer = NewMeasurer(nil)
	}
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}
	return &Pipeline{
		faces:      faces,
		measurer:   measurer,
		classifier: classifier,
	}
}

// WithContour enables the extraction of the face outline used by the heuristic scorer.
func (p *Pipeline) WithContour(enabled bool) *Pipeline {
	p.contour = enabled
	return p
}

// Strategy returns the classification strategy of the pipeline.
func (p *Pipeline) Strategy() string {
	return p.classifier.Strategy()
}

// Analyze detects the face of the frame, measures it and classifies its shape.
func (p *Pipeline) Analyze(frame image.Image) (Analysis, error) {
	start := time.Now()

	box, err := p.faces.DetectFace(frame)
	if err != nil {
		metrics.RecordFrame(metrics.FrameNoFace)
		return Analysis{}, err
	}
	region, err := cropRegion(box, frame)
	if err != nil {
		metrics.RecordFrame(metrics.FrameInvalid)
		return Analysis{}, err
	}
	m, err := p.measurer.MeasureRegion(region)
	if err != nil {
		metrics.RecordFrame(metrics.FrameInvalid)
		return Analysis{}, err
	}

	obs := Observation{Measurements: m, Region: region}
	if p.contour {
		if c, ok := ExtractContour(region); ok {
			obs.Contour = c
		}
	}
	res, err := p.classifier.Classify(obs)
	if err != nil {
		metrics.RecordFrame(metrics.FrameFailed)
		return Analysis{}, err
	}

	strategy := p.classifier.Strategy()
	metrics.RecordFrame(metrics.FrameClassified)
	metrics.RecordPrediction(res.Label.String(), strategy)
	metrics.RecordClassificationLatency(strategy, float64(time.Since(start).Microseconds())/1000)

	return Analysis{Box: box, Measurements: m, Result: res}, nil
}
