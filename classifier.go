package faceshape

import (
	"fmt"
	"image"
)

// The supported classification strategies.
const (
	StrategyAuto      = "auto"
	StrategyLearned   = "learned"
	StrategyHeuristic = "heuristic"
)

// Observation is everything known about a face in a single frame.
type Observation struct {
	Measurements Measurements
	// Region is the cropped face region the measurements were taken from.
	Region image.Image
	// Contour is the optional outline of the face.
	Contour Contour
}

// ShapeClassifier turns a face observation into a face shape prediction.
type ShapeClassifier interface {
	Classify(obs Observation) (ClassificationResult, error)
	Strategy() string
}

// HeuristicClassifier adapts the heuristic scorer to the ShapeClassifier interface.
// The confidence is the share of points collected by the winning label.
type HeuristicClassifier struct {
	scorer *HeuristicScorer
}

// NewHeuristicClassifier creates a heuristic classifier using the default scoring table.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{scorer: NewHeuristicScorer(DefaultScoringTable)}
}

// Classify implements ShapeClassifier. It never fails.
func (h *HeuristicClassifier) Classify(obs Observation) (ClassificationResult, error) {
	label, scores := h.scorer.Evaluate(obs.Measurements, obs.Contour)
	return ClassificationResult{
		Label:      label,
		Confidence: scores.Confidence(label),
	}, nil
}

// Strategy implements ShapeClassifier.
func (h *HeuristicClassifier) Strategy() string { return StrategyHeuristic }

// LearnedClassifier predicts the face shape with a pretrained random forest over the standardized feature vector.
// The model is read-only after loading and may be shared between sessions.
type LearnedClassifier struct {
	forest *Forest
	scaler *Scaler
}

// LoadLearnedClassifier builds a classifier out of the serialized model and scaler.
// It returns ErrModelNotLoaded when any of the two blobs is missing
// and ErrInvalidArtifact when they cannot be normalized into a usable model.
func LoadLearnedClassifier(modelBlob, scalerBlob []byte) (*LearnedClassifier, error) {
	if len(modelBlob) == 0 || len(scalerBlob) == 0 {
		return nil, ErrModelNotLoaded
	}
	forest, err := DecodeForest(modelBlob)
	if err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	scaler, err := DecodeScaler(scalerBlob)
	if err != nil {
		return nil, fmt.Errorf("decoding scaler: %w", err)
	}
	return &LearnedClassifier{forest: forest, scaler: scaler}, nil
}

// Predict returns the most probable face shape of the feature vector and its probability.
func (c *LearnedClassifier) Predict(v FeatureVector) (ClassificationResult, error) {
	if c == nil || c.forest == nil || c.scaler == nil {
		return ClassificationResult{}, ErrModelNotLoaded
	}
	proba := c.forest.PredictProba(c.scaler.Transform(v))

	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return ClassificationResult{
		Label:      c.forest.classes[best],
		Confidence: proba[best],
	}, nil
}

// PredictBatch predicts every feature vector in order.
func (c *LearnedClassifier) PredictBatch(vectors []FeatureVector) ([]ClassificationResult, error) {
	if c == nil || c.forest == nil || c.scaler == nil {
		return nil, ErrModelNotLoaded
	}
	results := make([]ClassificationResult, len(vectors))
	for i, v := range vectors {
		res, err := c.Predict(v)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// Classify implements ShapeClassifier.
func (c *LearnedClassifier) Classify(obs Observation) (ClassificationResult, error) {
	if c == nil {
		return ClassificationResult{}, ErrModelNotLoaded
	}
	v, err := BuildFeatures(obs.Measurements, obs.Region)
	if err != nil {
		return ClassificationResult{}, err
	}
	return c.Predict(v)
}

// Strategy implements ShapeClassifier.
func (c *LearnedClassifier) Strategy() string { return StrategyLearned }

// SelectClassifier resolves the classification strategy of a session. The learned classifier is preferred
// in auto mode when a model is loaded, otherwise the heuristic scorer is used. Requesting the learned
// strategy without a model returns ErrModelNotLoaded.
func SelectClassifier(learned *LearnedClassifier, strategy string) (ShapeClassifier, error) {
	switch strategy {
	case StrategyHeuristic:
		return NewHeuristicClassifier(), nil
	case StrategyLearned:
		if learned == nil {
			return nil, ErrModelNotLoaded
		}
		return learned, nil
	case StrategyAuto, "":
		if learned != nil {
			return learned, nil
		}
		return NewHeuristicClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classification strategy %q", strategy)
	}
}
