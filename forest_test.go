package faceshape

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A single split on the height to width ratio: wide faces are round, long faces mostly oval.
const ratioTree = `{
	"children_left": [1, -1, -1],
	"children_right": [2, -1, -1],
	"feature": [0, -2, -2],
	"threshold": [1.2, -2, -2],
	"value": %s
}`

func forestBlob(classes, values string, trees int) []byte {
	est := fmt.Sprintf(ratioTree, values)
	estimators := est
	for i := 1; i < trees; i++ {
		estimators += "," + est
	}
	return []byte(fmt.Sprintf(`{"classes": %s, "n_features": 11, "estimators": [%s]}`, classes, estimators))
}

var (
	legacyClasses = `["Ovalado", "Redondo", "Corazón"]`
	countValues   = `[[8, 10, 2], [0, 10, 0], [8, 0, 2]]`
	nestedValues  = `[[[8, 10, 2]], [[0, 10, 0]], [[8, 0, 2]]]`
	identityScale = []byte(`{"mean": [0,0,0,0,0,0,0,0,0,0,0], "scale": [1,1,1,1,1,1,1,1,1,1,1]}`)
)

func vectorWithRatio(ratio float64) FeatureVector {
	var v FeatureVector
	v[0] = ratio
	return v
}

func TestForest_Decode(t *testing.T) {
	assert := assert.New(t)

	f, err := DecodeForest(forestBlob(legacyClasses, countValues, 1))
	require.NoError(t, err)
	assert.Equal([]Label{Oval, Round, Heart}, f.Classes())

	proba := f.PredictProba(vectorWithRatio(1.0))
	assert.InDeltaSlice([]float64{0, 1, 0}, proba, 1e-9)

	proba = f.PredictProba(vectorWithRatio(1.5))
	assert.InDeltaSlice([]float64{0.8, 0, 0.2}, proba, 1e-9)

	// The split threshold goes to the left child.
	proba = f.PredictProba(vectorWithRatio(1.2))
	assert.InDeltaSlice([]float64{0, 1, 0}, proba, 1e-9)
}

func TestForest_NestedValues(t *testing.T) {
	flat, err := DecodeForest(forestBlob(legacyClasses, countValues, 1))
	require.NoError(t, err)
	nested, err := DecodeForest(forestBlob(legacyClasses, nestedValues, 1))
	require.NoError(t, err)

	for _, ratio := range []float64{0.9, 1.3, 1.8} {
		assert.Equal(t, flat.PredictProba(vectorWithRatio(ratio)), nested.PredictProba(vectorWithRatio(ratio)))
	}
}

func TestForest_OptionalAttributes(t *testing.T) {
	withCst := []byte(`{
		"classes": ["Oval", "Round"],
		"estimators": [{
			"children_left": [1, -1, -1],
			"children_right": [2, -1, -1],
			"feature": [0, -2, -2],
			"threshold": [1.2, -2, -2],
			"value": [[0.5, 0.5], [0.1, 0.9], [0.7, 0.3]],
			"monotonic_cst": [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
		}]
	}`)
	f, err := DecodeForest(withCst)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, 0.9}, f.PredictProba(vectorWithRatio(1.0)), 1e-9)

	// A single leaf tree carries no split attributes at all.
	stump := []byte(`{"classes": ["Square", "Diamond"], "estimators": [{
		"children_left": [-1], "children_right": [-1], "value": [[0, 0]]
	}]}`)
	f, err = DecodeForest(stump)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, f.PredictProba(vectorWithRatio(3)), 1e-9)
}

func TestForest_AveragesTrees(t *testing.T) {
	blob := []byte(`{"classes": ["Oval", "Round"], "estimators": [
		{"children_left": [-1], "children_right": [-1], "value": [[1, 0]]},
		{"children_left": [-1], "children_right": [-1], "value": [[1, 3]]}
	]}`)
	f, err := DecodeForest(blob)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.625, 0.375}, f.PredictProba(FeatureVector{}), 1e-9)
}

func TestForest_InvalidArtifacts(t *testing.T) {
	tests := map[string][]byte{
		"malformed":        []byte(`{"classes": [`),
		"no classes":       forestBlob(`[]`, countValues, 1),
		"unknown class":    forestBlob(`["Oval", "Round", "Oblong"]`, countValues, 1),
		"no estimators":    []byte(`{"classes": ["Oval"], "estimators": []}`),
		"feature mismatch": []byte(`{"classes": ["Oval"], "n_features": 5, "estimators": [{"children_left": [-1], "children_right": [-1], "value": [[1]]}]}`),
		"backward child": []byte(`{"classes": ["Oval", "Round"], "estimators": [{
			"children_left": [1, 0], "children_right": [1, -1], "feature": [0, -2], "threshold": [1, -2], "value": [[1, 1], [1, 1]]
		}]}`),
		"unknown feature": []byte(`{"classes": ["Oval", "Round"], "estimators": [{
			"children_left": [1, -1, -1], "children_right": [2, -1, -1], "feature": [11, -2, -2], "threshold": [1, -2, -2],
			"value": [[1, 1], [1, 0], [0, 1]]
		}]}`),
		"value count": []byte(`{"classes": ["Oval", "Round"], "estimators": [{
			"children_left": [-1], "children_right": [-1], "value": [[1, 1], [1, 0]]
		}]}`),
		"missing values": []byte(`{"classes": ["Oval", "Round"], "estimators": [{
			"children_left": [-1], "children_right": [-1]
		}]}`),
		"monotonic length": []byte(`{"classes": ["Oval"], "estimators": [{"children_left": [-1], "children_right": [-1], "value": [[1]], "monotonic_cst": [0, 1]}]}`),
		"monotonic value":  []byte(`{"classes": ["Oval"], "estimators": [{"children_left": [-1], "children_right": [-1], "value": [[1]], "monotonic_cst": [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2]}]}`),
	}

	for name, blob := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeForest(blob)
			assert.True(t, errors.Is(err, ErrInvalidArtifact), "got %v", err)
		})
	}
}

func TestScaler_Decode(t *testing.T) {
	assert := assert.New(t)

	s, err := DecodeScaler([]byte(`{"mean": [1,0,0,0,0,0,0,0,0,0,2], "var": [4,1,1,1,1,1,1,1,1,1,0]}`))
	require.NoError(t, err)

	var v FeatureVector
	v[0], v[10] = 5, 7
	out := s.Transform(v)
	assert.InDelta(2.0, out[0], 1e-9)
	// A zero variance leaves the centered feature unscaled.
	assert.InDelta(5.0, out[10], 1e-9)

	s, err = DecodeScaler([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(v, s.Transform(v))

	_, err = DecodeScaler([]byte(`{"mean": [1, 2]}`))
	assert.True(errors.Is(err, ErrInvalidArtifact))
	_, err = DecodeScaler([]byte(`{"scale": [1, 2, 3]}`))
	assert.True(errors.Is(err, ErrInvalidArtifact))
	_, err = DecodeScaler([]byte(`[`))
	assert.True(errors.Is(err, ErrInvalidArtifact))
}

func TestLearned_Predict(t *testing.T) {
	assert := assert.New(t)

	c, err := LoadLearnedClassifier(forestBlob(legacyClasses, countValues, 3), identityScale)
	require.NoError(t, err)
	assert.Equal(StrategyLearned, c.Strategy())

	res, err := c.Predict(vectorWithRatio(1.5))
	require.NoError(t, err)
	assert.Equal(Oval, res.Label)
	assert.InDelta(0.8, res.Confidence, 1e-9)

	results, err := c.PredictBatch([]FeatureVector{vectorWithRatio(1.0), vectorWithRatio(1.6)})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(Round, results[0].Label)
	assert.Equal(Oval, results[1].Label)

	// The scaler shifts the ratio below the split.
	shifted := []byte(`{"mean": [0.5,0,0,0,0,0,0,0,0,0,0], "scale": [1,1,1,1,1,1,1,1,1,1,1]}`)
	c, err = LoadLearnedClassifier(forestBlob(legacyClasses, countValues, 1), shifted)
	require.NoError(t, err)
	res, err = c.Predict(vectorWithRatio(1.5))
	require.NoError(t, err)
	assert.Equal(Round, res.Label)
}

func TestLearned_Classify(t *testing.T) {
	c, err := LoadLearnedClassifier(forestBlob(legacyClasses, countValues, 1), identityScale)
	require.NoError(t, err)

	obs := Observation{
		Measurements: measurementsOf(100, 150, 90, 100, 80),
		Region:       uniformImage(100, 150, color.Gray{Y: 120}),
	}
	res, err := c.Classify(obs)
	require.NoError(t, err)
	assert.Equal(t, Oval, res.Label)

	_, err = c.Classify(Observation{Measurements: obs.Measurements})
	assert.True(t, errors.Is(err, ErrEmptyRegion))
}

func TestLearned_NotLoaded(t *testing.T) {
	_, err := LoadLearnedClassifier(nil, identityScale)
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
	_, err = LoadLearnedClassifier(forestBlob(legacyClasses, countValues, 1), nil)
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	var c *LearnedClassifier
	_, err = c.Predict(FeatureVector{})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
	_, err = c.PredictBatch([]FeatureVector{{}})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
	_, err = c.Classify(Observation{})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	_, err = LoadLearnedClassifier([]byte(`{"classes": ["Oval"]}`), identityScale)
	assert.True(t, errors.Is(err, ErrInvalidArtifact))
}

func TestSelectClassifier(t *testing.T) {
	learned, err := LoadLearnedClassifier(forestBlob(legacyClasses, countValues, 1), identityScale)
	require.NoError(t, err)

	tests := []struct {
		learned  *LearnedClassifier
		strategy string
		want     string
		err      bool
	}{
		{learned, StrategyAuto, StrategyLearned, false},
		{learned, "", StrategyLearned, false},
		{nil, StrategyAuto, StrategyHeuristic, false},
		{learned, StrategyHeuristic, StrategyHeuristic, false},
		{learned, StrategyLearned, StrategyLearned, false},
		{nil, StrategyLearned, "", true},
		{learned, "neural", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.strategy, tt.learned != nil), func(t *testing.T) {
			c, err := SelectClassifier(tt.learned, tt.strategy)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Strategy())
		})
	}

	_, err = SelectClassifier(nil, StrategyLearned)
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestHeuristicClassifier_Confidence(t *testing.T) {
	res, err := NewHeuristicClassifier().Classify(Observation{Measurements: measurementsOf(100, 100, 100, 100, 100)})
	require.NoError(t, err)
	assert.Equal(t, Round, res.Label)
	assert.InDelta(t, 7.0/17.0, res.Confidence, 1e-9)
	assert.False(t, math.IsNaN(res.Confidence))
}
