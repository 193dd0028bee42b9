package faceshape

import (
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// leafNode marks the children of a tree leaf.
const leafNode = -1

// treeArtifact is the serialized form of a single decision tree.
// Optional attributes introduced by newer trainers may be missing and are filled in on load.
type treeArtifact struct {
	ChildrenLeft  []int               `json:"children_left"`
	ChildrenRight []int               `json:"children_right"`
	Feature       []int               `json:"feature"`
	Threshold     []float64           `json:"threshold"`
	Value         jsoniter.RawMessage `json:"value"`
	MonotonicCst  []int               `json:"monotonic_cst,omitempty"`
}

// forestArtifact is the serialized form of a random forest classifier.
type forestArtifact struct {
	Classes    []string       `json:"classes"`
	NFeatures  int            `json:"n_features"`
	Estimators []treeArtifact `json:"estimators"`
}

// scalerArtifact is the serialized form of a fitted standard scaler.
type scalerArtifact struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
	Var   []float64 `json:"var"`
}

// tree is a validated decision tree with class probabilities stored on every node.
type tree struct {
	left      []int
	right     []int
	feature   []int
	threshold []float64
	proba     [][]float64
}

// Forest is an immutable, validated random forest. It is safe for concurrent use.
type Forest struct {
	classes []Label
	trees   []tree
}

// Scaler standardizes the feature vector before it reaches the forest.
type Scaler struct {
	mean  FeatureVector
	scale FeatureVector
}

// DecodeForest decodes and normalizes a serialized random forest.
func DecodeForest(blob []byte) (*Forest, error) {
	var art forestArtifact
	if err := json.Unmarshal(blob, &art); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if len(art.Classes) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidArtifact)
	}
	if len(art.Estimators) == 0 {
		return nil, fmt.Errorf("%w: no estimators", ErrInvalidArtifact)
	}
	if art.NFeatures == 0 {
		art.NFeatures = FeatureCount
	}
	if art.NFeatures != FeatureCount {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrInvalidArtifact, FeatureCount, art.NFeatures)
	}

	f := &Forest{
		classes: make([]Label, len(art.Classes)),
		trees:   make([]tree, 0, len(art.Estimators)),
	}
	for i, c := range art.Classes {
		l, ok := ParseLabel(c)
		if !ok {
			return nil, fmt.Errorf("%w: unknown class %q", ErrInvalidArtifact, c)
		}
		f.classes[i] = l
	}
	for i, est := range art.Estimators {
		t, err := normalizeTree(est, len(f.classes), art.NFeatures)
		if err != nil {
			return nil, fmt.Errorf("%w: estimator %d: %v", ErrInvalidArtifact, i, err)
		}
		f.trees = append(f.trees, t)
	}
	return f, nil
}

// normalizeTree validates the tree structure, fills in the missing optional attributes
// and converts the leaf values into class probabilities.
func normalizeTree(est treeArtifact, nClasses, nFeatures int) (tree, error) {
	n := len(est.ChildrenLeft)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(est.ChildrenRight) != n {
		return tree{}, fmt.Errorf("children_right has %d nodes, expected %d", len(est.ChildrenRight), n)
	}

	t := tree{
		left:      est.ChildrenLeft,
		right:     est.ChildrenRight,
		feature:   est.Feature,
		threshold: est.Threshold,
	}
	// Monotonicity constraints only shape training, prediction ignores them.
	// A missing list means unconstrained features.
	if cst := est.MonotonicCst; len(cst) > 0 {
		if len(cst) != nFeatures {
			return tree{}, fmt.Errorf("monotonic_cst has %d features, expected %d", len(cst), nFeatures)
		}
		for _, c := range cst {
			if c < -1 || c > 1 {
				return tree{}, fmt.Errorf("invalid monotonic constraint %d", c)
			}
		}
	}
	if len(t.feature) == 0 {
		t.feature = make([]int, n)
		for i := range t.feature {
			t.feature[i] = -2
		}
	}
	if len(t.threshold) == 0 {
		t.threshold = make([]float64, n)
	}
	if len(t.feature) != n || len(t.threshold) != n {
		return tree{}, fmt.Errorf("inconsistent node attributes")
	}

	values, err := decodeNodeValues(est.Value)
	if err != nil {
		return tree{}, err
	}
	if len(values) != n {
		return tree{}, fmt.Errorf("value has %d nodes, expected %d", len(values), n)
	}

	t.proba = make([][]float64, n)
	for i := 0; i < n; i++ {
		l, r := t.left[i], t.right[i]
		if l == leafNode || r == leafNode {
			if l != r {
				return tree{}, fmt.Errorf("node %d has a single child", i)
			}
		} else {
			if l <= i || l >= n || r <= i || r >= n {
				return tree{}, fmt.Errorf("node %d has out of range children", i)
			}
			if t.feature[i] < 0 || t.feature[i] >= nFeatures {
				return tree{}, fmt.Errorf("node %d splits on unknown feature %d", i, t.feature[i])
			}
		}
		t.proba[i] = normalizeProba(values[i], nClasses)
	}
	return t, nil
}

// decodeNodeValues accepts both the flat [node][class] layout and
// the [node][output][class] layout of multi-output trainers, keeping the first output.
func decodeNodeValues(raw jsoniter.RawMessage) ([][]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing node values")
	}
	var flat [][]float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("unsupported node values: %v", err)
	}
	flat = make([][]float64, len(nested))
	for i, out := range nested {
		if len(out) > 0 {
			flat[i] = out[0]
		}
	}
	return flat, nil
}

// normalizeProba turns sample counts or weighted fractions into a probability distribution.
// Missing classes count as zero and an empty node yields a uniform distribution.
func normalizeProba(v []float64, nClasses int) []float64 {
	p := make([]float64, nClasses)
	var sum float64
	for i := 0; i < nClasses && i < len(v); i++ {
		if v[i] > 0 && !math.IsInf(v[i], 0) {
			p[i] = v[i]
			sum += v[i]
		}
	}
	for i := range p {
		if sum > 0 {
			p[i] /= sum
		} else {
			p[i] = 1 / float64(nClasses)
		}
	}
	return p
}

// DecodeScaler decodes and normalizes a serialized standard scaler. A missing mean is treated
// as zero, a missing scale is derived from the variance and a zero scale is replaced by one.
func DecodeScaler(blob []byte) (*Scaler, error) {
	var art scalerArtifact
	if err := json.Unmarshal(blob, &art); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	s := &Scaler{}
	if len(art.Mean) != 0 && len(art.Mean) != FeatureCount {
		return nil, fmt.Errorf("%w: scaler mean has %d features", ErrInvalidArtifact, len(art.Mean))
	}
	copy(s.mean[:], art.Mean)

	if len(art.Scale) == 0 && len(art.Var) != 0 {
		art.Scale = make([]float64, len(art.Var))
		for i, v := range art.Var {
			art.Scale[i] = math.Sqrt(math.Max(v, 0))
		}
	}
	if len(art.Scale) != 0 && len(art.Scale) != FeatureCount {
		return nil, fmt.Errorf("%w: scaler scale has %d features", ErrInvalidArtifact, len(art.Scale))
	}
	for i := range s.scale {
		s.scale[i] = 1
		if i < len(art.Scale) && art.Scale[i] != 0 {
			s.scale[i] = art.Scale[i]
		}
	}
	return s, nil
}

// Transform standardizes the feature vector.
func (s *Scaler) Transform(v FeatureVector) FeatureVector {
	var out FeatureVector
	for i := range v {
		out[i] = (v[i] - s.mean[i]) / s.scale[i]
	}
	return out
}

// Classes returns the class labels in the order of the probability vector.
func (f *Forest) Classes() []Label {
	out := make([]Label, len(f.classes))
	copy(out, f.classes)
	return out
}

// PredictProba returns the mean class probabilities of all the trees.
func (f *Forest) PredictProba(v FeatureVector) []float64 {
	proba := make([]float64, len(f.classes))
	for i := range f.trees {
		for c, p := range f.trees[i].leaf(v) {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.trees))
	}
	return proba
}

// leaf walks the tree down to the leaf matching the feature vector and returns its probabilities.
func (t *tree) leaf(v FeatureVector) []float64 {
	node := 0
	// Children always have a greater index than their parent, so the walk terminates.
	for t.left[node] != leafNode {
		if v[t.feature[node]] <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.proba[node]
}
