package faceshape

import "math"

// ScoringTable holds the thresholds of the heuristic face shape scorer.
// The values were tuned empirically; keep them together so they can be recalibrated
// without touching the scoring flow.
type ScoringTable struct {
	// Height to width ratio bands.
	OvalRatioMin      float64
	OvalRatioMax      float64
	WideRatio         float64
	ElongatedRatioMax float64

	// Forehead to middle width.
	HeartForehead     float64
	HeartForeheadMild float64

	// Jaw to middle width.
	TriangularJaw     float64
	TriangularJawMild float64

	// Shared narrowness thresholds of the forehead and jaw against the middle width.
	VeryNarrow float64
	Narrow     float64

	// Forehead to jaw width.
	ForeheadJawHeart      float64
	ForeheadJawTriangular float64
	ParityMin             float64
	ParityMax             float64

	// Diamond bonus limits.
	DiamondNarrow       float64
	DiamondNarrowStrong float64

	// Contour refinement.
	SmoothSolidity  float64
	AngularSolidity float64
	SquareSolidity  float64
	ApproxEpsilon   float64
	AngularVertices int
	SmoothVertices  int

	// Final adjustments.
	ElongatedDiamondRatio float64
	RoundParityRatio      float64
	RoundParityTolerance  float64
	SquareParityRatio     float64
	SquareJawTolerance    float64
	SquareFaceTolerance   float64

	// Decision.
	WeakScore          int
	FallbackOvalRatio  float64
	FallbackRoundRatio float64
	TieRoundRatio      float64
}

// DefaultScoringTable is the calibrated scoring table.
var DefaultScoringTable = ScoringTable{
	OvalRatioMin:      1.15,
	OvalRatioMax:      1.35,
	WideRatio:         1.05,
	ElongatedRatioMax: 1.5,

	HeartForehead:     1.15,
	HeartForeheadMild: 1.05,

	TriangularJaw:     1.15,
	TriangularJawMild: 1.02,

	VeryNarrow: 0.75,
	Narrow:     0.9,

	ForeheadJawHeart:      1.25,
	ForeheadJawTriangular: 0.75,
	ParityMin:             0.95,
	ParityMax:             1.05,

	DiamondNarrow:       0.9,
	DiamondNarrowStrong: 0.85,

	SmoothSolidity:  0.9,
	AngularSolidity: 0.75,
	SquareSolidity:  0.8,
	ApproxEpsilon:   0.02,
	AngularVertices: 6,
	SmoothVertices:  10,

	ElongatedDiamondRatio: 1.3,
	RoundParityRatio:      1.1,
	RoundParityTolerance:  0.15,
	SquareParityRatio:     1.2,
	SquareJawTolerance:    0.05,
	SquareFaceTolerance:   0.1,

	WeakScore:          1,
	FallbackOvalRatio:  1.3,
	FallbackRoundRatio: 1.1,
	TieRoundRatio:      1.15,
}

// Scores holds the accumulated points of every face shape, indexed in the canonical label order.
type Scores [6]int

// Of returns the points accumulated by the label.
func (s Scores) Of(l Label) int {
	if i := l.index(); i >= 0 {
		return s[i]
	}
	return 0
}

func (s *Scores) add(l Label, pts int) {
	s[l.index()] += pts
}

// Total returns the sum of all the accumulated points.
func (s Scores) Total() int {
	var total int
	for _, v := range s {
		total += v
	}
	return total
}

// HeuristicScorer classifies face measurements with an additive multi-criteria point system.
// It is stateless and safe for concurrent use.
type HeuristicScorer struct {
	table ScoringTable
}

// NewHeuristicScorer creates a new heuristic scorer using the provided thresholds.
func NewHeuristicScorer(table ScoringTable) *HeuristicScorer {
	return &HeuristicScorer{table: table}
}

// Classify returns the face shape of the measurements. The contour is optional.
func (h *HeuristicScorer) Classify(m Measurements, contour Contour) Label {
	label, _ := h.Evaluate(m, contour)
	return label
}

// Evaluate returns the decided face shape together with the points accumulated by every label.
func (h *HeuristicScorer) Evaluate(m Measurements, contour Contour) (Label, Scores) {
	s := h.Scores(m, contour)
	return h.decide(s, m.Ratio), s
}

// Scores runs every scoring criterion over the measurements and returns the accumulated points.
func (h *HeuristicScorer) Scores(m Measurements, contour Contour) Scores {
	var (
		t     = h.table
		s     Scores
		ratio = m.Ratio
		ftm   = m.ForeheadToMiddleRatio
		jtm   = m.JawToMiddleRatio
		ftj   = m.ForeheadToJawRatio
	)

	// Height to width ratio.
	switch {
	case ratio >= t.OvalRatioMin && ratio <= t.OvalRatioMax:
		s.add(Oval, 3)
	case ratio < t.WideRatio:
		s.add(Round, 3)
	case ratio <= t.OvalRatioMin:
		s.add(Round, 2)
	case ratio > t.OvalRatioMax && ratio <= t.ElongatedRatioMax:
		s.add(Diamond, 2)
		s.add(Oval, 1)
	default:
		s.add(Oval, 1)
	}

	// Forehead against the middle of the face.
	switch {
	case ftm > t.HeartForehead:
		s.add(Heart, 4)
	case ftm > t.HeartForeheadMild:
		s.add(Heart, 2)
	case ftm < t.VeryNarrow:
		s.add(Diamond, 3)
		s.add(Triangular, 2)
	case ftm < t.Narrow:
		s.add(Diamond, 4)
		s.add(Triangular, 1)
	default:
		s.add(Oval, 2)
		s.add(Round, 1)
	}

	// Jaw against the middle of the face.
	switch {
	case jtm > t.TriangularJaw:
		s.add(Triangular, 4)
	case jtm > t.TriangularJawMild:
		s.add(Triangular, 2)
	case jtm < t.VeryNarrow:
		s.add(Diamond, 3)
		s.add(Heart, 2)
	case jtm < t.Narrow:
		s.add(Diamond, 4)
		s.add(Heart, 1)
	default:
		s.add(Oval, 2)
		s.add(Round, 1)
	}

	// Forehead against the jaw.
	switch {
	case ftj > t.ForeheadJawHeart:
		s.add(Heart, 3)
	case ftj < t.ForeheadJawTriangular:
		s.add(Triangular, 3)
	case ftj >= t.ParityMin && ftj <= t.ParityMax:
		s.add(Diamond, 2)
		s.add(Oval, 1)
	default:
		s.add(Oval, 1)
	}

	// Narrow forehead and narrow jaw around wide cheekbones.
	if ftm < t.DiamondNarrow && jtm < t.DiamondNarrow {
		s.add(Diamond, 5)
		if ftm < t.DiamondNarrowStrong && jtm < t.DiamondNarrowStrong {
			s.add(Diamond, 3)
		}
	}

	if len(contour) >= 3 {
		h.scoreContour(&s, contour)
	}

	if ratio > t.ElongatedDiamondRatio && ftm < t.DiamondNarrow && jtm < t.DiamondNarrow {
		s.add(Diamond, 3)
	}
	if ratio < t.RoundParityRatio && math.Abs(ftj-1) < t.RoundParityTolerance {
		s.add(Round, 2)
	}
	if ratio < t.SquareParityRatio && math.Abs(jtm-1) <= t.SquareJawTolerance && math.Abs(ftj-1) <= t.SquareFaceTolerance {
		s.add(Square, 3)
	}
	return s
}

// scoreContour refines the scores with the angularity of the face outline.
func (h *HeuristicScorer) scoreContour(s *Scores, contour Contour) {
	t := h.table

	solidity := contour.Solidity()
	switch {
	case solidity > t.SmoothSolidity:
		s.add(Round, 2)
		s.add(Oval, 1)
	case solidity < t.AngularSolidity:
		s.add(Diamond, 2)
	case solidity < t.SquareSolidity:
		s.add(Square, 2)
	}

	vertices := len(contour.Approximate(t.ApproxEpsilon * contour.Perimeter()))
	switch {
	case vertices <= t.AngularVertices:
		s.add(Diamond, 1)
		s.add(Square, 1)
	case vertices >= t.SmoothVertices:
		s.add(Round, 2)
		s.add(Oval, 1)
	}
}

// decide picks the label with the highest score. Weak evidence falls back to a ratio only
// decision, while ties prefer Oval, then Round on wide faces, then Diamond.
func (h *HeuristicScorer) decide(s Scores, ratio float64) Label {
	t := h.table

	best := 0
	for i, v := range s {
		if v > s[best] {
			best = i
		}
	}
	maxScore := s[best]

	if maxScore <= t.WeakScore {
		switch {
		case ratio > t.FallbackOvalRatio:
			return Oval
		case ratio < t.FallbackRoundRatio:
			return Round
		default:
			return Oval
		}
	}

	var tied []Label
	for i, v := range s {
		if v == maxScore {
			tied = append(tied, labels[i])
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	has := func(l Label) bool { return s.Of(l) == maxScore }
	switch {
	case has(Oval):
		return Oval
	case has(Round) && ratio < t.TieRoundRatio:
		return Round
	case has(Diamond):
		return Diamond
	default:
		return tied[0]
	}
}

// Confidence returns the share of the positive points collected by the label.
func (s Scores) Confidence(l Label) float64 {
	total := s.Total()
	if total <= 0 {
		return 0
	}
	return float64(s.Of(l)) / float64(total)
}
