package faceshape

import (
	"sort"
	"sync"
)

// DefaultHistorySize is the number of predictions kept by an aggregator.
const DefaultHistorySize = 60

// RankedShape is a face shape together with its share of the prediction history.
type RankedShape struct {
	Label          Label   `json:"label"`
	Percentage     float64 `json:"percentage"`
	MeanConfidence float64 `json:"mean_confidence"`
	Count          int     `json:"count"`
}

// AggregatedReport is the ranked summary of a prediction history.
type AggregatedReport struct {
	Ranked            []RankedShape `json:"ranked"`
	PrimaryShape      Label         `json:"primary_shape"`
	PrimaryConfidence float64       `json:"primary_confidence"`
	Total             int           `json:"total"`
}

// Undetected reports whether the report carries no usable prediction.
func (r AggregatedReport) Undetected() bool {
	return r.PrimaryShape == Undetected
}

// undetectedReport is the renderable report of an empty history.
func undetectedReport() AggregatedReport {
	return AggregatedReport{
		Ranked:       []RankedShape{{Label: Undetected}},
		PrimaryShape: Undetected,
	}
}

// Aggregator keeps a bounded history of per-frame predictions and ranks them on demand.
// A single producer may append while any number of readers aggregate concurrently.
type Aggregator struct {
	mu      sync.RWMutex
	history []ClassificationResult
	head    int
	size    int
}

// NewAggregator creates an aggregator holding at most capacity predictions.
// A non positive capacity falls back to DefaultHistorySize.
func NewAggregator(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Aggregator{history: make([]ClassificationResult, capacity)}
}

// Append adds a prediction to the history, evicting the oldest one when the history is full.
func (a *Aggregator) Append(r ClassificationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := (a.head + a.size) % len(a.history)
	a.history[idx] = r
	if a.size < len(a.history) {
		a.size++
	} else {
		a.head = (a.head + 1) % len(a.history)
	}
}

// Len returns the number of predictions in the history.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// Cap returns the maximum number of predictions kept.
func (a *Aggregator) Cap() int {
	return len(a.history)
}

// Reset discards the whole history.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.head, a.size = 0, 0
}

// Snapshot returns a copy of the history, oldest prediction first.
func (a *Aggregator) Snapshot() []ClassificationResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]ClassificationResult, a.size)
	for i := range out {
		out[i] = a.history[(a.head+i)%len(a.history)]
	}
	return out
}

// Aggregate groups the history by label and ranks the labels by their share of the history.
// Labels with the same share keep the order in which they were first seen.
// An empty history yields the Undetected report.
func (a *Aggregator) Aggregate() AggregatedReport {
	return aggregate(a.Snapshot())
}

func aggregate(history []ClassificationResult) AggregatedReport {
	if len(history) == 0 {
		return undetectedReport()
	}

	var (
		ranked []RankedShape
		conf   []float64
		index  = make(map[Label]int)
	)
	for _, r := range history {
		i, ok := index[r.Label]
		if !ok {
			i = len(ranked)
			index[r.Label] = i
			ranked = append(ranked, RankedShape{Label: r.Label})
			conf = append(conf, 0)
		}
		ranked[i].Count++
		conf[i] += r.Confidence
	}

	total := float64(len(history))
	for i := range ranked {
		ranked[i].Percentage = float64(ranked[i].Count) / total * 100
		ranked[i].MeanConfidence = conf[i] / float64(ranked[i].Count)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percentage > ranked[j].Percentage
	})

	return AggregatedReport{
		Ranked:            ranked,
		PrimaryShape:      ranked[0].Label,
		PrimaryConfidence: ranked[0].Percentage,
		Total:             len(history),
	}
}
