package faceshape

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Rank(t *testing.T) {
	assert := assert.New(t)

	agg := NewAggregator(DefaultHistorySize)
	for i := 0; i < 6; i++ {
		agg.Append(ClassificationResult{Label: Oval, Confidence: 0.8})
	}
	agg.Append(ClassificationResult{Label: Round, Confidence: 0.5})
	agg.Append(ClassificationResult{Label: Round, Confidence: 0.7})

	report := agg.Aggregate()
	require.Len(t, report.Ranked, 2)
	assert.Equal(Oval, report.PrimaryShape)
	assert.InDelta(75.0, report.PrimaryConfidence, 1e-9)
	assert.Equal(8, report.Total)
	assert.False(report.Undetected())

	assert.Equal(Oval, report.Ranked[0].Label)
	assert.Equal(6, report.Ranked[0].Count)
	assert.InDelta(0.8, report.Ranked[0].MeanConfidence, 1e-9)
	assert.Equal(Round, report.Ranked[1].Label)
	assert.InDelta(25.0, report.Ranked[1].Percentage, 1e-9)
	assert.InDelta(0.6, report.Ranked[1].MeanConfidence, 1e-9)
}

func TestAggregator_PercentagesSumUp(t *testing.T) {
	agg := NewAggregator(DefaultHistorySize)
	shapes := []Label{Oval, Round, Heart, Oval, Diamond, Triangular, Square, Heart, Oval}
	for i := 0; i < 33; i++ {
		agg.Append(ClassificationResult{Label: shapes[i%len(shapes)], Confidence: 0.5})
	}

	report := agg.Aggregate()
	var sum float64
	var count int
	for i, r := range report.Ranked {
		sum += r.Percentage
		count += r.Count
		if i > 0 {
			assert.LessOrEqual(t, r.Percentage, report.Ranked[i-1].Percentage)
		}
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
	assert.Equal(t, 33, count)
	assert.Equal(t, Oval, report.PrimaryShape)
}

func TestAggregator_TiesKeepFirstSeenOrder(t *testing.T) {
	agg := NewAggregator(10)
	agg.Append(ClassificationResult{Label: Heart, Confidence: 0.4})
	agg.Append(ClassificationResult{Label: Oval, Confidence: 0.9})
	agg.Append(ClassificationResult{Label: Oval, Confidence: 0.9})
	agg.Append(ClassificationResult{Label: Heart, Confidence: 0.4})

	report := agg.Aggregate()
	assert.Equal(t, Heart, report.PrimaryShape)
	assert.Equal(t, []Label{Heart, Oval}, []Label{report.Ranked[0].Label, report.Ranked[1].Label})
}

func TestAggregator_EvictsOldest(t *testing.T) {
	agg := NewAggregator(DefaultHistorySize)
	agg.Append(ClassificationResult{Label: Heart, Confidence: 1})
	for i := 0; i < DefaultHistorySize; i++ {
		agg.Append(ClassificationResult{Label: Oval, Confidence: 0.5})
	}

	assert.Equal(t, DefaultHistorySize, agg.Len())
	assert.Equal(t, DefaultHistorySize, agg.Cap())

	snapshot := agg.Snapshot()
	require.Len(t, snapshot, DefaultHistorySize)
	for _, r := range snapshot {
		assert.Equal(t, Oval, r.Label)
	}

	report := agg.Aggregate()
	require.Len(t, report.Ranked, 1)
	assert.InDelta(t, 100.0, report.PrimaryConfidence, 1e-9)
}

func TestAggregator_SnapshotOrder(t *testing.T) {
	agg := NewAggregator(3)
	for _, l := range []Label{Oval, Round, Square, Heart, Diamond} {
		agg.Append(ClassificationResult{Label: l})
	}

	var got []Label
	for _, r := range agg.Snapshot() {
		got = append(got, r.Label)
	}
	assert.Equal(t, []Label{Square, Heart, Diamond}, got)
}

func TestAggregator_Empty(t *testing.T) {
	agg := NewAggregator(0)
	assert.Equal(t, DefaultHistorySize, agg.Cap())

	report := agg.Aggregate()
	assert.True(t, report.Undetected())
	assert.Equal(t, Undetected, report.PrimaryShape)
	assert.Equal(t, 0.0, report.PrimaryConfidence)
	assert.Equal(t, 0, report.Total)
	require.Len(t, report.Ranked, 1)
	assert.Equal(t, Undetected, report.Ranked[0].Label)

	agg.Append(ClassificationResult{Label: Oval, Confidence: 1})
	agg.Reset()
	assert.Equal(t, 0, agg.Len())
	assert.True(t, agg.Aggregate().Undetected())
}

func TestAggregator_ConcurrentReaders(t *testing.T) {
	agg := NewAggregator(DefaultHistorySize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			agg.Append(ClassificationResult{Label: labels[i%len(labels)], Confidence: 0.5})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				report := agg.Aggregate()
				assert.LessOrEqual(t, report.Total, DefaultHistorySize)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultHistorySize, agg.Len())
}
