package utils

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Min returns the smaller value between two numbers.
func Min[T constraints.Ordered](x, y T) T {
	if x < y {
		return x
	}
	return y
}

// Max returns the bigger value between two numbers.
func Max[T constraints.Ordered](x, y T) T {
	if x > y {
		return x
	}
	return y
}

// Abs returns the absolut value of x.
func Abs[T constraints.Signed | constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Clamp bounds x into the [lo, hi] interval. The upper bound is applied first,
// so lo wins when the interval is inverted.
func Clamp[T constraints.Ordered](x, lo, hi T) T {
	return Max(Min(x, hi), lo)
}

// Percentile returns the p-th percentile (0-100) of values, interpolating linearly between
// the two closest ranks. The input slice is not modified. It returns 0 for an empty input.
func Percentile[T constraints.Integer | constraints.Float](values []T, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	for i, v := range values {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	p = Clamp(p, 0, 100)
	rank := p / 100 * float64(n-1)
	lo := int(rank)
	hi := Min(lo+1, n-1)
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
