package expression

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var errEmptyDistribution = errors.New("expression: percentile of empty distribution")

// Percentile returns the p-th percentile (0..100) of values, interpolating
// linearly between the two closest ranks. This is the default definition
// used by numpy and R type 7, which differs from gonum's stat.Quantile.
// values is not modified.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, errEmptyDistribution
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: percentile %v", ErrInvalidOptions, p)
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return percentileSorted(sorted, p), nil
}

func percentileSorted(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Bounds is an inclusive [Low, High] interval on a per-row statistic.
type Bounds struct {
	Low  float64
	High float64
}

// Contains reports whether v lies within the inclusive bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// percentileBounds computes the [lo, hi] percentile interval of values.
func percentileBounds(values []float64, lo, hi float64) (Bounds, error) {
	if len(values) == 0 {
		return Bounds{}, errEmptyDistribution
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Bounds{Low: percentileSorted(sorted, lo), High: percentileSorted(sorted, hi)}, nil
}
