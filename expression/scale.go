package expression

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Options controls ScaleSets.
type Options struct {
	// TargetSum is the total every sample is rescaled to before the log
	// transform.
	TargetSum float64

	// LowerPercentile and UpperPercentile bound, inclusively, the rows kept
	// by both the expression filter and the CV filter. Range 0..100.
	LowerPercentile float64
	UpperPercentile float64
}

// DefaultOptions returns the library-size target and percentile window used
// for ACTINN-compatible preprocessing.
func DefaultOptions() Options {
	return Options{
		TargetSum:       20000,
		LowerPercentile: 1,
		UpperPercentile: 99,
	}
}

// Validate checks that the options describe a usable filter window.
func (o Options) Validate() error {
	if !(o.TargetSum > 0) || math.IsInf(o.TargetSum, 0) {
		return fmt.Errorf("%w: target sum %v must be positive", ErrInvalidOptions, o.TargetSum)
	}
	if math.IsNaN(o.LowerPercentile) || math.IsNaN(o.UpperPercentile) ||
		o.LowerPercentile < 0 || o.UpperPercentile > 100 || o.LowerPercentile > o.UpperPercentile {
		return fmt.Errorf("%w: percentile window [%v, %v]", ErrInvalidOptions, o.LowerPercentile, o.UpperPercentile)
	}
	return nil
}

// ScaleSets aligns every matrix to the sorted set of features they all share,
// normalizes and filters them as one combined matrix, and splits the result
// back into one matrix per input.
//
// Output i has the samples of sets[i] in their original order; every output
// has the same filtered features. The inputs are not modified.
func ScaleSets(sets []*Matrix, opts Options) ([]*Matrix, *Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if len(sets) == 0 {
		return nil, nil, ErrNoMatrices
	}
	for i, m := range sets {
		if err := m.Validate(); err != nil {
			return nil, nil, fmt.Errorf("matrix %d: %w", i, err)
		}
	}

	index, err := CommonFeatures(sets)
	if err != nil {
		return nil, nil, err
	}
	rep := &Report{CommonFeatures: len(index), Options: opts}

	aligned := make([]*Matrix, len(sets))
	for i, m := range sets {
		if aligned[i], err = Align(m, index); err != nil {
			return nil, nil, fmt.Errorf("matrix %d: %w", i, err)
		}
		rep.Samples = append(rep.Samples, m.Cols())
	}

	total, splits, err := Concat(aligned)
	if err != nil {
		return nil, nil, err
	}
	rep.Splits = splits

	if err := NormalizeLibrarySize(total, opts.TargetSum); err != nil {
		return nil, nil, err
	}
	Log2p1(total)

	total, rep.ExpressionBounds, rep.RowSums, err = FilterByExpression(total, opts.LowerPercentile, opts.UpperPercentile)
	if err != nil {
		return nil, nil, err
	}
	rep.AfterExpression = total.Rows()

	total, rep.ZeroMeanDropped, err = DropZeroMean(total)
	if err != nil {
		return nil, nil, err
	}

	total, rep.CVBounds, rep.CVs, err = FilterByCV(total, opts.LowerPercentile, opts.UpperPercentile)
	if err != nil {
		return nil, nil, err
	}
	rep.AfterCV = total.Rows()

	return Split(total, splits), rep, nil
}

// CommonFeatures returns the sorted intersection of the feature ids of sets.
func CommonFeatures(sets []*Matrix) ([]string, error) {
	if len(sets) == 0 {
		return nil, ErrNoMatrices
	}
	common := make(map[string]struct{}, len(sets[0].Features))
	for _, f := range sets[0].Features {
		common[f] = struct{}{}
	}
	for _, m := range sets[1:] {
		present := make(map[string]struct{}, len(m.Features))
		for _, f := range m.Features {
			present[f] = struct{}{}
		}
		for f := range common {
			if _, ok := present[f]; !ok {
				delete(common, f)
			}
		}
	}
	if len(common) == 0 {
		return nil, ErrMissingCommonFeatures
	}
	index := make([]string, 0, len(common))
	for f := range common {
		index = append(index, f)
	}
	slices.Sort(index)
	return index, nil
}

// Align returns m restricted to the features of index, in index order. When
// a feature id repeats, its first row is used.
func Align(m *Matrix, index []string) (*Matrix, error) {
	pos := make(map[string]int, len(m.Features))
	for i, f := range m.Features {
		if _, dup := pos[f]; !dup {
			pos[f] = i
		}
	}
	idx := make([]int, len(index))
	for i, f := range index {
		r, ok := pos[f]
		if !ok {
			return nil, fmt.Errorf("%w: feature %q not present", ErrMissingCommonFeatures, f)
		}
		idx[i] = r
	}
	if len(idx) == 0 {
		return nil, ErrMissingCommonFeatures
	}
	return m.SelectRows(idx), nil
}

// Concat joins aligned matrices along the sample axis. It returns the
// combined matrix and the cumulative split points [0, n0, n0+n1, ...] so that
// input i occupies columns [splits[i], splits[i+1]).
func Concat(sets []*Matrix) (*Matrix, []int, error) {
	if len(sets) == 0 {
		return nil, nil, ErrNoMatrices
	}
	features := sets[0].Features
	splits := make([]int, len(sets)+1)
	for i, m := range sets {
		if !slices.Equal(m.Features, features) {
			return nil, nil, fmt.Errorf("%w: matrix %d is not aligned to the common index", ErrShape, i)
		}
		splits[i+1] = splits[i] + m.Cols()
	}

	data := mat.NewDense(len(features), splits[len(sets)], nil)
	samples := make([]string, 0, splits[len(sets)])
	for i, m := range sets {
		for r := 0; r < len(features); r++ {
			copy(data.RawRowView(r)[splits[i]:splits[i+1]], m.Data.RawRowView(r))
		}
		samples = append(samples, m.Samples...)
	}
	return &Matrix{
		Features: append([]string(nil), features...),
		Samples:  samples,
		Data:     data,
	}, splits, nil
}

// NormalizeLibrarySize rescales, in place, every sample so its values sum to
// target.
func NormalizeLibrarySize(m *Matrix, target float64) error {
	r, c := m.Data.Dims()
	sums := make([]float64, c)
	for i := 0; i < r; i++ {
		floats.Add(sums, m.Data.RawRowView(i))
	}
	for j, s := range sums {
		if s == 0 {
			return fmt.Errorf("%w: sample %q (column %d) over %d common features", ErrZeroColumnSum, m.Samples[j], j, r)
		}
	}
	for i := 0; i < r; i++ {
		row := m.Data.RawRowView(i)
		for j := range row {
			row[j] = row[j] / sums[j] * target
		}
	}
	return nil
}

// Log2p1 applies log2(x+1) to every value of m in place.
func Log2p1(m *Matrix) {
	m.Data.Apply(func(_, _ int, v float64) float64 {
		return math.Log2(v + 1)
	}, m.Data)
}

// RowSums returns the sum of each row of m.
func RowSums(m *Matrix) []float64 {
	sums := make([]float64, m.Rows())
	for i := range sums {
		sums[i] = floats.Sum(m.Data.RawRowView(i))
	}
	return sums
}

// FilterByExpression keeps the rows whose sum lies within the inclusive
// [lo, hi] percentile window of all row sums. It also returns the window and
// the row sums it was computed from.
func FilterByExpression(m *Matrix, lo, hi float64) (*Matrix, Bounds, []float64, error) {
	sums := RowSums(m)
	out, b, err := filterRows(m, sums, lo, hi, "expression")
	return out, b, sums, err
}

// DropZeroMean removes rows whose mean is zero, so the CV of every remaining
// row is defined. It returns the remaining rows and how many were dropped.
func DropZeroMean(m *Matrix) (*Matrix, int, error) {
	keep := make([]int, 0, m.Rows())
	for i := 0; i < m.Rows(); i++ {
		if stat.Mean(m.Data.RawRowView(i), nil) > 0 {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, m.Rows(), fmt.Errorf("%w: zero-mean exclusion removed all %d rows", ErrDegenerateFilter, m.Rows())
	}
	return m.SelectRows(keep), m.Rows() - len(keep), nil
}

// CoefficientsOfVariation returns population standard deviation over mean for
// every row. Rows must have a non-zero mean.
func CoefficientsOfVariation(m *Matrix) []float64 {
	cvs := make([]float64, m.Rows())
	for i := range cvs {
		mean, std := stat.PopMeanStdDev(m.Data.RawRowView(i), nil)
		cvs[i] = std / mean
	}
	return cvs
}

// FilterByCV keeps the rows whose coefficient of variation lies within the
// inclusive [lo, hi] percentile window of all CVs of m. Zero-mean rows must
// have been removed with DropZeroMean first.
func FilterByCV(m *Matrix, lo, hi float64) (*Matrix, Bounds, []float64, error) {
	cvs := CoefficientsOfVariation(m)
	out, b, err := filterRows(m, cvs, lo, hi, "cv")
	return out, b, cvs, err
}

func filterRows(m *Matrix, stats []float64, lo, hi float64, stage string) (*Matrix, Bounds, error) {
	b, err := percentileBounds(stats, lo, hi)
	if err != nil {
		return nil, Bounds{}, fmt.Errorf("%w: %s filter on %d rows: %v", ErrDegenerateFilter, stage, m.Rows(), err)
	}
	keep := make([]int, 0, len(stats))
	for i, v := range stats {
		if b.Contains(v) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, b, fmt.Errorf("%w: %s filter kept 0 of %d rows (window [%g, %g])", ErrDegenerateFilter, stage, m.Rows(), b.Low, b.High)
	}
	return m.SelectRows(keep), b, nil
}

// Split cuts m into len(splits)-1 matrices, part i holding columns
// [splits[i], splits[i+1]). Every range must be non-empty.
func Split(m *Matrix, splits []int) []*Matrix {
	parts := make([]*Matrix, len(splits)-1)
	for i := range parts {
		idx := make([]int, splits[i+1]-splits[i])
		for k := range idx {
			idx[k] = splits[i] + k
		}
		parts[i] = m.SelectColumns(idx)
	}
	return parts
}
