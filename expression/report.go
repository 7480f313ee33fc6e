package expression

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Report describes what ScaleSets did to the combined matrix. The row-sum and
// CV distributions are kept so callers can plot or re-check the cut points.
type Report struct {
	Options Options

	// Samples holds the column count of each input, in input order.
	Samples []int
	// Splits are the cumulative column boundaries used to re-split.
	Splits []int

	CommonFeatures int

	RowSums          []float64
	ExpressionBounds Bounds
	AfterExpression  int

	ZeroMeanDropped int

	CVs      []float64
	CVBounds Bounds
	AfterCV  int
}

// SumRange returns the smallest and largest row sum seen by the expression
// filter.
func (r *Report) SumRange() Bounds {
	if len(r.RowSums) == 0 {
		return Bounds{}
	}
	return Bounds{Low: floats.Min(r.RowSums), High: floats.Max(r.RowSums)}
}

func (r *Report) String() string {
	sr := r.SumRange()
	return fmt.Sprintf("common=%d expr=%d (sums [%.4g, %.4g], kept [%.4g, %.4g]) zero-mean-dropped=%d cv=%d (kept [%.4g, %.4g]) samples=%v",
		r.CommonFeatures, r.AfterExpression, sr.Low, sr.High, r.ExpressionBounds.Low, r.ExpressionBounds.High,
		r.ZeroMeanDropped, r.AfterCV, r.CVBounds.Low, r.CVBounds.High, r.Samples)
}
