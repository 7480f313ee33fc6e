// Package qcplot draws quality-control figures for the feature filters run by
// expression.ScaleSets.
package qcplot

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/cellprep/expression"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	// ExpressionFile is the row-sum histogram written by WriteFilterPlots.
	ExpressionFile = "expression_filter.png"
	// CVFile is the coefficient-of-variation histogram written by WriteFilterPlots.
	CVFile = "cv_filter.png"

	bins = 50
)

// WriteFilterPlots writes ExpressionFile and CVFile into dir, creating it if
// needed. Each figure is a histogram of the statistic the filter ranked rows
// by, with vertical lines at the kept window.
func WriteFilterPlots(dir string, rep *expression.Report) error {
	if rep == nil {
		return errors.New("qcplot: nil report")
	}
	if err := ensureDir(dir); err != nil {
		return err
	}
	if err := writeHistogram(filepath.Join(dir, ExpressionFile),
		"Expression filter", "row sum of log2(x+1)", rep.RowSums, rep.ExpressionBounds); err != nil {
		return fmt.Errorf("expression plot: %w", err)
	}
	if err := writeHistogram(filepath.Join(dir, CVFile),
		"CV filter", "coefficient of variation", rep.CVs, rep.CVBounds); err != nil {
		return fmt.Errorf("cv plot: %w", err)
	}
	return nil
}

func writeHistogram(path, title, xlabel string, values []float64, cut expression.Bounds) error {
	if len(values) == 0 {
		return errors.New("qcplot: no values to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "rows"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	p.Add(h)

	top := 0.0
	for _, b := range h.Bins {
		top = math.Max(top, b.Weight)
	}
	for i, x := range []float64{cut.Low, cut.High} {
		line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 200, G: 30, B: 30, A: 220}
		line.Width = vg.Points(1.2)
		p.Add(line)
		if i == 0 {
			p.Legend.Add(fmt.Sprintf("kept [%.4g, %.4g]", cut.Low, cut.High), line)
		}
	}
	p.Add(plotter.NewGrid())

	xmin, xmax := paddedRange(values, cut)
	p.X.Min = xmin
	p.X.Max = xmax
	p.Y.Min = 0

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// paddedRange spans values and both cut lines with a small padding.
func paddedRange(values []float64, cut expression.Bounds) (lo, hi float64) {
	lo, hi = math.Min(cut.Low, cut.High), math.Max(cut.Low, cut.High)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.06
	if pad == 0 {
		pad = 1.0
	}
	return lo - pad, hi + pad
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
