package qcplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/cellprep/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFilterPlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	rep := &expression.Report{
		RowSums:          []float64{1, 2, 3, 4, 5, 6, 7, 8},
		ExpressionBounds: expression.Bounds{Low: 1.07, High: 7.93},
		CVs:              []float64{0.1, 0.4, 0.4, 0.9},
		CVBounds:         expression.Bounds{Low: 0.109, High: 0.885},
	}
	require.NoError(t, WriteFilterPlots(dir, rep))

	for _, name := range []string{ExpressionFile, CVFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestWriteFilterPlots_Errors(t *testing.T) {
	assert.Error(t, WriteFilterPlots(t.TempDir(), nil))
	assert.Error(t, WriteFilterPlots(t.TempDir(), &expression.Report{}))
}

func TestPaddedRange(t *testing.T) {
	lo, hi := paddedRange([]float64{2, 4}, expression.Bounds{Low: 2, High: 4})
	assert.InDelta(t, 1.88, lo, 1e-9)
	assert.InDelta(t, 4.12, hi, 1e-9)

	lo, hi = paddedRange([]float64{3}, expression.Bounds{Low: 3, High: 3})
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 4.0, hi)
}
