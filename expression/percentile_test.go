package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := []float64{15, 20, 35, 40, 50}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 15},
		{100, 50},
		{50, 35},
		{25, 20},
		{40, 29},
		{1, 15.2},
		{99, 49.6},
	}
	for _, tt := range tests {
		got, err := Percentile(values, tt.p)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "p=%v", tt.p)
	}
	// input order untouched
	assert.Equal(t, []float64{15, 20, 35, 40, 50}, values)
}

func TestPercentile_Unsorted(t *testing.T) {
	got, err := Percentile([]float64{3, 1, 2}, 50)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestPercentile_Errors(t *testing.T) {
	_, err := Percentile(nil, 50)
	assert.Error(t, err)
	_, err = Percentile([]float64{1}, 101)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestBounds_Inclusive(t *testing.T) {
	b := Bounds{Low: 1, High: 2}
	assert.True(t, b.Contains(1))
	assert.True(t, b.Contains(2))
	assert.False(t, b.Contains(0.999))
	assert.False(t, b.Contains(2.001))
}
