package datasets

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTextFile writes lines joined by newlines at path.
func writeTextFile(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file %s: %v", path, err)
	}
	defer f.Close()

	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatalf("failed to write line: %v", err)
		}
	}
}

func TestReadMatrix_TSVWithCorner(t *testing.T) {
	p := filepath.Join(t.TempDir(), "train.tsv")
	writeTextFile(t, p, []string{
		"gene\tAAAC\tAAAG\tAAAT",
		"Actb\t1\t2\t3",
		"Gapdh\t0\t5.5\t1e2",
	})

	m, err := ReadMatrix(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Actb", "Gapdh"}, m.Features)
	assert.Equal(t, []string{"AAAC", "AAAG", "AAAT"}, m.Samples)
	assert.Equal(t, []float64{0, 5.5, 100}, m.Data.RawRowView(1))
}

func TestReadMatrix_CSVWithoutCorner(t *testing.T) {
	p := filepath.Join(t.TempDir(), "train.csv")
	writeTextFile(t, p, []string{
		"c1,c2",
		"A,1,2",
		"B,3,4",
	})

	m, err := ReadMatrix(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, m.Samples)
	assert.Equal(t, []float64{3, 4}, m.Data.RawRowView(1))
}

func TestReadMatrix_Gzip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "train.csv.gz")
	f, err := os.Create(p)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join([]string{",c1,c2", "A,1,2", "B,3,4"}, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	m, err := ReadMatrix(p)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 2, m.Cols())
}

func TestReadMatrix_Malformed(t *testing.T) {
	tmp := t.TempDir()
	tests := map[string][]string{
		"ragged":     {"g\tc1\tc2", "A\t1\t2", "B\t1"},
		"not-number": {"g\tc1", "A\tx"},
		"no-rows":    {"g\tc1"},
		"empty":      {},
	}
	for name, lines := range tests {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(tmp, name+".tsv")
			writeTextFile(t, p, lines)
			_, err := ReadMatrix(p)
			assert.ErrorIs(t, err, ErrMalformedMatrix)
		})
	}

	_, err := ReadMatrix(filepath.Join(tmp, "missing.tsv"))
	assert.Error(t, err)
}

func TestReadLabels(t *testing.T) {
	p := filepath.Join(t.TempDir(), "labels.txt")
	writeTextFile(t, p, []string{
		"AAAC\tT cell",
		"AAAG\tB cell\textra",
	})

	rows, err := ReadLabels(p)
	require.NoError(t, err)
	assert.Equal(t, []LabelRow{{"AAAC", "T cell"}, {"AAAG", "B cell"}}, rows)
	assert.Equal(t, []string{"T cell", "B cell"}, LabelColumn(rows))
}

func TestReadLabels_Malformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "labels.txt")
	writeTextFile(t, p, []string{"AAAC\tT cell", "AAAG"})

	_, err := ReadLabels(p)
	assert.ErrorIs(t, err, ErrMalformedLabels)
}
