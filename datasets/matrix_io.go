package datasets

import (
	"errors"
	"fmt"
	"io"

	"github.com/Noofbiz/cellprep/expression"
)

var (
	// ErrMalformedMatrix indicates a matrix file that is not a rectangular
	// feature x sample table.
	ErrMalformedMatrix = errors.New("datasets: malformed matrix file")
	// ErrMalformedLabels indicates a label file row without a sample id and a
	// label.
	ErrMalformedLabels = errors.New("datasets: malformed label file")
	// ErrLengthMismatch indicates inputs and labels of different lengths.
	ErrLengthMismatch = errors.New("datasets: length mismatch")
)

// ReadMatrix loads a dense feature x sample matrix from a delimited text file
// (comma for .csv, tab otherwise, optionally gzipped).
//
// The first record holds the sample ids, optionally preceded by a corner
// cell; every following record is a feature id followed by one value per
// sample. This is the layout pandas writes for a genes x cells DataFrame.
func ReadMatrix(path string) (*expression.Matrix, error) {
	reader, closer, err := openDelimited(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix %s: %w", path, err)
	}
	defer closer.Close()

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s is empty", ErrMalformedMatrix, path)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	header = append([]string(nil), header...)

	var (
		features []string
		values   [][]float64
		samples  []string
	)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s line %d: %w", path, line+1, err)
		}
		line++

		if samples == nil {
			// Header either carries a corner cell or it does not; the first
			// data row decides.
			switch len(record) {
			case len(header):
				samples = header[1:]
			case len(header) + 1:
				samples = header
			default:
				return nil, fmt.Errorf("%w: %s line %d has %d fields, header has %d",
					ErrMalformedMatrix, path, line, len(record), len(header))
			}
		}
		if len(record) != len(samples)+1 {
			return nil, fmt.Errorf("%w: %s line %d has %d fields, want %d",
				ErrMalformedMatrix, path, line, len(record), len(samples)+1)
		}

		row := make([]float64, len(samples))
		for j, cell := range record[1:] {
			v, err := parseFloat64(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d column %q: %v", ErrMalformedMatrix, path, line, samples[j], err)
			}
			row[j] = v
		}
		features = append(features, record[0])
		values = append(values, row)
	}

	if len(features) == 0 || len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrMalformedMatrix, path)
	}
	return expression.NewMatrix(features, samples, values)
}

// LabelRow is one row of a label file.
type LabelRow struct {
	Sample string
	Label  string
}

// ReadLabels loads a header-less two-column label table: sample id, then
// label. Extra columns are ignored.
func ReadLabels(path string) ([]LabelRow, error) {
	reader, closer, err := openDelimited(path)
	if err != nil {
		return nil, fmt.Errorf("open labels %s: %w", path, err)
	}
	defer closer.Close()

	var rows []LabelRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s line %d: %w", path, line+1, err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("%w: %s line %d has %d fields, want 2", ErrMalformedLabels, path, line, len(record))
		}
		rows = append(rows, LabelRow{Sample: record[0], Label: record[1]})
	}
	return rows, nil
}

// LabelColumn returns the label strings of rows in order.
func LabelColumn(rows []LabelRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Label
	}
	return out
}
