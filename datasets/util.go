package datasets

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	return strconv.ParseFloat(s, 64)
}

// delimiterFor picks the field separator from the file name: comma for .csv
// (optionally gzipped), tab for everything else.
func delimiterFor(path string) rune {
	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if strings.HasSuffix(name, ".csv") {
		return ','
	}
	return '\t'
}

// openDelimited opens path, transparently decompressing .gz files, and
// returns a csv.Reader configured with the right delimiter. The returned
// closer must be called when done.
func openDelimited(path string) (*csv.Reader, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader = file
	var closer io.Closer = file
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		r = gz
		closer = multiCloser{gz, file}
	}

	reader := csv.NewReader(r)
	reader.Comma = delimiterFor(path)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	reader.LazyQuotes = true
	return reader, closer, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
