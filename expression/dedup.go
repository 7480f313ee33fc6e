package expression

import (
	"fmt"
	"math/rand"
	"strings"
)

// DedupFeatures upper-cases feature ids and keeps the first row of each
// case-insensitive duplicate. It returns the deduplicated matrix and the
// number of rows dropped.
func DedupFeatures(m *Matrix) (*Matrix, int) {
	seen := make(map[string]struct{}, len(m.Features))
	keep := make([]int, 0, len(m.Features))
	upper := make([]string, len(m.Features))
	for i, f := range m.Features {
		u := strings.ToUpper(f)
		upper[i] = u
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		keep = append(keep, i)
	}
	out := m.SelectRows(keep)
	out.Features = pick(upper, keep)
	return out, len(m.Features) - len(keep)
}

// SampleIndices draws n distinct positions out of [0, total) using a
// generator seeded with seed. The same (total, n, seed) always yields the same
// positions in the same order, so a matrix and its label table can be
// subsampled independently and stay aligned.
func SampleIndices(total, n int, seed int64) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: sample size %d", ErrInvalidOptions, n)
	}
	if n > total {
		return nil, fmt.Errorf("%w: %d > %d", ErrSampleTooLarge, n, total)
	}
	rng := rand.New(rand.NewSource(seed))
	return rng.Perm(total)[:n], nil
}
