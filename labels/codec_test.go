package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SortedCodes(t *testing.T) {
	c := Build([]string{"T cell", "B cell", "NK", "T cell", "B cell"})

	assert.Equal(t, 3, c.NumClasses())
	assert.Equal(t, []string{"B cell", "NK", "T cell"}, c.Types())
	assert.Equal(t, map[string]int{"B cell": 0, "NK": 1, "T cell": 2}, c.TypeToLabel())
}

func TestBuild_OrderIndependent(t *testing.T) {
	a := Build([]string{"x", "y", "z"})
	b := Build([]string{"z", "x", "y", "x"})
	assert.Equal(t, a.TypeToLabel(), b.TypeToLabel())
}

func TestCodec_RoundTrip(t *testing.T) {
	types := []string{"monocyte", "B", "T", "NK", "dendritic", "T"}
	c := Build(types)

	t2l := c.TypeToLabel()
	l2t := c.LabelToType()
	require.Len(t, l2t, len(t2l))
	for _, s := range types {
		code := t2l[s]
		assert.GreaterOrEqual(t, code, 0)
		assert.Less(t, code, c.NumClasses())
		assert.Equal(t, s, l2t[code])

		got, err := c.Decode(code)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestCodec_Encode(t *testing.T) {
	c := Build([]string{"a", "b"})

	codes, err := c.Encode([]string{"b", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, codes)

	_, err = c.Encode([]string{"a", "unseen"})
	require.ErrorIs(t, err, ErrUnknownLabel)
	assert.Contains(t, err.Error(), "unseen")
	assert.Contains(t, err.Error(), "row 1")
}

func TestCodec_DecodeOutOfRange(t *testing.T) {
	c := Build([]string{"a"})
	_, err := c.Decode(1)
	assert.ErrorIs(t, err, ErrUnknownCode)
	_, err = c.Decode(-1)
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestCodec_TablesAreCopies(t *testing.T) {
	c := Build([]string{"a", "b"})
	m := c.TypeToLabel()
	m["a"] = 7
	l, ok := c.Label("a")
	assert.True(t, ok)
	assert.Equal(t, 0, l)
}

func TestManifest_StableDigest(t *testing.T) {
	a := Build([]string{"b", "a", "c"})
	b := Build([]string{"c", "b", "a"})

	ca, da, err := a.Manifest()
	require.NoError(t, err)
	cb, db, err := b.Manifest()
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
	assert.Equal(t, da, db)
	assert.Equal(t, `{"num_classes":3,"type_to_label":{"a":0,"b":1,"c":2}}`, string(ca))
}

func TestManifest_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "codec.json")
	c := Build([]string{"NK", "B", "T"})

	digest, err := c.WriteManifest(path, "run-1")
	require.NoError(t, err)
	_, want, _ := c.Manifest()
	assert.Equal(t, want, digest)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-1"`)

	back, m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, digest, m.Digest)
	assert.Equal(t, c.TypeToLabel(), back.TypeToLabel())
	assert.Equal(t, c.Types(), back.Types())
}

func writeRaw(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codec.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestReadManifest_Rejects(t *testing.T) {
	_, digest, err := Build([]string{"a", "b"}).Manifest()
	require.NoError(t, err)

	tests := map[string]struct {
		body string
		want error
	}{
		"tampered-digest": {`{"num_classes":2,"type_to_label":{"a":0,"b":1},"digest":"deadbeef"}`, ErrManifestMismatch},
		"missing-digest":  {`{"num_classes":2,"type_to_label":{"a":0,"b":1}}`, ErrManifestMismatch},
		"class-count":     {`{"num_classes":7,"type_to_label":{"a":0,"b":1},"digest":"` + digest + `"}`, ErrManifestMismatch},
		"repeated-code":   {`{"num_classes":2,"type_to_label":{"":0,"a":0},"digest":"` + digest + `"}`, ErrUnknownCode},
		"code-range":      {`{"num_classes":2,"type_to_label":{"a":0,"b":2},"digest":"` + digest + `"}`, ErrUnknownCode},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadManifest(writeRaw(t, tc.body))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestReadManifest_EmptyLabel(t *testing.T) {
	c := Build([]string{"a", ""})
	_, digest, err := c.Manifest()
	require.NoError(t, err)

	back, _, err := ReadManifest(writeRaw(t, `{"num_classes":2,"type_to_label":{"":0,"a":1},"digest":"`+digest+`"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "a"}, back.Types())
}
