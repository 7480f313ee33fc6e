// Package labels maps categorical cell-type names to dense integer class
// codes and back.
package labels

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gowebpki/jcs"
)

var (
	// ErrUnknownLabel indicates a label that was not seen when the codec was
	// built.
	ErrUnknownLabel = errors.New("labels: unknown label")
	// ErrUnknownCode indicates a code outside [0, NumClasses).
	ErrUnknownCode = errors.New("labels: unknown code")
	// ErrManifestMismatch indicates a manifest whose recorded class count or
	// digest does not match its mapping.
	ErrManifestMismatch = errors.New("labels: manifest does not match its mapping")
)

// Codec is a bijection between cell-type names and codes 0..NumClasses-1.
// Codes follow the sorted order of the distinct names, so the same training
// labels always produce the same codes. A Codec is immutable.
type Codec struct {
	typeToLabel map[string]int
	labelToType []string
}

// Build creates a codec from the distinct values of types.
func Build(types []string) *Codec {
	uniq := slices.Clone(types)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)

	c := &Codec{
		typeToLabel: make(map[string]int, len(uniq)),
		labelToType: uniq,
	}
	for i, t := range uniq {
		c.typeToLabel[t] = i
	}
	return c
}

// NumClasses returns the number of distinct types.
func (c *Codec) NumClasses() int { return len(c.labelToType) }

// Types returns the type names indexed by code.
func (c *Codec) Types() []string { return slices.Clone(c.labelToType) }

// Label returns the code of a single type.
func (c *Codec) Label(t string) (int, bool) {
	l, ok := c.typeToLabel[t]
	return l, ok
}

// Encode converts types to codes. An unseen type is an error; it is never
// dropped or mapped to a placeholder.
func (c *Codec) Encode(types []string) ([]int, error) {
	out := make([]int, len(types))
	for i, t := range types {
		l, ok := c.typeToLabel[t]
		if !ok {
			return nil, fmt.Errorf("%w: %q at row %d", ErrUnknownLabel, t, i)
		}
		out[i] = l
	}
	return out, nil
}

// Decode returns the type name of a code.
func (c *Codec) Decode(code int) (string, error) {
	if code < 0 || code >= len(c.labelToType) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrUnknownCode, code, len(c.labelToType))
	}
	return c.labelToType[code], nil
}

// TypeToLabel returns a copy of the type -> code table.
func (c *Codec) TypeToLabel() map[string]int {
	out := make(map[string]int, len(c.typeToLabel))
	for k, v := range c.typeToLabel {
		out[k] = v
	}
	return out
}

// LabelToType returns a copy of the code -> type table.
func (c *Codec) LabelToType() map[int]string {
	out := make(map[int]string, len(c.labelToType))
	for i, t := range c.labelToType {
		out[i] = t
	}
	return out
}

// Manifest is the serialized form of a codec.
type Manifest struct {
	RunID       string         `json:"run_id,omitempty"`
	NumClasses  int            `json:"num_classes"`
	TypeToLabel map[string]int `json:"type_to_label"`
	Digest      string         `json:"digest,omitempty"`
}

// Manifest returns the codec's RFC 8785 canonical JSON and its sha256 hex
// digest. The digest covers the mapping only, not the run id.
func (c *Codec) Manifest() ([]byte, string, error) {
	raw, err := json.Marshal(Manifest{NumClasses: c.NumClasses(), TypeToLabel: c.typeToLabel})
	if err != nil {
		return nil, "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize codec: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

// WriteManifest writes the codec mapping, its digest and runID to path as
// canonical JSON. It returns the digest.
func (c *Codec) WriteManifest(path, runID string) (string, error) {
	_, digest, err := c.Manifest()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(Manifest{
		RunID:       runID,
		NumClasses:  c.NumClasses(),
		TypeToLabel: c.typeToLabel,
		Digest:      digest,
	})
	if err != nil {
		return "", err
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(out, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}
	return digest, nil
}

// ReadManifest loads a manifest written by WriteManifest and rebuilds the
// codec from it.
func ReadManifest(path string) (*Codec, *Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if len(m.TypeToLabel) != m.NumClasses {
		return nil, nil, fmt.Errorf("%w: num_classes %d, mapping has %d labels", ErrManifestMismatch, m.NumClasses, len(m.TypeToLabel))
	}
	types := make([]string, len(m.TypeToLabel))
	seen := make([]bool, len(types))
	for t, l := range m.TypeToLabel {
		if l < 0 || l >= len(types) || seen[l] {
			return nil, nil, fmt.Errorf("%w: manifest code %d for %q", ErrUnknownCode, l, t)
		}
		seen[l] = true
		types[l] = t
	}
	c := &Codec{typeToLabel: make(map[string]int, len(types)), labelToType: types}
	for i, t := range types {
		c.typeToLabel[t] = i
	}
	_, digest, err := c.Manifest()
	if err != nil {
		return nil, nil, err
	}
	if digest != m.Digest {
		return nil, nil, fmt.Errorf("%w: digest %q, mapping hashes to %q", ErrManifestMismatch, m.Digest, digest)
	}
	return c, &m, nil
}
