package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ExpressionDataset is an in-memory set of (feature vector, class code)
// records. It is read-only after construction and safe for concurrent reads.
type ExpressionDataset struct {
	name     string
	features [][]float32
	labels   []int
	dim      int
}

// NewExpressionDataset pairs sample-major feature rows with their class
// codes. All rows must have the same length.
func NewExpressionDataset(name string, features [][]float32, labels []int) (*ExpressionDataset, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature rows, %d labels", ErrLengthMismatch, len(features), len(labels))
	}
	dim := 0
	if len(features) > 0 {
		dim = len(features[0])
	}
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrLengthMismatch, i, len(row), dim)
		}
	}
	return &ExpressionDataset{name: name, features: features, labels: labels, dim: dim}, nil
}

// Name returns the dataset name.
func (d *ExpressionDataset) Name() string { return d.name }

// Len returns the number of records.
func (d *ExpressionDataset) Len() int { return len(d.labels) }

// Dim returns the feature vector length.
func (d *ExpressionDataset) Dim() int { return d.dim }

// Example returns the record at idx. The returned slice must not be modified.
func (d *ExpressionDataset) Example(idx int) ([]float32, int, error) {
	if idx < 0 || idx >= len(d.labels) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.labels))
	}
	return d.features[idx], d.labels[idx], nil
}

// Batch returns the records at indices. The returned feature slices must not
// be modified.
func (d *ExpressionDataset) Batch(indices []int) ([][]float32, []int, error) {
	features := make([][]float32, len(indices))
	labels := make([]int, len(indices))
	for i, idx := range indices {
		f, l, err := d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		features[i] = f
		labels[i] = l
	}
	return features, labels, nil
}

// Batch stores a mini-batch in flat contiguous buffers.
type Batch struct {
	Inputs    []float32
	Labels    []int32
	BatchSize int
	InputDim  int
}

// MakeBatch flattens a batch into contiguous buffers.
func MakeBatch(inputs [][]float32, labels []int) (*Batch, error) {
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("%w: inputs and labels batch sizes don't match: %d != %d", ErrLengthMismatch, len(inputs), len(labels))
	}
	if len(inputs) == 0 {
		return &Batch{}, nil
	}

	batchSize := len(inputs)
	inputDim := len(inputs[0])
	flat := make([]float32, batchSize*inputDim)
	flatLabels := make([]int32, batchSize)
	for i := range batchSize {
		if len(inputs[i]) != inputDim {
			return nil, fmt.Errorf("%w: inconsistent input dimensions at example %d: expected %d, got %d",
				ErrLengthMismatch, i, inputDim, len(inputs[i]))
		}
		copy(flat[i*inputDim:], inputs[i])
		flatLabels[i] = int32(labels[i])
	}

	return &Batch{
		Inputs:    flat,
		Labels:    flatLabels,
		BatchSize: batchSize,
		InputDim:  inputDim,
	}, nil
}

// Row returns the feature vector of example i, backed by the flat buffer.
func (b *Batch) Row(i int) []float32 {
	return b.Inputs[i*b.InputDim : (i+1)*b.InputDim]
}

// ToGomlxTensors converts the batch to a [batch, dim] float32 input tensor and
// a [batch] int32 label tensor.
func (b *Batch) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 || b.InputDim == 0 {
		return tensors.FromAnyValue(make([][]float32, 0)), tensors.FromAnyValue(make([]int32, 0)), nil
	}
	inputs := make([][]float32, b.BatchSize)
	for i := range b.BatchSize {
		inputs[i] = b.Row(i)
	}
	return tensors.FromAnyValue(inputs), tensors.FromAnyValue(b.Labels), nil
}
