package datasets

// This package turns normalized expression matrices into labeled examples
// suitable for model training, and reads the delimited files they come from.
//
// Layout and intended usage:
//
// ExpressionDataset
//   - Holds one feature vector (float32, sample-major) and one integer class
//     code per cell, entirely in memory. Records are immutable once built.
//
// Loader
//   - Serves an ExpressionDataset in shuffled mini-batches. Batches are
//     assembled by a bounded worker pool ahead of the consumer and delivered
//     in order.
//   - Batches convert to gomlx tensors with ToGomlxTensors, and the Loader
//     itself has the Name/Yield/Reset shape of gomlx's train.Dataset.
//
// Dataset is the minimal random-access view the Loader needs.
type Dataset interface {
	Len() int
	Example(i int) (features []float32, label int, err error)
	Batch(indices []int) (features [][]float32, labels []int, err error)
}
