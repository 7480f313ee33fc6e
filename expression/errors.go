package expression

import "errors"

var (
	// ErrNoMatrices indicates ScaleSets was called without any input.
	ErrNoMatrices = errors.New("expression: at least one matrix is required")
	// ErrEmptyMatrix indicates a matrix with no features or no samples.
	ErrEmptyMatrix = errors.New("expression: matrix has no features or no samples")
	// ErrShape indicates the id slices do not match the data dimensions.
	ErrShape = errors.New("expression: feature/sample ids do not match data shape")
	// ErrInvalidValue indicates a negative, NaN or infinite count.
	ErrInvalidValue = errors.New("expression: counts must be finite and non-negative")
	// ErrMissingCommonFeatures indicates the inputs share no feature ids.
	ErrMissingCommonFeatures = errors.New("expression: no common features across matrices")
	// ErrZeroColumnSum indicates a sample whose total expression is zero.
	ErrZeroColumnSum = errors.New("expression: sample has zero total expression")
	// ErrDegenerateFilter indicates a filter stage retained no rows.
	ErrDegenerateFilter = errors.New("expression: filter retained no rows")
	// ErrInvalidOptions indicates out-of-range normalization options.
	ErrInvalidOptions = errors.New("expression: invalid options")
	// ErrSampleTooLarge indicates a subsample larger than the population.
	ErrSampleTooLarge = errors.New("expression: sample size exceeds population")
)
