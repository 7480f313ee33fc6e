package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Noofbiz/cellprep/datasets"
	"github.com/Noofbiz/cellprep/expression"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("pipeline: invalid config")
	// ErrLabelCountMismatch is returned when a label table and its matrix
	// describe a different number of cells.
	ErrLabelCountMismatch = errors.New("pipeline: label count does not match sample count")
)

var validate = validator.New()

// Config describes one preparation run. Zero-valued tunables and nil
// optional fields are replaced by the defaults in ApplyDefaults.
type Config struct {
	TrainPath       string `json:"train" yaml:"train" validate:"required"`
	TrainLabelsPath string `json:"train_labels" yaml:"train_labels" validate:"required"`
	TestPath        string `json:"test" yaml:"test" validate:"required"`
	TestLabelsPath  string `json:"test_labels" yaml:"test_labels" validate:"required"`

	// BatchSize defaults to 128 and Workers to 12.
	BatchSize int `json:"batch_size" yaml:"batch_size" validate:"gt=0"`
	Workers   int `json:"workers" yaml:"workers" validate:"gt=0"`

	// SampleSize is the number of cells drawn from each set before
	// normalization (default 1000). A negative value keeps every cell.
	SampleSize int `json:"sample_size" yaml:"sample_size" validate:"ne=0"`
	// Seed drives subsampling and shuffling (default 24). Zero is a valid
	// seed, so only a missing value takes the default.
	Seed           *int64 `json:"seed" yaml:"seed" validate:"required"`
	DisableShuffle bool   `json:"disable_shuffle" yaml:"disable_shuffle"`

	TargetSum float64 `json:"target_sum" yaml:"target_sum" validate:"gt=0"`
	// LowerPercentile (default 1) and UpperPercentile (default 99) are
	// defaulted independently; zero is a valid lower percentile.
	LowerPercentile *float64 `json:"lower_percentile" yaml:"lower_percentile" validate:"required,gte=0,lte=100"`
	UpperPercentile *float64 `json:"upper_percentile" yaml:"upper_percentile" validate:"required,gte=0,lte=100"`

	// Optional outputs.
	PlotDir      string `json:"plot_dir" yaml:"plot_dir"`
	MetricsFile  string `json:"metrics_file" yaml:"metrics_file"`
	ManifestPath string `json:"manifest" yaml:"manifest"`
}

// DefaultConfig returns a Config with every tunable at its default.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued tunables.
func (c *Config) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 128
	}
	if c.Workers == 0 {
		c.Workers = 12
	}
	if c.SampleSize == 0 {
		c.SampleSize = 1000
	}
	if c.Seed == nil {
		c.Seed = Ptr(int64(24))
	}
	def := expression.DefaultOptions()
	if c.TargetSum == 0 {
		c.TargetSum = def.TargetSum
	}
	if c.LowerPercentile == nil {
		c.LowerPercentile = Ptr(def.LowerPercentile)
	}
	if c.UpperPercentile == nil {
		c.UpperPercentile = Ptr(def.UpperPercentile)
	}
}

// Ptr returns a pointer to v, for setting the optional Config fields.
func Ptr[T any](v T) *T { return &v }

// Validate checks field constraints and reports every failing field at once.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if *c.LowerPercentile > *c.UpperPercentile {
		return fmt.Errorf("%w: lower percentile %v above upper percentile %v",
			ErrInvalidConfig, *c.LowerPercentile, *c.UpperPercentile)
	}
	return nil
}

// ScaleOptions returns the normalization options of the run. Defaults must
// have been applied.
func (c *Config) ScaleOptions() expression.Options {
	return expression.Options{
		TargetSum:       c.TargetSum,
		LowerPercentile: *c.LowerPercentile,
		UpperPercentile: *c.UpperPercentile,
	}
}

// LoaderConfig returns the batching parameters of the run. Defaults must have
// been applied.
func (c *Config) LoaderConfig() datasets.LoaderConfig {
	return datasets.LoaderConfig{
		BatchSize: c.BatchSize,
		Workers:   c.Workers,
		Shuffle:   !c.DisableShuffle,
		Seed:      *c.Seed,
	}
}

// LoadConfig reads a Config as YAML, falling back to JSON when the YAML
// parser rejects the file. Defaults are not applied.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	yamlErr := yaml.Unmarshal(data, &c)
	if yamlErr == nil {
		return c, nil
	}
	c = Config{}
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, errors.Join(yamlErr, err))
	}
	return c, nil
}
