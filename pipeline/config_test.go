package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 128, c.BatchSize)
	assert.Equal(t, 12, c.Workers)
	assert.Equal(t, 1000, c.SampleSize)
	assert.Equal(t, int64(24), *c.Seed)
	assert.Equal(t, 20000.0, c.TargetSum)
	assert.Equal(t, 1.0, *c.LowerPercentile)
	assert.Equal(t, 99.0, *c.UpperPercentile)

	lc := c.LoaderConfig()
	assert.True(t, lc.Shuffle)
	assert.Equal(t, int64(24), lc.Seed)
}

func TestApplyDefaults_KeepsExplicitZeros(t *testing.T) {
	c := Config{Seed: Ptr(int64(0)), LowerPercentile: Ptr(0.0)}
	c.ApplyDefaults()
	assert.Equal(t, int64(0), *c.Seed)
	assert.Equal(t, 0.0, *c.LowerPercentile)
	assert.Equal(t, 99.0, *c.UpperPercentile)
	assert.Equal(t, int64(0), c.LoaderConfig().Seed)
}

func validConfig() Config {
	c := DefaultConfig()
	c.TrainPath, c.TrainLabelsPath = "a", "b"
	c.TestPath, c.TestLabelsPath = "c", "d"
	return c
}

func TestConfigValidate(t *testing.T) {
	vc := validConfig()
	require.NoError(t, vc.Validate())

	tests := map[string]func(c *Config){
		"missing-path":   func(c *Config) { c.TestPath = "" },
		"negative-batch": func(c *Config) { c.BatchSize = -1 },
		"inverted":       func(c *Config) { c.LowerPercentile, c.UpperPercentile = Ptr(90.0), Ptr(10.0) },
		"over-100":       func(c *Config) { c.UpperPercentile = Ptr(101.0) },
		"negative-lower": func(c *Config) { c.LowerPercentile = Ptr(-1.0) },
		"zero-target":    func(c *Config) { c.TargetSum = -5 },
		"nil-seed":       func(c *Config) { c.Seed = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}

	c := validConfig()
	c.Seed = Ptr(int64(0))
	c.LowerPercentile = Ptr(0.0)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
train: train.tsv
train_labels: train_labels.txt
test: test.tsv
test_labels: test_labels.txt
batch_size: 64
sample_size: -1
seed: 0
disable_shuffle: true
`), 0644))
	c, err := LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "train.tsv", c.TrainPath)
	assert.Equal(t, 64, c.BatchSize)
	assert.Equal(t, -1, c.SampleSize)
	assert.True(t, c.DisableShuffle)
	c.ApplyDefaults()
	assert.Equal(t, 12, c.Workers)
	assert.Equal(t, -1, c.SampleSize)
	assert.Equal(t, int64(0), *c.Seed)
	require.NoError(t, c.Validate())

	jsonPath := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"test":"t.csv","lower_percentile":5,"upper_percentile":95}`), 0644))
	c, err = LoadConfig(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "t.csv", c.TestPath)
	assert.Equal(t, 5.0, *c.LowerPercentile)
	assert.Equal(t, 95.0, *c.UpperPercentile)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.conf")
	require.NoError(t, os.WriteFile(badPath, []byte("train: [unclosed\n"), 0644))
	_, err = LoadConfig(badPath)
	assert.Error(t, err)
}

func TestLoadConfig_OnlyLowerPercentile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yml")
	require.NoError(t, os.WriteFile(path, []byte("train: a\ntrain_labels: b\ntest: c\ntest_labels: d\nlower_percentile: 5\n"), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	c.ApplyDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, 5.0, *c.LowerPercentile)
	assert.Equal(t, 99.0, *c.UpperPercentile)
}
