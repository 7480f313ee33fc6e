// Package pipeline prepares labeled train and test expression sets for a
// cell-type classifier: it loads both sets, subsamples and harmonizes them,
// encodes their labels and serves them as batched loaders.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Noofbiz/cellprep/datasets"
	"github.com/Noofbiz/cellprep/expression"
	"github.com/Noofbiz/cellprep/labels"
	"github.com/Noofbiz/cellprep/qcplot"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result is everything a training loop needs from a prepared run.
type Result struct {
	RunID string

	Train *datasets.Loader
	Test  *datasets.Loader

	// NumClasses is the number of distinct training labels.
	NumClasses int
	Codec      *labels.Codec

	Report  *expression.Report
	Metrics *Metrics

	// Digest is the sha256 of the codec mapping, set when a manifest was
	// written.
	Digest string
}

// labeledSet is one expression matrix with the label column of its cells.
type labeledSet struct {
	name   string
	matrix *expression.Matrix
	rows   []datasets.LabelRow
}

// Prepare runs the full preparation and returns the train and test loaders.
// Defaults are applied to cfg before validation.
func Prepare(ctx context.Context, cfg Config) (*Result, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	metrics := newMetrics()
	log.Printf("[Run] id=%s seed=%d sample_size=%d", runID, *cfg.Seed, cfg.SampleSize)

	start := time.Now()
	train, test, err := loadSets(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	metrics.observeStage("load", start)

	start = time.Now()
	for _, s := range []*labeledSet{train, test} {
		if err := s.checkLabels(); err != nil {
			return nil, err
		}
		if err := s.subsample(cfg.SampleSize, *cfg.Seed); err != nil {
			return nil, fmt.Errorf("subsample %s: %w", s.name, err)
		}
		var dropped int
		s.matrix, dropped = expression.DedupFeatures(s.matrix)
		log.Printf("[Load] %s: %d features x %d cells (%d duplicate features dropped)",
			s.name, s.matrix.Rows(), s.matrix.Cols(), dropped)
		metrics.Samples.WithLabelValues(s.name).Set(float64(s.matrix.Cols()))
	}
	metrics.observeStage("subsample", start)

	start = time.Now()
	scaled, rep, err := expression.ScaleSets([]*expression.Matrix{train.matrix, test.matrix}, cfg.ScaleOptions())
	if err != nil {
		return nil, fmt.Errorf("scale sets: %w", err)
	}
	train.matrix, test.matrix = scaled[0], scaled[1]
	metrics.observeStage("scale", start)
	metrics.observeReport(rep)
	sr := rep.SumRange()
	log.Printf("[Scale] common features: %d", rep.CommonFeatures)
	log.Printf("[Scale] row sums [%.4g, %.4g], kept [%.4g, %.4g]: %d features",
		sr.Low, sr.High, rep.ExpressionBounds.Low, rep.ExpressionBounds.High, rep.AfterExpression)
	if rep.ZeroMeanDropped > 0 {
		log.Printf("[Scale] dropped %d zero-mean features before CV", rep.ZeroMeanDropped)
	}
	log.Printf("[Scale] CV kept [%.4g, %.4g]: %d features", rep.CVBounds.Low, rep.CVBounds.High, rep.AfterCV)

	start = time.Now()
	codec := labels.Build(datasets.LabelColumn(train.rows))
	trainCodes, err := codec.Encode(datasets.LabelColumn(train.rows))
	if err != nil {
		return nil, fmt.Errorf("encode train labels: %w", err)
	}
	testCodes, err := codec.Encode(datasets.LabelColumn(test.rows))
	if err != nil {
		return nil, fmt.Errorf("encode test labels: %w", err)
	}
	metrics.Classes.Set(float64(codec.NumClasses()))
	metrics.observeStage("encode", start)
	log.Printf("[Labels] %d classes", codec.NumClasses())

	start = time.Now()
	trainLoader, err := buildLoader(train.name, train.matrix, trainCodes, cfg)
	if err != nil {
		return nil, err
	}
	testLoader, err := buildLoader(test.name, test.matrix, testCodes, cfg)
	if err != nil {
		return nil, err
	}
	metrics.observeStage("loaders", start)

	res := &Result{
		RunID:      runID,
		Train:      trainLoader,
		Test:       testLoader,
		NumClasses: codec.NumClasses(),
		Codec:      codec,
		Report:     rep,
		Metrics:    metrics,
	}
	if err := writeOutputs(res, cfg); err != nil {
		return nil, err
	}
	return res, nil
}

// loadSets reads the four input files concurrently.
func loadSets(ctx context.Context, cfg Config) (*labeledSet, *labeledSet, error) {
	train := &labeledSet{name: "train"}
	test := &labeledSet{name: "test"}

	g, ctx := errgroup.WithContext(ctx)
	readMatrix := func(dst **expression.Matrix, path string) func() error {
		return func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := datasets.ReadMatrix(path)
			if err != nil {
				return err
			}
			*dst = m
			return nil
		}
	}
	readLabels := func(dst *[]datasets.LabelRow, path string) func() error {
		return func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := datasets.ReadLabels(path)
			if err != nil {
				return err
			}
			*dst = rows
			return nil
		}
	}
	g.Go(readMatrix(&train.matrix, cfg.TrainPath))
	g.Go(readLabels(&train.rows, cfg.TrainLabelsPath))
	g.Go(readMatrix(&test.matrix, cfg.TestPath))
	g.Go(readLabels(&test.rows, cfg.TestLabelsPath))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// checkLabels requires one label row per matrix column. Rows whose sample id
// differs from the matrix column at the same position are only reported.
func (s *labeledSet) checkLabels() error {
	if len(s.rows) != s.matrix.Cols() {
		return fmt.Errorf("%w: %s has %d label rows for %d cells",
			ErrLabelCountMismatch, s.name, len(s.rows), s.matrix.Cols())
	}
	mismatched := 0
	for i, r := range s.rows {
		if r.Sample != s.matrix.Samples[i] {
			mismatched++
		}
	}
	if mismatched > 0 {
		log.Printf("[Load] warning: %s: %d of %d label rows name a different cell than the matrix column at the same position",
			s.name, mismatched, len(s.rows))
	}
	return nil
}

// subsample keeps n cells drawn with seed from both the matrix columns and
// the label rows. The same seed selects the same positions in both.
func (s *labeledSet) subsample(n int, seed int64) error {
	total := s.matrix.Cols()
	if n < 0 {
		return nil
	}
	if n >= total {
		if n > total {
			log.Printf("[Load] %s: sample size %d exceeds %d cells, keeping all", s.name, n, total)
		}
		return nil
	}
	colIdx, err := expression.SampleIndices(total, n, seed)
	if err != nil {
		return err
	}
	rowIdx, err := expression.SampleIndices(len(s.rows), n, seed)
	if err != nil {
		return err
	}
	s.matrix = s.matrix.SelectColumns(colIdx)
	rows := make([]datasets.LabelRow, len(rowIdx))
	for i, j := range rowIdx {
		rows[i] = s.rows[j]
	}
	s.rows = rows
	return nil
}

func buildLoader(name string, m *expression.Matrix, codes []int, cfg Config) (*datasets.Loader, error) {
	ds, err := datasets.NewExpressionDataset(name, m.Transpose32(), codes)
	if err != nil {
		return nil, fmt.Errorf("%s dataset: %w", name, err)
	}
	l, err := datasets.NewLoader(name, ds, cfg.LoaderConfig())
	if err != nil {
		return nil, fmt.Errorf("%s loader: %w", name, err)
	}
	log.Printf("[Loader] %s: %d cells x %d features, %d batches of %d", name, ds.Len(), ds.Dim(), l.NumBatches(), cfg.BatchSize)
	return l, nil
}

// writeOutputs writes the optional plots, metrics textfile and codec manifest.
func writeOutputs(res *Result, cfg Config) error {
	if cfg.PlotDir != "" {
		if err := qcplot.WriteFilterPlots(cfg.PlotDir, res.Report); err != nil {
			return fmt.Errorf("plots: %w", err)
		}
		log.Printf("[Output] wrote QC plots to %s", cfg.PlotDir)
	}
	if cfg.ManifestPath != "" {
		digest, err := res.Codec.WriteManifest(cfg.ManifestPath, res.RunID)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		res.Digest = digest
		log.Printf("[Output] wrote label manifest to %s (sha256 %s)", cfg.ManifestPath, digest)
	}
	if cfg.MetricsFile != "" {
		if err := res.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		log.Printf("[Output] wrote metrics to %s", cfg.MetricsFile)
	}
	return nil
}
