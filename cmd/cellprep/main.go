package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Noofbiz/cellprep/datasets"
	"github.com/Noofbiz/cellprep/pipeline"
	"github.com/spf13/cobra"
)

// cliOptions holds the values bound to the command's flags. Each root
// command owns its own set.
type cliOptions struct {
	configPath           string
	printEffectiveConfig bool
	iterate              bool

	cfg             pipeline.Config
	seed            int64
	lowerPercentile float64
	upperPercentile float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("cellprep: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	cmd, _ := newRootCmdWithOptions()
	return cmd
}

// newRootCmdWithOptions builds the root command together with the options its
// flags write to.
func newRootCmdWithOptions() (*cobra.Command, *cliOptions) {
	opts := &cliOptions{}
	rootCmd := &cobra.Command{
		Use:   "cellprep",
		Short: "Prepare labeled single-cell expression sets for a cell-type classifier",
		Long: `cellprep loads a labeled training and test expression matrix, keeps the
genes they share, normalizes and variance-filters them together, encodes the
cell-type labels and builds batched loaders. CLI flags override values from
--config.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML or JSON run configuration")
	f.StringVar(&opts.cfg.TrainPath, "train", "", "training matrix (genes x cells, .csv/.tsv, optionally .gz)")
	f.StringVar(&opts.cfg.TrainLabelsPath, "train-labels", "", "training labels (cell id<TAB>label, no header)")
	f.StringVar(&opts.cfg.TestPath, "test", "", "test matrix")
	f.StringVar(&opts.cfg.TestLabelsPath, "test-labels", "", "test labels")
	f.IntVar(&opts.cfg.BatchSize, "batch-size", 128, "examples per batch")
	f.IntVar(&opts.cfg.Workers, "workers", 12, "batch assembly workers")
	f.IntVar(&opts.cfg.SampleSize, "sample-size", 1000, "cells drawn from each set (-1 keeps all)")
	f.Int64Var(&opts.seed, "seed", 24, "seed for subsampling and shuffling")
	f.BoolVar(&opts.cfg.DisableShuffle, "no-shuffle", false, "serve batches in file order")
	f.Float64Var(&opts.cfg.TargetSum, "target-sum", 20000, "per-cell total after library-size normalization")
	f.Float64Var(&opts.lowerPercentile, "lower-percentile", 1, "lower percentile kept by the feature filters")
	f.Float64Var(&opts.upperPercentile, "upper-percentile", 99, "upper percentile kept by the feature filters")
	f.StringVar(&opts.cfg.PlotDir, "plots", "", "write QC histograms to this directory")
	f.StringVar(&opts.cfg.MetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	f.StringVar(&opts.cfg.ManifestPath, "manifest", "", "write the label manifest (canonical JSON) to this path")
	f.BoolVar(&opts.printEffectiveConfig, "print-effective-config", false, "print the merged configuration and exit")
	f.BoolVar(&opts.iterate, "iterate", false, "run one epoch over each loader after preparing")
	return rootCmd, opts
}

func run(cmd *cobra.Command, opts *cliOptions) error {
	cfg, err := effectiveConfig(cmd, opts)
	if err != nil {
		return err
	}
	if opts.printEffectiveConfig {
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Prepare(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("run %s\n", res.RunID)
	fmt.Printf("features: %s\n", res.Report)
	fmt.Printf("train: %d cells, %d batches\n", res.Train.Dataset().Len(), res.Train.NumBatches())
	fmt.Printf("test:  %d cells, %d batches\n", res.Test.Dataset().Len(), res.Test.NumBatches())
	fmt.Printf("nt = %d\n", res.NumClasses)
	for code, t := range res.Codec.Types() {
		fmt.Printf("  %3d  %s\n", code, t)
	}

	if opts.iterate {
		for _, l := range []*datasets.Loader{res.Train, res.Test} {
			n := 0
			if err := l.Epoch(ctx, func(b *datasets.Batch) error {
				n += b.BatchSize
				return nil
			}); err != nil {
				return fmt.Errorf("iterate %s: %w", l.Name(), err)
			}
			log.Printf("[Loader] %s: epoch served %d examples", l.Name(), n)
		}
	}
	return nil
}

// effectiveConfig loads --config when given and applies the flags the user
// set explicitly on top of it.
func effectiveConfig(cmd *cobra.Command, opts *cliOptions) (pipeline.Config, error) {
	flagCfg := opts.cfg
	flagCfg.Seed = pipeline.Ptr(opts.seed)
	flagCfg.LowerPercentile = pipeline.Ptr(opts.lowerPercentile)
	flagCfg.UpperPercentile = pipeline.Ptr(opts.upperPercentile)
	if opts.configPath == "" {
		flagCfg.ApplyDefaults()
		return flagCfg, nil
	}
	cfg, err := pipeline.LoadConfig(opts.configPath)
	if err != nil {
		return cfg, err
	}
	log.Printf("Loaded config from %s", opts.configPath)

	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("train", func() { cfg.TrainPath = flagCfg.TrainPath })
	set("train-labels", func() { cfg.TrainLabelsPath = flagCfg.TrainLabelsPath })
	set("test", func() { cfg.TestPath = flagCfg.TestPath })
	set("test-labels", func() { cfg.TestLabelsPath = flagCfg.TestLabelsPath })
	set("batch-size", func() { cfg.BatchSize = flagCfg.BatchSize })
	set("workers", func() { cfg.Workers = flagCfg.Workers })
	set("sample-size", func() { cfg.SampleSize = flagCfg.SampleSize })
	set("seed", func() { cfg.Seed = flagCfg.Seed })
	set("no-shuffle", func() { cfg.DisableShuffle = flagCfg.DisableShuffle })
	set("target-sum", func() { cfg.TargetSum = flagCfg.TargetSum })
	set("lower-percentile", func() { cfg.LowerPercentile = flagCfg.LowerPercentile })
	set("upper-percentile", func() { cfg.UpperPercentile = flagCfg.UpperPercentile })
	set("plots", func() { cfg.PlotDir = flagCfg.PlotDir })
	set("metrics-file", func() { cfg.MetricsFile = flagCfg.MetricsFile })
	set("manifest", func() { cfg.ManifestPath = flagCfg.ManifestPath })
	cfg.ApplyDefaults()
	return cfg, nil
}
