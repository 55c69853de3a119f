// Package cli implements the tomoslice command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/tomoslice/internal/config"
	"github.com/robert-malhotra/tomoslice/internal/logging"
	"github.com/robert-malhotra/tomoslice/internal/pipeline"
)

// Version of the tool.
const Version = "0.3.0"

type compressOptions struct {
	configPath    string
	dataset       string
	outputDataset string
	rate          float64
	layers        int
	threads       int
	levels        int
	codec         string
	filterID      int
	logFile       string
	logLevel      string
}

// NewRootCmd builds the command tree. Compression is the root command
// itself: tomoslice INPUT OUTPUT.
func NewRootCmd() *cobra.Command {
	opts := &compressOptions{}
	defaults := config.Default()
	cmd := &cobra.Command{
		Use:   "tomoslice INPUT OUTPUT",
		Short: "Slice-wise lossy wavelet compression of HDF5 volumes",
		Long: `tomoslice compresses a 3-D volume (N, H, W) stored in an HDF5 file slice by
slice. Every slice is encoded on its own and written verbatim as chunk (i, 0, 0)
of a dataset of the same shape in a new file.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
				return pipeline.ArgumentError(fmt.Errorf("expected INPUT and OUTPUT, got %d arguments", len(args)))
			}
			return runCompress(cmd, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	f.StringVarP(&opts.dataset, "dataset", "d", defaults.Container.Dataset, "source dataset path")
	f.StringVar(&opts.outputDataset, "output-dataset", "", "destination dataset path (default: same as --dataset)")
	f.Float64VarP(&opts.rate, "rate", "r", defaults.Compression.Rate, "target compression ratio; 1 or less is lossless")
	f.IntVarP(&opts.layers, "layers", "l", defaults.Compression.Layers, "quality layers")
	f.IntVarP(&opts.threads, "threads", "t", defaults.Compression.Threads, "codec worker threads")
	f.IntVar(&opts.levels, "levels", defaults.Compression.Levels, "wavelet levels; 0 picks automatically")
	f.StringVar(&opts.codec, "codec", defaults.Compression.Codec, "entropy backend: zstd, s2 or lz4")
	f.IntVar(&opts.filterID, "filter-id", defaults.Container.FilterID, "filter id recorded in the destination pipeline")
	f.StringVar(&opts.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	f.StringVar(&opts.logLevel, "log-level", defaults.Log.Level, "debug, info, warning, error or critical")

	cmd.AddCommand(newVerifyCmd(), newInspectCmd(), newPrepCmd())
	return cmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// ExecuteWithContext runs the command line with ctx, which cancels a run
// between slices.
func ExecuteWithContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// settings merges defaults, the config file and the flags the user set.
func (o *compressOptions) settings(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		if err := cfg.Merge(o.configPath); err != nil {
			return cfg, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("dataset") {
		cfg.Container.Dataset = o.dataset
	}
	if changed("output-dataset") {
		cfg.Container.OutputDataset = o.outputDataset
	}
	if changed("filter-id") {
		cfg.Container.FilterID = o.filterID
	}
	if changed("rate") {
		cfg.Compression.Rate = o.rate
	}
	if changed("layers") {
		cfg.Compression.Layers = o.layers
	}
	if changed("threads") {
		cfg.Compression.Threads = o.threads
	}
	if changed("levels") {
		cfg.Compression.Levels = o.levels
	}
	if changed("codec") {
		cfg.Compression.Codec = o.codec
	}
	if changed("log-file") {
		cfg.Log.Logfile = o.logFile
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	return cfg, cfg.Validate()
}

func runCompress(cmd *cobra.Command, opts *compressOptions, input, output string) error {
	cfg, err := opts.settings(cmd)
	if err != nil {
		return pipeline.ArgumentError(err)
	}
	params, err := cfg.Params()
	if err != nil {
		return pipeline.ArgumentError(err)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return pipeline.ArgumentError(err)
	}
	defer logging.Shutdown()

	rt := announcingRuntime{Runtime: pipeline.DefaultRuntime{}, out: cmd.OutOrStdout()}
	sum, err := pipeline.Run(cmd.Context(), pipeline.Config{
		Input:         input,
		Output:        output,
		Dataset:       cfg.Container.Dataset,
		OutputDataset: cfg.DestinationDataset(),
		Params:        params,
		FilterID:      uint16(cfg.Container.FilterID),
	}, rt, pipeline.HDF5Opener{})
	if err != nil {
		logging.Errorf("%v", err)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum.Line())
	return nil
}

// announcingRuntime prints the version line once the codec is up.
type announcingRuntime struct {
	pipeline.Runtime
	out io.Writer
}

func (r announcingRuntime) Init() (string, error) {
	v, err := r.Runtime.Init()
	if err != nil {
		return v, err
	}
	fmt.Fprintf(r.out, "tomoslice %s, %s\n", Version, v)
	return v, nil
}
