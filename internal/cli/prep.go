package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/tomoslice/internal/config"
	"github.com/robert-malhotra/tomoslice/internal/pipeline"
)

func newPrepCmd() *cobra.Command {
	var cfg pipeline.PrepConfig
	cmd := &cobra.Command{
		Use:   "prep SOURCE DEST",
		Short: "Write a shrunk, uncompressed, one slice per chunk copy of a volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input, cfg.Output = args[0], args[1]
			vol, err := pipeline.Prep(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s to %s\n", vol, cfg.Output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.Dataset, "dataset", "d", config.DefaultDataset, "source dataset path")
	f.StringVar(&cfg.OutputDataset, "output-dataset", pipeline.DefaultPrepDataset, "destination dataset path")
	f.IntVarP(&cfg.Shrink, "shrink", "s", 1, "average k by k blocks into one sample")
	return cmd
}
