package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/tomoslice/internal/config"
	"github.com/robert-malhotra/tomoslice/internal/pipeline"
)

func newVerifyCmd() *cobra.Command {
	var cfg pipeline.VerifyConfig
	var perSlice bool
	cmd := &cobra.Command{
		Use:   "verify SOURCE COMPRESSED",
		Short: "Decode every chunk of a compressed file and compare it with its source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Source, cfg.Compressed = args[0], args[1]
			rep, err := pipeline.Verify(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if perSlice {
				for _, q := range rep.Slices {
					fmt.Fprintf(out, "slice %d: %d bytes (lossless %d), psnr %.2f, ssim %.4f\n",
						q.Index, q.FrameBytes, q.BaselineBytes, q.PSNR, q.SSIM)
				}
			}
			for _, line := range rep.Lines() {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.Dataset, "dataset", "d", config.DefaultDataset, "source dataset path")
	f.StringVar(&cfg.CompressedDataset, "output-dataset", "", "compressed dataset path (default: same as --dataset)")
	f.IntVarP(&cfg.Layers, "layers", "l", 0, "quality layers to decode; 0 decodes all")
	f.BoolVar(&perSlice, "per-slice", false, "print one line per slice")
	return cmd
}
