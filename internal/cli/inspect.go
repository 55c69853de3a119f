package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/tomoslice/hdf5"
	"github.com/robert-malhotra/tomoslice/internal/frame"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "List the groups and datasets of an HDF5 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := hdf5.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return inspect(cmd.OutOrStdout(), f)
		},
	}
}

func inspect(w io.Writer, f *hdf5.File) error {
	fmt.Fprintf(w, "%s: superblock v%d\n", f.Path(), f.Version())
	return f.Walk(func(p string, obj any, err error) error {
		indent := strings.Repeat("  ", len(hdf5.SplitPath(p)))
		if err != nil {
			fmt.Fprintf(w, "%s%s: error: %v\n", indent, p, err)
			return nil
		}
		switch o := obj.(type) {
		case *hdf5.Group:
			n, err := o.NumObjects()
			if err != nil {
				fmt.Fprintf(w, "%s%s/ error: %v\n", indent, p, err)
				return hdf5.SkipGroup
			}
			fmt.Fprintf(w, "%sgroup %s (%d members)\n", indent, p, n)
		case *hdf5.Dataset:
			describeDataset(w, indent, o)
		}
		return nil
	})
}

func describeDataset(w io.Writer, indent string, d *hdf5.Dataset) {
	typ := "unsupported type"
	if info, err := d.Dtype(); err == nil {
		typ = info.String()
	}
	fmt.Fprintf(w, "%sdataset %s %v %s, %s layout\n", indent, d.Path(), d.Shape(), typ, d.Layout())
	chunks := d.Chunks()
	if chunks == nil {
		return
	}
	index, err := d.ChunkIndex()
	if err != nil {
		fmt.Fprintf(w, "%s  chunks %v: error: %v\n", indent, chunks, err)
		return
	}
	total := uint64(1)
	for i, n := range d.Shape() {
		total *= (n + chunks[i] - 1) / chunks[i]
	}
	stored, err := d.ChunkCount()
	if err != nil {
		fmt.Fprintf(w, "%s  chunks %v (%s): error: %v\n", indent, chunks, index, err)
		return
	}
	size, _ := d.StorageSize()
	fmt.Fprintf(w, "%s  chunks %v (%s): %d of %d allocated, %s stored\n",
		indent, chunks, index, stored, total, humanize.Bytes(size))
	for _, fi := range d.Filters() {
		name := fi.Name
		if name == "" {
			name = "-"
		}
		note := ""
		if fi.ID == frame.FilterID {
			if desc, err := frame.ParseDescriptor(fi.ClientData); err == nil {
				note = fmt.Sprintf(" (wavelet frames v%d, %s, rate %d)", desc.Revision, desc.Codec, desc.Quality)
			}
		}
		fmt.Fprintf(w, "%s  filter %d %s %v%s\n", indent, fi.ID, name, fi.ClientData, note)
	}
}
