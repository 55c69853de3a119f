package pipeline

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/robert-malhotra/tomoslice/hdf5"
	"github.com/robert-malhotra/tomoslice/internal/dtype"
	"github.com/robert-malhotra/tomoslice/internal/logging"
	"github.com/robert-malhotra/tomoslice/internal/slicing"
)

// DefaultPrepDataset is where prep writes when no output dataset is named.
const DefaultPrepDataset = "/tomo"

// PrepConfig describes a reduced copy of a source volume.
type PrepConfig struct {
	Input         string
	Output        string
	Dataset       string
	OutputDataset string // empty means DefaultPrepDataset
	Shrink        int    // block size averaged into one sample
}

// Prep writes an uncompressed copy of the source with every slice shrunk
// by block averaging, one slice per chunk. The result is a convenient
// input for compression experiments.
func Prep(ctx context.Context, cfg PrepConfig) (slicing.Volume, error) {
	var out slicing.Volume
	if cfg.Shrink < 1 {
		return out, ArgumentError(fmt.Errorf("shrink factor %d, want at least 1", cfg.Shrink))
	}
	srcFile, err := hdf5.Open(cfg.Input)
	if err != nil {
		return out, runError(KindOpen, "open source", err)
	}
	defer srcFile.Close()
	src, err := srcFile.OpenDataset(cfg.Dataset)
	if err != nil {
		return out, runError(KindOpen, "open source", err)
	}
	info, err := src.Dtype()
	if err != nil {
		return out, runError(KindShape, "source datatype", err)
	}
	vol, err := slicing.NewVolume(src.Shape(), info.Size, info)
	if err != nil {
		return out, runError(KindShape, "source shape", err)
	}
	h, w := vol.Height()/cfg.Shrink, vol.Width()/cfg.Shrink
	out, err = slicing.NewVolume([]uint64{vol.Shape[0], uint64(h), uint64(w)}, info.Size, info)
	if err != nil {
		return out, runError(KindShape, "shrunk shape", fmt.Errorf("%s by %d: %w", vol, cfg.Shrink, err))
	}

	dstFile, err := hdf5.Create(cfg.Output)
	if err != nil {
		return out, runError(KindOpen, "create destination", err)
	}
	defer dstFile.Close()
	name := cfg.OutputDataset
	if name == "" {
		name = DefaultPrepDataset
	}
	parts := hdf5.SplitPath(name)
	if len(parts) == 0 {
		return out, runError(KindOpen, "create destination", fmt.Errorf("%w: %q", hdf5.ErrInvalidPath, name))
	}
	parent, err := dstFile.RequireGroup(hdf5.CleanPath(name + "/.."))
	if err != nil {
		return out, runError(KindOpen, "create destination", err)
	}
	dst, err := parent.CreateDataset(parts[len(parts)-1], out.Dims(), info, hdf5.WithChunks(out.ChunkLayout().Shape...))
	if err != nil {
		return out, runError(KindOpen, "create destination", err)
	}

	buf := make([]byte, vol.SliceBytes())
	small := make([]byte, out.SliceBytes())
	sums := make([]float64, h*w)
	var samples []float64
	reader := NewSliceReader(src, vol)
	for i := 0; i < vol.Slices(); i++ {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("cancelled before slice %d: %w", i, err)
		}
		if err := reader.Read(i, buf); err != nil {
			return out, err
		}
		if samples, err = dtype.Float64s(info, buf, samples); err != nil {
			return out, sliceError(KindRead, i, "samples", err)
		}
		shrink(sums, samples, vol.Width(), h, w, cfg.Shrink)
		if err := dtype.PutFloat64s(info, sums, small); err != nil {
			return out, sliceError(KindEncode, i, "samples", err)
		}
		if err := dst.WriteChunk(out.Chunk(i), small); err != nil {
			return out, sliceError(KindWrite, i, "write chunk", err)
		}
	}
	if err := dstFile.Close(); err != nil {
		return out, runError(KindWrite, "close destination", err)
	}
	logging.Infof("prepared %s (%s) from %s", out, humanize.Bytes(out.TotalBytes()), vol)
	return out, nil
}

// shrink averages k by k blocks of the row-major plane src, stride
// srcWidth, into the h by w plane dst. Partial blocks at the edges are
// dropped.
func shrink(dst, src []float64, srcWidth, h, w, k int) {
	inv := 1 / float64(k*k)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for dy := 0; dy < k; dy++ {
				row := src[(y*k+dy)*srcWidth+x*k:]
				for dx := 0; dx < k; dx++ {
					s += row[dx]
				}
			}
			dst[y*w+x] = s * inv
		}
	}
}
