package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/robert-malhotra/tomoslice/hdf5"
	"github.com/robert-malhotra/tomoslice/internal/dtype"
	"github.com/robert-malhotra/tomoslice/internal/filter"
	"github.com/robert-malhotra/tomoslice/internal/frame"
	"github.com/robert-malhotra/tomoslice/internal/logging"
	"github.com/robert-malhotra/tomoslice/internal/message"
	"github.com/robert-malhotra/tomoslice/internal/slicing"
	"github.com/robert-malhotra/tomoslice/internal/wavelet"
)

// VerifyConfig names a source and the file compressed from it.
type VerifyConfig struct {
	Source            string
	Compressed        string
	Dataset           string
	CompressedDataset string // empty means Dataset
	Layers            int    // layers decoded; 0 decodes all
}

// SliceQuality is the comparison of one decoded slice with its source.
type SliceQuality struct {
	Index         int
	FrameBytes    int
	BaselineBytes int
	PSNR          float64
	SSIM          float64
}

// Report summarizes a verification.
type Report struct {
	Volume        slicing.Volume
	Descriptor    frame.Descriptor
	Slices        []SliceQuality
	RawBytes      int64
	FrameBytes    int64
	BaselineBytes int64 // shuffle+zstd, lossless
	MinPSNR       float64
	MeanPSNR      float64
	MinSSIM       float64
	MeanSSIM      float64
}

// Ratio is raw over compressed bytes.
func (r Report) Ratio() float64 { return float64(r.RawBytes) / float64(r.FrameBytes) }

// BaselineRatio is raw over lossless baseline bytes.
func (r Report) BaselineRatio() float64 { return float64(r.RawBytes) / float64(r.BaselineBytes) }

// Lines is the printed form of r.
func (r Report) Lines() []string {
	return []string{
		fmt.Sprintf("volume %s, %d chunks verified", r.Volume, len(r.Slices)),
		fmt.Sprintf("psnr min=%.2f mean=%.2f dB", r.MinPSNR, r.MeanPSNR),
		fmt.Sprintf("ssim min=%.4f mean=%.4f", r.MinSSIM, r.MeanSSIM),
		fmt.Sprintf("size raw=%s compressed=%s lossless=%s",
			humanize.Bytes(uint64(r.RawBytes)), humanize.Bytes(uint64(r.FrameBytes)), humanize.Bytes(uint64(r.BaselineBytes))),
		fmt.Sprintf("ratio %.2f vs raw, %.2f vs lossless (lossless alone %.2f)",
			r.Ratio(), float64(r.BaselineBytes)/float64(r.FrameBytes), r.BaselineRatio()),
	}
}

// Verify decodes every chunk of the compressed dataset, checks its layout
// against the source and measures fidelity slice by slice.
func Verify(ctx context.Context, cfg VerifyConfig) (Report, error) {
	var rep Report
	srcFile, err := hdf5.Open(cfg.Source)
	if err != nil {
		return rep, runError(KindOpen, "open source", err)
	}
	defer srcFile.Close()
	src, err := srcFile.OpenDataset(cfg.Dataset)
	if err != nil {
		return rep, runError(KindOpen, "open source", err)
	}
	dstFile, err := hdf5.Open(cfg.Compressed)
	if err != nil {
		return rep, runError(KindOpen, "open compressed", err)
	}
	defer dstFile.Close()
	dstPath := cfg.CompressedDataset
	if dstPath == "" {
		dstPath = cfg.Dataset
	}
	dst, err := dstFile.OpenDataset(dstPath)
	if err != nil {
		return rep, runError(KindOpen, "open compressed", err)
	}

	info, err := src.Dtype()
	if err != nil {
		return rep, runError(KindShape, "source datatype", err)
	}
	vol, err := slicing.NewVolume(src.Shape(), info.Size, info)
	if err != nil {
		return rep, runError(KindShape, "source shape", err)
	}
	rep.Volume = vol
	if err := checkLayout(vol, dst); err != nil {
		return rep, runError(KindShape, "compressed layout", err)
	}
	for _, fi := range dst.Filters() {
		if d, err := frame.ParseDescriptor(fi.ClientData); err == nil {
			rep.Descriptor = d
		}
	}

	stored, err := dst.StoredChunks()
	if err != nil {
		return rep, runError(KindRead, "chunk index", err)
	}
	if len(stored) != vol.Slices() {
		return rep, runError(KindShape, "chunk count", fmt.Errorf("%d chunks stored for %d slices", len(stored), vol.Slices()))
	}

	baseline, err := filter.NewPipeline(message.NewFilterPipeline(
		message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{uint32(info.Size)}},
		message.FilterInfo{ID: message.FilterZstd},
	))
	if err != nil {
		return rep, runError(KindCodecInit, "lossless baseline", err)
	}

	h, w := vol.Height(), vol.Width()
	peak := wavelet.Peak(info.Size)
	buf := make([]byte, vol.SliceBytes())
	var ref, got []float64
	rep.MinPSNR, rep.MinSSIM = math.Inf(1), math.Inf(1)
	for i, ch := range stored {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("cancelled before slice %d: %w", i, err)
		}
		if ch.Offset[0] != uint64(i) {
			return rep, sliceError(KindShape, i, "chunk order", fmt.Errorf("chunk at %v", ch.Offset))
		}
		slab := vol.Slice(i)
		if err := src.ReadSliceInto(slab.Offset, slab.Extent, buf); err != nil {
			return rep, sliceError(KindRead, i, "read source", err)
		}
		data, _, err := dst.ReadRawChunk(ch.Offset)
		if err != nil {
			return rep, sliceError(KindRead, i, "read chunk", err)
		}
		if uint64(len(data)) != ch.Size {
			return rep, sliceError(KindRead, i, "read chunk", fmt.Errorf("%d bytes read, index says %d", len(data), ch.Size))
		}
		out, err := wavelet.Decode(data, cfg.Layers)
		if err != nil {
			return rep, sliceError(KindRead, i, "decode", err)
		}
		packed, _, err := baseline.Encode(buf)
		if err != nil {
			return rep, sliceError(KindEncode, i, "lossless baseline", err)
		}

		if ref, err = dtype.Float64s(info, buf, ref); err != nil {
			return rep, sliceError(KindRead, i, "source samples", err)
		}
		if got, err = dtype.Float64s(info, out, got); err != nil {
			return rep, sliceError(KindRead, i, "decoded samples", err)
		}
		psnr, err := wavelet.PSNR(ref, got, peak)
		if err != nil {
			return rep, sliceError(KindRead, i, "psnr", err)
		}
		ssim, err := wavelet.SSIM(ref, got, h, w, peak)
		if err != nil {
			return rep, sliceError(KindRead, i, "ssim", err)
		}

		q := SliceQuality{Index: i, FrameBytes: len(data), BaselineBytes: len(packed), PSNR: psnr, SSIM: ssim}
		rep.Slices = append(rep.Slices, q)
		rep.RawBytes += int64(len(buf))
		rep.FrameBytes += int64(q.FrameBytes)
		rep.BaselineBytes += int64(q.BaselineBytes)
		rep.MinPSNR = math.Min(rep.MinPSNR, psnr)
		rep.MinSSIM = math.Min(rep.MinSSIM, ssim)
		rep.MeanPSNR += psnr
		rep.MeanSSIM += ssim
		logging.Debugf("slice %d: psnr %.2f ssim %.4f, %d bytes", i, psnr, ssim, q.FrameBytes)
	}
	n := float64(len(rep.Slices))
	rep.MeanPSNR /= n
	rep.MeanSSIM /= n
	return rep, nil
}

func checkLayout(vol slicing.Volume, dst *hdf5.Dataset) error {
	shape := dst.Shape()
	if len(shape) != 3 || shape[0] != vol.Shape[0] || shape[1] != vol.Shape[1] || shape[2] != vol.Shape[2] {
		return fmt.Errorf("shape %v, source is %v", shape, vol.Dims())
	}
	want := vol.ChunkLayout().Shape
	chunks := dst.Chunks()
	if len(chunks) != 3 || chunks[0] != want[0] || chunks[1] != want[1] || chunks[2] != want[2] {
		return fmt.Errorf("chunks %v, want %v", chunks, want)
	}
	if dst.DtypeSize() != vol.ElementSize {
		return fmt.Errorf("element size %d, source is %d", dst.DtypeSize(), vol.ElementSize)
	}
	return nil
}
