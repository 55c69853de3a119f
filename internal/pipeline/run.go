package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/robert-malhotra/tomoslice/hdf5"
	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/frame"
	"github.com/robert-malhotra/tomoslice/internal/logging"
	"github.com/robert-malhotra/tomoslice/internal/slicing"
	"github.com/robert-malhotra/tomoslice/internal/wavelet"
)

// Config names the files of a run and how to compress.
type Config struct {
	Input         string
	Output        string
	Dataset       string
	OutputDataset string // empty means Dataset
	Params        wavelet.Params
	FilterID      uint16 // 0 means frame.FilterID
}

func (c Config) outputDataset() string {
	if c.OutputDataset != "" {
		return c.OutputDataset
	}
	return c.Dataset
}

// Summary describes a run, complete or not.
type Summary struct {
	Version    string
	Volume     slicing.Volume
	Slices     int
	SliceBytes int
	FrameBytes int64
	Elapsed    time.Duration
}

// Ratio is raw over stored bytes for the slices written.
func (s Summary) Ratio() float64 {
	return compress.Ratio(int64(s.Slices)*int64(s.SliceBytes), s.FrameBytes)
}

// Line is the one line report printed after a run.
func (s Summary) Line() string {
	secs := s.Elapsed.Seconds()
	per := 0.0
	if s.Slices > 0 {
		per = secs / float64(s.Slices)
	}
	return fmt.Sprintf("slices=%d slice_bytes=%d elapsed=%.3fs per_slice=%.4fs ratio=%.2f",
		s.Slices, s.SliceBytes, secs, per, s.Ratio())
}

// Run compresses cfg.Input into cfg.Output. Slices are processed strictly
// in order, so after a failure at slice i the destination holds chunks
// 0..i-1 and nothing else.
func Run(ctx context.Context, cfg Config, rt Runtime, op Opener) (sum Summary, err error) {
	start := time.Now()
	defer func() { sum.Elapsed = time.Since(start) }()

	version, err := rt.Init()
	if err != nil {
		return sum, runError(KindCodecInit, "runtime init", err)
	}
	defer rt.Shutdown()
	sum.Version = version

	src, srcCloser, err := op.OpenSource(cfg.Input, cfg.Dataset)
	if err != nil {
		return sum, runError(KindOpen, "open source", err)
	}
	defer srcCloser.Close()

	info, err := src.Dtype()
	if err != nil {
		return sum, runError(KindShape, "source datatype", err)
	}
	vol, err := slicing.NewVolume(src.Shape(), info.Size, info)
	if err != nil {
		return sum, runError(KindShape, "source shape", err)
	}
	sum.Volume = vol
	sum.SliceBytes = vol.SliceBytes()
	logging.Infof("source %s:%s is %s, %s per slice", cfg.Input, cfg.Dataset, vol, humanize.Bytes(uint64(vol.SliceBytes())))

	// A volume the codec rejects must not create an output file.
	codec, err := wavelet.NewContext(wavelet.GeometryOf(vol.Height(), vol.Width(), info), cfg.Params)
	if err != nil {
		return sum, runError(KindCodecInit, "codec context", err)
	}
	defer codec.Close()

	var chunk [3]uint64
	copy(chunk[:], vol.ChunkLayout().Shape)
	desc, err := frame.NewDescriptor(chunk, vol.ElementSize, cfg.Params.Format, cfg.Params.Rate)
	if err != nil {
		return sum, runError(KindCodecInit, "filter descriptor", err)
	}
	filter := desc.FilterInfo()
	if cfg.FilterID != 0 {
		filter.ID = cfg.FilterID
	}

	sink, dstCloser, err := op.CreateSink(cfg.Output, cfg.outputDataset(), hdf5.DirectDatasetSpec{
		Shape:  vol.Dims(),
		Type:   info,
		Chunks: vol.ChunkLayout().Shape,
		Filter: filter,
	})
	if err != nil {
		return sum, runError(KindOpen, "create destination", err)
	}
	defer func() {
		if cerr := dstCloser.Close(); cerr != nil && err == nil {
			err = runError(KindWrite, "close destination", cerr)
		}
	}()
	logging.Infof("writing %d chunks of %v to %s:%s (levels %d, filter %d)",
		vol.Slices(), vol.ChunkLayout().Shape, cfg.Output, cfg.outputDataset(), codec.Levels(), filter.ID)

	buf := make([]byte, vol.SliceBytes())
	reader := NewSliceReader(src, vol)
	for i := 0; i < vol.Slices(); i++ {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("cancelled before slice %d: %w", i, err)
		}
		if err := reader.Read(i, buf); err != nil {
			return sum, err
		}
		obj, err := codec.Encode(buf)
		if err != nil {
			return sum, sliceError(KindEncode, i, "encode", err)
		}
		fr, err := frame.SerializeOwned(obj)
		if err != nil {
			return sum, sliceError(KindSerialize, i, "serialize", err)
		}
		err = sink.WriteChunk(vol.Chunk(i), fr.Data)
		size := fr.Size()
		fr.Release()
		if err != nil {
			return sum, sliceError(KindWrite, i, "write chunk", err)
		}
		sum.Slices++
		sum.FrameBytes += int64(size)
		logging.Debugf("slice %d: %s, step %d", i, humanize.Bytes(uint64(size)), obj.Step)
	}
	logging.Infof("compressed %s into %s, ratio %.2f",
		humanize.Bytes(vol.TotalBytes()), humanize.Bytes(uint64(sum.FrameBytes)), sum.Ratio())
	return sum, nil
}
