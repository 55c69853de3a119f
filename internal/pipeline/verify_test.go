package pipeline

import (
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/tomoslice/hdf5"
	"github.com/robert-malhotra/tomoslice/internal/dtype"
)

func TestVerify(t *testing.T) {
	cfg := testConfig(t, writeSource(t, []uint64{4, 32, 32}, volume(4, 32, 32)))
	_, err := Run(context.Background(), cfg, DefaultRuntime{}, HDF5Opener{})
	require.NoError(t, err)

	rep, err := Verify(context.Background(), VerifyConfig{
		Source:     cfg.Input,
		Compressed: cfg.Output,
		Dataset:    cfg.Dataset,
	})
	require.NoError(t, err)
	require.Len(t, rep.Slices, 4)
	assert.Equal(t, int64(4*32*32*2), rep.RawBytes)
	assert.Greater(t, rep.MinPSNR, 40.0)
	assert.GreaterOrEqual(t, rep.MeanPSNR, rep.MinPSNR)
	assert.Greater(t, rep.MinSSIM, 0.5)
	assert.LessOrEqual(t, rep.MeanSSIM, 1.0)
	assert.Greater(t, rep.Ratio(), rep.BaselineRatio(), "lossy beats lossless")
	assert.Equal(t, [3]uint32{1, 32, 32}, rep.Descriptor.Chunk)
	assert.Len(t, rep.Lines(), 5)

	base, err := Verify(context.Background(), VerifyConfig{
		Source:     cfg.Input,
		Compressed: cfg.Output,
		Dataset:    cfg.Dataset,
		Layers:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, rep.FrameBytes, base.FrameBytes)
}

func TestVerifyLossless(t *testing.T) {
	cfg := testConfig(t, writeSource(t, []uint64{2, 16, 16}, volume(2, 16, 16)))
	cfg.Params.Rate = 1
	_, err := Run(context.Background(), cfg, DefaultRuntime{}, HDF5Opener{})
	require.NoError(t, err)

	rep, err := Verify(context.Background(), VerifyConfig{Source: cfg.Input, Compressed: cfg.Output, Dataset: cfg.Dataset})
	require.NoError(t, err)
	assert.True(t, math.IsInf(rep.MinPSNR, 1))
	assert.InDelta(t, 1.0, rep.MeanSSIM, 1e-12)
}

func TestVerifyMismatch(t *testing.T) {
	cfg := testConfig(t, writeSource(t, []uint64{3, 16, 16}, volume(3, 16, 16)))
	cfg.Params.Rate = 1
	_, err := Run(context.Background(), cfg, DefaultRuntime{}, HDF5Opener{})
	require.NoError(t, err)

	other := writeSource(t, []uint64{3, 16, 8}, volume(3, 16, 8))
	_, err = Verify(context.Background(), VerifyConfig{Source: other, Compressed: cfg.Output, Dataset: cfg.Dataset})
	assert.ErrorIs(t, err, ErrShape)

	partial := testConfig(t, cfg.Input)
	partial.Params.Rate = 1
	_, err = Run(context.Background(), partial, DefaultRuntime{}, failingOpener{failAt: 1})
	require.ErrorIs(t, err, ErrWrite)
	_, err = Verify(context.Background(), VerifyConfig{Source: cfg.Input, Compressed: partial.Output, Dataset: cfg.Dataset})
	assert.ErrorIs(t, err, ErrShape)

	_, err = Verify(context.Background(), VerifyConfig{Source: cfg.Input, Compressed: cfg.Output, Dataset: "/nope"})
	assert.ErrorIs(t, err, ErrOpen)
}

func TestPrep(t *testing.T) {
	vals := volume(3, 10, 12)
	input := writeSource(t, []uint64{3, 10, 12}, vals)
	out := filepath.Join(t.TempDir(), "prep.h5")

	vol, err := Prep(context.Background(), PrepConfig{Input: input, Output: out, Dataset: "/exchange/data", Shrink: 3})
	require.NoError(t, err)
	assert.Equal(t, [3]uint64{3, 3, 4}, vol.Shape)

	f, err := hdf5.Open(out)
	require.NoError(t, err)
	defer f.Close()
	ds, err := f.OpenDataset(DefaultPrepDataset)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 3, 4}, ds.Shape())
	assert.Equal(t, []uint64{1, 3, 4}, ds.Chunks())
	assert.Empty(t, ds.Filters())

	raw, err := ds.ReadSlice([]uint64{2, 1, 2}, []uint64{1, 1, 1})
	require.NoError(t, err)
	got, err := dtype.Decode[uint16](raw, binary.LittleEndian)
	require.NoError(t, err)
	var sum float64
	for y := 3; y < 6; y++ {
		for x := 6; x < 9; x++ {
			sum += float64(vals[(2*10+y)*12+x])
		}
	}
	assert.Equal(t, uint16(math.Round(sum/9)), got[0])
}

func TestPrepIdentity(t *testing.T) {
	vals := volume(2, 5, 7)
	input := writeSource(t, []uint64{2, 5, 7}, vals)
	out := filepath.Join(t.TempDir(), "copy.h5")
	_, err := Prep(context.Background(), PrepConfig{Input: input, Output: out, Dataset: "/exchange/data", OutputDataset: "/exchange/data", Shrink: 1})
	require.NoError(t, err)

	f, err := hdf5.Open(out)
	require.NoError(t, err)
	defer f.Close()
	ds, err := f.OpenDataset("/exchange/data")
	require.NoError(t, err)
	raw, err := ds.ReadSlice([]uint64{0, 0, 0}, ds.Shape())
	require.NoError(t, err)
	got, err := dtype.Decode[uint16](raw, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestPrepErrors(t *testing.T) {
	input := writeSource(t, []uint64{2, 4, 4}, volume(2, 4, 4))
	out := filepath.Join(t.TempDir(), "prep.h5")
	_, err := Prep(context.Background(), PrepConfig{Input: input, Output: out, Dataset: "/exchange/data", Shrink: 0})
	assert.ErrorIs(t, err, ErrArgument)
	_, err = Prep(context.Background(), PrepConfig{Input: input, Output: out, Dataset: "/exchange/data", Shrink: 5})
	assert.ErrorIs(t, err, ErrShape)
}
