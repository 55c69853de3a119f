package hdf5

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/tomoslice/internal/dtype"
	"github.com/robert-malhotra/tomoslice/internal/filter"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

func ramp32(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i*7 - 100)
	}
	return out
}

func TestContiguousDataset(t *testing.T) {
	path := tempFile(t, "contiguous.h5")
	f, err := Create(path)
	require.NoError(t, err)

	values := ramp32(4 * 6)
	ds, err := f.Root().CreateDataset("values", []uint64{4, 6}, dtype.For[int32]())
	require.NoError(t, err)
	require.NoError(t, ds.Write(dtype.Encode(values, binary.LittleEndian)))
	assert.ErrorIs(t, ds.Write(make([]byte, 3)), ErrBufferSize)
	_, err = ds.ChunkCount()
	assert.ErrorIs(t, err, ErrNotChunked)
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	rd, err := r.OpenDataset("/values")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 6}, rd.Shape())
	assert.Equal(t, 2, rd.Rank())
	assert.Equal(t, uint64(24), rd.NumElements())
	assert.Equal(t, 4, rd.DtypeSize())
	assert.Nil(t, rd.Chunks())
	assert.Equal(t, message.LayoutContiguous, rd.Layout())
	info, err := rd.Dtype()
	require.NoError(t, err)
	assert.Equal(t, "int32", info.String())

	raw, err := rd.ReadSlice([]uint64{1, 2}, []uint64{2, 3})
	require.NoError(t, err)
	got, err := dtype.Decode[int32](raw, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []int32{values[8], values[9], values[10], values[14], values[15], values[16]}, got)

	size, err := rd.StorageSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(96), size)

	_, err = r.OpenGroup("/values")
	assert.ErrorIs(t, err, ErrNotGroup)
}

func TestChunkedDatasetFilters(t *testing.T) {
	tests := []struct {
		name string
		opts []DatasetOption
	}{
		{"unfiltered", nil},
		{"shuffle deflate", []DatasetOption{WithShuffle(), WithCompression(6)}},
		{"zstd", []DatasetOption{WithFilter(message.FilterInfo{ID: message.FilterZstd, Name: "zstd"})}},
		{"lz4 fletcher32", []DatasetOption{WithFilter(message.FilterInfo{ID: message.FilterLZ4}), WithFletcher32()}},
	}
	shape := []uint64{5, 7}
	values := ramp32(35)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tempFile(t, "chunked.h5")
			f, err := Create(path)
			require.NoError(t, err)
			g, err := f.RequireGroup("/data")
			require.NoError(t, err)
			opts := append([]DatasetOption{WithChunks(2, 3)}, tt.opts...)
			ds, err := g.CreateDataset("x", shape, dtype.For[int32](), opts...)
			require.NoError(t, err)
			require.NoError(t, ds.Write(dtype.Encode(values, binary.LittleEndian)))
			require.NoError(t, f.Close())

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()
			rd, err := r.OpenDataset("/data/x")
			require.NoError(t, err)
			assert.Equal(t, []uint64{2, 3}, rd.Chunks())
			index, err := rd.ChunkIndex()
			require.NoError(t, err)
			assert.Equal(t, message.ChunkIndexFixedArray, index)
			n, err := rd.ChunkCount()
			require.NoError(t, err)
			assert.Equal(t, 9, n)

			raw, err := rd.ReadSlice([]uint64{0, 0}, shape)
			require.NoError(t, err)
			got, err := dtype.Decode[int32](raw, binary.LittleEndian)
			require.NoError(t, err)
			assert.Equal(t, values, got)

			// edge chunk corner
			raw, err = rd.ReadSlice([]uint64{4, 6}, []uint64{1, 1})
			require.NoError(t, err)
			got, err = dtype.Decode[int32](raw, binary.LittleEndian)
			require.NoError(t, err)
			assert.Equal(t, []int32{values[34]}, got)
		})
	}
}

func TestReadSliceIntoBufferSize(t *testing.T) {
	f, err := Create(tempFile(t, "buf.h5"))
	require.NoError(t, err)
	defer f.Close()
	ds, err := f.Root().CreateDataset("d", []uint64{3, 3, 3}, dtype.For[uint16](), WithChunks(1, 3, 3))
	require.NoError(t, err)

	buf := make([]byte, 3*3*2)
	require.NoError(t, ds.ReadSliceInto([]uint64{1, 0, 0}, []uint64{1, 3, 3}, buf))
	assert.Equal(t, make([]byte, 18), buf, "unwritten chunks read as fill")

	err = ds.ReadSliceInto([]uint64{1, 0, 0}, []uint64{1, 3, 3}, buf[:10])
	assert.ErrorIs(t, err, ErrBufferSize)
}

func TestCreateDatasetErrors(t *testing.T) {
	f, err := Create(tempFile(t, "bad.h5"))
	require.NoError(t, err)
	defer f.Close()
	u8 := dtype.For[uint8]()

	tests := []struct {
		name  string
		shape []uint64
		opts  []DatasetOption
	}{
		{"scalar", nil, nil},
		{"zero extent", []uint64{0, 4}, nil},
		{"filters without chunks", []uint64{4}, []DatasetOption{WithCompression(4)}},
		{"chunk rank", []uint64{4, 4}, []DatasetOption{WithChunks(2)}},
		{"zero chunk", []uint64{4, 4}, []DatasetOption{WithChunks(2, 0)}},
	}
	for _, tt := range tests {
		_, err := f.Root().CreateDataset(tt.name, tt.shape, u8, tt.opts...)
		assert.ErrorIs(t, err, ErrInvalidShape, tt.name)
	}
}

func TestDirectDataset(t *testing.T) {
	path := tempFile(t, "direct.h5")
	f, err := Create(path)
	require.NoError(t, err)

	descriptor := message.FilterInfo{
		ID:         message.FilterBlosc2,
		Name:       "wavelet",
		ClientData: []uint32{1, 0, 2, 128},
	}
	ds, err := f.CreateDirectDataset("/exchange/data", DirectDatasetSpec{
		Shape:  []uint64{4, 8, 8},
		Type:   dtype.For[uint16](),
		Chunks: []uint64{1, 8, 8},
		Filter: descriptor,
	})
	require.NoError(t, err)
	assert.Equal(t, "/exchange/data", ds.Path())

	frames := [][]byte{
		[]byte("frame zero"),
		[]byte("the second frame is longer than the first"),
		{0xff},
		make([]byte, 300),
	}
	require.NoError(t, ds.WriteChunk([]uint64{0, 0, 0}, frames[0]))
	require.NoError(t, ds.WriteChunk([]uint64{1, 0, 0}, frames[1]))

	for _, off := range [][]uint64{{0, 1, 0}, {4, 0, 0}, {0, 0}} {
		assert.ErrorIs(t, ds.WriteChunk(off, frames[2]), ErrChunkOffset, "offset %v", off)
	}
	assert.ErrorIs(t, ds.WriteChunk([]uint64{1, 0, 0}, frames[2]), ErrChunkWritten)

	// The file is complete on disk between chunk writes.
	mid, err := Open(path)
	require.NoError(t, err)
	md, err := mid.OpenDataset("/exchange/data")
	require.NoError(t, err)
	n, err := md.ChunkCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	data, mask, err := md.ReadRawChunk([]uint64{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, frames[1], data)
	assert.Zero(t, mask)
	_, _, err = md.ReadRawChunk([]uint64{2, 0, 0})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mid.Close())

	require.NoError(t, ds.WriteChunk([]uint64{2, 0, 0}, frames[2]))
	require.NoError(t, ds.WriteChunk([]uint64{3, 0, 0}, frames[3]))
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	rd, err := r.OpenDataset("/exchange/data")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 8, 8}, rd.Shape())
	assert.Equal(t, []uint64{1, 8, 8}, rd.Chunks())

	filters := rd.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, descriptor.ID, filters[0].ID)
	assert.Equal(t, descriptor.Name, filters[0].Name)
	assert.Equal(t, descriptor.ClientData, filters[0].ClientData)
	assert.False(t, filters[0].Optional)

	chunks, err := rd.StoredChunks()
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, ch := range chunks {
		assert.Equal(t, []uint64{uint64(i), 0, 0}, ch.Offset)
		assert.Equal(t, uint64(len(frames[i])), ch.Size)
		data, _, err := rd.ReadRawChunk(ch.Offset)
		require.NoError(t, err)
		assert.Equal(t, frames[i], data)
	}

	_, err = rd.ReadSlice([]uint64{0, 0, 0}, []uint64{1, 8, 8})
	assert.ErrorIs(t, err, filter.ErrUnsupported, "frames are opaque to the filter pipeline")

	err = rd.WriteRawChunk([]uint64{0, 0, 0}, frames[0], 0)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestWalk(t *testing.T) {
	path := tempFile(t, "walk.h5")
	f, err := Create(path)
	require.NoError(t, err)
	g, err := f.RequireGroup("/exchange")
	require.NoError(t, err)
	_, err = g.CreateDataset("data", []uint64{2, 2}, dtype.For[float32](), WithChunks(1, 2))
	require.NoError(t, err)
	_, err = f.RequireGroup("/meta/empty")
	require.NoError(t, err)
	_, err = f.Root().CreateDataset("flat", []uint64{3}, dtype.For[uint8]())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var groups, datasets []string
	err = r.Walk(func(p string, obj any, err error) error {
		require.NoError(t, err)
		switch obj.(type) {
		case *Group:
			groups = append(groups, p)
		case *Dataset:
			datasets = append(datasets, p)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/exchange", "/meta", "/meta/empty"}, groups)
	assert.Equal(t, []string{"/exchange/data", "/flat"}, datasets)

	var visited []string
	err = r.Walk(func(p string, obj any, err error) error {
		visited = append(visited, p)
		if p == "/exchange" {
			return SkipGroup
		}
		if p == "/meta" {
			return ErrStopWalk
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/exchange", "/meta"}, visited)
}
