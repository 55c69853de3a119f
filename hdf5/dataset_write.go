package hdf5

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robert-malhotra/tomoslice/internal/dtype"
	"github.com/robert-malhotra/tomoslice/internal/filter"
	"github.com/robert-malhotra/tomoslice/internal/layout"
	"github.com/robert-malhotra/tomoslice/internal/message"
	"github.com/robert-malhotra/tomoslice/internal/object"
)

// chunkWriter places chunks of a dataset created in this session.
type chunkWriter struct {
	index      *layout.FixedArray
	pipeline   *filter.Pipeline
	pipeErr    error
	chunkDims  []uint64
	grid       []uint64
	chunkBytes uint64
}

// CreateDataset creates a dataset called name with the given shape and
// element type. Without WithChunks the data is stored contiguously and
// zero filled; chunked datasets start with no chunks stored.
func (g *Group) CreateDataset(name string, shape []uint64, info dtype.Info, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: scalar datasets are not written", ErrInvalidShape)
	}
	for d, n := range shape {
		if n == 0 {
			return nil, fmt.Errorf("%w: dimension %d is zero", ErrInvalidShape, d)
		}
	}
	dt := info.Datatype()
	elem := uint64(dt.Size)
	if elem == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, info)
	}

	o := &datasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	pipeline := o.pipeline(int(elem))

	f := g.file
	d := &Dataset{
		file:     f,
		path:     joinPath(g.path, name),
		space:    message.NewDataspace(shape, nil),
		datatype: dt,
		pipeline: pipeline,
	}

	if o.chunks == nil {
		if pipeline != nil {
			return nil, fmt.Errorf("%w: filters need chunked storage", ErrInvalidShape)
		}
		size := elem
		for _, n := range shape {
			size *= n
		}
		addr := f.allocator.Alloc(size, "dataset data")
		d.layout = message.NewContiguousLayout(addr, size)
		d.fill = message.NewFillValue(message.AllocEarly)
	} else {
		cw, err := f.newChunkWriter(shape, o.chunks, elem, pipeline)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.path, err)
		}
		d.chunks = cw
		d.layout = message.NewFixedArrayLayout(cw.chunkDims, uint32(elem), cw.index.PageBits(), cw.index.Address())
		d.fill = message.NewFillValue(message.AllocIncremental)
	}

	raw, err := object.Encode(f.writer.Config(), object.DatasetMessages(d.space, d.datatype, d.fill, d.layout, d.pipeline), 0)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset header: %w", err)
	}
	d.addr = f.allocator.Alloc(uint64(len(raw)), "dataset header")
	if err := f.writer.At(int64(d.addr)).WriteBytes(raw); err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}
	if err := g.addLink(message.NewHardLink(name, d.addr)); err != nil {
		return nil, err
	}
	if err := f.commitEOF(); err != nil {
		return nil, err
	}
	return d, nil
}

func (f *File) newChunkWriter(shape, chunks []uint64, elem uint64, pipeline *message.FilterPipeline) (*chunkWriter, error) {
	if len(chunks) != len(shape) {
		return nil, fmt.Errorf("%w: chunk rank %d, dataset rank %d", ErrInvalidShape, len(chunks), len(shape))
	}
	cw := &chunkWriter{
		chunkDims:  slices.Clone(chunks),
		grid:       make([]uint64, len(shape)),
		chunkBytes: elem,
	}
	n := uint64(1)
	for d, c := range chunks {
		if c == 0 {
			return nil, fmt.Errorf("%w: chunk dimension %d is zero", ErrInvalidShape, d)
		}
		cw.grid[d] = (shape[d] + c - 1) / c
		n *= cw.grid[d]
		cw.chunkBytes *= c
	}
	if cw.chunkBytes > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: chunk of %d bytes exceeds 4 GiB", ErrInvalidShape, cw.chunkBytes)
	}
	cw.pipeline, cw.pipeErr = filter.NewPipeline(pipeline)

	index, err := layout.CreateFixedArray(f.writer, f.allocator, n, cw.chunkBytes, pipeline != nil)
	if err != nil {
		return nil, err
	}
	cw.index = index
	return cw, nil
}

// position returns the index entry of the chunk starting at offset.
func (cw *chunkWriter) position(offset []uint64) (int, error) {
	if len(offset) != len(cw.grid) {
		return 0, fmt.Errorf("%w: offset rank %d, dataset rank %d", ErrChunkOffset, len(offset), len(cw.grid))
	}
	var i uint64
	for d, o := range offset {
		if o%cw.chunkDims[d] != 0 || o/cw.chunkDims[d] >= cw.grid[d] {
			return 0, fmt.Errorf("%w: %v", ErrChunkOffset, offset)
		}
		i = i*cw.grid[d] + o/cw.chunkDims[d]
	}
	return int(i), nil
}

// WriteChunk runs data, one full chunk in file byte order, through the
// filter pipeline and stores it at offset.
func (d *Dataset) WriteChunk(offset []uint64, data []byte) error {
	cw, err := d.chunkWriter()
	if err != nil {
		return err
	}
	if uint64(len(data)) != cw.chunkBytes {
		return fmt.Errorf("%w: chunk is %d bytes, want %d", ErrBufferSize, len(data), cw.chunkBytes)
	}
	if cw.pipeErr != nil {
		return fmt.Errorf("dataset %s: %w", d.path, cw.pipeErr)
	}
	stored, mask, err := cw.pipeline.Encode(data)
	if err != nil {
		return fmt.Errorf("filtering chunk %v of %s: %w", offset, d.path, err)
	}
	return d.WriteRawChunk(offset, stored, mask)
}

// WriteRawChunk stores data verbatim as the chunk starting at offset, with
// the given filter mask. The chunk is appended to the file and indexed
// before returning, and every chunk is written at most once.
func (d *Dataset) WriteRawChunk(offset []uint64, data []byte, mask uint32) error {
	cw, err := d.chunkWriter()
	if err != nil {
		return err
	}
	i, err := cw.position(offset)
	if err != nil {
		return err
	}
	if cw.index.Defined(i) {
		return fmt.Errorf("%w: %v in %s", ErrChunkWritten, offset, d.path)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty chunk", ErrBufferSize)
	}
	if d.pipeline == nil && uint64(len(data)) != cw.chunkBytes {
		return fmt.Errorf("%w: unfiltered chunk is %d bytes, want %d", ErrBufferSize, len(data), cw.chunkBytes)
	}

	f := d.file
	addr := f.allocator.Alloc(uint64(len(data)), "chunk")
	if err := f.writer.At(int64(addr)).WriteBytes(data); err != nil {
		return fmt.Errorf("writing chunk %v of %s: %w", offset, d.path, err)
	}
	if err := cw.index.Set(i, addr, uint64(len(data)), mask); err != nil {
		return fmt.Errorf("indexing chunk %v of %s: %w", offset, d.path, err)
	}
	d.storage = nil
	return f.commitEOF()
}

// Write stores the whole dataset. Contiguous datasets are written in one
// pass; chunked ones are split and written chunk by chunk, so none of
// their chunks may have been written yet.
func (d *Dataset) Write(data []byte) error {
	if !d.file.writable {
		return ErrReadOnly
	}
	if want := d.SliceSize(d.space.Dimensions); uint64(len(data)) != want {
		return fmt.Errorf("%w: have %d bytes, dataset is %d", ErrBufferSize, len(data), want)
	}
	switch d.layout.Class {
	case message.LayoutContiguous:
		if err := d.file.writer.At(int64(d.layout.Address)).WriteBytes(data); err != nil {
			return fmt.Errorf("writing %s: %w", d.path, err)
		}
		d.storage = nil
		return nil
	case message.LayoutChunked:
		return d.writeChunks(data)
	}
	return fmt.Errorf("%w: writing %s layout", ErrUnsupported, d.layout.Class)
}

// writeChunks cuts data into chunks, zero padding edge chunks.
func (d *Dataset) writeChunks(data []byte) error {
	cw, err := d.chunkWriter()
	if err != nil {
		return err
	}
	dims := d.space.Dimensions
	elem := uint64(d.datatype.Size)
	rank := len(dims)
	n := 1
	for _, g := range cw.grid {
		n *= int(g)
	}
	chunk := make([]byte, cw.chunkBytes)
	offset := make([]uint64, rank)
	for k := 0; k < n; k++ {
		rem := uint64(k)
		for dim := rank - 1; dim >= 0; dim-- {
			offset[dim] = (rem % cw.grid[dim]) * cw.chunkDims[dim]
			rem /= cw.grid[dim]
		}
		clear(chunk)
		copyIntoChunk(chunk, data, dims, cw.chunkDims, offset, elem)
		if err := d.WriteChunk(offset, chunk); err != nil {
			return err
		}
	}
	return nil
}

// copyIntoChunk copies the part of the dataset image src that falls in the
// chunk at offset into chunk, row by row along the last dimension.
func copyIntoChunk(chunk, src []byte, dims, chunkDims, offset []uint64, elem uint64) {
	rank := len(dims)
	extent := make([]uint64, rank)
	for d := range dims {
		extent[d] = min(chunkDims[d], dims[d]-offset[d])
	}
	rowBytes := extent[rank-1] * elem
	idx := make([]uint64, rank-1)
	for {
		var srcOff, dstOff uint64
		for d := 0; d < rank; d++ {
			var i uint64
			if d < rank-1 {
				i = idx[d]
			}
			srcOff = srcOff*dims[d] + offset[d] + i
			dstOff = dstOff*chunkDims[d] + i
		}
		copy(chunk[dstOff*elem:dstOff*elem+rowBytes], src[srcOff*elem:srcOff*elem+rowBytes])

		d := rank - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < extent[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

func (d *Dataset) chunkWriter() (*chunkWriter, error) {
	switch {
	case d.file.closed:
		return nil, ErrClosed
	case !d.file.writable:
		return nil, ErrReadOnly
	case d.layout.Class != message.LayoutChunked:
		return nil, fmt.Errorf("%w: %s", ErrNotChunked, d.path)
	case d.chunks == nil:
		return nil, fmt.Errorf("%w: %s was not created in this session", ErrReadOnly, d.path)
	}
	return d.chunks, nil
}

// DirectDatasetSpec describes a dataset whose chunks are produced outside
// the filter pipeline. Filter is recorded in the pipeline message so
// readers know how to decode the chunks.
type DirectDatasetSpec struct {
	Shape  []uint64
	Type   dtype.Info
	Chunks []uint64
	Filter message.FilterInfo
}

// DirectDataset accepts pre-encoded chunks.
type DirectDataset struct {
	*Dataset
}

// CreateDirectDataset creates the dataset at p, creating missing parent
// groups.
func (f *File) CreateDirectDataset(p string, def DirectDatasetSpec) (*DirectDataset, error) {
	if !f.writable {
		return nil, ErrReadOnly
	}
	parts := SplitPath(p)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	parent, err := f.root.RequireGroup("/" + strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return nil, err
	}
	if def.Chunks == nil {
		return nil, fmt.Errorf("%w: direct datasets are chunked", ErrInvalidShape)
	}
	d, err := parent.CreateDataset(parts[len(parts)-1], def.Shape, def.Type,
		WithChunks(def.Chunks...), WithFilter(def.Filter))
	if err != nil {
		return nil, err
	}
	return &DirectDataset{Dataset: d}, nil
}

// WriteChunk stores an encoded chunk verbatim at offset with an empty
// filter mask.
func (d *DirectDataset) WriteChunk(offset []uint64, frame []byte) error {
	return d.WriteRawChunk(offset, frame, 0)
}
