package hdf5

import (
	"errors"
	"fmt"
	"path"
	"slices"

	"github.com/robert-malhotra/tomoslice/internal/dtype"
	"github.com/robert-malhotra/tomoslice/internal/layout"
	"github.com/robert-malhotra/tomoslice/internal/message"
	"github.com/robert-malhotra/tomoslice/internal/object"
)

// Dataset is an HDF5 dataset.
type Dataset struct {
	file     *File
	path     string
	addr     uint64
	space    *message.Dataspace
	datatype *message.Datatype
	layout   *message.DataLayout
	pipeline *message.FilterPipeline
	fill     *message.FillValue

	// storage is the layout reader, built on first use and dropped when
	// chunks are written so the index is read again.
	storage layout.Layout

	// chunks is set for chunked datasets created by this package.
	chunks *chunkWriter
}

// ChunkInfo describes one stored chunk.
type ChunkInfo struct {
	Offset     []uint64 // first element of the chunk
	Address    uint64
	Size       uint64 // stored bytes
	FilterMask uint32
}

// FilterInfo describes one stage of a dataset's filter pipeline.
type FilterInfo struct {
	ID         uint16
	Name       string
	Optional   bool
	ClientData []uint32
}

func newDataset(f *File, p string, addr uint64, header *object.Header) (*Dataset, error) {
	d := &Dataset{
		file:     f,
		path:     p,
		addr:     addr,
		space:    header.Dataspace(),
		datatype: header.Datatype(),
		layout:   header.DataLayout(),
		pipeline: header.FilterPipeline(),
		fill:     header.FillValue(),
	}
	switch {
	case d.space == nil:
		return nil, fmt.Errorf("dataset %s: missing dataspace message", p)
	case d.datatype == nil:
		return nil, fmt.Errorf("dataset %s: missing datatype message", p)
	case d.layout == nil:
		return nil, fmt.Errorf("dataset %s: missing layout message", p)
	}
	return d, nil
}

// Name returns the last component of the dataset path.
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the absolute path of the dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Address returns the file address of the dataset's object header.
func (d *Dataset) Address() uint64 {
	return d.addr
}

// Shape returns the current dimensions.
func (d *Dataset) Shape() []uint64 {
	return slices.Clone(d.space.Dimensions)
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.space.Rank()
}

// NumElements returns the number of elements.
func (d *Dataset) NumElements() uint64 {
	return d.space.NumElements()
}

// DtypeSize returns the size of one element in bytes.
func (d *Dataset) DtypeSize() int {
	return int(d.datatype.Size)
}

// Dtype returns the element type. Only integer and floating point types
// are described.
func (d *Dataset) Dtype() (dtype.Info, error) {
	return dtype.InfoOf(d.datatype)
}

// Layout returns the storage class.
func (d *Dataset) Layout() message.LayoutClass {
	return d.layout.Class
}

// Chunks returns the chunk extent, or nil if the dataset is not chunked.
func (d *Dataset) Chunks() []uint64 {
	if d.layout.Class != message.LayoutChunked {
		return nil
	}
	return slices.Clone(d.layout.ChunkDims)
}

// ChunkIndex returns the chunk index structure of a chunked dataset.
func (d *Dataset) ChunkIndex() (message.ChunkIndexType, error) {
	c, err := d.chunked()
	if err != nil {
		return 0, err
	}
	return c.IndexType(), nil
}

// Filters returns the filter pipeline in write order.
func (d *Dataset) Filters() []FilterInfo {
	if d.pipeline == nil {
		return nil
	}
	out := make([]FilterInfo, len(d.pipeline.Filters))
	for i, f := range d.pipeline.Filters {
		out[i] = FilterInfo{
			ID:         f.ID,
			Name:       f.Name,
			Optional:   f.IsOptional(),
			ClientData: slices.Clone(f.ClientData),
		}
	}
	return out
}

// SliceSize returns the byte size of a selection with extent count.
func (d *Dataset) SliceSize(count []uint64) uint64 {
	n := uint64(d.datatype.Size)
	for _, c := range count {
		n *= c
	}
	return n
}

// ReadSlice reads the hyperslab at start with extent count into a new
// buffer, row-major, in the file's element byte order.
func (d *Dataset) ReadSlice(start, count []uint64) ([]byte, error) {
	if len(count) != d.Rank() {
		return nil, fmt.Errorf("%w: selection rank %d, dataset rank %d", layout.ErrOutOfBounds, len(count), d.Rank())
	}
	buf := make([]byte, d.SliceSize(count))
	if err := d.ReadSliceInto(start, count, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadSliceInto reads the hyperslab at start with extent count into buf,
// whose length must equal the selection size.
func (d *Dataset) ReadSliceInto(start, count []uint64, buf []byte) error {
	if d.file.closed {
		return ErrClosed
	}
	if want := d.SliceSize(count); uint64(len(buf)) != want {
		return fmt.Errorf("%w: have %d bytes, selection is %d", ErrBufferSize, len(buf), want)
	}
	s, err := d.reader()
	if err != nil {
		return err
	}
	if err := s.ReadHyperslab(start, count, buf); err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return nil
}

// ReadRawChunk returns the stored bytes of the chunk whose first element
// is offset, and its filter mask. No filter is applied.
func (d *Dataset) ReadRawChunk(offset []uint64) ([]byte, uint32, error) {
	c, err := d.chunked()
	if err != nil {
		return nil, 0, err
	}
	data, mask, err := c.RawChunk(offset)
	if err != nil {
		if errors.Is(err, layout.ErrChunkNotFound) {
			return nil, 0, fmt.Errorf("%w: chunk %v of %s", ErrNotFound, offset, d.path)
		}
		return nil, 0, err
	}
	return data, mask, nil
}

// ChunkCount returns the number of stored chunks.
func (d *Dataset) ChunkCount() (int, error) {
	c, err := d.chunked()
	if err != nil {
		return 0, err
	}
	return c.ChunkCount()
}

// StoredChunks lists the stored chunks in row-major order.
func (d *Dataset) StoredChunks() ([]ChunkInfo, error) {
	c, err := d.chunked()
	if err != nil {
		return nil, err
	}
	chunks, err := c.Chunks()
	if err != nil {
		return nil, err
	}
	out := make([]ChunkInfo, len(chunks))
	for i, ch := range chunks {
		out[i] = ChunkInfo{Offset: ch.Offset, Address: ch.Address, Size: ch.Size, FilterMask: ch.FilterMask}
	}
	return out, nil
}

// StorageSize returns the bytes the dataset occupies in the file, not
// counting its index.
func (d *Dataset) StorageSize() (uint64, error) {
	switch d.layout.Class {
	case message.LayoutCompact:
		return uint64(len(d.layout.CompactData)), nil
	case message.LayoutContiguous:
		if d.file.reader.IsUndefinedOffset(d.layout.Address) {
			return 0, nil
		}
		return d.layout.Size, nil
	}
	chunks, err := d.StoredChunks()
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, ch := range chunks {
		n += ch.Size
	}
	return n, nil
}

func (d *Dataset) reader() (layout.Layout, error) {
	if d.storage != nil {
		return d.storage, nil
	}
	s, err := layout.New(layout.Dataset{
		Layout:    d.layout,
		Space:     d.space,
		Type:      d.datatype,
		Pipeline:  d.pipeline,
		FillValue: d.fill,
	}, d.file.reader)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	d.storage = s
	return s, nil
}

func (d *Dataset) chunked() (*layout.Chunked, error) {
	if d.file.closed {
		return nil, ErrClosed
	}
	if d.layout.Class != message.LayoutChunked {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotChunked, d.path, d.layout.Class)
	}
	s, err := d.reader()
	if err != nil {
		return nil, err
	}
	return s.(*layout.Chunked), nil
}
