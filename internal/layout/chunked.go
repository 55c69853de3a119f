package layout

import (
	"fmt"
	"slices"
	"sync"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/btree"
	"github.com/robert-malhotra/tomoslice/internal/filter"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Chunk locates one stored chunk.
type Chunk struct {
	Scaled     []uint64 // position in the chunk grid
	Offset     []uint64 // first element in dataset coordinates
	Address    uint64
	Size       uint64 // stored bytes, after filters
	FilterMask uint32
}

// Chunked reads chunked storage. The chunk index is read once and kept;
// the most recently decoded chunk is cached so that consecutive slices
// falling in the same chunk decode it only once.
type Chunked struct {
	r          *binary.Reader
	layout     *message.DataLayout
	space      *message.Dataspace
	dims       []uint64
	chunkDims  []uint64
	grid       []uint64
	elem       uint64
	chunkBytes uint64
	pipeline   *filter.Pipeline
	filterErr  error
	fill       []byte

	mu        sync.Mutex
	index     map[uint64]Chunk
	cacheKey  uint64
	cacheOK   bool
	cache     []byte
	fillChunk []byte
}

// NewChunked validates the chunk geometry and prepares the filter pipeline.
func NewChunked(ds Dataset, r *binary.Reader) (*Chunked, error) {
	dims := extent(ds.Space)
	if len(ds.Layout.ChunkDims) != len(dims) {
		return nil, fmt.Errorf("layout: chunk rank %d does not match dataset rank %d",
			len(ds.Layout.ChunkDims), len(dims))
	}
	grid := make([]uint64, len(dims))
	for d, c := range ds.Layout.ChunkDims {
		if c == 0 {
			return nil, fmt.Errorf("layout: chunk dimension %d is zero", d)
		}
		grid[d] = (dims[d] + c - 1) / c
	}
	// A pipeline naming a filter without an implementation still allows
	// raw chunk access; decoding reports the error.
	p, perr := filter.NewPipeline(ds.Pipeline)
	elem := uint64(ds.Type.Size)
	return &Chunked{
		r:          r,
		layout:     ds.Layout,
		space:      ds.Space,
		dims:       dims,
		chunkDims:  ds.Layout.ChunkDims,
		grid:       grid,
		elem:       elem,
		chunkBytes: product(ds.Layout.ChunkDims) * elem,
		pipeline:   p,
		filterErr:  perr,
		fill:       fillPattern(ds.FillValue, elem),
	}, nil
}

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

// ChunkDims returns the chunk extent in elements.
func (c *Chunked) ChunkDims() []uint64 { return slices.Clone(c.chunkDims) }

// ChunkBytes returns the size of one decoded chunk.
func (c *Chunked) ChunkBytes() uint64 { return c.chunkBytes }

// IndexType returns the index structure named by the layout message.
func (c *Chunked) IndexType() message.ChunkIndexType {
	if c.layout.Version < 4 {
		return message.ChunkIndexBTreeV1
	}
	return c.layout.ChunkIndexType
}

// Chunks returns every stored chunk in row-major grid order.
func (c *Chunked) Chunks() ([]Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	keys := make([]uint64, 0, len(c.index))
	for k := range c.index {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Chunk, len(keys))
	for i, k := range keys {
		out[i] = c.index[k]
	}
	return out, nil
}

// ChunkCount returns the number of stored chunks.
func (c *Chunked) ChunkCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadIndex(); err != nil {
		return 0, err
	}
	return len(c.index), nil
}

// RawChunk returns the stored bytes of the chunk whose first element is
// offset, without running the filter pipeline.
func (c *Chunked) RawChunk(offset []uint64) ([]byte, uint32, error) {
	key, err := c.keyForOffset(offset)
	if err != nil {
		return nil, 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadIndex(); err != nil {
		return nil, 0, err
	}
	ch, ok := c.index[key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: offset %v", ErrChunkNotFound, offset)
	}
	data, err := c.r.At(int64(ch.Address)).ReadBytes(int(ch.Size))
	if err != nil {
		return nil, 0, fmt.Errorf("layout: reading chunk at %#x: %w", ch.Address, err)
	}
	return data, ch.FilterMask, nil
}

func (c *Chunked) keyForOffset(offset []uint64) (uint64, error) {
	if len(offset) != len(c.dims) {
		return 0, fmt.Errorf("%w: offset rank %d, dataset rank %d", ErrOutOfBounds, len(offset), len(c.dims))
	}
	scaled := make([]uint64, len(offset))
	for d, o := range offset {
		if o%c.chunkDims[d] != 0 {
			return 0, fmt.Errorf("%w: offset %v is not chunk aligned", ErrOutOfBounds, offset)
		}
		scaled[d] = o / c.chunkDims[d]
		if scaled[d] >= c.grid[d] {
			return 0, fmt.Errorf("%w: offset %v", ErrOutOfBounds, offset)
		}
	}
	return linear(scaled, c.grid), nil
}

// ReadHyperslab decodes every chunk the selection touches and copies the
// overlapping part. Chunks with no storage read as the fill value.
func (c *Chunked) ReadHyperslab(start, count []uint64, dst []byte) error {
	n, err := checkSelection(c.dims, start, count, c.elem, dst)
	if err != nil || n == 0 {
		return err
	}
	dst = dst[:n]

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadIndex(); err != nil {
		return err
	}

	rank := len(c.dims)
	first := make([]uint64, rank)
	last := make([]uint64, rank)
	for d := 0; d < rank; d++ {
		first[d] = start[d] / c.chunkDims[d]
		last[d] = (start[d] + count[d] - 1) / c.chunkDims[d]
	}

	scaled := slices.Clone(first)
	origin := make([]uint64, rank)
	for {
		for d := range scaled {
			origin[d] = scaled[d] * c.chunkDims[d]
		}
		key := linear(scaled, c.grid)
		ch, ok := c.index[key]
		if ok {
			data, err := c.decode(key, ch)
			if err != nil {
				return err
			}
			copyBox(dst, start, count, data, origin, c.chunkDims, c.elem)
		} else {
			c.fillBox(dst, start, count, origin)
		}

		d := rank - 1
		for ; d >= 0; d-- {
			scaled[d]++
			if scaled[d] <= last[d] {
				break
			}
			scaled[d] = first[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// fillBox writes the fill value over the part of the selection covered by
// the chunk at origin.
func (c *Chunked) fillBox(dst []byte, start, count, origin []uint64) {
	if c.fillChunk == nil {
		c.fillChunk = make([]byte, c.chunkBytes)
		fill(c.fillChunk, c.fill)
	}
	copyBox(dst, start, count, c.fillChunk, origin, c.chunkDims, c.elem)
}

func (c *Chunked) decode(key uint64, ch Chunk) ([]byte, error) {
	if c.cacheOK && c.cacheKey == key {
		return c.cache, nil
	}
	if c.filterErr != nil {
		return nil, fmt.Errorf("layout: decoding chunk %v: %w", ch.Offset, c.filterErr)
	}
	raw, err := c.r.At(int64(ch.Address)).ReadBytes(int(ch.Size))
	if err != nil {
		return nil, fmt.Errorf("layout: reading chunk %v at %#x: %w", ch.Offset, ch.Address, err)
	}
	data, err := c.pipeline.Decode(raw, ch.FilterMask)
	if err != nil {
		return nil, fmt.Errorf("layout: decoding chunk %v: %w", ch.Offset, err)
	}
	if uint64(len(data)) < c.chunkBytes {
		return nil, fmt.Errorf("layout: chunk %v decoded to %d bytes, want %d", ch.Offset, len(data), c.chunkBytes)
	}
	c.cache, c.cacheKey, c.cacheOK = data[:c.chunkBytes], key, true
	return c.cache, nil
}

// loadIndex reads the chunk index on first use. Callers hold c.mu.
func (c *Chunked) loadIndex() error {
	if c.index != nil {
		return nil
	}
	index := make(map[uint64]Chunk)
	add := func(scaled []uint64, e entry) {
		if c.r.IsUndefinedOffset(e.addr) || e.addr == 0 {
			return
		}
		for d := range scaled {
			if scaled[d] >= c.grid[d] {
				return
			}
		}
		offset := make([]uint64, len(scaled))
		for d := range scaled {
			offset[d] = scaled[d] * c.chunkDims[d]
		}
		index[linear(scaled, c.grid)] = Chunk{
			Scaled:     scaled,
			Offset:     offset,
			Address:    e.addr,
			Size:       e.size,
			FilterMask: e.mask,
		}
	}

	addr := c.layout.ChunkIndexAddr
	if c.r.IsUndefinedOffset(addr) {
		// nothing allocated yet
		c.index = index
		return nil
	}

	switch t := c.IndexType(); t {
	case message.ChunkIndexBTreeV1:
		entries, err := btree.ReadChunks(c.r, addr, len(c.dims))
		if err != nil {
			return fmt.Errorf("layout: reading chunk b-tree: %w", err)
		}
		for _, e := range entries {
			scaled := make([]uint64, len(c.dims))
			for d := range scaled {
				scaled[d] = e.Offset[d] / c.chunkDims[d]
			}
			add(scaled, entry{addr: e.Address, size: e.Size, mask: e.FilterMask})
		}

	case message.ChunkIndexSingleChunk:
		e := entry{addr: addr, size: c.chunkBytes}
		if c.layout.ChunkFlags&message.ChunkFlagSingleIndexFilter != 0 {
			e.size, e.mask = c.layout.SingleFilteredSize, c.layout.SingleFilterMask
		}
		add(make([]uint64, len(c.dims)), e)

	case message.ChunkIndexImplicit:
		g := c.maxGrid()
		n := product(g)
		for i := uint64(0); i < n; i++ {
			add(delinear(i, g), entry{addr: addr + i*c.chunkBytes, size: c.chunkBytes})
		}

	case message.ChunkIndexFixedArray:
		entries, err := readFixedArray(c.r, addr, c.chunkBytes)
		if err != nil {
			return err
		}
		g := c.maxGrid()
		for i, e := range entries {
			add(delinear(uint64(i), g), e)
		}

	case message.ChunkIndexExtensibleArray:
		entries, err := readExtensibleArray(c.r, addr, c.chunkBytes)
		if err != nil {
			return err
		}
		g, unlim := c.swizzledGrid()
		for i, e := range entries {
			add(unswizzle(delinear(uint64(i), g), unlim), e)
		}

	default:
		return fmt.Errorf("%w: %s chunk index", ErrUnsupported, t)
	}
	c.index = index
	return nil
}

// maxGrid is the chunk grid over the maximum extent, which is how fixed
// array and implicit indexes number their chunks.
func (c *Chunked) maxGrid() []uint64 {
	g := slices.Clone(c.grid)
	for d, m := range c.space.MaxDims {
		if d < len(g) && m != message.Unlimited {
			g[d] = (m + c.chunkDims[d] - 1) / c.chunkDims[d]
		}
	}
	return g
}

// swizzledGrid returns the grid of an extensible array index, whose
// unlimited dimension is moved to the front.
func (c *Chunked) swizzledGrid() ([]uint64, int) {
	g := c.maxGrid()
	unlim := 0
	for d, m := range c.space.MaxDims {
		if m == message.Unlimited {
			unlim = d
			break
		}
	}
	return swizzle(g, unlim), unlim
}

// swizzle moves dimension unlim to the front.
func swizzle(v []uint64, unlim int) []uint64 {
	out := make([]uint64, 0, len(v))
	out = append(out, v[unlim])
	out = append(out, v[:unlim]...)
	return append(out, v[unlim+1:]...)
}

func unswizzle(v []uint64, unlim int) []uint64 {
	if unlim == 0 {
		return v
	}
	out := make([]uint64, 0, len(v))
	out = append(out, v[1:unlim+1]...)
	out = append(out, v[0])
	return append(out, v[unlim+1:]...)
}

// linear returns the row-major position of scaled in grid.
func linear(scaled, grid []uint64) uint64 {
	var i uint64
	for d := range scaled {
		i = i*grid[d] + scaled[d]
	}
	return i
}

// delinear is the inverse of linear. The first dimension is unbounded.
func delinear(i uint64, grid []uint64) []uint64 {
	out := make([]uint64, len(grid))
	for d := len(grid) - 1; d > 0; d-- {
		out[d] = i % grid[d]
		i /= grid[d]
	}
	if len(out) > 0 {
		out[0] = i
	}
	return out
}
