package layout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/tomoslice/internal/alloc"
	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/filter"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// testFile is an in-memory file with a writer, a reader and an allocator.
type testFile struct {
	buf   *binary.Buffer
	w     *binary.Writer
	alloc *alloc.Allocator
}

func newTestFile() *testFile {
	buf := binary.NewBuffer(0)
	return &testFile{
		buf:   buf,
		w:     binary.NewWriter(buf, binary.DefaultConfig()),
		alloc: alloc.New(64),
	}
}

func (f *testFile) reader() *binary.Reader {
	return binary.NewReader(bytes.NewReader(f.buf.Bytes()), binary.DefaultConfig())
}

func (f *testFile) put(t *testing.T, data []byte) uint64 {
	t.Helper()
	addr := f.alloc.Alloc(uint64(len(data)), "test")
	require.NoError(t, f.w.At(int64(addr)).WriteBytes(data))
	return addr
}

// sealed appends the lookup3 checksum of b.
func sealed(b []byte) []byte {
	sum := binary.Lookup3Checksum(b)
	return append(b, byte(sum), byte(sum>>8), byte(sum>>16), byte(sum>>24))
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.EncodeUint(binary.DefaultConfig().ByteOrder, b, v)
	return b
}

// grid2D returns a rows x cols uint16 image whose element (r, c) is r*cols+c.
func grid2D(rows, cols int) []byte {
	out := make([]byte, rows*cols*2)
	for i := 0; i < rows*cols; i++ {
		out[2*i], out[2*i+1] = byte(i), byte(i>>8)
	}
	return out
}

func sub2D(src []byte, cols, r0, c0, nr, nc int) []byte {
	var out []byte
	for r := r0; r < r0+nr; r++ {
		out = append(out, src[2*(r*cols+c0):2*(r*cols+c0+nc)]...)
	}
	return out
}

func TestCopyBox(t *testing.T) {
	src := []byte{
		1, 2, 3,
		4, 5, 6,
	}
	dst := make([]byte, 4)
	// source box at (1,1) extent 2x3, destination box at (2,2) extent 2x2
	copyBox(dst, []uint64{2, 2}, []uint64{2, 2}, src, []uint64{1, 1}, []uint64{2, 3}, 1)
	assert.Equal(t, []byte{5, 6, 0, 0}, dst)

	dst = make([]byte, 4)
	copyBox(dst, []uint64{5, 5}, []uint64{2, 2}, src, []uint64{0, 0}, []uint64{2, 3}, 1)
	assert.Equal(t, make([]byte, 4), dst, "disjoint boxes copy nothing")
}

func TestCheckSelection(t *testing.T) {
	dims := []uint64{4, 5}
	tests := []struct {
		name   string
		start  []uint64
		count  []uint64
		dstLen int
		err    error
	}{
		{"full", []uint64{0, 0}, []uint64{4, 5}, 20, nil},
		{"row", []uint64{3, 0}, []uint64{1, 5}, 5, nil},
		{"past end", []uint64{3, 0}, []uint64{2, 5}, 10, ErrOutOfBounds},
		{"rank", []uint64{0}, []uint64{1}, 5, ErrOutOfBounds},
		{"short", []uint64{0, 0}, []uint64{2, 5}, 9, ErrShortBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkSelection(dims, tt.start, tt.count, 1, make([]byte, tt.dstLen))
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestCompactReadHyperslab(t *testing.T) {
	data := grid2D(3, 4)
	ds := Dataset{
		Layout: &message.DataLayout{Version: 3, Class: message.LayoutCompact, CompactData: data},
		Space:  message.NewDataspace([]uint64{3, 4}, nil),
		Type:   message.NewIntegerDatatype(2, false, false),
	}
	l, err := New(ds, nil)
	require.NoError(t, err)
	assert.Equal(t, message.LayoutCompact, l.Class())

	dst := make([]byte, 8)
	require.NoError(t, l.ReadHyperslab([]uint64{1, 1}, []uint64{2, 2}, dst))
	assert.Equal(t, sub2D(data, 4, 1, 1, 2, 2), dst)
}

func TestContiguousReadHyperslab(t *testing.T) {
	f := newTestFile()
	const n, h, w = 4, 3, 5
	data := grid2D(n*h, w) // a (4,3,5) volume viewed as 12 rows
	addr := f.put(t, data)
	ds := Dataset{
		Layout: &message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: addr, Size: uint64(len(data))},
		Space:  message.NewDataspace([]uint64{n, h, w}, nil),
		Type:   message.NewIntegerDatatype(2, false, false),
	}
	l, err := New(ds, f.reader())
	require.NoError(t, err)

	tests := []struct {
		name  string
		start []uint64
		count []uint64
		want  []byte
	}{
		{"slice", []uint64{2, 0, 0}, []uint64{1, h, w}, sub2D(data, w, 2*h, 0, h, w)},
		{"two slices", []uint64{1, 0, 0}, []uint64{2, h, w}, sub2D(data, w, h, 0, 2*h, w)},
		{"box", []uint64{0, 1, 1}, []uint64{1, 2, 3}, sub2D(data, w, 1, 1, 2, 3)},
		{"empty", []uint64{0, 0, 0}, []uint64{0, h, w}, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, len(tt.want))
			require.NoError(t, l.ReadHyperslab(tt.start, tt.count, dst))
			assert.Equal(t, tt.want, dst)
		})
	}
}

func TestContiguousUnallocatedReadsFill(t *testing.T) {
	f := newTestFile()
	ds := Dataset{
		Layout:    &message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: message.UndefinedAddress},
		Space:     message.NewDataspace([]uint64{2, 2}, nil),
		Type:      message.NewIntegerDatatype(2, false, false),
		FillValue: &message.FillValue{Version: 2, Defined: true, Value: []byte{0xAB, 0xCD}},
	}
	l, err := New(ds, f.reader())
	require.NoError(t, err)
	dst := make([]byte, 8)
	require.NoError(t, l.ReadHyperslab([]uint64{0, 0}, []uint64{2, 2}, dst))
	assert.Equal(t, bytes.Repeat([]byte{0xAB, 0xCD}, 4), dst)
}

// writeChunked stores a (rows, cols) uint16 image in (cr, cc) chunks under
// a fixed array index, skipping the chunks listed in skip.
func writeChunked(t *testing.T, f *testFile, rows, cols, cr, cc int, fp *message.FilterPipeline, skip map[int]bool) Dataset {
	t.Helper()
	image := grid2D(rows, cols)
	gr, gc := (rows+cr-1)/cr, (cols+cc-1)/cc
	chunkBytes := uint64(cr * cc * 2)

	p, err := filter.NewPipeline(fp)
	require.NoError(t, err)
	fa, err := CreateFixedArray(f.w, f.alloc, uint64(gr*gc), chunkBytes, !p.Empty())
	require.NoError(t, err)

	for i := 0; i < gr*gc; i++ {
		if skip[i] {
			continue
		}
		r0, c0 := (i/gc)*cr, (i%gc)*cc
		chunk := make([]byte, chunkBytes)
		for r := 0; r < cr; r++ {
			for c := 0; c < cc; c++ {
				if r0+r < rows && c0+c < cols {
					src := 2 * ((r0+r)*cols + c0 + c)
					copy(chunk[2*(r*cc+c):], image[src:src+2])
				}
			}
		}
		stored, mask, err := p.Encode(chunk)
		require.NoError(t, err)
		addr := f.put(t, stored)
		require.NoError(t, fa.Set(i, addr, uint64(len(stored)), mask))
	}

	return Dataset{
		Layout: &message.DataLayout{
			Version:        4,
			Class:          message.LayoutChunked,
			ChunkDims:      []uint64{uint64(cr), uint64(cc)},
			ChunkElemSize:  2,
			ChunkIndexType: message.ChunkIndexFixedArray,
			ChunkIndexAddr: fa.Address(),
			PageBits:       fa.PageBits(),
		},
		Space:    message.NewDataspace([]uint64{uint64(rows), uint64(cols)}, nil),
		Type:     message.NewIntegerDatatype(2, false, false),
		Pipeline: fp,
	}
}

func TestChunkedFixedArray(t *testing.T) {
	pipelines := map[string]*message.FilterPipeline{
		"unfiltered": nil,
		"deflate": message.NewFilterPipeline(
			message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{2}},
			message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{6}},
		),
	}
	image := grid2D(5, 7)
	for name, fp := range pipelines {
		t.Run(name, func(t *testing.T) {
			f := newTestFile()
			ds := writeChunked(t, f, 5, 7, 2, 3, fp, nil)
			c, err := NewChunked(ds, f.reader())
			require.NoError(t, err)

			n, err := c.ChunkCount()
			require.NoError(t, err)
			assert.Equal(t, 9, n)
			assert.Equal(t, message.ChunkIndexFixedArray, c.IndexType())

			boxes := [][4]int{{0, 0, 5, 7}, {1, 2, 3, 4}, {4, 6, 1, 1}, {2, 0, 1, 7}}
			for _, b := range boxes {
				dst := make([]byte, b[2]*b[3]*2)
				err := c.ReadHyperslab(
					[]uint64{uint64(b[0]), uint64(b[1])},
					[]uint64{uint64(b[2]), uint64(b[3])}, dst)
				require.NoError(t, err)
				assert.Equal(t, sub2D(image, 7, b[0], b[1], b[2], b[3]), dst, "box %v", b)
			}
		})
	}
}

func TestChunkedMissingChunks(t *testing.T) {
	f := newTestFile()
	ds := writeChunked(t, f, 4, 4, 2, 2, nil, map[int]bool{1: true})
	c, err := NewChunked(ds, f.reader())
	require.NoError(t, err)

	n, err := c.ChunkCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dst := make([]byte, 4*4*2)
	for i := range dst {
		dst[i] = 0xFF
	}
	require.NoError(t, c.ReadHyperslab([]uint64{0, 0}, []uint64{4, 4}, dst))
	image := grid2D(4, 4)
	want := append([]byte(nil), image...)
	for r := 0; r < 2; r++ {
		for col := 2; col < 4; col++ {
			want[2*(r*4+col)], want[2*(r*4+col)+1] = 0, 0
		}
	}
	assert.Equal(t, want, dst)

	_, _, err = c.RawChunk([]uint64{0, 2})
	assert.ErrorIs(t, err, ErrChunkNotFound)
	_, _, err = c.RawChunk([]uint64{0, 1})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestChunkedRawChunk(t *testing.T) {
	f := newTestFile()
	fp := message.NewFilterPipeline(message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{1}})
	ds := writeChunked(t, f, 4, 4, 2, 2, fp, nil)
	c, err := NewChunked(ds, f.reader())
	require.NoError(t, err)

	raw, mask, err := c.RawChunk([]uint64{2, 2})
	require.NoError(t, err)
	assert.Zero(t, mask)

	p, err := filter.NewPipeline(fp)
	require.NoError(t, err)
	dec, err := p.Decode(raw, mask)
	require.NoError(t, err)
	image := grid2D(4, 4)
	assert.Equal(t, sub2D(image, 4, 2, 2, 2, 2), dec)

	chunks, err := c.Chunks()
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, []uint64{2, 2}, chunks[3].Offset)
	assert.Equal(t, uint64(len(raw)), chunks[3].Size)
}

func TestFixedArrayWriter(t *testing.T) {
	f := newTestFile()
	fa, err := CreateFixedArray(f.w, f.alloc, 3, 1<<20, true)
	require.NoError(t, err)
	assert.Equal(t, 3, fa.Len())
	assert.Equal(t, uint8(minPageBits), fa.PageBits())
	assert.False(t, fa.Defined(1))

	require.NoError(t, fa.Set(1, 0x1000, 777, 0))
	assert.True(t, fa.Defined(1))
	assert.ErrorIs(t, fa.Set(3, 0x1000, 1, 0), ErrOutOfBounds)

	entries, err := readFixedArray(f.reader(), fa.Address(), 1<<20)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, entry{addr: 0x1000, size: 777}, entries[1])
	assert.Equal(t, binary.Undefined(8), entries[0].addr)

	big, err := CreateFixedArray(f.w, f.alloc, 5000, 64, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(13), big.PageBits(), "large arrays stay unpaged")
	assert.Error(t, big.Set(0, 0x2000, 63, 0), "unfiltered chunks have a fixed size")
}

func TestChunkSizeLen(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  int
	}{
		{1, 2},
		{255, 1 + (7+8)/8},
		{1 << 16, 4},
		{1792 * 2048 * 2, 4},
		{1 << 62, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chunkSizeLen(tt.bytes), "chunk of %d bytes", tt.bytes)
	}
}

func TestFixedArrayPagedRead(t *testing.T) {
	f := newTestFile()
	const nelmts, pageBits = 5, 1 // three pages of two entries
	blockAddr := f.alloc.Alloc(1024, "data block")

	hdr := []byte("FAHD")
	hdr = append(hdr, 0, clientUnfiltered, 8, pageBits)
	hdr = append(hdr, le64(nelmts)...)
	hdr = append(hdr, le64(blockAddr)...)
	hdrAddr := f.put(t, sealed(hdr))

	blk := []byte("FADB")
	blk = append(blk, 0, clientUnfiltered)
	blk = append(blk, le64(hdrAddr)...)
	blk = append(blk, 0xA0) // pages 0 and 2
	blk = sealed(blk)
	blk = append(blk, sealed(append(le64(0x100), le64(0x200)...))...)
	blk = append(blk, sealed(append(le64(0x300), le64(0x400)...))...)
	blk = append(blk, sealed(le64(0x500))...)
	require.NoError(t, f.w.At(int64(blockAddr)).WriteBytes(blk))

	entries, err := readFixedArray(f.reader(), hdrAddr, 16)
	require.NoError(t, err)
	require.Len(t, entries, nelmts)
	addrs := make([]uint64, nelmts)
	for i, e := range entries {
		addrs[i] = e.addr
	}
	undef := binary.Undefined(8)
	assert.Equal(t, []uint64{0x100, 0x200, undef, undef, 0x500}, addrs)
}

func TestFixedArrayChecksum(t *testing.T) {
	f := newTestFile()
	fa, err := CreateFixedArray(f.w, f.alloc, 2, 16, false)
	require.NoError(t, err)
	require.NoError(t, f.w.At(int64(fa.block)+int64(fa.prefix)).WriteBytes([]byte{1}))
	_, err = readFixedArray(f.reader(), fa.Address(), 16)
	assert.ErrorIs(t, err, errIndexChecksum)
}

// writeExtensibleArray builds an array with two index block elements,
// data blocks of at least two elements and two data block pointers per
// minimal super block, holding addrs[i] at element i.
func writeExtensibleArray(t *testing.T, f *testFile, addrs []uint64) uint64 {
	t.Helper()
	const idxElems, dblkMin, sblkMin, maxBits = 2, 2, 2, 8
	hdrAddr := f.alloc.Alloc(4+1+1+6+6*8+8+4, "header")
	at := func(i int) []byte {
		if i < len(addrs) {
			return le64(addrs[i])
		}
		return le64(binary.Undefined(8))
	}
	dataBlock := func(first, n int) uint64 {
		b := []byte("EADB")
		b = append(b, 0, clientUnfiltered)
		b = append(b, le64(hdrAddr)...)
		b = append(b, byte(first))
		for i := first; i < first+n; i++ {
			b = append(b, at(i)...)
		}
		return f.put(t, sealed(b))
	}

	// super blocks 0 and 1 hang off the index block: one block each of
	// 2 and 4 elements. Super block 2 holds two blocks of 4 elements.
	d0 := dataBlock(2, 2)
	d1 := dataBlock(4, 4)
	s2d0 := dataBlock(8, 4)

	sb := []byte("EASB")
	sb = append(sb, 0, clientUnfiltered)
	sb = append(sb, le64(hdrAddr)...)
	sb = append(sb, 8)
	sb = append(sb, le64(s2d0)...)
	sb = append(sb, le64(binary.Undefined(8))...)
	s2 := f.put(t, sealed(sb))

	ib := []byte("EAIB")
	ib = append(ib, 0, clientUnfiltered)
	ib = append(ib, le64(hdrAddr)...)
	ib = append(ib, at(0)...)
	ib = append(ib, at(1)...)
	ib = append(ib, le64(d0)...)
	ib = append(ib, le64(d1)...)
	// nsblks = 1+8-1 = 8, two live in the index block
	ib = append(ib, le64(s2)...)
	for i := 0; i < 5; i++ {
		ib = append(ib, le64(binary.Undefined(8))...)
	}
	idxAddr := f.put(t, sealed(ib))

	h := []byte("EAHD")
	h = append(h, 0, clientUnfiltered, 8, maxBits, idxElems, dblkMin, sblkMin, 10)
	for i := 0; i < 6; i++ {
		v := uint64(0)
		if i == 4 {
			v = uint64(len(addrs))
		}
		h = append(h, le64(v)...)
	}
	h = append(h, le64(idxAddr)...)
	require.NoError(t, f.w.At(int64(hdrAddr)).WriteBytes(sealed(h)))
	return hdrAddr
}

func TestExtensibleArrayRead(t *testing.T) {
	f := newTestFile()
	want := []uint64{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80, 0x90, 0xA0}
	addr := writeExtensibleArray(t, f, want)

	entries, err := readExtensibleArray(f.reader(), addr, 64)
	require.NoError(t, err)
	require.Len(t, entries, len(want))
	for i, e := range entries {
		assert.Equal(t, want[i], e.addr, "element %d", i)
		assert.Equal(t, uint64(64), e.size)
	}
}

func TestChunkedExtensibleArraySwizzle(t *testing.T) {
	f := newTestFile()
	// dataset (3 slices, unlimited) x 2 with chunks 1x1 and the second
	// dimension unlimited: elements are numbered column-major
	var addrs []uint64
	cells := map[[2]uint64][]byte{}
	for col := uint64(0); col < 2; col++ {
		for row := uint64(0); row < 3; row++ {
			v := []byte{byte(10*row + col), 0}
			addrs = append(addrs, f.put(t, v))
			cells[[2]uint64{row, col}] = v
		}
	}
	hdr := writeExtensibleArray(t, f, addrs)

	ds := Dataset{
		Layout: &message.DataLayout{
			Version:        4,
			Class:          message.LayoutChunked,
			ChunkDims:      []uint64{1, 1},
			ChunkElemSize:  2,
			ChunkIndexType: message.ChunkIndexExtensibleArray,
			ChunkIndexAddr: hdr,
		},
		Space: message.NewDataspace([]uint64{3, 2}, []uint64{3, message.Unlimited}),
		Type:  message.NewIntegerDatatype(2, false, false),
	}
	c, err := NewChunked(ds, f.reader())
	require.NoError(t, err)

	dst := make([]byte, 12)
	require.NoError(t, c.ReadHyperslab([]uint64{0, 0}, []uint64{3, 2}, dst))
	assert.Equal(t, []byte{0, 0, 1, 0, 10, 0, 11, 0, 20, 0, 21, 0}, dst)
}

func TestSingleChunkIndex(t *testing.T) {
	f := newTestFile()
	data := grid2D(2, 3)
	addr := f.put(t, data)
	ds := Dataset{
		Layout: &message.DataLayout{
			Version:        4,
			Class:          message.LayoutChunked,
			ChunkDims:      []uint64{2, 3},
			ChunkElemSize:  2,
			ChunkIndexType: message.ChunkIndexSingleChunk,
			ChunkIndexAddr: addr,
		},
		Space: message.NewDataspace([]uint64{2, 3}, nil),
		Type:  message.NewIntegerDatatype(2, false, false),
	}
	l, err := New(ds, f.reader())
	require.NoError(t, err)
	dst := make([]byte, 6)
	require.NoError(t, l.ReadHyperslab([]uint64{1, 0}, []uint64{1, 3}, dst))
	assert.Equal(t, sub2D(data, 3, 1, 0, 1, 3), dst)
}

func TestChunkedUnknownFilterAllowsRawAccess(t *testing.T) {
	f := newTestFile()
	fa, err := CreateFixedArray(f.w, f.alloc, 1, 8, true)
	require.NoError(t, err)
	frame := []byte("opaque")
	require.NoError(t, fa.Set(0, f.put(t, frame), uint64(len(frame)), 0))

	ds := Dataset{
		Layout: &message.DataLayout{
			Version:        4,
			Class:          message.LayoutChunked,
			ChunkDims:      []uint64{2, 2},
			ChunkElemSize:  2,
			ChunkIndexType: message.ChunkIndexFixedArray,
			ChunkIndexAddr: fa.Address(),
		},
		Space:    message.NewDataspace([]uint64{2, 2}, nil),
		Type:     message.NewIntegerDatatype(2, false, false),
		Pipeline: message.NewFilterPipeline(message.FilterInfo{ID: 32026, Name: "wavelet"}),
	}
	c, err := NewChunked(ds, f.reader())
	require.NoError(t, err)

	raw, _, err := c.RawChunk([]uint64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, frame, raw)

	err = c.ReadHyperslab([]uint64{0, 0}, []uint64{2, 2}, make([]byte, 8))
	assert.ErrorIs(t, err, filter.ErrUnsupported)
}
