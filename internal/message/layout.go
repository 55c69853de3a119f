package message

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// LayoutClass is the storage class of a dataset's raw data.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndexType selects the chunk index structure of a version 4 layout.
// Version 3 and older layouts always use a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0 // implied by layout v1-v3
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

func (t ChunkIndexType) String() string {
	switch t {
	case ChunkIndexBTreeV1:
		return "btree-v1"
	case ChunkIndexSingleChunk:
		return "single"
	case ChunkIndexImplicit:
		return "implicit"
	case ChunkIndexFixedArray:
		return "fixed-array"
	case ChunkIndexExtensibleArray:
		return "extensible-array"
	case ChunkIndexBTreeV2:
		return "btree-v2"
	}
	return fmt.Sprintf("index(%d)", uint8(t))
}

// Layout v4 chunk flags.
const (
	ChunkFlagNoFilterEdge      uint8 = 0x01
	ChunkFlagSingleIndexFilter uint8 = 0x02
)

// DataLayout is message 0x0008.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Contiguous storage.
	Address uint64
	Size    uint64

	// Chunked storage. ChunkDims has the dataset's rank; the trailing
	// element-size dimension HDF5 stores is split out into ChunkElemSize.
	ChunkFlags     uint8
	ChunkDims      []uint64
	ChunkElemSize  uint32
	ChunkIndexType ChunkIndexType
	ChunkIndexAddr uint64

	// Index parameters (layout v4).
	PageBits        uint8 // fixed and extensible array
	EAMaxBits       uint8
	EAIndexElements uint8
	EAMinPointers   uint8
	EAMinElements   uint8
	BT2NodeSize     uint32
	BT2SplitPercent uint8
	BT2MergePercent uint8

	// Single chunk index with filters.
	SingleFilteredSize uint64
	SingleFilterMask   uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// ChunkBytes is the uncompressed size of one full chunk.
func (m *DataLayout) ChunkBytes() uint64 {
	n := uint64(m.ChunkElemSize)
	for _, d := range m.ChunkDims {
		n *= d
	}
	return n
}

func parseDataLayout(d *decoder) (*DataLayout, error) {
	l := &DataLayout{Version: d.u8()}
	switch l.Version {
	case 1, 2:
		return parseLayoutV1(d, l)
	case 3, 4:
		return parseLayoutV3(d, l)
	}
	return nil, fmt.Errorf("unsupported data layout version %d", l.Version)
}

func parseLayoutV1(d *decoder, l *DataLayout) (*DataLayout, error) {
	ndims := int(d.u8())
	l.Class = LayoutClass(d.u8())
	d.skip(5)
	if l.Class != LayoutCompact {
		l.Address = d.offset()
	}
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = uint64(d.u32())
	}
	switch l.Class {
	case LayoutChunked:
		l.ChunkIndexAddr = l.Address
		l.Address = 0
		l.ChunkDims = dims
		l.ChunkElemSize = d.u32()
		if ndims > 0 && l.ChunkElemSize == 0 {
			// Some writers fold the element size into the last dimension.
			l.ChunkElemSize = uint32(dims[ndims-1])
			l.ChunkDims = dims[:ndims-1]
		}
	case LayoutCompact:
		size := d.u32()
		l.CompactData = d.bytes(int(size))
	case LayoutContiguous:
		l.Size = 1
		for _, dim := range dims {
			l.Size *= dim
		}
	}
	return l, d.err
}

func parseLayoutV3(d *decoder, l *DataLayout) (*DataLayout, error) {
	l.Class = LayoutClass(d.u8())
	switch l.Class {
	case LayoutCompact:
		size := d.u16()
		l.CompactData = d.bytes(int(size))
	case LayoutContiguous:
		l.Address = d.offset()
		l.Size = d.length()
	case LayoutChunked:
		if l.Version == 3 {
			ndims := int(d.u8())
			l.ChunkIndexAddr = d.offset()
			dims := make([]uint64, ndims)
			for i := range dims {
				dims[i] = uint64(d.u32())
			}
			l.splitChunkDims(dims)
			l.ChunkIndexType = ChunkIndexBTreeV1
			break
		}
		l.ChunkFlags = d.u8()
		ndims := int(d.u8())
		width := int(d.u8())
		dims := make([]uint64, ndims)
		for i := range dims {
			dims[i] = d.uintN(width)
		}
		l.splitChunkDims(dims)
		l.ChunkIndexType = ChunkIndexType(d.u8())
		switch l.ChunkIndexType {
		case ChunkIndexSingleChunk:
			if l.ChunkFlags&ChunkFlagSingleIndexFilter != 0 {
				l.SingleFilteredSize = d.length()
				l.SingleFilterMask = d.u32()
			}
		case ChunkIndexImplicit:
		case ChunkIndexFixedArray:
			l.PageBits = d.u8()
		case ChunkIndexExtensibleArray:
			l.EAMaxBits = d.u8()
			l.EAIndexElements = d.u8()
			l.EAMinPointers = d.u8()
			l.EAMinElements = d.u8()
			l.PageBits = d.u8()
		case ChunkIndexBTreeV2:
			l.BT2NodeSize = d.u32()
			l.BT2SplitPercent = d.u8()
			l.BT2MergePercent = d.u8()
		default:
			return nil, fmt.Errorf("unknown chunk index type %d", l.ChunkIndexType)
		}
		l.ChunkIndexAddr = d.offset()
	case LayoutVirtual:
		return nil, fmt.Errorf("virtual datasets are not supported")
	default:
		return nil, fmt.Errorf("unknown layout class %d", l.Class)
	}
	return l, d.err
}

func (m *DataLayout) splitChunkDims(dims []uint64) {
	if len(dims) == 0 {
		return
	}
	m.ChunkDims = dims[:len(dims)-1]
	m.ChunkElemSize = uint32(dims[len(dims)-1])
}

// dimWidth is the smallest byte width that holds every chunk dimension.
func (m *DataLayout) dimWidth() int {
	largest := uint64(m.ChunkElemSize)
	for _, d := range m.ChunkDims {
		if d > largest {
			largest = d
		}
	}
	switch {
	case largest <= 0xFF:
		return 1
	case largest <= 0xFFFF:
		return 2
	case largest <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func (m *DataLayout) indexParamSize() int {
	switch m.ChunkIndexType {
	case ChunkIndexFixedArray:
		return 1
	case ChunkIndexExtensibleArray:
		return 5
	case ChunkIndexBTreeV2:
		return 6
	}
	return 0
}

// Serialize writes version 3 for compact and contiguous data and version 4
// for chunked data.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	switch m.Class {
	case LayoutCompact:
		e.u8(3)
		e.u8(uint8(m.Class))
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)
	case LayoutContiguous:
		e.u8(3)
		e.u8(uint8(m.Class))
		e.offset(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		width := m.dimWidth()
		e.u8(4)
		e.u8(uint8(m.Class))
		e.u8(m.ChunkFlags)
		e.u8(uint8(len(m.ChunkDims) + 1))
		e.u8(uint8(width))
		for _, dim := range m.ChunkDims {
			e.uintN(dim, width)
		}
		e.uintN(uint64(m.ChunkElemSize), width)
		e.u8(uint8(m.ChunkIndexType))
		switch m.ChunkIndexType {
		case ChunkIndexFixedArray:
			e.u8(m.PageBits)
		case ChunkIndexExtensibleArray:
			e.u8(m.EAMaxBits)
			e.u8(m.EAIndexElements)
			e.u8(m.EAMinPointers)
			e.u8(m.EAMinElements)
			e.u8(m.PageBits)
		case ChunkIndexBTreeV2:
			e.u32(m.BT2NodeSize)
			e.u8(m.BT2SplitPercent)
			e.u8(m.BT2MergePercent)
		}
		e.offset(m.ChunkIndexAddr)
	default:
		return fmt.Errorf("cannot serialize %s layout", m.Class)
	}
	return e.err
}

func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	switch m.Class {
	case LayoutCompact:
		return 4 + len(m.CompactData)
	case LayoutContiguous:
		return 2 + w.OffsetSize() + w.LengthSize()
	case LayoutChunked:
		return 5 + (len(m.ChunkDims)+1)*m.dimWidth() + 1 + m.indexParamSize() + w.OffsetSize()
	}
	return 0
}

// NewContiguousLayout describes size bytes stored at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewFixedArrayLayout describes a chunked dataset indexed by a fixed array.
// pageBits must match the array header.
func NewFixedArrayLayout(chunkDims []uint64, elemSize uint32, pageBits uint8, indexAddr uint64) *DataLayout {
	return &DataLayout{
		Version:        4,
		Class:          LayoutChunked,
		ChunkDims:      append([]uint64(nil), chunkDims...),
		ChunkElemSize:  elemSize,
		ChunkIndexType: ChunkIndexFixedArray,
		PageBits:       pageBits,
		ChunkIndexAddr: indexAddr,
	}
}
