package layout

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

var (
	fixedArrayHeaderSig = [4]byte{'F', 'A', 'H', 'D'}
	fixedArrayBlockSig  = [4]byte{'F', 'A', 'D', 'B'}
)

const (
	clientUnfiltered = 0
	clientFiltered   = 1

	// minPageBits is the smallest page size the writer uses; arrays up to
	// this many entries and any larger array sized to fit are never paged.
	minPageBits = 10
)

var errIndexChecksum = errors.New("layout: chunk index checksum mismatch")

// entry is one decoded chunk index element.
type entry struct {
	addr uint64
	size uint64
	mask uint32
}

// chunkSizeLen is the width of the stored-size field of a filtered index
// entry: enough bytes for the chunk size plus one.
func chunkSizeLen(chunkBytes uint64) int {
	log2 := 0
	if chunkBytes > 0 {
		log2 = bits.Len64(chunkBytes) - 1
	}
	return min(1+(log2+8)/8, 8)
}

// decodeEntries decodes n index elements of the given client kind.
func decodeEntries(r *binary.Reader, buf []byte, client uint8, elemSize int, chunkBytes uint64) ([]entry, error) {
	o := r.OffsetSize()
	order := r.ByteOrder()
	n := len(buf) / elemSize
	out := make([]entry, n)
	for i := range out {
		b := buf[i*elemSize : (i+1)*elemSize]
		e := entry{addr: binary.DecodeUint(order, b[:o]), size: chunkBytes}
		if client == clientFiltered {
			sl := elemSize - o - 4
			if sl <= 0 || sl > 8 {
				return nil, fmt.Errorf("layout: filtered index element of %d bytes", elemSize)
			}
			e.size = binary.DecodeUint(order, b[o:o+sl])
			e.mask = uint32(binary.DecodeUint(order, b[o+sl:]))
		}
		out[i] = e
	}
	return out, nil
}

// readBlock reads a checksummed structure of n bytes whose last four bytes
// hold the lookup3 checksum of the rest.
func readBlock(r *binary.Reader, addr uint64, n int, sig [4]byte) ([]byte, error) {
	buf, err := r.At(int64(addr)).ReadBytes(n)
	if err != nil {
		return nil, fmt.Errorf("layout: reading %s at %#x: %w", sig[:], addr, err)
	}
	if sig != [4]byte{} && string(buf[:4]) != string(sig[:]) {
		return nil, fmt.Errorf("layout: expected %s at %#x, found %q", sig[:], addr, buf[:4])
	}
	sum := uint32(binary.DecodeUint(r.ByteOrder(), buf[n-4:]))
	if !binary.VerifyLookup3(buf[:n-4], sum) {
		return nil, fmt.Errorf("%w: %s at %#x", errIndexChecksum, sig[:], addr)
	}
	return buf, nil
}

// readFixedArray returns every element of the fixed array at addr,
// including undefined ones, in array order.
func readFixedArray(r *binary.Reader, addr uint64, chunkBytes uint64) ([]entry, error) {
	o, l := r.OffsetSize(), r.LengthSize()
	hdr, err := readBlock(r, addr, 4+4+l+o+4, fixedArrayHeaderSig)
	if err != nil {
		return nil, err
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("%w: fixed array version %d", ErrUnsupported, hdr[4])
	}
	client, elemSize, pageBits := hdr[5], int(hdr[6]), hdr[7]
	if client > clientFiltered || elemSize < o {
		return nil, fmt.Errorf("layout: fixed array client %d element size %d", client, elemSize)
	}
	order := r.ByteOrder()
	nelmts := binary.DecodeUint(order, hdr[8:8+l])
	blockAddr := binary.DecodeUint(order, hdr[8+l:8+l+o])
	if r.IsUndefinedOffset(blockAddr) || nelmts == 0 {
		return nil, nil
	}

	prefix := 4 + 1 + 1 + o
	pageElems := uint64(1) << pageBits
	if nelmts <= pageElems {
		blk, err := readBlock(r, blockAddr, prefix+int(nelmts)*elemSize+4, fixedArrayBlockSig)
		if err != nil {
			return nil, err
		}
		return decodeEntries(r, blk[prefix:len(blk)-4], client, elemSize, chunkBytes)
	}

	npages := (nelmts + pageElems - 1) / pageElems
	bitmapLen := int((npages + 7) / 8)
	blk, err := readBlock(r, blockAddr, prefix+bitmapLen+4, fixedArrayBlockSig)
	if err != nil {
		return nil, err
	}
	bitmap := blk[prefix : prefix+bitmapLen]

	out := make([]entry, nelmts)
	for i := range out {
		out[i].addr = binary.Undefined(o)
	}
	pageAddr := blockAddr + uint64(prefix+bitmapLen+4)
	pageSize := pageElems*uint64(elemSize) + 4
	for p := uint64(0); p < npages; p++ {
		first := p * pageElems
		count := min(pageElems, nelmts-first)
		if bitmap[p/8]&(0x80>>(p%8)) != 0 {
			page, err := readBlock(r, pageAddr+p*pageSize, int(count)*elemSize+4, [4]byte{})
			if err != nil {
				return nil, fmt.Errorf("fixed array page %d: %w", p, err)
			}
			es, err := decodeEntries(r, page[:len(page)-4], client, elemSize, chunkBytes)
			if err != nil {
				return nil, err
			}
			copy(out[first:], es)
		}
	}
	return out, nil
}

// Allocator hands out file space for new structures.
type Allocator interface {
	Alloc(size uint64, tag string) uint64
}

// FixedArray is a fixed array chunk index open for writing. The data
// block image stays in memory so each entry update writes just the entry
// and the block checksum.
type FixedArray struct {
	w          *binary.Writer
	header     uint64
	block      uint64
	filtered   bool
	pageBits   uint8
	sizeLen    int
	elemSize   int
	prefix     int
	chunkBytes uint64
	image      []byte
}

// CreateFixedArray writes the header and data block of a fixed array of n
// undefined entries. Filtered arrays store each chunk's size and filter
// mask beside its address.
func CreateFixedArray(w *binary.Writer, alloc Allocator, n uint64, chunkBytes uint64, filtered bool) (*FixedArray, error) {
	if n == 0 {
		return nil, fmt.Errorf("layout: fixed array needs at least one entry")
	}
	o, l := w.OffsetSize(), w.LengthSize()
	fa := &FixedArray{
		w:          w,
		filtered:   filtered,
		pageBits:   uint8(max(minPageBits, bits.Len64(n))),
		elemSize:   o,
		prefix:     4 + 1 + 1 + o,
		chunkBytes: chunkBytes,
	}
	client := uint8(clientUnfiltered)
	if filtered {
		client = clientFiltered
		fa.sizeLen = chunkSizeLen(chunkBytes)
		fa.elemSize = o + fa.sizeLen + 4
	}

	hdrSize := 4 + 4 + l + o + 4
	fa.header = alloc.Alloc(uint64(hdrSize), "fixed array header")
	blkSize := fa.prefix + int(n)*fa.elemSize + 4
	fa.block = alloc.Alloc(uint64(blkSize), "fixed array data block")

	order := w.ByteOrder()
	hdr := make([]byte, hdrSize)
	copy(hdr, fixedArrayHeaderSig[:])
	hdr[4], hdr[5], hdr[6], hdr[7] = 0, client, uint8(fa.elemSize), fa.pageBits
	binary.EncodeUint(order, hdr[8:8+l], n)
	binary.EncodeUint(order, hdr[8+l:8+l+o], fa.block)
	binary.EncodeUint(order, hdr[hdrSize-4:], uint64(binary.Lookup3Checksum(hdr[:hdrSize-4])))

	fa.image = make([]byte, blkSize)
	copy(fa.image, fixedArrayBlockSig[:])
	fa.image[4], fa.image[5] = 0, client
	binary.EncodeUint(order, fa.image[6:6+o], fa.header)
	undef := binary.Undefined(o)
	for i := uint64(0); i < n; i++ {
		off := fa.prefix + int(i)*fa.elemSize
		binary.EncodeUint(order, fa.image[off:off+o], undef)
	}
	fa.seal()

	if err := w.At(int64(fa.header)).WriteBytes(hdr); err != nil {
		return nil, fmt.Errorf("layout: writing fixed array header: %w", err)
	}
	if err := w.At(int64(fa.block)).WriteBytes(fa.image); err != nil {
		return nil, fmt.Errorf("layout: writing fixed array data block: %w", err)
	}
	return fa, nil
}

// Address returns the header address, which the layout message records.
func (fa *FixedArray) Address() uint64 { return fa.header }

// PageBits returns the page size exponent the layout message records.
func (fa *FixedArray) PageBits() uint8 { return fa.pageBits }

// Len returns the number of entries.
func (fa *FixedArray) Len() int { return (len(fa.image) - fa.prefix - 4) / fa.elemSize }

func (fa *FixedArray) seal() {
	n := len(fa.image) - 4
	binary.EncodeUint(fa.w.ByteOrder(), fa.image[n:], uint64(binary.Lookup3Checksum(fa.image[:n])))
}

// Set records chunk i at addr with the given stored size and filter mask,
// then rewrites the entry and the block checksum in the file.
func (fa *FixedArray) Set(i int, addr, size uint64, mask uint32) error {
	if i < 0 || i >= fa.Len() {
		return fmt.Errorf("%w: fixed array entry %d of %d", ErrOutOfBounds, i, fa.Len())
	}
	o := fa.w.OffsetSize()
	order := fa.w.ByteOrder()
	off := fa.prefix + i*fa.elemSize
	e := fa.image[off : off+fa.elemSize]
	binary.EncodeUint(order, e[:o], addr)
	if fa.filtered {
		if fa.sizeLen < 8 && size >= 1<<(8*fa.sizeLen) {
			return fmt.Errorf("layout: chunk size %d does not fit %d bytes", size, fa.sizeLen)
		}
		binary.EncodeUint(order, e[o:o+fa.sizeLen], size)
		binary.EncodeUint(order, e[o+fa.sizeLen:], uint64(mask))
	} else if size != fa.chunkBytes {
		return fmt.Errorf("layout: unfiltered chunk of %d bytes, want %d", size, fa.chunkBytes)
	}
	fa.seal()

	if err := fa.w.At(int64(fa.block) + int64(off)).WriteBytes(e); err != nil {
		return fmt.Errorf("layout: writing fixed array entry %d: %w", i, err)
	}
	sum := len(fa.image) - 4
	if err := fa.w.At(int64(fa.block) + int64(sum)).WriteBytes(fa.image[sum:]); err != nil {
		return fmt.Errorf("layout: writing fixed array checksum: %w", err)
	}
	return nil
}

// Defined reports whether entry i has been set.
func (fa *FixedArray) Defined(i int) bool {
	if i < 0 || i >= fa.Len() {
		return false
	}
	o := fa.w.OffsetSize()
	off := fa.prefix + i*fa.elemSize
	return binary.DecodeUint(fa.w.ByteOrder(), fa.image[off:off+o]) != binary.Undefined(o)
}
