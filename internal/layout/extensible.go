package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

var (
	extArrayHeaderSig = [4]byte{'E', 'A', 'H', 'D'}
	extArrayIndexSig  = [4]byte{'E', 'A', 'I', 'B'}
	extArraySuperSig  = [4]byte{'E', 'A', 'S', 'B'}
	extArrayDataSig   = [4]byte{'E', 'A', 'D', 'B'}
)

// extArray holds the creation parameters of an extensible array.
type extArray struct {
	r          *binary.Reader
	header     uint64
	client     uint8
	elemSize   int
	maxBits    uint8
	idxElems   uint64
	dblkMin    uint64
	sblkMinPtr uint64
	pageBits   uint8
	maxIndex   uint64 // one past the highest element ever set
	chunkBytes uint64
}

// superBlock describes super block s of the array.
func (ea *extArray) superBlock(s int) (ndblks, dblkElems uint64) {
	return 1 << (s / 2), ea.dblkMin * (1 << ((s + 1) / 2))
}

// blockOffsetSize is the width of the block offset field in super and
// data blocks.
func (ea *extArray) blockOffsetSize() int { return (int(ea.maxBits) + 7) / 8 }

// readExtensibleArray returns the elements of the extensible array at addr
// up to the highest index ever set, undefined ones included.
func readExtensibleArray(r *binary.Reader, addr uint64, chunkBytes uint64) ([]entry, error) {
	o, l := r.OffsetSize(), r.LengthSize()
	hdr, err := readBlock(r, addr, 4+1+1+6+6*l+o+4, extArrayHeaderSig)
	if err != nil {
		return nil, err
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("%w: extensible array version %d", ErrUnsupported, hdr[4])
	}
	ea := &extArray{
		r:          r,
		header:     addr,
		client:     hdr[5],
		elemSize:   int(hdr[6]),
		maxBits:    hdr[7],
		idxElems:   uint64(hdr[8]),
		dblkMin:    uint64(hdr[9]),
		sblkMinPtr: uint64(hdr[10]),
		pageBits:   hdr[11],
		chunkBytes: chunkBytes,
	}
	if ea.client > clientFiltered || ea.elemSize < o || ea.dblkMin == 0 || ea.sblkMinPtr == 0 {
		return nil, fmt.Errorf("layout: malformed extensible array header at %#x", addr)
	}
	order := r.ByteOrder()
	stats := hdr[12 : 12+6*l]
	ea.maxIndex = binary.DecodeUint(order, stats[4*l:5*l])
	idxAddr := binary.DecodeUint(order, hdr[12+6*l:12+6*l+o])
	if r.IsUndefinedOffset(idxAddr) || ea.maxIndex == 0 {
		return nil, nil
	}

	out := make([]entry, ea.maxIndex)
	for i := range out {
		out[i].addr = binary.Undefined(o)
	}
	if err := ea.readIndexBlock(idxAddr, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ea *extArray) readIndexBlock(addr uint64, out []entry) error {
	o := ea.r.OffsetSize()
	nsblks := 1 + int(ea.maxBits) - (bits.Len64(ea.dblkMin) - 1)
	iblkSblks := 2 * (bits.Len64(ea.sblkMinPtr) - 1)
	ndblkAddrs := int(2 * (ea.sblkMinPtr - 1))
	nsblkAddrs := nsblks - iblkSblks
	if nsblkAddrs < 0 {
		return fmt.Errorf("layout: extensible array with %d super blocks", nsblks)
	}

	prefix := 4 + 1 + 1 + o
	size := prefix + int(ea.idxElems)*ea.elemSize + (ndblkAddrs+nsblkAddrs)*o + 4
	blk, err := readBlock(ea.r, addr, size, extArrayIndexSig)
	if err != nil {
		return err
	}
	pos := prefix
	es, err := decodeEntries(ea.r, blk[pos:pos+int(ea.idxElems)*ea.elemSize], ea.client, ea.elemSize, ea.chunkBytes)
	if err != nil {
		return err
	}
	next := uint64(copy(out, es))
	pos += int(ea.idxElems) * ea.elemSize

	order := ea.r.ByteOrder()
	readAddr := func() uint64 {
		v := binary.DecodeUint(order, blk[pos:pos+o])
		pos += o
		return v
	}

	// Data blocks of the first super blocks hang directly off the index block.
	for s := 0; s < iblkSblks && next < uint64(len(out)); s++ {
		ndblks, dblkElems := ea.superBlock(s)
		for d := uint64(0); d < ndblks; d++ {
			dblk := readAddr()
			if err := ea.readDataBlock(dblk, dblkElems, next, nil, out); err != nil {
				return err
			}
			next += dblkElems
		}
	}
	if next >= uint64(len(out)) {
		return nil
	}
	pos = prefix + int(ea.idxElems)*ea.elemSize + ndblkAddrs*o
	for s := iblkSblks; s < nsblks && next < uint64(len(out)); s++ {
		ndblks, dblkElems := ea.superBlock(s)
		sblk := readAddr()
		if !ea.r.IsUndefinedOffset(sblk) {
			if err := ea.readSuperBlock(sblk, ndblks, dblkElems, next, out); err != nil {
				return err
			}
		}
		next += ndblks * dblkElems
	}
	return nil
}

// pagesPer returns the page count of a data block, zero when unpaged.
func (ea *extArray) pagesPer(dblkElems uint64) uint64 {
	page := uint64(1) << ea.pageBits
	if dblkElems <= page {
		return 0
	}
	return dblkElems / page
}

func (ea *extArray) readSuperBlock(addr, ndblks, dblkElems, first uint64, out []entry) error {
	o := ea.r.OffsetSize()
	prefix := 4 + 1 + 1 + o + ea.blockOffsetSize()
	npages := ea.pagesPer(dblkElems)
	bitmapLen := 0
	if npages > 0 {
		bitmapLen = int((ndblks*npages + 7) / 8)
	}
	blk, err := readBlock(ea.r, addr, prefix+bitmapLen+int(ndblks)*o+4, extArraySuperSig)
	if err != nil {
		return err
	}
	bitmap := blk[prefix : prefix+bitmapLen]
	order := ea.r.ByteOrder()
	pos := prefix + bitmapLen
	for d := uint64(0); d < ndblks; d++ {
		dblk := binary.DecodeUint(order, blk[pos:pos+o])
		pos += o
		var pageInit func(p uint64) bool
		if npages > 0 {
			base := d * npages
			pageInit = func(p uint64) bool {
				bit := base + p
				return bitmap[bit/8]&(0x80>>(bit%8)) != 0
			}
		}
		if err := ea.readDataBlock(dblk, dblkElems, first+d*dblkElems, pageInit, out); err != nil {
			return err
		}
	}
	return nil
}

// readDataBlock decodes the data block at addr holding elements from first.
// pageInit reports initialised pages of a paged block; a paged block with
// no super block has all pages initialised.
func (ea *extArray) readDataBlock(addr, nelmts, first uint64, pageInit func(uint64) bool, out []entry) error {
	if ea.r.IsUndefinedOffset(addr) || first >= uint64(len(out)) {
		return nil
	}
	o := ea.r.OffsetSize()
	prefix := 4 + 1 + 1 + o + ea.blockOffsetSize()
	npages := ea.pagesPer(nelmts)
	if npages == 0 {
		blk, err := readBlock(ea.r, addr, prefix+int(nelmts)*ea.elemSize+4, extArrayDataSig)
		if err != nil {
			return err
		}
		es, err := decodeEntries(ea.r, blk[prefix:len(blk)-4], ea.client, ea.elemSize, ea.chunkBytes)
		if err != nil {
			return err
		}
		copy(out[first:], es)
		return nil
	}

	if _, err := readBlock(ea.r, addr, prefix+4, extArrayDataSig); err != nil {
		return err
	}
	pageElems := uint64(1) << ea.pageBits
	pageSize := pageElems*uint64(ea.elemSize) + 4
	for p := uint64(0); p < npages; p++ {
		at := first + p*pageElems
		if at >= uint64(len(out)) {
			break
		}
		if pageInit != nil && !pageInit(p) {
			continue
		}
		page, err := readBlock(ea.r, addr+uint64(prefix+4)+p*pageSize, int(pageSize), [4]byte{})
		if err != nil {
			return fmt.Errorf("extensible array page %d: %w", p, err)
		}
		es, err := decodeEntries(ea.r, page[:len(page)-4], ea.client, ea.elemSize, ea.chunkBytes)
		if err != nil {
			return err
		}
		copy(out[at:], es)
	}
	return nil
}
