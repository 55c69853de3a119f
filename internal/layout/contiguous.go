package layout

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Contiguous reads data stored as a single block in the file.
type Contiguous struct {
	address uint64
	size    uint64
	dims    []uint64
	elem    uint64
	fill    []byte
	r       *binary.Reader
}

func NewContiguous(ds Dataset, r *binary.Reader) *Contiguous {
	dims := extent(ds.Space)
	elem := uint64(ds.Type.Size)
	size := ds.Layout.Size
	if size == 0 {
		size = product(dims) * elem
	}
	return &Contiguous{
		address: ds.Layout.Address,
		size:    size,
		dims:    dims,
		elem:    elem,
		fill:    fillPattern(ds.FillValue, elem),
		r:       r,
	}
}

func (c *Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

// Address returns the file offset of the data block.
func (c *Contiguous) Address() uint64 { return c.address }

// Size returns the data size in bytes.
func (c *Contiguous) Size() uint64 { return c.size }

// ReadHyperslab reads each contiguous run of the selection straight from
// the file. Trailing dimensions selected in full merge into one run.
func (c *Contiguous) ReadHyperslab(start, count []uint64, dst []byte) error {
	n, err := checkSelection(c.dims, start, count, c.elem, dst)
	if err != nil || n == 0 {
		return err
	}
	dst = dst[:n]
	if c.r.IsUndefinedOffset(c.address) {
		// never written
		fill(dst, c.fill)
		return nil
	}

	rank := len(c.dims)
	inner := rank - 1
	for inner > 0 && start[inner] == 0 && count[inner] == c.dims[inner] {
		inner--
	}
	run := product(count[inner:]) * c.elem
	stride := strides(c.dims)

	pos := append([]uint64(nil), start...)
	var out uint64
	for {
		var off uint64
		for d := 0; d < rank; d++ {
			off += pos[d] * stride[d]
		}
		if err := c.r.At(int64(c.address + off*c.elem)).ReadInto(dst[out : out+run]); err != nil {
			return fmt.Errorf("layout: reading contiguous data at element %d: %w", off, err)
		}
		out += run

		d := inner - 1
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < start[d]+count[d] {
				break
			}
			pos[d] = start[d]
		}
		if d < 0 {
			return nil
		}
	}
}
