package layout

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Compact reads data stored inside the object header.
type Compact struct {
	data []byte
	dims []uint64
	elem uint64
}

func NewCompact(ds Dataset) *Compact {
	return &Compact{
		data: ds.Layout.CompactData,
		dims: extent(ds.Space),
		elem: uint64(ds.Type.Size),
	}
}

func (c *Compact) Class() message.LayoutClass { return message.LayoutCompact }

// Size returns the stored byte count.
func (c *Compact) Size() int { return len(c.data) }

func (c *Compact) ReadHyperslab(start, count []uint64, dst []byte) error {
	if _, err := checkSelection(c.dims, start, count, c.elem, dst); err != nil {
		return err
	}
	if need := product(c.dims) * c.elem; uint64(len(c.data)) < need {
		return fmt.Errorf("layout: compact data holds %d bytes, extent needs %d", len(c.data), need)
	}
	copyBox(dst, start, count, c.data, make([]uint64, len(c.dims)), c.dims, c.elem)
	return nil
}
