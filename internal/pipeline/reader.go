package pipeline

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/slicing"
)

// SliceSource reads a hyperslab into a caller owned buffer.
type SliceSource interface {
	ReadSliceInto(start, count []uint64, buf []byte) error
}

// SliceReader reads whole slices of a volume.
type SliceReader struct {
	src SliceSource
	vol slicing.Volume
}

func NewSliceReader(src SliceSource, vol slicing.Volume) *SliceReader {
	return &SliceReader{src: src, vol: vol}
}

// Read fills buf with slice i. buf is undefined after an error.
func (r *SliceReader) Read(i int, buf []byte) error {
	if len(buf) != r.vol.SliceBytes() {
		return sliceError(KindRead, i, "read", fmt.Errorf("buffer of %d bytes, slice is %d", len(buf), r.vol.SliceBytes()))
	}
	slab := r.vol.Slice(i)
	if err := r.src.ReadSliceInto(slab.Offset, slab.Extent, buf); err != nil {
		return sliceError(KindRead, i, "read", err)
	}
	return nil
}
