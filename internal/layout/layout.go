package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

var (
	// ErrOutOfBounds reports a hyperslab that leaves the dataset extent.
	ErrOutOfBounds = errors.New("layout: selection out of bounds")
	// ErrShortBuffer reports a destination smaller than the selection.
	ErrShortBuffer = errors.New("layout: destination buffer too small")
	// ErrUnsupported reports a storage feature this package cannot read.
	ErrUnsupported = errors.New("layout: unsupported storage")
	// ErrChunkNotFound reports a chunk with no stored data.
	ErrChunkNotFound = errors.New("layout: chunk not stored")
)

// Layout reads raw dataset bytes in file element order.
type Layout interface {
	Class() message.LayoutClass

	// ReadHyperslab copies the block at start with extent count into dst,
	// row-major, and returns an error if dst is shorter than the block.
	ReadHyperslab(start, count []uint64, dst []byte) error
}

// Dataset bundles the messages a layout needs.
type Dataset struct {
	Layout    *message.DataLayout
	Space     *message.Dataspace
	Type      *message.Datatype
	Pipeline  *message.FilterPipeline
	FillValue *message.FillValue
}

// New returns the layout reader for a dataset.
func New(ds Dataset, r *binary.Reader) (Layout, error) {
	if ds.Layout == nil || ds.Space == nil || ds.Type == nil {
		return nil, fmt.Errorf("layout: dataset is missing layout, dataspace or datatype")
	}
	switch ds.Layout.Class {
	case message.LayoutCompact:
		return NewCompact(ds), nil
	case message.LayoutContiguous:
		return NewContiguous(ds, r), nil
	case message.LayoutChunked:
		return NewChunked(ds, r)
	}
	return nil, fmt.Errorf("%w: %s layout", ErrUnsupported, ds.Layout.Class)
}

// extent returns the dataset dimensions, treating a scalar as one element.
func extent(space *message.Dataspace) []uint64 {
	if len(space.Dimensions) == 0 {
		return []uint64{1}
	}
	return space.Dimensions
}

func product(v []uint64) uint64 {
	n := uint64(1)
	for _, x := range v {
		n *= x
	}
	return n
}

// checkSelection validates a hyperslab and returns its size in bytes.
func checkSelection(dims, start, count []uint64, elem uint64, dst []byte) (uint64, error) {
	if len(start) != len(dims) || len(count) != len(dims) {
		return 0, fmt.Errorf("%w: selection rank %d/%d, dataset rank %d",
			ErrOutOfBounds, len(start), len(count), len(dims))
	}
	for d := range dims {
		if start[d] > dims[d] || count[d] > dims[d]-start[d] {
			return 0, fmt.Errorf("%w: dim %d start %d count %d extent %d",
				ErrOutOfBounds, d, start[d], count[d], dims[d])
		}
	}
	n := product(count) * elem
	if uint64(len(dst)) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(dst))
	}
	return n, nil
}

// fillPattern returns one element of fill, zeros when none is defined.
func fillPattern(fv *message.FillValue, elem uint64) []byte {
	if fv != nil && fv.Defined && uint64(len(fv.Value)) == elem {
		return fv.Value
	}
	return make([]byte, elem)
}

func fill(dst, pattern []byte) {
	if len(dst) == 0 {
		return
	}
	n := copy(dst, pattern)
	for n < len(dst) {
		n += copy(dst[n:], dst[:n])
	}
}

// copyBox copies the intersection of two boxes. The source box has origin
// srcStart and extent srcCount and is stored row-major in src; likewise
// for the destination.
func copyBox(dst []byte, dstStart, dstCount []uint64, src []byte, srcStart, srcCount []uint64, elem uint64) {
	rank := len(dstStart)
	lo := make([]uint64, rank)
	hi := make([]uint64, rank)
	for d := 0; d < rank; d++ {
		lo[d] = max(dstStart[d], srcStart[d])
		hi[d] = min(dstStart[d]+dstCount[d], srcStart[d]+srcCount[d])
		if lo[d] >= hi[d] {
			return
		}
	}
	srcStride := strides(srcCount)
	dstStride := strides(dstCount)
	row := (hi[rank-1] - lo[rank-1]) * elem

	pos := append([]uint64(nil), lo...)
	for {
		var so, do uint64
		for d := 0; d < rank; d++ {
			so += (pos[d] - srcStart[d]) * srcStride[d]
			do += (pos[d] - dstStart[d]) * dstStride[d]
		}
		copy(dst[do*elem:do*elem+row], src[so*elem:so*elem+row])

		d := rank - 2
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < hi[d] {
				break
			}
			pos[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}

// strides returns row-major element strides for a box of extent count.
func strides(count []uint64) []uint64 {
	s := make([]uint64, len(count))
	acc := uint64(1)
	for d := len(count) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= count[d]
	}
	return s
}
