// Package slicing maps slice indexes of a 3-D volume (N, H, W) to the
// source hyperslab that holds the slice and to the destination chunk the
// slice is stored in. One chunk holds exactly one slice.
package slicing

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/dtype"
)

var (
	// ErrRank reports a source that is not three dimensional.
	ErrRank = errors.New("slicing: volume must have rank 3")
	// ErrExtent reports a zero extent or an element size below one.
	ErrExtent = errors.New("slicing: empty volume")
)

// Volume describes the source array. It is immutable once built.
type Volume struct {
	Shape       [3]uint64 // N, H, W
	ElementSize int
	Type        dtype.Info
}

// Hyperslab is a block selection in volume coordinates.
type Hyperslab struct {
	Offset []uint64
	Extent []uint64
}

// ChunkLayout is the destination chunking: one chunk per slice.
type ChunkLayout struct {
	Shape []uint64
}

// NewVolume validates shape and element size.
func NewVolume(shape []uint64, elemSize int, t dtype.Info) (Volume, error) {
	if len(shape) != 3 {
		return Volume{}, fmt.Errorf("%w: got rank %d %v", ErrRank, len(shape), shape)
	}
	if elemSize < 1 || shape[0] == 0 || shape[1] == 0 || shape[2] == 0 {
		return Volume{}, fmt.Errorf("%w: shape %v, element size %d", ErrExtent, shape, elemSize)
	}
	return Volume{Shape: [3]uint64{shape[0], shape[1], shape[2]}, ElementSize: elemSize, Type: t}, nil
}

// Slices is N.
func (v Volume) Slices() int { return int(v.Shape[0]) }

// Height is H.
func (v Volume) Height() int { return int(v.Shape[1]) }

// Width is W.
func (v Volume) Width() int { return int(v.Shape[2]) }

// Dims returns the shape as a slice.
func (v Volume) Dims() []uint64 { return []uint64{v.Shape[0], v.Shape[1], v.Shape[2]} }

// SliceBytes is the raw size of one slice, H*W*elementSize.
func (v Volume) SliceBytes() int {
	return int(v.Shape[1]*v.Shape[2]) * v.ElementSize
}

// TotalBytes is the raw size of the volume.
func (v Volume) TotalBytes() uint64 {
	return v.Shape[0] * uint64(v.SliceBytes())
}

// ChunkLayout returns the (1, H, W) destination chunking.
func (v Volume) ChunkLayout() ChunkLayout {
	return ChunkLayout{Shape: []uint64{1, v.Shape[1], v.Shape[2]}}
}

// Slice returns the source selection of slice i.
func (v Volume) Slice(i int) Hyperslab {
	return Hyperslab{
		Offset: []uint64{uint64(i), 0, 0},
		Extent: []uint64{1, v.Shape[1], v.Shape[2]},
	}
}

// Chunk returns the destination chunk offset of slice i.
func (v Volume) Chunk(i int) []uint64 {
	return []uint64{uint64(i), 0, 0}
}

func (v Volume) String() string {
	return fmt.Sprintf("(%d,%d,%d) %s", v.Shape[0], v.Shape[1], v.Shape[2], v.Type)
}
