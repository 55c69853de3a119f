package frame

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// FilterID is the registered id written into the destination's filter
// pipeline. Readers that do not know it see chunks they cannot decode
// instead of chunks they decode wrongly.
const FilterID = message.FilterBlosc2

// FilterName is stored alongside FilterID.
const FilterName = "wvlt"

// descriptorValues is the number of client data words.
const descriptorValues = 11

// Descriptor is the client data of the filter pipeline entry describing
// how chunks were produced. Nothing in the write path applies it; it
// documents the frames for other readers.
type Descriptor struct {
	Revision    uint32
	BlockSize   uint32
	ElementSize uint32
	ChunkBytes  uint32
	Quality     uint32 // target rate, rounded
	Shuffle     uint32
	Codec       compress.Type
	Rank        uint32
	Chunk       [3]uint32
}

// NewDescriptor describes frames of chunk shape chunk.
func NewDescriptor(chunk [3]uint64, elemSize int, codec compress.Type, rate float64) (Descriptor, error) {
	bytes := chunk[0] * chunk[1] * chunk[2] * uint64(elemSize)
	if bytes == 0 || bytes > math.MaxUint32 {
		return Descriptor{}, fmt.Errorf("%w: chunk of %d bytes", ErrInconsistent, bytes)
	}
	d := Descriptor{
		Revision:    Version,
		BlockSize:   uint32(bytes),
		ElementSize: uint32(elemSize),
		ChunkBytes:  uint32(bytes),
		Quality:     uint32(math.Round(rate)),
		Codec:       codec,
		Rank:        3,
	}
	for i, c := range chunk {
		d.Chunk[i] = uint32(c)
	}
	return d, nil
}

// ClientData returns the values in pipeline order.
func (d Descriptor) ClientData() []uint32 {
	return []uint32{
		d.Revision, d.BlockSize, d.ElementSize, d.ChunkBytes,
		d.Quality, d.Shuffle, uint32(d.Codec), d.Rank,
		d.Chunk[0], d.Chunk[1], d.Chunk[2],
	}
}

// FilterInfo is the pipeline entry for d. The entry is mandatory: a reader
// that cannot apply it must fail rather than skip it.
func (d Descriptor) FilterInfo() message.FilterInfo {
	return message.FilterInfo{
		ID:         FilterID,
		Name:       FilterName,
		ClientData: d.ClientData(),
	}
}

// ParseDescriptor reverses ClientData.
func ParseDescriptor(cd []uint32) (Descriptor, error) {
	if len(cd) != descriptorValues {
		return Descriptor{}, fmt.Errorf("%w: %d client data values", ErrInconsistent, len(cd))
	}
	if cd[6] > math.MaxUint8 {
		return Descriptor{}, fmt.Errorf("%w: codec %d", ErrInconsistent, cd[6])
	}
	return Descriptor{
		Revision:    cd[0],
		BlockSize:   cd[1],
		ElementSize: cd[2],
		ChunkBytes:  cd[3],
		Quality:     cd[4],
		Shuffle:     cd[5],
		Codec:       compress.Type(cd[6]),
		Rank:        cd[7],
		Chunk:       [3]uint32{cd[8], cd[9], cd[10]},
	}, nil
}
