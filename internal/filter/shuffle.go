package filter

import (
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Shuffle groups byte k of every element together, which helps the
// compressor that follows it. Trailing bytes that do not form a whole
// element are left in place.
type Shuffle struct {
	elemSize int
}

// NewShuffle takes the element size from cd[0].
func NewShuffle(cd []uint32) *Shuffle {
	size := 1
	if len(cd) > 0 && cd[0] > 0 {
		size = int(cd[0])
	}
	return &Shuffle{elemSize: size}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

func (f *Shuffle) Encode(data []byte) ([]byte, error) {
	n := len(data) / f.elemSize
	if f.elemSize <= 1 || n <= 1 {
		return data, nil
	}
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < f.elemSize; b++ {
			out[b*n+i] = data[i*f.elemSize+b]
		}
	}
	copy(out[n*f.elemSize:], data[n*f.elemSize:])
	return out, nil
}

func (f *Shuffle) Decode(data []byte) ([]byte, error) {
	n := len(data) / f.elemSize
	if f.elemSize <= 1 || n <= 1 {
		return data, nil
	}
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < f.elemSize; b++ {
			out[i*f.elemSize+b] = data[b*n+i]
		}
	}
	copy(out[n*f.elemSize:], data[n*f.elemSize:])
	return out, nil
}
