package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// S2Codec is the block form of S2, a faster Snappy derivative.
type S2Codec struct{}

func (S2Codec) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (S2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("s2: %w", err)
	}
	return out, nil
}
