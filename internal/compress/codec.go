package compress

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies a compressor. The numeric values are stored in frame
// headers and must not change.
type Type uint8

const (
	TypeZstd Type = 1
	TypeS2   Type = 2
	TypeLZ4  Type = 3
)

// ErrUnknownType is returned for an unrecognised compressor id or name.
var ErrUnknownType = errors.New("unknown compressor")

func (t Type) String() string {
	switch t {
	case TypeZstd:
		return "zstd"
	case TypeS2:
		return "s2"
	case TypeLZ4:
		return "lz4"
	}
	return fmt.Sprintf("compressor(%d)", uint8(t))
}

// ParseType maps a name as accepted on the command line to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "zstd", "zstandard":
		return TypeZstd, nil
	case "s2", "snappy":
		return TypeS2, nil
	case "lz4":
		return TypeLZ4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Codec compresses and decompresses whole buffers. Returned slices are
// owned by the caller.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Get returns the codec for t.
func Get(t Type) (Codec, error) {
	switch t {
	case TypeZstd:
		return ZstdCodec{}, nil
	case TypeS2:
		return S2Codec{}, nil
	case TypeLZ4:
		return LZ4Codec{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
}

// Ratio is original/compressed, or 0 when compressed is 0.
func Ratio(original, compressed int64) float64 {
	if compressed == 0 {
		return 0
	}
	return float64(original) / float64(compressed)
}
