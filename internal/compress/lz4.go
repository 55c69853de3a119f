package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

// LZ4Codec stores a 4 byte little-endian raw length ahead of one LZ4 block.
// Incompressible input is kept verbatim, flagged by a compressed size equal
// to the raw size.
type LZ4Codec struct{}

var errLZ4Corrupt = errors.New("lz4: corrupt block")

func (LZ4Codec) Compress(data []byte) ([]byte, error) {
	out := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(out, uint32(len(data)))
	n, err := CompressLZ4Block(data, out[4:])
	if err != nil {
		return nil, err
	}
	return out[:4+n], nil
}

func (LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, errLZ4Corrupt
	}
	raw := int(binary.LittleEndian.Uint32(data))
	out := make([]byte, raw)
	if err := DecompressLZ4Block(data[4:], out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompressLZ4Block compresses src into dst, which must hold at least
// lz4.CompressBlockBound(len(src)) bytes. When compression does not shrink
// the data, src is copied and len(src) returned.
func CompressLZ4Block(src, dst []byte) (int, error) {
	c := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(c)
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return 0, fmt.Errorf("lz4: %w", err)
	}
	if n == 0 || n >= len(src) {
		return copy(dst, src), nil
	}
	return n, nil
}

// DecompressLZ4Block fills dst from a block written by CompressLZ4Block.
func DecompressLZ4Block(src, dst []byte) error {
	if len(src) == len(dst) {
		copy(dst, src)
		return nil
	}
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return fmt.Errorf("lz4: %w", err)
	}
	if n != len(dst) {
		return errLZ4Corrupt
	}
	return nil
}
