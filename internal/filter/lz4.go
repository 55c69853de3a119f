package filter

import (
	"encoding/binary"
	"errors"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

const defaultLZ4Block = 1 << 30

var errLZ4Truncated = errors.New("truncated lz4 chunk")

// LZ4 is the registered LZ4 filter. A chunk is a big-endian header of raw
// size (8 bytes) and block size (4 bytes), then per block a 4 byte
// compressed size and the block. A block whose compressed size equals its
// raw size is stored verbatim.
type LZ4 struct {
	blockSize int
}

// NewLZ4 takes the block size from cd[0]; zero means one block per chunk.
func NewLZ4(cd []uint32) *LZ4 {
	size := defaultLZ4Block
	if len(cd) > 0 && cd[0] > 0 {
		size = int(cd[0])
	}
	return &LZ4{blockSize: size}
}

func (f *LZ4) ID() uint16 { return message.FilterLZ4 }

func (f *LZ4) Encode(data []byte) ([]byte, error) {
	block := min(f.blockSize, max(len(data), 1))
	out := make([]byte, 12, 12+len(data)/2)
	binary.BigEndian.PutUint64(out, uint64(len(data)))
	binary.BigEndian.PutUint32(out[8:], uint32(block))

	scratch := make([]byte, lz4.CompressBlockBound(block))
	for start := 0; start < len(data); start += block {
		src := data[start:min(start+block, len(data))]
		n, err := compress.CompressLZ4Block(src, scratch)
		if err != nil {
			return nil, err
		}
		out = binary.BigEndian.AppendUint32(out, uint32(n))
		out = append(out, scratch[:n]...)
	}
	return out, nil
}

func (f *LZ4) Decode(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, errLZ4Truncated
	}
	total := binary.BigEndian.Uint64(data)
	block := int(binary.BigEndian.Uint32(data[8:]))
	if block == 0 {
		return nil, errLZ4Truncated
	}
	out := make([]byte, total)
	data = data[12:]
	for start := 0; start < len(out); start += block {
		if len(data) < 4 {
			return nil, errLZ4Truncated
		}
		n := int(binary.BigEndian.Uint32(data))
		data = data[4:]
		if n > len(data) {
			return nil, errLZ4Truncated
		}
		dst := out[start:min(start+block, len(out))]
		if err := compress.DecompressLZ4Block(data[:n], dst); err != nil {
			return nil, err
		}
		data = data[n:]
	}
	return out, nil
}
