package filter

import (
	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Zstd is the registered Zstandard filter: each chunk is one zstd frame.
type Zstd struct{}

func (Zstd) ID() uint16 { return message.FilterZstd }

func (Zstd) Encode(data []byte) ([]byte, error) {
	return compress.ZstdCodec{}.Compress(data)
}

func (Zstd) Decode(data []byte) ([]byte, error) {
	return compress.ZstdCodec{}.Decompress(data)
}
