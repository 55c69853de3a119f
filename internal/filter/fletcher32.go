package filter

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Fletcher32 appends a checksum on write and verifies and strips it on
// read.
type Fletcher32 struct{}

func (Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (Fletcher32) Encode(data []byte) ([]byte, error) {
	out := make([]byte, len(data)+4)
	copy(out, data)
	binary.LittleEndian.PutUint32(out[len(data):], binpkg.Fletcher32(data))
	return out, nil
}

func (Fletcher32) Decode(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("chunk of %d bytes has no checksum", len(data))
	}
	body := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(body):])
	if !binpkg.VerifyFletcher32(body, stored) {
		return nil, fmt.Errorf("checksum mismatch: stored 0x%08x, computed 0x%08x", stored, binpkg.Fletcher32(body))
	}
	return body, nil
}
