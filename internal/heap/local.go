package heap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

var localSignature = []byte("HEAP")

// ErrInvalidHeap is returned for a block that is not a version 0 local heap.
var ErrInvalidHeap = errors.New("invalid local heap")

// Local is a loaded local heap data segment.
type Local struct {
	Address     uint64
	DataAddress uint64
	FreeOffset  uint64
	data        []byte
}

// ReadLocal loads the heap at address and its whole data segment.
func ReadLocal(r *binary.Reader, address uint64) (*Local, error) {
	hr := r.At(int64(address))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, err)
	}
	if !bytes.Equal(head[:4], localSignature) || head[4] != 0 {
		return nil, fmt.Errorf("%w at %d", ErrInvalidHeap, address)
	}

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	free, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return &Local{Address: address, DataAddress: dataAddr, FreeOffset: free, data: data}, nil
}

// String returns the NUL-terminated string starting at offset, or "" if
// offset lies outside the segment.
func (h *Local) String(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	rest := h.data[offset:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	return string(rest)
}

// Size is the length of the data segment.
func (h *Local) Size() int { return len(h.data) }
