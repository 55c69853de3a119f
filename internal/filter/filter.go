package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/message"
)

// Filter transforms one chunk. Encode and Decode are inverses.
type Filter interface {
	ID() uint16
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ErrUnsupported is returned for a mandatory filter with no implementation.
var ErrUnsupported = errors.New("unsupported filter")

// registry maps filter ids to constructors taking the filter's client data.
var registry = map[uint16]func(cd []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return Fletcher32{} },
	message.FilterZstd:       func(cd []uint32) Filter { return Zstd{} },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "fletcher32",
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "nbit",
	message.FilterScaleOffset: "scaleoffset",
	message.FilterLZ4:         "lz4",
	message.FilterZstd:        "zstd",
	message.FilterBlosc2:      "blosc2",
}

// Name is a readable name for a filter id.
func Name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter-%d", id)
}

// Supported reports whether id has an implementation.
func Supported(id uint16) bool {
	_, ok := registry[id]
	return ok
}

// New builds the filter described by info. An optional filter without an
// implementation yields (nil, nil) and is skipped.
func New(info message.FilterInfo) (Filter, error) {
	ctor, ok := registry[info.ID]
	if !ok {
		if info.IsOptional() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s (id %d)", ErrUnsupported, Name(info.ID), info.ID)
	}
	return ctor(info.ClientData), nil
}
