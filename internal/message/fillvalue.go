package message

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// Space allocation times.
const (
	AllocEarly       uint8 = 1
	AllocLate        uint8 = 2
	AllocIncremental uint8 = 3
)

// Fill value write times.
const (
	FillOnAlloc uint8 = 0
	FillNever   uint8 = 1
	FillIfSet   uint8 = 2
)

// FillValue is message 0x0005.
type FillValue struct {
	Version   uint8
	AllocTime uint8
	FillTime  uint8
	Defined   bool
	Value     []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func parseFillValue(d *decoder) (*FillValue, error) {
	fv := &FillValue{Version: d.u8()}
	switch fv.Version {
	case 1, 2:
		fv.AllocTime = d.u8()
		fv.FillTime = d.u8()
		fv.Defined = d.u8() != 0
		if fv.Defined && d.remaining() >= 4 {
			size := d.u32()
			fv.Value = d.bytes(int(size))
		}
	case 3:
		flags := d.u8()
		fv.AllocTime = flags & 0x03
		fv.FillTime = (flags >> 2) & 0x03
		if flags&0x20 != 0 {
			fv.Defined = true
			size := d.u32()
			fv.Value = d.bytes(int(size))
		}
	default:
		return nil, fmt.Errorf("unsupported fill value version %d", fv.Version)
	}
	return fv, d.err
}

// Serialize writes a version 3 fill value message.
func (m *FillValue) Serialize(w *binary.Writer) error {
	flags := m.AllocTime&0x03 | (m.FillTime&0x03)<<2
	if m.Defined {
		flags |= 0x20
	}
	e := &encoder{w: w}
	e.u8(3)
	e.u8(flags)
	if m.Defined {
		e.u32(uint32(len(m.Value)))
		e.bytes(m.Value)
	}
	return e.err
}

func (m *FillValue) SerializedSize(w *binary.Writer) int {
	if m.Defined {
		return 6 + len(m.Value)
	}
	return 2
}

// NewFillValue returns a message with the library default fill (zeros).
func NewFillValue(allocTime uint8) *FillValue {
	return &FillValue{Version: 3, AllocTime: allocTime, FillTime: FillIfSet}
}
