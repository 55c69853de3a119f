package message

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// DatatypeClass is the HDF5 datatype class (low nibble of byte 0).
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

func (c DatatypeClass) String() string {
	switch c {
	case ClassFixedPoint:
		return "integer"
	case ClassFloatPoint:
		return "float"
	case ClassString:
		return "string"
	case ClassCompound:
		return "compound"
	case ClassArray:
		return "array"
	case ClassVarLen:
		return "vlen"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Datatype is message 0x0003. Only numeric classes are decoded in full;
// other classes keep their raw property bytes.
type Datatype struct {
	Version   uint8
	Class     DatatypeClass
	ClassBits uint32
	Size      uint32

	BigEndian    bool
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	// Floating point layout.
	ExpLocation  uint8
	ExpSize      uint8
	MantLocation uint8
	MantSize     uint8
	ExpBias      uint32

	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsInteger reports a fixed-point type.
func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }

// IsFloat reports a floating-point type.
func (m *Datatype) IsFloat() bool { return m.Class == ClassFloatPoint }

func parseDatatype(d *decoder) (*Datatype, error) {
	head := d.u8()
	bits := d.uintN(3)
	dt := &Datatype{
		Version:   head >> 4,
		Class:     DatatypeClass(head & 0x0F),
		ClassBits: uint32(bits),
		Size:      d.u32(),
	}
	if d.err != nil {
		return nil, d.err
	}

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.BigEndian = bits&0x01 != 0
		dt.Signed = bits&0x08 != 0
		dt.BitOffset = d.u16()
		dt.BitPrecision = d.u16()
	case ClassFloatPoint:
		dt.BigEndian = bits&0x01 != 0
		dt.Signed = true
		dt.BitOffset = d.u16()
		dt.BitPrecision = d.u16()
		dt.ExpLocation = d.u8()
		dt.ExpSize = d.u8()
		dt.MantLocation = d.u8()
		dt.MantSize = d.u8()
		dt.ExpBias = d.u32()
	default:
		dt.Properties = d.bytes(d.remaining())
	}
	return dt, d.err
}

func (m *Datatype) propertySize() int {
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		return 4
	case ClassFloatPoint:
		return 12
	}
	return len(m.Properties)
}

// Serialize writes a version 1 datatype message.
func (m *Datatype) Serialize(w *binary.Writer) error {
	version := m.Version
	if version == 0 {
		version = 1
	}
	bits := m.ClassBits
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		bits &^= 0x09
		if m.BigEndian {
			bits |= 0x01
		}
		if m.Signed {
			bits |= 0x08
		}
	case ClassFloatPoint:
		bits &^= 0x01
		if m.BigEndian {
			bits |= 0x01
		}
	}

	e := &encoder{w: w}
	e.u8(version<<4 | uint8(m.Class))
	e.uintN(uint64(bits), 3)
	e.u32(m.Size)
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
		e.u8(m.ExpLocation)
		e.u8(m.ExpSize)
		e.u8(m.MantLocation)
		e.u8(m.MantSize)
		e.u32(m.ExpBias)
	default:
		e.bytes(m.Properties)
	}
	return e.err
}

func (m *Datatype) SerializedSize(w *binary.Writer) int {
	return 8 + m.propertySize()
}

// NewIntegerDatatype returns a fixed-point type of size bytes.
func NewIntegerDatatype(size int, signed, bigEndian bool) *Datatype {
	return &Datatype{
		Version:      1,
		Class:        ClassFixedPoint,
		Size:         uint32(size),
		Signed:       signed,
		BigEndian:    bigEndian,
		BitPrecision: uint16(8 * size),
	}
}

// NewFloatDatatype returns an IEEE 754 binary32 or binary64 type.
func NewFloatDatatype(size int, bigEndian bool) (*Datatype, error) {
	dt := &Datatype{
		Version:      1,
		Class:        ClassFloatPoint,
		Size:         uint32(size),
		Signed:       true,
		BigEndian:    bigEndian,
		BitPrecision: uint16(8 * size),
	}
	switch size {
	case 4:
		dt.ClassBits = 0x20 | 31<<8
		dt.ExpLocation, dt.ExpSize, dt.MantSize, dt.ExpBias = 23, 8, 23, 127
	case 8:
		dt.ClassBits = 0x20 | 63<<8
		dt.ExpLocation, dt.ExpSize, dt.MantSize, dt.ExpBias = 52, 11, 52, 1023
	default:
		return nil, fmt.Errorf("no IEEE float of %d bytes", size)
	}
	return dt, nil
}
