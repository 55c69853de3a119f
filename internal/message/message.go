package message

import (
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/tomoslice/internal/binary"
)

// Type is an object header message type.
type Type uint16

const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeDataLayout               Type = 0x0008
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
)

// UndefinedAddress marks an address field that points nowhere. Writers
// truncate it to the file's offset width.
const UndefinedAddress = ^uint64(0)

// ErrTruncated is returned when a message body ends before its fields do.
var ErrTruncated = errors.New("message truncated")

// Message is any decoded header message.
type Message interface {
	Type() Type
}

const flagShared = 0x02

// Parse decodes the body of one header message. Types without a decoder
// are returned as *Unknown.
func Parse(typ Type, data []byte, flags uint8, r *binpkg.Reader) (Message, error) {
	if flags&flagShared != 0 {
		// The body references a message stored elsewhere.
		return &Unknown{typ: typ, flags: flags, data: data}, nil
	}
	d := newDecoder(data, r)
	var (
		msg Message
		err error
	)
	switch typ {
	case TypeDataspace:
		msg, err = parseDataspace(d)
	case TypeDatatype:
		msg, err = parseDatatype(d)
	case TypeFillValue:
		msg, err = parseFillValue(d)
	case TypeDataLayout:
		msg, err = parseDataLayout(d)
	case TypeFilterPipeline:
		msg, err = parseFilterPipeline(d)
	case TypeLink:
		msg, err = parseLink(d)
	case TypeLinkInfo:
		msg, err = parseLinkInfo(d)
	case TypeGroupInfo:
		msg, err = parseGroupInfo(d)
	case TypeSymbolTable:
		msg, err = parseSymbolTable(d)
	case TypeObjectHeaderContinuation:
		msg, err = parseContinuation(d)
	default:
		return &Unknown{typ: typ, flags: flags, data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("message 0x%04x: %w", uint16(typ), err)
	}
	return msg, nil
}

// Unknown holds the raw body of a message this package does not decode.
type Unknown struct {
	typ   Type
	flags uint8
	data  []byte
}

func (m *Unknown) Type() Type { return m.typ }
func (m *Unknown) Data() []byte { return m.data }
func (m *Unknown) Flags() uint8 { return m.flags }

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func parseContinuation(d *decoder) (*Continuation, error) {
	c := &Continuation{Offset: d.offset(), Length: d.length()}
	return c, d.err
}

// decoder walks a message body. The first short read sets err and every
// later read returns zero, so parsers check once at the end.
type decoder struct {
	data []byte
	pos  int
	cfg  binpkg.Config
	err  error
}

func newDecoder(data []byte, r *binpkg.Reader) *decoder {
	cfg := binpkg.DefaultConfig()
	if r != nil {
		cfg = binpkg.Config{ByteOrder: r.ByteOrder(), OffsetSize: r.OffsetSize(), LengthSize: r.LengthSize()}
	}
	return &decoder{data: data, cfg: cfg}
}

func (d *decoder) remaining() int { return len(d.data) - d.pos }

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.data) {
		d.err = ErrTruncated
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) skip(n int) { d.bytes(n) }

func (d *decoder) uintN(n int) uint64 {
	b := d.bytes(n)
	if b == nil {
		return 0
	}
	return binpkg.DecodeUint(d.cfg.ByteOrder, b)
}

func (d *decoder) u8() uint8 { return uint8(d.uintN(1)) }
func (d *decoder) u16() uint16 { return uint16(d.uintN(2)) }
func (d *decoder) u32() uint32 { return uint32(d.uintN(4)) }
func (d *decoder) u64() uint64 { return d.uintN(8) }
func (d *decoder) offset() uint64 { return d.uintN(d.cfg.OffsetSize) }
func (d *decoder) length() uint64 { return d.uintN(d.cfg.LengthSize) }

// cstring reads n bytes and drops everything from the first NUL.
func (d *decoder) cstring(n int) string {
	b := d.bytes(n)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
