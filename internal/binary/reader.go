// Package binary decodes and encodes the fixed-width integers, file
// addresses and lengths that make up HDF5 metadata.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidSize is returned for address or length widths HDF5 does not define.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// Config fixes the byte order and the widths of file addresses ("offsets")
// and object lengths. Both widths come from the superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is the layout every file this module creates uses.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// Validate reports whether both widths are ones HDF5 allows.
func (c Config) Validate() error {
	for _, n := range []int{c.OffsetSize, c.LengthSize} {
		if n != 2 && n != 4 && n != 8 {
			return ErrInvalidSize
		}
	}
	return nil
}

// undefined is the all-ones value of an n byte field.
func undefined(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(8*uint(n)) - 1
}

// Undefined returns the all-ones value HDF5 uses for an unset n-byte field.
func Undefined(n int) uint64 { return undefined(n) }

// Reader reads sequentially from a fixed position of an io.ReaderAt.
// Each Reader owns its cursor; At derives independent cursors so that
// concurrent walks over the same file never share state.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

// NewReader returns a reader positioned at offset 0.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: r, cfg: cfg}
}

// At returns a new reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: offset}
}

// WithSizes returns a copy that decodes addresses and lengths with other widths.
func (r *Reader) WithSizes(offsetSize, lengthSize int) *Reader {
	cfg := r.cfg
	cfg.OffsetSize, cfg.LengthSize = offsetSize, lengthSize
	return &Reader{src: r.src, cfg: cfg, pos: r.pos}
}

func (r *Reader) Pos() int64                  { return r.pos }
func (r *Reader) OffsetSize() int             { return r.cfg.OffsetSize }
func (r *Reader) LengthSize() int             { return r.cfg.LengthSize }
func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }
func (r *Reader) Skip(n int64)                { r.pos += n }

// ReadBytes reads exactly n bytes and advances the cursor.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := r.ReadInto(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto fills buf completely and advances the cursor. A short read is
// reported as io.ErrUnexpectedEOF.
func (r *Reader) ReadInto(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := r.src.ReadAt(buf, r.pos)
	if n == len(buf) {
		r.pos += int64(n)
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Peek reads n bytes without moving the cursor.
func (r *Reader) Peek(n int) ([]byte, error) {
	buf, err := r.At(r.pos).ReadBytes(n)
	return buf, err
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadUintN reads an unsigned integer stored in n bytes (1 to 8).
func (r *Reader) ReadUintN(n int) (uint64, error) {
	var scratch [8]byte
	if n < 1 || n > 8 {
		return 0, ErrInvalidSize
	}
	if err := r.ReadInto(scratch[:n]); err != nil {
		return 0, err
	}
	return DecodeUint(r.cfg.ByteOrder, scratch[:n]), nil
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.cfg.OffsetSize) }

// ReadLength reads an object length.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.cfg.LengthSize) }

// IsUndefinedOffset reports whether v is the "undefined address" marker.
func (r *Reader) IsUndefinedOffset(v uint64) bool { return v == undefined(r.cfg.OffsetSize) }

// IsUndefinedLength reports whether v is the "undefined length" marker.
func (r *Reader) IsUndefinedLength(v uint64) bool { return v == undefined(r.cfg.LengthSize) }

// DecodeUint decodes an unsigned integer of len(buf) bytes. Widths other
// than 1, 2, 4 and 8 are always little-endian, as HDF5 stores them.
func DecodeUint(order binary.ByteOrder, buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}
