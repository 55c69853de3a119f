package binary

import (
	"encoding/binary"
	"io"
)

// Writer is the write-side twin of Reader: a cursor over an io.WriterAt.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

// NewWriter returns a writer positioned at offset 0.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: w, cfg: cfg}
}

// At returns a new writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: offset}
}

func (w *Writer) Pos() int64                  { return w.pos }
func (w *Writer) OffsetSize() int             { return w.cfg.OffsetSize }
func (w *Writer) LengthSize() int             { return w.cfg.LengthSize }
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }
func (w *Writer) Config() Config              { return w.cfg }

// WriteBytes writes data at the cursor and advances it by the bytes written.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(data, w.pos)
	w.pos += int64(n)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	return err
}

func (w *Writer) WriteUint8(v uint8) error   { return w.WriteUintN(uint64(v), 1) }
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteUintN writes v into n bytes (1 to 8).
func (w *Writer) WriteUintN(v uint64, n int) error {
	var scratch [8]byte
	if n < 1 || n > 8 {
		return ErrInvalidSize
	}
	EncodeUint(w.cfg.ByteOrder, scratch[:n], v)
	return w.WriteBytes(scratch[:n])
}

func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.cfg.OffsetSize) }
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.cfg.LengthSize) }

// UndefinedOffset is the all-ones address HDF5 uses for "not allocated".
func (w *Writer) UndefinedOffset() uint64 { return undefined(w.cfg.OffsetSize) }

// UndefinedLength is the all-ones length marker.
func (w *Writer) UndefinedLength() uint64 { return undefined(w.cfg.LengthSize) }

func (w *Writer) WriteUndefinedOffset() error { return w.WriteOffset(w.UndefinedOffset()) }

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// EncodeUint stores v into len(buf) bytes. It is the inverse of DecodeUint.
func EncodeUint(order binary.ByteOrder, buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * uint(i)))
		}
	}
}

// Buffer is an in-memory io.WriterAt that grows on demand. Metadata blocks
// are assembled in a Buffer so their checksum can be computed before they
// reach the file.
type Buffer struct {
	buf []byte
}

// NewBuffer returns a buffer with room for size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{buf: make([]byte, 0, size)}
}

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrShortWrite
	}
	end := int(off) + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of bytes written so far (highest offset reached).
func (b *Buffer) Len() int { return len(b.buf) }
