package message

import (
	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// Serializable is implemented by messages the writer can emit. The size
// must match exactly what Serialize writes for the same writer config.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
	SerializedSize(w *binary.Writer) int
}

// encoder collects the first error of a run of writes.
type encoder struct {
	w   *binary.Writer
	err error
}

func (e *encoder) do(f func() error) {
	if e.err == nil {
		e.err = f()
	}
}

func (e *encoder) u8(v uint8) { e.do(func() error { return e.w.WriteUint8(v) }) }
func (e *encoder) u16(v uint16) { e.do(func() error { return e.w.WriteUint16(v) }) }
func (e *encoder) u32(v uint32) { e.do(func() error { return e.w.WriteUint32(v) }) }
func (e *encoder) uintN(v uint64, n int) { e.do(func() error { return e.w.WriteUintN(v, n) }) }
func (e *encoder) offset(v uint64) { e.do(func() error { return e.w.WriteOffset(v) }) }
func (e *encoder) length(v uint64) { e.do(func() error { return e.w.WriteLength(v) }) }
func (e *encoder) bytes(b []byte) { e.do(func() error { return e.w.WriteBytes(b) }) }
func (e *encoder) zeros(n int) { e.do(func() error { return e.w.WriteZeros(n) }) }
