package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-malhotra/tomoslice/internal/compress"
)

const (
	// Magic opens every frame.
	Magic = "WVLT"
	// Version is the layout version written.
	Version = 1
	// MaxLayers is the most quality layers a frame can describe.
	MaxLayers = 255

	fixedSize    = 32
	checksumSize = 8

	flagSigned    = 0x01
	flagBigEndian = 0x02

	// pooled buffers larger than this are dropped instead of reused
	maxPooledSize = 64 << 20
)

var (
	ErrInconsistent = errors.New("frame: inconsistent array object")
	ErrTruncated    = errors.New("frame: truncated")
	ErrMagic        = errors.New("frame: bad magic")
	ErrVersion      = errors.New("frame: unsupported version")
	ErrChecksum     = errors.New("frame: checksum mismatch")
)

// HeaderSize is the size of a frame header with the given layer count,
// checksum included.
func HeaderSize(layers int) int {
	return fixedSize + 4*layers + checksumSize
}

// Header is the decoded frame header.
type Header struct {
	Version     uint8
	Codec       compress.Type
	ElementSize int
	Signed      bool
	BigEndian   bool
	Levels      int
	Height      int
	Width       int
	Step        uint32
	PayloadLen  uint64
	LayerSizes  []uint32
	Checksum    uint64
}

// Layers is the number of quality layers.
func (h Header) Layers() int { return len(h.LayerSizes) }

// SampleBytes is the decoded size of the slice.
func (h Header) SampleBytes() int { return h.Height * h.Width * h.ElementSize }

// Frame is one serialized slice. Data is valid until Release for owned
// frames, and until the next encode for borrowed ones.
type Frame struct {
	Data  []byte
	Owned bool

	buf *[]byte
}

// Size is len(Data).
func (f *Frame) Size() int { return len(f.Data) }

// Release returns an owned frame's buffer to the pool. It does nothing for
// borrowed frames or on a second call.
func (f *Frame) Release() {
	if f == nil || !f.Owned || f.buf == nil {
		return
	}
	buf := f.buf
	f.buf, f.Data = nil, nil
	if cap(*buf) <= maxPooledSize {
		*buf = (*buf)[:0]
		bufferPool.Put(buf)
	}
}

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64<<10)
		return &b
	},
}

// Serialize writes obj into its own scratch buffer. The frame is borrowed:
// it must not be released and is overwritten by the next encode.
func Serialize(obj *ArrayObject) (*Frame, error) {
	size, err := check(obj)
	if err != nil {
		return nil, err
	}
	if cap(obj.scratch) < size {
		obj.scratch = make([]byte, size)
	}
	obj.scratch = obj.scratch[:size]
	encode(obj, obj.scratch)
	return &Frame{Data: obj.scratch}, nil
}

// SerializeOwned writes obj into a pooled buffer the caller must Release.
func SerializeOwned(obj *ArrayObject) (*Frame, error) {
	size, err := check(obj)
	if err != nil {
		return nil, err
	}
	buf := bufferPool.Get().(*[]byte)
	if cap(*buf) < size {
		*buf = make([]byte, size)
	}
	*buf = (*buf)[:size]
	encode(obj, *buf)
	return &Frame{Data: *buf, Owned: true, buf: buf}, nil
}

// check validates obj and returns its frame size.
func check(obj *ArrayObject) (int, error) {
	switch {
	case obj == nil:
		return 0, fmt.Errorf("%w: nil object", ErrInconsistent)
	case len(obj.Layers) == 0 || len(obj.Layers) > MaxLayers:
		return 0, fmt.Errorf("%w: %d layers", ErrInconsistent, len(obj.Layers))
	case obj.Height <= 0 || obj.Width <= 0 || uint64(obj.Height) > math.MaxUint32 || uint64(obj.Width) > math.MaxUint32:
		return 0, fmt.Errorf("%w: %dx%d", ErrInconsistent, obj.Height, obj.Width)
	case obj.ElementSize != 1 && obj.ElementSize != 2 && obj.ElementSize != 4:
		return 0, fmt.Errorf("%w: element size %d", ErrInconsistent, obj.ElementSize)
	case obj.Levels < 0 || obj.Levels > math.MaxUint8:
		return 0, fmt.Errorf("%w: %d levels", ErrInconsistent, obj.Levels)
	case obj.Step == 0:
		return 0, fmt.Errorf("%w: zero quantization step", ErrInconsistent)
	}
	if _, err := compress.Get(obj.Codec); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	for i, l := range obj.Layers {
		if len(l) == 0 {
			return 0, fmt.Errorf("%w: layer %d is empty", ErrInconsistent, i)
		}
		if uint64(len(l)) > math.MaxUint32 {
			return 0, fmt.Errorf("%w: layer %d is %d bytes", ErrInconsistent, i, len(l))
		}
	}
	return obj.FrameSize(), nil
}

// encode writes the frame of obj into dst, which has exactly its size.
func encode(obj *ArrayObject, dst []byte) {
	le := binary.LittleEndian
	copy(dst, Magic)
	dst[4] = Version
	dst[5] = byte(obj.Codec)
	dst[6] = byte(obj.ElementSize)
	var flags byte
	if obj.Signed {
		flags |= flagSigned
	}
	if obj.BigEndian {
		flags |= flagBigEndian
	}
	dst[7] = flags
	dst[8] = byte(obj.Levels)
	dst[9] = byte(len(obj.Layers))
	dst[10], dst[11] = 0, 0
	le.PutUint32(dst[12:], uint32(obj.Height))
	le.PutUint32(dst[16:], uint32(obj.Width))
	le.PutUint32(dst[20:], obj.Step)
	le.PutUint64(dst[24:], uint64(obj.PayloadSize()))
	pos := fixedSize
	for _, l := range obj.Layers {
		le.PutUint32(dst[pos:], uint32(len(l)))
		pos += 4
	}
	prefix := pos
	pos += checksumSize
	payload := pos
	for _, l := range obj.Layers {
		pos += copy(dst[pos:], l)
	}
	le.PutUint64(dst[prefix:], checksum(dst[:prefix], dst[payload:]))
}

func checksum(header, payload []byte) uint64 {
	d := xxhash.New()
	d.Write(header)
	d.Write(payload)
	return d.Sum64()
}

// Parse validates data as a frame and returns its header and layers. The
// layers alias data.
func Parse(data []byte) (Header, [][]byte, error) {
	var h Header
	if len(data) < fixedSize {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if string(data[:4]) != Magic {
		return h, nil, fmt.Errorf("%w: %q", ErrMagic, data[:4])
	}
	if data[4] != Version {
		return h, nil, fmt.Errorf("%w: %d", ErrVersion, data[4])
	}
	le := binary.LittleEndian
	h.Version = data[4]
	h.Codec = compress.Type(data[5])
	h.ElementSize = int(data[6])
	h.Signed = data[7]&flagSigned != 0
	h.BigEndian = data[7]&flagBigEndian != 0
	h.Levels = int(data[8])
	layers := int(data[9])
	h.Height = int(le.Uint32(data[12:]))
	h.Width = int(le.Uint32(data[16:]))
	h.Step = le.Uint32(data[20:])
	h.PayloadLen = le.Uint64(data[24:])

	prefix := fixedSize + 4*layers
	if len(data) < prefix+checksumSize {
		return h, nil, fmt.Errorf("%w: header of %d layers in %d bytes", ErrTruncated, layers, len(data))
	}
	h.LayerSizes = make([]uint32, layers)
	var total uint64
	for i := range h.LayerSizes {
		h.LayerSizes[i] = le.Uint32(data[fixedSize+4*i:])
		total += uint64(h.LayerSizes[i])
	}
	payload := data[prefix+checksumSize:]
	if total != h.PayloadLen || uint64(len(payload)) != h.PayloadLen {
		return h, nil, fmt.Errorf("%w: payload %d bytes, header says %d, layers sum to %d",
			ErrTruncated, len(payload), h.PayloadLen, total)
	}
	h.Checksum = le.Uint64(data[prefix:])
	if sum := checksum(data[:prefix], payload); sum != h.Checksum {
		return h, nil, fmt.Errorf("%w: stored %016x, computed %016x", ErrChecksum, h.Checksum, sum)
	}

	out := make([][]byte, layers)
	pos := 0
	for i, n := range h.LayerSizes {
		out[i] = payload[pos : pos+int(n) : pos+int(n)]
		pos += int(n)
	}
	return h, out, nil
}
