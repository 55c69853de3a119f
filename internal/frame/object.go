package frame

import (
	"github.com/robert-malhotra/tomoslice/internal/compress"
)

// ArrayObject is the encoded form of one slice as the codec produces it.
// The codec owns it and overwrites it on every encode; a frame serialized
// without ownership shares the object's scratch buffer.
type ArrayObject struct {
	Codec       compress.Type
	ElementSize int
	Signed      bool
	BigEndian   bool
	Levels      int
	Height      int
	Width       int
	Step        uint32
	Layers      [][]byte // entropy coded, base layer first

	scratch []byte
}

// PayloadSize is the total size of the coded layers.
func (o *ArrayObject) PayloadSize() int {
	n := 0
	for _, l := range o.Layers {
		n += len(l)
	}
	return n
}

// FrameSize is the size Serialize will produce.
func (o *ArrayObject) FrameSize() int {
	return HeaderSize(len(o.Layers)) + o.PayloadSize()
}

// Reset drops the layers and the scratch buffer.
func (o *ArrayObject) Reset() {
	*o = ArrayObject{}
}
