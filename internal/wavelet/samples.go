package wavelet

import (
	"encoding/binary"
)

// sampleFormat converts between raw sample bytes and level shifted
// signed coefficients.
type sampleFormat struct {
	size   int
	signed bool
	order  binary.ByteOrder
}

func formatOf(size int, signed, bigEndian bool) sampleFormat {
	f := sampleFormat{size: size, signed: signed, order: binary.LittleEndian}
	if bigEndian {
		f.order = binary.BigEndian
	}
	return f
}

// shift is the DC offset removed from unsigned samples.
func (f sampleFormat) shift() int64 {
	if f.signed {
		return 0
	}
	return 1 << (8*f.size - 1)
}

// bounds is the representable range of a raw sample.
func (f sampleFormat) bounds() (lo, hi int64) {
	bits := 8 * f.size
	if f.signed {
		return -1 << (bits - 1), 1<<(bits-1) - 1
	}
	return 0, 1<<bits - 1
}

func (f sampleFormat) load(dst []int64, src []byte) {
	shift := f.shift()
	for i := range dst {
		var v int64
		switch f.size {
		case 1:
			if f.signed {
				v = int64(int8(src[i]))
			} else {
				v = int64(src[i])
			}
		case 2:
			u := f.order.Uint16(src[2*i:])
			if f.signed {
				v = int64(int16(u))
			} else {
				v = int64(u)
			}
		case 4:
			u := f.order.Uint32(src[4*i:])
			if f.signed {
				v = int64(int32(u))
			} else {
				v = int64(u)
			}
		}
		dst[i] = v - shift
	}
}

// store writes src back as raw samples, clamping to the sample range.
func (f sampleFormat) store(dst []byte, src []int64) {
	shift := f.shift()
	lo, hi := f.bounds()
	for i, c := range src {
		v := min(max(c+shift, lo), hi)
		switch f.size {
		case 1:
			dst[i] = byte(v)
		case 2:
			f.order.PutUint16(dst[2*i:], uint16(v))
		case 4:
			f.order.PutUint32(dst[4*i:], uint32(v))
		}
	}
}
