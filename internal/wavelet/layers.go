package wavelet

import (
	"encoding/binary"
	"fmt"
)

// Layer 0 stores sign*(|q| >> (L-1)) per coefficient as a zigzag uvarint.
// Layer j in 1..L-1 stores bit L-1-j of |q|, MSB first, and right after
// the first 1 bit of a coefficient whose magnitude was still zero, its
// sign (1 for negative).

func zigzag(v int64) uint64   { return uint64(v<<1) ^ uint64(v>>63) }
func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

type bitWriter struct {
	buf []byte
	acc byte
	n   uint
}

func (w *bitWriter) reset() {
	w.buf, w.acc, w.n = w.buf[:0], 0, 0
}

func (w *bitWriter) write(bit uint64) {
	w.acc = w.acc<<1 | byte(bit&1)
	w.n++
	if w.n == 8 {
		w.buf = append(w.buf, w.acc)
		w.acc, w.n = 0, 0
	}
}

// bytes pads the last byte with zeros.
func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, w.acc<<(8-w.n))
		w.acc, w.n = 0, 0
	}
	return w.buf
}

type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) read() (uint64, error) {
	if r.pos >= 8*len(r.data) {
		return 0, fmt.Errorf("%w: bit plane exhausted", ErrCorrupt)
	}
	b := r.data[r.pos>>3] >> (7 - uint(r.pos&7)) & 1
	r.pos++
	return uint64(b), nil
}

// layerWriter splits quantized coefficients into raw (not yet entropy
// coded) layers. Its buffers are reused across encodes.
type layerWriter struct {
	base   []byte
	planes []bitWriter
}

func newLayerWriter(layers, coefficients int) *layerWriter {
	lw := &layerWriter{
		base:   make([]byte, 0, coefficients),
		planes: make([]bitWriter, layers-1),
	}
	for i := range lw.planes {
		lw.planes[i].buf = make([]byte, 0, coefficients/8+1)
	}
	return lw
}

// split quantizes coef with step 1<<k and returns the raw layers, base
// layer first. The slices alias lw.
func (lw *layerWriter) split(coef []int64, k uint, out [][]byte) [][]byte {
	top := uint(len(lw.planes))
	base := lw.base[:0]
	for i := range lw.planes {
		lw.planes[i].reset()
	}
	for _, c := range coef {
		neg := c < 0
		mag := uint64(c)
		if neg {
			mag = uint64(-c)
		}
		mag >>= k
		b := int64(mag >> top)
		if neg {
			b = -b
		}
		base = binary.AppendUvarint(base, zigzag(b))
		significant := b != 0
		for j := range lw.planes {
			bit := mag >> (top - 1 - uint(j)) & 1
			p := &lw.planes[j]
			p.write(bit)
			if bit == 1 && !significant {
				if neg {
					p.write(1)
				} else {
					p.write(0)
				}
				significant = true
			}
		}
	}
	lw.base = base
	out = append(out[:0], base)
	for i := range lw.planes {
		out = append(out, lw.planes[i].bytes())
	}
	return out
}

// merge rebuilds quantized magnitudes from the first len(layers) layers
// into mag and sign. It is the inverse of split for a prefix of layers.
func merge(layers [][]byte, mag []uint64, neg []bool) error {
	base := layers[0]
	for i := range mag {
		u, n := binary.Uvarint(base)
		if n <= 0 {
			return fmt.Errorf("%w: base layer ends at coefficient %d", ErrCorrupt, i)
		}
		base = base[n:]
		v := unzigzag(u)
		neg[i] = v < 0
		if neg[i] {
			v = -v
		}
		mag[i] = uint64(v)
	}
	if len(base) != 0 {
		return fmt.Errorf("%w: %d trailing bytes in base layer", ErrCorrupt, len(base))
	}
	readers := make([]bitReader, len(layers)-1)
	for j := range readers {
		readers[j].data = layers[j+1]
	}
	for i := range mag {
		m := mag[i]
		for j := range readers {
			bit, err := readers[j].read()
			if err != nil {
				return err
			}
			if bit == 1 && m == 0 {
				s, err := readers[j].read()
				if err != nil {
					return err
				}
				neg[i] = s == 1
			}
			m = m<<1 | bit
		}
		mag[i] = m
	}
	return nil
}
