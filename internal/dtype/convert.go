package dtype

import (
	"fmt"
	"math"
)

// Float64s widens raw samples described by info into dst, which is grown
// as needed and returned.
func Float64s(info Info, data []byte, dst []float64) ([]float64, error) {
	if info.Size <= 0 || len(data)%info.Size != 0 {
		return nil, fmt.Errorf("dtype: %d bytes is not a whole number of %s", len(data), info)
	}
	n := len(data) / info.Size
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	order := info.ByteOrder()
	for i := range dst {
		bits := get(order, data[i*info.Size:(i+1)*info.Size])
		switch {
		case info.Float && info.Size == 4:
			dst[i] = float64(math.Float32frombits(uint32(bits)))
		case info.Float:
			dst[i] = math.Float64frombits(bits)
		case info.Signed:
			dst[i] = float64(signExtend(bits, info.Size))
		default:
			dst[i] = float64(bits)
		}
	}
	return dst, nil
}

// PutFloat64s narrows src into raw samples described by info. Integer
// types round to nearest and saturate at their range.
func PutFloat64s(info Info, src []float64, dst []byte) error {
	if info.Size <= 0 || len(dst) != len(src)*info.Size {
		return fmt.Errorf("dtype: %d bytes cannot hold %d %s values", len(dst), len(src), info)
	}
	order := info.ByteOrder()
	bits := 8 * info.Size
	for i, v := range src {
		b := dst[i*info.Size : (i+1)*info.Size]
		switch {
		case info.Float && info.Size == 4:
			put(order, b, uint64(math.Float32bits(float32(v))))
		case info.Float:
			put(order, b, math.Float64bits(v))
		case info.Signed:
			lo, hi := -math.Exp2(float64(bits-1)), math.Exp2(float64(bits-1))-1
			r := math.Round(v)
			var n int64
			switch {
			case math.IsNaN(r):
			case r <= lo:
				n = math.MinInt64 >> (64 - bits)
			case r >= hi:
				n = math.MaxInt64 >> (64 - bits)
			default:
				n = int64(r)
			}
			put(order, b, uint64(n))
		default:
			hi := math.Exp2(float64(bits)) - 1
			r := math.Round(v)
			var n uint64
			switch {
			case math.IsNaN(r) || r <= 0:
			case r >= hi:
				n = math.MaxUint64 >> (64 - bits)
			default:
				n = uint64(r)
			}
			put(order, b, n)
		}
	}
	return nil
}
