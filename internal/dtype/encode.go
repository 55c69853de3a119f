package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode returns the raw bytes of values in the given order.
func Encode[T Number](values []T, order binary.ByteOrder) []byte {
	info := For[T]()
	out := make([]byte, len(values)*info.Size)
	for i, v := range values {
		var bits uint64
		switch {
		case info.Float && info.Size == 4:
			bits = uint64(math.Float32bits(float32(v)))
		case info.Float:
			bits = math.Float64bits(float64(v))
		case info.Signed:
			bits = uint64(int64(v))
		default:
			bits = uint64(v)
		}
		put(order, out[i*info.Size:(i+1)*info.Size], bits)
	}
	return out
}

// Decode converts raw element bytes in the given order to values.
func Decode[T Number](data []byte, order binary.ByteOrder) ([]T, error) {
	info := For[T]()
	if len(data)%info.Size != 0 {
		return nil, fmt.Errorf("dtype: %d bytes is not a whole number of %s", len(data), info)
	}
	out := make([]T, len(data)/info.Size)
	for i := range out {
		bits := get(order, data[i*info.Size:(i+1)*info.Size])
		switch {
		case info.Float && info.Size == 4:
			out[i] = T(math.Float32frombits(uint32(bits)))
		case info.Float:
			out[i] = T(math.Float64frombits(bits))
		case info.Signed:
			out[i] = T(signExtend(bits, info.Size))
		default:
			out[i] = T(bits)
		}
	}
	return out, nil
}

func put(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	}
}

func get(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func signExtend(v uint64, size int) int64 {
	shift := 64 - 8*uint(size)
	return int64(v<<shift) >> shift
}
