package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/tomoslice/internal/message"
)

// ErrUnsupported reports a datatype outside the numeric classes.
var ErrUnsupported = errors.New("dtype: unsupported datatype")

// Number is the set of Go types with an HDF5 numeric equivalent.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Info describes a numeric datatype.
type Info struct {
	Float     bool
	Size      int
	Signed    bool
	BigEndian bool
}

// InfoOf validates dt and summarizes it.
func InfoOf(dt *message.Datatype) (Info, error) {
	if dt == nil {
		return Info{}, fmt.Errorf("%w: missing datatype", ErrUnsupported)
	}
	info := Info{Size: int(dt.Size), Signed: dt.Signed, BigEndian: dt.BigEndian}
	switch dt.Class {
	case message.ClassFixedPoint:
		switch info.Size {
		case 1, 2, 4, 8:
			return info, nil
		}
	case message.ClassFloatPoint:
		info.Float, info.Signed = true, true
		if info.Size == 4 || info.Size == 8 {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("%w: %s of %d bytes", ErrUnsupported, dt.Class, dt.Size)
}

// For returns the datatype of T in little-endian order.
func For[T Number]() Info {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Int8:
		return Info{Size: 1, Signed: true}
	case reflect.Int16:
		return Info{Size: 2, Signed: true}
	case reflect.Int32:
		return Info{Size: 4, Signed: true}
	case reflect.Int64:
		return Info{Size: 8, Signed: true}
	case reflect.Uint8:
		return Info{Size: 1}
	case reflect.Uint16:
		return Info{Size: 2}
	case reflect.Uint32:
		return Info{Size: 4}
	case reflect.Uint64:
		return Info{Size: 8}
	case reflect.Float32:
		return Info{Float: true, Size: 4, Signed: true}
	default:
		return Info{Float: true, Size: 8, Signed: true}
	}
}

// Datatype returns the datatype message for info.
func (i Info) Datatype() *message.Datatype {
	if i.Float {
		dt, err := message.NewFloatDatatype(i.Size, i.BigEndian)
		if err == nil {
			return dt
		}
	}
	return message.NewIntegerDatatype(i.Size, i.Signed, i.BigEndian)
}

// ByteOrder returns the order of the element bytes.
func (i Info) ByteOrder() binary.ByteOrder {
	if i.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// String returns a name such as "uint16" or "float32 (big-endian)".
func (i Info) String() string {
	var s string
	switch {
	case i.Float:
		s = fmt.Sprintf("float%d", 8*i.Size)
	case i.Signed:
		s = fmt.Sprintf("int%d", 8*i.Size)
	default:
		s = fmt.Sprintf("uint%d", 8*i.Size)
	}
	if i.BigEndian {
		s += " (big-endian)"
	}
	return s
}
