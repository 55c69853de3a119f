package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup3Checksum(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", nil, 0xdeadbeef},
		{"jenkins vector", []byte("Four score and seven years ago"), 0x17770551},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup3Checksum(tt.input))
			assert.True(t, VerifyLookup3(tt.input, tt.want))
		})
	}
}

func TestLookup3ChecksumLengths(t *testing.T) {
	seen := make(map[uint32]int)
	for n := 0; n <= 40; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		seen[Lookup3Checksum(data)] = n
	}
	assert.Len(t, seen, 41)
}

func TestFletcher32(t *testing.T) {
	assert.Equal(t, uint32(0), Fletcher32(nil))
	// Words are big-endian: 0x6162, 0x6364, then 0x6500 for the odd byte.
	assert.Equal(t, uint32(0x4ff029c7), Fletcher32([]byte("abcde")))

	sum := Fletcher32([]byte("abcd"))
	assert.True(t, VerifyFletcher32([]byte("abcd"), sum))
	assert.True(t, VerifyFletcher32([]byte("abcd"), SwapFletcher32(sum)))
	assert.False(t, VerifyFletcher32([]byte("abce"), sum))
}

func TestFletcher32LongInput(t *testing.T) {
	// Crosses several 360-word folding blocks.
	data := bytes.Repeat([]byte{0xff, 0xfe, 0x01}, 1000)
	a := Fletcher32(data)
	data[1500] ^= 0x01
	assert.NotEqual(t, a, Fletcher32(data))
}

func TestReaderIntegers(t *testing.T) {
	src := []byte{
		0x01,
		0x02, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0xff, 0xff, 0xff, 0xff,
	}
	r := NewReader(bytes.NewReader(src), Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 8})

	u8, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), u8)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	off, err := r.ReadOffset()
	require.NoError(t, err)
	assert.True(t, r.IsUndefinedOffset(off))
	assert.Equal(t, int64(len(src)), r.Pos())

	_, err = r.ReadUint8()
	assert.Error(t, err)
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3}), DefaultConfig())
	_, err := r.ReadBytes(8)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderAtIsIndependent(t *testing.T) {
	src := []byte{10, 20, 30, 40}
	r := NewReader(bytes.NewReader(src), DefaultConfig())
	sub := r.At(2)

	v, err := sub.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(30), v)
	assert.Equal(t, int64(0), r.Pos())

	peek, err := r.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20}, peek)
	assert.Equal(t, int64(0), r.Pos())
}

func TestReadUintNOddWidths(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}), DefaultConfig())
	v, err := r.ReadUintN(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x030201), v)

	// Odd widths are little-endian regardless of the configured order.
	be := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}), Config{ByteOrder: binary.BigEndian, OffsetSize: 8, LengthSize: 8})
	v, err = be.ReadUintN(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x030201), v)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{ByteOrder: binary.LittleEndian, OffsetSize: 3, LengthSize: 8}.Validate(), ErrInvalidSize)
}

func TestWriterRoundTrip(t *testing.T) {
	buf := NewBuffer(0)
	w := NewWriter(buf, DefaultConfig())
	require.NoError(t, w.WriteUint8(0xAB))
	require.NoError(t, w.WriteUint16(0x1234))
	require.NoError(t, w.WriteUint32(0xDEADBEEF))
	require.NoError(t, w.WriteOffset(0x1122334455667788))
	require.NoError(t, w.WriteUndefinedOffset())
	require.NoError(t, w.WriteZeros(3))
	require.NoError(t, w.WriteUintN(0x0A0B0C, 3))
	assert.Equal(t, int64(1+2+4+8+8+3+3), w.Pos())

	r := NewReader(bytes.NewReader(buf.Bytes()), DefaultConfig())
	u8, _ := r.ReadUint8()
	u16, _ := r.ReadUint16()
	u32, _ := r.ReadUint32()
	off, _ := r.ReadOffset()
	undef, _ := r.ReadOffset()
	r.Skip(3)
	n3, err := r.ReadUintN(3)
	require.NoError(t, err)

	assert.Equal(t, uint8(0xAB), u8)
	assert.Equal(t, uint16(0x1234), u16)
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	assert.Equal(t, uint64(0x1122334455667788), off)
	assert.True(t, r.IsUndefinedOffset(undef))
	assert.Equal(t, uint64(0x0A0B0C), n3)
}

func TestBufferSparseWrites(t *testing.T) {
	buf := NewBuffer(4)
	_, err := buf.WriteAt([]byte{9}, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, buf.Len())
	_, err = buf.WriteAt([]byte{1, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0, 0, 0, 0, 9}, buf.Bytes())
}

func TestEncodeDecodeUint(t *testing.T) {
	b := make([]byte, 4)
	EncodeUint(binary.BigEndian, b, 0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)
	assert.Equal(t, uint64(0x01020304), DecodeUint(binary.BigEndian, b))

	b = make([]byte, 5)
	EncodeUint(binary.BigEndian, b, 0x0102030405)
	assert.Equal(t, []byte{5, 4, 3, 2, 1}, b)
	assert.Equal(t, uint64(0x0102030405), DecodeUint(binary.BigEndian, b))
}
