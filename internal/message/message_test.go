package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// roundTrip serializes m and parses the result back.
func roundTrip(t *testing.T, m Serializable) Message {
	t.Helper()
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, binary.DefaultConfig())
	require.NoError(t, m.Serialize(w))
	require.Equal(t, m.SerializedSize(w), buf.Len(), "sized and written lengths differ")

	r := binary.NewReader(bytes.NewReader(nil), binary.DefaultConfig())
	out, err := Parse(m.Type(), buf.Bytes(), 0, r)
	require.NoError(t, err)
	return out
}

func TestDataspace(t *testing.T) {
	got := roundTrip(t, NewDataspace([]uint64{10, 1792, 2048}, nil)).(*Dataspace)
	assert.Equal(t, 3, got.Rank())
	assert.Equal(t, uint64(10*1792*2048), got.NumElements())
	assert.Nil(t, got.MaxDims)

	ext := roundTrip(t, NewDataspace([]uint64{0, 4}, []uint64{Unlimited, 4})).(*Dataspace)
	assert.Equal(t, []uint64{Unlimited, 4}, ext.MaxDims)
	assert.Equal(t, uint64(0), ext.NumElements())
}

func TestDataspaceV1(t *testing.T) {
	raw := []byte{1, 2, 0, 0, 0, 0, 0, 0}
	for _, d := range []uint64{3, 7} {
		var b [8]byte
		binary.EncodeUint(binary.DefaultConfig().ByteOrder, b[:], d)
		raw = append(raw, b[:]...)
	}
	m, err := Parse(TypeDataspace, raw, 0, nil)
	require.NoError(t, err)
	ds := m.(*Dataspace)
	assert.Equal(t, []uint64{3, 7}, ds.Dimensions)
	assert.Equal(t, DataspaceSimple, ds.SpaceType)
}

func TestDatatypes(t *testing.T) {
	tests := []struct {
		name string
		dt   *Datatype
	}{
		{"uint16", NewIntegerDatatype(2, false, false)},
		{"int32 big endian", NewIntegerDatatype(4, true, true)},
	}
	f32, err := NewFloatDatatype(4, false)
	require.NoError(t, err)
	f64, err := NewFloatDatatype(8, true)
	require.NoError(t, err)
	tests = append(tests, struct {
		name string
		dt   *Datatype
	}{"float32", f32}, struct {
		name string
		dt   *Datatype
	}{"float64 big endian", f64})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.dt).(*Datatype)
			assert.Equal(t, tt.dt.Class, got.Class)
			assert.Equal(t, tt.dt.Size, got.Size)
			assert.Equal(t, tt.dt.Signed, got.Signed)
			assert.Equal(t, tt.dt.BigEndian, got.BigEndian)
			assert.Equal(t, tt.dt.BitPrecision, got.BitPrecision)
			assert.Equal(t, tt.dt.ExpBias, got.ExpBias)
		})
	}

	_, err = NewFloatDatatype(2, false)
	assert.Error(t, err)
}

func TestFixedArrayLayout(t *testing.T) {
	l := NewFixedArrayLayout([]uint64{1, 1792, 2048}, 2, 10, 12345)
	assert.Equal(t, uint64(1792*2048*2), l.ChunkBytes())

	got := roundTrip(t, l).(*DataLayout)
	assert.Equal(t, uint8(4), got.Version)
	assert.Equal(t, LayoutChunked, got.Class)
	assert.Equal(t, []uint64{1, 1792, 2048}, got.ChunkDims)
	assert.Equal(t, uint32(2), got.ChunkElemSize)
	assert.Equal(t, ChunkIndexFixedArray, got.ChunkIndexType)
	assert.Equal(t, uint8(10), got.PageBits)
	assert.Equal(t, uint64(12345), got.ChunkIndexAddr)
}

func TestContiguousLayout(t *testing.T) {
	got := roundTrip(t, NewContiguousLayout(4096, 800)).(*DataLayout)
	assert.Equal(t, LayoutContiguous, got.Class)
	assert.Equal(t, uint64(4096), got.Address)
	assert.Equal(t, uint64(800), got.Size)
}

func TestLayoutV3Chunked(t *testing.T) {
	cfg := binary.DefaultConfig()
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, cfg)
	require.NoError(t, w.WriteUint8(3))
	require.NoError(t, w.WriteUint8(uint8(LayoutChunked)))
	require.NoError(t, w.WriteUint8(3))
	require.NoError(t, w.WriteOffset(777))
	for _, d := range []uint32{16, 32, 4} {
		require.NoError(t, w.WriteUint32(d))
	}
	m, err := Parse(TypeDataLayout, buf.Bytes(), 0, nil)
	require.NoError(t, err)
	l := m.(*DataLayout)
	assert.Equal(t, ChunkIndexBTreeV1, l.ChunkIndexType)
	assert.Equal(t, []uint64{16, 32}, l.ChunkDims)
	assert.Equal(t, uint32(4), l.ChunkElemSize)
	assert.Equal(t, uint64(777), l.ChunkIndexAddr)
}

func TestFilterPipelineCustomFilter(t *testing.T) {
	fp := NewFilterPipeline(
		FilterInfo{ID: FilterShuffle, ClientData: []uint32{2}},
		FilterInfo{ID: FilterBlosc2, Name: "blosc2", Flags: FilterFlagOptional, ClientData: []uint32{1, 2, 3}},
	)
	got := roundTrip(t, fp).(*FilterPipeline)
	require.Len(t, got.Filters, 2)
	assert.Equal(t, "", got.Filters[0].Name)
	assert.Equal(t, []uint32{2}, got.Filters[0].ClientData)
	assert.Equal(t, "blosc2", got.Filters[1].Name)
	assert.True(t, got.Filters[1].IsOptional())
	assert.Equal(t, []uint32{1, 2, 3}, got.Filters[1].ClientData)
	assert.True(t, got.HasFilter(FilterBlosc2))
	assert.False(t, got.HasFilter(FilterDeflate))
}

func TestFilterPipelineV1(t *testing.T) {
	cfg := binary.DefaultConfig()
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, cfg)
	require.NoError(t, w.WriteBytes([]byte{1, 1, 0, 0, 0, 0, 0, 0}))
	require.NoError(t, w.WriteUint16(FilterDeflate))
	require.NoError(t, w.WriteUint16(8))
	require.NoError(t, w.WriteUint16(0))
	require.NoError(t, w.WriteUint16(1))
	require.NoError(t, w.WriteBytes([]byte("deflate\x00")))
	require.NoError(t, w.WriteUint32(6))
	require.NoError(t, w.WriteUint32(0)) // odd value count padding

	m, err := Parse(TypeFilterPipeline, buf.Bytes(), 0, nil)
	require.NoError(t, err)
	fp := m.(*FilterPipeline)
	require.Len(t, fp.Filters, 1)
	assert.Equal(t, "deflate", fp.Filters[0].Name)
	assert.Equal(t, []uint32{6}, fp.Filters[0].ClientData)
}

func TestFillValue(t *testing.T) {
	got := roundTrip(t, NewFillValue(AllocIncremental)).(*FillValue)
	assert.Equal(t, AllocIncremental, got.AllocTime)
	assert.Equal(t, FillIfSet, got.FillTime)
	assert.False(t, got.Defined)

	defined := &FillValue{Version: 3, AllocTime: AllocLate, Defined: true, Value: []byte{1, 2}}
	got = roundTrip(t, defined).(*FillValue)
	assert.True(t, got.Defined)
	assert.Equal(t, []byte{1, 2}, got.Value)
}

func TestLinks(t *testing.T) {
	got := roundTrip(t, NewHardLink("exchange", 0x1234)).(*Link)
	assert.True(t, got.IsHard())
	assert.Equal(t, "exchange", got.Name)
	assert.Equal(t, uint64(0x1234), got.ObjectAddress)

	long := NewHardLink(string(bytes.Repeat([]byte("x"), 300)), 9)
	got = roundTrip(t, long).(*Link)
	assert.Len(t, got.Name, 300)
}

func TestSoftLinkParse(t *testing.T) {
	raw := []byte{1, 0x08, byte(LinkTypeSoft), 3, 'a', 'b', 'c', 2, 0, '/', 'x'}
	m, err := Parse(TypeLink, raw, 0, nil)
	require.NoError(t, err)
	l := m.(*Link)
	assert.Equal(t, "abc", l.Name)
	assert.Equal(t, "/x", l.SoftPath)
	assert.False(t, l.IsHard())
}

func TestGroupMessages(t *testing.T) {
	li := roundTrip(t, NewLinkInfo()).(*LinkInfo)
	assert.Equal(t, UndefinedAddress, li.FractalHeapAddr)
	assert.Equal(t, UndefinedAddress, li.NameIndexAddr)

	gi := roundTrip(t, &GroupInfo{}).(*GroupInfo)
	assert.Equal(t, uint16(0), gi.MaxCompactLinks)
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse(TypeDataspace, []byte{2, 3}, 0, nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseUnknownAndShared(t *testing.T) {
	m, err := Parse(TypeAttribute, []byte{1, 2, 3}, 0, nil)
	require.NoError(t, err)
	u, ok := m.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, TypeAttribute, u.Type())
	assert.Equal(t, []byte{1, 2, 3}, u.Data())

	m, err = Parse(TypeDatatype, []byte{0, 0}, flagShared, nil)
	require.NoError(t, err)
	assert.IsType(t, &Unknown{}, m)
}
