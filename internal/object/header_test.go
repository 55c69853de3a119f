package object

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

func place(t *testing.T, addr int, raw []byte) *binary.Reader {
	t.Helper()
	file := make([]byte, addr, addr+len(raw))
	file = append(file, raw...)
	return binary.NewReader(bytes.NewReader(file), binary.DefaultConfig())
}

func TestDatasetHeaderRoundTrip(t *testing.T) {
	cfg := binary.DefaultConfig()
	space := message.NewDataspace([]uint64{10, 64, 64}, nil)
	dtype := message.NewIntegerDatatype(2, false, false)
	layout := message.NewFixedArrayLayout([]uint64{1, 64, 64}, 2, 10, 4096)
	pipeline := message.NewFilterPipeline(message.FilterInfo{
		ID: message.FilterBlosc2, Name: "blosc2", Flags: message.FilterFlagOptional,
		ClientData: []uint32{1, 8192, 2, 8192, 4},
	})
	msgs := DatasetMessages(space, dtype, message.NewFillValue(message.AllocIncremental), layout, pipeline)

	raw, err := Encode(cfg, msgs, 0)
	require.NoError(t, err)
	size, err := Size(cfg, msgs, 0)
	require.NoError(t, err)
	assert.Len(t, raw, size)

	h, err := Read(place(t, 64, raw), 64)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), h.Version)
	assert.True(t, h.IsDataset())
	assert.False(t, h.IsGroup())

	require.NotNil(t, h.Dataspace())
	assert.Equal(t, []uint64{10, 64, 64}, h.Dataspace().Dimensions)
	require.NotNil(t, h.Datatype())
	assert.Equal(t, uint32(2), h.Datatype().Size)
	require.NotNil(t, h.DataLayout())
	assert.Equal(t, message.ChunkIndexFixedArray, h.DataLayout().ChunkIndexType)
	assert.Equal(t, []uint64{1, 64, 64}, h.DataLayout().ChunkDims)
	assert.Equal(t, uint64(4096), h.DataLayout().ChunkIndexAddr)
	require.NotNil(t, h.FilterPipeline())
	assert.True(t, h.FilterPipeline().HasFilter(message.FilterBlosc2))
	assert.Equal(t, "blosc2", h.FilterPipeline().Filters[0].Name)
	require.NotNil(t, h.FillValue())
	assert.Equal(t, message.AllocIncremental, h.FillValue().AllocTime)
}

func TestGroupHeaderPadding(t *testing.T) {
	cfg := binary.DefaultConfig()
	msgs := GroupMessages([]*message.Link{message.NewHardLink("data", 800)})

	for _, minChunk := range []int{0, MinGroupChunkSize, 48, 50, 51} {
		raw, err := Encode(cfg, msgs, minChunk)
		require.NoError(t, err)

		h, err := Read(place(t, 0, raw), 0)
		require.NoError(t, err, "minChunk %d", minChunk)
		assert.True(t, h.IsGroup())
		links := h.Links()
		require.Len(t, links, 1)
		assert.Equal(t, "data", links[0].Name)
		assert.Equal(t, uint64(800), links[0].ObjectAddress)
	}
}

func TestReadChecksumMismatch(t *testing.T) {
	raw, err := Encode(binary.DefaultConfig(), GroupMessages(nil), MinGroupChunkSize)
	require.NoError(t, err)
	raw[20] ^= 0x40
	_, err = Read(place(t, 0, raw), 0)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadInvalidHeader(t *testing.T) {
	_, err := Read(place(t, 0, []byte{7, 0, 0, 0, 0, 0, 0, 0}), 0)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

// encodeV1 builds a version 1 header the way the original file format lays
// it out: a 16 byte prefix and 8 byte aligned messages.
func encodeV1(t *testing.T, msgs []message.Serializable, extra []byte) []byte {
	t.Helper()
	cfg := binary.DefaultConfig()
	body := binary.NewBuffer(0)
	w := binary.NewWriter(body, cfg)
	for _, m := range msgs {
		size := m.SerializedSize(w)
		padded := (size + 7) &^ 7
		require.NoError(t, w.WriteUint16(uint16(m.Type())))
		require.NoError(t, w.WriteUint16(uint16(padded)))
		require.NoError(t, w.WriteZeros(4))
		require.NoError(t, m.Serialize(w))
		require.NoError(t, w.WriteZeros(padded-size))
	}
	require.NoError(t, w.WriteBytes(extra))

	head := binary.NewBuffer(16)
	hw := binary.NewWriter(head, cfg)
	require.NoError(t, hw.WriteUint8(1))
	require.NoError(t, hw.WriteUint8(0))
	require.NoError(t, hw.WriteUint16(uint16(len(msgs))))
	require.NoError(t, hw.WriteUint32(1))
	require.NoError(t, hw.WriteUint32(uint32(body.Len())))
	require.NoError(t, hw.WriteZeros(4))
	return append(head.Bytes(), body.Bytes()...)
}

func TestReadV1WithContinuation(t *testing.T) {
	cfg := binary.DefaultConfig()

	// The continuation block holds the layout message.
	layout := message.NewContiguousLayout(2048, 80)
	cont := binary.NewBuffer(0)
	cw := binary.NewWriter(cont, cfg)
	size := layout.SerializedSize(cw)
	padded := (size + 7) &^ 7
	require.NoError(t, cw.WriteUint16(uint16(message.TypeDataLayout)))
	require.NoError(t, cw.WriteUint16(uint16(padded)))
	require.NoError(t, cw.WriteZeros(4))
	require.NoError(t, layout.Serialize(cw))
	require.NoError(t, cw.WriteZeros(padded-size))

	const contAddr = 512
	contMsg := binary.NewBuffer(0)
	mw := binary.NewWriter(contMsg, cfg)
	require.NoError(t, mw.WriteUint16(uint16(message.TypeObjectHeaderContinuation)))
	require.NoError(t, mw.WriteUint16(16))
	require.NoError(t, mw.WriteZeros(4))
	require.NoError(t, mw.WriteOffset(contAddr))
	require.NoError(t, mw.WriteLength(uint64(cont.Len())))

	raw := encodeV1(t, []message.Serializable{
		message.NewDataspace([]uint64{4, 5}, nil),
		message.NewIntegerDatatype(4, true, false),
	}, contMsg.Bytes())

	file := make([]byte, contAddr+cont.Len())
	copy(file, raw)
	copy(file[contAddr:], cont.Bytes())

	h, err := Read(binary.NewReader(bytes.NewReader(file), cfg), 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), h.Version)
	assert.Equal(t, uint32(1), h.RefCount)
	require.NotNil(t, h.Dataspace())
	assert.Equal(t, []uint64{4, 5}, h.Dataspace().Dimensions)
	require.NotNil(t, h.Datatype())
	assert.True(t, h.Datatype().Signed)
	require.NotNil(t, h.DataLayout())
	assert.Equal(t, uint64(2048), h.DataLayout().Address)
	assert.Len(t, h.MessagesOf(message.TypeDataLayout), 1)
}
