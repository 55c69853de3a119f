package heap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// encodeLocal writes a heap header at 0 with its data segment right after it.
func encodeLocal(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, binary.DefaultConfig())
	require.NoError(t, w.WriteBytes(localSignature))
	require.NoError(t, w.WriteBytes([]byte{0, 0, 0, 0}))
	require.NoError(t, w.WriteLength(uint64(len(data))))
	require.NoError(t, w.WriteLength(1)) // free list head
	require.NoError(t, w.WriteOffset(32))
	require.NoError(t, w.WriteBytes(data))
	return buf.Bytes()
}

func TestReadLocal(t *testing.T) {
	raw := encodeLocal(t, []byte("\x00exchange\x00data\x00\x00\x00"))
	h, err := ReadLocal(binary.NewReader(bytes.NewReader(raw), binary.DefaultConfig()), 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(32), h.DataAddress)
	assert.Equal(t, 17, h.Size())
	assert.Equal(t, "", h.String(0))
	assert.Equal(t, "exchange", h.String(1))
	assert.Equal(t, "data", h.String(10))
	assert.Equal(t, "", h.String(100))
}

func TestReadLocalBadSignature(t *testing.T) {
	raw := encodeLocal(t, []byte("x\x00"))
	raw[0] = 'X'
	_, err := ReadLocal(binary.NewReader(bytes.NewReader(raw), binary.DefaultConfig()), 0)
	assert.ErrorIs(t, err, ErrInvalidHeap)
}
