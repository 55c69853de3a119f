package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAppends(t *testing.T) {
	a := New(48)
	assert.Equal(t, uint64(48), a.Alloc(100, "header"))
	assert.Equal(t, uint64(148), a.Alloc(4096, "chunk"))
	assert.Equal(t, uint64(4244), a.Alloc(0, "empty"))
	assert.Equal(t, uint64(4244), a.EOF())

	s := a.Stats()
	assert.Equal(t, uint64(2), s.Allocations)
	assert.Equal(t, uint64(4196), s.Bytes)
	assert.Equal(t, uint64(4096), s.Largest)
	assert.Equal(t, uint64(4096), s.BytesByTag["chunk"])
	require.NoError(t, a.Validate())
}

func TestAllocAligned(t *testing.T) {
	a := New(10)
	assert.Equal(t, uint64(16), a.AllocAligned(8, 8, "x"))
	assert.Equal(t, uint64(24), a.AllocAligned(1, 8, "y"))
	assert.Equal(t, uint64(25), a.AllocAligned(1, 1, "z"))
	require.NoError(t, a.Validate())
}

func TestFreeIsTracked(t *testing.T) {
	a := New(0)
	addr := a.Alloc(64, "header")
	a.Free(addr, 64)
	assert.Equal(t, uint64(64), a.Stats().FreedBytes)
	assert.Equal(t, uint64(64), a.EOF())
}

func TestConcurrentAlloc(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Alloc(16, "c")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8*100*16), a.EOF())
	require.NoError(t, a.Validate())
}
