package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Allocation is one block handed out.
type Allocation struct {
	Addr uint64
	Size uint64
	Tag  string
}

// Stats summarises an allocator's history.
type Stats struct {
	Allocations uint64
	Bytes       uint64
	FreedBytes  uint64
	Largest     uint64
	BytesByTag  map[string]uint64
}

// Allocator is safe for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	base   uint64
	eof    uint64
	blocks []Allocation
	freed  uint64
}

// New starts allocating at base, normally just past the superblock.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes at the end of file and returns their address.
// Zero-sized requests return the current EOF without reserving anything.
func (a *Allocator) Alloc(size uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.blocks = append(a.blocks, Allocation{Addr: addr, Size: size, Tag: tag})
	return addr
}

// AllocAligned is Alloc with the block start rounded up to align bytes.
func (a *Allocator) AllocAligned(size, align uint64, tag string) uint64 {
	a.mu.Lock()
	if align > 1 {
		if rem := a.eof % align; rem != 0 {
			a.eof += align - rem
		}
	}
	a.mu.Unlock()
	return a.Alloc(size, tag)
}

// Free records that a block is no longer referenced.
func (a *Allocator) Free(addr, size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freed += size
}

// EOF is the address the next allocation will receive.
func (a *Allocator) EOF() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Stats returns a snapshot of the allocation history.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{FreedBytes: a.freed, BytesByTag: make(map[string]uint64)}
	for _, b := range a.blocks {
		s.Allocations++
		s.Bytes += b.Size
		s.Largest = max(s.Largest, b.Size)
		s.BytesByTag[b.Tag] += b.Size
	}
	return s
}

// Validate checks that no two blocks overlap and that all lie in
// [base, EOF).
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	blocks := append([]Allocation(nil), a.blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Addr < blocks[j].Addr })
	end := a.base
	for _, b := range blocks {
		if b.Addr < end {
			return fmt.Errorf("block %q at %d overlaps previous block ending at %d", b.Tag, b.Addr, end)
		}
		end = b.Addr + b.Size
	}
	if end > a.eof {
		return fmt.Errorf("block ends at %d past EOF %d", end, a.eof)
	}
	return nil
}
