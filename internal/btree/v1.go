package btree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/heap"
)

var (
	treeSignature = []byte("TREE")
	snodSignature = []byte("SNOD")
)

// ErrInvalidNode is returned for a block that is not the expected node.
var ErrInvalidNode = errors.New("invalid B-tree node")

// maxDepth guards recursion through corrupt trees.
const maxDepth = 64

const (
	nodeGroup uint8 = 0
	nodeChunk uint8 = 1
)

// node is the common prefix of every version 1 B-tree node, positioned
// at its first key.
type node struct {
	level   uint8
	entries int
	r       *binary.Reader
}

func readNode(r *binary.Reader, addr uint64, kind uint8) (*node, error) {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("B-tree node at %d: %w", addr, err)
	}
	if !bytes.Equal(head[:4], treeSignature) || head[4] != kind {
		return nil, fmt.Errorf("%w at %d", ErrInvalidNode, addr)
	}
	// Sibling addresses are not needed for a full walk.
	nr.Skip(int64(2 * nr.OffsetSize()))
	return &node{
		level:   head[5],
		entries: int(nr.ByteOrder().Uint16(head[6:])),
		r:       nr,
	}, nil
}

// ChunkEntry locates one stored chunk. Offset is the chunk's first element
// in dataset coordinates.
type ChunkEntry struct {
	Offset     []uint64
	Size       uint64
	FilterMask uint32
	Address    uint64
}

// ReadChunks returns every chunk indexed by the tree rooted at addr for a
// dataset of the given rank.
func ReadChunks(r *binary.Reader, addr uint64, rank int) ([]ChunkEntry, error) {
	var out []ChunkEntry
	err := walkChunks(r, addr, rank, 0, &out)
	return out, err
}

func walkChunks(r *binary.Reader, addr uint64, rank, depth int, out *[]ChunkEntry) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: tree deeper than %d", ErrInvalidNode, maxDepth)
	}
	n, err := readNode(r, addr, nodeChunk)
	if err != nil {
		return err
	}
	// Keys and children alternate; the key after the last child is only
	// an upper bound.
	for i := 0; i < n.entries; i++ {
		key, err := readChunkKey(n.r, rank)
		if err != nil {
			return err
		}
		child, err := n.r.ReadOffset()
		if err != nil {
			return err
		}
		if n.level > 0 {
			if err := walkChunks(r, child, rank, depth+1, out); err != nil {
				return err
			}
			continue
		}
		if n.r.IsUndefinedOffset(child) || key.Size == 0 {
			continue
		}
		key.Address = child
		*out = append(*out, key)
	}
	return nil
}

// readChunkKey decodes size, filter mask and rank+1 offsets; the last
// offset indexes the element size and is dropped.
func readChunkKey(r *binary.Reader, rank int) (ChunkEntry, error) {
	var e ChunkEntry
	size, err := r.ReadUint32()
	if err != nil {
		return e, err
	}
	mask, err := r.ReadUint32()
	if err != nil {
		return e, err
	}
	e.Size, e.FilterMask = uint64(size), mask
	e.Offset = make([]uint64, rank+1)
	for i := range e.Offset {
		if e.Offset[i], err = r.ReadUint64(); err != nil {
			return e, err
		}
	}
	e.Offset = e.Offset[:rank]
	return e, nil
}

// GroupEntry is one member of a symbol table group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	SoftLink      string // set for soft links, which have no object
}

const (
	cacheSoftLink uint32 = 2 // symbol table entry cache type
	symbolScratch        = 16
)

// ReadGroup lists the members of a symbol table group.
func ReadGroup(r *binary.Reader, addr uint64, names *heap.Local) ([]GroupEntry, error) {
	var out []GroupEntry
	err := walkGroup(r, addr, names, 0, &out)
	return out, err
}

func walkGroup(r *binary.Reader, addr uint64, names *heap.Local, depth int, out *[]GroupEntry) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: tree deeper than %d", ErrInvalidNode, maxDepth)
	}
	n, err := readNode(r, addr, nodeGroup)
	if err != nil {
		return err
	}
	for i := 0; i < n.entries; i++ {
		n.r.Skip(int64(n.r.LengthSize())) // key: heap offset of a name
		child, err := n.r.ReadOffset()
		if err != nil {
			return err
		}
		if n.level > 0 {
			err = walkGroup(r, child, names, depth+1, out)
		} else {
			err = readSymbolNode(r, child, names, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.Local, out *[]GroupEntry) error {
	sr := r.At(int64(addr))
	head, err := sr.ReadBytes(8)
	if err != nil {
		return fmt.Errorf("symbol node at %d: %w", addr, err)
	}
	if !bytes.Equal(head[:4], snodSignature) || head[4] != 1 {
		return fmt.Errorf("%w: bad symbol node at %d", ErrInvalidNode, addr)
	}
	count := int(sr.ByteOrder().Uint16(head[6:]))
	for i := 0; i < count; i++ {
		nameOff, err := sr.ReadOffset()
		if err != nil {
			return err
		}
		objAddr, err := sr.ReadOffset()
		if err != nil {
			return err
		}
		cache, err := sr.ReadUint32()
		if err != nil {
			return err
		}
		sr.Skip(4)
		scratch, err := sr.ReadBytes(symbolScratch)
		if err != nil {
			return err
		}

		e := GroupEntry{Name: names.String(nameOff), ObjectAddress: objAddr}
		if e.Name == "" {
			continue
		}
		if cache == cacheSoftLink {
			e.SoftLink = names.String(uint64(sr.ByteOrder().Uint32(scratch)))
			e.ObjectAddress = 0
		}
		*out = append(*out, e)
	}
	return nil
}
