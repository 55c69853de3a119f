package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/tomoslice/internal/binary"
)

// Signature opens every HDF5 superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// searchOffsets are the positions probed for the signature, in order.
// HDF5 also allows any later power of two; user blocks that large are not
// produced by the tools this module reads from.
var searchOffsets = []int64{0, 512, 1024, 2048, 4096}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrChecksum           = errors.New("superblock checksum mismatch")
)

// Superblock is the decoded file header.
type Superblock struct {
	Version          uint8
	OffsetSize       uint8
	LengthSize       uint8
	ConsistencyFlags uint32

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Version 0/1 only.
	GroupLeafNodeK     uint16
	GroupInternalNodeK uint16
	IndexedStorageK    uint16
	// Cached from the root symbol table entry's scratch pad, when present.
	RootBTreeAddress uint64
	RootHeapAddress  uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// Read finds the signature and decodes the superblock that follows it.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		n, err := r.ReadAt(sig, off)
		if n < len(sig) {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if !bytes.Equal(sig[:len(Signature)], Signature) {
			continue
		}

		var sb *Superblock
		version := sig[len(Signature)]
		switch version {
		case 0, 1:
			sb, err = readV0V1(r, off, version)
		case 2, 3:
			sb, err = readV2V3(r, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		if err != nil {
			return nil, fmt.Errorf("superblock v%d: %w", version, err)
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// Config is the binary layout every other structure in the file uses.
// HDF5 metadata is always little-endian.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// readV0V1 decodes the original superblock layout. The root group is
// reached through a symbol table entry at the end.
func readV0V1(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	br := binpkg.NewReader(r, binpkg.DefaultConfig()).At(off + 9)
	fixed, err := br.ReadBytes(15)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:            version,
		OffsetSize:         fixed[4],
		LengthSize:         fixed[5],
		GroupLeafNodeK:     binary.LittleEndian.Uint16(fixed[7:]),
		GroupInternalNodeK: binary.LittleEndian.Uint16(fixed[9:]),
		ConsistencyFlags:   binary.LittleEndian.Uint32(fixed[11:]),
	}
	if err := sb.Config().Validate(); err != nil {
		return nil, err
	}
	br = binpkg.NewReader(r, sb.Config()).At(br.Pos())
	if version == 1 {
		k, err := br.ReadUint16()
		if err != nil {
			return nil, err
		}
		sb.IndexedStorageK = k
		br.Skip(2)
	}

	var freeSpace, driver, linkName uint64
	fields := []*uint64{&sb.BaseAddress, &freeSpace, &sb.EOFAddress, &driver, &linkName, &sb.RootGroupAddress}
	for _, f := range fields {
		if *f, err = br.ReadOffset(); err != nil {
			return nil, err
		}
	}
	cacheType, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	br.Skip(4)
	if cacheType == 1 {
		if sb.RootBTreeAddress, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		if sb.RootHeapAddress, err = br.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

func readV2V3(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 4)
	if _, err := r.ReadAt(head, off+8); err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:          head[0],
		OffsetSize:       head[1],
		LengthSize:       head[2],
		ConsistencyFlags: uint32(head[3]),
	}
	if err := sb.Config().Validate(); err != nil {
		return nil, err
	}

	size := sb.Size()
	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, off); err != nil {
		return nil, err
	}
	stored := binary.LittleEndian.Uint32(raw[size-4:])
	if !binpkg.VerifyLookup3(raw[:size-4], stored) {
		return nil, ErrChecksum
	}

	br := binpkg.NewReader(bytes.NewReader(raw), sb.Config()).At(12)
	var err error
	for _, f := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		if *f, err = br.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}
