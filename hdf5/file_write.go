package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/tomoslice/internal/alloc"
	binpkg "github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
	"github.com/robert-malhotra/tomoslice/internal/object"
	"github.com/robert-malhotra/tomoslice/internal/superblock"
)

// Create creates an HDF5 file at path, truncating any existing file. The
// file has a version 3 superblock and an empty root group. It is written
// in place as objects are added and stays readable after every call that
// returns without error. A File is not safe for concurrent writes.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	osFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	cfg := binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: options.offsetSize,
		LengthSize: options.lengthSize,
	}
	sb := superblock.New()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)

	f := &File{
		path:       path,
		file:       osFile,
		reader:     binpkg.NewReader(osFile, cfg),
		superblock: sb,
		writable:   true,
		writer:     binpkg.NewWriter(osFile, cfg),
		allocator:  alloc.New(uint64(sb.Size())),
		groups:     make(map[string]*Group),
	}

	raw, err := object.Encode(cfg, object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return fail(fmt.Errorf("encoding root group: %w", err))
	}
	rootAddr := f.allocator.Alloc(uint64(len(raw)), "group header")
	if err := f.writer.At(int64(rootAddr)).WriteBytes(raw); err != nil {
		return fail(fmt.Errorf("writing root group: %w", err))
	}
	sb.RootGroupAddress = rootAddr
	f.root = &Group{
		file:   f,
		path:   "/",
		addr:   rootAddr,
		links:  []*message.Link{},
		loaded: true,
		chunk:  object.MinGroupChunkSize,
		size:   len(raw),
	}
	f.groups["/"] = f.root

	if err := f.commitEOF(); err != nil {
		return fail(err)
	}
	return f, nil
}

// IsWritable reports whether the file was created by Create.
func (f *File) IsWritable() bool {
	return f.writable
}

// Flush commits the end of file address and syncs the file to disk.
func (f *File) Flush() error {
	if !f.writable {
		return nil
	}
	if err := f.commitEOF(); err != nil {
		return err
	}
	return f.file.Sync()
}

// commitEOF extends the file to the allocated end and rewrites the
// superblock, which records that end and the root group address.
func (f *File) commitEOF() error {
	eof := f.allocator.EOF()
	fi, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if uint64(fi.Size()) < eof {
		if err := f.file.Truncate(int64(eof)); err != nil {
			return fmt.Errorf("extending file: %w", err)
		}
	}
	f.superblock.EOFAddress = eof
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// AllocStats reports the file space handed out since Create.
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

// RequireGroup opens the group at the absolute path p, creating it and
// any missing parents.
func (f *File) RequireGroup(p string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.RequireGroup(CleanPath(p))
}
