package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/tomoslice/internal/alloc"
	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/object"
	"github.com/robert-malhotra/tomoslice/internal/superblock"
)

// File is an open HDF5 file.
type File struct {
	path          string
	file          *os.File
	reader        *binary.Reader
	superblock    *superblock.Superblock
	root          *Group
	closed        bool
	externalFiles map[string]*File

	// write side
	writable  bool
	writer    *binary.Writer
	allocator *alloc.Allocator
	groups    map[string]*Group // groups written in this session, by path
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(f)
	if err != nil {
		f.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	hdf := &File{
		path:       path,
		file:       f,
		reader:     binary.NewReader(f, sb.Config()),
		superblock: sb,
	}
	root, err := hdf.openGroupAt(sb.RootGroupAddress, "/", nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	hdf.root = root
	return hdf, nil
}

// Close flushes a writable file and closes it along with any external
// files opened through links.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var flushErr error
	if f.writable {
		flushErr = f.Flush()
	}
	for _, ext := range f.externalFiles {
		ext.Close()
	}
	f.externalFiles = nil

	if err := f.file.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// openGroupAt opens the group whose header is at address.
func (f *File) openGroupAt(address uint64, path string, parent *Group) (*Group, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	if header.IsDataset() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, path)
	}
	return &Group{
		file:   f,
		path:   path,
		parent: parent,
		addr:   address,
		header: header,
	}, nil
}

// openObjectAt opens the group or dataset whose header is at address.
func (f *File) openObjectAt(address uint64, path string, parent *Group) (any, error) {
	if g, ok := f.groups[path]; ok {
		return g, nil
	}
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %#x: %w", address, err)
	}
	if header.IsDataset() {
		return newDataset(f, path, address, header)
	}
	return &Group{
		file:   f,
		path:   path,
		parent: parent,
		addr:   address,
		header: header,
	}, nil
}

// openExternalFile opens a file named by an external link, relative to the
// directory of f. Files are cached until f is closed.
func (f *File) openExternalFile(name string) (*File, error) {
	if ext, ok := f.externalFiles[name]; ok {
		return ext, nil
	}
	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(f.path), name)
	}
	ext, err := Open(target)
	if err != nil {
		return nil, fmt.Errorf("opening external file %q: %w", target, err)
	}
	if f.externalFiles == nil {
		f.externalFiles = make(map[string]*File)
	}
	f.externalFiles[name] = ext
	return ext, nil
}
