// Package hdf5 reads and writes HDF5 files in pure Go.
//
// Reading covers the common on-disk formats: superblocks version 0 to 3,
// old and new style groups, soft and external links, and compact,
// contiguous or chunked datasets with deflate, shuffle, fletcher32, zstd
// and lz4 filters.
//
// Writing produces version 3 superblocks with new style groups. Chunked
// datasets are indexed by a fixed array and accept chunks one at a time,
// either through the filter pipeline or stored verbatim. The file stays
// readable after every chunk write.
package hdf5

import "errors"

var (
	ErrNotHDF5      = errors.New("not an HDF5 file")
	ErrNotFound     = errors.New("object not found")
	ErrNotDataset   = errors.New("object is not a dataset")
	ErrNotGroup     = errors.New("object is not a group")
	ErrNotChunked   = errors.New("dataset is not chunked")
	ErrUnsupported  = errors.New("unsupported feature")
	ErrInvalidPath  = errors.New("invalid path")
	ErrClosed       = errors.New("file is closed")
	ErrReadOnly     = errors.New("file is not writable")
	ErrExists       = errors.New("object already exists")
	ErrLinkDepth    = errors.New("maximum link depth exceeded")
	ErrBufferSize   = errors.New("buffer size does not match selection")
	ErrInvalidShape = errors.New("invalid dataset shape")
	ErrChunkOffset  = errors.New("chunk offset is not aligned or out of range")
	ErrChunkWritten = errors.New("chunk already written")
)

// MaxLinkDepth bounds the soft and external links followed while resolving
// one path.
const MaxLinkDepth = 100
