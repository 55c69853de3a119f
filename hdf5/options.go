package hdf5

import "github.com/robert-malhotra/tomoslice/internal/message"

// FileOption configures file creation.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{offsetSize: 8, lengthSize: 8}
}

// WithOffsetSize sets the size in bytes of file addresses (2, 4, or 8).
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes of lengths (2, 4, or 8).
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	chunks     []uint64
	deflate    int
	shuffle    bool
	fletcher32 bool
	filters    []message.FilterInfo
}

// WithChunks stores the dataset in chunks of the given extent. Filters
// require chunked storage.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = append([]uint64(nil), dims...)
	}
}

// WithCompression enables deflate at level 1-9; 0 disables it.
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 9 {
			o.deflate = level
		}
	}
}

// WithShuffle enables the byte shuffle filter ahead of compression.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = true
	}
}

// WithFletcher32 appends a Fletcher-32 checksum to every chunk.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.fletcher32 = true
	}
}

// WithFilter adds a filter by its pipeline entry, after shuffle and
// deflate. Filters this package cannot run may still be recorded; chunks
// of such datasets must then be written with WriteRawChunk.
func WithFilter(info message.FilterInfo) DatasetOption {
	return func(o *datasetOptions) {
		info.ClientData = append([]uint32(nil), info.ClientData...)
		o.filters = append(o.filters, info)
	}
}

// pipeline returns the filter pipeline message for the options, or nil.
func (o *datasetOptions) pipeline(elemSize int) *message.FilterPipeline {
	var filters []message.FilterInfo
	if o.shuffle {
		filters = append(filters, message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{uint32(elemSize)}})
	}
	if o.deflate > 0 {
		filters = append(filters, message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{uint32(o.deflate)}})
	}
	filters = append(filters, o.filters...)
	if o.fletcher32 {
		filters = append(filters, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if len(filters) == 0 {
		return nil
	}
	return message.NewFilterPipeline(filters...)
}
