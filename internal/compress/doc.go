// Package compress wraps the general purpose byte compressors used by the
// wavelet codec's entropy stage and by the HDF5 zstd and lz4 filters.
//
// Encoders and decoders are pooled; every Codec is safe for concurrent use.
package compress
