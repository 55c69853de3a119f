// Package filter implements the HDF5 chunk filter pipeline.
//
// Filters run in pipeline order when a chunk is written and in reverse
// when it is read. Bit i of a chunk's filter mask records that filter i
// was skipped for that chunk.
package filter
