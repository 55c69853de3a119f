// Package layout reads and writes the raw data of HDF5 datasets.
//
// A [Layout] reads any hyperslab of a dataset into a caller buffer,
// whatever the storage class underneath:
//
//   - Compact (class 0): bytes held in the object header. See [Compact].
//   - Contiguous (class 1): one block in the file. See [Contiguous].
//   - Chunked (class 2): fixed-size chunks located through an index and
//     optionally run through the filter pipeline. See [Chunked].
//
// # Chunk Indexes
//
// [Chunked] builds its chunk map once per dataset from whichever index the
// layout message names:
//
//   - Version 1 B-tree (layout versions 1 to 3)
//   - Single chunk
//   - Implicit (chunks laid out back to back)
//   - Fixed array, paged or not
//   - Extensible array, including super blocks and paged data blocks
//
// Version 2 B-tree indexes, used only for datasets with more than one
// unlimited dimension, are reported as unsupported.
//
// # Writing
//
// [FixedArray] allocates a fixed array index whose entries start
// undefined and are filled one at a time as chunks land in the file.
// Each update rewrites only the entry and the data block checksum.
package layout
