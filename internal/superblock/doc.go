// Package superblock locates, reads and writes the HDF5 superblock, the
// fixed entry point that records address widths, the logical end of file
// and the root group.
//
// Versions 0 through 3 are read. Files are always written with a
// version 3 superblock, which carries a lookup3 checksum; the
// writer rewrites it whenever the end-of-file address moves so that a
// partially written file still describes every block that reached disk.
package superblock
