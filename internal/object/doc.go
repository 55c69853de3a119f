// Package object reads and writes HDF5 object headers, the message lists
// that describe every group and dataset.
//
// Version 1 headers (found in files written with the original format) and
// version 2 "OHDR" headers are read, following continuation blocks.
// Headers are always written as version 2 with a lookup3 checksum and
// a single chunk.
package object
