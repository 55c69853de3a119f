// Package heap reads HDF5 local heaps, which hold the member names of
// groups stored in the original symbol table format.
package heap
