// Package alloc hands out file space for a file being written.
//
// Allocation is append-only: every block is placed at the current end of
// file. Space released by rewritten metadata is recorded so the waste can
// be reported, but it is never reused.
package alloc
