// Package btree walks version 1 B-trees ("TREE" nodes), which index the
// members of symbol table groups and the chunks of datasets written with
// layout messages older than version 4.
package btree
