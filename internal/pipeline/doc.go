// Package pipeline drives a compression run: it opens the source volume,
// creates the destination dataset, and then for every slice in order
// reads it, encodes it, frames it and stores the frame as the slice's
// chunk. Any failure ends the run; everything acquired so far is released
// in reverse order and the error says which step and slice failed.
package pipeline
