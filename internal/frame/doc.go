// Package frame defines the self-describing byte frame a wavelet encoded
// slice is stored as. A frame carries everything needed to decode it:
// geometry, sample format, entropy backend and the size of every quality
// layer, followed by the layers themselves.
//
// Layout, little-endian:
//
//	offset  size  field
//	0       4     magic "WVLT"
//	4       1     version
//	5       1     entropy codec (1 zstd, 2 s2, 3 lz4)
//	6       1     element size in bytes
//	7       1     flags: bit 0 signed, bit 1 big-endian samples
//	8       1     wavelet levels
//	9       1     quality layers (L)
//	10      2     reserved, zero
//	12      4     height
//	16      4     width
//	20      4     quantization step
//	24      8     payload length
//	32      4*L   layer sizes
//	32+4L   8     xxhash64 of bytes [0, 32+4L) and of the payload
//
// The payload, the concatenated layers, follows the checksum.
package frame
