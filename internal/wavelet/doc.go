// Package wavelet is a lossy, rate controlled image codec for single
// slices of a tomographic volume.
//
// A slice is level shifted to signed, transformed with the reversible
// integer CDF 5/3 lifting wavelet, quantized with a power of two deadzone
// step and split into quality layers: a base layer of coarse magnitudes
// followed by one refinement bit plane per layer. Each layer is entropy
// coded independently, so a decoder can stop after any prefix of layers
// and still reconstruct the whole slice at lower fidelity.
//
// With a target rate of 1 or less the step is 1 and decoding all layers
// reproduces the input exactly.
package wavelet
