// Package dtype maps HDF5 numeric datatypes onto Go types.
//
// Only the numeric classes are handled: fixed-point integers of 1, 2, 4 or
// 8 bytes and IEEE floats of 4 or 8 bytes, in either byte order.
//
//	HDF5 Class        | Go Type
//	------------------|------------------------------------------
//	Fixed-point       | int8..int64 or uint8..uint64 by size and sign
//	Floating-point    | float32 or float64
//
// [Info] is the compact description the rest of the module passes around.
// [Encode] and [Decode] move typed slices to and from raw element bytes,
// and [Float64s] widens raw samples of any supported type for numeric work
// such as fidelity metrics.
package dtype
