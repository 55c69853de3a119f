package wavelet

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"runtime"

	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/dtype"
)

const (
	// MaxLayers bounds Params.Layers.
	MaxLayers = 16
	// MaxThreads bounds Params.Threads.
	MaxThreads = 256
	// MaxLevels is the deepest decomposition used.
	MaxLevels = 5

	// largest quantization shift tried before giving up on the rate
	maxShift = 31
)

var (
	ErrInvalidParams   = errors.New("wavelet: invalid parameters")
	ErrChunkSize       = errors.New("wavelet: input size does not match geometry")
	ErrRateUnreachable = errors.New("wavelet: target rate unreachable")
	ErrClosed          = errors.New("wavelet: context closed")
	ErrCorrupt         = errors.New("wavelet: corrupt frame")
	ErrPlaneSize       = errors.New("wavelet: plane sizes differ")
)

// Params are the compression settings for a run.
type Params struct {
	Rate    float64       // raw/compressed; 1 or less means lossless
	Layers  int           // quality layers, 1..MaxLayers
	Threads int           // worker goroutines, 1..MaxThreads
	Format  compress.Type // entropy backend
	Levels  int           // decomposition levels; 0 picks the deepest that fits
}

// DefaultParams returns the settings used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Rate:    10,
		Layers:  4,
		Threads: min(runtime.NumCPU(), MaxThreads),
		Format:  compress.TypeZstd,
	}
}

// Lossless reports whether p quantizes with a step of 1.
func (p Params) Lossless() bool { return p.Rate <= 1 }

// Geometry is the shape and sample format of one slice.
type Geometry struct {
	Height      int
	Width       int
	ElementSize int
	Signed      bool
	BigEndian   bool
	Float       bool
}

// GeometryOf describes an h by w slice of samples of type info.
func GeometryOf(h, w int, info dtype.Info) Geometry {
	return Geometry{
		Height:      h,
		Width:       w,
		ElementSize: info.Size,
		Signed:      info.Signed,
		BigEndian:   info.BigEndian,
		Float:       info.Float,
	}
}

// Bytes is the raw size of one slice.
func (g Geometry) Bytes() int { return g.Height * g.Width * g.ElementSize }

// AutoLevels is the decomposition depth used for an h by w slice when
// Params.Levels is 0: every level halves both extents and the smallest
// band keeps at least two samples per axis.
func AutoLevels(h, w int) int {
	n := min(h, w)
	if n < 2 {
		return 0
	}
	return min(MaxLevels, bits.Len(uint(n))-1)
}

func (g Geometry) validate() error {
	switch {
	case g.Float:
		return fmt.Errorf("%w: floating point samples", ErrInvalidParams)
	case g.ElementSize != 1 && g.ElementSize != 2 && g.ElementSize != 4:
		return fmt.Errorf("%w: element size %d", ErrInvalidParams, g.ElementSize)
	case g.Height <= 0 || g.Width <= 0:
		return fmt.Errorf("%w: extent %dx%d", ErrInvalidParams, g.Height, g.Width)
	case uint64(g.Height) > math.MaxUint32 || uint64(g.Width) > math.MaxUint32:
		return fmt.Errorf("%w: extent %dx%d", ErrInvalidParams, g.Height, g.Width)
	}
	return nil
}

// levels validates p against g and returns the decomposition depth.
func (p Params) levels(g Geometry) (int, error) {
	switch {
	case p.Layers < 1 || p.Layers > MaxLayers:
		return 0, fmt.Errorf("%w: %d layers", ErrInvalidParams, p.Layers)
	case p.Threads < 1 || p.Threads > MaxThreads:
		return 0, fmt.Errorf("%w: %d threads", ErrInvalidParams, p.Threads)
	case math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) || p.Rate < 0:
		return 0, fmt.Errorf("%w: rate %v", ErrInvalidParams, p.Rate)
	}
	if _, err := compress.Get(p.Format); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	limit := AutoLevels(g.Height, g.Width)
	switch {
	case p.Levels == 0:
		return limit, nil
	case p.Levels < 0 || p.Levels > limit:
		return 0, fmt.Errorf("%w: %d levels for %dx%d (at most %d)", ErrInvalidParams, p.Levels, g.Height, g.Width, limit)
	}
	return p.Levels, nil
}
