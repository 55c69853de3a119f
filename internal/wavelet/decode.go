package wavelet

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/frame"
)

// Decode reconstructs the raw samples of a frame from its first
// maxLayers quality layers; 0 or anything above the stored count decodes
// them all.
func Decode(data []byte, maxLayers int) ([]byte, error) {
	h, layers, err := frame.Parse(data)
	if err != nil {
		return nil, err
	}
	g := Geometry{
		Height:      h.Height,
		Width:       h.Width,
		ElementSize: h.ElementSize,
		Signed:      h.Signed,
		BigEndian:   h.BigEndian,
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if h.Levels > AutoLevels(h.Height, h.Width) {
		return nil, fmt.Errorf("%w: %d levels for %dx%d", ErrCorrupt, h.Levels, h.Height, h.Width)
	}
	if h.Step == 0 || h.Step&(h.Step-1) != 0 {
		return nil, fmt.Errorf("%w: step %d", ErrCorrupt, h.Step)
	}
	codec, err := compress.Get(h.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	n := len(layers)
	if maxLayers > 0 && maxLayers < n {
		n = maxLayers
	}
	raw := make([][]byte, n)
	for i := range raw {
		if raw[i], err = codec.Decompress(layers[i]); err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", ErrCorrupt, i, err)
		}
	}

	count := h.Height * h.Width
	mag := make([]uint64, count)
	neg := make([]bool, count)
	if err := merge(raw, mag, neg); err != nil {
		return nil, err
	}

	// Missing layers widen the effective step.
	e := uint(bits.TrailingZeros32(h.Step) + len(layers) - n)
	coef := make([]int64, count)
	for i, m := range mag {
		if m == 0 {
			continue
		}
		v := int64(m << e)
		if e > 0 {
			v += 1 << (e - 1)
		}
		if neg[i] {
			v = -v
		}
		coef[i] = v
	}
	newTransform(h.Height, h.Width, h.Levels, 1).inverse(coef)

	out := make([]byte, g.Bytes())
	formatOf(g.ElementSize, g.Signed, g.BigEndian).store(out, coef)
	return out, nil
}
