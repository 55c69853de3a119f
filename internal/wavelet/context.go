package wavelet

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/frame"
)

// Context encodes slices of one geometry with one set of parameters. Its
// working set is allocated once by NewContext and reused by every Encode.
// A Context is not safe for concurrent use; it parallelizes internally.
type Context struct {
	geom   Geometry
	params Params
	levels int
	format sampleFormat
	codec  compress.Codec
	xf     *transform
	coef   []int64
	layers *layerWriter
	raw    [][]byte
	obj    frame.ArrayObject
	closed bool
}

// NewContext validates g and p and allocates the working set.
func NewContext(g Geometry, p Params) (*Context, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	levels, err := p.levels(g)
	if err != nil {
		return nil, err
	}
	codec, err := compress.Get(p.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	n := g.Height * g.Width
	c := &Context{
		geom:   g,
		params: p,
		levels: levels,
		format: formatOf(g.ElementSize, g.Signed, g.BigEndian),
		codec:  codec,
		xf:     newTransform(g.Height, g.Width, levels, p.Threads),
		coef:   make([]int64, n),
		layers: newLayerWriter(p.Layers, n),
		raw:    make([][]byte, 0, p.Layers),
	}
	c.obj.Layers = make([][]byte, p.Layers)
	return c, nil
}

// ChunkBytes is the input size Encode expects.
func (c *Context) ChunkBytes() int { return c.geom.Bytes() }

// Levels is the decomposition depth in use.
func (c *Context) Levels() int { return c.levels }

// Geometry returns the slice geometry.
func (c *Context) Geometry() Geometry { return c.geom }

// Params returns the parameters the context was built with.
func (c *Context) Params() Params { return c.params }

// Encode compresses one slice. The result belongs to the context and is
// overwritten by the next call.
func (c *Context) Encode(buf []byte) (*frame.ArrayObject, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if len(buf) != c.ChunkBytes() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrChunkSize, len(buf), c.ChunkBytes())
	}
	c.format.load(c.coef, buf)
	c.xf.forward(c.coef)

	raw := c.geom.Bytes()
	target := raw
	if !c.params.Lossless() {
		target = int(float64(raw) / c.params.Rate)
	}
	for k := uint(0); k <= maxShift; k++ {
		c.raw = c.layers.split(c.coef, k, c.raw)
		size, err := c.entropy()
		if err != nil {
			return nil, err
		}
		if c.params.Lossless() || size <= target {
			c.obj.Step = 1 << k
			c.fill()
			return &c.obj, nil
		}
	}
	return nil, fmt.Errorf("%w: rate %g needs %d bytes per slice", ErrRateUnreachable, c.params.Rate, target)
}

// entropy codes c.raw into c.obj.Layers in parallel and returns the
// payload size.
func (c *Context) entropy() (int, error) {
	var g errgroup.Group
	g.SetLimit(c.params.Threads)
	for i, layer := range c.raw {
		i, layer := i, layer
		g.Go(func() error {
			packed, err := c.codec.Compress(layer)
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			c.obj.Layers[i] = packed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return c.obj.PayloadSize(), nil
}

func (c *Context) fill() {
	c.obj.Codec = c.params.Format
	c.obj.ElementSize = c.geom.ElementSize
	c.obj.Signed = c.geom.Signed
	c.obj.BigEndian = c.geom.BigEndian
	c.obj.Levels = c.levels
	c.obj.Height = c.geom.Height
	c.obj.Width = c.geom.Width
}

// Close releases the working set. It is safe to call more than once.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.coef, c.raw, c.layers, c.xf = nil, nil, nil, nil
	c.obj.Reset()
	return nil
}
