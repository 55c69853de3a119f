package message

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// DataspaceType distinguishes scalar, simple (N-dimensional) and null spaces.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Unlimited is the max-dimension value of an extendible axis.
const Unlimited = ^uint64(0)

// Dataspace is message 0x0001.
type Dataspace struct {
	Version    uint8
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when equal to Dimensions
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank is the number of dimensions (0 for scalar and null spaces).
func (m *Dataspace) Rank() int { return len(m.Dimensions) }

// NumElements is the product of the dimensions.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dimensions {
		n *= d
	}
	return n
}

func parseDataspace(d *decoder) (*Dataspace, error) {
	ds := &Dataspace{Version: d.u8()}
	rank := int(d.u8())
	flags := d.u8()

	switch ds.Version {
	case 1:
		d.skip(5)
		ds.SpaceType = DataspaceSimple
		if rank == 0 {
			ds.SpaceType = DataspaceScalar
		}
	case 2:
		ds.SpaceType = DataspaceType(d.u8())
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", ds.Version)
	}
	if d.err != nil {
		return nil, d.err
	}
	if ds.SpaceType != DataspaceSimple {
		return ds, nil
	}

	ds.Dimensions = make([]uint64, rank)
	for i := range ds.Dimensions {
		ds.Dimensions[i] = d.length()
	}
	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = d.length()
		}
	}
	return ds, d.err
}

// Serialize writes a version 2 dataspace.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	flags := uint8(0)
	if m.MaxDims != nil {
		flags = 0x01
	}
	e.u8(2)
	e.u8(uint8(len(m.Dimensions)))
	e.u8(flags)
	e.u8(uint8(m.SpaceType))
	for _, dim := range m.Dimensions {
		e.length(dim)
	}
	for _, dim := range m.MaxDims {
		e.length(dim)
	}
	return e.err
}

func (m *Dataspace) SerializedSize(w *binary.Writer) int {
	return 4 + (len(m.Dimensions)+len(m.MaxDims))*w.LengthSize()
}

// NewDataspace returns a simple dataspace; maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{
		Version:    2,
		SpaceType:  DataspaceSimple,
		Dimensions: append([]uint64(nil), dims...),
		MaxDims:    append([]uint64(nil), maxDims...),
	}
}
