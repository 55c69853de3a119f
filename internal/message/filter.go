package message

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// Filter identifiers registered with The HDF Group.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
	FilterZstd        uint16 = 32015
	FilterBlosc2      uint16 = 32026
)

// FilterFlagOptional marks a filter that may be skipped when it fails.
const FilterFlagOptional uint16 = 0x0001

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the filter is marked optional.
func (f *FilterInfo) IsOptional() bool { return f.Flags&FilterFlagOptional != 0 }

// FilterPipeline is message 0x000B. Filters are listed in the order they
// are applied on write.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// HasFilter reports whether a stage with the given id is present.
func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

func parseFilterPipeline(d *decoder) (*FilterPipeline, error) {
	fp := &FilterPipeline{Version: d.u8()}
	n := int(d.u8())
	switch fp.Version {
	case 1:
		d.skip(6)
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", fp.Version)
	}

	fp.Filters = make([]FilterInfo, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		var f FilterInfo
		f.ID = d.u16()
		nameLen := 0
		if fp.Version == 1 || f.ID >= 256 {
			nameLen = int(d.u16())
		}
		f.Flags = d.u16()
		nvalues := int(d.u16())
		if nameLen > 0 {
			padded := nameLen
			if fp.Version == 1 {
				padded = (nameLen + 7) &^ 7
			}
			f.Name = d.cstring(padded)
		}
		f.ClientData = make([]uint32, nvalues)
		for j := range f.ClientData {
			f.ClientData[j] = d.u32()
		}
		if fp.Version == 1 && nvalues%2 == 1 {
			d.skip(4)
		}
		fp.Filters = append(fp.Filters, f)
	}
	if d.err != nil {
		return nil, fmt.Errorf("filter pipeline: %w", d.err)
	}
	return fp, nil
}

// nameField is the NUL-terminated name as stored; only filters outside the
// reserved id range carry one in version 2.
func (f *FilterInfo) nameField() []byte {
	if f.ID < 256 || f.Name == "" {
		return nil
	}
	return append([]byte(f.Name), 0)
}

// Serialize writes a version 2 pipeline.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(2)
	e.u8(uint8(len(m.Filters)))
	for i := range m.Filters {
		f := &m.Filters[i]
		name := f.nameField()
		e.u16(f.ID)
		if f.ID >= 256 {
			e.u16(uint16(len(name)))
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		e.bytes(name)
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
	return e.err
}

func (m *FilterPipeline) SerializedSize(w *binary.Writer) int {
	size := 2
	for i := range m.Filters {
		f := &m.Filters[i]
		size += 6 + len(f.nameField()) + 4*len(f.ClientData)
		if f.ID >= 256 {
			size += 2
		}
	}
	return size
}

// NewFilterPipeline builds a pipeline message from its stages.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}
