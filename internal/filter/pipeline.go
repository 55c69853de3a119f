package filter

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/message"
)

// stage is a filter with its position in the pipeline message, which is
// the bit it owns in a chunk's filter mask.
type stage struct {
	bit    uint
	filter Filter
}

// Pipeline applies the filters of one dataset.
type Pipeline struct {
	stages []stage
}

// NewPipeline builds a pipeline from its message; nil yields an empty one.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f != nil {
			p.stages = append(p.stages, stage{bit: uint(i), filter: f})
		}
	}
	return p, nil
}

// Empty reports a pipeline that leaves data unchanged.
func (p *Pipeline) Empty() bool { return len(p.stages) == 0 }

// Len is the number of active filters.
func (p *Pipeline) Len() int { return len(p.stages) }

// Encode runs every filter in order. The returned mask is always zero
// since no stage is skipped on write.
func (p *Pipeline) Encode(data []byte) ([]byte, uint32, error) {
	for _, s := range p.stages {
		var err error
		if data, err = s.filter.Encode(data); err != nil {
			return nil, 0, fmt.Errorf("%s encode: %w", Name(s.filter.ID()), err)
		}
	}
	return data, 0, nil
}

// Decode undoes the pipeline, last filter first, skipping any stage whose
// bit is set in mask.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if mask&(1<<s.bit) != 0 {
			continue
		}
		var err error
		if data, err = s.filter.Decode(data); err != nil {
			return nil, fmt.Errorf("%s decode: %w", Name(s.filter.ID()), err)
		}
	}
	return data, nil
}
