package message

import (
	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// LinkInfo is message 0x0002. A defined FractalHeapAddr means the group
// stores its links densely instead of as Link messages.
type LinkInfo struct {
	Version           uint8
	Flags             uint8
	MaxCreationIndex  uint64
	FractalHeapAddr   uint64
	NameIndexAddr     uint64
	CreationIndexAddr uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func parseLinkInfo(d *decoder) (*LinkInfo, error) {
	li := &LinkInfo{Version: d.u8(), Flags: d.u8()}
	if li.Flags&0x01 != 0 {
		li.MaxCreationIndex = d.u64()
	}
	li.FractalHeapAddr = d.offset()
	li.NameIndexAddr = d.offset()
	if li.Flags&0x02 != 0 {
		li.CreationIndexAddr = d.offset()
	}
	return li, d.err
}

func (m *LinkInfo) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(0)
	e.u8(m.Flags &^ 0x03)
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexAddr)
	return e.err
}

func (m *LinkInfo) SerializedSize(w *binary.Writer) int {
	return 2 + 2*w.OffsetSize()
}

// NewLinkInfo describes a compact group without creation order tracking.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexAddr: UndefinedAddress}
}

// GroupInfo is message 0x000A. Only defaults are written.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstEntries      uint16
	EstNameLen      uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func parseGroupInfo(d *decoder) (*GroupInfo, error) {
	gi := &GroupInfo{Version: d.u8(), Flags: d.u8()}
	if gi.Flags&0x01 != 0 {
		gi.MaxCompactLinks = d.u16()
		gi.MinDenseLinks = d.u16()
	}
	if gi.Flags&0x02 != 0 {
		gi.EstEntries = d.u16()
		gi.EstNameLen = d.u16()
	}
	return gi, d.err
}

func (m *GroupInfo) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(0)
	e.u8(0)
	return e.err
}

func (m *GroupInfo) SerializedSize(w *binary.Writer) int { return 2 }

// SymbolTable is message 0x0011, found in groups written in the original
// (pre 1.8) format: member names live in a local heap indexed by a B-tree.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(d *decoder) (*SymbolTable, error) {
	st := &SymbolTable{BTreeAddress: d.offset(), LocalHeapAddress: d.offset()}
	return st, d.err
}
