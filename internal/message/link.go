package message

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
)

// LinkType distinguishes hard, soft and external links.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link is message 0x0006, one named member of a compact group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	HasOrder      bool
	Charset       uint8
	Name          string

	ObjectAddress uint64 // hard links
	SoftPath      string // soft links
	ExternalFile  string // external links
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

// IsHard reports a hard link.
func (m *Link) IsHard() bool { return m.LinkType == LinkTypeHard }

func parseLink(d *decoder) (*Link, error) {
	l := &Link{Version: d.u8()}
	if l.Version != 1 {
		return nil, fmt.Errorf("unsupported link version %d", l.Version)
	}
	flags := d.u8()
	if flags&0x08 != 0 {
		l.LinkType = LinkType(d.u8())
	}
	if flags&0x04 != 0 {
		l.HasOrder = true
		l.CreationOrder = d.u64()
	}
	if flags&0x10 != 0 {
		l.Charset = d.u8()
	}
	nameLen := d.uintN(1 << (flags & 0x03))
	l.Name = string(d.bytes(int(nameLen)))

	switch l.LinkType {
	case LinkTypeHard:
		l.ObjectAddress = d.offset()
	case LinkTypeSoft:
		n := d.u16()
		l.SoftPath = string(d.bytes(int(n)))
	case LinkTypeExternal:
		n := int(d.u16())
		body := d.bytes(n)
		if len(body) > 1 {
			// version/flags byte, then "file\0path\0"
			parts := splitNul(body[1:])
			if len(parts) > 0 {
				l.ExternalFile = parts[0]
			}
			if len(parts) > 1 {
				l.ExternalPath = parts[1]
			}
		}
	}
	return l, d.err
}

func splitNul(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}

func (m *Link) nameWidth() int {
	switch n := len(m.Name); {
	case n <= 0xFF:
		return 1
	case n <= 0xFFFF:
		return 2
	}
	return 4
}

// Serialize writes a hard link; other kinds are never created here.
func (m *Link) Serialize(w *binary.Writer) error {
	if m.LinkType != LinkTypeHard {
		return fmt.Errorf("only hard links can be written")
	}
	width := m.nameWidth()
	flags := uint8(0)
	switch width {
	case 2:
		flags = 0x01
	case 4:
		flags = 0x02
	}
	e := &encoder{w: w}
	e.u8(1)
	e.u8(flags)
	e.uintN(uint64(len(m.Name)), width)
	e.bytes([]byte(m.Name))
	e.offset(m.ObjectAddress)
	return e.err
}

func (m *Link) SerializedSize(w *binary.Writer) int {
	return 2 + m.nameWidth() + len(m.Name) + w.OffsetSize()
}

// NewHardLink names the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}
