package object

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// block is one contiguous run of header messages still to be decoded.
type block struct {
	addr   uint64
	length uint64
}

// readV1 decodes a version 1 header: a 16 byte prefix followed by 8 byte
// aligned messages, with further messages in plain continuation blocks.
func (h *Header) readV1(r *binary.Reader) error {
	prefix, err := r.ReadBytes(16)
	if err != nil {
		return err
	}
	order := r.ByteOrder()
	h.Version = prefix[0]
	h.RefCount = order.Uint32(prefix[4:])
	size := uint64(order.Uint32(prefix[8:]))

	pending := []block{{addr: uint64(r.Pos()), length: size}}
	for n := 0; len(pending) > 0; n++ {
		if n > maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		b := pending[0]
		pending = pending[1:]
		raw, err := r.At(int64(b.addr)).ReadBytes(int(b.length))
		if err != nil {
			return err
		}
		more, err := h.decodeV1Messages(raw, r)
		if err != nil {
			return err
		}
		pending = append(pending, more...)
	}
	return nil
}

func (h *Header) decodeV1Messages(raw []byte, r *binary.Reader) ([]block, error) {
	var more []block
	order := r.ByteOrder()
	for pos := 0; pos+8 <= len(raw); {
		typ := message.Type(order.Uint16(raw[pos:]))
		size := int(order.Uint16(raw[pos+2:]))
		flags := raw[pos+4]
		pos += 8
		if pos+size > len(raw) {
			return nil, fmt.Errorf("%w: message 0x%04x overruns its block", ErrInvalidHeader, uint16(typ))
		}
		data := raw[pos : pos+size]
		pos += (size + 7) &^ 7

		cont, err := h.addMessage(typ, data, flags, r)
		if err != nil {
			return nil, err
		}
		if cont != nil {
			more = append(more, block{addr: cont.Offset, length: cont.Length})
		}
	}
	return more, nil
}

// readV2 decodes an OHDR header and any OCHK continuation blocks. Every
// block's checksum is verified.
func (h *Header) readV2(r *binary.Reader) error {
	start := r.Pos()
	fixed, err := r.ReadBytes(6)
	if err != nil {
		return err
	}
	h.Version = fixed[4]
	h.Flags = fixed[5]
	if h.Version != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Flags&0x20 != 0 {
		r.Skip(16) // access, modification, change and birth times
	}
	if h.Flags&0x10 != 0 {
		r.Skip(4) // attribute phase change values
	}
	chunk0, err := r.ReadUintN(1 << (h.Flags & 0x03))
	if err != nil {
		return err
	}
	h.RefCount = 1

	// The checksum covers everything from the signature to the end of
	// the first chunk.
	prefixLen := r.Pos() - start
	raw, err := r.At(start).ReadBytes(int(prefixLen) + int(chunk0) + 4)
	if err != nil {
		return err
	}
	if err := verifyV2Block(raw); err != nil {
		return err
	}

	pending, err := h.decodeV2Messages(raw[prefixLen:len(raw)-4], r)
	if err != nil {
		return err
	}
	for n := 0; len(pending) > 0; n++ {
		if n > maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		b := pending[0]
		pending = pending[1:]
		raw, err := r.At(int64(b.addr)).ReadBytes(int(b.length))
		if err != nil {
			return err
		}
		if len(raw) < 8 || !bytes.Equal(raw[:4], signatureContinuation) {
			return fmt.Errorf("%w: bad continuation block at %d", ErrInvalidHeader, b.addr)
		}
		if err := verifyV2Block(raw); err != nil {
			return err
		}
		more, err := h.decodeV2Messages(raw[4:len(raw)-4], r)
		if err != nil {
			return err
		}
		pending = append(pending, more...)
	}
	return nil
}

func verifyV2Block(raw []byte) error {
	n := len(raw)
	stored := uint32(raw[n-4]) | uint32(raw[n-3])<<8 | uint32(raw[n-2])<<16 | uint32(raw[n-1])<<24
	if !binary.VerifyLookup3(raw[:n-4], stored) {
		return ErrChecksumMismatch
	}
	return nil
}

func (h *Header) decodeV2Messages(raw []byte, r *binary.Reader) ([]block, error) {
	var more []block
	order := r.ByteOrder()
	headLen := 4
	if h.Flags&0x04 != 0 {
		headLen += 2 // creation order
	}
	// A gap shorter than a message header may end the block.
	for pos := 0; pos+headLen <= len(raw); {
		typ := message.Type(raw[pos])
		size := int(order.Uint16(raw[pos+1:]))
		flags := raw[pos+3]
		pos += headLen
		if pos+size > len(raw) {
			return nil, fmt.Errorf("%w: message 0x%04x overruns its block", ErrInvalidHeader, uint16(typ))
		}
		data := raw[pos : pos+size]
		pos += size

		cont, err := h.addMessage(typ, data, flags, r)
		if err != nil {
			return nil, err
		}
		if cont != nil {
			more = append(more, block{addr: cont.Offset, length: cont.Length})
		}
	}
	return more, nil
}

// addMessage decodes one message. Continuations are returned to the caller
// instead of being stored.
func (h *Header) addMessage(typ message.Type, data []byte, flags uint8, r *binary.Reader) (*message.Continuation, error) {
	if typ == message.TypeNIL {
		return nil, nil
	}
	m, err := message.Parse(typ, data, flags, r)
	if err != nil {
		return nil, err
	}
	if c, ok := m.(*message.Continuation); ok {
		return c, nil
	}
	h.Messages = append(h.Messages, m)
	return nil, nil
}
