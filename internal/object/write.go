package object

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/binary"
	"github.com/robert-malhotra/tomoslice/internal/message"
)

// MinGroupChunkSize pads group headers so links can be added in place by
// other writers; h5py creates groups with the same minimum.
const MinGroupChunkSize = 120

// nilHeaderSize is the encoded size of an empty message header.
const nilHeaderSize = 4

func chunkSizeWidth(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func widthFlag(width int) uint8 {
	switch width {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	return 0
}

// messagesSize is the encoded size of msgs in a version 2 header.
func messagesSize(w *binary.Writer, msgs []message.Serializable) (int, error) {
	total := 0
	for _, m := range msgs {
		n := m.SerializedSize(w)
		if n > 0xFFFF {
			return 0, fmt.Errorf("message 0x%04x is %d bytes, too large for a header", uint16(m.Type()), n)
		}
		total += nilHeaderSize + n
	}
	return total, nil
}

// Encode renders msgs as a single chunk version 2 header. The chunk is
// padded to at least minChunk bytes with a NIL message, or with a bare
// gap when fewer than four bytes remain.
func Encode(cfg binary.Config, msgs []message.Serializable, minChunk int) ([]byte, error) {
	sizer := binary.NewWriter(nil, cfg)
	used, err := messagesSize(sizer, msgs)
	if err != nil {
		return nil, err
	}
	chunk := max(used, minChunk)
	width := chunkSizeWidth(chunk)

	buf := binary.NewBuffer(6 + width + chunk + 4)
	w := binary.NewWriter(buf, cfg)

	if err := w.WriteBytes(signatureV2); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(2); err != nil {
		return nil, err
	}
	if err := w.WriteUint8(widthFlag(width)); err != nil {
		return nil, err
	}
	if err := w.WriteUintN(uint64(chunk), width); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if err := writeMessage(w, uint8(m.Type()), m.SerializedSize(w)); err != nil {
			return nil, err
		}
		start := w.Pos()
		if err := m.Serialize(w); err != nil {
			return nil, fmt.Errorf("message 0x%04x: %w", uint16(m.Type()), err)
		}
		if got, want := int(w.Pos()-start), m.SerializedSize(w); got != want {
			return nil, fmt.Errorf("message 0x%04x: wrote %d bytes, sized %d", uint16(m.Type()), got, want)
		}
	}
	if gap := chunk - used; gap >= nilHeaderSize {
		if err := writeMessage(w, uint8(message.TypeNIL), gap-nilHeaderSize); err != nil {
			return nil, err
		}
		if err := w.WriteZeros(gap - nilHeaderSize); err != nil {
			return nil, err
		}
	} else if err := w.WriteZeros(gap); err != nil {
		return nil, err
	}

	if err := w.WriteUint32(binary.Lookup3Checksum(buf.Bytes())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMessage(w *binary.Writer, typ uint8, size int) error {
	if err := w.WriteUint8(typ); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(size)); err != nil {
		return err
	}
	return w.WriteUint8(0)
}

// Size is the encoded size of a header Encode would produce.
func Size(cfg binary.Config, msgs []message.Serializable, minChunk int) (int, error) {
	used, err := messagesSize(binary.NewWriter(nil, cfg), msgs)
	if err != nil {
		return 0, err
	}
	chunk := max(used, minChunk)
	return 6 + chunkSizeWidth(chunk) + chunk + 4, nil
}

// GroupMessages lists the messages of a compact new-style group.
func GroupMessages(links []*message.Link) []message.Serializable {
	msgs := make([]message.Serializable, 0, len(links)+2)
	msgs = append(msgs, message.NewLinkInfo(), &message.GroupInfo{})
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// DatasetMessages lists the messages of a dataset header. pipeline may be
// nil for unfiltered data.
func DatasetMessages(space *message.Dataspace, dtype *message.Datatype, fill *message.FillValue,
	layout *message.DataLayout, pipeline *message.FilterPipeline) []message.Serializable {
	msgs := []message.Serializable{space, dtype, fill}
	if pipeline != nil && len(pipeline.Filters) > 0 {
		msgs = append(msgs, pipeline)
	}
	return append(msgs, layout)
}
