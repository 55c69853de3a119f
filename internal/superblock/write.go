package superblock

import (
	binpkg "github.com/robert-malhotra/tomoslice/internal/binary"
)

// New returns a version 3 superblock with 8 byte addresses and lengths.
// EOF and root addresses are filled in by the file writer.
func New() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Size is the encoded size of a version 2/3 superblock, checksum included.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}

// Encode renders the superblock as version 3. An unset extension address
// is written as undefined.
func (sb *Superblock) Encode() ([]byte, error) {
	buf := binpkg.NewBuffer(sb.Size())
	w := binpkg.NewWriter(buf, sb.Config())

	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = w.UndefinedOffset()
	}
	steps := []func() error{
		func() error { return w.WriteBytes(Signature) },
		func() error { return w.WriteUint8(3) },
		func() error { return w.WriteUint8(sb.OffsetSize) },
		func() error { return w.WriteUint8(sb.LengthSize) },
		func() error { return w.WriteUint8(uint8(sb.ConsistencyFlags)) },
		func() error { return w.WriteOffset(sb.BaseAddress) },
		func() error { return w.WriteOffset(ext) },
		func() error { return w.WriteOffset(sb.EOFAddress) },
		func() error { return w.WriteOffset(sb.RootGroupAddress) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	if err := w.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes the superblock at w's position and returns its size.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	raw, err := sb.Encode()
	if err != nil {
		return 0, err
	}
	if err := w.WriteBytes(raw); err != nil {
		return 0, err
	}
	return int64(len(raw)), nil
}
