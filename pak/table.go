package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// entrySize is the on-disk width of one file-table record: a
// PathFieldSize path field, an 8-byte offset, two 4-byte sizes, three
// 1-byte fields (part index, method, flags), and a 4-byte CRC.
const entrySize = PathFieldSize + 8 + 4 + 4 + 1 + 1 + 1 + 4

func encodeEntry(buf *bytes.Buffer, e *Entry) error {
	if len(e.Path) > PathFieldSize {
		return fmt.Errorf("%w: %q", ErrPathTooLong, e.Path)
	}
	pathBuf := make([]byte, PathFieldSize)
	copy(pathBuf, e.Path)
	buf.Write(pathBuf)
	binary.Write(buf, binary.LittleEndian, e.Offset)
	binary.Write(buf, binary.LittleEndian, e.CompressedSize)
	binary.Write(buf, binary.LittleEndian, e.UncompressedSize)
	buf.WriteByte(e.PartIndex)
	buf.WriteByte(byte(e.Method))
	buf.WriteByte(e.Flags)
	binary.Write(buf, binary.LittleEndian, e.CRC)
	return nil
}

func decodeEntry(r *bytes.Reader) (*Entry, error) {
	pathBuf := make([]byte, PathFieldSize)
	if _, err := r.Read(pathBuf); err != nil {
		return nil, fmt.Errorf("pak: read entry path: %w", err)
	}
	e := &Entry{Path: string(trimNull(pathBuf))}
	if err := binary.Read(r, binary.LittleEndian, &e.Offset); err != nil {
		return nil, fmt.Errorf("pak: read entry offset: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.CompressedSize); err != nil {
		return nil, fmt.Errorf("pak: read entry compressed size: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.UncompressedSize); err != nil {
		return nil, fmt.Errorf("pak: read entry uncompressed size: %w", err)
	}
	partIdx, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("pak: read entry part index: %w", err)
	}
	e.PartIndex = partIdx
	method, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("pak: read entry method: %w", err)
	}
	e.Method = Method(method)
	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("pak: read entry flags: %w", err)
	}
	e.Flags = flags
	if err := binary.Read(r, binary.LittleEndian, &e.CRC); err != nil {
		return nil, fmt.Errorf("pak: read entry crc: %w", err)
	}
	return e, nil
}

func trimNull(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
