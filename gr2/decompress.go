package gr2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// mixedMarshallingEntrySize is the on-disk width of one
// mixed-marshalling table row, preserved verbatim on rewrite.
const mixedMarshallingEntrySize = 16

// Decompress parses a mesh container and re-emits it with every
// section stored raw: compressed and uncompressed sizes equal, method
// none, stop points cleared. Relocation and mixed-marshalling tables
// carry over unchanged, so the same reader reopens the output and
// exports an identical neutral model.
func Decompress(data []byte, opts *Options) ([]byte, error) {
	f, err := Parse(data, opts)
	if err != nil {
		return nil, err
	}

	mixed := make([][]byte, len(f.Sections))
	for i, s := range f.Sections {
		if s.NumMixedMarshalling == 0 {
			continue
		}
		start := int(s.MixedMarshallingOffset)
		end := start + int(s.NumMixedMarshalling)*mixedMarshallingEntrySize
		if start < 0 || end > len(data) {
			return nil, fmt.Errorf("%w: section %d mixed-marshalling table", ErrTruncated, i)
		}
		mixed[i] = data[start:end]
	}

	hdrSize := f.headerSize()
	tableStart := magicSize + hdrSize
	pos := tableStart + len(f.Sections)*sectionHeaderSize

	relocOffsets := make([]int, len(f.Sections))
	mixedOffsets := make([]int, len(f.Sections))
	dataOffsets := make([]int, len(f.Sections))
	for i, s := range f.Sections {
		relocOffsets[i] = pos
		pos += len(s.relocRaw)
		mixedOffsets[i] = pos
		pos += len(mixed[i])
		if s.Alignment > 1 {
			pos = align(pos, int(s.Alignment))
		}
		dataOffsets[i] = pos
		pos += len(s.data)
	}

	out := &bytes.Buffer{}
	out.Grow(pos)
	out.Write(f.Magic.Signature[:])
	binary.Write(out, binary.LittleEndian, f.Magic.HeadersSize)
	binary.Write(out, binary.LittleEndian, f.Magic.HeaderFormat)
	out.Write(f.Magic.Reserved[:])

	binary.Write(out, binary.LittleEndian, f.Header.Version)
	binary.Write(out, binary.LittleEndian, uint32(pos)) // file size
	binary.Write(out, binary.LittleEndian, uint32(0))   // crc, unchecked
	binary.Write(out, binary.LittleEndian, uint32(hdrSize))
	binary.Write(out, binary.LittleEndian, uint32(len(f.Sections)))
	binary.Write(out, binary.LittleEndian, f.Header.RootType.Section)
	binary.Write(out, binary.LittleEndian, f.Header.RootType.Offset)
	binary.Write(out, binary.LittleEndian, f.Header.RootNode.Section)
	binary.Write(out, binary.LittleEndian, f.Header.RootNode.Offset)
	binary.Write(out, binary.LittleEndian, f.Header.Tag)
	for _, t := range f.Header.ExtraTags {
		binary.Write(out, binary.LittleEndian, t)
	}
	if f.Header.Version == 7 {
		binary.Write(out, binary.LittleEndian, uint32(0)) // string table crc
		out.Write(make([]byte, 12))                       // reserved
	}

	for i, s := range f.Sections {
		binary.Write(out, binary.LittleEndian, uint32(CompressionNone))
		binary.Write(out, binary.LittleEndian, uint32(dataOffsets[i]))
		binary.Write(out, binary.LittleEndian, uint32(len(s.data)))
		binary.Write(out, binary.LittleEndian, uint32(len(s.data)))
		binary.Write(out, binary.LittleEndian, s.Alignment)
		binary.Write(out, binary.LittleEndian, uint32(0)) // stop point 0
		binary.Write(out, binary.LittleEndian, uint32(0)) // stop point 1
		binary.Write(out, binary.LittleEndian, uint32(relocOffsets[i]))
		binary.Write(out, binary.LittleEndian, s.NumRelocations)
		binary.Write(out, binary.LittleEndian, uint32(mixedOffsets[i]))
		binary.Write(out, binary.LittleEndian, s.NumMixedMarshalling)
	}

	for i, s := range f.Sections {
		out.Write(s.relocRaw)
		out.Write(mixed[i])
		if s.Alignment > 1 {
			pad := align(out.Len(), int(s.Alignment)) - out.Len()
			out.Write(make([]byte, pad))
		}
		out.Write(s.data)
	}
	return out.Bytes(), nil
}

func align(n, to int) int {
	rem := n % to
	if rem == 0 {
		return n
	}
	return n + to - rem
}
