package gr2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/CyberDeco/MacPak-sub002/bitio"
	"github.com/CyberDeco/MacPak-sub002/log"
)

const magicSize = 32

// Options configures parsing.
type Options struct {
	// Logger overrides the default stdout logger.
	Logger log.Logger
}

// File is a fully parsed mesh container: header, section table, every
// section decompressed, and the root section's type table.
type File struct {
	Magic    Magic
	Header   Header
	Sections []*Section
	Types    *TypeCache
	Endian   Endian
	Pointer  PointerSize

	logger *log.Helper
}

// Parse decodes a mesh container from data.
func Parse(data []byte, opts *Options) (*File, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	f := &File{logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))}

	if len(data) < magicSize {
		return nil, fmt.Errorf("%w: file shorter than magic block", ErrTruncated)
	}
	copy(f.Magic.Signature[:], data[0:16])
	f.Magic.HeadersSize = binary.LittleEndian.Uint32(data[16:20])
	f.Magic.HeaderFormat = binary.LittleEndian.Uint32(data[20:24])
	copy(f.Magic.Reserved[:], data[24:32])

	endian, ptrSize, err := f.Magic.endianPointer()
	if err != nil {
		return nil, err
	}
	if endian == BigEndian {
		return nil, ErrUnsupportedEndian
	}
	f.Endian = endian
	f.Pointer = ptrSize

	if err := f.parseHeader(data); err != nil {
		return nil, err
	}
	if err := f.parseSections(data); err != nil {
		return nil, err
	}
	if err := f.decompressSections(); err != nil {
		return nil, err
	}
	if err := f.parseRootTypeTable(); err != nil {
		return nil, err
	}
	f.logger.Infof("parsed mesh container: version=%d sections=%d", f.Header.Version, len(f.Sections))
	return f, nil
}

func (f *File) parseHeader(data []byte) error {
	const headerStart = magicSize
	if len(data) < headerStart+8 {
		return fmt.Errorf("%w: header truncated", ErrTruncated)
	}
	r := bytes.NewReader(data[headerStart:])

	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return fmt.Errorf("%w: version: %v", ErrTruncated, err)
	}
	if h.Version != 6 && h.Version != 7 {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, h.Version)
	}
	fields := []*uint32{&h.FileSize, &h.CRC, &h.SectionsOffset, &h.NumSections}
	for _, p := range fields {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return fmt.Errorf("%w: header field: %v", ErrTruncated, err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &h.RootType.Section); err != nil {
		return fmt.Errorf("%w: root type section: %v", ErrTruncated, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.RootType.Offset); err != nil {
		return fmt.Errorf("%w: root type offset: %v", ErrTruncated, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.RootNode.Section); err != nil {
		return fmt.Errorf("%w: root node section: %v", ErrTruncated, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.RootNode.Offset); err != nil {
		return fmt.Errorf("%w: root node offset: %v", ErrTruncated, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Tag); err != nil {
		return fmt.Errorf("%w: tag: %v", ErrTruncated, err)
	}
	for i := range h.ExtraTags {
		if err := binary.Read(r, binary.LittleEndian, &h.ExtraTags[i]); err != nil {
			return fmt.Errorf("%w: extra tag %d: %v", ErrTruncated, i, err)
		}
	}
	if h.Version == 7 {
		if err := binary.Read(r, binary.LittleEndian, &h.StringTableCRC); err != nil {
			return fmt.Errorf("%w: string table crc: %v", ErrTruncated, err)
		}
		h.HasStringTableCRC = true
		// 12 reserved bytes.
		reserved := make([]byte, 12)
		if _, err := r.Read(reserved); err != nil {
			return fmt.Errorf("%w: header reserved: %v", ErrTruncated, err)
		}
	}
	f.Header = h
	return nil
}

// headerSize is the byte count parseHeader consumes for this version,
// which is also where the writer paths place the section table.
func (f *File) headerSize() int {
	if f.Header.Version == 7 {
		return 72
	}
	return 56
}

func (f *File) parseSections(data []byte) error {
	start := magicSize + int(f.Header.SectionsOffset)
	if start < 0 || start > len(data) {
		return fmt.Errorf("%w: section table offset", ErrTruncated)
	}
	r := bytes.NewReader(data[start:])
	for i := uint32(0); i < f.Header.NumSections; i++ {
		s, err := parseSectionHeader(r)
		if err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
		f.Sections = append(f.Sections, s)
	}

	for i, s := range f.Sections {
		if s.CompressedSize == 0 {
			continue
		}
		end := int(s.OffsetInFile) + int(s.CompressedSize)
		if end > len(data) {
			return fmt.Errorf("%w: section %d payload", ErrTruncated, i)
		}
		s.data = data[s.OffsetInFile:end]
	}

	for i, s := range f.Sections {
		if s.NumRelocations == 0 {
			continue
		}
		relStart := int(s.RelocationsOffset)
		relEnd := relStart + int(s.NumRelocations)*relocationSize
		if relEnd > len(data) {
			return fmt.Errorf("%w: section %d relocation table", ErrTruncated, i)
		}
		if err := validateRelocations(data[relStart:relEnd], f.Sections); err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
		s.relocRaw = data[relStart:relEnd]
	}
	return nil
}

func parseSectionHeader(r *bytes.Reader) (*Section, error) {
	var compressionRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &compressionRaw); err != nil {
		return nil, fmt.Errorf("%w: compression: %v", ErrTruncated, err)
	}
	s := &Section{Compression: Compression(compressionRaw)}
	fields := []*uint32{
		&s.OffsetInFile, &s.CompressedSize, &s.UncompressedSize, &s.Alignment,
		&s.First16Bit, &s.First8Bit, &s.RelocationsOffset, &s.NumRelocations,
		&s.MixedMarshallingOffset, &s.NumMixedMarshalling,
	}
	for _, p := range fields {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("%w: section field: %v", ErrTruncated, err)
		}
	}
	return s, nil
}

// validateRelocations checks every relocation target resolves within
// file bounds; a target outside its section is a fatal parse error.
func validateRelocations(buf []byte, sections []*Section) error {
	r := bytes.NewReader(buf)
	for r.Len() > 0 {
		var rel Relocation
		if err := binary.Read(r, binary.LittleEndian, &rel.OffsetInSection); err != nil {
			return fmt.Errorf("%w: relocation: %v", ErrTruncated, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rel.TargetSection); err != nil {
			return fmt.Errorf("%w: relocation: %v", ErrTruncated, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rel.TargetOffset); err != nil {
			return fmt.Errorf("%w: relocation: %v", ErrTruncated, err)
		}
		if int(rel.TargetSection) >= len(sections) {
			return ErrRelocationOutOfRange
		}
		target := sections[rel.TargetSection]
		if rel.TargetOffset > target.UncompressedSize {
			return ErrRelocationOutOfRange
		}
	}
	return nil
}

// decompressSections decompresses every section's raw payload into its
// own buffer.
func (f *File) decompressSections() error {
	for i, s := range f.Sections {
		if err := decompressSection(i, s); err != nil {
			return err
		}
	}
	return nil
}

func decompressSection(i int, s *Section) error {
	if s.CompressedSize == 0 {
		s.data = nil
		return nil
	}
	if s.CompressedSize == s.UncompressedSize {
		return nil // already raw (s.data sliced in parseSections)
	}
	var out []byte
	var err error
	switch s.Compression {
	case CompressionNone:
		out = append([]byte(nil), s.data...)
	case CompressionBitKnit:
		out, err = decodeRangeCodecSection(s.data, int(s.UncompressedSize), s.First16Bit, s.First8Bit)
	case CompressionOodle0, CompressionOodle1:
		return fmt.Errorf("%w: oodle compression (section %d)", ErrUnsupportedFeature, i)
	default:
		return fmt.Errorf("%w: compression method %d (section %d)", ErrUnsupportedFeature, s.Compression, i)
	}
	if err != nil {
		return fmt.Errorf("decompress section %d: %w", i, err)
	}
	s.data = out
	return nil
}

// decodeRangeCodecSection splits a BitKnit-compressed payload into three
// independently decoded sub-streams using the section's two stop
// points, then concatenates them. The exact byte-plane split the
// original encoder uses is not recoverable from the header alone, so
// this splits the declared uncompressed size evenly across the three
// sub-streams. This package's writer emits only uncompressed sections,
// so it never produces a range-coded section.
func decodeRangeCodecSection(compressed []byte, uncompressedSize int, stop0, stop1 uint32) ([]byte, error) {
	if int(stop1) > len(compressed) || stop0 > stop1 {
		return nil, fmt.Errorf("%w: stop points out of range", ErrTruncated)
	}
	segments := [][]byte{compressed[:stop0], compressed[stop0:stop1], compressed[stop1:]}
	sizes := splitEvenly(uncompressedSize, len(segments))

	out := make([]byte, 0, uncompressedSize)
	for i, seg := range segments {
		dec := bitio.NewRangeDecoder(seg)
		part, err := dec.Decode(sizes[i])
		if err != nil {
			return nil, fmt.Errorf("sub-stream %d: %w", i, err)
		}
		out = append(out, part...)
	}
	return out, nil
}

func splitEvenly(total, parts int) []int {
	out := make([]int, parts)
	base := total / parts
	rem := total % parts
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}

func (f *File) section(idx uint32) (*Section, error) {
	if int(idx) >= len(f.Sections) {
		return nil, ErrSectionOutOfRange
	}
	return f.Sections[idx], nil
}

// parseRootTypeTable decodes the type table that starts at the root
// type's section reference.
func (f *File) parseRootTypeTable() error {
	s, err := f.section(f.Header.RootType.Section)
	if err != nil {
		return fmt.Errorf("root type: %w", err)
	}
	cache, err := parseTypeTable(s.data, int(f.Header.RootType.Offset))
	if err != nil {
		return fmt.Errorf("root type table: %w", err)
	}
	f.Types = cache
	return nil
}

// compressSection compresses raw bytes for method, used by the writer.
func compressSection(method Compression, data []byte) ([]byte, error) {
	switch method {
	case CompressionNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: writing compression method %d", ErrUnsupportedFeature, method)
	}
}
