// Package gr2 implements the mesh container codec: magic/header/
// section-table parsing, a reflective type system walker, and export
// to a neutral mesh model.
package gr2

import (
	"bytes"
	"errors"
)

// Endian is the byte order declared by the magic signature.
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

// PointerSize is the on-disk pointer width declared by the magic
// signature.
type PointerSize int

const (
	Pointer32 PointerSize = 4
	Pointer64 PointerSize = 8
)

// Known 16-byte magic signatures: one of four known signatures selects
// endianness x pointer-size. Byte values match the RAD Game Tools
// Granny2 container this format family is derived from.
var (
	sigLE32 = []byte{0x29, 0xDE, 0x6C, 0xC0, 0xBA, 0xA4, 0x53, 0x2B, 0x25, 0xF5, 0xB7, 0xA5, 0xF6, 0x66, 0xE2, 0xEE}
	sigLE64 = []byte{0xE5, 0x9B, 0x49, 0x5E, 0x6F, 0x63, 0x1F, 0x14, 0x1E, 0x13, 0xEB, 0xA9, 0x90, 0xBE, 0xED, 0xC4}
	sigBE32 = []byte{0x0E, 0x11, 0x95, 0xB5, 0x6A, 0xA5, 0xB5, 0x4B, 0xEB, 0x28, 0x28, 0x50, 0x25, 0x78, 0xB3, 0x04}
	sigBE64 = []byte{0x31, 0x95, 0xD4, 0xE3, 0x20, 0xDC, 0x4F, 0x62, 0xCC, 0x36, 0xD0, 0x3A, 0xB1, 0x82, 0xFF, 0x89}
)

// Known game tags (informational; not enforced).
const (
	TagDOS     = 0x80000037
	TagDOSEE   = 0x80000039
	TagDOS2BG3 = 0xE57F0039
)

// Magic is the fixed 32-byte block at offset 0.
type Magic struct {
	Signature   [16]byte
	HeadersSize uint32
	HeaderFormat uint32
	Reserved    [8]byte
}

func (m Magic) endianPointer() (Endian, PointerSize, error) {
	sig := m.Signature[:]
	switch {
	case bytes.Equal(sig, sigLE32):
		return LittleEndian, Pointer32, nil
	case bytes.Equal(sig, sigLE64):
		return LittleEndian, Pointer64, nil
	case bytes.Equal(sig, sigBE32):
		return BigEndian, Pointer32, nil
	case bytes.Equal(sig, sigBE64):
		return BigEndian, Pointer64, nil
	default:
		return 0, 0, ErrBadMagic
	}
}

// SectionRef is a (section, offset) pair used by the header to point at
// the root type and root node.
type SectionRef struct {
	Section uint32
	Offset  uint32
}

// Header is the fixed-size block following the magic (56 bytes for
// version 6, 72 for version 7, which adds the string-table CRC and 12
// reserved bytes). No other header bytes are read or written.
type Header struct {
	Version         uint32
	FileSize        uint32
	CRC             uint32
	SectionsOffset  uint32
	NumSections     uint32
	RootType        SectionRef
	RootNode        SectionRef
	Tag             uint32
	ExtraTags       [4]uint32
	StringTableCRC  uint32
	HasStringTableCRC bool
}

// Compression identifies a section's compression method.
type Compression uint32

const (
	CompressionNone    Compression = 0
	CompressionOodle0  Compression = 1
	CompressionOodle1  Compression = 2
	CompressionBitKnit Compression = 4
)

// Section is one section-table entry (44 bytes).
type Section struct {
	Compression             Compression
	OffsetInFile             uint32
	CompressedSize           uint32
	UncompressedSize         uint32
	Alignment                uint32
	First16Bit               uint32
	First8Bit                uint32
	RelocationsOffset        uint32
	NumRelocations           uint32
	MixedMarshallingOffset   uint32
	NumMixedMarshalling      uint32

	data       []byte       // decompressed payload, filled in by decompressSections
	relocRaw   []byte       // raw relocation table bytes, sliced from the original file
	relocCache []Relocation // lazily parsed from relocRaw by reader.relocationTable
}

const sectionHeaderSize = 44

// Relocation patches a pointer-like field once its target section is
// decompressed (12 bytes).
type Relocation struct {
	OffsetInSection uint32
	TargetSection   uint32
	TargetOffset    uint32
}

const relocationSize = 12

// Errors returned by this package.
var (
	ErrBadMagic            = errors.New("gr2: unrecognized magic signature")
	ErrUnsupportedVersion  = errors.New("gr2: unsupported header version")
	ErrUnsupportedEndian   = errors.New("gr2: big-endian mesh containers are not supported by this build")
	ErrSectionOutOfRange   = errors.New("gr2: section index out of range")
	ErrRelocationOutOfRange = errors.New("gr2: relocation target is outside its section")
	ErrTruncated           = errors.New("gr2: truncated section or table")
	ErrUnknownMemberKind   = errors.New("gr2: unknown member kind")
	ErrFieldNotFound       = errors.New("gr2: required field not found on type")
	ErrUnsupportedFeature  = errors.New("gr2: feature not implemented by this build")
)
