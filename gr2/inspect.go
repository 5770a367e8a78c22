package gr2

import (
	"encoding/binary"
	"fmt"
)

// SectionInfo is one section-table row of an Info summary.
type SectionInfo struct {
	Compression      Compression
	CompressedSize   uint32
	UncompressedSize uint32
	NumRelocations   uint32
}

// Info is a quick-preview summary of a mesh container: header fields,
// the section table, and top-level collection counts read off the root
// struct without walking the full reflective tree.
type Info struct {
	Version      uint32
	Tag          uint32
	Endian       Endian
	Pointer      PointerSize
	Sections     []SectionInfo
	NumTypes     int
	NumSkeletons int
	NumMeshes    int
	NumModels    int
}

// Inspect summarizes a mesh container without decompressing every
// section: only the sections holding the root type table and the root
// node are inflated. Collection counts come from the count word each
// array-shaped root field stores inline, so no cross-section pointers
// are chased; a root type whose fields don't include the expected
// collections yields zero counts rather than an error.
func Inspect(data []byte, opts *Options) (*Info, error) {
	if opts == nil {
		opts = &Options{}
	}
	f := &File{}

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

	info := &Info{
		Version: f.Header.Version,
		Tag:     f.Header.Tag,
		Endian:  f.Endian,
		Pointer: f.Pointer,
	}
	for _, s := range f.Sections {
		info.Sections = append(info.Sections, SectionInfo{
			Compression:      s.Compression,
			CompressedSize:   s.CompressedSize,
			UncompressedSize: s.UncompressedSize,
			NumRelocations:   s.NumRelocations,
		})
	}

	for _, idx := range []uint32{f.Header.RootType.Section, f.Header.RootNode.Section} {
		s, err := f.section(idx)
		if err != nil {
			return nil, fmt.Errorf("root section: %w", err)
		}
		if err := decompressSection(int(idx), s); err != nil {
			return nil, err
		}
	}
	if err := f.parseRootTypeTable(); err != nil {
		return nil, err
	}
	info.NumTypes = f.Types.Len()

	rootTag, ok := f.Types.RootTag()
	if !ok {
		return info, nil
	}
	rootType := f.Types.Get(rootTag)
	rootSec, err := f.section(f.Header.RootNode.Section)
	if err != nil {
		return nil, fmt.Errorf("root node: %w", err)
	}
	count := func(fieldName string) int {
		field, ok := rootType.Field(fieldName)
		if !ok {
			return 0
		}
		switch field.Kind {
		case KindReferenceToArray, KindPointerArray, KindByteArray:
		default:
			return 0
		}
		off := f.Header.RootNode.Offset + field.Offset
		if boundsCheck(rootSec.data, off, 4) != nil {
			return 0
		}
		return int(binary.LittleEndian.Uint32(rootSec.data[off:]))
	}
	info.NumSkeletons = count("Skeletons")
	info.NumMeshes = count("Meshes")
	info.NumModels = count("Models")
	return info, nil
}
