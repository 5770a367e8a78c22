package gr2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MemberKind is how a field's on-disk bytes should be interpreted.
// Numeric values match the upstream Granny2 MemberType enumeration
// this format derives from, so a type table produced by other tooling
// in the format family decodes without translation.
type MemberKind uint32

const (
	KindInline            MemberKind = 0
	KindReference         MemberKind = 1
	KindReferenceToArray  MemberKind = 2
	KindArrayOfReferences MemberKind = 3
	KindVariantReference  MemberKind = 4
	KindString            MemberKind = 7
	KindTransform         MemberKind = 8
	KindUInt32            MemberKind = 10
	KindFloat32           MemberKind = 11
	KindUInt8             MemberKind = 12
	KindUInt16            MemberKind = 13

	// KindByteArray is not part of the upstream enumeration: this
	// package's own type-table writer emits this value for a mesh's raw
	// vertex and index byte streams, and readField below understands it
	// as "array-of-bytes reference", read the same way as
	// KindReferenceToArray but without going through the type cache.
	KindByteArray MemberKind = 100

	// KindPointerArray is also invented by this package: a count
	// followed by a pointer to a contiguous array of per-element
	// pointers (rather than KindReferenceToArray's contiguous inline
	// array of fixed-stride structs). The minimal writer uses this
	// shape for every variable-length collection it emits, since
	// element sizes vary with nested string/array content.
	KindPointerArray MemberKind = 101
)

// primTagU32 is a reserved FieldDefinition.ElementType value meaning "the
// pointer array's elements are bare uint32 values", not structs looked
// up from the type cache.
const primTagU32 = 0xFFFFFFFD

func (k MemberKind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindReference:
		return "reference"
	case KindReferenceToArray:
		return "reference_to_array"
	case KindArrayOfReferences:
		return "array_of_references"
	case KindVariantReference:
		return "variant_reference"
	case KindString:
		return "string"
	case KindTransform:
		return "transform"
	case KindUInt32, KindFloat32, KindUInt8, KindUInt16:
		return "primitive"
	case KindByteArray:
		return "byte_array"
	case KindPointerArray:
		return "pointer_array"
	default:
		return "unknown"
	}
}

func (k MemberKind) isReference() bool {
	switch k {
	case KindReference, KindReferenceToArray, KindArrayOfReferences, KindVariantReference, KindString, KindByteArray, KindPointerArray:
		return true
	default:
		return false
	}
}

// FieldDefinition describes one field of a TypeDefinition: name,
// member-kind, offset, optional element type tag, optional fixed array
// length.
type FieldDefinition struct {
	Name        string
	Kind        MemberKind
	Offset      uint32
	ElementType uint32 // valid when HasElementType
	HasElementType bool
	ArrayLength uint32 // valid when HasArrayLength (fixed-size arrays)
	HasArrayLength bool
}

// TypeDefinition is one entry of the root section's type table: a tag,
// a list of field definitions, and a size.
type TypeDefinition struct {
	Tag    uint32
	Size   uint32
	Fields []FieldDefinition
}

// Field looks up a field by name.
func (t *TypeDefinition) Field(name string) (*FieldDefinition, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// TypeCache indexes every TypeDefinition in a file by its tag.
type TypeCache struct {
	byTag   map[uint32]*TypeDefinition
	rootTag uint32
	hasRoot bool
}

func newTypeCache() *TypeCache {
	return &TypeCache{byTag: map[uint32]*TypeDefinition{}}
}

// Get returns the type definition for tag, or nil.
func (c *TypeCache) Get(tag uint32) *TypeDefinition {
	return c.byTag[tag]
}

func (c *TypeCache) insert(t *TypeDefinition) {
	if !c.hasRoot {
		// The first record of the root type's table describes the root
		// node's own struct type.
		c.rootTag = t.Tag
		c.hasRoot = true
	}
	c.byTag[t.Tag] = t
}

// RootTag returns the type tag of the header's root node struct.
func (c *TypeCache) RootTag() (uint32, bool) {
	return c.rootTag, c.hasRoot
}

// Len returns the number of type definitions in the table.
func (c *TypeCache) Len() int {
	return len(c.byTag)
}

// typeTableSentinel marks the end of the type table. This reader
// follows a length-prefixed record layout, terminated by this sentinel
// tag, which is the encoding this package's own writer emits (see
// encodeTypeTable).
const typeTableSentinel = 0xFFFFFFFF

// parseTypeTable decodes the root section's type definition table,
// starting at offset, using the per-record layout this package commits
// to (see typeTableSentinel doc comment):
//
//	repeat until tag == typeTableSentinel:
//	  tag            u32
//	  size           u32
//	  field_count    u32
//	  fields[field_count]:
//	    name_len       u16
//	    name           name_len bytes, UTF-8
//	    kind           u32
//	    offset         u32
//	    has_elem_type  u8
//	    elem_type      u32 (present iff has_elem_type != 0)
//	    has_array_len  u8
//	    array_len      u32 (present iff has_array_len != 0)
func parseTypeTable(data []byte, offset int) (*TypeCache, error) {
	cache := newTypeCache()
	r := bytes.NewReader(data[offset:])
	for {
		var tag uint32
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return nil, fmt.Errorf("%w: type table: %v", ErrTruncated, err)
		}
		if tag == typeTableSentinel {
			return cache, nil
		}
		t := &TypeDefinition{Tag: tag}
		if err := binary.Read(r, binary.LittleEndian, &t.Size); err != nil {
			return nil, fmt.Errorf("%w: type %d size: %v", ErrTruncated, tag, err)
		}
		var fieldCount uint32
		if err := binary.Read(r, binary.LittleEndian, &fieldCount); err != nil {
			return nil, fmt.Errorf("%w: type %d field count: %v", ErrTruncated, tag, err)
		}
		for i := uint32(0); i < fieldCount; i++ {
			f, err := parseFieldDefinition(r)
			if err != nil {
				return nil, fmt.Errorf("type %d field %d: %w", tag, i, err)
			}
			t.Fields = append(t.Fields, *f)
		}
		cache.insert(t)
	}
}

func parseFieldDefinition(r *bytes.Reader) (*FieldDefinition, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("%w: name length: %v", ErrTruncated, err)
	}
	nameBuf := make([]byte, nameLen)
	if _, err := r.Read(nameBuf); err != nil {
		return nil, fmt.Errorf("%w: name bytes: %v", ErrTruncated, err)
	}
	f := &FieldDefinition{Name: string(nameBuf)}

	var kind uint32
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return nil, fmt.Errorf("%w: kind: %v", ErrTruncated, err)
	}
	f.Kind = MemberKind(kind)
	if err := binary.Read(r, binary.LittleEndian, &f.Offset); err != nil {
		return nil, fmt.Errorf("%w: offset: %v", ErrTruncated, err)
	}

	var hasElem uint8
	if err := binary.Read(r, binary.LittleEndian, &hasElem); err != nil {
		return nil, fmt.Errorf("%w: has_elem_type: %v", ErrTruncated, err)
	}
	if hasElem != 0 {
		f.HasElementType = true
		if err := binary.Read(r, binary.LittleEndian, &f.ElementType); err != nil {
			return nil, fmt.Errorf("%w: elem_type: %v", ErrTruncated, err)
		}
	}

	var hasArr uint8
	if err := binary.Read(r, binary.LittleEndian, &hasArr); err != nil {
		return nil, fmt.Errorf("%w: has_array_len: %v", ErrTruncated, err)
	}
	if hasArr != 0 {
		f.HasArrayLength = true
		if err := binary.Read(r, binary.LittleEndian, &f.ArrayLength); err != nil {
			return nil, fmt.Errorf("%w: array_len: %v", ErrTruncated, err)
		}
	}
	return f, nil
}

// encodeTypeTable is the inverse of parseTypeTable, used by the
// minimal writer.
func encodeTypeTable(types []*TypeDefinition) []byte {
	buf := &bytes.Buffer{}
	for _, t := range types {
		binary.Write(buf, binary.LittleEndian, t.Tag)
		binary.Write(buf, binary.LittleEndian, t.Size)
		binary.Write(buf, binary.LittleEndian, uint32(len(t.Fields)))
		for _, f := range t.Fields {
			binary.Write(buf, binary.LittleEndian, uint16(len(f.Name)))
			buf.WriteString(f.Name)
			binary.Write(buf, binary.LittleEndian, uint32(f.Kind))
			binary.Write(buf, binary.LittleEndian, f.Offset)
			if f.HasElementType {
				buf.WriteByte(1)
				binary.Write(buf, binary.LittleEndian, f.ElementType)
			} else {
				buf.WriteByte(0)
			}
			if f.HasArrayLength {
				buf.WriteByte(1)
				binary.Write(buf, binary.LittleEndian, f.ArrayLength)
			} else {
				buf.WriteByte(0)
			}
		}
	}
	binary.Write(buf, binary.LittleEndian, uint32(typeTableSentinel))
	return buf.Bytes()
}
