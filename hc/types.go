// Package hc implements the hierarchical binary container codec: the
// LSF-equivalent tree-structured data model and its three encodings
// (binary v2/v3, XML, JSON).
package hc

import (
	"fmt"

	"github.com/google/uuid"
)

// Format selects the on-disk binary node/attribute record shape.
type Format int

const (
	// FormatV2 uses 12-byte node/attribute records with an owning-node
	// index on each attribute.
	FormatV2 Format = iota
	// FormatV3 uses 16-byte records with sibling/attribute chains.
	FormatV3
)

// AttrType is the LSF attribute type tag.
type AttrType uint8

// Attribute type tags, matching the on-disk type_info low 6 bits.
const (
	TypeNone AttrType = iota
	TypeByte
	TypeShort
	TypeUShort
	TypeInt
	TypeUInt
	TypeFloat
	TypeDouble
	TypeIVec2
	TypeIVec3
	TypeIVec4
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat2
	TypeMat3
	TypeMat3x4
	TypeMat4x3
	TypeMat4
	TypeBool
	TypeString
	TypePath
	TypeFixedString
	TypeLSString
	TypeULongLong
	TypeScratchBuffer
	TypeOldInt64
	TypeInt8
	TypeTranslatedString
	TypeWString
	TypeLSWString
	TypeUUID
	TypeInt64
	TypeTranslatedFSString
)

// fixedSizes gives the implicit on-disk byte length for scalar/vector/
// matrix types whose size doesn't need an explicit length; string and
// buffer types instead carry an explicit length alongside the value.
var fixedSizes = map[AttrType]int{
	TypeByte:    1,
	TypeShort:   2,
	TypeUShort:  2,
	TypeInt:     4,
	TypeUInt:    4,
	TypeFloat:   4,
	TypeDouble:  8,
	TypeIVec2:   8,
	TypeIVec3:   12,
	TypeIVec4:   16,
	TypeVec2:    8,
	TypeVec3:    12,
	TypeVec4:    16,
	TypeMat2:    16,
	TypeMat3:    36,
	TypeMat3x4:  48,
	TypeMat4x3:  48,
	TypeMat4:    64,
	TypeBool:    1,
	TypeULongLong: 8,
	TypeOldInt64:  8,
	TypeInt8:     1,
	TypeUUID:     16,
	TypeInt64:    8,
}

// IsFixedSize reports whether t's value length is implicit.
func IsFixedSize(t AttrType) bool {
	_, ok := fixedSizes[t]
	return ok
}

// TranslatedString is a stable handle plus a monotonically increasing
// version; the displayed text is fetched elsewhere by the handle. Text
// is only present when the source encoding carried it inline (XML may
// omit it).
type TranslatedString struct {
	Handle  string
	Version uint16
	Text    string
	HasText bool
}

// Value holds a decoded attribute payload. Exactly one of the typed
// fields is meaningful, selected by Type.
type Value struct {
	Type   AttrType
	Bool   bool
	Int    int64
	UInt   uint64
	Float  float64
	Vec    []float32 // Vec2/3/4
	IVec   []int32
	Mat    [][]float32 // row-major, rows x cols per Type
	Str    string      // String/Path/FixedString/LSString/WString/LSWString
	Buf    []byte      // ScratchBuffer
	UUID   uuid.UUID
	TS     TranslatedString
}

// Attribute is a named, typed value on a Node.
type Attribute struct {
	ID    string
	Value Value
}

// Node is a named element with attributes and children.
type Node struct {
	Name       string
	Key        string
	HasKey     bool
	Parent     *Node
	Attributes []*Attribute
	Children   []*Node
}

// AddChild appends a child node, preserving document order, and wires
// the parent back-reference.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// SetAttribute sets (or adds) an attribute by id, preserving the
// position of an existing attribute of the same id.
func (n *Node) SetAttribute(id string, v Value) {
	for _, a := range n.Attributes {
		if a.ID == id {
			a.Value = v
			return
		}
	}
	n.Attributes = append(n.Attributes, &Attribute{ID: id, Value: v})
}

// Attribute returns the named attribute, or nil.
func (n *Node) Attribute(id string) *Attribute {
	for _, a := range n.Attributes {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// DeleteAttribute removes the named attribute if present.
func (n *Node) DeleteAttribute(id string) bool {
	for i, a := range n.Attributes {
		if a.ID == id {
			n.Attributes = append(n.Attributes[:i], n.Attributes[i+1:]...)
			return true
		}
	}
	return false
}

// Region is a named root node.
type Region struct {
	Name string
	Root *Node
}

// Document is an engine-versioned ordered sequence of regions.
type Document struct {
	EngineVersion uint64
	Format        Format
	Regions       []*Region

	// Meta holds the "lslib_meta" sibling-annotation side channel. The
	// XML codec carries an entry as a reserved <lslib_meta> element
	// inside its node, the JSON codec as a reserved "__meta" object
	// key; the binary forms have no channel for it.
	Meta map[*Node]string
}

// NewDocument returns an empty document at the given format.
func NewDocument(engineVersion uint64, format Format) *Document {
	return &Document{EngineVersion: engineVersion, Format: format, Meta: map[*Node]string{}}
}

// Region looks up a region by name.
func (d *Document) Region(name string) *Region {
	for _, r := range d.Regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// AddRegion appends a new region rooted at root.
func (d *Document) AddRegion(name string, root *Node) *Region {
	r := &Region{Name: name, Root: root}
	d.Regions = append(d.Regions, r)
	return r
}

func (t AttrType) String() string {
	names := [...]string{
		"None", "Byte", "Short", "UShort", "Int", "UInt", "Float", "Double",
		"IVec2", "IVec3", "IVec4", "Vec2", "Vec3", "Vec4", "Mat2", "Mat3",
		"Mat3x4", "Mat4x3", "Mat4", "Bool", "String", "Path", "FixedString",
		"LSString", "ULongLong", "ScratchBuffer", "OldInt64", "Int8",
		"TranslatedString", "WString", "LSWString", "UUID", "Int64",
		"TranslatedFSString",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("AttrType(%d)", t)
}
