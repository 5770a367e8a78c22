package gr2

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Transform is Granny2's affine transform as stored on disk: flags,
// translation, rotation quaternion, and a 3x3 scale/shear matrix, read
// field by field. No 4x3 affine matrix is stored or read alongside it.
type Transform struct {
	Flags       uint32
	Translation [3]float32
	Rotation    [4]float32
	ScaleShear  [3][3]float32
}

// Value is a generically-decoded reflective value: either a primitive,
// an inline struct (Fields), an array (Elements), a string, or a
// transform. Export-time code navigates this tree by field name.
type Value struct {
	Kind       MemberKind
	U32        uint32
	F32        float32
	U8         uint8
	U16        uint16
	Str        string
	Bytes      []byte
	Fields     map[string]*Value
	Elements   []*Value
	Transform  *Transform
	Missing    bool // true when a reference's target could not be resolved
}

// Field looks up a named field on an inline-struct value.
func (v *Value) Field(name string) *Value {
	if v == nil || v.Fields == nil {
		return nil
	}
	return v.Fields[name]
}

// AsString returns v's decoded string, or "" if v isn't a string value.
func (v *Value) AsString() string {
	if v == nil {
		return ""
	}
	return v.Str
}

// AsU32 returns v's decoded unsigned integer, or 0 if v is nil. A type
// table that omits an expected field yields the zero value rather than
// a crash.
func (v *Value) AsU32() uint32 {
	if v == nil {
		return 0
	}
	return v.U32
}

// AsF32 returns v's decoded float, or 0 if v is nil.
func (v *Value) AsF32() float32 {
	if v == nil {
		return 0
	}
	return v.F32
}

// reader decodes reflective values against a parsed file's section set
// and type cache.
type reader struct {
	f *File
}

// readReference resolves the relocation recorded at (sectionIndex,
// offsetInSection) -- look up by the section's validated table -- and
// returns the target section and offset. A slot with no relocation entry
// is treated as a null reference (ok == false); its on-disk bytes are
// not inspected.
func (r *reader) readReference(sec *Section, secIdx, offsetInSection uint32) (*Section, uint32, bool, error) {
	rel, ok := r.relocationAt(secIdx, offsetInSection)
	if !ok {
		return nil, 0, false, nil
	}
	target, err := r.f.section(rel.TargetSection)
	if err != nil {
		return nil, 0, false, fmt.Errorf("%w: relocation at section %d offset %d", ErrRelocationOutOfRange, secIdx, offsetInSection)
	}
	return target, rel.TargetOffset, true, nil
}

// relocationAt scans the section's relocation table for an entry whose
// offset_in_section matches. Sections in this format carry few enough
// relocations (hundreds, not millions) that a linear scan per lookup is
// acceptable. Each section's relocation bytes are parsed on the first
// lookup rather than during the initial section pass (parse.go only
// validates bounds) and cached on the section by relocationTable.
func (r *reader) relocationAt(secIdx, offsetInSection uint32) (Relocation, bool) {
	sec, err := r.f.section(secIdx)
	if err != nil || sec.NumRelocations == 0 {
		return Relocation{}, false
	}
	table := r.relocationTable(sec)
	for _, rel := range table {
		if rel.OffsetInSection == offsetInSection {
			return rel, true
		}
	}
	return Relocation{}, false
}

func (r *reader) relocationTable(sec *Section) []Relocation {
	if sec.relocCache != nil {
		return sec.relocCache
	}
	// The relocation table lives at a fixed file offset outside any
	// section's compressed payload, so it is read from the original
	// file bytes captured at parse time (parse.go keeps s.relocRaw for
	// exactly this purpose).
	out := make([]Relocation, 0, sec.NumRelocations)
	buf := sec.relocRaw
	for i := 0; i < len(buf); i += relocationSize {
		out = append(out, Relocation{
			OffsetInSection: binary.LittleEndian.Uint32(buf[i:]),
			TargetSection:   binary.LittleEndian.Uint32(buf[i+4:]),
			TargetOffset:    binary.LittleEndian.Uint32(buf[i+8:]),
		})
	}
	sec.relocCache = out
	return out
}

// readStruct decodes the inline struct of type typeTag located at
// offset within sec's decompressed payload.
func (r *reader) readStruct(sec *Section, secIdx uint32, offset uint32, typeTag uint32) (*Value, error) {
	t := r.f.Types.Get(typeTag)
	if t == nil {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownMemberKind, typeTag)
	}
	v := &Value{Kind: KindInline, Fields: map[string]*Value{}}
	for _, field := range t.Fields {
		fieldOffset := offset + field.Offset
		fv, err := r.readField(sec, secIdx, fieldOffset, field)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		v.Fields[field.Name] = fv
	}
	return v, nil
}

func (r *reader) readField(sec *Section, secIdx uint32, fieldOffset uint32, field FieldDefinition) (*Value, error) {
	buf := sec.data
	ptrSize := uint32(r.f.Pointer)

	switch field.Kind {
	case KindUInt32:
		if err := boundsCheck(buf, fieldOffset, 4); err != nil {
			return nil, err
		}
		return &Value{Kind: field.Kind, U32: binary.LittleEndian.Uint32(buf[fieldOffset:])}, nil
	case KindFloat32:
		if err := boundsCheck(buf, fieldOffset, 4); err != nil {
			return nil, err
		}
		bits := binary.LittleEndian.Uint32(buf[fieldOffset:])
		return &Value{Kind: field.Kind, F32: math.Float32frombits(bits)}, nil
	case KindUInt8:
		if err := boundsCheck(buf, fieldOffset, 1); err != nil {
			return nil, err
		}
		return &Value{Kind: field.Kind, U8: buf[fieldOffset]}, nil
	case KindUInt16:
		if err := boundsCheck(buf, fieldOffset, 2); err != nil {
			return nil, err
		}
		return &Value{Kind: field.Kind, U16: binary.LittleEndian.Uint16(buf[fieldOffset:])}, nil
	case KindTransform:
		return r.readTransform(buf, fieldOffset)
	case KindInline:
		if !field.HasElementType {
			return nil, fmt.Errorf("%w: inline field %q missing element type", ErrUnknownMemberKind, field.Name)
		}
		return r.readStruct(sec, secIdx, fieldOffset, field.ElementType)
	case KindString:
		target, targetOff, ok, err := r.readReference(sec, secIdx, fieldOffset)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Value{Kind: field.Kind, Missing: true}, nil
		}
		s, err := readCString(target.data, targetOff)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: field.Kind, Str: s}, nil
	case KindReference:
		if !field.HasElementType {
			return nil, fmt.Errorf("%w: reference field %q missing element type", ErrUnknownMemberKind, field.Name)
		}
		target, targetOff, ok, err := r.readReference(sec, secIdx, fieldOffset)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Value{Kind: field.Kind, Missing: true}, nil
		}
		return r.readStruct(target, r.indexOf(target), targetOff, field.ElementType)
	case KindReferenceToArray:
		if !field.HasElementType {
			return nil, fmt.Errorf("%w: array field %q missing element type", ErrUnknownMemberKind, field.Name)
		}
		if err := boundsCheck(buf, fieldOffset, 4); err != nil {
			return nil, err
		}
		count := binary.LittleEndian.Uint32(buf[fieldOffset:])
		target, targetOff, ok, err := r.readReference(sec, secIdx, fieldOffset+4)
		if err != nil {
			return nil, err
		}
		v := &Value{Kind: field.Kind}
		if !ok || count == 0 {
			return v, nil
		}
		elemType := r.f.Types.Get(field.ElementType)
		if elemType == nil {
			return nil, fmt.Errorf("%w: tag %d", ErrUnknownMemberKind, field.ElementType)
		}
		for i := uint32(0); i < count; i++ {
			el, err := r.readStruct(target, r.indexOf(target), targetOff+i*elemType.Size, field.ElementType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			v.Elements = append(v.Elements, el)
		}
		return v, nil
	case KindArrayOfReferences:
		if !field.HasArrayLength {
			return nil, fmt.Errorf("%w: array-of-references field %q missing length", ErrUnknownMemberKind, field.Name)
		}
		v := &Value{Kind: field.Kind}
		for i := uint32(0); i < field.ArrayLength; i++ {
			target, targetOff, ok, err := r.readReference(sec, secIdx, fieldOffset+i*ptrSize)
			if err != nil {
				return nil, err
			}
			if !ok {
				v.Elements = append(v.Elements, &Value{Missing: true})
				continue
			}
			el, err := r.readStruct(target, r.indexOf(target), targetOff, field.ElementType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			v.Elements = append(v.Elements, el)
		}
		return v, nil
	case KindByteArray:
		if err := boundsCheck(buf, fieldOffset, 4); err != nil {
			return nil, err
		}
		count := binary.LittleEndian.Uint32(buf[fieldOffset:])
		target, targetOff, ok, err := r.readReference(sec, secIdx, fieldOffset+4)
		if err != nil {
			return nil, err
		}
		if !ok || count == 0 {
			return &Value{Kind: field.Kind}, nil
		}
		if err := boundsCheck(target.data, targetOff, int(count)); err != nil {
			return nil, err
		}
		b := make([]byte, count)
		copy(b, target.data[targetOff:targetOff+count])
		return &Value{Kind: field.Kind, Bytes: b}, nil
	case KindPointerArray:
		if !field.HasElementType {
			return nil, fmt.Errorf("%w: pointer-array field %q missing element type", ErrUnknownMemberKind, field.Name)
		}
		if err := boundsCheck(buf, fieldOffset, 8); err != nil {
			return nil, err
		}
		count := binary.LittleEndian.Uint32(buf[fieldOffset:])
		arrSec, arrOff, ok, err := r.readReference(sec, secIdx, fieldOffset+4)
		if err != nil {
			return nil, err
		}
		v := &Value{Kind: field.Kind}
		if !ok || count == 0 {
			return v, nil
		}
		arrIdx := r.indexOf(arrSec)
		for i := uint32(0); i < count; i++ {
			target, targetOff, ok, err := r.readReference(arrSec, arrIdx, arrOff+i*ptrSize)
			if err != nil {
				return nil, err
			}
			if !ok {
				v.Elements = append(v.Elements, &Value{Missing: true})
				continue
			}
			if field.ElementType == primTagU32 {
				if err := boundsCheck(target.data, targetOff, 4); err != nil {
					return nil, err
				}
				v.Elements = append(v.Elements, &Value{Kind: KindUInt32, U32: binary.LittleEndian.Uint32(target.data[targetOff:])})
				continue
			}
			el, err := r.readStruct(target, r.indexOf(target), targetOff, field.ElementType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			v.Elements = append(v.Elements, el)
		}
		return v, nil
	case KindVariantReference:
		if err := boundsCheck(buf, fieldOffset, 4); err != nil {
			return nil, err
		}
		typeTag := binary.LittleEndian.Uint32(buf[fieldOffset:])
		target, targetOff, ok, err := r.readReference(sec, secIdx, fieldOffset+4)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Value{Kind: field.Kind, Missing: true}, nil
		}
		return r.readStruct(target, r.indexOf(target), targetOff, typeTag)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMemberKind, field.Kind)
	}
}

func (r *reader) readTransform(buf []byte, offset uint32) (*Value, error) {
	const size = 4 + 4*3 + 4*4 + 4*9
	if err := boundsCheck(buf, offset, size); err != nil {
		return nil, err
	}
	t := &Transform{}
	t.Flags = binary.LittleEndian.Uint32(buf[offset:])
	p := offset + 4
	for i := 0; i < 3; i++ {
		t.Translation[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[p:]))
		p += 4
	}
	for i := 0; i < 4; i++ {
		t.Rotation[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[p:]))
		p += 4
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.ScaleShear[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[p:]))
			p += 4
		}
	}
	return &Value{Kind: KindTransform, Transform: t}, nil
}

// indexOf returns target's index within f.Sections by identity, used to
// thread a section index through recursive reads (needed for relocation
// lookups, which are keyed by the referencing section, not the target).
func (r *reader) indexOf(target *Section) uint32 {
	for i, s := range r.f.Sections {
		if s == target {
			return uint32(i)
		}
	}
	return 0
}

func readCString(buf []byte, offset uint32) (string, error) {
	if offset > uint32(len(buf)) {
		return "", fmt.Errorf("%w: string offset out of range", ErrTruncated)
	}
	end := offset
	for end < uint32(len(buf)) && buf[end] != 0 {
		end++
	}
	return string(buf[offset:end]), nil
}

func boundsCheck(buf []byte, offset uint32, size int) error {
	if int(offset)+size > len(buf) {
		return fmt.Errorf("%w: field at offset %d (%d bytes) exceeds section of %d bytes", ErrTruncated, offset, size, len(buf))
	}
	return nil
}
