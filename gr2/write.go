package gr2

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// Writer builds a single-section, uncompressed mesh container from a
// NeutralMesh. Each struct is laid out as a contiguous fixed-size block
// whose field offsets match the type table buildTypes emits; strings,
// arrays, and nested collections are written out-of-line and linked
// back through same-section relocations. The output is a legal file for
// Parse/Export, not a bit-exact reproduction of files produced by other
// tooling in the format family.
type Writer struct {
	buf    bytes.Buffer
	relocs []Relocation
	types  []*TypeDefinition
}

// Type tags assigned by this writer. Readers never assume these values;
// they parse whatever type table the file carries.
const (
	tagRoot          = 1
	tagSkeleton      = 2
	tagBone          = 3
	tagMesh          = 4
	tagModel         = 5
	tagVertexComp    = 6
	tagVertexData    = 7
	tagTopology      = 8
	tagTopologyGroup = 9
	tagBoneBinding   = 10
	tagMaterialBind  = 11
	tagMeshBind      = 12
	tagExtendedProp  = 13
	tagVec3          = 14
)

// Fixed block sizes, kept in sync with buildTypes.
const (
	sizeRoot         = 24
	sizeSkeleton     = 16
	sizeBone         = 80
	sizeMesh         = 68
	sizeModel        = 80
	sizeVertexComp   = 12
	sizeVertexData   = 12
	sizeTopology     = 20
	sizeTopoGroup    = 12
	sizeBoneBinding  = 36
	sizeMaterialBind = 4
	sizeMeshBind     = 4
	sizeExtendedProp = 8
	sizeVec3         = 12
	sizeTransform    = 68
)

// Write serializes mesh into a complete mesh container.
func Write(mesh *NeutralMesh) ([]byte, error) {
	w := &Writer{}
	w.buildTypes()

	rootOffset := w.writeRoot(mesh)
	typeTableOffset := w.buf.Len()
	w.buf.Write(encodeTypeTable(w.types))

	sectionData := w.buf.Bytes()
	relocBuf := &bytes.Buffer{}
	for _, rel := range w.relocs {
		binary.Write(relocBuf, binary.LittleEndian, rel.OffsetInSection)
		binary.Write(relocBuf, binary.LittleEndian, rel.TargetSection)
		binary.Write(relocBuf, binary.LittleEndian, rel.TargetOffset)
	}

	out := &bytes.Buffer{}
	out.Write(sigLE32)
	binary.Write(out, binary.LittleEndian, uint32(72)) // headers size
	binary.Write(out, binary.LittleEndian, uint32(0))  // header format
	out.Write(make([]byte, 8))                         // reserved

	const sectionsOffset = 72
	binary.Write(out, binary.LittleEndian, uint32(7))              // version
	binary.Write(out, binary.LittleEndian, uint32(0))              // file size, patched below
	binary.Write(out, binary.LittleEndian, uint32(0))              // crc
	binary.Write(out, binary.LittleEndian, uint32(sectionsOffset)) // sections offset
	binary.Write(out, binary.LittleEndian, uint32(1))              // num sections
	binary.Write(out, binary.LittleEndian, uint32(0))              // root type section
	binary.Write(out, binary.LittleEndian, uint32(typeTableOffset))
	binary.Write(out, binary.LittleEndian, uint32(0)) // root node section
	binary.Write(out, binary.LittleEndian, uint32(rootOffset))
	binary.Write(out, binary.LittleEndian, uint32(TagDOS2BG3))
	for i := 0; i < 4; i++ {
		binary.Write(out, binary.LittleEndian, uint32(0))
	}
	binary.Write(out, binary.LittleEndian, uint32(0)) // string table crc
	out.Write(make([]byte, 12))                       // reserved

	sectionTableStart := out.Len()
	relocOffset := sectionTableStart + sectionHeaderSize
	dataOffset := relocOffset + relocBuf.Len()

	binary.Write(out, binary.LittleEndian, uint32(CompressionNone))
	binary.Write(out, binary.LittleEndian, uint32(dataOffset))
	binary.Write(out, binary.LittleEndian, uint32(len(sectionData)))
	binary.Write(out, binary.LittleEndian, uint32(len(sectionData)))
	binary.Write(out, binary.LittleEndian, uint32(4)) // alignment
	binary.Write(out, binary.LittleEndian, uint32(0)) // first16bit (stop0, unused w/ CompressionNone)
	binary.Write(out, binary.LittleEndian, uint32(0)) // first8bit (stop1, unused w/ CompressionNone)
	binary.Write(out, binary.LittleEndian, uint32(relocOffset))
	binary.Write(out, binary.LittleEndian, uint32(len(w.relocs)))
	binary.Write(out, binary.LittleEndian, uint32(0)) // mixed marshalling offset
	binary.Write(out, binary.LittleEndian, uint32(0)) // num mixed marshalling

	out.Write(relocBuf.Bytes())
	out.Write(sectionData)

	result := out.Bytes()
	binary.LittleEndian.PutUint32(result[36:], uint32(len(result)))
	return result, nil
}

// block reserves a zeroed fixed-size struct block and returns its
// offset. Fields are patched in place afterwards; bytes.Buffer keeps
// already-returned backing bytes live across later appends, so the
// patch helpers below write through buf.Bytes() safely as long as every
// patch happens before the final Bytes() snapshot in Write.
func (w *Writer) block(size int) int {
	off := w.buf.Len()
	w.buf.Write(make([]byte, size))
	return off
}

func (w *Writer) patchU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf.Bytes()[off:], v)
}

func (w *Writer) patchF32(off int, v float32) {
	binary.LittleEndian.PutUint32(w.buf.Bytes()[off:], math.Float32bits(v))
}

func (w *Writer) writeCString(s string) int {
	off := w.buf.Len()
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return off
}

func (w *Writer) patchPointer(slotOffset, targetOffset int) {
	w.relocs = append(w.relocs, Relocation{
		OffsetInSection: uint32(slotOffset),
		TargetSection:   0,
		TargetOffset:    uint32(targetOffset),
	})
}

// setString writes s out-of-line and records a relocation for the
// pointer slot at slot.
func (w *Writer) setString(slot int, s string) {
	off := w.writeCString(s)
	w.patchPointer(slot, off)
}

// setByteArray fills a byte-array field: count at slot, pointer at
// slot+4, payload out-of-line.
func (w *Writer) setByteArray(slot int, b []byte) {
	w.patchU32(slot, uint32(len(b)))
	if len(b) == 0 {
		return
	}
	off := w.buf.Len()
	w.buf.Write(b)
	w.patchPointer(slot+4, off)
}

// setPointerArray fills a pointer-array field: count at slot, pointer
// at slot+4 to a contiguous array of per-element pointer slots.
func (w *Writer) setPointerArray(slot int, elementOffsets []int) {
	w.patchU32(slot, uint32(len(elementOffsets)))
	if len(elementOffsets) == 0 {
		return
	}
	arr := w.buf.Len()
	w.buf.Write(make([]byte, 4*len(elementOffsets)))
	for i, off := range elementOffsets {
		w.patchPointer(arr+i*4, off)
	}
	w.patchPointer(slot+4, arr)
}

// patchTransform lays a full transform block (flags, translation,
// rotation quaternion, 3x3 scale/shear) into an already-reserved block
// at off.
func (w *Writer) patchTransform(off int, t Transform) {
	w.patchU32(off, t.Flags)
	p := off + 4
	for i := 0; i < 3; i++ {
		w.patchF32(p, t.Translation[i])
		p += 4
	}
	for i := 0; i < 4; i++ {
		w.patchF32(p, t.Rotation[i])
		p += 4
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			w.patchF32(p, t.ScaleShear[i][j])
			p += 4
		}
	}
}

func (w *Writer) writeRoot(mesh *NeutralMesh) uint32 {
	root := w.block(sizeRoot)

	skelOffsets := make([]int, len(mesh.Skeletons))
	for i, s := range mesh.Skeletons {
		skelOffsets[i] = w.writeSkeleton(s)
	}
	w.setPointerArray(root+0, skelOffsets)

	meshOffsets := make([]int, len(mesh.Meshes))
	for i, m := range mesh.Meshes {
		meshOffsets[i] = w.writeMesh(m)
	}
	w.setPointerArray(root+8, meshOffsets)

	modelOffsets := make([]int, len(mesh.Models))
	for i, m := range mesh.Models {
		modelOffsets[i] = w.writeModel(m)
	}
	w.setPointerArray(root+16, modelOffsets)

	return uint32(root)
}

func (w *Writer) writeSkeleton(s Skeleton) int {
	off := w.block(sizeSkeleton)
	w.setString(off+0, s.Name)
	w.patchU32(off+4, uint32(s.LODType))

	boneOffsets := make([]int, len(s.Bones))
	for i, b := range s.Bones {
		boneOffsets[i] = w.writeBone(b)
	}
	w.setPointerArray(off+8, boneOffsets)
	return off
}

func (w *Writer) writeBone(b Bone) int {
	off := w.block(sizeBone)
	w.setString(off+0, b.Name)
	w.patchU32(off+4, uint32(b.ParentIndex))
	w.patchF32(off+8, b.LODError)

	t := Transform{Rotation: [4]float32{0, 0, 0, 1}}
	for i := 0; i < 3; i++ {
		t.Translation[i] = b.InverseWorldTransform[i][3]
		for j := 0; j < 3; j++ {
			t.ScaleShear[i][j] = b.InverseWorldTransform[i][j]
		}
	}
	w.patchTransform(off+12, t)
	return off
}

func (w *Writer) writeMesh(m Mesh) int {
	off := w.block(sizeMesh)
	w.setString(off+0, m.Name)

	names, types, counts := inferComponents(m.Vertices)
	compOffsets := make([]int, len(names))
	for i := range names {
		c := w.block(sizeVertexComp)
		w.setString(c+0, names[i])
		w.patchU32(c+4, uint32(types[i]))
		w.patchU32(c+8, uint32(counts[i]))
		compOffsets[i] = c
	}
	w.setPointerArray(off+4, compOffsets)

	components := inferVertexComponents(m.Vertices)
	rawVerts := encodeVertexStream(components, m.Vertices)
	w.setByteArray(off+12, rawVerts)
	w.patchU32(off+20, uint32(len(m.Vertices)))

	wide := len(m.Vertices) > 0xFFFF
	rawIdx := encodeIndexStream(m.Indices, wide)
	w.setByteArray(off+24, rawIdx)
	w.patchU32(off+32, uint32(len(m.Indices)))

	groupOffsets := make([]int, len(m.TopologyGroups))
	for i, g := range m.TopologyGroups {
		gOff := w.block(sizeTopoGroup)
		w.patchU32(gOff+0, uint32(g.MaterialIndex))
		w.patchU32(gOff+4, uint32(g.TriFirst))
		w.patchU32(gOff+8, uint32(g.TriCount))
		groupOffsets[i] = gOff
	}
	w.setPointerArray(off+36, groupOffsets)

	bbOffsets := make([]int, len(m.BoneBindings))
	for i, bb := range m.BoneBindings {
		bbOffsets[i] = w.writeBoneBinding(bb)
	}
	w.setPointerArray(off+44, bbOffsets)

	matOffsets := make([]int, len(m.MaterialBindingNames))
	for i, name := range m.MaterialBindingNames {
		mOff := w.block(sizeMaterialBind)
		w.setString(mOff, name)
		matOffsets[i] = mOff
	}
	w.setPointerArray(off+52, matOffsets)

	// Map iteration order is unspecified; sort keys so repeated writes
	// of the same model are byte-identical.
	keys := make([]string, 0, len(m.ExtendedProperties))
	for k := range m.ExtendedProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	epOffsets := make([]int, len(keys))
	for i, k := range keys {
		eOff := w.block(sizeExtendedProp)
		w.setString(eOff+0, k)
		w.setString(eOff+4, m.ExtendedProperties[k])
		epOffsets[i] = eOff
	}
	w.setPointerArray(off+60, epOffsets)

	return off
}

func (w *Writer) writeBoneBinding(bb BoneBinding) int {
	off := w.block(sizeBoneBinding)
	w.setString(off+0, bb.BoneName)
	w.patchF32(off+4, bb.OBBMin[0])
	w.patchF32(off+8, bb.OBBMin[1])
	w.patchF32(off+12, bb.OBBMin[2])
	w.patchF32(off+16, bb.OBBMax[0])
	w.patchF32(off+20, bb.OBBMax[1])
	w.patchF32(off+24, bb.OBBMax[2])

	triOffsets := make([]int, len(bb.TriIndices))
	for i, idx := range bb.TriIndices {
		tOff := w.buf.Len()
		var scratch [4]byte
		binary.LittleEndian.PutUint32(scratch[:], uint32(idx))
		w.buf.Write(scratch[:])
		triOffsets[i] = tOff
	}
	w.setPointerArray(off+28, triOffsets)
	return off
}

func (w *Writer) writeModel(m Model) int {
	off := w.block(sizeModel)
	w.setString(off+0, m.Name)
	w.patchTransform(off+4, m.InitialPlacement)

	bindOffsets := make([]int, len(m.MeshBindingNames))
	for i, name := range m.MeshBindingNames {
		bOff := w.block(sizeMeshBind)
		w.setString(bOff, name)
		bindOffsets[i] = bOff
	}
	w.setPointerArray(off+72, bindOffsets)
	return off
}

// buildTypes emits the type table describing the fixed block layouts
// above. The root type is first; TypeCache treats the first record as
// the root node's struct type.
func (w *Writer) buildTypes() {
	str := func(name string, offset uint32) FieldDefinition {
		return FieldDefinition{Name: name, Kind: KindString, Offset: offset}
	}
	u32 := func(name string, offset uint32) FieldDefinition {
		return FieldDefinition{Name: name, Kind: KindUInt32, Offset: offset}
	}
	f32 := func(name string, offset uint32) FieldDefinition {
		return FieldDefinition{Name: name, Kind: KindFloat32, Offset: offset}
	}
	ptrArr := func(name string, offset uint32, elem uint32) FieldDefinition {
		return FieldDefinition{Name: name, Kind: KindPointerArray, Offset: offset, HasElementType: true, ElementType: elem}
	}
	inline := func(name string, offset uint32, elem uint32) FieldDefinition {
		return FieldDefinition{Name: name, Kind: KindInline, Offset: offset, HasElementType: true, ElementType: elem}
	}
	byteArr := func(name string, offset uint32) FieldDefinition {
		return FieldDefinition{Name: name, Kind: KindByteArray, Offset: offset}
	}

	w.types = []*TypeDefinition{
		{Tag: tagRoot, Size: sizeRoot, Fields: []FieldDefinition{
			ptrArr("Skeletons", 0, tagSkeleton),
			ptrArr("Meshes", 8, tagMesh),
			ptrArr("Models", 16, tagModel),
		}},
		{Tag: tagSkeleton, Size: sizeSkeleton, Fields: []FieldDefinition{
			str("Name", 0),
			u32("LODType", 4),
			ptrArr("Bones", 8, tagBone),
		}},
		{Tag: tagBone, Size: sizeBone, Fields: []FieldDefinition{
			str("Name", 0),
			u32("ParentIndex", 4),
			f32("LODError", 8),
			{Name: "InverseWorldTransform", Kind: KindTransform, Offset: 12},
		}},
		{Tag: tagMesh, Size: sizeMesh, Fields: []FieldDefinition{
			str("Name", 0),
			ptrArr("VertexComponents", 4, tagVertexComp),
			inline("PrimaryVertexData", 12, tagVertexData),
			inline("PrimaryTopology", 24, tagTopology),
			ptrArr("BoneBindings", 44, tagBoneBinding),
			ptrArr("MaterialBindings", 52, tagMaterialBind),
			ptrArr("ExtendedData", 60, tagExtendedProp),
		}},
		{Tag: tagModel, Size: sizeModel, Fields: []FieldDefinition{
			str("Name", 0),
			{Name: "InitialPlacement", Kind: KindTransform, Offset: 4},
			ptrArr("MeshBindings", 72, tagMeshBind),
		}},
		{Tag: tagVertexComp, Size: sizeVertexComp, Fields: []FieldDefinition{
			str("Name", 0),
			u32("DataType", 4),
			u32("Count", 8),
		}},
		{Tag: tagVertexData, Size: sizeVertexData, Fields: []FieldDefinition{
			byteArr("RawBytes", 0),
			u32("VertexCount", 8),
		}},
		{Tag: tagTopology, Size: sizeTopology, Fields: []FieldDefinition{
			byteArr("Indices", 0),
			u32("IndexCount", 8),
			ptrArr("Groups", 12, tagTopologyGroup),
		}},
		{Tag: tagTopologyGroup, Size: sizeTopoGroup, Fields: []FieldDefinition{
			u32("MaterialIndex", 0),
			u32("TriFirst", 4),
			u32("TriCount", 8),
		}},
		{Tag: tagBoneBinding, Size: sizeBoneBinding, Fields: []FieldDefinition{
			str("BoneName", 0),
			inline("OBBMin", 4, tagVec3),
			inline("OBBMax", 16, tagVec3),
			ptrArr("TriangleIndices", 28, primTagU32),
		}},
		{Tag: tagMaterialBind, Size: sizeMaterialBind, Fields: []FieldDefinition{
			str("Material", 0),
		}},
		{Tag: tagMeshBind, Size: sizeMeshBind, Fields: []FieldDefinition{
			str("Mesh", 0),
		}},
		{Tag: tagExtendedProp, Size: sizeExtendedProp, Fields: []FieldDefinition{
			str("Name", 0),
			str("Value", 4),
		}},
		{Tag: tagVec3, Size: sizeVec3, Fields: []FieldDefinition{
			f32("X", 0),
			f32("Y", 4),
			f32("Z", 8),
		}},
	}
}
