package gr2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeTableEncodeParseRoundTrip(t *testing.T) {
	types := []*TypeDefinition{
		{
			Tag:  1,
			Size: 24,
			Fields: []FieldDefinition{
				{Name: "Skeletons", Kind: KindReferenceToArray, Offset: 0, HasElementType: true, ElementType: 2},
				{Name: "Name", Kind: KindString, Offset: 8},
			},
		},
		{
			Tag:  2,
			Size: 12,
			Fields: []FieldDefinition{
				{Name: "Bones", Kind: KindArrayOfReferences, Offset: 0, HasElementType: true, ElementType: 3, HasArrayLength: true, ArrayLength: 4},
			},
		},
	}

	data := encodeTypeTable(types)
	cache, err := parseTypeTable(data, 0)
	require.NoError(t, err)

	root := cache.Get(1)
	require.NotNil(t, root)
	assert.Equal(t, uint32(24), root.Size)
	require.Len(t, root.Fields, 2)
	assert.Equal(t, "Skeletons", root.Fields[0].Name)
	assert.Equal(t, KindReferenceToArray, root.Fields[0].Kind)
	assert.True(t, root.Fields[0].HasElementType)
	assert.Equal(t, uint32(2), root.Fields[0].ElementType)

	second := cache.Get(2)
	require.NotNil(t, second)
	assert.True(t, second.Fields[0].HasArrayLength)
	assert.Equal(t, uint32(4), second.Fields[0].ArrayLength)

	rootTag, ok := cache.RootTag()
	require.True(t, ok)
	assert.Equal(t, uint32(1), rootTag)
}

func TestVertexStreamEncodeDecodeRoundTrip(t *testing.T) {
	normal := [3]float32{0, 1, 0}
	uv0 := [2]float32{0.25, 0.75}
	boneIdx := [4]uint8{1, 2, 3, 4}
	vertices := []Vertex{
		{Position: [3]float32{1, 2, 3}, Normal: &normal, UV0: &uv0, BoneIndices: &boneIdx},
		{Position: [3]float32{4, 5, 6}},
	}

	components := inferVertexComponents(vertices)
	names, types, counts := inferComponents(vertices)
	require.Len(t, names, len(components))
	for i, c := range components {
		assert.Equal(t, c.Name, names[i])
		assert.Equal(t, c.DataType, types[i])
		assert.Equal(t, c.Count, counts[i])
	}

	raw := encodeVertexStream(components, vertices)
	got, err := decodeVertexStream(components, raw, len(vertices))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, vertices[0].Position, got[0].Position)
	require.NotNil(t, got[0].Normal)
	assert.Equal(t, normal, *got[0].Normal)
	require.NotNil(t, got[0].UV0)
	assert.Equal(t, uv0, *got[0].UV0)
	require.NotNil(t, got[0].BoneIndices)
	assert.Equal(t, boneIdx, *got[0].BoneIndices)

	assert.Equal(t, vertices[1].Position, got[1].Position)
	// The component layout is uniform across the whole stream, so every
	// vertex decodes a Normal pointer even though only vertex 0 set one;
	// vertex 1's comes back as the zero value.
	require.NotNil(t, got[1].Normal)
	assert.Equal(t, [3]float32{}, *got[1].Normal)
}

func TestIndexStreamEncodeDecodeRoundTrip(t *testing.T) {
	indices := []uint32{0, 1, 2, 65535, 3}

	narrow := encodeIndexStream(indices[:3], false)
	gotNarrow, err := decodeIndexStream(narrow, 3, false)
	require.NoError(t, err)
	assert.Equal(t, indices[:3], gotNarrow)

	wide := encodeIndexStream(indices, true)
	gotWide, err := decodeIndexStream(wide, len(indices), true)
	require.NoError(t, err)
	assert.Equal(t, indices, gotWide)
}

func TestExportSkeletonReadsInverseWorldTransform(t *testing.T) {
	v := &Value{
		Kind: KindInline,
		Fields: map[string]*Value{
			"Name":    {Str: "Root"},
			"LODType": {U32: 0},
			"Bones": {
				Elements: []*Value{
					{
						Fields: map[string]*Value{
							"Name":        {Str: "pelvis"},
							"ParentIndex": {U32: 0xFFFFFFFF},
							"LODError":    {F32: 0.5},
							"InverseWorldTransform": {
								Transform: &Transform{
									Translation: [3]float32{1, 2, 3},
									ScaleShear:  [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
								},
							},
						},
					},
				},
			},
		},
	}

	s, err := exportSkeleton(v)
	require.NoError(t, err)
	assert.Equal(t, "Root", s.Name)
	require.Len(t, s.Bones, 1)
	bone := s.Bones[0]
	assert.Equal(t, "pelvis", bone.Name)
	assert.Equal(t, int32(-1), bone.ParentIndex)
	assert.Equal(t, float32(1), bone.InverseWorldTransform[0][3])
	assert.Equal(t, float32(2), bone.InverseWorldTransform[1][3])
	assert.Equal(t, float32(1), bone.InverseWorldTransform[3][3])
}

func TestWriteProducesParsableHeader(t *testing.T) {
	mesh := &NeutralMesh{
		Skeletons: []Skeleton{{Name: "Skel", Bones: []Bone{{Name: "root", ParentIndex: -1}}}},
		Meshes: []Mesh{{
			Name:     "Body",
			Vertices: []Vertex{{Position: [3]float32{0, 0, 0}}, {Position: [3]float32{1, 1, 1}}, {Position: [3]float32{2, 2, 2}}},
			Indices:  []uint32{0, 1, 2},
		}},
	}

	data, err := Write(mesh)
	require.NoError(t, err)

	f, err := Parse(data, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), f.Header.Version)
	assert.Equal(t, uint32(1), f.Header.NumSections)
	assert.Len(t, f.Sections, 1)
	assert.Equal(t, CompressionNone, f.Sections[0].Compression)
	rootTag, ok := f.Types.RootTag()
	require.True(t, ok)
	assert.Equal(t, uint32(1), rootTag)
}

func testMesh() *NeutralMesh {
	iwt := [4][4]float32{
		{1, 0, 0, 5},
		{0, 1, 0, 6},
		{0, 0, 1, 7},
		{0, 0, 0, 1},
	}
	normal := [3]float32{0, 1, 0}
	uv0 := [2]float32{0.5, 0.25}
	return &NeutralMesh{
		Skeletons: []Skeleton{{
			Name:    "Skel",
			LODType: 1,
			Bones: []Bone{
				{Name: "pelvis", ParentIndex: -1, LODError: 0.125, InverseWorldTransform: iwt},
				{Name: "spine", ParentIndex: 0, LODError: 0.25, InverseWorldTransform: iwt},
			},
		}},
		Meshes: []Mesh{{
			Name: "Body",
			Vertices: []Vertex{
				{Position: [3]float32{0, 0, 0}, Normal: &normal, UV0: &uv0},
				{Position: [3]float32{1, 0, 0}, Normal: &normal, UV0: &uv0},
				{Position: [3]float32{0, 1, 0}, Normal: &normal, UV0: &uv0},
			},
			Indices:        []uint32{0, 1, 2},
			TopologyGroups: []TopologyGroup{{MaterialIndex: 0, TriFirst: 0, TriCount: 1}},
			BoneBindings: []BoneBinding{{
				BoneName:   "pelvis",
				OBBMin:     [3]float32{-1, -2, -3},
				OBBMax:     [3]float32{1, 2, 3},
				TriCount:   1,
				TriIndices: []int32{0},
			}},
			MaterialBindingNames: []string{"Body_Material"},
			ExtendedProperties:   map[string]string{"Rigid": "0", "Cloth": "1"},
		}},
		Models: []Model{{
			Name: "Hero",
			InitialPlacement: Transform{
				Rotation:    [4]float32{0, 0, 0, 1},
				Translation: [3]float32{1, 2, 3},
				ScaleShear:  [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
			},
			MeshBindingNames: []string{"Body"},
		}},
	}
}

func TestWriteParseExportRoundTrip(t *testing.T) {
	mesh := testMesh()
	data, err := Write(mesh)
	require.NoError(t, err)

	f, err := Parse(data, nil)
	require.NoError(t, err)
	got, err := f.Export()
	require.NoError(t, err)

	require.Len(t, got.Skeletons, 1)
	skel := got.Skeletons[0]
	assert.Equal(t, "Skel", skel.Name)
	assert.Equal(t, int32(1), skel.LODType)
	require.Len(t, skel.Bones, 2)
	assert.Equal(t, mesh.Skeletons[0].Bones[0], skel.Bones[0])
	assert.Equal(t, mesh.Skeletons[0].Bones[1], skel.Bones[1])

	require.Len(t, got.Meshes, 1)
	m := got.Meshes[0]
	assert.Equal(t, "Body", m.Name)
	require.Len(t, m.Vertices, 3)
	assert.Equal(t, mesh.Meshes[0].Vertices[0].Position, m.Vertices[0].Position)
	require.NotNil(t, m.Vertices[1].Normal)
	assert.Equal(t, *mesh.Meshes[0].Vertices[1].Normal, *m.Vertices[1].Normal)
	require.NotNil(t, m.Vertices[2].UV0)
	assert.Equal(t, *mesh.Meshes[0].Vertices[2].UV0, *m.Vertices[2].UV0)
	assert.Equal(t, mesh.Meshes[0].Indices, m.Indices)
	assert.Equal(t, mesh.Meshes[0].TopologyGroups, m.TopologyGroups)
	assert.Equal(t, mesh.Meshes[0].BoneBindings, m.BoneBindings)
	assert.Equal(t, mesh.Meshes[0].MaterialBindingNames, m.MaterialBindingNames)
	assert.Equal(t, mesh.Meshes[0].ExtendedProperties, m.ExtendedProperties)

	require.Len(t, got.Models, 1)
	assert.Equal(t, mesh.Models[0], got.Models[0])
}

func TestDecompressRewritesSectionsRaw(t *testing.T) {
	data, err := Write(testMesh())
	require.NoError(t, err)

	raw, err := Decompress(data, nil)
	require.NoError(t, err)

	f, err := Parse(raw, nil)
	require.NoError(t, err)
	for _, s := range f.Sections {
		assert.Equal(t, CompressionNone, s.Compression)
		assert.Equal(t, s.UncompressedSize, s.CompressedSize)
	}

	want, err := Parse(data, nil)
	require.NoError(t, err)
	wantMesh, err := want.Export()
	require.NoError(t, err)
	gotMesh, err := f.Export()
	require.NoError(t, err)
	assert.Equal(t, wantMesh, gotMesh)
}

func TestInspectSummarizesCounts(t *testing.T) {
	data, err := Write(testMesh())
	require.NoError(t, err)

	info, err := Inspect(data, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), info.Version)
	assert.Equal(t, LittleEndian, info.Endian)
	require.Len(t, info.Sections, 1)
	assert.Equal(t, CompressionNone, info.Sections[0].Compression)
	assert.Equal(t, 1, info.NumSkeletons)
	assert.Equal(t, 1, info.NumMeshes)
	assert.Equal(t, 1, info.NumModels)
	assert.Greater(t, info.NumTypes, 1)
}
