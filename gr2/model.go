package gr2

// Neutral mesh model: the exported shape the codec produces,
// independent of the on-disk reflective encoding.

// Bone is one skeleton joint.
type Bone struct {
	Name                  string
	ParentIndex           int32
	InverseWorldTransform [4][4]float32
	LODError              float32
}

// Skeleton is a named bone hierarchy.
type Skeleton struct {
	Name    string
	LODType int32
	Bones   []Bone
}

// Vertex is one mesh vertex with optional component streams, present
// only when the source component descriptor declared them.
type Vertex struct {
	Position    [3]float32
	Normal      *[3]float32
	Tangent     *[4]float32
	UV0         *[2]float32
	UV1         *[2]float32
	BoneIndices *[4]uint8
	BoneWeights *[4]uint8
	Color       *[4]uint8
}

// TopologyGroup partitions the index buffer by material.
type TopologyGroup struct {
	MaterialIndex int32
	TriFirst      int32
	TriCount      int32
}

// BoneBinding is a per-bone bounding box plus the triangles it
// influences.
type BoneBinding struct {
	BoneName   string
	OBBMin     [3]float32
	OBBMax     [3]float32
	TriCount   int32
	TriIndices []int32
}

// Mesh is a single renderable mesh.
type Mesh struct {
	Name                string
	Vertices            []Vertex
	Indices             []uint32
	TopologyGroups      []TopologyGroup
	BoneBindings        []BoneBinding
	MaterialBindingNames []string
	ExtendedProperties  map[string]string
}

// Model ties a mesh binding set to an initial placement.
type Model struct {
	Name               string
	InitialPlacement   Transform
	MeshBindingNames   []string
}

// NeutralMesh is the complete exported model of one mesh container.
type NeutralMesh struct {
	Skeletons []Skeleton
	Meshes    []Mesh
	Models    []Model
}
