package gr2

import "fmt"

// Export walks the root struct and produces the neutral mesh model,
// pulling fields whose names match the expected path (Meshes,
// Skeletons, Models).
func (f *File) Export() (*NeutralMesh, error) {
	rootSec, err := f.section(f.Header.RootNode.Section)
	if err != nil {
		return nil, fmt.Errorf("root node: %w", err)
	}
	rootTag, ok := f.Types.RootTag()
	if !ok {
		return nil, fmt.Errorf("%w: empty root type table", ErrFieldNotFound)
	}

	r := &reader{f: f}
	root, err := r.readStruct(rootSec, f.Header.RootNode.Section, f.Header.RootNode.Offset, rootTag)
	if err != nil {
		return nil, fmt.Errorf("root node: %w", err)
	}

	out := &NeutralMesh{}
	if skeletons := root.Field("Skeletons"); skeletons != nil {
		for _, el := range skeletons.Elements {
			s, err := exportSkeleton(el)
			if err != nil {
				return nil, fmt.Errorf("skeleton: %w", err)
			}
			out.Skeletons = append(out.Skeletons, s)
		}
	}
	if meshes := root.Field("Meshes"); meshes != nil {
		for _, el := range meshes.Elements {
			m, err := exportMesh(el)
			if err != nil {
				return nil, fmt.Errorf("mesh: %w", err)
			}
			out.Meshes = append(out.Meshes, m)
		}
	}
	if models := root.Field("Models"); models != nil {
		for _, el := range models.Elements {
			out.Models = append(out.Models, exportModel(el))
		}
	}
	return out, nil
}

func exportSkeleton(v *Value) (Skeleton, error) {
	s := Skeleton{
		Name:    v.Field("Name").AsString(),
		LODType: int32(v.Field("LODType").AsU32()),
	}
	bones := v.Field("Bones")
	if bones == nil {
		return s, nil
	}
	for _, bv := range bones.Elements {
		b := Bone{
			Name:        bv.Field("Name").AsString(),
			ParentIndex: int32(bv.Field("ParentIndex").AsU32()),
			LODError:    bv.Field("LODError").AsF32(),
		}
		if t := bv.Field("InverseWorldTransform"); t != nil && t.Transform != nil {
			// The reflective transform carries a 3x3 scale/shear block;
			// the neutral model wants a 4x4 for direct matrix math, so
			// this embeds it in the upper-left 3x3, puts the translation
			// in the fourth column, and sets [3][3] to 1. The rotation
			// quaternion is not applied.
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					b.InverseWorldTransform[i][j] = t.Transform.ScaleShear[i][j]
				}
			}
			for i := 0; i < 3; i++ {
				b.InverseWorldTransform[i][3] = t.Transform.Translation[i]
			}
			b.InverseWorldTransform[3][3] = 1
		}
		s.Bones = append(s.Bones, b)
	}
	return s, nil
}

func exportModel(v *Value) Model {
	m := Model{Name: v.Field("Name").AsString()}
	if t := v.Field("InitialPlacement"); t != nil && t.Transform != nil {
		m.InitialPlacement = *t.Transform
	}
	if bindings := v.Field("MeshBindings"); bindings != nil {
		for _, bv := range bindings.Elements {
			if name := bv.Field("Mesh"); name != nil {
				m.MeshBindingNames = append(m.MeshBindingNames, name.AsString())
			}
		}
	}
	return m
}

func exportMesh(v *Value) (Mesh, error) {
	m := Mesh{
		Name:               v.Field("Name").AsString(),
		ExtendedProperties: map[string]string{},
	}

	components, err := readVertexComponents(v.Field("VertexComponents"))
	if err != nil {
		return m, fmt.Errorf("vertex components: %w", err)
	}

	if pv := v.Field("PrimaryVertexData"); pv != nil {
		verts, err := exportVertices(pv, components)
		if err != nil {
			return m, fmt.Errorf("vertex data: %w", err)
		}
		m.Vertices = verts
	}

	if tv := v.Field("PrimaryTopology"); tv != nil {
		indices, groups, err := exportTopology(tv, len(m.Vertices))
		if err != nil {
			return m, fmt.Errorf("topology: %w", err)
		}
		m.Indices = indices
		m.TopologyGroups = groups
	}

	if bb := v.Field("BoneBindings"); bb != nil {
		for _, bv := range bb.Elements {
			m.BoneBindings = append(m.BoneBindings, exportBoneBinding(bv))
		}
	}

	if mb := v.Field("MaterialBindings"); mb != nil {
		for _, mv := range mb.Elements {
			if name := mv.Field("Material"); name != nil {
				m.MaterialBindingNames = append(m.MaterialBindingNames, name.AsString())
			}
		}
	}

	if ep := v.Field("ExtendedData"); ep != nil {
		for _, pv := range ep.Elements {
			k := pv.Field("Name").AsString()
			val := pv.Field("Value").AsString()
			if k != "" {
				m.ExtendedProperties[k] = val
			}
		}
	}

	return m, nil
}

func exportBoneBinding(v *Value) BoneBinding {
	bb := BoneBinding{
		BoneName: v.Field("BoneName").AsString(),
	}
	if min := v.Field("OBBMin"); min != nil {
		bb.OBBMin = [3]float32{min.Field("X").AsF32(), min.Field("Y").AsF32(), min.Field("Z").AsF32()}
	}
	if max := v.Field("OBBMax"); max != nil {
		bb.OBBMax = [3]float32{max.Field("X").AsF32(), max.Field("Y").AsF32(), max.Field("Z").AsF32()}
	}
	if tris := v.Field("TriangleIndices"); tris != nil {
		bb.TriCount = int32(len(tris.Elements))
		for _, tv := range tris.Elements {
			bb.TriIndices = append(bb.TriIndices, int32(tv.U32))
		}
	}
	return bb
}

// readVertexComponents reads the component-descriptor array attached to
// a mesh's vertex data type.
func readVertexComponents(v *Value) ([]VertexComponent, error) {
	if v == nil {
		return nil, nil
	}
	out := make([]VertexComponent, 0, len(v.Elements))
	for _, el := range v.Elements {
		c := VertexComponent{
			Name:     el.Field("Name").AsString(),
			DataType: VertexDataType(el.Field("DataType").AsU32()),
			Count:    int(el.Field("Count").AsU32()),
		}
		out = append(out, c)
	}
	return out, nil
}

func exportVertices(v *Value, components []VertexComponent) ([]Vertex, error) {
	raw := v.Field("RawBytes")
	count := v.Field("VertexCount")
	if raw == nil || count == nil {
		return nil, fmt.Errorf("%w: PrimaryVertexData missing RawBytes/VertexCount", ErrFieldNotFound)
	}
	return decodeVertexStream(components, raw.Bytes, int(count.U32))
}

func exportTopology(v *Value, vertexCount int) ([]uint32, []TopologyGroup, error) {
	raw := v.Field("Indices")
	count := v.Field("IndexCount")
	if raw == nil || count == nil {
		return nil, nil, fmt.Errorf("%w: PrimaryTopology missing Indices/IndexCount", ErrFieldNotFound)
	}
	indices, err := decodeIndexStream(raw.Bytes, int(count.U32), vertexCount > 0xFFFF)
	if err != nil {
		return nil, nil, err
	}

	var groups []TopologyGroup
	if gv := v.Field("Groups"); gv != nil {
		for _, el := range gv.Elements {
			groups = append(groups, TopologyGroup{
				MaterialIndex: int32(el.Field("MaterialIndex").AsU32()),
				TriFirst:      int32(el.Field("TriFirst").AsU32()),
				TriCount:      int32(el.Field("TriCount").AsU32()),
			})
		}
	}
	return indices, groups, nil
}
