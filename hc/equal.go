package hc

// Equal reports deep semantic equality between two documents, ignoring
// name-pool bucketing and binary compression framing.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.EngineVersion != o.EngineVersion || len(d.Regions) != len(o.Regions) {
		return false
	}
	for i, r := range d.Regions {
		or := o.Regions[i]
		if r.Name != or.Name {
			return false
		}
		if !nodesEqual(r.Root, or.Root) {
			return false
		}
	}
	return true
}

func nodesEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.HasKey != b.HasKey || a.Key != b.Key {
		return false
	}
	if len(a.Attributes) != len(b.Attributes) || len(a.Children) != len(b.Children) {
		return false
	}
	for i, at := range a.Attributes {
		if !attributesEqual(at, b.Attributes[i]) {
			return false
		}
	}
	for i, c := range a.Children {
		if !nodesEqual(c, b.Children[i]) {
			return false
		}
	}
	return true
}

func attributesEqual(a, b *Attribute) bool {
	if a.ID != b.ID || a.Value.Type != b.Value.Type {
		return false
	}
	av, bv := a.Value, b.Value
	switch av.Type {
	case TypeTranslatedString, TypeTranslatedFSString:
		return av.TS.Handle == bv.TS.Handle && av.TS.Version == bv.TS.Version
	case TypeVec2, TypeVec3, TypeVec4:
		return float32SliceEqual(av.Vec, bv.Vec)
	case TypeIVec2, TypeIVec3, TypeIVec4:
		return int32SliceEqual(av.IVec, bv.IVec)
	case TypeMat2, TypeMat3, TypeMat3x4, TypeMat4x3, TypeMat4:
		if len(av.Mat) != len(bv.Mat) {
			return false
		}
		for i := range av.Mat {
			if !float32SliceEqual(av.Mat[i], bv.Mat[i]) {
				return false
			}
		}
		return true
	case TypeScratchBuffer:
		return string(av.Buf) == string(bv.Buf)
	case TypeUUID:
		return av.UUID == bv.UUID
	case TypeBool:
		return av.Bool == bv.Bool
	case TypeFloat, TypeDouble:
		return av.Float == bv.Float
	case TypeUShort, TypeUInt, TypeULongLong, TypeOldInt64:
		return av.UInt == bv.UInt
	case TypeString, TypePath, TypeFixedString, TypeLSString, TypeWString, TypeLSWString:
		return av.Str == bv.Str
	default:
		return av.Int == bv.Int
	}
}

func float32SliceEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func int32SliceEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
