package gr2

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// VertexDataType is the on-disk element type of one vertex component
// (f32/u16/u8/...).
type VertexDataType uint32

const (
	DataTypeF32 VertexDataType = iota
	DataTypeU16
	DataTypeU8
	DataTypeU32
)

func (t VertexDataType) byteSize() int {
	switch t {
	case DataTypeF32, DataTypeU32:
		return 4
	case DataTypeU16:
		return 2
	case DataTypeU8:
		return 1
	default:
		return 0
	}
}

// VertexComponent is one entry of a mesh's component-descriptor array:
// a usage name (matched case-insensitively against
// position/normal/tangent/uv/color/bone_weights/bone_indices), its
// element data type, and how many elements of that type it contributes
// per vertex.
type VertexComponent struct {
	Name     string
	DataType VertexDataType
	Count    int
}

func (c VertexComponent) byteSize() int {
	return c.DataType.byteSize() * c.Count
}

func vertexStride(components []VertexComponent) int {
	total := 0
	for _, c := range components {
		total += c.byteSize()
	}
	return total
}

// decodeVertexStream walks descriptors over raw, producing vertexCount
// Vertex values, iterating the descriptors and consuming the declared
// bytes per vertex.
func decodeVertexStream(components []VertexComponent, raw []byte, vertexCount int) ([]Vertex, error) {
	stride := vertexStride(components)
	if stride == 0 {
		return nil, fmt.Errorf("%w: empty vertex component list", ErrUnknownMemberKind)
	}
	if len(raw) < stride*vertexCount {
		return nil, fmt.Errorf("%w: vertex stream shorter than %d vertices at stride %d", ErrTruncated, vertexCount, stride)
	}

	out := make([]Vertex, vertexCount)
	for i := 0; i < vertexCount; i++ {
		base := i * stride
		offset := base
		v := &out[i]
		for _, c := range components {
			n := strings.ToLower(c.Name)
			switch {
			case strings.Contains(n, "position"):
				v.Position = readFloat3(raw, offset)
			case strings.Contains(n, "normal"):
				f := readFloat3(raw, offset)
				v.Normal = &f
			case strings.Contains(n, "tangent"):
				f := readFloatN4(raw, offset, c)
				v.Tangent = &f
			case strings.Contains(n, "uv") || strings.Contains(n, "texcoord"):
				f := readFloat2(raw, offset)
				if v.UV0 == nil {
					v.UV0 = &f
				} else {
					v.UV1 = &f
				}
			case strings.Contains(n, "boneweight"):
				b := readBytes4(raw, offset, c)
				v.BoneWeights = &b
			case strings.Contains(n, "boneindex") || strings.Contains(n, "boneindices"):
				b := readBytes4(raw, offset, c)
				v.BoneIndices = &b
			case strings.Contains(n, "color"):
				b := readBytes4(raw, offset, c)
				v.Color = &b
			}
			offset += c.byteSize()
		}
	}
	return out, nil
}

func readFloat3(raw []byte, offset int) [3]float32 {
	var out [3]float32
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[offset+i*4:]))
	}
	return out
}

func readFloat2(raw []byte, offset int) [2]float32 {
	var out [2]float32
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[offset+i*4:]))
	}
	return out
}

func readFloatN4(raw []byte, offset int, c VertexComponent) [4]float32 {
	var out [4]float32
	n := c.Count
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[offset+i*4:]))
	}
	return out
}

func readBytes4(raw []byte, offset int, c VertexComponent) [4]uint8 {
	var out [4]uint8
	switch c.DataType {
	case DataTypeU8:
		n := c.Count
		if n > 4 {
			n = 4
		}
		for i := 0; i < n; i++ {
			out[i] = raw[offset+i]
		}
	case DataTypeF32:
		n := c.Count
		if n > 4 {
			n = 4
		}
		for i := 0; i < n; i++ {
			f := math.Float32frombits(binary.LittleEndian.Uint32(raw[offset+i*4:]))
			out[i] = uint8(f * 255)
		}
	}
	return out
}

// inferVertexComponents derives the component descriptor list a set of
// vertices needs from which optional fields are populated, matching
// decodeVertexStream's name-substring dispatch so a round trip through
// encodeVertexStream/decodeVertexStream preserves every populated
// field.
func inferVertexComponents(vertices []Vertex) []VertexComponent {
	var has struct {
		normal, tangent, uv0, uv1, boneWeights, boneIndices, color bool
	}
	for _, v := range vertices {
		has.normal = has.normal || v.Normal != nil
		has.tangent = has.tangent || v.Tangent != nil
		has.uv0 = has.uv0 || v.UV0 != nil
		has.uv1 = has.uv1 || v.UV1 != nil
		has.boneWeights = has.boneWeights || v.BoneWeights != nil
		has.boneIndices = has.boneIndices || v.BoneIndices != nil
		has.color = has.color || v.Color != nil
	}

	components := []VertexComponent{{Name: "Position", DataType: DataTypeF32, Count: 3}}
	if has.normal {
		components = append(components, VertexComponent{Name: "Normal", DataType: DataTypeF32, Count: 3})
	}
	if has.tangent {
		components = append(components, VertexComponent{Name: "Tangent", DataType: DataTypeF32, Count: 4})
	}
	if has.uv0 {
		components = append(components, VertexComponent{Name: "TexCoord0", DataType: DataTypeF32, Count: 2})
	}
	if has.uv1 {
		components = append(components, VertexComponent{Name: "TexCoord1", DataType: DataTypeF32, Count: 2})
	}
	if has.boneWeights {
		components = append(components, VertexComponent{Name: "BoneWeights", DataType: DataTypeU8, Count: 4})
	}
	if has.boneIndices {
		components = append(components, VertexComponent{Name: "BoneIndices", DataType: DataTypeU8, Count: 4})
	}
	if has.color {
		components = append(components, VertexComponent{Name: "Color", DataType: DataTypeU8, Count: 4})
	}
	return components
}

// inferComponents is inferVertexComponents flattened into the three
// parallel slices writeVertexComponents writes one descriptor record
// from.
func inferComponents(vertices []Vertex) (names []string, types []VertexDataType, counts []int) {
	for _, c := range inferVertexComponents(vertices) {
		names = append(names, c.Name)
		types = append(types, c.DataType)
		counts = append(counts, c.Count)
	}
	return names, types, counts
}

// encodeVertexStream is the inverse of decodeVertexStream: it writes
// vertices packed to components' declared layout.
func encodeVertexStream(components []VertexComponent, vertices []Vertex) []byte {
	stride := vertexStride(components)
	out := make([]byte, stride*len(vertices))
	for i, v := range vertices {
		offset := i * stride
		for _, c := range components {
			n := strings.ToLower(c.Name)
			switch {
			case strings.Contains(n, "position"):
				writeFloatN(out, offset, v.Position[:])
			case strings.Contains(n, "normal"):
				if v.Normal != nil {
					writeFloatN(out, offset, v.Normal[:])
				}
			case strings.Contains(n, "tangent"):
				if v.Tangent != nil {
					writeFloatN(out, offset, v.Tangent[:])
				}
			case strings.Contains(n, "uv") || strings.Contains(n, "texcoord"):
				uv := v.UV0
				if strings.HasSuffix(n, "1") {
					uv = v.UV1
				}
				if uv != nil {
					writeFloatN(out, offset, uv[:])
				}
			case strings.Contains(n, "boneweight"):
				if v.BoneWeights != nil {
					copy(out[offset:], v.BoneWeights[:c.Count])
				}
			case strings.Contains(n, "boneindex") || strings.Contains(n, "boneindices"):
				if v.BoneIndices != nil {
					copy(out[offset:], v.BoneIndices[:c.Count])
				}
			case strings.Contains(n, "color"):
				if v.Color != nil {
					copy(out[offset:], v.Color[:c.Count])
				}
			}
			offset += c.byteSize()
		}
	}
	return out
}

func writeFloatN(out []byte, offset int, values []float32) {
	for i, f := range values {
		binary.LittleEndian.PutUint32(out[offset+i*4:], math.Float32bits(f))
	}
}

// encodeIndexStream is the inverse of decodeIndexStream.
func encodeIndexStream(indices []uint32, wide bool) []byte {
	size := 2
	if wide {
		size = 4
	}
	out := make([]byte, size*len(indices))
	for i, idx := range indices {
		if wide {
			binary.LittleEndian.PutUint32(out[i*4:], idx)
		} else {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(idx))
		}
	}
	return out
}

// decodeIndexStream reads count indices stored as either u16 or u32,
// depending on vertex count.
func decodeIndexStream(raw []byte, count int, wide bool) ([]uint32, error) {
	size := 2
	if wide {
		size = 4
	}
	if len(raw) < size*count {
		return nil, fmt.Errorf("%w: index stream shorter than %d indices", ErrTruncated, count)
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		if wide {
			out[i] = binary.LittleEndian.Uint32(raw[i*4:])
		} else {
			out[i] = uint32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	return out, nil
}
