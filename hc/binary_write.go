package hc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/CyberDeco/MacPak-sub002/compress"
	"github.com/CyberDeco/MacPak-sub002/strpool"
)

// SerializeBinary encodes doc in the given format. Siblings keep
// document order, node/attribute indices follow document order, and
// for v3 the first-attribute/next-attribute chain is built in document
// order terminating at -1.
func SerializeBinary(doc *Document, format Format) ([]byte, error) {
	pool := strpool.New()

	type flatNode struct {
		node   *Node
		parent int32
	}
	var flatNodes []flatNode
	var flatAttrs []rawAttr
	var flatAttrOwner []int32 // owning node index, in attribute order
	var keys []rawKey
	valuesBuf := &bytes.Buffer{}

	nodeIndex := map[*Node]int32{}

	var walk func(n *Node, parent int32)
	walk = func(n *Node, parent int32) {
		idx := int32(len(flatNodes))
		nodeIndex[n] = idx
		flatNodes = append(flatNodes, flatNode{node: n, parent: parent})
		if n.HasKey {
			keys = append(keys, rawKey{NodeIndex: uint32(idx)})
		}
		for _, c := range n.Children {
			walk(c, idx)
		}
	}
	for _, region := range doc.Regions {
		walk(region.Root, -1)
	}

	// Second pass: attributes, now that every node has a stable index.
	firstAttrOf := make([]int32, len(flatNodes))
	for i := range firstAttrOf {
		firstAttrOf[i] = -1
	}
	lastAttrOf := make([]int32, len(flatNodes))
	for i := range lastAttrOf {
		lastAttrOf[i] = -1
	}
	for i, fn := range flatNodes {
		for _, a := range fn.node.Attributes {
			offset := uint32(valuesBuf.Len())
			length, err := encodeValue(valuesBuf, a.Value)
			if err != nil {
				return nil, fmt.Errorf("hc: encode attribute %s: %w", a.ID, err)
			}
			ref := pool.Intern(a.ID)
			typeInfo := uint32(a.Value.Type) | (length << 6)
			attrIdx := int32(len(flatAttrs))
			flatAttrs = append(flatAttrs, rawAttr{
				NameInner:  ref.Inner,
				NameOuter:  ref.Outer,
				TypeInfo:   typeInfo,
				NodeOrNext: -1, // patched below
				Offset:     offset,
			})
			flatAttrOwner = append(flatAttrOwner, int32(i))
			if firstAttrOf[i] < 0 {
				firstAttrOf[i] = attrIdx
			} else {
				flatAttrs[lastAttrOf[i]].NodeOrNext = attrIdx
			}
			lastAttrOf[i] = attrIdx
		}
	}

	for j, owner := range flatAttrOwner {
		if format == FormatV2 {
			flatAttrs[j].NodeOrNext = owner
		}
	}

	// names for nodes/regions, and node records.
	nodesBuf := &bytes.Buffer{}
	for i, fn := range flatNodes {
		ref := pool.Intern(fn.node.Name)
		binary.Write(nodesBuf, binary.LittleEndian, ref.Inner)
		binary.Write(nodesBuf, binary.LittleEndian, ref.Outer)
		if format == FormatV3 {
			binary.Write(nodesBuf, binary.LittleEndian, fn.parent)
			nextSibling := int32(-1)
			if fn.parent >= 0 {
				siblings := flatNodes[fn.parent].node.Children
				for k, s := range siblings {
					if s == fn.node && k+1 < len(siblings) {
						nextSibling = nodeIndex[siblings[k+1]]
					}
				}
			}
			binary.Write(nodesBuf, binary.LittleEndian, nextSibling)
			binary.Write(nodesBuf, binary.LittleEndian, firstAttrOf[i])
		} else {
			binary.Write(nodesBuf, binary.LittleEndian, firstAttrOf[i])
			binary.Write(nodesBuf, binary.LittleEndian, fn.parent)
		}
	}

	attrsBuf := &bytes.Buffer{}
	for _, ra := range flatAttrs {
		binary.Write(attrsBuf, binary.LittleEndian, ra.NameInner)
		binary.Write(attrsBuf, binary.LittleEndian, ra.NameOuter)
		binary.Write(attrsBuf, binary.LittleEndian, ra.TypeInfo)
		binary.Write(attrsBuf, binary.LittleEndian, ra.NodeOrNext)
		if format == FormatV3 {
			binary.Write(attrsBuf, binary.LittleEndian, ra.Offset)
		}
	}

	// Keys section emitted in node-index order.
	keysBuf := &bytes.Buffer{}
	for _, k := range keys {
		node := flatNodes[k.NodeIndex].node
		ref := pool.Intern(node.Key)
		packed := uint32(ref.Outer)<<16 | uint32(ref.Inner)
		binary.Write(keysBuf, binary.LittleEndian, k.NodeIndex)
		binary.Write(keysBuf, binary.LittleEndian, packed)
	}

	stringsBuf, err := serializeStrings(pool)
	if err != nil {
		return nil, err
	}

	return assembleBinary(doc.EngineVersion, format, stringsBuf, nodesBuf.Bytes(), attrsBuf.Bytes(), valuesBuf.Bytes(), keysBuf.Bytes())
}

func serializeStrings(pool *strpool.Pool) ([]byte, error) {
	buf := &bytes.Buffer{}
	buckets := pool.Buckets()
	binary.Write(buf, binary.LittleEndian, uint32(len(buckets)))
	for _, bucket := range buckets {
		binary.Write(buf, binary.LittleEndian, uint16(len(bucket)))
		for _, s := range bucket {
			binary.Write(buf, binary.LittleEndian, uint16(len(s)))
			buf.WriteString(s)
		}
	}
	return buf.Bytes(), nil
}

// assembleBinary compresses the five sections and writes the final
// header + payload layout. Strings use LZ4 block; nodes, attributes,
// values, and keys use LZ4 frame.
func assembleBinary(engineVersion uint64, format Format, stringsBuf, nodesBuf, attrsBuf, valuesBuf, keysBuf []byte) ([]byte, error) {
	stringsC, err := compress.Compress(compress.MethodLZ4Block, stringsBuf)
	if err != nil {
		return nil, err
	}
	nodesC, err := compress.Compress(compress.MethodLZ4Frame, nodesBuf)
	if err != nil {
		return nil, err
	}
	attrsC, err := compress.Compress(compress.MethodLZ4Frame, attrsBuf)
	if err != nil {
		return nil, err
	}
	valuesC, err := compress.Compress(compress.MethodLZ4Frame, valuesBuf)
	if err != nil {
		return nil, err
	}
	keysC, err := compress.Compress(compress.MethodLZ4Frame, keysBuf)
	if err != nil {
		return nil, err
	}

	out := &bytes.Buffer{}
	out.WriteString(magic)
	binary.Write(out, binary.LittleEndian, uint32(1))
	binary.Write(out, binary.LittleEndian, engineVersion)
	binary.Write(out, binary.LittleEndian, uint32(len(stringsBuf)))
	binary.Write(out, binary.LittleEndian, uint32(len(stringsC)))
	binary.Write(out, binary.LittleEndian, uint32(len(keysBuf)))
	binary.Write(out, binary.LittleEndian, uint32(len(keysC)))
	binary.Write(out, binary.LittleEndian, uint32(len(nodesBuf)))
	binary.Write(out, binary.LittleEndian, uint32(len(nodesC)))
	binary.Write(out, binary.LittleEndian, uint32(len(attrsBuf)))
	binary.Write(out, binary.LittleEndian, uint32(len(attrsC)))
	binary.Write(out, binary.LittleEndian, uint32(len(valuesBuf)))
	binary.Write(out, binary.LittleEndian, uint32(len(valuesC)))
	binary.Write(out, binary.LittleEndian, uint32(0x22)) // lz4 | default compress
	metadataFormat := uint32(0)
	if format == FormatV3 {
		metadataFormat = 1
	}
	binary.Write(out, binary.LittleEndian, metadataFormat)

	out.Write(stringsC)
	out.Write(nodesC)
	out.Write(attrsC)
	out.Write(valuesC)
	out.Write(keysC)

	return out.Bytes(), nil
}

// encodeValue appends v's payload to buf and returns its byte length.
func encodeValue(buf *bytes.Buffer, v Value) (uint32, error) {
	start := buf.Len()
	switch v.Type {
	case TypeBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		buf.WriteByte(b)
	case TypeByte, TypeInt8:
		buf.WriteByte(byte(int8(v.Int)))
	case TypeShort:
		binary.Write(buf, binary.LittleEndian, int16(v.Int))
	case TypeUShort:
		binary.Write(buf, binary.LittleEndian, uint16(v.UInt))
	case TypeInt:
		binary.Write(buf, binary.LittleEndian, int32(v.Int))
	case TypeUInt:
		binary.Write(buf, binary.LittleEndian, uint32(v.UInt))
	case TypeFloat:
		binary.Write(buf, binary.LittleEndian, math.Float32bits(float32(v.Float)))
	case TypeDouble:
		binary.Write(buf, binary.LittleEndian, math.Float64bits(v.Float))
	case TypeULongLong, TypeOldInt64:
		binary.Write(buf, binary.LittleEndian, v.UInt)
	case TypeInt64:
		binary.Write(buf, binary.LittleEndian, v.Int)
	case TypeIVec2, TypeIVec3, TypeIVec4:
		for _, x := range v.IVec {
			binary.Write(buf, binary.LittleEndian, x)
		}
	case TypeVec2, TypeVec3, TypeVec4:
		for _, x := range v.Vec {
			binary.Write(buf, binary.LittleEndian, math.Float32bits(x))
		}
	case TypeMat2, TypeMat3, TypeMat3x4, TypeMat4x3, TypeMat4:
		for _, row := range v.Mat {
			for _, x := range row {
				binary.Write(buf, binary.LittleEndian, math.Float32bits(x))
			}
		}
	case TypeString, TypePath, TypeFixedString, TypeLSString, TypeWString, TypeLSWString:
		buf.WriteString(v.Str)
		buf.WriteByte(0)
	case TypeScratchBuffer:
		buf.Write(v.Buf)
	case TypeUUID:
		b, _ := v.UUID.MarshalBinary()
		buf.Write(b)
	case TypeTranslatedString, TypeTranslatedFSString:
		binary.Write(buf, binary.LittleEndian, v.TS.Version)
		buf.WriteString(v.TS.Handle)
		buf.WriteByte(0)
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, v.Type)
	}
	return uint32(buf.Len() - start), nil
}
