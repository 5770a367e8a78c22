package hc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/CyberDeco/MacPak-sub002/compress"
	"github.com/CyberDeco/MacPak-sub002/strpool"
	"github.com/google/uuid"
)

const magic = "LSOF"

type header struct {
	Version             uint32
	EngineVersion        uint64
	StringsUSize         uint32
	StringsCSize         uint32
	KeysUSize            uint32
	KeysCSize            uint32
	NodesUSize           uint32
	NodesCSize           uint32
	AttributesUSize      uint32
	AttributesCSize      uint32
	ValuesUSize          uint32
	ValuesCSize          uint32
	CompressionFlags     uint32
	MetadataFormat       uint32
}

const headerSize = 64

// ParseBinary decodes a binary hierarchical container.
func ParseBinary(data []byte) (*Document, error) {
	if len(data) < headerSize || string(data[:4]) != magic {
		return nil, ErrBadMagic
	}

	var h header
	r := bytes.NewReader(data[4:headerSize])
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return nil, fmt.Errorf("hc: read version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.EngineVersion); err != nil {
		return nil, fmt.Errorf("hc: read engine version: %w", err)
	}
	for _, f := range []*uint32{
		&h.StringsUSize, &h.StringsCSize,
		&h.KeysUSize, &h.KeysCSize,
		&h.NodesUSize, &h.NodesCSize,
		&h.AttributesUSize, &h.AttributesCSize,
		&h.ValuesUSize, &h.ValuesCSize,
		&h.CompressionFlags, &h.MetadataFormat,
	} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("hc: read header: %w", err)
		}
	}

	format := FormatV2
	if h.MetadataFormat == 1 {
		format = FormatV3
	} else if h.MetadataFormat != 0 && h.MetadataFormat != 2 {
		return nil, fmt.Errorf("%w: metadata_format=%d", ErrUnsupportedFeature, h.MetadataFormat)
	}

	off := headerSize
	take := func(usize, csize uint32) ([]byte, error) {
		if off+int(csize) > len(data) {
			return nil, ErrTruncatedSection
		}
		b := data[off : off+int(csize)]
		off += int(csize)
		return b, nil
	}

	stringsRaw, err := take(h.StringsUSize, h.StringsCSize)
	if err != nil {
		return nil, err
	}
	nodesRaw, err := take(h.NodesUSize, h.NodesCSize)
	if err != nil {
		return nil, err
	}
	attributesRaw, err := take(h.AttributesUSize, h.AttributesCSize)
	if err != nil {
		return nil, err
	}
	valuesRaw, err := take(h.ValuesUSize, h.ValuesCSize)
	if err != nil {
		return nil, err
	}
	keysRaw, err := take(h.KeysUSize, h.KeysCSize)
	if err != nil {
		return nil, err
	}

	zlibFlag := h.CompressionFlags&0xF == 1

	stringsBuf, err := decompressSectionBuf(stringsRaw, int(h.StringsUSize), true, zlibFlag)
	if err != nil {
		return nil, fmt.Errorf("hc: strings section: %w", err)
	}
	nodesBuf, err := decompressSectionBuf(nodesRaw, int(h.NodesUSize), false, zlibFlag)
	if err != nil {
		return nil, fmt.Errorf("hc: nodes section: %w", err)
	}
	attributesBuf, err := decompressSectionBuf(attributesRaw, int(h.AttributesUSize), false, zlibFlag)
	if err != nil {
		return nil, fmt.Errorf("hc: attributes section: %w", err)
	}
	valuesBuf, err := decompressSectionBuf(valuesRaw, int(h.ValuesUSize), false, zlibFlag)
	if err != nil {
		return nil, fmt.Errorf("hc: values section: %w", err)
	}
	keysBuf, err := decompressSectionBuf(keysRaw, int(h.KeysUSize), false, zlibFlag)
	if err != nil {
		return nil, fmt.Errorf("hc: keys section: %w", err)
	}
	buckets, err := parseStrings(stringsBuf)
	if err != nil {
		return nil, err
	}
	pool := strpool.NewWithBuckets(buckets)

	var nodes []rawNode
	var attrs []rawAttr
	if format == FormatV3 {
		nodes, err = parseNodesV3(nodesBuf)
		if err != nil {
			return nil, err
		}
		attrs, err = parseAttrsV3(attributesBuf)
		if err != nil {
			return nil, err
		}
	} else {
		nodes, err = parseNodesV2(nodesBuf)
		if err != nil {
			return nil, err
		}
		attrs, err = parseAttrsV2(attributesBuf)
		if err != nil {
			return nil, err
		}
	}

	keys, err := parseKeys(keysBuf)
	if err != nil {
		return nil, err
	}

	doc, err := assemble(pool, nodes, attrs, keys, valuesBuf, format)
	if err != nil {
		return nil, err
	}
	doc.EngineVersion = h.EngineVersion
	return doc, nil
}

// decompressSectionBuf applies the format's per-section convention:
// strings always LZ4 block; other sections LZ4 frame unless the flag
// word says zlib. A section whose compressed size equals its
// uncompressed size is raw.
func decompressSectionBuf(raw []byte, uncompressedSize int, isStrings bool, zlibFlag bool) ([]byte, error) {
	if len(raw) == uncompressedSize {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}
	if zlibFlag {
		return compress.Decompress(compress.MethodZlib, raw, uncompressedSize)
	}
	if isStrings {
		return compress.Decompress(compress.MethodLZ4Block, raw, uncompressedSize)
	}
	return compress.Decompress(compress.MethodLZ4Frame, raw, uncompressedSize)
}

// parseStrings reads the names section: outer-count u32, then per
// bucket: inner-count u16, then inner_count x (u16 length, UTF-8 bytes).
func parseStrings(buf []byte) ([][]string, error) {
	r := bytes.NewReader(buf)
	var outerCount uint32
	if err := binary.Read(r, binary.LittleEndian, &outerCount); err != nil {
		if len(buf) == 0 {
			return [][]string{}, nil
		}
		return nil, fmt.Errorf("hc: strings outer count: %w", err)
	}
	buckets := make([][]string, 0, outerCount)
	for i := uint32(0); i < outerCount; i++ {
		var innerCount uint16
		if err := binary.Read(r, binary.LittleEndian, &innerCount); err != nil {
			return nil, fmt.Errorf("hc: strings inner count: %w", err)
		}
		bucket := make([]string, 0, innerCount)
		for j := uint16(0); j < innerCount; j++ {
			var length uint16
			if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
				return nil, fmt.Errorf("hc: strings entry length: %w", err)
			}
			strBytes := make([]byte, length)
			if _, err := r.Read(strBytes); err != nil {
				return nil, fmt.Errorf("hc: strings entry bytes: %w", err)
			}
			bucket = append(bucket, string(strBytes))
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

type rawNode struct {
	NameInner, NameOuter uint16
	FirstAttribute       int32
	Parent               int32
	NextSibling          int32 // v3 only
}

type rawAttr struct {
	NameInner, NameOuter uint16
	TypeInfo             uint32
	NodeOrNext           int32 // v2: node index; v3: next attribute index
	Offset               uint32 // v3 only
}

type rawKey struct {
	NodeIndex uint32
	Name      strpool.Ref
}

func parseNodesV2(buf []byte) ([]rawNode, error) {
	const recSize = 12
	if len(buf)%recSize != 0 {
		return nil, ErrTruncatedSection
	}
	n := len(buf) / recSize
	nodes := make([]rawNode, n)
	r := bytes.NewReader(buf)
	for i := 0; i < n; i++ {
		var rn rawNode
		binary.Read(r, binary.LittleEndian, &rn.NameInner)
		binary.Read(r, binary.LittleEndian, &rn.NameOuter)
		binary.Read(r, binary.LittleEndian, &rn.FirstAttribute)
		binary.Read(r, binary.LittleEndian, &rn.Parent)
		rn.NextSibling = -1
		nodes[i] = rn
	}
	return nodes, nil
}

func parseNodesV3(buf []byte) ([]rawNode, error) {
	const recSize = 16
	if len(buf)%recSize != 0 {
		return nil, ErrTruncatedSection
	}
	n := len(buf) / recSize
	nodes := make([]rawNode, n)
	r := bytes.NewReader(buf)
	for i := 0; i < n; i++ {
		var rn rawNode
		binary.Read(r, binary.LittleEndian, &rn.NameInner)
		binary.Read(r, binary.LittleEndian, &rn.NameOuter)
		binary.Read(r, binary.LittleEndian, &rn.Parent)
		binary.Read(r, binary.LittleEndian, &rn.NextSibling)
		binary.Read(r, binary.LittleEndian, &rn.FirstAttribute)
		nodes[i] = rn
	}
	return nodes, nil
}

func parseAttrsV2(buf []byte) ([]rawAttr, error) {
	const recSize = 12
	if len(buf)%recSize != 0 {
		return nil, ErrTruncatedSection
	}
	n := len(buf) / recSize
	attrs := make([]rawAttr, n)
	r := bytes.NewReader(buf)
	for i := 0; i < n; i++ {
		var ra rawAttr
		binary.Read(r, binary.LittleEndian, &ra.NameInner)
		binary.Read(r, binary.LittleEndian, &ra.NameOuter)
		binary.Read(r, binary.LittleEndian, &ra.TypeInfo)
		binary.Read(r, binary.LittleEndian, &ra.NodeOrNext)
		attrs[i] = ra
	}
	return attrs, nil
}

func parseAttrsV3(buf []byte) ([]rawAttr, error) {
	const recSize = 16
	if len(buf)%recSize != 0 {
		return nil, ErrTruncatedSection
	}
	n := len(buf) / recSize
	attrs := make([]rawAttr, n)
	r := bytes.NewReader(buf)
	for i := 0; i < n; i++ {
		var ra rawAttr
		binary.Read(r, binary.LittleEndian, &ra.NameInner)
		binary.Read(r, binary.LittleEndian, &ra.NameOuter)
		binary.Read(r, binary.LittleEndian, &ra.TypeInfo)
		binary.Read(r, binary.LittleEndian, &ra.NodeOrNext)
		binary.Read(r, binary.LittleEndian, &ra.Offset)
		attrs[i] = ra
	}
	return attrs, nil
}

func parseKeys(buf []byte) ([]rawKey, error) {
	const recSize = 8
	if len(buf)%recSize != 0 {
		return nil, ErrTruncatedSection
	}
	n := len(buf) / recSize
	keys := make([]rawKey, n)
	r := bytes.NewReader(buf)
	for i := 0; i < n; i++ {
		var nodeIdx uint32
		var packed uint32
		binary.Read(r, binary.LittleEndian, &nodeIdx)
		binary.Read(r, binary.LittleEndian, &packed)
		keys[i] = rawKey{
			NodeIndex: nodeIdx,
			Name:      strpool.Ref{Outer: uint16(packed >> 16), Inner: uint16(packed & 0xFFFF)},
		}
	}
	return keys, nil
}

// extractValue decodes a single attribute's payload from the values
// section at the given byte offset and length.
func extractValue(values []byte, offset, length uint32, typ AttrType) (Value, error) {
	if int(offset)+int(length) > len(values) {
		return Value{}, ErrTruncatedSection
	}
	payload := values[offset : offset+length]
	v := Value{Type: typ}

	switch typ {
	case TypeBool:
		v.Bool = len(payload) > 0 && payload[0] != 0
	case TypeByte, TypeInt8:
		if len(payload) >= 1 {
			v.Int = int64(int8(payload[0]))
		}
	case TypeShort:
		v.Int = int64(int16(binary.LittleEndian.Uint16(payload)))
	case TypeUShort:
		v.UInt = uint64(binary.LittleEndian.Uint16(payload))
	case TypeInt:
		v.Int = int64(int32(binary.LittleEndian.Uint32(payload)))
	case TypeUInt:
		v.UInt = uint64(binary.LittleEndian.Uint32(payload))
	case TypeFloat:
		v.Float = float64(float32FromBits(binary.LittleEndian.Uint32(payload)))
	case TypeDouble:
		v.Float = float64FromBits(binary.LittleEndian.Uint64(payload))
	case TypeULongLong, TypeOldInt64:
		v.UInt = binary.LittleEndian.Uint64(payload)
	case TypeInt64:
		v.Int = int64(binary.LittleEndian.Uint64(payload))
	case TypeIVec2, TypeIVec3, TypeIVec4:
		n := len(payload) / 4
		v.IVec = make([]int32, n)
		for i := 0; i < n; i++ {
			v.IVec[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
		}
	case TypeVec2, TypeVec3, TypeVec4:
		n := len(payload) / 4
		v.Vec = make([]float32, n)
		for i := 0; i < n; i++ {
			v.Vec[i] = float32FromBits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
	case TypeMat2, TypeMat3, TypeMat3x4, TypeMat4x3, TypeMat4:
		rows, cols := matDims(typ)
		v.Mat = make([][]float32, rows)
		idx := 0
		for r := 0; r < rows; r++ {
			row := make([]float32, cols)
			for c := 0; c < cols; c++ {
				row[c] = float32FromBits(binary.LittleEndian.Uint32(payload[idx*4:]))
				idx++
			}
			v.Mat[r] = row
		}
	case TypeString, TypePath, TypeFixedString, TypeLSString, TypeWString, TypeLSWString:
		v.Str = string(trimNull(payload))
	case TypeScratchBuffer:
		v.Buf = append([]byte(nil), payload...)
	case TypeUUID:
		id, err := uuid.FromBytes(payload)
		if err != nil {
			return Value{}, fmt.Errorf("hc: uuid attribute: %w", err)
		}
		v.UUID = id
	case TypeTranslatedString, TypeTranslatedFSString:
		ts, err := extractTranslatedString(payload)
		if err != nil {
			return Value{}, err
		}
		v.TS = ts
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	return v, nil
}

// extractTranslatedString decodes type 28's handle+version payload: a
// 2-byte version followed by a null-terminated handle string, mirroring
// how LSLib-family readers lay out TranslatedString.
func extractTranslatedString(payload []byte) (TranslatedString, error) {
	if len(payload) < 2 {
		return TranslatedString{}, ErrTruncatedSection
	}
	version := binary.LittleEndian.Uint16(payload[:2])
	handle := string(trimNull(payload[2:]))
	return TranslatedString{Handle: handle, Version: version}, nil
}

func trimNull(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func matDims(t AttrType) (rows, cols int) {
	switch t {
	case TypeMat2:
		return 2, 2
	case TypeMat3:
		return 3, 3
	case TypeMat3x4:
		return 3, 4
	case TypeMat4x3:
		return 4, 3
	case TypeMat4:
		return 4, 4
	}
	return 0, 0
}

func float32FromBits(b uint32) float32 {
	return math.Float32frombits(b)
}

func float64FromBits(b uint64) float64 {
	return math.Float64frombits(b)
}
