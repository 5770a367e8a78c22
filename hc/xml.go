package hc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// attrTypeNames maps the XML/JSON type name strings to AttrType, the
// LSLib-family convention both text encodings rely on.
var attrTypeNames = map[string]AttrType{
	"None": TypeNone, "Byte": TypeByte, "Short": TypeShort, "UShort": TypeUShort,
	"Int": TypeInt, "UInt": TypeUInt, "Float": TypeFloat, "Double": TypeDouble,
	"IVec2": TypeIVec2, "IVec3": TypeIVec3, "IVec4": TypeIVec4,
	"Vec2": TypeVec2, "Vec3": TypeVec3, "Vec4": TypeVec4,
	"Mat2": TypeMat2, "Mat3": TypeMat3, "Mat3x4": TypeMat3x4, "Mat4x3": TypeMat4x3, "Mat4": TypeMat4,
	"Bool": TypeBool, "String": TypeString, "Path": TypePath, "FixedString": TypeFixedString,
	"LSString": TypeLSString, "ULongLong": TypeULongLong, "ScratchBuffer": TypeScratchBuffer,
	"OldInt64": TypeOldInt64, "Int8": TypeInt8, "TranslatedString": TypeTranslatedString,
	"WString": TypeWString, "LSWString": TypeLSWString, "UUID": TypeUUID,
	"Int64": TypeInt64, "TranslatedFSString": TypeTranslatedFSString,
}

var attrTypeByID = func() map[AttrType]string {
	m := make(map[AttrType]string, len(attrTypeNames))
	for k, v := range attrTypeNames {
		m[v] = k
	}
	return m
}()

// ParseXML decodes the XML encoding.
func ParseXML(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	doc := NewDocument(0, FormatV3)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hc: xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "save" {
			continue
		}
		if err := parseSaveBody(dec, doc); err != nil {
			return nil, err
		}
		break
	}
	return doc, nil
}

func attrVal(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func parseSaveBody(dec *xml.Decoder, doc *Document) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("hc: xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "header":
				if v, ok := attrVal(t, "version"); ok {
					n, _ := strconv.ParseUint(v, 10, 64)
					doc.EngineVersion = n
				}
				skipElement(dec)
			case "region":
				id, _ := attrVal(t, "id")
				root, err := parseRegionBody(dec, doc)
				if err != nil {
					return err
				}
				doc.AddRegion(id, root)
			default:
				skipElement(dec)
			}
		case xml.EndElement:
			if t.Name.Local == "save" {
				return nil
			}
		}
	}
}

// parseRegionBody expects exactly one root <node> and returns it.
func parseRegionBody(dec *xml.Decoder, doc *Document) (*Node, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("hc: xml region: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "node" {
				return parseNodeBody(dec, doc, t)
			}
			skipElement(dec)
		case xml.EndElement:
			if t.Name.Local == "region" {
				return nil, fmt.Errorf("hc: xml region has no root node")
			}
		}
	}
}

func parseNodeBody(dec *xml.Decoder, doc *Document, start xml.StartElement) (*Node, error) {
	id, _ := attrVal(start, "id")
	n := &Node{Name: id}
	if key, ok := attrVal(start, "key"); ok {
		n.Key = key
		n.HasKey = true
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("hc: xml node: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "attribute":
				attr, err := parseAttributeElement(t)
				if err != nil {
					return nil, err
				}
				n.Attributes = append(n.Attributes, attr)
				skipElement(dec)
			case "children":
				if err := parseChildrenBody(dec, doc, n); err != nil {
					return nil, err
				}
			case "node":
				child, err := parseNodeBody(dec, doc, t)
				if err != nil {
					return nil, err
				}
				n.AddChild(child)
			case "lslib_meta":
				if v, ok := attrVal(t, "value"); ok {
					doc.Meta[n] = v
				}
				skipElement(dec)
			default:
				skipElement(dec)
			}
		case xml.EndElement:
			if t.Name.Local == "node" {
				return n, nil
			}
		}
	}
}

func parseChildrenBody(dec *xml.Decoder, doc *Document, parent *Node) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("hc: xml children: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "node" {
				child, err := parseNodeBody(dec, doc, t)
				if err != nil {
					return err
				}
				parent.AddChild(child)
			} else {
				skipElement(dec)
			}
		case xml.EndElement:
			if t.Name.Local == "children" {
				return nil
			}
		}
	}
}

func parseAttributeElement(start xml.StartElement) (*Attribute, error) {
	id, _ := attrVal(start, "id")
	typeName, _ := attrVal(start, "type")
	typ, ok := attrTypeNames[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	value, hasValue := attrVal(start, "value")
	handle, hasHandle := attrVal(start, "handle")
	versionStr, _ := attrVal(start, "version")

	v := Value{Type: typ}
	switch typ {
	case TypeTranslatedString, TypeTranslatedFSString:
		var version uint64
		if versionStr != "" {
			version, _ = strconv.ParseUint(versionStr, 10, 16)
		}
		v.TS = TranslatedString{Handle: handle, Version: uint16(version), Text: value, HasText: hasValue}
		_ = hasHandle
	default:
		if err := parseScalarValue(&v, typ, value); err != nil {
			return nil, err
		}
	}
	return &Attribute{ID: id, Value: v}, nil
}

func parseScalarValue(v *Value, typ AttrType, s string) error {
	switch typ {
	case TypeBool:
		v.Bool = s == "True" || s == "true" || s == "1"
	case TypeByte, TypeShort, TypeInt, TypeInt8, TypeInt64, TypeOldInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("hc: xml attribute int value %q: %w", s, err)
		}
		v.Int = n
	case TypeUShort, TypeUInt, TypeULongLong:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("hc: xml attribute uint value %q: %w", s, err)
		}
		v.UInt = n
	case TypeFloat, TypeDouble:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("hc: xml attribute float value %q: %w", s, err)
		}
		v.Float = n
	case TypeIVec2, TypeIVec3, TypeIVec4:
		parts := strings.Fields(s)
		v.IVec = make([]int32, len(parts))
		for i, p := range parts {
			n, _ := strconv.ParseInt(p, 10, 32)
			v.IVec[i] = int32(n)
		}
	case TypeVec2, TypeVec3, TypeVec4:
		parts := strings.Fields(s)
		v.Vec = make([]float32, len(parts))
		for i, p := range parts {
			n, _ := strconv.ParseFloat(p, 32)
			v.Vec[i] = float32(n)
		}
	case TypeMat2, TypeMat3, TypeMat3x4, TypeMat4x3, TypeMat4:
		rows, cols := matDims(typ)
		parts := strings.Fields(s)
		v.Mat = make([][]float32, rows)
		idx := 0
		for r := 0; r < rows; r++ {
			row := make([]float32, cols)
			for c := 0; c < cols; c++ {
				if idx < len(parts) {
					n, _ := strconv.ParseFloat(parts[idx], 32)
					row[c] = float32(n)
				}
				idx++
			}
			v.Mat[r] = row
		}
	case TypeString, TypePath, TypeFixedString, TypeLSString, TypeWString, TypeLSWString:
		v.Str = s
	case TypeScratchBuffer:
		v.Buf = []byte(s)
	case TypeUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("hc: xml attribute uuid value %q: %w", s, err)
		}
		v.UUID = id
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	return nil
}

func skipElement(dec *xml.Decoder) {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
}

// SerializeXML encodes doc as XML.
func SerializeXML(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString("<save>\n")
	fmt.Fprintf(&buf, "  <header version=\"%d\"/>\n", doc.EngineVersion)
	for _, region := range doc.Regions {
		fmt.Fprintf(&buf, "  <region id=%q>\n", region.Name)
		if err := writeNodeXML(&buf, doc, region.Root, 2); err != nil {
			return nil, err
		}
		buf.WriteString("  </region>\n")
	}
	buf.WriteString("</save>\n")
	return buf.Bytes(), nil
}

func writeNodeXML(buf *bytes.Buffer, doc *Document, n *Node, indent int) error {
	pad := strings.Repeat("  ", indent)
	meta := doc.Meta[n]
	buf.WriteString(pad + "<node id=" + quoteAttr(n.Name))
	if n.HasKey {
		buf.WriteString(" key=" + quoteAttr(n.Key))
	}
	if len(n.Attributes) == 0 && len(n.Children) == 0 && meta == "" {
		buf.WriteString("/>\n")
		return nil
	}
	buf.WriteString(">\n")
	if meta != "" {
		buf.WriteString(strings.Repeat("  ", indent+1) + "<lslib_meta value=" + quoteAttr(meta) + "/>\n")
	}
	for _, a := range n.Attributes {
		if err := writeAttributeXML(buf, a, indent+1); err != nil {
			return err
		}
	}
	if len(n.Children) > 0 {
		childPad := strings.Repeat("  ", indent+1)
		buf.WriteString(childPad + "<children>\n")
		for _, c := range n.Children {
			if err := writeNodeXML(buf, doc, c, indent+2); err != nil {
				return err
			}
		}
		buf.WriteString(childPad + "</children>\n")
	}
	buf.WriteString(pad + "</node>\n")
	return nil
}

func writeAttributeXML(buf *bytes.Buffer, a *Attribute, indent int) error {
	pad := strings.Repeat("  ", indent)
	typeName, ok := attrTypeByID[a.Value.Type]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownType, a.Value.Type)
	}
	buf.WriteString(pad + "<attribute id=" + quoteAttr(a.ID) + " type=" + quoteAttr(typeName))
	if a.Value.Type == TypeTranslatedString || a.Value.Type == TypeTranslatedFSString {
		buf.WriteString(" handle=" + quoteAttr(a.Value.TS.Handle))
		fmt.Fprintf(buf, " version=\"%d\"", a.Value.TS.Version)
		if a.Value.TS.HasText {
			buf.WriteString(" value=" + quoteAttr(a.Value.TS.Text))
		}
	} else {
		buf.WriteString(" value=" + quoteAttr(formatScalarValue(a.Value)))
	}
	buf.WriteString("/>\n")
	return nil
}

func formatScalarValue(v Value) string {
	switch v.Type {
	case TypeBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case TypeByte, TypeShort, TypeInt, TypeInt8, TypeInt64, TypeOldInt64:
		return strconv.FormatInt(v.Int, 10)
	case TypeUShort, TypeUInt, TypeULongLong:
		return strconv.FormatUint(v.UInt, 10)
	case TypeFloat, TypeDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeIVec2, TypeIVec3, TypeIVec4:
		parts := make([]string, len(v.IVec))
		for i, x := range v.IVec {
			parts[i] = strconv.FormatInt(int64(x), 10)
		}
		return strings.Join(parts, " ")
	case TypeVec2, TypeVec3, TypeVec4:
		parts := make([]string, len(v.Vec))
		for i, x := range v.Vec {
			parts[i] = strconv.FormatFloat(float64(x), 'g', -1, 32)
		}
		return strings.Join(parts, " ")
	case TypeMat2, TypeMat3, TypeMat3x4, TypeMat4x3, TypeMat4:
		var parts []string
		for _, row := range v.Mat {
			for _, x := range row {
				parts = append(parts, strconv.FormatFloat(float64(x), 'g', -1, 32))
			}
		}
		return strings.Join(parts, " ")
	case TypeString, TypePath, TypeFixedString, TypeLSString, TypeWString, TypeLSWString:
		return v.Str
	case TypeScratchBuffer:
		return string(v.Buf)
	case TypeUUID:
		return v.UUID.String()
	default:
		return ""
	}
}

func quoteAttr(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return `"` + b.String() + `"`
}
