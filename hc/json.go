package hc

import (
	"encoding/json"
	"fmt"
)

// jsonSave mirrors the on-disk {save: {header: {...}, regions: {...}}}
// shape.
type jsonSave struct {
	Save jsonSaveBody `json:"save"`
}

type jsonSaveBody struct {
	Header  jsonHeader                 `json:"header"`
	Regions map[string]json.RawMessage `json:"regions"`
}

type jsonHeader struct {
	Version uint64 `json:"version"`
}

// jsonMetaKey is the reserved node-object key carrying the lslib_meta
// annotation; no attribute or child group may use it.
const jsonMetaKey = "__meta"

type jsonAttribute struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Handle  string `json:"handle,omitempty"`
	Version uint16 `json:"version,omitempty"`
}

// ParseJSON decodes the JSON encoding. Each region object holds its root
// node object under the root node's own name. This encoding is lossy
// for v3 documents (no sibling-order or key channel), so the result is
// always a FormatV3-shaped in-memory tree. Regions, attributes and child
// groups are visited in Go map iteration order, not in the order they
// appear in the JSON text; callers that need v2 semantics back must
// canonicalize explicitly.
func ParseJSON(data []byte) (*Document, error) {
	var save jsonSave
	if err := json.Unmarshal(data, &save); err != nil {
		return nil, fmt.Errorf("hc: json: %w", err)
	}
	doc := NewDocument(save.Save.Header.Version, FormatV3)
	for name, raw := range save.Save.Regions {
		var nodes map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return nil, fmt.Errorf("hc: json region %s: %w", name, err)
		}
		for nodeID, nodeRaw := range nodes {
			var nodeObj map[string]json.RawMessage
			if err := json.Unmarshal(nodeRaw, &nodeObj); err != nil {
				return nil, fmt.Errorf("hc: json region %s node %s: %w", name, nodeID, err)
			}
			root, err := parseJSONNode(doc, nodeID, nodeObj)
			if err != nil {
				return nil, err
			}
			doc.AddRegion(name, root)
		}
	}
	return doc, nil
}

// parseJSONNode decodes one node object. Each key is either an
// attribute ({"type":...,"value":...}), a child group (a JSON array of
// node objects sharing that key as their name), or the reserved
// "__meta" annotation string.
func parseJSONNode(doc *Document, name string, obj map[string]json.RawMessage) (*Node, error) {
	n := &Node{Name: name}
	for key, raw := range obj {
		if key == jsonMetaKey {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("hc: json node %s.%s: %w", name, key, err)
			}
			doc.Meta[n] = s
			continue
		}
		var probe interface{}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("hc: json node %s.%s: %w", name, key, err)
		}
		switch probe.(type) {
		case []interface{}:
			var children []map[string]json.RawMessage
			if err := json.Unmarshal(raw, &children); err != nil {
				return nil, fmt.Errorf("hc: json node %s.%s children: %w", name, key, err)
			}
			for _, c := range children {
				child, err := parseJSONNode(doc, key, c)
				if err != nil {
					return nil, err
				}
				n.AddChild(child)
			}
		default:
			var ja jsonAttribute
			if err := json.Unmarshal(raw, &ja); err != nil {
				return nil, fmt.Errorf("hc: json node %s.%s attribute: %w", name, key, err)
			}
			typ, ok := attrTypeNames[ja.Type]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownType, ja.Type)
			}
			v := Value{Type: typ}
			if typ == TypeTranslatedString || typ == TypeTranslatedFSString {
				v.TS = TranslatedString{Handle: ja.Handle, Version: ja.Version, Text: ja.Value, HasText: ja.Value != ""}
			} else if err := parseScalarValue(&v, typ, ja.Value); err != nil {
				return nil, err
			}
			n.Attributes = append(n.Attributes, &Attribute{ID: key, Value: v})
		}
	}
	return n, nil
}

// SerializeJSON encodes doc as JSON.
func SerializeJSON(doc *Document) ([]byte, error) {
	regions := make(map[string]interface{}, len(doc.Regions))
	for _, region := range doc.Regions {
		regions[region.Name] = map[string]interface{}{region.Root.Name: buildJSONNode(doc, region.Root)}
	}
	save := jsonSave{Save: jsonSaveBody{Header: jsonHeader{Version: doc.EngineVersion}}}
	out := map[string]interface{}{
		"save": map[string]interface{}{
			"header":  save.Save.Header,
			"regions": regions,
		},
	}
	return json.MarshalIndent(out, "", "  ")
}

func buildJSONNode(doc *Document, n *Node) map[string]interface{} {
	obj := make(map[string]interface{})
	if meta := doc.Meta[n]; meta != "" {
		obj[jsonMetaKey] = meta
	}
	for _, a := range n.Attributes {
		typeName, ok := attrTypeByID[a.Value.Type]
		if !ok {
			continue
		}
		if a.Value.Type == TypeTranslatedString || a.Value.Type == TypeTranslatedFSString {
			ja := jsonAttribute{Type: typeName, Handle: a.Value.TS.Handle, Version: a.Value.TS.Version}
			if a.Value.TS.HasText {
				ja.Value = a.Value.TS.Text
			}
			obj[a.ID] = ja
		} else {
			obj[a.ID] = jsonAttribute{Type: typeName, Value: formatScalarValue(a.Value)}
		}
	}
	groups := make(map[string][]interface{})
	var order []string
	for _, c := range n.Children {
		if _, ok := groups[c.Name]; !ok {
			order = append(order, c.Name)
		}
		groups[c.Name] = append(groups[c.Name], buildJSONNode(doc, c))
	}
	for _, name := range order {
		obj[name] = groups[name]
	}
	return obj
}
