package hc

import (
	"fmt"

	"github.com/CyberDeco/MacPak-sub002/strpool"
)

// assemble reconstructs the node tree and document from the flat arrays
// a binary parse produces.
func assemble(pool *strpool.Pool, rawNodes []rawNode, rawAttrs []rawAttr, keys []rawKey, valuesBuf []byte, format Format) (*Document, error) {
	nodes := make([]*Node, len(rawNodes))
	for i, rn := range rawNodes {
		name, err := pool.Name(strpool.Ref{Outer: rn.NameOuter, Inner: rn.NameInner})
		if err != nil {
			return nil, fmt.Errorf("hc: node %d name: %w", i, ErrIndexOutOfRange)
		}
		nodes[i] = &Node{Name: name}
	}

	// Parent linkage + child ordering is the same shape in both formats:
	// iterate in index order and append to the parent's child list.
	for i, rn := range rawNodes {
		if rn.Parent >= 0 {
			if int(rn.Parent) >= len(nodes) {
				return nil, fmt.Errorf("hc: node %d parent: %w", i, ErrIndexOutOfRange)
			}
			nodes[rn.Parent].AddChild(nodes[i])
		}
	}

	if format == FormatV3 {
		if err := attachAttributesV3(pool, nodes, rawNodes, rawAttrs, valuesBuf); err != nil {
			return nil, err
		}
	} else {
		if err := attachAttributesV2(pool, nodes, rawAttrs, valuesBuf); err != nil {
			return nil, err
		}
	}

	for _, k := range keys {
		if int(k.NodeIndex) >= len(nodes) {
			return nil, fmt.Errorf("hc: key entry: %w", ErrIndexOutOfRange)
		}
		name, err := pool.Name(k.Name)
		if err != nil {
			return nil, fmt.Errorf("hc: key name: %w", ErrIndexOutOfRange)
		}
		nodes[k.NodeIndex].Key = name
		nodes[k.NodeIndex].HasKey = true
	}

	doc := NewDocument(0, format)
	for i, rn := range rawNodes {
		if rn.Parent < 0 {
			name, err := pool.Name(strpool.Ref{Outer: rn.NameOuter, Inner: rn.NameInner})
			if err != nil {
				return nil, fmt.Errorf("hc: region %d name: %w", i, ErrIndexOutOfRange)
			}
			doc.AddRegion(name, nodes[i])
		}
	}
	return doc, nil
}

// attachAttributesV2 groups the flat attribute array by its node_index
// field: a bottom-up pass over the flat array suffices since v2 has no
// sibling chain to walk.
func attachAttributesV2(pool *strpool.Pool, nodes []*Node, rawAttrs []rawAttr, valuesBuf []byte) error {
	type posAttr struct {
		idx  int
		attr *Attribute
	}
	byNode := make(map[int32][]posAttr)
	offset := uint32(0)
	for i, ra := range rawAttrs {
		name, err := pool.Name(strpool.Ref{Outer: ra.NameOuter, Inner: ra.NameInner})
		if err != nil {
			return fmt.Errorf("hc: attribute %d name: %w", i, ErrIndexOutOfRange)
		}
		typ := AttrType(ra.TypeInfo & 0x3F)
		length := ra.TypeInfo >> 6
		if IsFixedSize(typ) {
			length = uint32(fixedSizes[typ])
		}
		val, err := extractValue(valuesBuf, offset, length, typ)
		if err != nil {
			return fmt.Errorf("hc: attribute %d (%s) value: %w", i, name, err)
		}
		offset += length
		if int(ra.NodeOrNext) >= len(nodes) || ra.NodeOrNext < 0 {
			return fmt.Errorf("hc: attribute %d node index: %w", i, ErrIndexOutOfRange)
		}
		byNode[ra.NodeOrNext] = append(byNode[ra.NodeOrNext], posAttr{idx: i, attr: &Attribute{ID: name, Value: val}})
	}
	for nodeIdx, list := range byNode {
		for _, pa := range list {
			nodes[nodeIdx].Attributes = append(nodes[nodeIdx].Attributes, pa.attr)
		}
	}
	return nil
}

// attachAttributesV3 walks each node's first-attribute pointer and each
// attribute's next-attribute pointer, terminating the chain at -1.
func attachAttributesV3(pool *strpool.Pool, nodes []*Node, rawNodes []rawNode, rawAttrs []rawAttr, valuesBuf []byte) error {
	decoded := make([]*Attribute, len(rawAttrs))
	for i, ra := range rawAttrs {
		name, err := pool.Name(strpool.Ref{Outer: ra.NameOuter, Inner: ra.NameInner})
		if err != nil {
			return fmt.Errorf("hc: attribute %d name: %w", i, ErrIndexOutOfRange)
		}
		typ := AttrType(ra.TypeInfo & 0x3F)
		length := ra.TypeInfo >> 6
		if IsFixedSize(typ) {
			length = uint32(fixedSizes[typ])
		}
		val, err := extractValue(valuesBuf, ra.Offset, length, typ)
		if err != nil {
			return fmt.Errorf("hc: attribute %d (%s) value: %w", i, name, err)
		}
		decoded[i] = &Attribute{ID: name, Value: val}
	}

	for i, rn := range rawNodes {
		idx := rn.FirstAttribute
		seen := map[int32]bool{}
		for idx >= 0 {
			if int(idx) >= len(rawAttrs) || seen[idx] {
				return fmt.Errorf("hc: node %d attribute chain: %w", i, ErrIndexOutOfRange)
			}
			seen[idx] = true
			nodes[i].Attributes = append(nodes[i].Attributes, decoded[idx])
			idx = rawAttrs[idx].NodeOrNext
		}
	}
	return nil
}
