package hc

import "fmt"

// ConvertOptions controls the v2<->v3 conversion policy.
type ConvertOptions struct {
	// AllowKeyLoss permits a v3->v2 conversion even when nodes carry a
	// Key that v2's schema cannot express. Default false: the
	// conversion is refused.
	AllowKeyLoss bool
}

// ToV3 is a semantic-preserving rewrite: it is always safe because v3
// is a strict superset of v2's expressiveness.
func ToV3(doc *Document) *Document {
	clone := cloneDocument(doc)
	clone.Format = FormatV3
	return clone
}

// ToV2 converts doc to v2, refusing when keyed ordering would be lost
// unless opts.AllowKeyLoss is set.
func ToV2(doc *Document, opts ConvertOptions) (*Document, []string, error) {
	var warnings []string
	lossy := false
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.HasKey {
			lossy = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range doc.Regions {
		walk(r.Root)
	}
	if lossy && !opts.AllowKeyLoss {
		return nil, nil, fmt.Errorf("%w", ErrLossyV3ToV2)
	}
	if lossy {
		warnings = append(warnings, "v3 keyed ordering discarded converting to v2")
	}
	clone := cloneDocument(doc)
	clone.Format = FormatV2
	if len(clone.Meta) > 0 {
		warnings = append(warnings, "lslib_meta annotations discarded converting to v2")
		clone.Meta = map[*Node]string{}
	}
	return clone, warnings, nil
}

func cloneDocument(doc *Document) *Document {
	clone := NewDocument(doc.EngineVersion, doc.Format)
	cloned := map[*Node]*Node{}
	for _, r := range doc.Regions {
		clone.AddRegion(r.Name, cloneNode(r.Root, cloned))
	}
	for n, meta := range doc.Meta {
		if cn, ok := cloned[n]; ok {
			clone.Meta[cn] = meta
		}
	}
	return clone
}

// cloneNode records each original-to-clone pairing in cloned so the
// document's Meta side channel can be re-keyed onto the new tree.
func cloneNode(n *Node, cloned map[*Node]*Node) *Node {
	cn := &Node{Name: n.Name, Key: n.Key, HasKey: n.HasKey}
	cloned[n] = cn
	for _, a := range n.Attributes {
		ac := *a
		cn.Attributes = append(cn.Attributes, &ac)
	}
	for _, c := range n.Children {
		cn.AddChild(cloneNode(c, cloned))
	}
	return cn
}
