package resolver

import (
	"path/filepath"
	"strconv"

	"github.com/CyberDeco/MacPak-sub002/hc"
)

// Ingest walks doc's VisualBank, MaterialBank, TextureBank, and
// VirtualTextureBank regions and populates db. A region doc doesn't
// have is silently skipped rather than requiring every bank to be
// present.
func Ingest(doc *hc.Document, db *Database) {
	if r := doc.Region("VisualBank"); r != nil {
		ingestVisualBank(r, db)
	}
	if r := doc.Region("MaterialBank"); r != nil {
		ingestMaterialBank(r, db)
	}
	if r := doc.Region("TextureBank"); r != nil {
		ingestTextureBank(r, db)
	}
	if r := doc.Region("VirtualTextureBank"); r != nil {
		ingestVirtualTextureBank(r, db)
	}
}

func attrString(n *hc.Node, id string) string {
	a := n.Attribute(id)
	if a == nil {
		return ""
	}
	return a.Value.Str
}

func attrUint(n *hc.Node, id string) uint32 {
	a := n.Attribute(id)
	if a == nil {
		return 0
	}
	if a.Value.UInt != 0 {
		return uint32(a.Value.UInt)
	}
	if a.Value.Int != 0 {
		return uint32(a.Value.Int)
	}
	if a.Value.Str != "" {
		if n, err := strconv.ParseUint(a.Value.Str, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return 0
}

func childrenNamed(n *hc.Node, name string) []*hc.Node {
	var out []*hc.Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func ingestVisualBank(region *hc.Region, db *Database) {
	if region.Root == nil {
		return
	}
	for _, resource := range childrenNamed(region.Root, "Resource") {
		visual, err := parseVisualResource(resource)
		if err != nil {
			continue
		}
		if visual.Name != "" {
			db.VisualsByName[visual.Name] = visual.ID
		}
		if gr2 := filepath.Base(visual.GR2Path); gr2 != "." && gr2 != "" {
			db.VisualsByGR2[gr2] = append(db.VisualsByGR2[gr2], visual.ID)
		}
		db.VisualsByID[visual.ID] = visual
	}
}

func parseVisualResource(node *hc.Node) (*VisualAsset, error) {
	id := attrString(node, "ID")
	gr2Path := attrString(node, "SourceFile")
	if id == "" || gr2Path == "" {
		return nil, ErrNoSourceFile
	}

	var materialIDs []string
	seen := map[string]bool{}
	for _, objects := range childrenNamed(node, "Objects") {
		if matID := attrString(objects, "MaterialID"); matID != "" && !seen[matID] {
			materialIDs = append(materialIDs, matID)
			seen[matID] = true
		}
	}

	return &VisualAsset{
		ID:          id,
		Name:        attrString(node, "Name"),
		GR2Path:     gr2Path,
		MaterialIDs: materialIDs,
	}, nil
}

func ingestMaterialBank(region *hc.Region, db *Database) {
	if region.Root == nil {
		return
	}
	for _, resource := range childrenNamed(region.Root, "Resource") {
		if material := parseMaterialResource(resource); material != nil {
			db.Materials[material.ID] = material
		}
	}
}

func parseMaterialResource(node *hc.Node) *MaterialDef {
	id := attrString(node, "ID")
	if id == "" {
		return nil
	}

	var textureIDs []TextureParam
	for _, tp := range childrenNamed(node, "Texture2DParameters") {
		if texID := attrString(tp, "ID"); texID != "" {
			textureIDs = append(textureIDs, TextureParam{
				Name:      attrString(tp, "ParameterName"),
				TextureID: texID,
			})
		}
	}

	var virtualTextureIDs []string
	seen := map[string]bool{}
	for _, vtp := range childrenNamed(node, "VirtualTextureParameters") {
		if vtID := attrString(vtp, "ID"); vtID != "" && !seen[vtID] {
			virtualTextureIDs = append(virtualTextureIDs, vtID)
			seen[vtID] = true
		}
	}

	return &MaterialDef{
		ID:                id,
		Name:              attrString(node, "Name"),
		SourceFile:        attrString(node, "SourceFile"),
		TextureIDs:        textureIDs,
		VirtualTextureIDs: virtualTextureIDs,
	}
}

func ingestTextureBank(region *hc.Region, db *Database) {
	if region.Root == nil {
		return
	}
	for _, resource := range childrenNamed(region.Root, "Resource") {
		tex, err := parseTextureResource(resource)
		if err != nil {
			continue
		}
		db.Textures[tex.ID] = tex
	}
}

func parseTextureResource(node *hc.Node) (*TextureRef, error) {
	id := attrString(node, "ID")
	ddsPath := attrString(node, "SourceFile")
	if id == "" || ddsPath == "" {
		return nil, ErrNoSourceFile
	}
	return &TextureRef{
		ID:      id,
		Name:    attrString(node, "Name"),
		DDSPath: ddsPath,
		Width:   attrUint(node, "Width"),
		Height:  attrUint(node, "Height"),
	}, nil
}

func ingestVirtualTextureBank(region *hc.Region, db *Database) {
	if region.Root == nil {
		return
	}
	for _, resource := range childrenNamed(region.Root, "Resource") {
		if vt := parseVirtualTextureResource(resource); vt != nil {
			db.VirtualTextures[vt.ID] = vt
		}
	}
}

func parseVirtualTextureResource(node *hc.Node) *VirtualTextureRef {
	id := attrString(node, "ID")
	if id == "" {
		return nil
	}
	return &VirtualTextureRef{
		ID:       id,
		Name:     attrString(node, "Name"),
		GTexHash: attrString(node, "GTexFileName"),
	}
}
