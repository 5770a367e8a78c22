// Package resolver implements the merged asset database: ingests
// VisualBank/MaterialBank/TextureBank/VirtualTextureBank regions from
// hierarchical container documents and resolves meshes to their
// materials, DDS textures, and virtual textures.
package resolver

import "errors"

// TextureParam is a material's named reference to a TextureBank entry.
type TextureParam struct {
	Name      string
	TextureID string
}

// TextureRef is a resolved DDS texture.
type TextureRef struct {
	ID        string
	Name      string
	DDSPath   string
	SourcePak string
	Width     uint32
	Height    uint32
	// ParameterName is set once a visual resolves this texture through a
	// material's named parameter; empty before that.
	ParameterName string
}

// VirtualTextureRef is a resolved streaming texture. GTexHash is the
// 32-character hex hash a GTP page file's name is derived from
// (vt.FindGTSFor, PakPaths.GTPPathFromHash).
type VirtualTextureRef struct {
	ID       string
	Name     string
	GTexHash string
}

// MaterialDef is a material template.
type MaterialDef struct {
	ID                string
	Name              string
	SourceFile        string
	SourcePak         string
	TextureIDs        []TextureParam
	VirtualTextureIDs []string
}

// VisualAsset is a mesh and the materials/textures it resolves to.
type VisualAsset struct {
	ID              string
	Name            string
	GR2Path         string
	SourcePak       string
	MaterialIDs     []string
	Textures        []TextureRef
	VirtualTextures []VirtualTextureRef
}

// PakPaths names the archives assets are resolved against and the
// pattern a GTP sibling file's path is derived from a GTex hash.
type PakPaths struct {
	Models          string
	Textures        string
	VirtualTextures string
	// GTPPathPattern contains the literal substrings "{first}" (the
	// hash's first hex character) and "{hash}" (the full hash).
	GTPPathPattern string
}

// DefaultPakPaths returns the archive layout this codec family ships
// with by default.
func DefaultPakPaths() PakPaths {
	return PakPaths{
		Models:          "Models.pak",
		Textures:        "Textures.pak",
		VirtualTextures: "VirtualTextures.pak",
		GTPPathPattern:  "Generated/Public/VirtualTextures/Albedo_Normal_Physical_{first}_{hash}.gtp",
	}
}

// GTPPathFromHash derives a GTP sibling path from a GTex hash using
// GTPPathPattern, or "" if hash is empty.
func (p PakPaths) GTPPathFromHash(hash string) string {
	if hash == "" {
		return ""
	}
	out := []byte{}
	for i := 0; i < len(p.GTPPathPattern); {
		if rest := p.GTPPathPattern[i:]; len(rest) >= 7 && rest[:7] == "{first}" {
			out = append(out, hash[0])
			i += 7
			continue
		} else if len(rest) >= 6 && rest[:6] == "{hash}" {
			out = append(out, hash...)
			i += 6
			continue
		}
		out = append(out, p.GTPPathPattern[i])
		i++
	}
	return string(out)
}

// Stats summarizes a Database's contents.
type Stats struct {
	VisualCount         int
	MaterialCount       int
	TextureCount        int
	VirtualTextureCount int

	// DanglingReferences counts material/texture/virtual-texture IDs
	// that a visual or material referenced but ResolveReferences could
	// not find in the database, so callers can notice an incomplete
	// ingest (missing bank file, wrong merge order) even though
	// resolution itself never fails outright.
	DanglingReferences int
}

// Database is the complete cross-referenced asset catalog built from
// one or more hierarchical container documents.
type Database struct {
	SourcePath string
	PakPaths   PakPaths

	VisualsByID   map[string]*VisualAsset
	VisualsByName map[string]string
	VisualsByGR2  map[string][]string

	Materials       map[string]*MaterialDef
	Textures        map[string]*TextureRef
	VirtualTextures map[string]*VirtualTextureRef

	// danglingReferences counts resolution misses across every
	// ResolveReferences call; surfaced read-only via Stats.
	danglingReferences int
}

// NewDatabase returns an empty database sourced from sourcePath, using
// the default pak layout.
func NewDatabase(sourcePath string) *Database {
	return &Database{
		SourcePath:      sourcePath,
		PakPaths:        DefaultPakPaths(),
		VisualsByID:     map[string]*VisualAsset{},
		VisualsByName:   map[string]string{},
		VisualsByGR2:    map[string][]string{},
		Materials:       map[string]*MaterialDef{},
		Textures:        map[string]*TextureRef{},
		VirtualTextures: map[string]*VirtualTextureRef{},
	}
}

// Errors returned by this package.
var (
	ErrVisualNotFound = errors.New("resolver: visual not found")
	ErrNoSourceFile   = errors.New("resolver: node is missing a required ID or SourceFile attribute")
)
