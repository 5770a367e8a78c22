package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CyberDeco/MacPak-sub002/gr2"
	"github.com/CyberDeco/MacPak-sub002/pak"
)

// TextureSource supplies a texture's raw bytes by its archive-relative
// path, letting GR2Bundler pull DDS textures out of whichever archive
// actually holds them.
type TextureSource interface {
	Read(path string) ([]byte, error)
}

// GR2Bundler implements pak.Bundler: for every .gr2 entry it extracts,
// it looks up which visuals reference that mesh and writes each
// resolved DDS texture alongside it under destDir, without touching
// the mesh file's own bytes.
type GR2Bundler struct {
	DB       *Database
	Textures TextureSource

	// written tracks texture paths already extracted this run, so a
	// texture shared by several meshes is only written once.
	written map[string]bool
}

// NewGR2Bundler returns a GR2Bundler pulling textures from src and
// resolving them against db.
func NewGR2Bundler(db *Database, src TextureSource) *GR2Bundler {
	return &GR2Bundler{DB: db, Textures: src, written: map[string]bool{}}
}

// Bundle implements pak.Bundler. Non-.gr2 entries pass through
// unchanged. A .gr2 entry is parsed just enough to confirm it is a
// valid mesh container, then every texture its resolved visuals
// reference is extracted into destDir, mirroring the archive-relative
// DDSPath each texture was ingested under.
func (b *GR2Bundler) Bundle(destDir, path string, data []byte) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".gr2") || b.DB == nil || b.Textures == nil {
		return data, nil
	}
	if _, err := gr2.Parse(data, nil); err != nil {
		return data, nil
	}

	for _, visual := range b.DB.VisualsForGR2(path) {
		for _, tex := range visual.Textures {
			if tex.DDSPath == "" || b.written[tex.DDSPath] {
				continue
			}
			if err := b.extractTexture(destDir, tex.DDSPath); err != nil {
				return nil, fmt.Errorf("resolver: bundle texture %s for %s: %w", tex.DDSPath, path, err)
			}
			b.written[tex.DDSPath] = true
		}
	}
	return data, nil
}

func (b *GR2Bundler) extractTexture(destDir, ddsPath string) error {
	raw, err := b.Textures.Read(ddsPath)
	if err != nil {
		return err
	}
	outPath := filepath.Join(destDir, filepath.FromSlash(ddsPath))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, raw, 0o644)
}

// archiveTextureSource adapts a *pak.Archive to TextureSource.
type archiveTextureSource struct {
	archive *pak.Archive
}

// NewArchiveTextureSource returns a TextureSource that reads textures
// out of an open pak archive.
func NewArchiveTextureSource(a *pak.Archive) TextureSource {
	return archiveTextureSource{archive: a}
}

func (s archiveTextureSource) Read(path string) ([]byte, error) {
	return s.archive.Read(path)
}
