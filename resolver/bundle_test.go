package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberDeco/MacPak-sub002/gr2"
)

type fakeTextureSource struct {
	data map[string][]byte
	seen []string
}

func (f *fakeTextureSource) Read(path string) ([]byte, error) {
	f.seen = append(f.seen, path)
	data, ok := f.data[path]
	if !ok {
		return nil, errors.New("not found: " + path)
	}
	return data, nil
}

func minimalGR2(t *testing.T) []byte {
	t.Helper()
	mesh := &gr2.NeutralMesh{
		Meshes: []gr2.Mesh{{
			Name:     "Body",
			Vertices: []gr2.Vertex{{Position: [3]float32{0, 0, 0}}, {Position: [3]float32{1, 1, 1}}, {Position: [3]float32{2, 2, 2}}},
			Indices:  []uint32{0, 1, 2},
		}},
	}
	data, err := gr2.Write(mesh)
	require.NoError(t, err)
	return data
}

func TestGR2BundlerExtractsReferencedTextures(t *testing.T) {
	db := NewDatabase("test.lsx")
	db.VisualsByID["v1"] = &VisualAsset{
		ID:      "v1",
		GR2Path: "Generated/Public/Assets/Bracers.GR2",
		Textures: []TextureRef{
			{ID: "tex-1", ParameterName: "MSKColor", DDSPath: "Generated/Public/Assets/Bracers_MSK.dds"},
		},
	}
	db.VisualsByGR2["Bracers.GR2"] = []string{"v1"}

	src := &fakeTextureSource{data: map[string][]byte{
		"Generated/Public/Assets/Bracers_MSK.dds": []byte("dds payload"),
	}}
	bundler := NewGR2Bundler(db, src)

	destDir := t.TempDir()
	data := minimalGR2(t)

	out, err := bundler.Bundle(destDir, "Bracers.GR2", data)
	require.NoError(t, err)
	assert.Equal(t, data, out, "Bundle must not alter the mesh entry's own bytes")
	assert.Equal(t, []string{"Generated/Public/Assets/Bracers_MSK.dds"}, src.seen)

	// Bundling the same mesh again must not re-extract an already-written texture.
	_, err = bundler.Bundle(destDir, "Bracers.GR2", data)
	require.NoError(t, err)
	assert.Len(t, src.seen, 1)
}

func TestGR2BundlerPassesThroughNonMeshEntries(t *testing.T) {
	db := NewDatabase("test.lsx")
	bundler := NewGR2Bundler(db, &fakeTextureSource{data: map[string][]byte{}})

	out, err := bundler.Bundle(t.TempDir(), "Textures/a.dds", []byte("raw dds"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw dds"), out)
}

func TestGR2BundlerPassesThroughUnparsableMeshBytes(t *testing.T) {
	db := NewDatabase("test.lsx")
	db.VisualsByGR2["broken.gr2"] = []string{"v1"}
	db.VisualsByID["v1"] = &VisualAsset{ID: "v1", Textures: []TextureRef{{DDSPath: "should/not/be/written.dds"}}}

	src := &fakeTextureSource{data: map[string][]byte{}}
	bundler := NewGR2Bundler(db, src)

	out, err := bundler.Bundle(t.TempDir(), "broken.gr2", []byte("not a real mesh container"))
	require.NoError(t, err)
	assert.Equal(t, []byte("not a real mesh container"), out)
	assert.Empty(t, src.seen)
}
