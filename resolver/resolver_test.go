package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberDeco/MacPak-sub002/hc"
)

func strAttr(s string) hc.Value { return hc.Value{Type: hc.TypeFixedString, Str: s} }

func resourceNode(attrs map[string]string) *hc.Node {
	n := &hc.Node{Name: "Resource"}
	for k, v := range attrs {
		n.SetAttribute(k, strAttr(v))
	}
	return n
}

func buildTestDoc() *hc.Document {
	doc := hc.NewDocument(1, hc.FormatV3)

	visualBank := &hc.Node{Name: "VisualBank"}
	visual := resourceNode(map[string]string{
		"ID":         "visual-1",
		"Name":       "HUM_M_ARM_Robe_C_Bracers_0",
		"SourceFile": "Generated/Public/Assets/Bracers.GR2",
	})
	objects := &hc.Node{Name: "Objects"}
	objects.SetAttribute("MaterialID", strAttr("mat-1"))
	visual.AddChild(objects)
	visualBank.AddChild(visual)
	doc.AddRegion("VisualBank", visualBank)

	materialBank := &hc.Node{Name: "MaterialBank"}
	material := resourceNode(map[string]string{
		"ID":         "mat-1",
		"Name":       "Bracers_Material",
		"SourceFile": "Public/Shared/Assets/Materials/Bracers.lsb",
	})
	texParam := &hc.Node{Name: "Texture2DParameters"}
	texParam.SetAttribute("ParameterName", strAttr("MSKColor"))
	texParam.SetAttribute("ID", strAttr("tex-1"))
	material.AddChild(texParam)
	vtParam := &hc.Node{Name: "VirtualTextureParameters"}
	vtParam.SetAttribute("ID", strAttr("vt-1"))
	material.AddChild(vtParam)
	materialBank.AddChild(material)
	doc.AddRegion("MaterialBank", materialBank)

	textureBank := &hc.Node{Name: "TextureBank"}
	texture := resourceNode(map[string]string{
		"ID":         "tex-1",
		"Name":       "Bracers_MSK",
		"SourceFile": "Generated/Public/Assets/Bracers_MSK.dds",
	})
	texture.SetAttribute("Width", hc.Value{Type: hc.TypeUInt, UInt: 2048})
	texture.SetAttribute("Height", hc.Value{Type: hc.TypeUInt, UInt: 2048})
	textureBank.AddChild(texture)
	doc.AddRegion("TextureBank", textureBank)

	vtBank := &hc.Node{Name: "VirtualTextureBank"}
	vt := resourceNode(map[string]string{
		"ID":           "vt-1",
		"Name":         "Bracers_VT",
		"GTexFileName": "0123456789abcdef0123456789abcdef",
	})
	vtBank.AddChild(vt)
	doc.AddRegion("VirtualTextureBank", vtBank)

	return doc
}

func TestIngestAndResolveReferences(t *testing.T) {
	doc := buildTestDoc()
	db := NewDatabase("test.lsx")
	Ingest(doc, db)

	require.Len(t, db.VisualsByID, 1)
	require.Len(t, db.Materials, 1)
	require.Len(t, db.Textures, 1)
	require.Len(t, db.VirtualTextures, 1)

	visual := db.GetByVisualName("HUM_M_ARM_Robe_C_Bracers_0")
	require.NotNil(t, visual)
	assert.Equal(t, "visual-1", visual.ID)
	assert.Equal(t, []string{"mat-1"}, visual.MaterialIDs)
	assert.Empty(t, visual.Textures) // not resolved yet

	byGR2 := db.VisualsForGR2("Bracers.GR2")
	require.Len(t, byGR2, 1)
	assert.Equal(t, "visual-1", byGR2[0].ID)

	db.ResolveReferences()
	require.Len(t, visual.Textures, 1)
	assert.Equal(t, "tex-1", visual.Textures[0].ID)
	assert.Equal(t, "MSKColor", visual.Textures[0].ParameterName)
	assert.Equal(t, uint32(2048), visual.Textures[0].Width)
	require.Len(t, visual.VirtualTextures, 1)
	assert.Equal(t, "vt-1", visual.VirtualTextures[0].ID)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", visual.VirtualTextures[0].GTexHash)

	stats := db.Stats()
	assert.Equal(t, 1, stats.VisualCount)
	assert.Equal(t, 1, stats.MaterialCount)

	got, err := db.GetByID("visual-1")
	require.NoError(t, err)
	assert.Same(t, visual, got)

	_, err = db.GetByID("does-not-exist")
	assert.ErrorIs(t, err, ErrVisualNotFound)
}

func TestIngestSkipsResourcesMissingRequiredAttributes(t *testing.T) {
	doc := hc.NewDocument(1, hc.FormatV3)

	visualBank := &hc.Node{Name: "VisualBank"}
	visualBank.AddChild(resourceNode(map[string]string{"ID": "visual-1"})) // no SourceFile
	doc.AddRegion("VisualBank", visualBank)

	textureBank := &hc.Node{Name: "TextureBank"}
	textureBank.AddChild(resourceNode(map[string]string{"Name": "NoID"})) // no ID
	doc.AddRegion("TextureBank", textureBank)

	db := NewDatabase("test.lsx")
	Ingest(doc, db)

	assert.Empty(t, db.VisualsByID)
	assert.Empty(t, db.Textures)

	_, err := parseVisualResource(resourceNode(map[string]string{"ID": "v"}))
	assert.True(t, errors.Is(err, ErrNoSourceFile))
}

func TestImportMaterialsFromFillsGapsOnly(t *testing.T) {
	local := NewDatabase("local.lsx")
	local.Materials["mat-1"] = &MaterialDef{ID: "mat-1", Name: "Local"}

	other := NewDatabase("other.lsx")
	other.Materials["mat-1"] = &MaterialDef{ID: "mat-1", Name: "Other"}
	other.Materials["mat-2"] = &MaterialDef{ID: "mat-2", Name: "FromOther"}
	other.Textures["tex-9"] = &TextureRef{ID: "tex-9"}

	local.ImportMaterialsFrom(other)

	assert.Equal(t, "Local", local.Materials["mat-1"].Name, "existing entries are not overwritten")
	require.Contains(t, local.Materials, "mat-2")
	assert.Equal(t, "FromOther", local.Materials["mat-2"].Name)
	assert.Contains(t, local.Textures, "tex-9")
}

func TestMergeOverwritesOnCollision(t *testing.T) {
	target := NewDatabase("target.lsx")
	target.VisualsByID["v1"] = &VisualAsset{ID: "v1", Name: "Old"}
	target.VisualsByName["Old"] = "v1"
	target.VisualsByGR2["shared.gr2"] = []string{"v1"}

	source := NewDatabase("source.lsx")
	source.VisualsByID["v1"] = &VisualAsset{ID: "v1", Name: "New"}
	source.VisualsByName["New"] = "v1"
	source.VisualsByGR2["shared.gr2"] = []string{"v2"}
	source.VisualsByID["v2"] = &VisualAsset{ID: "v2", Name: "New2"}

	target.Merge(source)

	assert.Equal(t, "New", target.VisualsByID["v1"].Name)
	assert.Contains(t, target.VisualsByID, "v2")
	assert.ElementsMatch(t, []string{"v1", "v2"}, target.VisualsByGR2["shared.gr2"])
}

func TestResolveReferencesCountsDanglingReferences(t *testing.T) {
	db := NewDatabase("test.lsx")
	db.VisualsByID["v1"] = &VisualAsset{
		ID:          "v1",
		MaterialIDs: []string{"missing-material"},
	}
	db.VisualsByID["v2"] = &VisualAsset{
		ID:          "v2",
		MaterialIDs: []string{"mat-1"},
	}
	db.Materials["mat-1"] = &MaterialDef{
		ID: "mat-1",
		TextureIDs: []TextureParam{
			{Name: "MSKColor", TextureID: "missing-texture"},
		},
		VirtualTextureIDs: []string{"missing-vt"},
	}

	db.ResolveReferences()

	assert.Equal(t, 3, db.Stats().DanglingReferences)
	assert.Empty(t, db.VisualsByID["v1"].Textures)
	assert.Empty(t, db.VisualsByID["v2"].Textures)
	assert.Empty(t, db.VisualsByID["v2"].VirtualTextures)
}

func TestPakPathsGTPPathFromHash(t *testing.T) {
	p := DefaultPakPaths()
	hash := "0123456789abcdef0123456789abcdef"
	path := p.GTPPathFromHash(hash)
	assert.Equal(t, "Generated/Public/VirtualTextures/Albedo_Normal_Physical_0_0123456789abcdef0123456789abcdef.gtp", path)
	assert.Equal(t, "", p.GTPPathFromHash(""))
}

const visualMergedLSX = `<save>
  <header version="33"/>
  <region id="VisualBank">
    <node id="VisualBank">
      <children>
        <node id="Resource">
          <attribute id="ID" type="FixedString" value="visual-1"/>
          <attribute id="Name" type="FixedString" value="Hero"/>
          <attribute id="SourceFile" type="LSString" value="meshes/hero.gr2"/>
          <children>
            <node id="Objects">
              <attribute id="MaterialID" type="FixedString" value="mat-1"/>
            </node>
          </children>
        </node>
      </children>
    </node>
  </region>
</save>`

const materialMergedLSX = `<save>
  <header version="33"/>
  <region id="MaterialBank">
    <node id="MaterialBank">
      <children>
        <node id="Resource">
          <attribute id="ID" type="FixedString" value="mat-1"/>
          <attribute id="Name" type="FixedString" value="Hero_Material"/>
          <attribute id="SourceFile" type="LSString" value="materials/hero.lsb"/>
          <children>
            <node id="Texture2DParameters">
              <attribute id="ParameterName" type="FixedString" value="Albedo"/>
              <attribute id="ID" type="FixedString" value="tex-1"/>
            </node>
          </children>
        </node>
      </children>
    </node>
  </region>
</save>`

const textureMergedLSX = `<save>
  <header version="33"/>
  <region id="TextureBank">
    <node id="TextureBank">
      <children>
        <node id="Resource">
          <attribute id="ID" type="FixedString" value="tex-1"/>
          <attribute id="Name" type="FixedString" value="hero_albedo"/>
          <attribute id="SourceFile" type="LSString" value="textures/hero_albedo.dds"/>
        </node>
      </children>
    </node>
  </region>
</save>`

func TestIngestFilesParsesInParallelAndResolves(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"visual_merged.lsx":   visualMergedLSX,
		"material_merged.lsx": materialMergedLSX,
		"texture_merged.lsx":  textureMergedLSX,
	}
	var paths []string
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		paths = append(paths, p)
	}
	sort.Strings(paths)

	db, report, err := IngestFiles(paths, &IngestOptions{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Parsed)
	assert.Empty(t, report.Failed)

	db.ResolveReferences()
	visuals := db.VisualsForGR2("hero.gr2")
	require.Len(t, visuals, 1)
	require.Len(t, visuals[0].Textures, 1)
	assert.Equal(t, "Albedo", visuals[0].Textures[0].ParameterName)
	assert.Equal(t, "textures/hero_albedo.dds", visuals[0].Textures[0].DDSPath)
}

func TestIngestFilesReportsUnparsableDocuments(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "texture_merged.lsx")
	bad := filepath.Join(dir, "broken_merged.lsf")
	require.NoError(t, os.WriteFile(good, []byte(textureMergedLSX), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("not a container"), 0o644))

	db, report, err := IngestFiles([]string{good, bad}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parsed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, bad, report.Failed[0].Path)
	assert.Len(t, db.Textures, 1)
}

func TestFindMergedDocuments(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Public", "Shared")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	want := filepath.Join(sub, "Assets_merged.lsx")
	require.NoError(t, os.WriteFile(want, []byte(visualMergedLSX), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unmerged.lsx"), []byte(visualMergedLSX), 0o644))

	got, err := FindMergedDocuments(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, got)
}

func TestIngestFilesHonorsCancellation(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	_, _, err := IngestFiles([]string{"whatever_merged.lsx"}, &IngestOptions{Cancel: stop})
	assert.ErrorIs(t, err, ErrCancelled)
}
