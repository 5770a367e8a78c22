package vt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberDeco/MacPak-sub002/compress"
)

func makeBC1DDS(t *testing.T, width, height uint32, fill byte) []byte {
	t.Helper()
	blocksWide := (width + 3) / 4
	blocksHigh := (height + 3) / 4
	block := bytes.Repeat([]byte{fill}, 8)
	mip := bytes.Repeat(block, int(blocksWide*blocksHigh))
	dds, err := WriteDDS(width, height, DataTypeBC1, [][]byte{mip})
	require.NoError(t, err)
	return dds
}

func TestReadDDSWriteDDSRoundTrip(t *testing.T) {
	src := makeBC1DDS(t, 8, 8, 0x42)
	d, err := ReadDDS(src)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), d.Width)
	assert.Equal(t, uint32(8), d.Height)
	assert.Equal(t, DataTypeBC1, d.DataType)
	assert.Equal(t, uint32(1), d.MipCount)

	mip, w, h, err := d.MipData(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), w)
	assert.Equal(t, uint32(8), h)
	assert.Len(t, mip, 4*8) // 2x2 blocks of 8 bytes
}

func TestPackUnpackTileID(t *testing.T) {
	id := PackTileID(2, 3, 5, 7)
	layer, level, y, x := UnpackTileID(id)
	assert.Equal(t, uint32(2), layer)
	assert.Equal(t, uint32(3), level)
	assert.Equal(t, uint32(5), y)
	assert.Equal(t, uint32(7), x)
}

func TestWriteGTSReadGTSRoundTrip(t *testing.T) {
	gts := &GTS{
		Version:    gtsVersion,
		GUID:       [16]byte{1, 2, 3, 4},
		TileWidth:  64,
		TileHeight: 64,
		TileBorder: 4,
		PageSize:   1 << 16,
		Layers:     []Layer{{DataType: DataTypeBC1, Reserved: -1}},
		Levels: []Level{
			{WidthTiles: 1, HeightTiles: 1, FlatTileIndices: []uint32{0}, WidthPixels: 56, HeightPixels: 56},
		},
		Parameters: []ParameterBlock{
			{Version: 0x238e, DataType: uint8(DataTypeBC1), FourCC: 0x31545844, EmbedMip: true},
		},
		PageFiles: []PageFileDescriptor{
			{Filename: "test_0.gtp", NumPages: 1, GUID: [16]byte{5, 6, 7, 8}},
		},
		PackedTileIDs: []uint32{PackTileID(0, 0, 0, 0)},
		FlatTileInfos: []FlatTileInfo{
			{PageFileIndex: 0, PageIndex: 0, ChunkIndex: 0, PackedTileIDIndex: 0},
		},
		FourCC: &FourCCNode{Code: [4]byte{'R', 'O', 'O', 'T'}, Payload: []byte("hi")},
	}

	data, err := WriteGTS(gts)
	require.NoError(t, err)

	got, err := ReadGTS(data)
	require.NoError(t, err)

	assert.Equal(t, gts.GUID, got.GUID)
	assert.Equal(t, gts.TileWidth, got.TileWidth)
	assert.Equal(t, gts.TileBorder, got.TileBorder)
	require.Len(t, got.Layers, 1)
	assert.Equal(t, DataTypeBC1, got.Layers[0].DataType)
	require.Len(t, got.Parameters, 1)
	assert.Equal(t, uint8(DataTypeBC1), got.Parameters[0].DataType)
	assert.True(t, got.Parameters[0].EmbedMip)
	require.Len(t, got.PageFiles, 1)
	assert.Equal(t, "test_0.gtp", got.PageFiles[0].Filename)
	assert.Equal(t, gts.PageFiles[0].GUID, got.PageFiles[0].GUID)
	require.Len(t, got.FlatTileInfos, 1)
	assert.Equal(t, gts.FlatTileInfos[0], got.FlatTileInfos[0])
	require.NotNil(t, got.FourCC)
	assert.Equal(t, []byte("hi"), got.FourCC.Payload)
}

func TestBuildExtractAllRoundTrip(t *testing.T) {
	albedo := makeBC1DDS(t, 8, 8, 0x11)
	normal := makeBC1DDS(t, 8, 8, 0x22)

	sources := []SourceLayer{
		{Name: "Albedo", DDS: albedo},
		{Name: "Normal", DDS: normal},
	}
	destDir := t.TempDir()

	result, err := Build("test_vt", sources, &BuildOptions{
		TileWidth:  8,
		TileHeight: 8,
		TileBorder: 0,
		PageSize:   1 << 16,
		Method:     compress.MethodNone,
	}, destDir, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.GTSPath)
	require.Len(t, result.GTPPaths, 2)

	data, err := os.ReadFile(result.GTSPath)
	require.NoError(t, err)
	gts, err := ReadGTS(data)
	require.NoError(t, err)
	require.Len(t, gts.Layers, 2)
	require.Len(t, gts.PageFiles, 2)

	extractDir := t.TempDir()
	require.NoError(t, ExtractAll(gts, destDir, extractDir, nil))

	got0, err := os.ReadFile(filepath.Join(extractDir, "layer_0.dds"))
	require.NoError(t, err)
	d0, err := ReadDDS(got0)
	require.NoError(t, err)
	mip0, _, _, err := d0.MipData(0)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, 32), mip0)

	got1, err := os.ReadFile(filepath.Join(extractDir, "layer_1.dds"))
	require.NoError(t, err)
	d1, err := ReadDDS(got1)
	require.NoError(t, err)
	mip1, _, _, err := d1.MipData(0)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x22}, 32), mip1)
}

func TestFindGTSForStripsHashSuffix(t *testing.T) {
	dir := t.TempDir()
	gtsPath := filepath.Join(dir, "tex_0.gts")
	require.NoError(t, os.WriteFile(gtsPath, append([]byte(gtsMagic), make([]byte, gtsHeaderSize-4)...), 0o644))

	gtpPath := filepath.Join(dir, "tex_0_0123456789abcdef0123456789abcdef.gtp")
	found, err := FindGTSFor(gtpPath)
	require.NoError(t, err)
	assert.Equal(t, gtsPath, found)
}
