package vt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/CyberDeco/MacPak-sub002/compress"
	"github.com/CyberDeco/MacPak-sub002/progress"
)

// SourceLayer is one input layer for Build: a layer name (e.g. "Albedo",
// "Normal", "Physical") paired with its source DDS bytes.
type SourceLayer struct {
	Name string
	DDS  []byte
}

// BuildOptions configures virtual-texture construction.
type BuildOptions struct {
	TileWidth  int32
	TileHeight int32
	// TileBorder is the number of border pixels sampled from adjacent
	// content on each side of a tile, clamped at texture edges.
	TileBorder int32
	// PageSize bounds how many bytes of compressed chunks one page may
	// hold before a new page starts.
	PageSize uint32
	// EmbedMip appends a quarter-resolution copy of the next mip's tile
	// to each tile's payload. Tiles on the last mip level, and tiles
	// whose next-mip tile cannot be read, get nothing appended.
	EmbedMip bool
	// Method compresses each unique tile chunk; MethodNone stores
	// tiles raw.
	Method compress.Method
}

// BuildResult names the files Build produced.
type BuildResult struct {
	GTSPath  string
	GTPPaths []string
}

// Build constructs a GTS+GTP pair from up to three source DDS layers.
// Each source layer gets its own GTP page file; within a layer, tiles
// with identical content (common on flat-colored regions) dedupe to
// one stored chunk, using an xxhash content id.
func Build(name string, sources []SourceLayer, opts *BuildOptions, destDir string, sink progress.Sink) (*BuildResult, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}
	if opts.TileWidth == 0 {
		opts.TileWidth = 128
	}
	if opts.TileHeight == 0 {
		opts.TileHeight = 128
	}
	if opts.PageSize == 0 {
		opts.PageSize = 1 << 20
	}
	sink = progress.OrNop(sink)
	sink.OnPhase(progress.PhasePreparing)

	if len(sources) == 0 {
		err := fmt.Errorf("vt: build requires at least one source layer")
		sink.OnDone(err)
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		sink.OnDone(err)
		return nil, err
	}

	layerDDS := make([]*DDS, len(sources))
	for i, src := range sources {
		parsed, err := ReadDDS(src.DDS)
		if err != nil {
			sink.OnDone(err)
			return nil, fmt.Errorf("vt: parse source layer %q: %w", src.Name, err)
		}
		layerDDS[i] = parsed
	}
	width, height := layerDDS[0].Width, layerDDS[0].Height
	mipCount := layerDDS[0].MipCount

	gts := &GTS{
		Version:    gtsVersion,
		GUID:       [16]byte(uuid.New()),
		TileWidth:  opts.TileWidth,
		TileHeight: opts.TileHeight,
		TileBorder: opts.TileBorder,
		PageSize:   opts.PageSize,
	}

	rawTileWidth := uint32(opts.TileWidth - 2*opts.TileBorder)
	rawTileHeight := uint32(opts.TileHeight - 2*opts.TileBorder)
	if opts.TileWidth <= 2*opts.TileBorder || opts.TileHeight <= 2*opts.TileBorder {
		rawTileWidth, rawTileHeight = uint32(opts.TileWidth), uint32(opts.TileHeight)
	}

	sink.OnPhase(progress.PhaseExtractingTiles)

	// flatIndexStart[layerIdx] is the index into gts.FlatTileInfos where
	// that layer's tiles begin; tiles are appended per layer in order,
	// so each layer occupies a contiguous run.
	flatIndexStart := make([]int, len(layerDDS))
	perLayerChunkIdx := make([][]int, len(layerDDS)) // [layer][tile ordinal] -> layer-local unique chunk index
	perLayerChunks := make([][][]byte, len(layerDDS))

	for layerIdx, layer := range layerDDS {
		flatIndexStart[layerIdx] = len(gts.FlatTileInfos)
		gts.Layers = append(gts.Layers, Layer{DataType: layer.DataType, Reserved: -1})
		gts.Parameters = append(gts.Parameters, ParameterBlock{
			Version:  0x238e,
			DataType: uint8(layer.DataType),
			EmbedMip: opts.EmbedMip,
		})

		blockSize := layer.DataType.BlockSize()
		hashIndex := map[uint64]int{}
		var uniqueChunks [][]byte

		w, h := width, height
		for level := uint32(0); level < mipCount; level++ {
			tilesWide := ceilDiv(w, rawTileWidth)
			tilesHigh := ceilDiv(h, rawTileHeight)

			if layerIdx == 0 {
				gts.Levels = append(gts.Levels, Level{
					WidthTiles: tilesWide, HeightTiles: tilesHigh,
					WidthPixels: w, HeightPixels: h,
				})
			}

			levelData, _, _, err := layer.MipData(level)
			if err != nil {
				sink.OnDone(err)
				return nil, err
			}

			for y := uint32(0); y < tilesHigh; y++ {
				for x := uint32(0); x < tilesWide; x++ {
					tile := extractTileWithBorder(levelData, w, h, x*rawTileWidth, y*rawTileHeight,
						rawTileWidth, rawTileHeight, uint32(opts.TileBorder), blockSize)

					if opts.EmbedMip && level+1 < mipCount {
						nextData, nw, nh, err := layer.MipData(level + 1)
						if err == nil {
							mipTile := extractTileWithBorder(nextData, nw, nh,
								(x*rawTileWidth)/2, (y*rawTileHeight)/2,
								rawTileWidth/2, rawTileHeight/2, uint32(opts.TileBorder)/2, blockSize)
							tile = append(tile, mipTile...)
						}
					}

					sum := xxhash.Sum64(tile)
					chunkIdx, ok := hashIndex[sum]
					if !ok {
						chunkIdx = len(uniqueChunks)
						uniqueChunks = append(uniqueChunks, tile)
						hashIndex[sum] = chunkIdx
					}
					perLayerChunkIdx[layerIdx] = append(perLayerChunkIdx[layerIdx], chunkIdx)

					packedID := PackTileID(uint32(layerIdx), level, y, x)
					tileIDIdx := addPackedTileID(gts, packedID)
					flatIdx := uint32(len(gts.FlatTileInfos))
					gts.FlatTileInfos = append(gts.FlatTileInfos, FlatTileInfo{PackedTileIDIndex: tileIDIdx})
					gts.Levels[level].FlatTileIndices = append(gts.Levels[level].FlatTileIndices, flatIdx)
				}
			}

			w = max32(w/2, 1)
			h = max32(h/2, 1)
		}
		perLayerChunks[layerIdx] = uniqueChunks
		sink.OnItem(layerIdx+1, len(layerDDS), layer.DataType.String())
	}

	sink.OnPhase(progress.PhaseCompressing)

	compressedPerLayer := make([][][]byte, len(layerDDS))
	for layerIdx, chunks := range perLayerChunks {
		out := make([][]byte, len(chunks))
		for i, c := range chunks {
			compressedChunk, err := compress.Compress(opts.Method, c)
			if err != nil {
				sink.OnDone(err)
				return nil, fmt.Errorf("vt: compress layer %d chunk %d: %w", layerIdx, i, err)
			}
			out[i] = compressedChunk
		}
		compressedPerLayer[layerIdx] = out
		sink.OnItem(layerIdx+1, len(layerDDS), "")
	}

	result := &BuildResult{}
	for layerIdx := range sources {
		sink.OnPhase(progress.PhaseWritingGTP)

		fileGUID := [16]byte(uuid.New())
		gtpBytes, locations := BuildGTP(fileGUID, compressedPerLayer[layerIdx], opts.PageSize)

		gtpName := fmt.Sprintf("%s_%d.gtp", name, layerIdx)
		gtpPath := filepath.Join(destDir, gtpName)
		if err := os.WriteFile(gtpPath, gtpBytes, 0o644); err != nil {
			sink.OnDone(err)
			return nil, err
		}
		result.GTPPaths = append(result.GTPPaths, gtpPath)

		numPages := 0
		for _, loc := range locations {
			if int(loc.PageIndex)+1 > numPages {
				numPages = int(loc.PageIndex) + 1
			}
		}
		gts.PageFiles = append(gts.PageFiles, PageFileDescriptor{
			Filename: gtpName,
			NumPages: uint32(numPages),
			GUID:     fileGUID,
		})

		start := flatIndexStart[layerIdx]
		for ordinal, chunkIdx := range perLayerChunkIdx[layerIdx] {
			loc := locations[chunkIdx]
			info := &gts.FlatTileInfos[start+ordinal]
			info.PageFileIndex = uint16(layerIdx)
			info.PageIndex = loc.PageIndex
			info.ChunkIndex = loc.ChunkIndex
		}
		sink.OnItem(layerIdx+1, len(sources), gtpName)
	}

	sink.OnPhase(progress.PhaseWritingGTS)
	gtsBytes, err := WriteGTS(gts)
	if err != nil {
		sink.OnDone(err)
		return nil, err
	}
	gtsPath := filepath.Join(destDir, name+".gts")
	if err := os.WriteFile(gtsPath, gtsBytes, 0o644); err != nil {
		sink.OnDone(err)
		return nil, err
	}
	result.GTSPath = gtsPath

	sink.OnPhase(progress.PhaseComplete)
	sink.OnDone(nil)
	return result, nil
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func addPackedTileID(gts *GTS, id uint32) uint32 {
	for i, existing := range gts.PackedTileIDs {
		if existing == id {
			return uint32(i)
		}
	}
	idx := uint32(len(gts.PackedTileIDs))
	gts.PackedTileIDs = append(gts.PackedTileIDs, id)
	return idx
}

// extractTileWithBorder extracts a tile whose content area starts at
// (contentX, contentY) in the source, with border pixels sampled from
// adjacent content, clamped at texture edges.
func extractTileWithBorder(src []byte, srcWidth, srcHeight, contentX, contentY, contentWidth, contentHeight, border uint32, blockSize int) []byte {
	paddedWidth := contentWidth + 2*border
	paddedHeight := contentHeight + 2*border

	srcBlocksWide := ceilDiv(srcWidth, 4)
	srcBlocksHigh := ceilDiv(srcHeight, 4)
	tileBlocksWide := ceilDiv(paddedWidth, 4)
	tileBlocksHigh := ceilDiv(paddedHeight, 4)
	borderBlocks := int32(border / 4)

	tile := make([]byte, 0, int(tileBlocksWide*tileBlocksHigh)*blockSize)
	contentBlockX := int32(contentX / 4)
	contentBlockY := int32(contentY / 4)

	for tby := int32(0); tby < int32(tileBlocksHigh); tby++ {
		for tbx := int32(0); tbx < int32(tileBlocksWide); tbx++ {
			relBx := tbx - borderBlocks
			relBy := tby - borderBlocks

			srcBx := clampI32(contentBlockX+relBx, 0, int32(srcBlocksWide)-1)
			srcBy := clampI32(contentBlockY+relBy, 0, int32(srcBlocksHigh)-1)

			srcOffset := int(srcBy*int32(srcBlocksWide)+srcBx) * blockSize
			if srcOffset+blockSize <= len(src) {
				tile = append(tile, src[srcOffset:srcOffset+blockSize]...)
			} else {
				tile = append(tile, make([]byte, blockSize)...)
			}
		}
	}
	return tile
}

func clampI32(v, lo, hi int32) int32 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
