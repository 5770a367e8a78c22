package vt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CyberDeco/MacPak-sub002/progress"
)

// LoadPageFile opens (reads fully into memory) the GTP at path and
// validates its GUID against gts's matching page-file descriptor.
func LoadPageFile(gts *GTS, path string) (*GTP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadGTP(data, gts, filepath.Base(path))
}

// ExtractAll decodes every tile of every layer and writes one DDS file
// per layer into destDir. gtsDir is the directory GTP sibling files
// are resolved relative to (normally the GTS's own directory).
func ExtractAll(gts *GTS, gtsDir, destDir string, sink progress.Sink) error {
	sink = progress.OrNop(sink)
	sink.OnPhase(progress.PhasePreparing)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		sink.OnDone(err)
		return err
	}

	pageFiles := make([]*GTP, len(gts.PageFiles))
	openPage := func(idx uint16) (*GTP, error) {
		if int(idx) >= len(pageFiles) {
			return nil, fmt.Errorf("%w: page file %d", ErrIndexOutOfRange, idx)
		}
		if pageFiles[idx] != nil {
			return pageFiles[idx], nil
		}
		path := filepath.Join(gtsDir, gts.PageFiles[idx].Filename)
		gtp, err := LoadPageFile(gts, path)
		if err != nil {
			return nil, err
		}
		pageFiles[idx] = gtp
		return gtp, nil
	}

	sink.OnPhase(progress.PhaseExtractingTiles)

	total := len(gts.Layers)
	for layerIdx, layer := range gts.Layers {
		name := fmt.Sprintf("layer_%d.dds", layerIdx)
		mips, width, height, err := assembleLayer(gts, uint32(layerIdx), layer, openPage)
		if err != nil {
			sink.OnDone(err)
			return fmt.Errorf("vt: assemble layer %d: %w", layerIdx, err)
		}
		dds, err := WriteDDS(width, height, layer.DataType, mips)
		if err != nil {
			sink.OnDone(err)
			return fmt.Errorf("vt: encode layer %d dds: %w", layerIdx, err)
		}
		if err := os.WriteFile(filepath.Join(destDir, name), dds, 0o644); err != nil {
			sink.OnDone(err)
			return err
		}
		sink.OnItem(layerIdx+1, total, name)
	}

	sink.OnPhase(progress.PhaseComplete)
	sink.OnDone(nil)
	return nil
}

// assembleLayer reconstructs every mip level of one layer by placing
// each present tile's content area (border stripped) at its grid
// position; grid cells with no tile (missing tiles are legal) are
// left zero-filled in the output image.
func assembleLayer(gts *GTS, layerIndex uint32, layer Layer, openPage OpenPageFunc) ([][]byte, uint32, uint32, error) {
	blockSize := layer.DataType.BlockSize()
	if blockSize == 0 {
		return nil, 0, 0, ErrUnsupportedDDS
	}
	var topWidth, topHeight uint32

	mips := make([][]byte, 0, len(gts.Levels))
	for level, lvl := range gts.Levels {
		width := lvl.WidthPixels
		height := lvl.HeightPixels
		if level == 0 {
			topWidth, topHeight = width, height
		}
		blocksWide := (width + 3) / 4
		blocksHigh := (height + 3) / 4
		out := make([]byte, int(blocksWide*blocksHigh)*blockSize)

		tileBlocksWide := (uint32(gts.TileWidth) + 3) / 4
		borderBlocks := uint32(gts.TileBorder) / 4
		contentBlocksWide := tileBlocksWide - 2*borderBlocks
		if gts.TileBorder == 0 || int32(tileBlocksWide) <= int32(2*borderBlocks) {
			contentBlocksWide = tileBlocksWide
			borderBlocks = 0
		}

		tiles := TilesAtLevel(gts, layerIndex, uint32(level))
		for _, id := range tiles {
			_, _, y, x := UnpackTileID(id)
			chunk, err := ReadTile(gts, id, openPage)
			if err != nil {
				return nil, 0, 0, err
			}
			placeTile(out, blocksWide, chunk, x, y, blockSize, tileBlocksWide, borderBlocks, contentBlocksWide)
		}
		mips = append(mips, out)
	}
	return mips, topWidth, topHeight, nil
}

// placeTile writes one tile's content-area blocks (the interior, border
// ring stripped) into out at the grid position (x, y). The tile's
// on-disk payload is tileBlocksWide blocks square (content plus a
// borderBlocks-wide ring sampled from neighboring tiles); the ring is
// discarded during reassembly since it only exists to let sampling
// avoid seams at render time. extractTileWithBorder in build.go is the
// inverse operation.
func placeTile(out []byte, outBlocksWide uint32, tileData []byte, x, y uint32, blockSize int, tileBlocksWide, borderBlocks, contentBlocksWide uint32) {
	for by := uint32(0); by < contentBlocksWide; by++ {
		dstBy := y*contentBlocksWide + by
		srcBy := by + borderBlocks
		for bx := uint32(0); bx < contentBlocksWide; bx++ {
			dstBx := x*contentBlocksWide + bx
			if dstBx >= outBlocksWide {
				continue
			}
			srcBx := bx + borderBlocks

			dstIdx := int(dstBy*outBlocksWide+dstBx) * blockSize
			srcIdx := int(srcBy*tileBlocksWide+srcBx) * blockSize
			if dstIdx+blockSize > len(out) || srcIdx+blockSize > len(tileData) {
				continue
			}
			copy(out[dstIdx:dstIdx+blockSize], tileData[srcIdx:srcIdx+blockSize])
		}
	}
}
