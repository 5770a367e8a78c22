package vt

import (
	"fmt"
	"sort"
)

// PackTileID encodes (layer, level, y, x) into the 32-bit canonical
// tile identity. The bit layout is a private implementation detail: 10
// bits each for x/y, 4 for level, 8 for layer leaves headroom for
// grids up to 1024x1024 tiles and 16 mip levels, which covers every
// texture size this codec's construction path (build.go) ever emits.
// y is not masked: the build path computes grid coordinates from the
// source dimensions and never exceeds 10 bits.
func PackTileID(layer, level, y, x uint32) uint32 {
	return (layer << 24) | (level << 20) | (y << 10) | (x & 0x3FF)
}

// UnpackTileID is the inverse of PackTileID.
func UnpackTileID(id uint32) (layer, level, y, x uint32) {
	return id >> 24, (id >> 20) & 0xF, (id >> 10) & 0x3FF, id & 0x3FF
}

// TileLocation is the physical location a packed tile id resolves to.
type TileLocation struct {
	PageFileIndex uint16
	PageIndex     uint16
	ChunkIndex    uint16
}

// ResolveTile finds the physical location of packedID within gts:
// binary-search the packed-tile-ids array, then scan flat-tile-infos
// for the entry whose PackedTileIDIndex matches.
func ResolveTile(gts *GTS, packedID uint32) (TileLocation, error) {
	ids := gts.PackedTileIDs
	k := sort.Search(len(ids), func(i int) bool { return ids[i] >= packedID })
	if k >= len(ids) || ids[k] != packedID {
		return TileLocation{}, fmt.Errorf("%w: %#x", ErrTileNotFound, packedID)
	}
	for _, info := range gts.FlatTileInfos {
		if info.PackedTileIDIndex == uint32(k) {
			return TileLocation{
				PageFileIndex: info.PageFileIndex,
				PageIndex:     info.PageIndex,
				ChunkIndex:    info.ChunkIndex,
			}, nil
		}
	}
	return TileLocation{}, fmt.Errorf("%w: %#x", ErrTileNotFound, packedID)
}

// OpenPageFunc resolves a page-file index (as declared by a GTS's
// PageFiles table) to its open GTP. Page files are sibling files on
// disk or archive entries, so this package never assumes a filesystem;
// callers supply this.
type OpenPageFunc func(pageFileIndex uint16) (*GTP, error)

// ReadTile resolves packedID, reads its chunk from the right GTP via
// openPage, and returns the raw chunk bytes. The chunk payload is
// already BC-compressed texel data; callers that need the bytes
// further decompressed (range-coded or zlib chunks) route through
// compress.Decompress themselves using the owning layer's
// ParameterBlock, since the chunk compression method isn't carried
// per-chunk in this format, it's fixed per layer.
func ReadTile(gts *GTS, packedID uint32, openPage OpenPageFunc) ([]byte, error) {
	loc, err := ResolveTile(gts, packedID)
	if err != nil {
		return nil, err
	}
	gtp, err := openPage(loc.PageFileIndex)
	if err != nil {
		return nil, fmt.Errorf("vt: open page file %d: %w", loc.PageFileIndex, err)
	}
	return gtp.ReadChunk(int(loc.PageIndex), int(loc.ChunkIndex))
}

// TilesAtLevel returns the packed tile ids present at (layer, level),
// skipping grid cells with no entry: missing tiles are legal and
// absent from the index rather than zero-filled.
func TilesAtLevel(gts *GTS, layer, level uint32) []uint32 {
	if int(level) >= len(gts.Levels) {
		return nil
	}
	lvl := gts.Levels[level]
	out := make([]uint32, 0, len(lvl.FlatTileIndices))
	for _, flatIdx := range lvl.FlatTileIndices {
		if int(flatIdx) >= len(gts.FlatTileInfos) {
			continue
		}
		info := gts.FlatTileInfos[flatIdx]
		if int(info.PackedTileIDIndex) >= len(gts.PackedTileIDs) {
			continue
		}
		id := gts.PackedTileIDs[info.PackedTileIDIndex]
		if l, _, _, _ := UnpackTileID(id); l != layer {
			continue
		}
		out = append(out, id)
	}
	return out
}
