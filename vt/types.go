// Package vt implements the streaming virtual-texture codec: a GTS
// metadata file paired with one or more GTP page files, tile
// resolution, extraction to DDS, and construction from source DDS
// layers.
package vt

import "errors"

// DataType identifies the BC compression of a layer's texels.
type DataType uint32

// Known data-type codes (matches the BC parameter block's DataType
// field written by the original toolchain's GtsWriter).
const (
	DataTypeBC1 DataType = 3
	DataTypeBC3 DataType = 6
	DataTypeBC5 DataType = 11
	DataTypeBC7 DataType = 13
)

// BlockSize returns the BC block size in bytes for d, or 0 if unknown.
func (d DataType) BlockSize() int {
	switch d {
	case DataTypeBC1:
		return 8
	case DataTypeBC3, DataTypeBC5, DataTypeBC7:
		return 16
	default:
		return 0
	}
}

func (d DataType) String() string {
	switch d {
	case DataTypeBC1:
		return "BC1"
	case DataTypeBC3:
		return "BC3"
	case DataTypeBC5:
		return "BC5"
	case DataTypeBC7:
		return "BC7"
	default:
		return "unknown"
	}
}

// Layer is one texture channel set (e.g. albedo, normal, physical)
// tracked by a GTS file.
type Layer struct {
	DataType DataType
	Reserved int32 // always -1 on disk ("B field")
}

// Level describes one mip level's tile grid.
type Level struct {
	WidthTiles  uint32
	HeightTiles uint32
	// FlatTileIndices indexes into GTS.FlatTileInfos for every tile
	// present at this level, in the order the on-disk per-level array
	// stores them. Missing grid cells simply have no entry here.
	FlatTileIndices []uint32
	// WidthPixels/HeightPixels are the level's true pixel dimensions,
	// kept alongside the tile grid because they make tile-grid math
	// exact for non-tile-aligned textures.
	WidthPixels  uint32
	HeightPixels uint32
}

// ParameterBlock is per-codec metadata describing how a layer's tiles
// are compressed.
type ParameterBlock struct {
	Version      uint16
	Compression1 [16]byte
	Compression2 [16]byte
	DataType     uint8
	FourCC       uint32
	EmbedMip     bool
}

// PageFileDescriptor names one GTP sibling file and the GUID it must
// carry.
type PageFileDescriptor struct {
	Filename string
	NumPages uint32
	GUID     [16]byte
}

// FlatTileInfo is the physical location of one tile (12 bytes on
// disk).
type FlatTileInfo struct {
	PageFileIndex     uint16
	PageIndex         uint16
	ChunkIndex        uint16
	Reserved          uint16
	PackedTileIDIndex uint32
}

// FourCCNode is one node of the GTS FourCC metadata tree: a 4-byte
// code, payload bytes, and a list of child nodes.
type FourCCNode struct {
	Code     [4]byte
	Payload  []byte
	Children []*FourCCNode
}

// GTS is the parsed metadata file.
type GTS struct {
	Version     uint32
	GUID        [16]byte
	TileWidth   int32
	TileHeight  int32
	TileBorder  int32
	PageSize    uint32
	Layers      []Layer
	Levels      []Level
	Parameters  []ParameterBlock
	PageFiles   []PageFileDescriptor
	PackedTileIDs []uint32
	FlatTileInfos []FlatTileInfo
	FourCC      *FourCCNode
}

// Chunk is one page's compressed tile payload location within a GTP
// file.
type Chunk struct {
	Offset         uint64
	CompressedSize uint32
}

// Page is a list of independently decompressible chunks.
type Page struct {
	Chunks []Chunk
}

// GTP is the parsed page file.
type GTP struct {
	Version uint32
	GUID    [16]byte
	Pages   []Page

	data []byte
}

// Errors returned by this package.
var (
	ErrBadMagic        = errors.New("vt: magic not found")
	ErrGUIDMismatch    = errors.New("vt: GTP GUID does not match GTS page-file descriptor")
	ErrTileNotFound    = errors.New("vt: packed tile id not present in this virtual texture")
	ErrIndexOutOfRange = errors.New("vt: flat tile info index out of range")
	ErrUnsupportedDDS  = errors.New("vt: unsupported DDS pixel format")
	ErrNoGTSFound      = errors.New("vt: no GTS file found for path")
)
