package vt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

const (
	gtsMagic     = "GTSF"
	gtsVersion   = 1
	gtsHeaderSize = 156

	layerRecordSize     = 8
	levelRecordSize     = 24
	paramHeaderSize     = 20
	paramPayloadSize    = 56
	pageFileRecordSize  = 536
	flatTileRecordSize  = 12
	packedTileIDSize    = 4
)

// gtsHeader is the fixed 156-byte GTS prefix. Fields are grouped
// count+offset per table: a fixed record carrying an in-file offset
// resolved on demand, one table per kind of GTS record.
type gtsHeader struct {
	Magic      [4]byte
	Version    uint32
	GUID       [16]byte
	TileWidth  int32
	TileHeight int32
	TileBorder int32
	PageSize   uint32

	NumLayers    uint32
	LayersOffset uint64

	NumLevels    uint32
	LevelsOffset uint64

	NumParameterBlocks    uint32
	ParameterBlocksOffset uint64

	NumPageFiles    uint32
	PageFilesOffset uint64

	NumPackedTileIDs    uint32
	PackedTileIDsOffset uint64

	NumFlatTiles    uint32
	FlatTilesOffset uint64

	FourCCSize   uint32
	FourCCOffset uint64

	ThumbnailsOffset uint64
	Reserved         [24]byte
}

// ReadGTS parses a complete GTS metadata file.
func ReadGTS(data []byte) (*GTS, error) {
	if len(data) < gtsHeaderSize {
		return nil, fmt.Errorf("%w: gts: file shorter than header", ErrBadMagic)
	}
	if string(data[:4]) != gtsMagic {
		return nil, fmt.Errorf("%w: gts", ErrBadMagic)
	}

	var h gtsHeader
	if err := binary.Read(bytes.NewReader(data[:gtsHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("vt: read gts header: %w", err)
	}

	gts := &GTS{
		Version:    h.Version,
		GUID:       h.GUID,
		TileWidth:  h.TileWidth,
		TileHeight: h.TileHeight,
		TileBorder: h.TileBorder,
		PageSize:   h.PageSize,
	}

	layers, err := readSlice(data, h.LayersOffset, int(h.NumLayers), layerRecordSize, readLayer)
	if err != nil {
		return nil, fmt.Errorf("vt: read layers: %w", err)
	}
	gts.Layers = layers

	params, err := readParameterBlocks(data, h.ParameterBlocksOffset, int(h.NumParameterBlocks))
	if err != nil {
		return nil, fmt.Errorf("vt: read parameter blocks: %w", err)
	}
	gts.Parameters = params

	pageFiles, err := readPageFiles(data, h.PageFilesOffset, int(h.NumPageFiles))
	if err != nil {
		return nil, fmt.Errorf("vt: read page files: %w", err)
	}
	gts.PageFiles = pageFiles

	packedIDs, err := readSlice(data, h.PackedTileIDsOffset, int(h.NumPackedTileIDs), packedTileIDSize, readPackedTileID)
	if err != nil {
		return nil, fmt.Errorf("vt: read packed tile ids: %w", err)
	}
	gts.PackedTileIDs = packedIDs

	flatTiles, err := readSlice(data, h.FlatTilesOffset, int(h.NumFlatTiles), flatTileRecordSize, readFlatTileInfo)
	if err != nil {
		return nil, fmt.Errorf("vt: read flat tile infos: %w", err)
	}
	gts.FlatTileInfos = flatTiles

	levels, err := readLevels(data, h.LevelsOffset, int(h.NumLevels))
	if err != nil {
		return nil, fmt.Errorf("vt: read levels: %w", err)
	}
	gts.Levels = levels

	if h.FourCCSize > 0 {
		end := h.FourCCOffset + uint64(h.FourCCSize)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: fourcc tree", ErrIndexOutOfRange)
		}
		tree, err := readFourCCTree(bytes.NewReader(data[h.FourCCOffset:end]))
		if err != nil {
			return nil, fmt.Errorf("vt: read fourcc tree: %w", err)
		}
		gts.FourCC = tree
	}

	return gts, nil
}

func readSlice[T any](data []byte, offset uint64, count, size int, decode func([]byte) (T, error)) ([]T, error) {
	out := make([]T, 0, count)
	for i := 0; i < count; i++ {
		start := offset + uint64(i*size)
		end := start + uint64(size)
		if end > uint64(len(data)) {
			return nil, ErrIndexOutOfRange
		}
		v, err := decode(data[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readLayer(b []byte) (Layer, error) {
	return Layer{
		DataType: DataType(binary.LittleEndian.Uint32(b[0:4])),
		Reserved: int32(binary.LittleEndian.Uint32(b[4:8])),
	}, nil
}

func readPackedTileID(b []byte) (uint32, error) {
	return binary.LittleEndian.Uint32(b), nil
}

func readFlatTileInfo(b []byte) (FlatTileInfo, error) {
	return FlatTileInfo{
		PageFileIndex:     binary.LittleEndian.Uint16(b[0:2]),
		PageIndex:         binary.LittleEndian.Uint16(b[2:4]),
		ChunkIndex:        binary.LittleEndian.Uint16(b[4:6]),
		Reserved:          binary.LittleEndian.Uint16(b[6:8]),
		PackedTileIDIndex: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

func readLevels(data []byte, offset uint64, count int) ([]Level, error) {
	levels := make([]Level, 0, count)
	for i := 0; i < count; i++ {
		start := offset + uint64(i*levelRecordSize)
		end := start + levelRecordSize
		if end > uint64(len(data)) {
			return nil, ErrIndexOutOfRange
		}
		b := data[start:end]
		widthTiles := binary.LittleEndian.Uint32(b[0:4])
		heightTiles := binary.LittleEndian.Uint32(b[4:8])
		indicesOffset := binary.LittleEndian.Uint64(b[8:16])
		widthPixels := binary.LittleEndian.Uint32(b[16:20])
		heightPixels := binary.LittleEndian.Uint32(b[20:24])

		n := int(widthTiles * heightTiles)
		indices := make([]uint32, 0, n)
		// The per-level flat-tile-index array holds the present tiles of
		// every layer (missing tiles are legal and absent), so its length
		// is not tied to the grid size. WriteGTS stores the arrays back to
		// back just before the levels table, so an array runs up to the
		// next level's array, or up to the levels table for the last
		// level. When the offsets do not show that layout, at most the
		// grid count of indices is read.
		limit := offset
		if i+1 < count && end+16 <= uint64(len(data)) {
			limit = binary.LittleEndian.Uint64(data[end+8 : end+16])
		}
		if limit < indicesOffset || limit > uint64(len(data)) {
			limit = indicesOffset + uint64(n)*4
		}
		for s := indicesOffset; s+4 <= limit && s+4 <= uint64(len(data)); s += 4 {
			indices = append(indices, binary.LittleEndian.Uint32(data[s:s+4]))
		}

		levels = append(levels, Level{
			WidthTiles:      widthTiles,
			HeightTiles:     heightTiles,
			FlatTileIndices: indices,
			WidthPixels:     widthPixels,
			HeightPixels:    heightPixels,
		})
	}
	return levels, nil
}

func readParameterBlocks(data []byte, offset uint64, count int) ([]ParameterBlock, error) {
	out := make([]ParameterBlock, 0, count)
	for i := 0; i < count; i++ {
		hStart := offset + uint64(i*paramHeaderSize)
		hEnd := hStart + paramHeaderSize
		if hEnd > uint64(len(data)) {
			return nil, ErrIndexOutOfRange
		}
		h := data[hStart:hEnd]
		payloadOffset := binary.LittleEndian.Uint64(h[12:20])
		pEnd := payloadOffset + paramPayloadSize
		if pEnd > uint64(len(data)) {
			return nil, ErrIndexOutOfRange
		}
		p := data[payloadOffset:pEnd]

		var block ParameterBlock
		block.Version = binary.LittleEndian.Uint16(p[0:2])
		copy(block.Compression1[:], p[2:18])
		copy(block.Compression2[:], p[18:34])
		// offsets 34-38: b (u32), 38: c1, 39: c2, 40: bc_field3
		block.DataType = p[41]
		// 42-44: d (u16)
		block.FourCC = binary.LittleEndian.Uint32(p[44:48])
		// 48: e1
		block.EmbedMip = p[49] != 0
		out = append(out, block)
	}
	return out, nil
}

func readPageFiles(data []byte, offset uint64, count int) ([]PageFileDescriptor, error) {
	utf16Decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out := make([]PageFileDescriptor, 0, count)
	for i := 0; i < count; i++ {
		start := offset + uint64(i*pageFileRecordSize)
		end := start + pageFileRecordSize
		if end > uint64(len(data)) {
			return nil, ErrIndexOutOfRange
		}
		b := data[start:end]
		nameBytes := b[:512]
		n := bytes.Index(nameBytes, []byte{0, 0})
		if n < 0 {
			n = len(nameBytes)
		} else if n%2 != 0 {
			n++
		}
		name, err := utf16Decoder.Bytes(nameBytes[:n])
		if err != nil {
			return nil, fmt.Errorf("vt: decode page file name: %w", err)
		}
		var guid [16]byte
		copy(guid[:], b[516:532])
		out = append(out, PageFileDescriptor{
			Filename: string(name),
			NumPages: binary.LittleEndian.Uint32(b[512:516]),
			GUID:     guid,
		})
	}
	return out, nil
}

func readFourCCTree(r io.Reader) (*FourCCNode, error) {
	var code [4]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	var childCount uint32
	if err := binary.Read(r, binary.LittleEndian, &childCount); err != nil {
		return nil, err
	}
	node := &FourCCNode{Code: code, Payload: payload}
	for i := uint32(0); i < childCount; i++ {
		child, err := readFourCCTree(r)
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
