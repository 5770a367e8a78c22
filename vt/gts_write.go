package vt

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// WriteGTS serializes gts back to its binary form, the inverse of
// ReadGTS. Tables are written in this order: layers, levels'
// flat-tile-index arrays, levels, parameter block headers+payloads,
// page files, fourcc tree, packed tile ids, flat tile infos. The reader
// finds each table through its offset in the header.
func WriteGTS(g *GTS) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Write(make([]byte, gtsHeaderSize)) // placeholder, patched below

	layersOffset := uint64(buf.Len())
	for _, l := range g.Layers {
		binary.Write(buf, binary.LittleEndian, uint32(l.DataType))
		binary.Write(buf, binary.LittleEndian, l.Reserved)
	}

	levelIndexOffsets := make([]uint64, len(g.Levels))
	for i, lvl := range g.Levels {
		levelIndexOffsets[i] = uint64(buf.Len())
		for _, idx := range lvl.FlatTileIndices {
			binary.Write(buf, binary.LittleEndian, idx)
		}
	}

	levelsOffset := uint64(buf.Len())
	for i, lvl := range g.Levels {
		binary.Write(buf, binary.LittleEndian, lvl.WidthTiles)
		binary.Write(buf, binary.LittleEndian, lvl.HeightTiles)
		binary.Write(buf, binary.LittleEndian, levelIndexOffsets[i])
		binary.Write(buf, binary.LittleEndian, lvl.WidthPixels)
		binary.Write(buf, binary.LittleEndian, lvl.HeightPixels)
	}

	paramHeadersOffset := uint64(buf.Len())
	headerPatchPos := make([]int, len(g.Parameters))
	for i := range g.Parameters {
		binary.Write(buf, binary.LittleEndian, uint32(i))
		binary.Write(buf, binary.LittleEndian, uint32(9)) // codec = BC
		binary.Write(buf, binary.LittleEndian, uint32(paramPayloadSize))
		headerPatchPos[i] = buf.Len()
		binary.Write(buf, binary.LittleEndian, uint64(0))
	}
	paramPayloadOffsets := make([]uint64, len(g.Parameters))
	for i, p := range g.Parameters {
		paramPayloadOffsets[i] = uint64(buf.Len())
		writeParameterBlock(buf, p)
	}

	pageFilesOffset := uint64(buf.Len())
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	for _, pf := range g.PageFiles {
		writePageFileDescriptor(buf, pf, encoder)
	}

	var fourccOffset uint64
	var fourccSize uint32
	if g.FourCC != nil {
		fourccOffset = uint64(buf.Len())
		before := buf.Len()
		writeFourCCTree(buf, g.FourCC)
		fourccSize = uint32(buf.Len() - before)
	}

	packedTilesOffset := uint64(buf.Len())
	for _, id := range g.PackedTileIDs {
		binary.Write(buf, binary.LittleEndian, id)
	}

	flatTilesOffset := uint64(buf.Len())
	for _, ft := range g.FlatTileInfos {
		binary.Write(buf, binary.LittleEndian, ft.PageFileIndex)
		binary.Write(buf, binary.LittleEndian, ft.PageIndex)
		binary.Write(buf, binary.LittleEndian, ft.ChunkIndex)
		binary.Write(buf, binary.LittleEndian, ft.Reserved)
		binary.Write(buf, binary.LittleEndian, ft.PackedTileIDIndex)
	}

	out := buf.Bytes()
	for i, pos := range headerPatchPos {
		binary.LittleEndian.PutUint64(out[pos:pos+8], paramPayloadOffsets[i])
	}

	var h gtsHeader
	copy(h.Magic[:], gtsMagic)
	h.Version = gtsVersion
	h.GUID = g.GUID
	h.TileWidth = g.TileWidth
	h.TileHeight = g.TileHeight
	h.TileBorder = g.TileBorder
	h.PageSize = g.PageSize
	h.NumLayers = uint32(len(g.Layers))
	h.LayersOffset = layersOffset
	h.NumLevels = uint32(len(g.Levels))
	h.LevelsOffset = levelsOffset
	h.NumParameterBlocks = uint32(len(g.Parameters))
	h.ParameterBlocksOffset = paramHeadersOffset
	h.NumPageFiles = uint32(len(g.PageFiles))
	h.PageFilesOffset = pageFilesOffset
	h.NumPackedTileIDs = uint32(len(g.PackedTileIDs))
	h.PackedTileIDsOffset = packedTilesOffset
	h.NumFlatTiles = uint32(len(g.FlatTileInfos))
	h.FlatTilesOffset = flatTilesOffset
	h.FourCCSize = fourccSize
	h.FourCCOffset = fourccOffset

	headerBuf := &bytes.Buffer{}
	binary.Write(headerBuf, binary.LittleEndian, h)
	copy(out[:gtsHeaderSize], headerBuf.Bytes())

	return out, nil
}

func writeParameterBlock(buf *bytes.Buffer, p ParameterBlock) {
	binary.Write(buf, binary.LittleEndian, p.Version)
	buf.Write(p.Compression1[:])
	buf.Write(p.Compression2[:])
	binary.Write(buf, binary.LittleEndian, uint32(0)) // b
	buf.WriteByte(0)                                  // c1
	buf.WriteByte(0)                                  // c2
	buf.WriteByte(0)                                  // bc_field3
	buf.WriteByte(p.DataType)
	binary.Write(buf, binary.LittleEndian, uint16(0)) // d
	binary.Write(buf, binary.LittleEndian, p.FourCC)
	buf.WriteByte(0) // e1
	if p.EmbedMip {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteByte(0) // e3
	buf.WriteByte(0) // e4
	binary.Write(buf, binary.LittleEndian, uint32(0))
}

func writePageFileDescriptor(buf *bytes.Buffer, pf PageFileDescriptor, encoder *encoding.Encoder) {
	nameBytes := make([]byte, 512)
	encoded, _ := encoder.String(pf.Filename)
	copy(nameBytes, encoded)
	buf.Write(nameBytes)
	binary.Write(buf, binary.LittleEndian, pf.NumPages)
	buf.Write(pf.GUID[:])
	binary.Write(buf, binary.LittleEndian, uint32(2))
}

func writeFourCCTree(buf *bytes.Buffer, node *FourCCNode) {
	if node == nil {
		return
	}
	buf.Write(node.Code[:])
	binary.Write(buf, binary.LittleEndian, uint32(len(node.Payload)))
	buf.Write(node.Payload)
	binary.Write(buf, binary.LittleEndian, uint32(len(node.Children)))
	for _, c := range node.Children {
		writeFourCCTree(buf, c)
	}
}
