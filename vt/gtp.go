package vt

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	gtpMagic      = "GTPF"
	gtpVersion    = 1
	gtpHeaderSize = 28 // magic(4) + version(4) + guid(16) + numPages(4)
)

// ReadGTP parses a page file. gts is the metadata file this page file
// belongs to; its matching page-file descriptor's GUID must equal the
// GTP's own GUID or ReadGTP refuses.
func ReadGTP(data []byte, gts *GTS, filename string) (*GTP, error) {
	if len(data) < gtpHeaderSize {
		return nil, fmt.Errorf("%w: gtp: file shorter than header", ErrBadMagic)
	}
	if string(data[:4]) != gtpMagic {
		return nil, fmt.Errorf("%w: gtp", ErrBadMagic)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	var guid [16]byte
	copy(guid[:], data[8:24])
	numPages := binary.LittleEndian.Uint32(data[24:28])

	if gts != nil {
		var desc *PageFileDescriptor
		for i := range gts.PageFiles {
			if gts.PageFiles[i].Filename == filename {
				desc = &gts.PageFiles[i]
				break
			}
		}
		if desc != nil && desc.GUID != guid {
			return nil, ErrGUIDMismatch
		}
	}

	gtp := &GTP{Version: version, GUID: guid, data: data}

	offset := uint64(gtpHeaderSize)
	for p := uint32(0); p < numPages; p++ {
		if offset+4 > uint64(len(data)) {
			return nil, ErrIndexOutOfRange
		}
		chunkCount := binary.LittleEndian.Uint32(data[offset : offset+4])
		offset += 4
		page := Page{Chunks: make([]Chunk, 0, chunkCount)}
		for c := uint32(0); c < chunkCount; c++ {
			if offset+12 > uint64(len(data)) {
				return nil, ErrIndexOutOfRange
			}
			page.Chunks = append(page.Chunks, Chunk{
				Offset:         binary.LittleEndian.Uint64(data[offset : offset+8]),
				CompressedSize: binary.LittleEndian.Uint32(data[offset+8 : offset+12]),
			})
			offset += 12
		}
		gtp.Pages = append(gtp.Pages, page)
	}
	return gtp, nil
}

// NumPages reports the number of pages in the file.
func (g *GTP) NumPages() int { return len(g.Pages) }

// NumChunks reports the number of chunks in page p.
func (g *GTP) NumChunks(p int) int {
	if p < 0 || p >= len(g.Pages) {
		return 0
	}
	return len(g.Pages[p].Chunks)
}

// ReadChunk returns the raw (still compressed) bytes of one chunk,
// read on demand rather than eagerly decompressed.
func (g *GTP) ReadChunk(page, chunk int) ([]byte, error) {
	if page < 0 || page >= len(g.Pages) {
		return nil, fmt.Errorf("%w: page %d", ErrIndexOutOfRange, page)
	}
	p := g.Pages[page]
	if chunk < 0 || chunk >= len(p.Chunks) {
		return nil, fmt.Errorf("%w: chunk %d of page %d", ErrIndexOutOfRange, chunk, page)
	}
	c := p.Chunks[chunk]
	end := c.Offset + uint64(c.CompressedSize)
	if end > uint64(len(g.data)) {
		return nil, ErrIndexOutOfRange
	}
	return g.data[c.Offset:end], nil
}

// writeGTPHeader writes the 28-byte GTP header.
func writeGTPHeader(buf *bytes.Buffer, guid [16]byte, numPages uint32) {
	buf.WriteString(gtpMagic)
	binary.Write(buf, binary.LittleEndian, uint32(gtpVersion))
	buf.Write(guid[:])
	binary.Write(buf, binary.LittleEndian, numPages)
}

// BuildGTP packs a layer's already-compressed tile chunks into page
// file bytes, starting a new page whenever the running page size would
// exceed pageSize. It returns the encoded file and, for every input
// chunk in order, the
// (PageIndex, ChunkIndex) it landed at; PageFileIndex is left zero since
// that is only known to the caller assembling the owning GTS.
func BuildGTP(guid [16]byte, chunks [][]byte, pageSize uint32) ([]byte, []TileLocation) {
	var pages []Page
	var pageData [][]byte
	locations := make([]TileLocation, len(chunks))

	cur := Page{}
	curData := []byte(nil)
	curSize := uint32(0)
	flush := func() {
		if len(cur.Chunks) == 0 {
			return
		}
		pages = append(pages, cur)
		pageData = append(pageData, curData)
		cur = Page{}
		curData = nil
		curSize = 0
	}
	for i, c := range chunks {
		if curSize+uint32(len(c)) > pageSize && len(cur.Chunks) > 0 {
			flush()
		}
		locations[i] = TileLocation{PageIndex: uint16(len(pages)), ChunkIndex: uint16(len(cur.Chunks))}
		cur.Chunks = append(cur.Chunks, Chunk{CompressedSize: uint32(len(c))})
		curData = append(curData, c...)
		curSize += uint32(len(c))
	}
	flush()

	tableSize := 0
	for _, p := range pages {
		tableSize += 4 + len(p.Chunks)*12
	}
	offset := uint64(gtpHeaderSize + tableSize)

	buf := &bytes.Buffer{}
	writeGTPHeader(buf, guid, uint32(len(pages)))
	for _, p := range pages {
		binary.Write(buf, binary.LittleEndian, uint32(len(p.Chunks)))
		for _, c := range p.Chunks {
			binary.Write(buf, binary.LittleEndian, offset)
			binary.Write(buf, binary.LittleEndian, c.CompressedSize)
			offset += uint64(c.CompressedSize)
		}
	}
	for _, d := range pageData {
		buf.Write(d)
	}
	return buf.Bytes(), locations
}
