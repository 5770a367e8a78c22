package vt

import (
	"encoding/binary"
	"fmt"
)

// DDS is a minimal DirectDraw Surface reader/writer covering exactly
// the block-compressed formats this virtual-texture codec trades in:
// the extracted tile data stays BC-compressed end to end. No library
// in the dependency set parses DDS, so this is a deliberate,
// narrowly-scoped standard-library reader rather than a general DDS
// library (see DESIGN.md).
type DDS struct {
	Width    uint32
	Height   uint32
	DataType DataType
	MipCount uint32
	// Data is the raw BC-compressed payload, mip 0 first, concatenated.
	Data []byte
	// MipOffsets[i] is Data's byte offset for mip level i.
	MipOffsets []int
}

const (
	ddsMagic       = "DDS "
	ddsHeaderSize  = 124
	ddsPFSize      = 32
	dx10HeaderSize = 20

	dxgiFormatBC1UNorm = 71
	dxgiFormatBC3UNorm = 77
	dxgiFormatBC5UNorm = 83
	dxgiFormatBC7UNorm = 98
)

func fourCC(s string) uint32 {
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

// ReadDDS parses a DDS file's header and raw BC payload.
func ReadDDS(data []byte) (*DDS, error) {
	if len(data) < 4+ddsHeaderSize || string(data[:4]) != ddsMagic {
		return nil, fmt.Errorf("%w: not a DDS file", ErrUnsupportedDDS)
	}
	h := data[4:]
	height := binary.LittleEndian.Uint32(h[8:12])
	width := binary.LittleEndian.Uint32(h[12:16])
	mipCount := binary.LittleEndian.Uint32(h[24:28])
	if mipCount == 0 {
		mipCount = 1
	}

	pf := h[72:104]
	pfFourCC := binary.LittleEndian.Uint32(pf[8:12])

	body := data[4+ddsHeaderSize:]
	var dataType DataType
	switch pfFourCC {
	case fourCC("DXT1"):
		dataType = DataTypeBC1
	case fourCC("DXT5"):
		dataType = DataTypeBC3
	case fourCC("ATI2"), fourCC("BC5U"):
		dataType = DataTypeBC5
	case fourCC("DX10"):
		if len(body) < dx10HeaderSize {
			return nil, fmt.Errorf("%w: truncated DX10 header", ErrUnsupportedDDS)
		}
		dxgi := binary.LittleEndian.Uint32(body[0:4])
		switch dxgi {
		case dxgiFormatBC1UNorm:
			dataType = DataTypeBC1
		case dxgiFormatBC3UNorm:
			dataType = DataTypeBC3
		case dxgiFormatBC5UNorm:
			dataType = DataTypeBC5
		case dxgiFormatBC7UNorm:
			dataType = DataTypeBC7
		default:
			return nil, fmt.Errorf("%w: dxgi format %d", ErrUnsupportedDDS, dxgi)
		}
		body = body[dx10HeaderSize:]
	default:
		return nil, fmt.Errorf("%w: fourcc %08x", ErrUnsupportedDDS, pfFourCC)
	}

	blockSize := dataType.BlockSize()
	if blockSize == 0 {
		return nil, ErrUnsupportedDDS
	}

	offsets := make([]int, 0, mipCount)
	offset := 0
	w, hh := width, height
	for i := uint32(0); i < mipCount; i++ {
		offsets = append(offsets, offset)
		blocksWide := (w + 3) / 4
		blocksHigh := (hh + 3) / 4
		offset += int(blocksWide*blocksHigh) * blockSize
		w = max32(w/2, 1)
		hh = max32(hh/2, 1)
	}
	if offset > len(body) {
		return nil, fmt.Errorf("%w: payload shorter than declared mips", ErrUnsupportedDDS)
	}

	return &DDS{
		Width:      width,
		Height:     height,
		DataType:   dataType,
		MipCount:   mipCount,
		Data:       append([]byte(nil), body[:offset]...),
		MipOffsets: offsets,
	}, nil
}

// MipData returns (data, width, height) for the given mip level.
func (d *DDS) MipData(level uint32) ([]byte, uint32, uint32, error) {
	if level >= d.MipCount {
		return nil, 0, 0, fmt.Errorf("%w: mip %d", ErrIndexOutOfRange, level)
	}
	w := max32(d.Width>>level, 1)
	h := max32(d.Height>>level, 1)
	blockSize := d.DataType.BlockSize()
	blocksWide := (w + 3) / 4
	blocksHigh := (h + 3) / 4
	size := int(blocksWide*blocksHigh) * blockSize
	start := d.MipOffsets[level]
	end := start + size
	if end > len(d.Data) {
		return nil, 0, 0, fmt.Errorf("%w: mip %d payload truncated", ErrIndexOutOfRange, level)
	}
	return d.Data[start:end], w, h, nil
}

// WriteDDS encodes a single-layer BC-compressed image with its full
// mip chain into a DDS file.
func WriteDDS(width, height uint32, dataType DataType, mips [][]byte) ([]byte, error) {
	blockSize := dataType.BlockSize()
	if blockSize == 0 {
		return nil, ErrUnsupportedDDS
	}

	out := make([]byte, 0, 4+ddsHeaderSize+dx10HeaderSize+totalLen(mips))
	out = append(out, ddsMagic...)

	header := make([]byte, ddsHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], ddsHeaderSize)
	flags := uint32(0x1 | 0x2 | 0x4 | 0x1000 | 0x20000 | 0x80000)
	binary.LittleEndian.PutUint32(header[4:8], flags)
	binary.LittleEndian.PutUint32(header[8:12], height)
	binary.LittleEndian.PutUint32(header[12:16], width)
	blocksWide := (width + 3) / 4
	blocksHigh := (height + 3) / 4
	binary.LittleEndian.PutUint32(header[16:20], blocksWide*blocksHigh*uint32(blockSize))
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(mips)))

	pf := header[72:104]
	binary.LittleEndian.PutUint32(pf[0:4], ddsPFSize)
	binary.LittleEndian.PutUint32(pf[4:8], 0x4) // DDPF_FOURCC
	binary.LittleEndian.PutUint32(pf[8:12], fourCC("DX10"))

	caps := header[104:108]
	binary.LittleEndian.PutUint32(caps, 0x1000|0x400000)

	out = append(out, header...)

	dx10 := make([]byte, dx10HeaderSize)
	var dxgi uint32
	switch dataType {
	case DataTypeBC1:
		dxgi = dxgiFormatBC1UNorm
	case DataTypeBC3:
		dxgi = dxgiFormatBC3UNorm
	case DataTypeBC5:
		dxgi = dxgiFormatBC5UNorm
	case DataTypeBC7:
		dxgi = dxgiFormatBC7UNorm
	default:
		return nil, ErrUnsupportedDDS
	}
	binary.LittleEndian.PutUint32(dx10[0:4], dxgi)
	binary.LittleEndian.PutUint32(dx10[4:8], 3) // D3D10_RESOURCE_DIMENSION_TEXTURE2D
	binary.LittleEndian.PutUint32(dx10[12:16], 1)
	out = append(out, dx10...)

	for _, m := range mips {
		out = append(out, m...)
	}
	return out, nil
}

func totalLen(mips [][]byte) int {
	n := 0
	for _, m := range mips {
		n += len(m)
	}
	return n
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
