package compress

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

func decompressLZ4Block(input []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(input, dst)
	if err != nil {
		return nil, err
	}
	if n != uncompressedSize {
		return nil, ErrWrongSize
	}
	return dst, nil
}

func compressLZ4Block(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var c lz4.Compressor
	n, err := c.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// lz4.CompressBlock returns n==0 when data is incompressible.
		// Callers (hc, pak) treat compressed_size==uncompressed_size as
		// "stored raw", so hand the original bytes back rather than an
		// empty block.
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return dst[:n], nil
}

func decompressLZ4Frame(input []byte, uncompressedSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(input))
	out := make([]byte, uncompressedSize)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if n != uncompressedSize {
		return nil, ErrWrongSize
	}
	return out, nil
}

func compressLZ4Frame(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
