// Package compress implements a uniform compression adapter surface,
// Compress(method, data) and Decompress(method, input, uncompressedSize),
// fronting LZ4 block/frame, zlib, and the mesh container's bespoke range
// coder.
package compress

import "errors"

// Method identifies one of the compression schemes the binary formats use.
type Method uint8

// Supported methods.
const (
	MethodNone Method = iota
	MethodLZ4Block
	MethodLZ4Frame
	MethodZlib
	MethodRangeCodec
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodLZ4Block:
		return "lz4_block"
	case MethodLZ4Frame:
		return "lz4_frame"
	case MethodZlib:
		return "zlib"
	case MethodRangeCodec:
		return "range_codec"
	default:
		return "unknown"
	}
}

// ErrUnsupportedMethod is returned for a method value outside the Method enum.
var ErrUnsupportedMethod = errors.New("compress: unsupported method")

// ErrWrongSize is returned when a decoded payload doesn't match the
// declared uncompressed size.
var ErrWrongSize = errors.New("compress: decompressed size does not match declared size")

// Decompress decodes input using method, verifying the result is exactly
// uncompressedSize bytes long.
func Decompress(method Method, input []byte, uncompressedSize int) ([]byte, error) {
	switch method {
	case MethodNone:
		if len(input) != uncompressedSize {
			return nil, ErrWrongSize
		}
		out := make([]byte, uncompressedSize)
		copy(out, input)
		return out, nil
	case MethodLZ4Block:
		return decompressLZ4Block(input, uncompressedSize)
	case MethodLZ4Frame:
		return decompressLZ4Frame(input, uncompressedSize)
	case MethodZlib:
		return decompressZlib(input, uncompressedSize)
	case MethodRangeCodec:
		return decompressRangeCodec(input, uncompressedSize)
	default:
		return nil, ErrUnsupportedMethod
	}
}

// Compress encodes data using method.
func Compress(method Method, data []byte) ([]byte, error) {
	switch method {
	case MethodNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case MethodLZ4Block:
		return compressLZ4Block(data)
	case MethodLZ4Frame:
		return compressLZ4Frame(data)
	case MethodZlib:
		return compressZlib(data)
	case MethodRangeCodec:
		return nil, errors.New("compress: range codec encoding is not implemented, only decoding")
	default:
		return nil, ErrUnsupportedMethod
	}
}
