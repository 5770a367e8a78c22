package compress

import "github.com/CyberDeco/MacPak-sub002/bitio"

// decompressRangeCodec decodes the mesh container's bespoke entropy
// stream. The caller is responsible for splitting a section's payload at
// its two stop-points into the three independently decoded sub-streams
// before calling this per sub-stream. The gr2 package does not go through
// this adapter: gr2.decodeRangeCodecSection splits the payload and drives
// bitio.RangeDecoder itself.
func decompressRangeCodec(input []byte, uncompressedSize int) ([]byte, error) {
	dec := bitio.NewRangeDecoder(input)
	out, err := dec.Decode(uncompressedSize)
	if err != nil {
		return out, err
	}
	return out, nil
}
