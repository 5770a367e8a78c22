package hc

import "errors"

// Sentinel errors, grouped by kind: malformed input, an invariant the
// writer was asked to violate, or an input feature this build doesn't
// implement.
var (
	// malformed-input
	ErrBadMagic         = errors.New("hc: magic \"LSOF\" not found")
	ErrUnsupportedVersion = errors.New("hc: unsupported container version")
	ErrIndexOutOfRange  = errors.New("hc: name or table index out of range")
	ErrTruncatedSection = errors.New("hc: section truncated")
	ErrUnknownType      = errors.New("hc: unknown attribute type tag")

	// invariant-violated
	ErrUnresolvedName = errors.New("hc: attribute or node name did not intern")
	ErrLossyV3ToV2    = errors.New("hc: v3 document uses keyed ordering that v2 cannot express")

	// unsupported
	ErrUnsupportedFeature = errors.New("hc: input uses an unimplemented feature")
)
