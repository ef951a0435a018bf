package encoding

import (
	"github.com/brightloom/vncd/rfb"
)

// CopyRectEncoder implements encoding type 1. It carries no pixel data
// of its own; the caller (the framebuffer package's source search) is
// responsible for having verified that the prior snapshot at
// (SrcX, SrcY, w, h) is byte-identical to the rectangle being encoded,
// per spec.md Invariant 5 and Testable Property 5. Encode here only
// serializes the already-verified source coordinates.
type CopyRectEncoder struct {
	SrcX, SrcY uint16
}

func (CopyRectEncoder) Type() int32 { return rfb.EncodingCopyRect }

func (c CopyRectEncoder) Encode(_ []byte, _, _ int, _ rfb.PixelFormat) ([]byte, error) {
	return []byte{
		byte(c.SrcX >> 8), byte(c.SrcX),
		byte(c.SrcY >> 8), byte(c.SrcY),
	}, nil
}
