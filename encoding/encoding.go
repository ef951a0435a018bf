// Package encoding implements the server-side rectangle encoder family
// (component C2) and the adaptive encoder selector (component C3).
// Every encoder turns a rectangle's BGRA pixels into the wire bytes
// RFC 6143 defines for its encoding type; none of them do network I/O
// themselves. ZRLE and Zlib keep a persistent compression stream across
// calls, so their output depends on what they encoded before.
package encoding

import (
	"github.com/brightloom/vncd/rfb"
)

// Hint classifies a rectangle for the selector, per spec.md §4.3.
type Hint int

const (
	HintStatic Hint = iota
	HintDynamic
	HintScrolling
	HintSolid
)

// CopyRectSource describes a verified prior-frame match used to emit a
// CopyRect rectangle; see Selector.Choose.
type CopyRectSource struct {
	SrcX, SrcY uint16
}

// Encoder is implemented by every rectangle encoder. Type returns the
// RFB encoding identifier; Encode converts one rectangle's BGRA pixels
// (width*height*4 bytes) into the wire bytes for a FramebufferUpdate
// rectangle body (not including the rectangle header).
type Encoder interface {
	Type() int32
	Encode(bgra []byte, w, h int, format rfb.PixelFormat) ([]byte, error)
}
