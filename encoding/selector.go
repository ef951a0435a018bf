package encoding

import (
	"github.com/brightloom/vncd/rfb"
)

// NetworkProfile classifies the connection's link quality, driving the
// selector's encoding preference (spec.md §4.3).
type NetworkProfile int

const (
	ProfileLocalhost NetworkProfile = iota
	ProfileLAN
	ProfileWAN
)

// solidThreshold is the minimum fraction of pixels that must share the
// rectangle's most common colour for it to be classified HintSolid.
const solidThreshold = 0.95

// Selector picks an encoding per rectangle from the client's advertised
// preference list, a content hint, the rectangle's pixel area, and the
// connection's active NetworkProfile (spec.md §4.3).
type Selector struct {
	// ClientEncodings is the client's SetEncodings list verbatim, signed
	// 32-bit ids in the order the client sent them (their preference
	// order, per RFC 6143 §7.6.2).
	ClientEncodings []int32
	Profile         NetworkProfile

	Raw        RawEncoder
	RRE        RREEncoder
	Hextile    HextileEncoder
	ZRLE       *ZRLEEncoder
	Zlib       *ZlibEncoder
	EnableZlib bool

	// LAN adaptive-mode thresholds, spec.md §4.3 rule 4. A zero Raw
	// threshold never matches; zero Zlib thresholds always match, so
	// Zlib selection then depends only on EnableZlib, Zlib and the
	// client's list.
	LANRawAreaThreshold   int
	LANRawMaxPixels       int
	LANZlibAreaThreshold  int
	LANZlibMinPixels      int
	LANZlibWarmupRequests int

	// requestCount counts scheduler cycles that captured a frame for a
	// pending request, advanced by NoteRequest once per cycle; it
	// drives the Zlib warm-up check ("client not in Zlib warm-up").
	requestCount int
}

// NoteRequest records one scheduler cycle that captured a frame for a
// pending FramebufferUpdateRequest, advancing the Zlib warm-up counter
// rule 4 checks. The scheduler calls this once per such cycle, including
// cycles that hold the request back, not once per rectangle.
func (s *Selector) NoteRequest() {
	s.requestCount++
}

// supports reports whether the client advertised encoding id.
func (s *Selector) supports(id int32) bool {
	for _, e := range s.ClientEncodings {
		if e == id {
			return true
		}
	}
	return false
}

// Choose implements the ordered rule set of spec.md §4.3. copySrc is
// non-nil only when hint is HintScrolling and the framebuffer package
// has already verified a byte-exact match in the prior snapshot; when
// nil, scrolling rectangles fall through to the remaining rules.
func (s *Selector) Choose(hint Hint, area int, copySrc *CopyRectSource) Encoder {
	if hint == HintScrolling && copySrc != nil && s.supports(rfb.EncodingCopyRect) {
		return CopyRectEncoder{SrcX: copySrc.SrcX, SrcY: copySrc.SrcY}
	}

	if hint == HintSolid && s.supports(rfb.EncodingRRE) {
		return s.RRE
	}

	switch s.Profile {
	case ProfileWAN:
		if s.ZRLE != nil && s.supports(rfb.EncodingZRLE) {
			return s.ZRLE
		}
		if s.supports(rfb.EncodingHextile) {
			return s.Hextile
		}
	case ProfileLAN:
		if enc, ok := s.chooseLAN(area); ok {
			return enc
		}
	case ProfileLocalhost:
		if s.supports(rfb.EncodingRaw) {
			return s.Raw
		}
	}

	return s.fallback()
}

// chooseLAN implements spec.md §4.3 rule 4's adaptive-mode threshold
// table: Raw for small rectangles, Zlib once the client is past its
// warm-up and the rectangle is large enough to be worth deflating,
// JPEG for large dynamic rectangles (not implemented in this build —
// see DESIGN.md), else ZRLE.
func (s *Selector) chooseLAN(area int) (Encoder, bool) {
	if s.supports(rfb.EncodingRaw) && area < s.LANRawAreaThreshold && area < s.LANRawMaxPixels {
		return s.Raw, true
	}
	if s.EnableZlib && s.Zlib != nil && s.supports(rfb.EncodingZlib) &&
		area >= s.LANZlibAreaThreshold && area >= s.LANZlibMinPixels &&
		s.requestCount >= s.LANZlibWarmupRequests {
		return s.Zlib, true
	}
	// JPEG (rule 4's third bullet) requires a Tight/JPEG codec this
	// build does not implement (see DESIGN.md); that branch never
	// matches, so adaptive LAN rectangles that miss Raw and Zlib fall
	// through to ZRLE exactly as rule 4's "else" already specifies.
	if s.ZRLE != nil && s.supports(rfb.EncodingZRLE) {
		return s.ZRLE, true
	}
	return nil, false
}

// fallback implements the final Hextile → RRE → Raw chain, per spec.md
// §4.3 rule 6.
func (s *Selector) fallback() Encoder {
	if s.supports(rfb.EncodingHextile) {
		return s.Hextile
	}
	if s.supports(rfb.EncodingRRE) {
		return s.RRE
	}
	return s.Raw
}

// PreferRawIfSmaller implements the "a chosen encoder that would emit
// more bytes than Raw MUST fall back to Raw" rule: encoded is the bytes
// the selected encoder already produced, rawEncoded is what Raw would
// have produced for the same rectangle. It returns whichever is smaller,
// paired with its encoding id.
func PreferRawIfSmaller(chosenID int32, encoded []byte, rawEncoded []byte) (int32, []byte) {
	if len(encoded) > len(rawEncoded) {
		return rfb.EncodingRaw, rawEncoded
	}
	return chosenID, encoded
}
