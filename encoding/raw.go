package encoding

import (
	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

// RawEncoder implements encoding type 0: pixel data verbatim in the
// client's negotiated format. It never fails and is the fallback every
// other encoder's caller may use when the specialised encoding would be
// larger (spec.md §4.3, "a chosen encoder that would emit more bytes
// than Raw MUST fall back to Raw").
type RawEncoder struct{}

func (RawEncoder) Type() int32 { return rfb.EncodingRaw }

func (RawEncoder) Encode(bgra []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	return pixfmt.Convert(bgra, w, h, format), nil
}
