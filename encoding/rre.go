package encoding

import (
	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

// RREEncoder implements encoding type 2: a background colour plus a set
// of solid-colour subrectangles covering every pixel that differs from
// it. Subrectangles are derived as maximal same-colour runs within each
// scanline; this keeps the subrectangle set trivially axis-aligned and
// non-overlapping without a 2D region-growing pass.
type RREEncoder struct{}

func (RREEncoder) Type() int32 { return rfb.EncodingRRE }

type rreSubrect struct {
	pixel      []byte
	x, y, w, h uint16
}

func (RREEncoder) Encode(bgra []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	converted := pixfmt.Convert(bgra, w, h, format)
	bpp := format.BytesPerPixel()

	bg := mostFrequentPixel(converted, w, h, bpp)

	var subrects []rreSubrect
	for y := 0; y < h; y++ {
		x := 0
		for x < w {
			px := pixelAt(converted, w, bpp, x, y)
			if bytesEqual(px, bg) {
				x++
				continue
			}
			runStart := x
			for x < w && bytesEqual(pixelAt(converted, w, bpp, x, y), px) {
				x++
			}
			subrects = append(subrects, rreSubrect{
				pixel: px, x: uint16(runStart), y: uint16(y),
				w: uint16(x - runStart), h: 1,
			})
		}
	}

	out := make([]byte, 0, 4+bpp+len(subrects)*(bpp+8))
	out = append(out, byte(len(subrects)>>24), byte(len(subrects)>>16), byte(len(subrects)>>8), byte(len(subrects)))
	out = append(out, bg...)
	for _, s := range subrects {
		out = append(out, s.pixel...)
		out = append(out, byte(s.x>>8), byte(s.x), byte(s.y>>8), byte(s.y), byte(s.w>>8), byte(s.w), byte(s.h>>8), byte(s.h))
	}
	return out, nil
}

func pixelAt(data []byte, w, bpp, x, y int) []byte {
	off := (y*w + x) * bpp
	return data[off : off+bpp]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mostFrequentPixel picks the background colour RRE overlays its
// subrectangles on top of, per spec.md §4.2.
func mostFrequentPixel(data []byte, w, h, bpp int) []byte {
	counts := make(map[string]int)
	best := data[0:bpp]
	bestCount := 0
	for i := 0; i < w*h; i++ {
		px := data[i*bpp : i*bpp+bpp]
		key := string(px)
		counts[key]++
		if counts[key] > bestCount {
			bestCount = counts[key]
			best = px
		}
	}
	return best
}
