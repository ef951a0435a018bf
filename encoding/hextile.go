package encoding

import (
	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

// hextileTileSize is the fixed tile dimension RFC 6143 §7.7.4 defines;
// edge tiles are narrower/shorter rather than padded.
const hextileTileSize = 16

// HextileEncoder implements encoding type 5. Subrectangles are always
// emitted coloured (flag 0x10): the foreground-specified optimisation
// (0x04, a single shared colour for all of a tile's subrects) is a valid
// wire-compatible optimisation this encoder chooses not to perform, in
// exchange for a simpler, always-correct tile body.
type HextileEncoder struct{}

func (HextileEncoder) Type() int32 { return rfb.EncodingHextile }

func (HextileEncoder) Encode(bgra []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	converted := pixfmt.Convert(bgra, w, h, format)
	bpp := format.BytesPerPixel()

	var out []byte
	var runningBg []byte
	first := true

	for ty := 0; ty < h; ty += hextileTileSize {
		th := hextileTileSize
		if ty+th > h {
			th = h - ty
		}
		for tx := 0; tx < w; tx += hextileTileSize {
			tw := hextileTileSize
			if tx+tw > w {
				tw = w - tx
			}

			bg := mostFrequentPixelInTile(converted, w, bpp, tx, ty, tw, th)
			subrects := nonBackgroundRuns(converted, w, bpp, tx, ty, tw, th, bg)

			var flags byte
			bgChanged := first || !bytesEqual(bg, runningBg)
			if bgChanged {
				flags |= rfb.HextileBackgroundSpecified
			}
			if len(subrects) > 0 {
				flags |= rfb.HextileAnySubrects | rfb.HextileSubrectsColoured
			}

			out = append(out, flags)
			if bgChanged {
				out = append(out, bg...)
				runningBg = bg
			}
			first = false

			if len(subrects) > 0 {
				out = append(out, byte(len(subrects)))
				for _, s := range subrects {
					out = append(out, s.pixel...)
					out = append(out, byte(s.x)<<4|byte(s.y), byte(s.w-1)<<4|byte(s.h-1))
				}
			}
		}
	}
	return out, nil
}

func mostFrequentPixelInTile(data []byte, stride, bpp, tx, ty, tw, th int) []byte {
	counts := make(map[string]int)
	var best []byte
	bestCount := 0
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			px := pixelAt(data, stride, bpp, tx+x, ty+y)
			key := string(px)
			counts[key]++
			if counts[key] > bestCount {
				bestCount = counts[key]
				best = px
			}
		}
	}
	return best
}

// nonBackgroundRuns returns per-row maximal same-colour runs within the
// tile that differ from bg, in tile-local coordinates (0..15).
func nonBackgroundRuns(data []byte, stride, bpp, tx, ty, tw, th int, bg []byte) []rreSubrect {
	var subrects []rreSubrect
	for y := 0; y < th; y++ {
		x := 0
		for x < tw {
			px := pixelAt(data, stride, bpp, tx+x, ty+y)
			if bytesEqual(px, bg) {
				x++
				continue
			}
			runStart := x
			for x < tw && bytesEqual(pixelAt(data, stride, bpp, tx+x, ty+y), px) {
				x++
			}
			subrects = append(subrects, rreSubrect{
				pixel: px, x: uint16(runStart), y: uint16(y),
				w: uint16(x - runStart), h: 1,
			})
		}
	}
	return subrects
}
