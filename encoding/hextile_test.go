package encoding

import (
	"bytes"
	"testing"

	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

func TestHextileEncoderRoundTrip(t *testing.T) {
	format := rfb.DefaultPixelFormat()
	w, h := 20, 18 // spans a 16x16 tile plus narrower edge tiles.
	bgra := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			bgra[i+3] = 255
			if (x+y)%7 == 0 {
				bgra[i+0], bgra[i+1], bgra[i+2] = 200, 50, 10
			}
		}
	}

	out, err := HextileEncoder{}.Encode(bgra, w, h, format)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	converted, err := DecodeHextile(out, w, h, format)
	if err != nil {
		t.Fatalf("DecodeHextile: %v", err)
	}
	decodedBGRA := pixfmt.Decode(converted, w, h, format)
	if !bytes.Equal(decodedBGRA, bgra) {
		t.Fatalf("round trip mismatch for %dx%d hextile grid", w, h)
	}
}

func TestHextileEncoderSolidTileOmitsSubrects(t *testing.T) {
	format := rfb.DefaultPixelFormat()
	w, h := 16, 16
	bgra := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		bgra[i*4+0], bgra[i*4+1], bgra[i*4+2], bgra[i*4+3] = 3, 3, 3, 255
	}
	out, err := HextileEncoder{}.Encode(bgra, w, h, format)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out[0]&rfb.HextileAnySubrects != 0 {
		t.Fatalf("flags = %#x, expected no AnySubrects flag for a solid tile", out[0])
	}
}
