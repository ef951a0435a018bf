package encoding

import (
	"bytes"
	"testing"

	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

func TestZRLEEncoderRoundTrip(t *testing.T) {
	format := rfb.DefaultPixelFormat()
	w, h := 70, 65 // spans more than one 64x64 tile in each dimension.
	bgra := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			bgra[i+3] = 255
			if x < 64 && y < 64 {
				bgra[i+0], bgra[i+1], bgra[i+2] = 7, 7, 7 // solid tile
			} else {
				bgra[i+0] = byte(x % 251)
				bgra[i+1] = byte(y % 251)
				bgra[i+2] = byte((x + y) % 251)
			}
		}
	}

	enc := NewZRLEEncoder()
	out, err := enc.Encode(bgra, w, h, format)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	length := int(out[0])<<24 | int(out[1])<<16 | int(out[2])<<8 | int(out[3])
	compressed := out[4 : 4+length]
	zr, err := NewZlibInflater(compressed)
	if err != nil {
		t.Fatalf("NewZlibInflater: %v", err)
	}
	defer zr.Close()

	converted, err := DecodeZRLE(out, w, h, format, zr)
	if err != nil {
		t.Fatalf("DecodeZRLE: %v", err)
	}
	decodedBGRA := pixfmt.Decode(converted, w, h, format)
	if !bytes.Equal(decodedBGRA, bgra) {
		t.Fatalf("round trip mismatch for %dx%d ZRLE grid", w, h)
	}
}

func TestZRLEEncoderStreamPersistsAcrossCalls(t *testing.T) {
	format := rfb.DefaultPixelFormat()
	bgra := make([]byte, 64*64*4)
	for i := range bgra {
		bgra[i] = 1
	}
	enc := NewZRLEEncoder()

	first, err := enc.Encode(bgra, 64, 64, format)
	if err != nil {
		t.Fatalf("first Encode: %v", err)
	}
	second, err := enc.Encode(bgra, 64, 64, format)
	if err != nil {
		t.Fatalf("second Encode: %v", err)
	}
	// A second update of identical content, deflated against the same
	// persistent stream, should compress at least as well as the first
	// (the dictionary already contains this exact tile body).
	if len(second) > len(first) {
		t.Fatalf("second update (%d bytes) larger than first (%d bytes); stream may have reset", len(second), len(first))
	}
}
