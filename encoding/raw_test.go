package encoding

import (
	"bytes"
	"testing"

	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

func TestRawEncoderRoundTrip(t *testing.T) {
	format := rfb.DefaultPixelFormat()
	bgra := []byte{1, 2, 3, 255, 4, 5, 6, 255, 7, 8, 9, 255, 10, 11, 12, 255}
	out, err := RawEncoder{}.Encode(bgra, 2, 2, format)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded := pixfmt.Decode(out, 2, 2, format)
	if !bytes.Equal(decoded, bgra) {
		t.Fatalf("decoded = %v, want %v", decoded, bgra)
	}
}

func TestRawEncoderType(t *testing.T) {
	if (RawEncoder{}).Type() != rfb.EncodingRaw {
		t.Fatalf("Type() = %d, want %d", (RawEncoder{}).Type(), rfb.EncodingRaw)
	}
}
