package encoding

import (
	"testing"

	"github.com/brightloom/vncd/rfb"
)

func TestCopyRectEncoderEncodesSourceCoordinates(t *testing.T) {
	enc := CopyRectEncoder{SrcX: 300, SrcY: 12}
	out, err := enc.Encode(nil, 0, 0, rfb.PixelFormat{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	srcX := int(out[0])<<8 | int(out[1])
	srcY := int(out[2])<<8 | int(out[3])
	if srcX != 300 || srcY != 12 {
		t.Fatalf("decoded (%d,%d), want (300,12)", srcX, srcY)
	}
}

func TestCopyRectEncoderType(t *testing.T) {
	if (CopyRectEncoder{}).Type() != rfb.EncodingCopyRect {
		t.Fatal("wrong encoding type")
	}
}
