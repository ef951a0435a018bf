package encoding

import (
	"testing"

	"github.com/brightloom/vncd/rfb"
)

func TestCursorRectLayout(t *testing.T) {
	format := rfb.DefaultPixelFormat()
	w, h := uint16(2), uint16(2)
	bgra := []byte{1, 2, 3, 255, 4, 5, 6, 255, 7, 8, 9, 255, 10, 11, 12, 255}
	alpha := []byte{0, 255, 255, 0}
	rect := CursorRect(1, 1, w, h, bgra, alpha, format)

	if rect.Encoding != rfb.PseudoEncodingCursor {
		t.Fatalf("encoding = %d, want %d", rect.Encoding, rfb.PseudoEncodingCursor)
	}
	if rect.Rect.X != 1 || rect.Rect.Y != 1 || rect.Rect.W != w || rect.Rect.H != h {
		t.Fatalf("unexpected rect header: %+v", rect.Rect)
	}

	pixelBytes := int(w) * int(h) * format.BytesPerPixel()
	maskStride := (int(w) + 7) / 8
	wantLen := pixelBytes + maskStride*int(h)
	if len(rect.Payload) != wantLen {
		t.Fatalf("payload length = %d, want %d", len(rect.Payload), wantLen)
	}

	mask := rect.Payload[pixelBytes:]
	if mask[0]&0x80 != 0 {
		t.Fatal("pixel (0,0) should be transparent (bit clear)")
	}
	if mask[0]&0x40 == 0 {
		t.Fatal("pixel (1,0) should be opaque (bit set)")
	}
}

func TestDesktopSizeRect(t *testing.T) {
	rect := DesktopSizeRect(1024, 768)
	if rect.Encoding != rfb.PseudoEncodingDesktopSize {
		t.Fatalf("encoding = %d, want %d", rect.Encoding, rfb.PseudoEncodingDesktopSize)
	}
	if rect.Rect.W != 1024 || rect.Rect.H != 768 {
		t.Fatalf("unexpected dims: %+v", rect.Rect)
	}
	if len(rect.Payload) != 0 {
		t.Fatal("DesktopSize carries no body")
	}
}

func TestExtendedDesktopSizeRectScreenCount(t *testing.T) {
	screens := []ScreenInfo{{ID: 1, Width: 800, Height: 600}, {ID: 2, X: 800, Width: 800, Height: 600}}
	rect := ExtendedDesktopSizeRect(0, 0, 1600, 600, screens)
	if rect.Payload[0] != byte(len(screens)) {
		t.Fatalf("screen count = %d, want %d", rect.Payload[0], len(screens))
	}
	if len(rect.Payload) != 4+len(screens)*16 {
		t.Fatalf("payload length = %d, want %d", len(rect.Payload), 4+len(screens)*16)
	}
}

func TestLastRectMarker(t *testing.T) {
	rect := LastRectMarker()
	if rect.Encoding != rfb.PseudoEncodingLastRect {
		t.Fatal("wrong encoding for LastRect marker")
	}
}
