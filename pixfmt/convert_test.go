package pixfmt

import (
	"bytes"
	"testing"

	"github.com/brightloom/vncd/rfb"
)

func TestConvertDefaultFormatIsMemcpy(t *testing.T) {
	bgra := []byte{10, 20, 30, 255, 40, 50, 60, 255}
	out := Convert(bgra, 2, 1, rfb.DefaultPixelFormat())
	if &out[0] != &bgra[0] {
		t.Fatal("expected default-format Convert to return the input slice unchanged (fast path)")
	}
}

func TestConvertRGB565Shifts(t *testing.T) {
	rgb565 := rfb.PixelFormat{
		BitsPerPixel: 16, Depth: 16, TrueColour: true,
		RedMax: 31, GreenMax: 63, BlueMax: 31,
		RedShift: 11, GreenShift: 5, BlueShift: 0,
	}
	// Pure red BGRA pixel: B=0 G=0 R=255.
	bgra := []byte{0, 0, 255, 255}
	out := Convert(bgra, 1, 1, rgb565)
	if len(out) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(out))
	}
	value := ReadPixelValue(out, rgb565.BigEndian)
	red := (value >> rgb565.RedShift) & uint32(rgb565.RedMax)
	green := (value >> rgb565.GreenShift) & uint32(rgb565.GreenMax)
	blue := (value >> rgb565.BlueShift) & uint32(rgb565.BlueMax)
	if red != uint32(rgb565.RedMax) || green != 0 || blue != 0 {
		t.Fatalf("quantized channels = R%d G%d B%d, want R%d G0 B0", red, green, blue, rgb565.RedMax)
	}
}

func TestWriteReadPixelValueRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4} {
		for _, bigEndian := range []bool{true, false} {
			var value uint32
			switch size {
			case 1:
				value = 0xAB
			case 2:
				value = 0xABCD
			case 3:
				value = 0xABCDEF
			case 4:
				value = 0xABCDEF01
			}
			buf := make([]byte, size)
			WritePixelValue(buf, value, bigEndian)
			got := ReadPixelValue(buf, bigEndian)
			if got != value {
				t.Fatalf("size=%d bigEndian=%v: round trip %#x != %#x", size, bigEndian, got, value)
			}
		}
	}
}

func TestConvertOutputLengthMatchesSpec(t *testing.T) {
	width, height := 8, 4
	bgra := make([]byte, width*height*4)
	rgb565 := rfb.PixelFormat{BitsPerPixel: 16, Depth: 16, TrueColour: true, RedMax: 31, GreenMax: 63, BlueMax: 31, RedShift: 11, GreenShift: 5, BlueShift: 0}
	out := Convert(bgra, width, height, rgb565)
	if len(out) != width*height*2 {
		t.Fatalf("output length = %d, want %d", len(out), width*height*2)
	}
}

func TestDecodeInversesConvertForOpaquePixels(t *testing.T) {
	// For a channel value that is an exact multiple of the quantization
	// step, convert+decode round-trips exactly; this holds for the
	// channel extremes used by the RFC test fixtures.
	bgra := []byte{0, 0, 255, 255, 255, 0, 0, 255}
	converted := Convert(bgra, 2, 1, rfb.DefaultPixelFormat())
	if !bytes.Equal(converted, bgra) {
		t.Fatalf("default format convert altered bytes")
	}
	decoded := Decode(converted, 2, 1, rfb.DefaultPixelFormat())
	if !bytes.Equal(decoded, bgra) {
		t.Fatalf("Decode(Convert(b)) = %v, want %v", decoded, bgra)
	}
}
