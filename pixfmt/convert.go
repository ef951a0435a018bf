// Package pixfmt converts captured BGRA pixel buffers into a client's
// negotiated PixelFormat (component C1): channel extraction, 8-bit to
// N-bit scaling, packing at the declared shifts, and serialization at
// the declared endianness.
package pixfmt

import (
	"github.com/brightloom/vncd/rfb"
)

// Convert converts a contiguous BGRA buffer (width*height*4 bytes, alpha
// ignored) into dst's pixel layout. The output is exactly
// width*height*dst.BytesPerPixel() bytes. When dst is the server's
// default 32bpp BGRA little-endian format, the input is returned
// unmodified (the memcpy fast path spec.md §4.1 recommends).
func Convert(bgra []byte, width, height int, dst rfb.PixelFormat) []byte {
	if dst.Equal(rfb.DefaultPixelFormat()) {
		return bgra
	}

	pixelCount := width * height
	bpp := dst.BytesPerPixel()
	out := make([]byte, pixelCount*bpp)

	for i := 0; i < pixelCount; i++ {
		src := i * 4
		b := uint32(bgra[src])
		g := uint32(bgra[src+1])
		r := uint32(bgra[src+2])

		value := quantize(r, dst.RedMax)<<dst.RedShift |
			quantize(g, dst.GreenMax)<<dst.GreenShift |
			quantize(b, dst.BlueMax)<<dst.BlueShift

		WritePixelValue(out[i*bpp:i*bpp+bpp], value, dst.BigEndian)
	}
	return out
}

// quantize scales an 8-bit channel value down to the range [0, max] by
// integer division, per spec.md §4.1.
func quantize(channel uint32, max uint16) uint32 {
	return (channel * uint32(max)) / 255
}

// WritePixelValue packs value into buf (length 1, 2, 3 or 4) using the
// given endianness.
func WritePixelValue(buf []byte, value uint32, bigEndian bool) {
	switch len(buf) {
	case 1:
		buf[0] = byte(value)
	case 2:
		if bigEndian {
			buf[0], buf[1] = byte(value>>8), byte(value)
		} else {
			buf[0], buf[1] = byte(value), byte(value>>8)
		}
	case 3:
		if bigEndian {
			buf[0], buf[1], buf[2] = byte(value>>16), byte(value>>8), byte(value)
		} else {
			buf[0], buf[1], buf[2] = byte(value), byte(value>>8), byte(value>>16)
		}
	case 4:
		if bigEndian {
			buf[0], buf[1], buf[2], buf[3] = byte(value>>24), byte(value>>16), byte(value>>8), byte(value)
		} else {
			buf[0], buf[1], buf[2], buf[3] = byte(value), byte(value>>8), byte(value>>16), byte(value>>24)
		}
	}
}

// ReadPixelValue unpacks a pixel value from buf (length 1, 2, 3 or 4)
// using the given endianness. It is the inverse of WritePixelValue, used
// by tests and by reference decoding.
func ReadPixelValue(buf []byte, bigEndian bool) uint32 {
	switch len(buf) {
	case 1:
		return uint32(buf[0])
	case 2:
		if bigEndian {
			return uint32(buf[0])<<8 | uint32(buf[1])
		}
		return uint32(buf[1])<<8 | uint32(buf[0])
	case 3:
		if bigEndian {
			return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
		}
		return uint32(buf[2])<<16 | uint32(buf[1])<<8 | uint32(buf[0])
	case 4:
		if bigEndian {
			return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		}
		return uint32(buf[3])<<24 | uint32(buf[2])<<16 | uint32(buf[1])<<8 | uint32(buf[0])
	}
	return 0
}

// Decode unpacks a buffer of pixels encoded in src format back into a
// BGRA buffer, the inverse of Convert. Used by round-trip tests (spec.md
// Testable Property 1) and by the reference decoder tests for RRE,
// Hextile and ZRLE.
func Decode(data []byte, width, height int, src rfb.PixelFormat) []byte {
	bpp := src.BytesPerPixel()
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		value := ReadPixelValue(data[i*bpp:i*bpp+bpp], src.BigEndian)
		r := dequantize((value>>src.RedShift)&uint32(src.RedMax), src.RedMax)
		g := dequantize((value>>src.GreenShift)&uint32(src.GreenMax), src.GreenMax)
		b := dequantize((value>>src.BlueShift)&uint32(src.BlueMax), src.BlueMax)
		dst := i * 4
		out[dst] = b
		out[dst+1] = g
		out[dst+2] = r
		out[dst+3] = 0xff
	}
	return out
}

func dequantize(bits uint32, max uint16) byte {
	if max == 0 {
		return 0
	}
	return byte((bits * 255) / uint32(max))
}
