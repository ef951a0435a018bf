package encoding

import (
	"bytes"
	"compress/zlib"
	"fmt"

	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

// zrleTileSize is the fixed ZRLE tile dimension, RFC 6143 §7.7.6.
const zrleTileSize = 64

// ZRLEEncoder implements encoding type 16. It owns the connection's
// persistent zlib stream: the stream is never reset between calls, only
// flushed at each update boundary (spec.md §4.2, §5), so a ZRLEEncoder
// must be constructed once per connection and reused for every
// FramebufferUpdate that rectangle sends.
type ZRLEEncoder struct {
	zw  *zlib.Writer
	buf bytes.Buffer
}

// NewZRLEEncoder allocates a ZRLEEncoder with its own persistent
// deflate stream.
func NewZRLEEncoder() *ZRLEEncoder {
	e := &ZRLEEncoder{}
	e.zw = zlib.NewWriter(&e.buf)
	return e
}

// NewZRLEEncoderLevel allocates a ZRLEEncoder whose persistent stream
// uses the given compress/zlib compression level (lan_zrle_compression_level
// in config.Config), falling back to the package default if level is
// outside compress/zlib's accepted range.
func NewZRLEEncoderLevel(level int) *ZRLEEncoder {
	e := &ZRLEEncoder{}
	zw, err := zlib.NewWriterLevel(&e.buf, level)
	if err != nil {
		zw = zlib.NewWriter(&e.buf)
	}
	e.zw = zw
	return e
}

func (e *ZRLEEncoder) Type() int32 { return rfb.EncodingZRLE }

func (e *ZRLEEncoder) Encode(bgra []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	converted := pixfmt.Convert(bgra, w, h, format)
	cpixelSize := cpixelBytes(format)

	var body []byte
	for ty := 0; ty < h; ty += zrleTileSize {
		th := zrleTileSize
		if ty+th > h {
			th = h - ty
		}
		for tx := 0; tx < w; tx += zrleTileSize {
			tw := zrleTileSize
			if tx+tw > w {
				tw = w - tx
			}
			body = append(body, encodeZRLETile(converted, w, format, cpixelSize, tx, ty, tw, th)...)
		}
	}

	e.buf.Reset()
	if _, err := e.zw.Write(body); err != nil {
		return nil, fmt.Errorf("encoding: ZRLE deflate write: %w", err)
	}
	if err := e.zw.Flush(); err != nil {
		return nil, fmt.Errorf("encoding: ZRLE deflate flush: %w", err)
	}
	compressed := e.buf.Bytes()

	out := make([]byte, 4+len(compressed))
	out[0] = byte(len(compressed) >> 24)
	out[1] = byte(len(compressed) >> 16)
	out[2] = byte(len(compressed) >> 8)
	out[3] = byte(len(compressed))
	copy(out[4:], compressed)
	return out, nil
}

// cpixelBytes returns the CPIXEL width: 3 bytes for 32bpp true-colour
// formats whose depth fits in 24 bits, else the format's full pixel
// width (spec.md §4.2, GLOSSARY "CPIXEL").
func cpixelBytes(format rfb.PixelFormat) int {
	if format.BitsPerPixel == 32 && format.Depth <= 24 {
		return 3
	}
	return format.BytesPerPixel()
}

func cpixelAt(converted []byte, stride, fullBpp, cpixelSize int, bigEndian bool, x, y int) []byte {
	full := pixelAt(converted, stride, fullBpp, x, y)
	if cpixelSize == fullBpp {
		return full
	}
	if bigEndian {
		return full[1:4]
	}
	return full[0:3]
}

func encodeZRLETile(converted []byte, stride int, format rfb.PixelFormat, cpixelSize, tx, ty, tw, th int) []byte {
	fullBpp := format.BytesPerPixel()

	first := cpixelAt(converted, stride, fullBpp, cpixelSize, format.BigEndian, tx, ty)
	solid := true
outer:
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			if !bytesEqual(cpixelAt(converted, stride, fullBpp, cpixelSize, format.BigEndian, tx+x, ty+y), first) {
				solid = false
				break outer
			}
		}
	}
	if solid {
		out := make([]byte, 0, 1+cpixelSize)
		out = append(out, rfb.ZRLESubencodingSolid)
		out = append(out, first...)
		return out
	}

	return encodeZRLEPlainRLE(converted, stride, format, cpixelSize, tx, ty, tw, th)
}

// encodeZRLEPlainRLE emits subencoding 128 (PlainRLE): runs of
// (CPIXEL, length) in raster order within the tile, length encoded as
// zero or more 255 bytes followed by a final byte < 255, the actual run
// length being their sum plus one. This is used for every non-solid
// tile; it never expands pathological per-pixel-distinct tiles by more
// than one length byte per pixel, and the outer ZRLE zlib stream
// absorbs most of the remaining redundancy.
func encodeZRLEPlainRLE(converted []byte, stride int, format rfb.PixelFormat, cpixelSize, tx, ty, tw, th int) []byte {
	fullBpp := format.BytesPerPixel()
	out := []byte{rfb.ZRLESubencodingPlainRLE}

	var run []byte
	runLen := 0
	flush := func() {
		if runLen == 0 {
			return
		}
		out = append(out, run...)
		n := runLen - 1
		for n >= 255 {
			out = append(out, 255)
			n -= 255
		}
		out = append(out, byte(n))
		runLen = 0
	}

	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			px := cpixelAt(converted, stride, fullBpp, cpixelSize, format.BigEndian, tx+x, ty+y)
			if runLen > 0 && bytesEqual(px, run) {
				runLen++
				continue
			}
			flush()
			run = append(run[:0:0], px...)
			runLen = 1
		}
	}
	flush()
	return out
}
