package encoding

import (
	"bytes"
	"compress/zlib"
	"fmt"

	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

// ZlibEncoder implements the optional Zlib encoding (type 6): raw
// converted pixels deflated through a dedicated persistent stream, never
// reset between updates (spec.md §4.2).
type ZlibEncoder struct {
	zw  *zlib.Writer
	buf bytes.Buffer
}

func NewZlibEncoder() *ZlibEncoder {
	e := &ZlibEncoder{}
	e.zw = zlib.NewWriter(&e.buf)
	return e
}

// NewZlibEncoderLevel builds a ZlibEncoder whose persistent stream uses
// the given compress/zlib compression level (lan_zlib_compression_level
// in config.Config), falling back to the package default if level is
// outside compress/zlib's accepted range.
func NewZlibEncoderLevel(level int) *ZlibEncoder {
	e := &ZlibEncoder{}
	zw, err := zlib.NewWriterLevel(&e.buf, level)
	if err != nil {
		zw = zlib.NewWriter(&e.buf)
	}
	e.zw = zw
	return e
}

func (e *ZlibEncoder) Type() int32 { return rfb.EncodingZlib }

func (e *ZlibEncoder) Encode(bgra []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	converted := pixfmt.Convert(bgra, w, h, format)

	e.buf.Reset()
	if _, err := e.zw.Write(converted); err != nil {
		return nil, fmt.Errorf("encoding: zlib deflate write: %w", err)
	}
	if err := e.zw.Flush(); err != nil {
		return nil, fmt.Errorf("encoding: zlib deflate flush: %w", err)
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
