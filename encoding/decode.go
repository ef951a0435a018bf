package encoding

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/brightloom/vncd/rfb"
)

// The decoders below are reference implementations used by this
// package's round-trip tests (spec.md Testable Property 2): given the
// bytes one of this package's encoders produced, they reconstruct the
// pixel buffer in the same converted pixel format the encoder consumed.
// They are not used by the server at runtime (the server only ever
// encodes), but exercise the exact wire layouts the encoders write.

// DecodeRRE reconstructs a converted-format pixel buffer from RRE wire
// bytes produced by RREEncoder.
func DecodeRRE(data []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	bpp := format.BytesPerPixel()
	if len(data) < 4 {
		return nil, fmt.Errorf("encoding: RRE body too short")
	}
	count := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	off := 4
	if len(data) < off+bpp {
		return nil, fmt.Errorf("encoding: RRE missing background pixel")
	}
	bg := data[off : off+bpp]
	off += bpp

	out := make([]byte, w*h*bpp)
	for i := 0; i < w*h; i++ {
		copy(out[i*bpp:i*bpp+bpp], bg)
	}

	for i := 0; i < count; i++ {
		if len(data) < off+bpp+8 {
			return nil, fmt.Errorf("encoding: RRE truncated subrectangle %d", i)
		}
		px := data[off : off+bpp]
		off += bpp
		x := int(data[off])<<8 | int(data[off+1])
		y := int(data[off+2])<<8 | int(data[off+3])
		sw := int(data[off+4])<<8 | int(data[off+5])
		sh := int(data[off+6])<<8 | int(data[off+7])
		off += 8

		for row := 0; row < sh; row++ {
			for col := 0; col < sw; col++ {
				dst := ((y+row)*w + (x + col)) * bpp
				copy(out[dst:dst+bpp], px)
			}
		}
	}
	return out, nil
}

// DecodeHextile reconstructs a converted-format pixel buffer from
// Hextile wire bytes produced by HextileEncoder.
func DecodeHextile(data []byte, w, h int, format rfb.PixelFormat) ([]byte, error) {
	bpp := format.BytesPerPixel()
	out := make([]byte, w*h*bpp)
	r := bytes.NewReader(data)

	var runningBg []byte
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

			flags, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("encoding: Hextile read flags: %w", err)
			}

			if flags&rfb.HextileBackgroundSpecified != 0 {
				bg := make([]byte, bpp)
				if _, err := io.ReadFull(r, bg); err != nil {
					return nil, fmt.Errorf("encoding: Hextile read background: %w", err)
				}
				runningBg = bg
			}

			for y := 0; y < th; y++ {
				for x := 0; x < tw; x++ {
					dst := ((ty+y)*w + (tx + x)) * bpp
					copy(out[dst:dst+bpp], runningBg)
				}
			}

			if flags&rfb.HextileAnySubrects != 0 {
				count, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("encoding: Hextile read subrect count: %w", err)
				}
				for i := 0; i < int(count); i++ {
					px := make([]byte, bpp)
					if _, err := io.ReadFull(r, px); err != nil {
						return nil, fmt.Errorf("encoding: Hextile read subrect pixel: %w", err)
					}
					xy, err := r.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("encoding: Hextile read subrect xy: %w", err)
					}
					wh, err := r.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("encoding: Hextile read subrect wh: %w", err)
					}
					sx, sy := int(xy>>4), int(xy&0x0f)
					sw, sh := int(wh>>4)+1, int(wh&0x0f)+1
					for row := 0; row < sh; row++ {
						for col := 0; col < sw; col++ {
							dst := ((ty+sy+row)*w + (tx + sx + col)) * bpp
							copy(out[dst:dst+bpp], px)
						}
					}
				}
			}
		}
	}
	return out, nil
}

// DecodeZRLE reconstructs a converted-format pixel buffer from ZRLE wire
// bytes produced by ZRLEEncoder, using an independent zlib reader seeded
// from the same compressed stream (a single update's bytes are
// self-contained once read through zlib.NewReader on that update's
// dictionary position; tests that need multi-update continuity must
// decode all updates through one persistent reader in sequence).
func DecodeZRLE(data []byte, w, h int, format rfb.PixelFormat, zr io.Reader) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("encoding: ZRLE body too short")
	}
	length := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if len(data) < 4+length {
		return nil, fmt.Errorf("encoding: ZRLE declared length exceeds body")
	}

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("encoding: ZRLE inflate: %w", err)
	}

	bpp := format.BytesPerPixel()
	cpixelSize := cpixelBytes(format)
	out := make([]byte, w*h*bpp)
	pos := 0

	expand := func(cpixel []byte) []byte {
		if cpixelSize == bpp {
			return cpixel
		}
		full := make([]byte, bpp)
		if format.BigEndian {
			copy(full[1:], cpixel)
		} else {
			copy(full[:3], cpixel)
		}
		return full
	}

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
			if pos >= len(body) {
				return nil, fmt.Errorf("encoding: ZRLE body exhausted before all tiles decoded")
			}
			sub := body[pos]
			pos++

			switch {
			case sub == rfb.ZRLESubencodingSolid:
				px := expand(body[pos : pos+cpixelSize])
				pos += cpixelSize
				for y := 0; y < th; y++ {
					for x := 0; x < tw; x++ {
						dst := ((ty+y)*w + (tx + x)) * bpp
						copy(out[dst:dst+bpp], px)
					}
				}
			case sub == rfb.ZRLESubencodingPlainRLE:
				remaining := tw * th
				for remaining > 0 {
					px := expand(body[pos : pos+cpixelSize])
					pos += cpixelSize
					runLen := 1
					for {
						b := body[pos]
						pos++
						runLen += int(b)
						if b < 255 {
							break
						}
					}
					for i := 0; i < runLen; i++ {
						idx := tw*th - remaining + i
						y := idx / tw
						x := idx % tw
						dst := ((ty+y)*w + (tx + x)) * bpp
						copy(out[dst:dst+bpp], px)
					}
					remaining -= runLen
				}
			default:
				return nil, fmt.Errorf("encoding: ZRLE unsupported subencoding %d in reference decoder", sub)
			}
		}
	}
	return out, nil
}

// NewZlibInflater wraps a fresh zlib reader over compressed, for tests
// decoding a single ZRLE/Zlib update in isolation. The encoders
// sync-flush a stream they never close, so running out of input after
// the last flushed block is reported as io.EOF, not io.ErrUnexpectedEOF.
func NewZlibInflater(compressed []byte) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	return syncFlushReader{zr}, nil
}

type syncFlushReader struct{ io.ReadCloser }

func (r syncFlushReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
