package encoding

import (
	"github.com/brightloom/vncd/pixfmt"
	"github.com/brightloom/vncd/rfb"
)

// Pseudo-encoding rectangles carry capability declarations or metadata
// instead of pixel data (spec.md §4.2 "Pseudo-encodings"). Each builder
// below returns a ready-to-send rfb.EncodedRect; the caller is
// responsible for checking the client advertised support for the
// corresponding encoding id via SetEncodings before emitting one.

// CursorRect builds the Cursor pseudo-encoding rectangle (−239): hotspot
// in the rectangle header, followed by pixel data in the client's format
// and a 1-bit-per-pixel opacity mask, each row padded to a byte boundary.
func CursorRect(hotspotX, hotspotY, width, height uint16, bgra []byte, alpha []byte, format rfb.PixelFormat) rfb.EncodedRect {
	pixels := pixfmt.Convert(bgra, int(width), int(height), format)

	maskStride := (int(width) + 7) / 8
	mask := make([]byte, maskStride*int(height))
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			if alpha[y*int(width)+x] != 0 {
				mask[y*maskStride+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}

	payload := make([]byte, 0, len(pixels)+len(mask))
	payload = append(payload, pixels...)
	payload = append(payload, mask...)

	return rfb.EncodedRect{
		Rect:     rfb.Rectangle{X: hotspotX, Y: hotspotY, W: width, H: height},
		Encoding: rfb.PseudoEncodingCursor,
		Payload:  payload,
	}
}

// DesktopSizeRect builds the DesktopSize pseudo-encoding rectangle
// (−223): the new dimensions are carried entirely in the rectangle
// header, with an empty body.
func DesktopSizeRect(width, height uint16) rfb.EncodedRect {
	return rfb.EncodedRect{
		Rect:     rfb.Rectangle{X: 0, Y: 0, W: width, H: height},
		Encoding: rfb.PseudoEncodingDesktopSize,
	}
}

// ScreenInfo describes one screen in an ExtendedDesktopSize update.
type ScreenInfo struct {
	ID            uint32
	X, Y          uint16
	Width, Height uint16
	Flags         uint32
}

// ExtendedDesktopSizeRect builds the ExtendedDesktopSize pseudo-encoding
// rectangle (−308). x carries the reason for the update (0 = request by
// server, 1 = client FramebufferUpdateRequest, 2 = other client's
// SetDesktopSize), y carries the result status (0 = success).
func ExtendedDesktopSizeRect(reason, status uint16, width, height uint16, screens []ScreenInfo) rfb.EncodedRect {
	payload := make([]byte, 0, 4+len(screens)*16)
	payload = append(payload, byte(len(screens)), 0, 0, 0)
	for _, s := range screens {
		payload = append(payload,
			byte(s.ID>>24), byte(s.ID>>16), byte(s.ID>>8), byte(s.ID),
			byte(s.X>>8), byte(s.X), byte(s.Y>>8), byte(s.Y),
			byte(s.Width>>8), byte(s.Width), byte(s.Height>>8), byte(s.Height),
			byte(s.Flags>>24), byte(s.Flags>>16), byte(s.Flags>>8), byte(s.Flags),
		)
	}
	return rfb.EncodedRect{
		Rect:     rfb.Rectangle{X: reason, Y: status, W: width, H: height},
		Encoding: rfb.PseudoEncodingExtendedDesktopSize,
		Payload:  payload,
	}
}

// ContinuousUpdatesRect builds a capability-advertising rectangle for
// the ContinuousUpdates pseudo-encoding (−313), carrying region as the
// granted update region. This server does not read EnableContinuousUpdates
// messages, and nothing in it sends this rectangle.
func ContinuousUpdatesRect(region rfb.Rectangle) rfb.EncodedRect {
	return rfb.EncodedRect{
		Rect:     region,
		Encoding: rfb.PseudoEncodingContinuousUpdates,
	}
}

// LastRectMarker builds the LastRect pseudo-encoding rectangle (−224), used to
// terminate a FramebufferUpdate whose rectangle count was sent as 0xFFFF
// (unknown in advance), per the community LastRect extension.
func LastRectMarker() rfb.EncodedRect {
	return rfb.EncodedRect{
		Encoding: rfb.PseudoEncodingLastRect,
	}
}
