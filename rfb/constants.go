// Package rfb implements the wire-level types and framing for the Remote
// Framebuffer protocol (RFC 6143): version/security handshake messages,
// the client-to-server and server-to-client message formats, and the
// PixelFormat/Rectangle data model shared by every other package.
package rfb

const (
	// Version3_3, Version3_7 and Version3_8 are the only protocol
	// versions this server negotiates (spec Non-goal: nothing below 3.3).
	Version3_3 = "RFB 003.003\n"
	Version3_7 = "RFB 003.007\n"
	Version3_8 = "RFB 003.008\n"

	// VersionLength is the fixed length of the version handshake line.
	VersionLength = 12
)

// Client-to-server message types.
const (
	MsgSetPixelFormat           = 0
	MsgSetEncodings             = 2
	MsgFramebufferUpdateRequest = 3
	MsgKeyEvent                 = 4
	MsgPointerEvent             = 5
	MsgClientCutText            = 6
)

// Server-to-client message types.
const (
	MsgFramebufferUpdate   = 0
	MsgSetColourMapEntries = 1
	MsgBell                = 2
	MsgServerCutText       = 3
)

// Security types, as sent in the §7.1.2 security negotiation.
const (
	SecurityInvalid = 0
	SecurityNone    = 1
	SecurityVNCAuth = 2
)

// Security handshake results.
const (
	SecurityResultOK     = 0
	SecurityResultFailed = 1
)

// Encoding type identifiers (RFC 6143 §7.7) plus the pseudo-encodings
// (RFC 6143 §7.8 and community extensions) the selector may advertise.
const (
	EncodingRaw      int32 = 0
	EncodingCopyRect int32 = 1
	EncodingRRE      int32 = 2
	EncodingHextile  int32 = 5
	EncodingZlib     int32 = 6
	EncodingTight    int32 = 7
	EncodingZRLE     int32 = 16

	PseudoEncodingCursor              int32 = -239
	PseudoEncodingDesktopSize         int32 = -223
	PseudoEncodingExtendedDesktopSize int32 = -308
	PseudoEncodingContinuousUpdates   int32 = -313
	PseudoEncodingLastRect            int32 = -224
)

// Hextile subencoding bitflags (RFC 6143 §7.7.4).
const (
	HextileRaw                 = 0x01
	HextileBackgroundSpecified = 0x02
	HextileForegroundSpecified = 0x04
	HextileAnySubrects         = 0x08
	HextileSubrectsColoured    = 0x10
)

// ZRLE tile subencoding bytes (RFC 6143 §7.7.6 as extended by the ZRLE
// draft this server implements).
const (
	ZRLESubencodingRaw      = 0
	ZRLESubencodingSolid    = 1
	ZRLESubencodingPlainRLE = 128
)

// Fixed message body lengths (the leading message-type byte is not
// counted), used by the framing layer to know how many bytes still need
// to be read before a message can be dispatched.
const (
	SetPixelFormatBodyLength           = 19 // 3 pad + 16-byte PixelFormat
	FramebufferUpdateRequestBodyLength = 9  // incremental + x,y,w,h
	KeyEventBodyLength                 = 7  // down + 2 pad + keysym
	PointerEventBodyLength             = 5  // button-mask + x,y
)

// PixelFormatWireLength is the fixed 16-byte wire size of a PixelFormat.
const PixelFormatWireLength = 16
