package rfb

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/brightloom/vncd/rfbserr"
)

// ClientMessage is the sum type of all six client-to-server message
// bodies this server understands. Type switching on the concrete type
// replaces the exception-driven dispatch of the system this server's
// idiom was learned from.
type ClientMessage interface {
	clientMessage()
}

// SetPixelFormatMsg is message type 0.
type SetPixelFormatMsg struct {
	Format PixelFormat
}

// SetEncodingsMsg is message type 2. Encodings is stored exactly as the
// client sent it (a signed, preference-ordered list); the session keeps
// it verbatim and the encoding selector only picks ids it implements.
type SetEncodingsMsg struct {
	Encodings []int32
}

// FramebufferUpdateRequestMsg is message type 3.
type FramebufferUpdateRequestMsg struct {
	Incremental bool
	Region      Rectangle
}

// KeyEventMsg is message type 4.
type KeyEventMsg struct {
	Down   bool
	Keysym uint32
}

// PointerEventMsg is message type 5.
type PointerEventMsg struct {
	ButtonMask uint8
	X, Y       uint16
}

// ClientCutTextMsg is message type 6.
type ClientCutTextMsg struct {
	Text []byte
}

func (SetPixelFormatMsg) clientMessage()           {}
func (SetEncodingsMsg) clientMessage()             {}
func (FramebufferUpdateRequestMsg) clientMessage() {}
func (KeyEventMsg) clientMessage()                 {}
func (PointerEventMsg) clientMessage()             {}
func (ClientCutTextMsg) clientMessage()            {}

// Limits bounds the variable-length fields of incoming client messages,
// per spec.md §6 configuration (max_set_encodings, max_client_cut_text).
type Limits struct {
	MaxSetEncodings  int
	MaxClientCutText int
}

// DefaultLimits matches the spec's documented defaults.
func DefaultLimits() Limits {
	return Limits{MaxSetEncodings: 32, MaxClientCutText: 1 << 20}
}

// ReadClientMessage reads and decodes exactly one client-to-server
// message. A truncated or malformed message returns an *rfbserr.Error of
// Kind Protocol; the caller's only valid response is to close the
// connection, since the byte stream cannot be resynchronised (spec §7).
func ReadClientMessage(r io.Reader, limits Limits) (ClientMessage, error) {
	var typ [1]byte
	if _, err := io.ReadFull(r, typ[:]); err != nil {
		return nil, err
	}

	switch typ[0] {
	case MsgSetPixelFormat:
		return readSetPixelFormat(r)
	case MsgSetEncodings:
		return readSetEncodings(r, limits.MaxSetEncodings)
	case MsgFramebufferUpdateRequest:
		return readFramebufferUpdateRequest(r)
	case MsgKeyEvent:
		return readKeyEvent(r)
	case MsgPointerEvent:
		return readPointerEvent(r)
	case MsgClientCutText:
		return readClientCutText(r, limits.MaxClientCutText)
	default:
		return nil, rfbserr.New("rfb.ReadClientMessage", rfbserr.Protocol,
			fmt.Sprintf("unknown client message type %d", typ[0]), nil)
	}
}

func readSetPixelFormat(r io.Reader) (ClientMessage, error) {
	body := make([]byte, SetPixelFormatBodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	pf, err := DecodePixelFormat(body[3:])
	if err != nil {
		return nil, rfbserr.New("rfb.readSetPixelFormat", rfbserr.Protocol, "malformed pixel format", err)
	}
	if err := pf.Validate(); err != nil {
		return nil, rfbserr.New("rfb.readSetPixelFormat", rfbserr.Protocol, "invalid pixel format", err)
	}
	return SetPixelFormatMsg{Format: pf}, nil
}

func readSetEncodings(r io.Reader, maxEncodings int) (ClientMessage, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(header[1:3]))
	if n > maxEncodings {
		return nil, rfbserr.New("rfb.readSetEncodings", rfbserr.Protocol,
			fmt.Sprintf("encoding count %d exceeds limit %d", n, maxEncodings), nil)
	}
	raw := make([]byte, n*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	encodings := make([]int32, n)
	for i := 0; i < n; i++ {
		encodings[i] = int32(binary.BigEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return SetEncodingsMsg{Encodings: encodings}, nil
}

func readFramebufferUpdateRequest(r io.Reader) (ClientMessage, error) {
	body := make([]byte, FramebufferUpdateRequestBodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return FramebufferUpdateRequestMsg{
		Incremental: body[0] != 0,
		Region: Rectangle{
			X: binary.BigEndian.Uint16(body[1:3]),
			Y: binary.BigEndian.Uint16(body[3:5]),
			W: binary.BigEndian.Uint16(body[5:7]),
			H: binary.BigEndian.Uint16(body[7:9]),
		},
	}, nil
}

func readKeyEvent(r io.Reader) (ClientMessage, error) {
	body := make([]byte, KeyEventBodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return KeyEventMsg{
		Down:   body[0] != 0,
		Keysym: binary.BigEndian.Uint32(body[3:7]),
	}, nil
}

func readPointerEvent(r io.Reader) (ClientMessage, error) {
	body := make([]byte, PointerEventBodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return PointerEventMsg{
		ButtonMask: body[0],
		X:          binary.BigEndian.Uint16(body[1:3]),
		Y:          binary.BigEndian.Uint16(body[3:5]),
	}, nil
}

func readClientCutText(r io.Reader, maxLen int) (ClientMessage, error) {
	var header [7]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	textLen := int(binary.BigEndian.Uint32(header[3:7]))
	if textLen > maxLen {
		return nil, rfbserr.New("rfb.readClientCutText", rfbserr.Protocol,
			fmt.Sprintf("cut text length %d exceeds limit %d", textLen, maxLen), nil)
	}
	text := make([]byte, textLen)
	if _, err := io.ReadFull(r, text); err != nil {
		return nil, err
	}
	return ClientCutTextMsg{Text: text}, nil
}
