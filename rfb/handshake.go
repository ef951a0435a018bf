package rfb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SendVersion writes the server's 12-byte protocol version line. The
// server always offers 3.8; a client that understands an older version
// clamps itself down during ReadClientVersion.
func SendVersion(w io.Writer) error {
	_, err := w.Write([]byte(Version3_8))
	return err
}

// ReadClientVersion reads the 12-byte client version line and returns
// the highest mutually supported version string. Anything unrecognised
// is treated as 3.3, per spec.md §4.7.
func ReadClientVersion(r io.Reader) (string, error) {
	buf := make([]byte, VersionLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("rfb: read client version: %w", err)
	}
	switch string(buf) {
	case Version3_8:
		return Version3_8, nil
	case Version3_7:
		return Version3_7, nil
	case Version3_3:
		return Version3_3, nil
	default:
		return Version3_3, nil
	}
}

// EncodePixelFormat serializes a PixelFormat into its 16-byte wire form.
func EncodePixelFormat(p PixelFormat) [PixelFormatWireLength]byte {
	var buf [PixelFormatWireLength]byte
	buf[0] = p.BitsPerPixel
	buf[1] = p.Depth
	buf[2] = boolByte(p.BigEndian)
	buf[3] = boolByte(p.TrueColour)
	binary.BigEndian.PutUint16(buf[4:6], p.RedMax)
	binary.BigEndian.PutUint16(buf[6:8], p.GreenMax)
	binary.BigEndian.PutUint16(buf[8:10], p.BlueMax)
	buf[10] = p.RedShift
	buf[11] = p.GreenShift
	buf[12] = p.BlueShift
	// buf[13:16] padding, left zero.
	return buf
}

// DecodePixelFormat parses a 16-byte wire PixelFormat.
func DecodePixelFormat(buf []byte) (PixelFormat, error) {
	if len(buf) != PixelFormatWireLength {
		return PixelFormat{}, fmt.Errorf("rfb: pixel format must be %d bytes, got %d", PixelFormatWireLength, len(buf))
	}
	return PixelFormat{
		BitsPerPixel: buf[0],
		Depth:        buf[1],
		BigEndian:    buf[2] != 0,
		TrueColour:   buf[3] != 0,
		RedMax:       binary.BigEndian.Uint16(buf[4:6]),
		GreenMax:     binary.BigEndian.Uint16(buf[6:8]),
		BlueMax:      binary.BigEndian.Uint16(buf[8:10]),
		RedShift:     buf[10],
		GreenShift:   buf[11],
		BlueShift:    buf[12],
	}, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// SendSecurityTypes writes the 3.7/3.8-style security type list: a count
// byte followed by one byte per type. A server configured with no usable
// security type must instead call SendNoSecurityTypes, which sends count 0.
func SendSecurityTypes(w io.Writer, types []uint8) error {
	buf := make([]byte, 1+len(types))
	buf[0] = uint8(len(types))
	copy(buf[1:], types)
	_, err := w.Write(buf)
	return err
}

// SendNoSecurityTypes writes count=0 followed by the UTF-8 reason string,
// as required when the server has no mutually acceptable security type.
func SendNoSecurityTypes(w io.Writer, reason string) error {
	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	return writeReasonString(w, reason)
}

func writeReasonString(w io.Writer, reason string) error {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(reason)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err := w.Write([]byte(reason))
	return err
}

// ReadSecurityTypes reads the server's offered security type list
// (client-side framing, kept for symmetry/tests).
func ReadSecurityTypes(r io.Reader) ([]uint8, error) {
	var n [1]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	if n[0] == 0 {
		return nil, nil
	}
	types := make([]byte, n[0])
	if _, err := io.ReadFull(r, types); err != nil {
		return nil, err
	}
	return types, nil
}

// ReadSecurityChoice reads the single byte by which a 3.7/3.8 client
// selects one of the offered security types.
func ReadSecurityChoice(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// SendSecurityResult writes the 4-byte SecurityResult value.
func SendSecurityResult(w io.Writer, result uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], result)
	_, err := w.Write(buf[:])
	return err
}

// SendSecurityFailureReason writes the UTF-8 failure reason sent after a
// Failed SecurityResult, valid on protocol 3.8 only.
func SendSecurityFailureReason(w io.Writer, reason string) error {
	return writeReasonString(w, reason)
}

// VNCChallengeSize is the fixed size of the VNC authentication challenge.
const VNCChallengeSize = 16

// SendChallenge writes a 16-byte VNC authentication challenge.
func SendChallenge(w io.Writer, challenge [VNCChallengeSize]byte) error {
	_, err := w.Write(challenge[:])
	return err
}

// ReadChallengeResponse reads the client's 16-byte encrypted response.
func ReadChallengeResponse(r io.Reader) ([VNCChallengeSize]byte, error) {
	var resp [VNCChallengeSize]byte
	_, err := io.ReadFull(r, resp[:])
	return resp, err
}

// ReadClientInit reads the one-byte ClientInit message. The shared flag
// is returned for logging only: this server always permits sharing.
func ReadClientInit(r io.Reader) (shared bool, err error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// SendServerInit writes the ServerInit message: width, height, pixel
// format, and the UTF-8 desktop name.
func SendServerInit(w io.Writer, init ServerInit) error {
	buf := make([]byte, 4+PixelFormatWireLength+4+len(init.Name))
	binary.BigEndian.PutUint16(buf[0:2], init.Width)
	binary.BigEndian.PutUint16(buf[2:4], init.Height)
	pf := EncodePixelFormat(init.PixelFormat)
	copy(buf[4:4+PixelFormatWireLength], pf[:])
	off := 4 + PixelFormatWireLength
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(init.Name)))
	copy(buf[off+4:], init.Name)
	_, err := w.Write(buf)
	return err
}

// ReadServerInit reads the ServerInit message (client-side framing, kept
// for symmetry/tests).
func ReadServerInit(r io.Reader) (ServerInit, error) {
	header := make([]byte, 4+PixelFormatWireLength+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return ServerInit{}, err
	}
	var init ServerInit
	init.Width = binary.BigEndian.Uint16(header[0:2])
	init.Height = binary.BigEndian.Uint16(header[2:4])
	pf, err := DecodePixelFormat(header[4 : 4+PixelFormatWireLength])
	if err != nil {
		return ServerInit{}, err
	}
	init.PixelFormat = pf
	nameLen := binary.BigEndian.Uint32(header[4+PixelFormatWireLength:])
	if nameLen > 0 {
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return ServerInit{}, err
		}
		init.Name = string(name)
	}
	return init, nil
}
