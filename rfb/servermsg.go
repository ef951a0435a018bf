package rfb

import (
	"encoding/binary"
	"io"
)

// EncodedRect is one already-encoded rectangle ready to be framed into a
// FramebufferUpdate: the rectangle header plus whatever payload bytes
// the chosen encoder (or pseudo-encoding) produced.
type EncodedRect struct {
	Rect     Rectangle
	Encoding int32
	Payload  []byte
}

// WriteFramebufferUpdate frames the FramebufferUpdate message header
// (type, padding, rectangle count) followed by each rectangle's header
// and payload, in the order given. Order matters: CopyRect semantics and
// the parallel-encoding reassembly both depend on rectangles being
// emitted in the order C4 produced them (spec.md §4.8).
func WriteFramebufferUpdate(w io.Writer, rects []EncodedRect) error {
	header := make([]byte, 4)
	header[0] = MsgFramebufferUpdate
	header[1] = 0
	binary.BigEndian.PutUint16(header[2:4], uint16(len(rects)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, rect := range rects {
		if err := writeRectHeader(w, rect.Rect, rect.Encoding); err != nil {
			return err
		}
		if len(rect.Payload) > 0 {
			if _, err := w.Write(rect.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeRectHeader(w io.Writer, r Rectangle, encoding int32) error {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], r.X)
	binary.BigEndian.PutUint16(buf[2:4], r.Y)
	binary.BigEndian.PutUint16(buf[4:6], r.W)
	binary.BigEndian.PutUint16(buf[6:8], r.H)
	binary.BigEndian.PutUint32(buf[8:12], uint32(encoding))
	_, err := w.Write(buf)
	return err
}

// WriteBell frames a Bell message (server-to-client type 2), sent when
// the host asks the server to ring the client's bell.
func WriteBell(w io.Writer) error {
	_, err := w.Write([]byte{MsgBell})
	return err
}

// WriteServerCutText frames a ServerCutText message (type 3), carrying
// clipboard text captured on the host side toward the client.
func WriteServerCutText(w io.Writer, text []byte) error {
	buf := make([]byte, 8+len(text))
	buf[0] = MsgServerCutText
	// buf[1:4] padding
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(text)))
	copy(buf[8:], text)
	_, err := w.Write(buf)
	return err
}
