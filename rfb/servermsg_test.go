package rfb

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriteFramebufferUpdate(t *testing.T) {
	rects := []EncodedRect{
		{Rect: Rectangle{X: 0, Y: 0, W: 4, H: 4}, Encoding: EncodingRaw, Payload: make([]byte, 4*4*4)},
		{Rect: Rectangle{X: 10, Y: 10, W: 2, H: 2}, Encoding: EncodingCopyRect, Payload: []byte{0, 1, 0, 2}},
	}
	var buf bytes.Buffer
	if err := WriteFramebufferUpdate(&buf, rects); err != nil {
		t.Fatalf("WriteFramebufferUpdate: %v", err)
	}

	data := buf.Bytes()
	if data[0] != MsgFramebufferUpdate {
		t.Fatalf("message type = %d, want %d", data[0], MsgFramebufferUpdate)
	}
	count := binary.BigEndian.Uint16(data[2:4])
	if count != uint16(len(rects)) {
		t.Fatalf("rect count = %d, want %d", count, len(rects))
	}

	// First rectangle header.
	off := 4
	if x := binary.BigEndian.Uint16(data[off : off+2]); x != 0 {
		t.Fatalf("rect0 x = %d", x)
	}
	enc := int32(binary.BigEndian.Uint32(data[off+8 : off+12]))
	if enc != EncodingRaw {
		t.Fatalf("rect0 encoding = %d, want %d", enc, EncodingRaw)
	}
}

func TestWriteServerCutText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteServerCutText(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteServerCutText: %v", err)
	}
	data := buf.Bytes()
	if data[0] != MsgServerCutText {
		t.Fatalf("message type = %d, want %d", data[0], MsgServerCutText)
	}
	length := binary.BigEndian.Uint32(data[4:8])
	if length != 5 || string(data[8:]) != "hello" {
		t.Fatalf("cut text payload mismatch: %v", data)
	}
}

func TestWriteBell(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBell(&buf); err != nil {
		t.Fatalf("WriteBell: %v", err)
	}
	if buf.Bytes()[0] != MsgBell {
		t.Fatalf("bell message type = %d", buf.Bytes()[0])
	}
}
