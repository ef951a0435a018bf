package session

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/brightloom/vncd/host"
	"github.com/brightloom/vncd/logging"
	"github.com/brightloom/vncd/rfb"
)

type noopInputSink struct{}

func (noopInputSink) InjectKey(uint32, bool) error      { return nil }
func (noopInputSink) InjectPointer(int, int, uint8) error { return nil }
func (noopInputSink) SetClipboard([]byte) error          { return nil }

func testOptions() Options {
	return Options{Width: 64, Height: 48, MaxSetEncodings: 32, MaxClientCutText: 1 << 20}
}

func TestHandshakeNoneAuthReachesInitialized(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Handshake() }()

	clientSide := func() error {
		buf := make([]byte, 12)
		if _, err := readFull(client, buf); err != nil {
			return err
		}
		if string(buf) != rfb.Version3_8 {
			t.Fatalf("server version = %q, want %q", buf, rfb.Version3_8)
		}
		if _, err := client.Write([]byte(rfb.Version3_8)); err != nil {
			return err
		}

		count := make([]byte, 1)
		if _, err := readFull(client, count); err != nil {
			return err
		}
		types := make([]byte, count[0])
		if _, err := readFull(client, types); err != nil {
			return err
		}
		if _, err := client.Write([]byte{rfb.SecurityNone}); err != nil {
			return err
		}

		result := make([]byte, 4)
		if _, err := readFull(client, result); err != nil {
			return err
		}
		if binary.BigEndian.Uint32(result) != rfb.SecurityResultOK {
			t.Fatal("expected SecurityResultOK for None auth")
		}

		if _, err := client.Write([]byte{0}); err != nil { // ClientInit, shared=0
			return err
		}

		header := make([]byte, 4+16+4)
		if _, err := readFull(client, header); err != nil {
			return err
		}
		width := binary.BigEndian.Uint16(header[0:2])
		if width != 64 {
			t.Fatalf("ServerInit width = %d, want 64", width)
		}
		nameLen := binary.BigEndian.Uint32(header[4+16:])
		name := make([]byte, nameLen)
		if _, err := readFull(client, name); err != nil {
			return err
		}
		return nil
	}

	if err := clientSide(); err != nil {
		t.Fatalf("client side: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Handshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Handshake")
	}

	if s.State != Initialized {
		t.Fatalf("State = %v, want Initialized", s.State)
	}
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestHandleMessageSetPixelFormatClearsPending(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	s.Pending = &PendingUpdateRequest{Incremental: true, Region: rfb.Rectangle{W: 10, H: 10}}

	newFormat := rfb.DefaultPixelFormat()
	newFormat.BitsPerPixel = 16
	newFormat.Depth = 16
	newFormat.RedMax, newFormat.GreenMax, newFormat.BlueMax = 31, 63, 31
	newFormat.RedShift, newFormat.GreenShift, newFormat.BlueShift = 11, 5, 0

	if err := s.HandleMessage(rfb.SetPixelFormatMsg{Format: newFormat}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if s.Pending != nil {
		t.Fatal("SetPixelFormat must clear any pending update request")
	}
	if !s.PixelFormat.Equal(newFormat) {
		t.Fatal("PixelFormat was not updated")
	}
}

func TestHandleMessageSetEncodingsUpdatesPseudoFlags(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	msg := rfb.SetEncodingsMsg{Encodings: []int32{rfb.EncodingZRLE, rfb.PseudoEncodingCursor, rfb.PseudoEncodingContinuousUpdates}}
	if err := s.HandleMessage(msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !s.SupportsCursor || !s.SupportsContinuousUpdates {
		t.Fatal("expected cursor and continuous-updates flags to be set")
	}
	if s.SupportsDesktopSize {
		t.Fatal("desktop-size flag should not be set")
	}
}

func TestApplyUpdateRequestCoalescesRegions(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	opts := testOptions()
	opts.EnableRequestCoalescing = true
	s := New(server, opts, noopInputSink{}, logging.NoOp{})

	first := rfb.FramebufferUpdateRequestMsg{Incremental: true, Region: rfb.Rectangle{X: 0, Y: 0, W: 10, H: 10}}
	second := rfb.FramebufferUpdateRequestMsg{Incremental: false, Region: rfb.Rectangle{X: 20, Y: 20, W: 5, H: 5}}

	if err := s.HandleMessage(first); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := s.HandleMessage(second); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if s.Pending.Incremental {
		t.Fatal("incremental must be the logical AND of the two requests")
	}
	want := rfb.Rectangle{X: 0, Y: 0, W: 25, H: 25}
	if s.Pending.Region != want {
		t.Fatalf("Pending.Region = %+v, want %+v", s.Pending.Region, want)
	}
}

func TestApplyUpdateRequestWithoutCoalescingReplaces(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	opts := testOptions()
	opts.EnableRequestCoalescing = false
	s := New(server, opts, noopInputSink{}, logging.NoOp{})

	first := rfb.FramebufferUpdateRequestMsg{Incremental: true, Region: rfb.Rectangle{X: 0, Y: 0, W: 10, H: 10}}
	second := rfb.FramebufferUpdateRequestMsg{Incremental: false, Region: rfb.Rectangle{X: 20, Y: 20, W: 5, H: 5}}

	if err := s.HandleMessage(first); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := s.HandleMessage(second); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if s.Pending.Region != second.Region {
		t.Fatalf("Pending.Region = %+v, want the most recent request %+v", s.Pending.Region, second.Region)
	}
}

func TestDeferUpdateHoldsUntilDeadlineElapses(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})

	interval := 10 * time.Millisecond
	if !s.DeferUpdate(interval) {
		t.Fatal("expected the first call to start deferring")
	}
	if !s.DeferUpdate(interval) {
		t.Fatal("expected to still be deferring before the deadline")
	}

	time.Sleep(3 * interval)
	if s.DeferUpdate(interval) {
		t.Fatal("expected deferral to end once interval*2 has elapsed")
	}
}

func TestDeferUpdateNeverHoldsWithZeroInterval(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	if s.DeferUpdate(0) {
		t.Fatal("a zero frame interval (localhost) must never defer")
	}
}

func TestClearDeferralResetsWindow(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	interval := 10 * time.Millisecond
	s.DeferUpdate(interval)
	s.ClearDeferral()
	if !s.DeferUpdate(interval) {
		t.Fatal("expected a fresh deferral window to start deferring again")
	}
}

func TestCursorChangedTrueOnFirstFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	frame := host.CursorFrame{HotspotX: 1, HotspotY: 2, Width: 4, Height: 4, BGRA: []byte{1, 2, 3, 4}}
	if !s.CursorChanged(frame) {
		t.Fatal("expected the first cursor frame to always count as changed")
	}
}

func TestCursorChangedFalseWhenIdentical(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	frame := host.CursorFrame{HotspotX: 1, HotspotY: 2, Width: 4, Height: 4, BGRA: []byte{1, 2, 3, 4}, Alpha: []byte{0xFF}}
	s.RecordCursorSent(frame)
	if s.CursorChanged(frame) {
		t.Fatal("expected an identical frame to not count as changed")
	}
}

func TestCursorChangedTrueWhenSpriteDiffers(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server, testOptions(), noopInputSink{}, logging.NoOp{})
	s.RecordCursorSent(host.CursorFrame{HotspotX: 1, HotspotY: 2, Width: 4, Height: 4, BGRA: []byte{1, 2, 3, 4}})
	next := host.CursorFrame{HotspotX: 1, HotspotY: 2, Width: 4, Height: 4, BGRA: []byte{9, 9, 9, 9}}
	if !s.CursorChanged(next) {
		t.Fatal("expected a differing sprite to count as changed")
	}
}
