package transport

import "testing"

func TestUpgradeOptionsBufferBytesDefaultsWhenUnset(t *testing.T) {
	opts := UpgradeOptions{}
	if got := opts.bufferBytes(); got != defaultBufferBytes {
		t.Fatalf("bufferBytes() = %d, want default %d", got, defaultBufferBytes)
	}
}

func TestUpgradeOptionsBufferBytesHonorsConfiguredValue(t *testing.T) {
	opts := UpgradeOptions{BufferBytes: 4096}
	if got := opts.bufferBytes(); got != 4096 {
		t.Fatalf("bufferBytes() = %d, want 4096", got)
	}
}

func TestWsConnFrameSizeUsesConfiguredValue(t *testing.T) {
	c := &wsConn{maxOutboundFrame: 4}
	frame := c.maxOutboundFrame
	if frame <= 0 {
		frame = maxOutboundFrame
	}
	if frame != 4 {
		t.Fatalf("effective frame size = %d, want 4", frame)
	}
}

// TestComputeAcceptKeyRFCVector checks the documented RFC 6455 §1.3
// example: key "dGhlIHNhbXBsZSBub25jZQ==" must produce accept value
// "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=".
func TestComputeAcceptKeyRFCVector(t *testing.T) {
	got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("ComputeAcceptKey = %q, want %q", got, want)
	}
}
