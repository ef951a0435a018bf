package rfb

import (
	"bytes"
	"testing"
)

func TestVersionNegotiationRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := SendVersion(&buf); err != nil {
		t.Fatalf("SendVersion: %v", err)
	}
	if buf.String() != Version3_8 {
		t.Fatalf("SendVersion wrote %q, want %q", buf.String(), Version3_8)
	}

	tests := []struct {
		name   string
		client string
		want   string
	}{
		{"3.8 client", Version3_8, Version3_8},
		{"3.7 client", Version3_7, Version3_7},
		{"3.3 client", Version3_3, Version3_3},
		{"garbage clamps to 3.3", "RFB 042.000\n", Version3_3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadClientVersion(bytes.NewBufferString(tt.client))
			if err != nil {
				t.Fatalf("ReadClientVersion: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ReadClientVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerInitRoundTrip(t *testing.T) {
	init := ServerInit{
		Width:       1920,
		Height:      1080,
		PixelFormat: DefaultPixelFormat(),
		Name:        "PyVNC",
	}
	var buf bytes.Buffer
	if err := SendServerInit(&buf, init); err != nil {
		t.Fatalf("SendServerInit: %v", err)
	}
	got, err := ReadServerInit(&buf)
	if err != nil {
		t.Fatalf("ReadServerInit: %v", err)
	}
	if got.Width != init.Width || got.Height != init.Height || got.Name != init.Name {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, init)
	}
	if !got.PixelFormat.Equal(init.PixelFormat) {
		t.Fatalf("pixel format mismatch: got %+v, want %+v", got.PixelFormat, init.PixelFormat)
	}
}

func TestSecurityResultRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := SendSecurityResult(&buf, SecurityResultOK); err != nil {
		t.Fatalf("SendSecurityResult: %v", err)
	}
	if got := buf.Bytes(); !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Fatalf("SecurityResultOK wire = %v, want all zero", got)
	}
}

func TestNoSecurityTypesCarriesReason(t *testing.T) {
	var buf bytes.Buffer
	if err := SendNoSecurityTypes(&buf, "no acceptable security type"); err != nil {
		t.Fatalf("SendNoSecurityTypes: %v", err)
	}
	if buf.Bytes()[0] != 0 {
		t.Fatalf("expected count byte 0, got %d", buf.Bytes()[0])
	}
}
