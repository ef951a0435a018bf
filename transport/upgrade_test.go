package transport

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestUpgradeRawConnCompletesHandshake(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	tunneledCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		tunneled, err := UpgradeRawConn(server, UpgradeOptions{})
		if err != nil {
			errCh <- err
			return
		}
		tunneledCh <- tunneled
	}()

	dialer := websocket.Dialer{
		NetDial:          func(network, addr string) (net.Conn, error) { return client, nil },
		Subprotocols:     []string{"binary"},
		HandshakeTimeout: 2 * time.Second,
	}
	ws, resp, err := dialer.Dial("ws://vncd.local/", http.Header{})
	if err != nil {
		t.Fatalf("client Dial: %v", err)
	}
	defer ws.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	select {
	case err := <-errCh:
		t.Fatalf("UpgradeRawConn: %v", err)
	case tunneled := <-tunneledCh:
		if tunneled == nil {
			t.Fatal("expected a non-nil tunneled connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for UpgradeRawConn")
	}
}
