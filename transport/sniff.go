package transport

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/brightloom/vncd/rfbserr"
)

// DefaultDetectTimeout bounds how long Sniff waits for the first bytes
// of a new connection before treating it as raw RFB, per spec.md §4.6
// (websocket_detect_timeout, default 250ms).
const DefaultDetectTimeout = 250 * time.Millisecond

// sniffPrefix is the ASCII prefix that marks an HTTP/WebSocket upgrade
// request; anything else is treated as raw RFB.
const sniffPrefix = "GET"

// sniffedConn re-emits the bytes Sniff peeked before any further reads,
// so the peek is non-destructive to the caller that ends up treating
// the connection as raw RFB.
type sniffedConn struct {
	net.Conn
	buffered *bufio.Reader
}

func (c *sniffedConn) Read(p []byte) (int, error) { return c.buffered.Read(p) }

// Sniff peeks up to len(sniffPrefix) bytes from conn within timeout and
// reports whether the connection begins a WebSocket/HTTP upgrade. A
// connection that has not sent that many bytes when timeout elapses is
// reported as raw RFB. The returned net.Conn must be used in place of conn from this point on,
// whichever branch is taken, since the peek already consumed bytes from
// the underlying socket into an internal buffer.
func Sniff(conn net.Conn, timeout time.Duration) (isWebSocket bool, wrapped net.Conn, err error) {
	if timeout <= 0 {
		timeout = DefaultDetectTimeout
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, nil, rfbserr.New("transport.Sniff", rfbserr.Transport, "failed to set detect deadline", err)
	}

	br := bufio.NewReader(conn)
	prefix, peekErr := br.Peek(len(sniffPrefix))
	var ne net.Error
	if peekErr != nil && !(errors.As(peekErr, &ne) && ne.Timeout()) {
		return false, nil, rfbserr.New("transport.Sniff", rfbserr.Transport, "failed to peek connection preface", peekErr)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return false, nil, rfbserr.New("transport.Sniff", rfbserr.Transport, "failed to clear detect deadline", err)
	}

	return peekErr == nil && string(prefix) == sniffPrefix, &sniffedConn{Conn: conn, buffered: br}, nil
}

// UpgradeRawConn parses and upgrades a WebSocket handshake read directly
// off a raw net.Conn that a custom Listener (not net/http's own accept
// loop) already accepted. It reuses net/http's HTTP/1.1 request parsing
// and gorilla's Upgrader by running a single-connection *http.Server
// against a listener that yields exactly this one connection, which is
// the standard way to drive net/http's hijacking-based upgrade path
// outside of ListenAndServe.
func UpgradeRawConn(conn net.Conn, opts UpgradeOptions) (net.Conn, error) {
	result := make(chan net.Conn, 1)
	upgradeErr := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		tunneled, err := Upgrade(w, r, opts)
		if err != nil {
			upgradeErr <- err
			return
		}
		result <- tunneled
	})

	srv := &http.Server{Handler: mux, MaxHeaderBytes: opts.MaxHandshakeBytes}
	ln := &oneConnListener{conn: conn}
	go func() {
		_ = srv.Serve(ln)
	}()

	select {
	case tunneled := <-result:
		ln.Close()
		return tunneled, nil
	case err := <-upgradeErr:
		ln.Close()
		return nil, err
	}
}

// oneConnListener is a net.Listener that yields a single already-
// accepted connection and then blocks until closed.
type oneConnListener struct {
	conn   net.Conn
	served bool
	closed chan struct{}
}

func (l *oneConnListener) Accept() (net.Conn, error) {
	if !l.served {
		l.served = true
		return l.conn, nil
	}
	if l.closed == nil {
		l.closed = make(chan struct{})
	}
	<-l.closed
	return nil, errors.New("transport: oneConnListener closed")
}

func (l *oneConnListener) Close() error {
	if l.closed != nil {
		close(l.closed)
	}
	return nil
}

func (l *oneConnListener) Addr() net.Addr { return l.conn.LocalAddr() }

var _ net.Listener = (*oneConnListener)(nil)
