// Package server implements the server supervisor (component C10):
// the listening socket, the connection pool, graceful shutdown on
// process signals, and a liveness health check, generalized from the
// teacher's single accept loop into a reusable Supervisor that can run
// any ScreenSource/InputSink pair.
package server

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/brightloom/vncd/config"
	"github.com/brightloom/vncd/encoding"
	"github.com/brightloom/vncd/host"
	"github.com/brightloom/vncd/logging"
	"github.com/brightloom/vncd/rfb"
	"github.com/brightloom/vncd/scheduler"
	"github.com/brightloom/vncd/session"
	"github.com/brightloom/vncd/transport"
)

// GracePeriod bounds how long Serve waits, during shutdown, for
// in-flight sessions to finish their current update before force-closing
// their sockets.
const GracePeriod = 5 * time.Second

// Supervisor owns the listening socket and the connection pool for one
// running server instance.
type Supervisor struct {
	cfg    *config.Config
	log    logging.Logger
	source host.ScreenSource
	input  host.InputSink

	listener net.Listener
	pool     *ConnectionPool

	wg sync.WaitGroup

	statusMu  sync.RWMutex
	listening bool
	startedAt time.Time
}

// Status is a liveness snapshot suitable for a health endpoint (A7).
type Status struct {
	Listening      bool
	ActiveSessions int
	Uptime         time.Duration
}

// Status reports whether the supervisor is currently accepting
// connections, how many sessions are active, and how long it has been
// serving. Safe to call concurrently with Serve.
func (sv *Supervisor) Status() Status {
	sv.statusMu.RLock()
	listening := sv.listening
	startedAt := sv.startedAt
	sv.statusMu.RUnlock()

	var uptime time.Duration
	if listening {
		uptime = time.Since(startedAt)
	}
	return Status{
		Listening:      listening,
		ActiveSessions: sv.pool.Len(),
		Uptime:         uptime,
	}
}

// New builds a Supervisor bound to addr ("host:port" from cfg) but does
// not start listening; call Serve to do that.
func New(cfg *config.Config, source host.ScreenSource, input host.InputSink, log logging.Logger) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		log:    log,
		source: source,
		input:  input,
		pool:   NewConnectionPool(cfg.MaxConnections),
	}
}

// Serve listens on cfg.Host:cfg.Port and accepts connections until ctx
// is cancelled or a process signal (INT, TERM, HUP) requests shutdown.
// It blocks until every session has drained or the grace period elapses.
func (sv *Supervisor) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(sv.cfg.Host, strconv.Itoa(sv.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	sv.listener = ln
	sv.log.Info("listening", logging.F("addr", addr))

	sv.statusMu.Lock()
	sv.listening = true
	sv.startedAt = time.Now()
	sv.statusMu.Unlock()
	defer func() {
		sv.statusMu.Lock()
		sv.listening = false
		sv.statusMu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			sv.log.Info("shutdown signal received", logging.F("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		sv.acceptLoop(ctx)
	}()

	<-ctx.Done()
	_ = ln.Close()
	<-acceptDone

	return sv.drainSessions()
}

func (sv *Supervisor) acceptLoop(ctx context.Context) {
	for {
		conn, err := sv.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sv.log.Warn("accept failed", logging.F("err", err))
			continue
		}
		sv.wg.Add(1)
		go func() {
			defer sv.wg.Done()
			sv.handleConn(ctx, conn)
		}()
	}
}

// drainSessions signals every active session to close, waits up to
// GracePeriod for their tasks to finish, then returns regardless.
func (sv *Supervisor) drainSessions() error {
	for _, s := range sv.pool.Sessions() {
		_ = s.Close()
	}

	done := make(chan struct{})
	go func() {
		sv.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(GracePeriod):
		sv.log.Warn("grace period elapsed with sessions still draining", logging.F("remaining", sv.pool.Len()))
		for _, s := range sv.pool.Sessions() {
			_ = s.Close()
		}
	}
	return nil
}

func (sv *Supervisor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn, err := sv.negotiateTransport(conn)
	if err != nil {
		sv.log.Warn("transport negotiation failed", logging.F("err", err))
		return
	}

	if !sv.pool.HasCapacity() {
		sv.rejectSaturated(conn)
		return
	}

	width, height := sv.probeDimensions(ctx)

	sess := session.New(conn, session.Options{
		Width:                   width,
		Height:                  height,
		Password:                sv.cfg.Password,
		MaxSetEncodings:         sv.cfg.MaxSetEncodings,
		MaxClientCutText:        sv.cfg.MaxClientCutText,
		EnableRequestCoalescing: sv.cfg.EnableRequestCoalescing,
	}, sv.input, sv.log.With(logging.F("remote", conn.RemoteAddr().String())))

	if !sv.pool.TryAdd(sess) {
		_ = sess.Close()
		return
	}
	defer sv.pool.Remove(sess)

	if err := sess.Handshake(); err != nil {
		sess.Log.Warn("handshake failed", logging.F("err", err))
		return
	}

	profile := resolveProfile(sv.cfg.NetworkProfileOverride, conn.RemoteAddr())
	sess.Selector = sv.buildSelector(profile)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- scheduler.Run(connCtx, sess, sv.source, sv.schedulerOptions(profile))
	}()

	sv.readLoop(connCtx, sess)
	cancel()
	<-schedDone
}

// rejectSaturated completes just enough of the protocol handshake to
// tell the client why it is being turned away, then closes the socket.
// Security negotiation always offers SecurityNone so version 3.8
// clients reach a point where a failure reason string can be sent;
// version 3.3 clients are closed right after version negotiation,
// with nothing further sent.
func (sv *Supervisor) rejectSaturated(conn net.Conn) {
	if err := rfb.SendVersion(conn); err != nil {
		return
	}
	version, err := rfb.ReadClientVersion(conn)
	if err != nil {
		return
	}
	if version == rfb.Version3_3 {
		return
	}
	if err := rfb.SendSecurityTypes(conn, []uint8{rfb.SecurityNone}); err != nil {
		return
	}
	if _, err := rfb.ReadSecurityChoice(conn); err != nil {
		return
	}
	_ = rfb.SendSecurityResult(conn, rfb.SecurityResultFailed)
	_ = rfb.SendSecurityFailureReason(conn, "server connection pool is full")
	sv.log.Info("rejected connection: pool saturated", logging.F("remote", conn.RemoteAddr().String()))
}

// probeDimensions learns the screen's current size from a single
// capture before constructing the session, since spec.md's data model
// has ServerInit's width/height come from the ScreenSource rather than
// static configuration. A capture failure falls back to 1024x768 so a
// single flaky capture does not abort the whole connection; the next
// scheduler cycle will retry against the real source.
func (sv *Supervisor) probeDimensions(ctx context.Context) (int, int) {
	result, err := sv.source.Capture(ctx, nil)
	if err != nil {
		sv.log.Warn("initial capture failed, using fallback dimensions", logging.F("err", err))
		return 1024, 768
	}
	return result.Width, result.Height
}

func (sv *Supervisor) negotiateTransport(conn net.Conn) (net.Conn, error) {
	if !sv.cfg.EnableWebsocket {
		return conn, nil
	}
	timeout := time.Duration(sv.cfg.WebsocketDetectTimeout * float64(time.Second))
	isWebSocket, wrapped, err := transport.Sniff(conn, timeout)
	if err != nil {
		return nil, err
	}
	if !isWebSocket {
		return wrapped, nil
	}
	return transport.UpgradeRawConn(wrapped, transport.UpgradeOptions{
		MaxHandshakeBytes: sv.cfg.WebsocketMaxHandshakeBytes,
		MaxPayloadBytes:   sv.cfg.WebsocketMaxPayloadBytes,
		BufferBytes:       sv.cfg.WebsocketMaxBufferBytes,
	})
}

// buildSelector constructs the per-connection Selector. LAN connections
// get their own ZRLE/Zlib streams built at cfg's LAN compression levels
// (spec.md §4.3 rule 4: "ZRLE (lower compression level than WAN)"), and
// the LAN threshold table rule 4 consults, populated from cfg so it is
// no longer decorative configuration.
func (sv *Supervisor) buildSelector(profile encoding.NetworkProfile) *encoding.Selector {
	sel := &encoding.Selector{
		Profile:    profile,
		EnableZlib: sv.cfg.LANPreferZlib && profile == encoding.ProfileLAN,
	}

	if profile == encoding.ProfileLAN {
		sel.ZRLE = encoding.NewZRLEEncoderLevel(sv.cfg.LANZRLECompressionLevel)
		sel.LANRawAreaThreshold = sv.cfg.LANRawAreaThreshold
		sel.LANRawMaxPixels = sv.cfg.LANRawMaxPixels
		sel.LANZlibAreaThreshold = sv.cfg.LANZlibAreaThreshold
		sel.LANZlibMinPixels = sv.cfg.LANZlibMinPixels
		sel.LANZlibWarmupRequests = sv.cfg.LANZlibWarmupRequests
		if sel.EnableZlib {
			sel.Zlib = encoding.NewZlibEncoderLevel(sv.cfg.LANZlibCompressionLevel)
		}
	} else {
		sel.ZRLE = encoding.NewZRLEEncoder()
	}

	return sel
}

func (sv *Supervisor) schedulerOptions(profile encoding.NetworkProfile) scheduler.Options {
	interval := sv.frameInterval(profile)
	return scheduler.Options{
		TargetFrameInterval:    interval,
		EnableRegionDetection:  sv.cfg.EnableRegionDetection,
		EnableParallelEncoding: sv.cfg.EnableParallelEncoding,
		EncodingWorkers:        sv.encodingWorkers(),
	}
}

func (sv *Supervisor) encodingWorkers() int {
	if sv.cfg.EncodingThreads != nil {
		return *sv.cfg.EncodingThreads
	}
	return 0
}

func (sv *Supervisor) frameInterval(profile encoding.NetworkProfile) time.Duration {
	switch profile {
	case encoding.ProfileLocalhost:
		return 0
	case encoding.ProfileLAN:
		return time.Second / time.Duration(sv.cfg.LANFrameRate)
	default:
		return time.Second / time.Duration(sv.cfg.FrameRate)
	}
}

// readLoop reads and dispatches client messages until the connection
// fails or ctx is cancelled, enforcing the per-message client socket
// timeout spec.md §6 names. This is also how idle connections are
// dropped: rather than a centralized scan of last-activity timestamps
// (which would mean the supervisor mutating session-private state), the
// timeout is a read deadline the connection's own task enforces on
// itself before every read.
func (sv *Supervisor) readLoop(ctx context.Context, sess *session.ClientSession) {
	timeout := time.Duration(sv.cfg.ClientSocketTimeout * float64(time.Second))
	for {
		if ctx.Err() != nil {
			return
		}
		if err := sess.SetReadDeadline(timeout); err != nil {
			return
		}
		msg, err := rfb.ReadClientMessage(sess.Conn, sess.Limits())
		if err != nil {
			sess.Log.Info("connection closed", logging.F("err", err))
			return
		}
		if err := sess.HandleMessage(msg); err != nil {
			sess.Log.Warn("message handling failed, closing connection", logging.F("err", err))
			return
		}
	}
}
