// Package session implements ClientSession, the per-connection state
// machine spec.md §3 describes: protocol/security negotiation, the
// negotiated pixel format and encoding list, pending update requests,
// button state, and the persistent compression streams a connection
// owns for its whole lifetime.
package session

import (
	"fmt"
	"net"
	"time"

	"github.com/brightloom/vncd/auth"
	"github.com/brightloom/vncd/changedetect"
	"github.com/brightloom/vncd/encoding"
	"github.com/brightloom/vncd/framebuffer"
	"github.com/brightloom/vncd/host"
	"github.com/brightloom/vncd/logging"
	"github.com/brightloom/vncd/rfb"
	"github.com/brightloom/vncd/rfbserr"
)

// State is a point in the lifecycle spec.md §3 names.
type State int

const (
	Accepted State = iota
	VersionNegotiated
	SecurityNegotiated
	Initialized
	Serving
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case VersionNegotiated:
		return "version_negotiated"
	case SecurityNegotiated:
		return "security_negotiated"
	case Initialized:
		return "initialized"
	case Serving:
		return "serving"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// PendingUpdateRequest is the most recent FramebufferUpdateRequest not
// yet answered, possibly the coalesced union of several.
type PendingUpdateRequest struct {
	Incremental bool
	Region      rfb.Rectangle
}

// Options configures a ClientSession at construction; the fields that
// come straight from config.Config are passed individually so this
// package has no dependency on the config package (the supervisor owns
// translating configuration into session options).
type Options struct {
	Width, Height           int
	Password                string
	MaxSetEncodings         int
	MaxClientCutText        int
	EnableRequestCoalescing bool
	DesktopName             string
}

// ClientSession owns one connection end to end: its socket, framebuffer
// snapshot, tile hashes, and compression streams. Per spec.md §3 it is
// exclusively owned by its driving task; nothing outside this package
// and the scheduler that drives it should mutate its fields.
type ClientSession struct {
	Conn net.Conn
	Log  logging.Logger
	opts Options

	State State

	Version  string
	security auth.Authenticator

	PixelFormat rfb.PixelFormat

	ClientEncodings []int32
	SupportsCursor, SupportsDesktopSize, SupportsExtendedDesktopSize bool
	SupportsContinuousUpdates, SupportsLastRect                      bool

	Snapshot      *framebuffer.Snapshot
	priorSnapshot *framebuffer.Snapshot
	capturedOnce  bool
	ChangeDetect  *changedetect.TileGrid

	Pending     *PendingUpdateRequest
	ButtonState uint8

	Selector *encoding.Selector

	Input host.InputSink

	// deferredSince marks the start of a ContinuousUpdates deferral
	// window (spec.md §4.4); zero means no empty-dirty request is
	// currently being held back.
	deferredSince time.Time

	lastCursor     host.CursorFrame
	lastCursorSent bool
}

// New constructs a ClientSession in the Accepted state, ready for
// Handshake to run the protocol negotiation.
func New(conn net.Conn, opts Options, input host.InputSink, log logging.Logger) *ClientSession {
	return &ClientSession{
		Conn:         conn,
		Log:          log,
		opts:         opts,
		State:        Accepted,
		PixelFormat:  rfb.DefaultPixelFormat(),
		Snapshot:     framebuffer.New(opts.Width, opts.Height),
		ChangeDetect: changedetect.NewTileGrid(opts.Width, opts.Height),
		Input:        input,
	}
}

// Handshake runs version negotiation, security negotiation, ClientInit
// and ServerInit, leaving the session Initialized on success.
func (s *ClientSession) Handshake() error {
	if err := rfb.SendVersion(s.Conn); err != nil {
		return rfbserr.New("session.Handshake", rfbserr.Transport, "send version", err)
	}
	version, err := rfb.ReadClientVersion(s.Conn)
	if err != nil {
		return rfbserr.New("session.Handshake", rfbserr.Transport, "read client version", err)
	}
	s.Version = version
	s.State = VersionNegotiated

	if err := s.negotiateSecurity(); err != nil {
		return err
	}
	s.State = SecurityNegotiated

	if _, err := rfb.ReadClientInit(s.Conn); err != nil {
		return rfbserr.New("session.Handshake", rfbserr.Transport, "read ClientInit", err)
	}

	name := s.opts.DesktopName
	if name == "" {
		name = "vncd"
	}
	init := rfb.ServerInit{
		Width:       uint16(s.opts.Width),
		Height:      uint16(s.opts.Height),
		PixelFormat: s.PixelFormat,
		Name:        name,
	}
	if err := rfb.SendServerInit(s.Conn, init); err != nil {
		return rfbserr.New("session.Handshake", rfbserr.Transport, "send ServerInit", err)
	}
	s.State = Initialized
	return nil
}

func (s *ClientSession) negotiateSecurity() error {
	none := auth.None{}
	var vnc auth.Authenticator
	if s.opts.Password != "" {
		vnc = auth.VNCPassword{Password: s.opts.Password}
	}

	if s.Version == rfb.Version3_3 {
		var chosen uint8 = rfb.SecurityNone
		if vnc != nil {
			chosen = rfb.SecurityVNCAuth
		}
		if err := rfb.SendSecurityResult(s.Conn, uint32(chosen)); err != nil {
			return rfbserr.New("session.negotiateSecurity", rfbserr.Transport, "send 3.3 security type", err)
		}
		return s.runAuthenticator(chosen, none, vnc)
	}

	types := []uint8{rfb.SecurityNone}
	if vnc != nil {
		types = []uint8{rfb.SecurityVNCAuth}
	}
	if err := rfb.SendSecurityTypes(s.Conn, types); err != nil {
		return rfbserr.New("session.negotiateSecurity", rfbserr.Transport, "send security types", err)
	}
	choice, err := rfb.ReadSecurityChoice(s.Conn)
	if err != nil {
		return rfbserr.New("session.negotiateSecurity", rfbserr.Transport, "read security choice", err)
	}
	return s.runAuthenticator(choice, none, vnc)
}

func (s *ClientSession) runAuthenticator(choice uint8, none auth.Authenticator, vnc auth.Authenticator) error {
	var chosen auth.Authenticator
	switch choice {
	case rfb.SecurityNone:
		chosen = none
	case rfb.SecurityVNCAuth:
		if vnc == nil {
			return s.failSecurity("VNC authentication is not configured")
		}
		chosen = vnc
	default:
		return s.failSecurity(fmt.Sprintf("unsupported security type %d", choice))
	}

	s.security = chosen
	if err := chosen.Authenticate(s.Conn); err != nil {
		_ = rfb.SendSecurityResult(s.Conn, rfb.SecurityResultFailed)
		if s.Version == rfb.Version3_8 {
			_ = rfb.SendSecurityFailureReason(s.Conn, "authentication failed")
		}
		return err
	}
	if err := rfb.SendSecurityResult(s.Conn, rfb.SecurityResultOK); err != nil {
		return rfbserr.New("session.runAuthenticator", rfbserr.Transport, "send security result", err)
	}
	return nil
}

func (s *ClientSession) failSecurity(reason string) error {
	_ = rfb.SendSecurityResult(s.Conn, rfb.SecurityResultFailed)
	if s.Version == rfb.Version3_8 {
		_ = rfb.SendSecurityFailureReason(s.Conn, reason)
	}
	return rfbserr.New("session.negotiateSecurity", rfbserr.Authentication, reason, nil)
}

// Limits returns the rfb.Limits this session enforces when reading
// client messages, taken from its construction Options.
func (s *ClientSession) Limits() rfb.Limits {
	return rfb.Limits{MaxSetEncodings: s.opts.MaxSetEncodings, MaxClientCutText: s.opts.MaxClientCutText}
}

// HandleMessage applies one decoded client message to session state,
// per the dispatch table in spec.md §4.7. Key/pointer/clipboard events
// are forwarded to the InputSink best-effort: a failure there is logged
// and dropped, never propagated as a connection error.
func (s *ClientSession) HandleMessage(msg rfb.ClientMessage) error {
	switch m := msg.(type) {
	case rfb.SetPixelFormatMsg:
		if err := m.Format.Validate(); err != nil {
			return rfbserr.New("session.HandleMessage", rfbserr.Protocol, "invalid pixel format", err)
		}
		s.PixelFormat = m.Format
		s.Pending = nil
	case rfb.SetEncodingsMsg:
		s.ClientEncodings = m.Encodings
		if s.Selector != nil {
			s.Selector.ClientEncodings = m.Encodings
		}
		s.updatePseudoEncodingFlags()
	case rfb.FramebufferUpdateRequestMsg:
		s.applyUpdateRequest(m)
	case rfb.KeyEventMsg:
		if err := s.Input.InjectKey(m.Keysym, m.Down); err != nil {
			s.Log.Warn("InjectKey failed", logging.F("err", err))
		}
	case rfb.PointerEventMsg:
		s.ButtonState = m.ButtonMask
		if err := s.Input.InjectPointer(int(m.X), int(m.Y), m.ButtonMask); err != nil {
			s.Log.Warn("InjectPointer failed", logging.F("err", err))
		}
	case rfb.ClientCutTextMsg:
		if err := s.Input.SetClipboard(m.Text); err != nil {
			s.Log.Warn("SetClipboard failed", logging.F("err", err))
		}
	default:
		return rfbserr.New("session.HandleMessage", rfbserr.Protocol, "unhandled client message type", nil)
	}
	return nil
}

func (s *ClientSession) updatePseudoEncodingFlags() {
	s.SupportsCursor = false
	s.SupportsDesktopSize = false
	s.SupportsExtendedDesktopSize = false
	s.SupportsContinuousUpdates = false
	s.SupportsLastRect = false
	for _, e := range s.ClientEncodings {
		switch e {
		case rfb.PseudoEncodingCursor:
			s.SupportsCursor = true
		case rfb.PseudoEncodingDesktopSize:
			s.SupportsDesktopSize = true
		case rfb.PseudoEncodingExtendedDesktopSize:
			s.SupportsExtendedDesktopSize = true
		case rfb.PseudoEncodingContinuousUpdates:
			s.SupportsContinuousUpdates = true
		case rfb.PseudoEncodingLastRect:
			s.SupportsLastRect = true
		}
	}
}

// applyUpdateRequest stores (or, with request coalescing, unions) a new
// FramebufferUpdateRequest, per spec.md §4.8.
func (s *ClientSession) applyUpdateRequest(m rfb.FramebufferUpdateRequestMsg) {
	region := m.Region.Clamp(uint16(s.opts.Width), uint16(s.opts.Height))
	if s.Pending == nil || !s.opts.EnableRequestCoalescing {
		s.Pending = &PendingUpdateRequest{Incremental: m.Incremental, Region: region}
		return
	}
	s.Pending.Region = s.Pending.Region.Union(region)
	s.Pending.Incremental = s.Pending.Incremental && m.Incremental
}

// Close transitions the session to Closed and releases its socket. It
// is safe to call more than once.
func (s *ClientSession) Close() error {
	s.State = Closing
	err := s.Conn.Close()
	s.State = Closed
	return err
}

// SetReadDeadline applies the client socket timeout ahead of each
// message read, per spec.md §6 client_socket_timeout.
func (s *ClientSession) SetReadDeadline(d time.Duration) error {
	return s.Conn.SetReadDeadline(time.Now().Add(d))
}

// AdvanceSnapshot replaces the prior-frame snapshot with the current
// one, keeping a copy of the previous frame so C5's CopyRect source
// search always has something to compare against.
func (s *ClientSession) AdvanceSnapshot(pixels []byte, width, height int) {
	if s.capturedOnce {
		if s.priorSnapshot == nil || s.priorSnapshot.Width != s.Snapshot.Width || s.priorSnapshot.Height != s.Snapshot.Height {
			s.priorSnapshot = framebuffer.New(s.Snapshot.Width, s.Snapshot.Height)
		}
		s.priorSnapshot.Update(s.Snapshot.Pixels)
	}
	s.Snapshot.Update(pixels)
	s.capturedOnce = true
}

// PriorSnapshot returns the frame captured before the current one, or
// nil if only one frame has been captured so far: there is nothing yet
// for C5's CopyRect search to compare against.
func (s *ClientSession) PriorSnapshot() *framebuffer.Snapshot {
	return s.priorSnapshot
}

// DeferUpdate implements spec.md §4.4's ContinuousUpdates deferral: an
// empty-dirty incremental request is held rather than answered
// immediately, until interval*2 has elapsed since the first empty cycle
// in this deferral window. It reports true while the caller should keep
// holding the request.
func (s *ClientSession) DeferUpdate(interval time.Duration) bool {
	deadline := interval * 2
	if deadline <= 0 {
		return false
	}
	if s.deferredSince.IsZero() {
		s.deferredSince = time.Now()
		return true
	}
	return time.Since(s.deferredSince) < deadline
}

// ClearDeferral resets the ContinuousUpdates deferral window; called
// whenever a cycle has something to send.
func (s *ClientSession) ClearDeferral() {
	s.deferredSince = time.Time{}
}

// CursorChanged reports whether frame differs from the cursor sprite
// last sent to this client via the Cursor pseudo-encoding.
func (s *ClientSession) CursorChanged(frame host.CursorFrame) bool {
	if !s.lastCursorSent {
		return true
	}
	c := s.lastCursor
	if c.HotspotX != frame.HotspotX || c.HotspotY != frame.HotspotY || c.Width != frame.Width || c.Height != frame.Height {
		return true
	}
	return !bytesEqual(c.BGRA, frame.BGRA) || !bytesEqual(c.Alpha, frame.Alpha)
}

// RecordCursorSent stores frame as the last cursor sprite sent to this
// client, so the next cycle's CursorChanged has something to diff
// against.
func (s *ClientSession) RecordCursorSent(frame host.CursorFrame) {
	s.lastCursor = frame
	s.lastCursorSent = true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
