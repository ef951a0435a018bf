// Package rfbserr defines the closed set of error kinds the server can
// raise, per the error handling design: each kind carries its own
// propagation rule (close the connection, skip a cycle, degrade health...)
// and every error is inspectable with errors.Is/errors.As.
package rfbserr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error by how the engine must react to it.
type Kind int

const (
	// Protocol covers malformed messages, unknown message types, and
	// oversized fields. The offending connection is closed.
	Protocol Kind = iota
	// Authentication covers a VNC challenge/response mismatch.
	Authentication
	// Handshake covers a failed WebSocket upgrade.
	Handshake
	// Transport covers socket read/write failures, EOF, and timeouts.
	Transport
	// CaptureTransient covers a ScreenSource.Unavailable result; the
	// update cycle is skipped and the connection continues.
	CaptureTransient
	// CaptureFatal covers a ScreenSource.Fatal result; the connection
	// is closed and health is marked degraded.
	CaptureFatal
	// Encoder covers a bug or inconsistency inside a rectangle encoder;
	// the engine falls back to Raw for that rectangle.
	Encoder
	// ResourceLimit covers a per-connection buffer or quota exceeded.
	ResourceLimit
)

// String returns a lowercase label for the kind, used in error text and
// log fields.
func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case Authentication:
		return "authentication"
	case Handshake:
		return "handshake"
	case Transport:
		return "transport"
	case CaptureTransient:
		return "capture_transient"
	case CaptureFatal:
		return "capture_fatal"
	case Encoder:
		return "encoder"
	case ResourceLimit:
		return "resource_limit"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across package boundaries in
// this module. Op names the failing operation ("rfb.ReadClientInit",
// "transport.Upgrade", ...); Err is the wrapped cause, if any.
type Error struct {
	Op  string
	Kind Kind
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches by kind only, so callers can check
// errors.Is(err, rfbserr.New("", rfbserr.Protocol, "", nil)) style
// sentinels built with the helpers below.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return e.Kind == o.Kind
	}
	return false
}

// New constructs an *Error. A nil err is allowed for synthetic errors
// (e.g. validation failures with no underlying cause).
func New(op string, kind Kind, msg string, err error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Wrap returns nil if err is nil, otherwise an *Error of the given kind
// wrapping err.
func Wrap(op string, kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Of reports whether err is an *Error of one of the given kinds. With no
// kinds given it reports whether err is any *Error.
func Of(err error, kinds ...Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// KindOf extracts the Kind carried by err, or -1 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Kind(-1)
}
