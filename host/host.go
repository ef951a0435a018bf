// Package host defines the two interfaces the engine consumes to reach
// whatever it is actually displaying and controlling (spec.md §6,
// "ScreenSource"/"InputSink"), and ships reference implementations
// (SyntheticScreen, LoggingInputSink) that exercise the full engine
// without any real display or input backend wired in.
package host

import (
	"context"
	"time"
)

// CaptureResult is one frame pulled from a ScreenSource: packed BGRA
// pixels, the dimensions they were captured at, and a monotonic
// timestamp used only for staleness comparisons, never wall-clock
// display.
type CaptureResult struct {
	Pixels    []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// ScreenSource is the frame producer the engine drives once per tick.
// Capture must be side-effect-free from the server's perspective: the
// same region may be requested repeatedly without the source changing
// state because of it.
//
// A failing Capture distinguishes two cases via rfbserr.Kind:
// CaptureTransient (skip this cycle, the source is momentarily
// unavailable) and CaptureFatal (the connection cannot continue).
type ScreenSource interface {
	Capture(ctx context.Context, region *Region) (CaptureResult, error)
}

// Region bounds a capture to a sub-rectangle of the full screen. A nil
// *Region passed to Capture means "the whole screen".
type Region struct {
	X, Y, W, H int
}

// InputSink is where the engine forwards decoded client input. All
// three methods are best-effort: the caller logs and drops any error,
// per spec.md §6, since a dropped keystroke or pointer move must never
// take down the connection.
type InputSink interface {
	InjectKey(keysym uint32, pressed bool) error
	InjectPointer(x, y int, buttons uint8) error
	SetClipboard(text []byte) error
}

// CursorSource is an optional capability a ScreenSource may also
// implement to supply cursor pseudo-encoding updates (resolves the
// "does the cursor ride inside the framebuffer capture, or does the
// host expose it separately" design question: here it's always
// separate, so a pointer-only backend never has to fake a sprite into
// its pixel capture).
type CursorSource interface {
	CaptureCursor(ctx context.Context) (CursorFrame, bool, error)
}

// CursorFrame is a cursor sprite plus its hotspot, reported in the
// RFC 6143 §7.7.2 Cursor pseudo-encoding's own coordinate terms.
type CursorFrame struct {
	HotspotX, HotspotY int
	Width, Height      int
	BGRA               []byte
	Alpha              []byte
}
