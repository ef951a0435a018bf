// Package scheduler implements the per-connection scheduler (component
// C9): frame pacing, the capture-to-send pipeline, and the optional
// bounded parallel-encoding worker pool.
package scheduler

import (
	"context"
	"time"

	"github.com/brightloom/vncd/encoding"
	"github.com/brightloom/vncd/framebuffer"
	"github.com/brightloom/vncd/host"
	"github.com/brightloom/vncd/logging"
	"github.com/brightloom/vncd/rfb"
	"github.com/brightloom/vncd/rfbserr"
	"github.com/brightloom/vncd/session"
)

// Options configures one session's scheduling loop.
type Options struct {
	// TargetFrameInterval is 1/frame_rate on WAN, 1/lan_frame_rate on
	// LAN, and zero on localhost (send as fast as captures arrive).
	TargetFrameInterval time.Duration
	// PollInterval bounds how often the loop wakes to re-check for a
	// pending request once the frame interval has elapsed.
	PollInterval time.Duration
	// EnableRegionDetection toggles C4; when false every cycle emits a
	// single rectangle covering the whole framebuffer.
	EnableRegionDetection bool
	// EnableParallelEncoding farms rectangle encoding out to a bounded
	// worker pool, reassembling results in C4's emission order.
	EnableParallelEncoding bool
	EncodingWorkers        int
}

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = 10 * time.Millisecond

// Run drives sess through repeated capture/detect/encode/send cycles
// until ctx is cancelled or a fatal error occurs, per spec.md §4.8's
// main cycle. A CaptureTransient error skips the cycle; any other error
// ends the loop and is returned to the caller, which is responsible for
// closing the session.
func Run(ctx context.Context, sess *session.ClientSession, source host.ScreenSource, opts Options) error {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	sess.State = session.Serving

	// Cancelling ctx also expires the write deadline, so a write blocked
	// on a client that has stopped reading returns instead of holding
	// Run open.
	stop := context.AfterFunc(ctx, func() { _ = sess.Conn.SetWriteDeadline(time.Now()) })
	defer stop()

	var lastSend time.Time
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if sess.Pending == nil || time.Since(lastSend) < opts.TargetFrameInterval {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(opts.PollInterval):
			}
			continue
		}

		if err := runCycle(ctx, sess, source, opts); err != nil {
			if rfbserr.Of(err, rfbserr.CaptureTransient) {
				sess.Log.Debug("capture unavailable, skipping cycle", logging.F("err", err))
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		lastSend = time.Now()
	}
}

func runCycle(ctx context.Context, sess *session.ClientSession, source host.ScreenSource, opts Options) error {
	result, err := source.Capture(ctx, nil)
	if err != nil {
		return err
	}

	sess.AdvanceSnapshot(result.Pixels, result.Width, result.Height)
	pending := sess.Pending
	sess.Selector.NoteRequest()

	var dirty []rfb.Rectangle
	if opts.EnableRegionDetection {
		dirty = sess.ChangeDetect.Detect(sess.Snapshot.Pixels)
	} else {
		dirty = []rfb.Rectangle{{X: 0, Y: 0, W: uint16(sess.Snapshot.Width), H: uint16(sess.Snapshot.Height)}}
	}

	cursorRect, haveCursor := captureCursorUpdate(ctx, sess, source)

	if pending.Incremental && len(dirty) == 0 && !haveCursor {
		if sess.SupportsContinuousUpdates && sess.DeferUpdate(opts.TargetFrameInterval) {
			return nil
		}
		sess.Pending = nil
		sess.ClearDeferral()
		return rfb.WriteFramebufferUpdate(sess.Conn, nil)
	}
	sess.ClearDeferral()

	rects := clampToRegion(dirty, pending.Region)
	if len(rects) == 0 && !haveCursor {
		sess.Pending = nil
		return nil
	}

	encoded := encodeRectangles(sess, rects, opts)
	if haveCursor {
		encoded = append([]rfb.EncodedRect{cursorRect}, encoded...)
	}

	if err := rfb.WriteFramebufferUpdate(sess.Conn, encoded); err != nil {
		return rfbserr.New("scheduler.runCycle", rfbserr.Transport, "write FramebufferUpdate", err)
	}
	sess.Pending = nil
	return nil
}

// captureCursorUpdate consults source's optional host.CursorSource
// capability and builds a Cursor pseudo-encoding rectangle when the
// client advertised support (spec.md §4.2 "Pseudo-encodings") and the
// sprite has changed since the last one this session sent.
func captureCursorUpdate(ctx context.Context, sess *session.ClientSession, source host.ScreenSource) (rfb.EncodedRect, bool) {
	if !sess.SupportsCursor {
		return rfb.EncodedRect{}, false
	}
	cs, ok := source.(host.CursorSource)
	if !ok {
		return rfb.EncodedRect{}, false
	}
	frame, shown, err := cs.CaptureCursor(ctx)
	if err != nil || !shown {
		return rfb.EncodedRect{}, false
	}
	if !sess.CursorChanged(frame) {
		return rfb.EncodedRect{}, false
	}
	sess.RecordCursorSent(frame)
	rect := encoding.CursorRect(
		uint16(frame.HotspotX), uint16(frame.HotspotY), uint16(frame.Width), uint16(frame.Height),
		frame.BGRA, frame.Alpha, sess.PixelFormat,
	)
	return rect, true
}

// clampToRegion restricts dirty rectangles to the region the client
// actually asked for.
func clampToRegion(dirty []rfb.Rectangle, region rfb.Rectangle) []rfb.Rectangle {
	if region.Empty() {
		return dirty
	}
	out := make([]rfb.Rectangle, 0, len(dirty))
	for _, r := range dirty {
		if !r.Overlaps(region) {
			continue
		}
		out = append(out, intersect(r, region))
	}
	return out
}

func intersect(a, b rfb.Rectangle) rfb.Rectangle {
	x0 := maxU16(a.X, b.X)
	y0 := maxU16(a.Y, b.Y)
	x1 := minU16(a.X+a.W, b.X+b.W)
	y1 := minU16(a.Y+a.H, b.Y+b.H)
	if x1 <= x0 || y1 <= y0 {
		return rfb.Rectangle{}
	}
	return rfb.Rectangle{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// encodeRectangles picks an encoder and encodes every rectangle,
// optionally farming the work out to a bounded worker pool while
// preserving the input order in its output, since CopyRect source
// semantics depend on deterministic emission order (spec.md §4.8).
func encodeRectangles(sess *session.ClientSession, rects []rfb.Rectangle, opts Options) []rfb.EncodedRect {
	jobs := make([]encodeJob, len(rects))
	for i, r := range rects {
		jobs[i] = buildJob(sess, r)
	}

	if !opts.EnableParallelEncoding || len(jobs) <= 1 {
		out := make([]rfb.EncodedRect, len(jobs))
		for i, j := range jobs {
			out[i] = j.run()
		}
		return out
	}
	return runParallel(jobs, opts.EncodingWorkers)
}

type encodeJob struct {
	rect   rfb.Rectangle
	hint   encoding.Hint
	copy   *encoding.CopyRectSource
	pixels []byte
	sess   *session.ClientSession
}

func buildJob(sess *session.ClientSession, r rfb.Rectangle) encodeJob {
	pixels := sess.Snapshot.Region(int(r.X), int(r.Y), int(r.W), int(r.H))
	hint, copySrc := classify(sess, r)
	return encodeJob{rect: r, hint: hint, copy: copySrc, pixels: pixels, sess: sess}
}

func (j encodeJob) run() rfb.EncodedRect {
	sel := j.sess.Selector
	area := j.rect.Area()

	chosen := sel.Choose(j.hint, area, j.copy)
	encoded, err := chosen.Encode(j.pixels, int(j.rect.W), int(j.rect.H), j.sess.PixelFormat)
	if err != nil {
		rawEncoded, _ := sel.Raw.Encode(j.pixels, int(j.rect.W), int(j.rect.H), j.sess.PixelFormat)
		return rfb.EncodedRect{Rect: j.rect, Encoding: rfb.EncodingRaw, Payload: rawEncoded}
	}

	id := chosen.Type()
	if id != rfb.EncodingRaw && id != rfb.EncodingCopyRect {
		rawEncoded, rawErr := sel.Raw.Encode(j.pixels, int(j.rect.W), int(j.rect.H), j.sess.PixelFormat)
		if rawErr == nil {
			id, encoded = encoding.PreferRawIfSmaller(id, encoded, rawEncoded)
		}
	}
	return rfb.EncodedRect{Rect: j.rect, Encoding: id, Payload: encoded}
}

// runParallel dispatches jobs to a bounded worker pool and reassembles
// results in the original order.
func runParallel(jobs []encodeJob, workers int) []rfb.EncodedRect {
	if workers <= 0 {
		workers = 4
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]rfb.EncodedRect, len(jobs))
	indices := make(chan int, len(jobs))
	for i := range jobs {
		indices <- i
	}
	close(indices)

	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for i := range indices {
				results[i] = jobs[i].run()
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return results
}

// classify derives the per-rectangle content hint C3 consumes: scrolling
// if a verified CopyRect source exists in the prior snapshot, solid if a
// single colour covers at least the selector's solid threshold, dynamic
// otherwise. Static content (unchanged from the prior frame) never
// reaches here since C4 only emits rectangles that changed.
func classify(sess *session.ClientSession, r rfb.Rectangle) (encoding.Hint, *encoding.CopyRectSource) {
	prior := sess.PriorSnapshot()
	if prior != nil {
		if src, ok := framebuffer.FindCopySource(prior, sess.Snapshot, r, nil, framebuffer.DefaultSearchRadius); ok {
			return encoding.HintScrolling, &src
		}
	}

	current := sess.Snapshot.Region(int(r.X), int(r.Y), int(r.W), int(r.H))
	if isSolid(current) {
		return encoding.HintSolid, nil
	}
	return encoding.HintDynamic, nil
}

// solidFraction is the 95% single-colour threshold for HintSolid, the
// same value as the encoding package's solidThreshold.
const solidFraction = 0.95

func isSolid(pixels []byte) bool {
	if len(pixels) < 4 {
		return true
	}
	counts := make(map[[4]byte]int)
	var key [4]byte
	total := len(pixels) / 4
	best := 0
	for i := 0; i < len(pixels); i += 4 {
		copy(key[:], pixels[i:i+4])
		counts[key]++
		if counts[key] > best {
			best = counts[key]
		}
	}
	return float64(best)/float64(total) >= solidFraction
}
