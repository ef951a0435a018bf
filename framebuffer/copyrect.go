package framebuffer

import (
	"bytes"

	"github.com/brightloom/vncd/encoding"
	"github.com/brightloom/vncd/rfb"
)

// DefaultSearchRadius bounds how far FindCopySource looks for a
// scrolled source region, per SPEC_FULL.md §9's resolution of the
// CopyRect source-search open question.
const DefaultSearchRadius = 128

// Hint is an additional candidate source position the caller already
// suspects (e.g. the rectangle's position in the previous update), tried
// before the cardinal-direction sweep. A caller with no such suspicion
// passes a nil Hint.
type Hint struct {
	X, Y int
}

// FindCopySource looks for a byte-exact match of rect's current pixels
// somewhere in the prior snapshot, trying hint first (if given) and then
// the four cardinal-direction scroll offsets from 1 up to radius pixels.
// It returns a CopyRectSource and true only on a verified exact match,
// never a heuristic guess, satisfying spec.md Invariant 5 by
// construction. current must already contain this update's pixels for
// rect; prior is the last snapshot sent to the client.
func FindCopySource(prior, current *Snapshot, rect rfb.Rectangle, hint *Hint, radius int) (encoding.CopyRectSource, bool) {
	w, h := int(rect.W), int(rect.H)
	target := current.Region(int(rect.X), int(rect.Y), w, h)
	if target == nil || len(target) != w*h*4 {
		return encoding.CopyRectSource{}, false
	}

	tryPos := func(x, y int) (encoding.CopyRectSource, bool) {
		if x < 0 || y < 0 || x+w > prior.Width || y+h > prior.Height {
			return encoding.CopyRectSource{}, false
		}
		candidate := prior.Region(x, y, w, h)
		if candidate != nil && bytes.Equal(candidate, target) {
			return encoding.CopyRectSource{SrcX: uint16(x), SrcY: uint16(y)}, true
		}
		return encoding.CopyRectSource{}, false
	}

	if hint != nil {
		if src, ok := tryPos(hint.X, hint.Y); ok {
			return src, true
		}
	}

	x0, y0 := int(rect.X), int(rect.Y)
	for d := 1; d <= radius; d++ {
		for _, off := range [4][2]int{{0, -d}, {0, d}, {-d, 0}, {d, 0}} {
			if src, ok := tryPos(x0+off[0], y0+off[1]); ok {
				return src, true
			}
		}
	}
	return encoding.CopyRectSource{}, false
}
