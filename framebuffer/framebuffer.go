// Package framebuffer holds the per-connection pixel snapshot
// (component C5): the last-sent BGRA buffer used both as the change
// detector's comparison baseline and as the CopyRect encoder's source
// search space.
package framebuffer

// Snapshot is a contiguous BGRA pixel buffer (width*height*4 bytes) plus
// its dimensions, per spec.md §3's "Framebuffer snapshot" data model
// entry. It is owned by a single connection; concurrent access must be
// serialized by the caller (the scheduler never captures and diffs
// concurrently for one session).
type Snapshot struct {
	Width, Height int
	Pixels        []byte
}

// New allocates a zeroed snapshot of the given dimensions.
func New(width, height int) *Snapshot {
	return &Snapshot{Width: width, Height: height, Pixels: make([]byte, width*height*4)}
}

// Update replaces the snapshot's pixels with a fresh capture. pixels
// must already be width*height*4 bytes of BGRA; Update copies it so the
// caller's buffer can be reused for the next capture.
func (s *Snapshot) Update(pixels []byte) {
	if len(pixels) != len(s.Pixels) {
		s.Pixels = make([]byte, len(pixels))
	}
	copy(s.Pixels, pixels)
}

// Region extracts a contiguous copy of the BGRA bytes covering
// (x, y, w, h), clipped to the snapshot's bounds. It returns nil if the
// requested region does not overlap the snapshot at all.
func (s *Snapshot) Region(x, y, w, h int) []byte {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return nil
	}
	if x+w > s.Width {
		w = s.Width - x
	}
	if y+h > s.Height {
		h = s.Height - y
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	stride := s.Width * 4
	out := make([]byte, 0, w*h*4)
	for row := 0; row < h; row++ {
		off := (y+row)*stride + x*4
		out = append(out, s.Pixels[off:off+w*4]...)
	}
	return out
}
