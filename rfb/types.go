package rfb

import "fmt"

// PixelFormat is the 16-byte wire structure describing how pixels are
// packed for a connection (RFC 6143 §7.4). Palette (colour-map) formats
// are out of scope: TrueColour is always 1.
type PixelFormat struct {
	BitsPerPixel uint8
	Depth        uint8
	BigEndian    bool
	TrueColour   bool
	RedMax       uint16
	GreenMax     uint16
	BlueMax      uint16
	RedShift     uint8
	GreenShift   uint8
	BlueShift    uint8
}

// BytesPerPixel returns BitsPerPixel/8.
func (p PixelFormat) BytesPerPixel() int { return int(p.BitsPerPixel) / 8 }

// DefaultPixelFormat is the server's native 32bpp BGRA format: depth 24,
// little-endian, true-colour, 8 bits per channel with standard shifts.
func DefaultPixelFormat() PixelFormat {
	return PixelFormat{
		BitsPerPixel: 32,
		Depth:        24,
		BigEndian:    false,
		TrueColour:   true,
		RedMax:       255,
		GreenMax:     255,
		BlueMax:      255,
		RedShift:     16,
		GreenShift:   8,
		BlueShift:    0,
	}
}

// Equal reports whether two formats describe an identical pixel layout.
func (p PixelFormat) Equal(o PixelFormat) bool {
	return p.BitsPerPixel == o.BitsPerPixel &&
		p.Depth == o.Depth &&
		p.BigEndian == o.BigEndian &&
		p.TrueColour == o.TrueColour &&
		p.RedMax == o.RedMax && p.GreenMax == o.GreenMax && p.BlueMax == o.BlueMax &&
		p.RedShift == o.RedShift && p.GreenShift == o.GreenShift && p.BlueShift == o.BlueShift
}

// Validate checks the invariants spec.md §3 requires of a PixelFormat:
// bpp in {8,16,32}, depth <= bpp, true-colour only, max fields are
// 2^n-1, and the three channels occupy non-overlapping bit ranges.
func (p PixelFormat) Validate() error {
	switch p.BitsPerPixel {
	case 8, 16, 32:
	default:
		return fmt.Errorf("rfb: bits-per-pixel %d not in {8,16,32}", p.BitsPerPixel)
	}
	if p.Depth == 0 || p.Depth > p.BitsPerPixel {
		return fmt.Errorf("rfb: depth %d inconsistent with bpp %d", p.Depth, p.BitsPerPixel)
	}
	if !p.TrueColour {
		return fmt.Errorf("rfb: palette (colour-map) pixel formats are not supported")
	}
	for name, max := range map[string]uint16{"red": p.RedMax, "green": p.GreenMax, "blue": p.BlueMax} {
		if max == 0 || (max&(max+1)) != 0 {
			return fmt.Errorf("rfb: %s-max %d is not 2^n-1", name, max)
		}
	}
	type span struct{ name string; shift uint8; bits uint }
	spans := []span{
		{"red", p.RedShift, bitsFor(p.RedMax)},
		{"green", p.GreenShift, bitsFor(p.GreenMax)},
		{"blue", p.BlueShift, bitsFor(p.BlueMax)},
	}
	occupied := make([]bool, p.BitsPerPixel)
	for _, s := range spans {
		if uint(s.shift)+s.bits > uint(p.BitsPerPixel) {
			return fmt.Errorf("rfb: %s channel (shift %d, %d bits) exceeds bpp %d", s.name, s.shift, s.bits, p.BitsPerPixel)
		}
		for i := uint(0); i < s.bits; i++ {
			idx := uint(s.shift) + i
			if occupied[idx] {
				return fmt.Errorf("rfb: %s channel overlaps another channel at bit %d", s.name, idx)
			}
			occupied[idx] = true
		}
	}
	return nil
}

func bitsFor(max uint16) uint {
	n := uint(0)
	for max > 0 {
		max >>= 1
		n++
	}
	return n
}

// Rectangle describes a region of the framebuffer. Once Clamp has been
// applied, x+w and y+h never exceed the owning framebuffer's bounds; a
// rectangle starting outside them clamps to zero width and height.
type Rectangle struct {
	X, Y, W, H uint16
}

// Clamp returns r adjusted so it fits within a fbWidth x fbHeight
// framebuffer, per spec.md's clamping rule for FramebufferUpdateRequest.
func (r Rectangle) Clamp(fbWidth, fbHeight uint16) Rectangle {
	if r.X >= fbWidth || r.Y >= fbHeight {
		return Rectangle{X: r.X, Y: r.Y, W: 0, H: 0}
	}
	w, h := r.W, r.H
	if uint32(r.X)+uint32(w) > uint32(fbWidth) {
		w = fbWidth - r.X
	}
	if uint32(r.Y)+uint32(h) > uint32(fbHeight) {
		h = fbHeight - r.Y
	}
	return Rectangle{X: r.X, Y: r.Y, W: w, H: h}
}

// Empty reports whether the rectangle covers zero pixels.
func (r Rectangle) Empty() bool { return r.W == 0 || r.H == 0 }

// Area returns w*h as an int to avoid uint16 overflow in callers.
func (r Rectangle) Area() int { return int(r.W) * int(r.H) }

// Overlaps reports whether r and o share any pixel.
func (r Rectangle) Overlaps(o Rectangle) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return int(r.X) < int(o.X)+int(o.W) && int(o.X) < int(r.X)+int(r.W) &&
		int(r.Y) < int(o.Y)+int(o.H) && int(o.Y) < int(r.Y)+int(r.H)
}

// Union returns the smallest rectangle containing both r and o.
func (r Rectangle) Union(o Rectangle) Rectangle {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0 := min16(r.X, o.X)
	y0 := min16(r.Y, o.Y)
	x1 := max16(r.X+r.W, o.X+o.W)
	y1 := max16(r.Y+r.H, o.Y+o.H)
	return Rectangle{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func min16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func max16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// ServerInit is the body of the ServerInit message sent once, right
// after authentication succeeds (RFC 6143 §7.3.2).
type ServerInit struct {
	Width       uint16
	Height      uint16
	PixelFormat PixelFormat
	Name        string
}
