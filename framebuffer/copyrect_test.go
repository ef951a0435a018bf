package framebuffer

import (
	"testing"

	"github.com/brightloom/vncd/rfb"
)

func fillGradient(s *Snapshot) {
	pixels := make([]byte, s.Width*s.Height*4)
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			i := (y*s.Width + x) * 4
			pixels[i+0] = byte(x)
			pixels[i+1] = byte(y)
			pixels[i+2] = byte(x + y)
			pixels[i+3] = 255
		}
	}
	s.Update(pixels)
}

func TestFindCopySourceDetectsVerticalScroll(t *testing.T) {
	w, h := 64, 64
	prior := New(w, h)
	fillGradient(prior)

	// current is prior scrolled down by 8 pixels: current row y is
	// prior row y-8 for y >= 8.
	current := New(w, h)
	cur := make([]byte, w*h*4)
	for y := 8; y < h; y++ {
		srcOff := (y-8) * w * 4
		dstOff := y * w * 4
		copy(cur[dstOff:dstOff+w*4], prior.Pixels[srcOff:srcOff+w*4])
	}
	current.Update(cur)

	rect := rfb.Rectangle{X: 0, Y: 16, W: uint16(w), H: 32}
	src, ok := FindCopySource(prior, current, rect, nil, DefaultSearchRadius)
	if !ok {
		t.Fatal("expected a CopyRect source match for a vertical scroll")
	}
	if src.SrcY != 8 || src.SrcX != 0 {
		t.Fatalf("source = (%d,%d), want (0,8)", src.SrcX, src.SrcY)
	}
}

func TestFindCopySourceNoMatchForUnrelatedContent(t *testing.T) {
	w, h := 32, 32
	prior := New(w, h)
	fillGradient(prior)

	current := New(w, h)
	random := make([]byte, w*h*4)
	for i := range random {
		random[i] = byte(251 - i%251)
	}
	current.Update(random)

	rect := rfb.Rectangle{X: 0, Y: 0, W: 16, H: 16}
	_, ok := FindCopySource(prior, current, rect, nil, DefaultSearchRadius)
	if ok {
		t.Fatal("expected no CopyRect match for unrelated content")
	}
}

func TestFindCopySourceHintTakesPriority(t *testing.T) {
	w, h := 32, 32
	prior := New(w, h)
	fillGradient(prior)
	current := New(w, h)
	current.Update(prior.Pixels) // unchanged frame: rect matches its own position too.

	rect := rfb.Rectangle{X: 4, Y: 4, W: 8, H: 8}
	hint := &Hint{X: 4, Y: 4}
	src, ok := FindCopySource(prior, current, rect, hint, DefaultSearchRadius)
	if !ok || src.SrcX != 4 || src.SrcY != 4 {
		t.Fatalf("expected the hinted position to match directly, got (%d,%d) ok=%v", src.SrcX, src.SrcY, ok)
	}
}
