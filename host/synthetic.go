package host

import (
	"context"
	"math"

	"github.com/brightloom/vncd/rfbserr"
)

// Pattern selects which procedural animation SyntheticScreen renders.
type Pattern string

const (
	PatternColorWheel Pattern = "wheel"
	PatternPlasma      Pattern = "plasma"
	PatternGradient    Pattern = "gradient"
)

// SyntheticScreen is a ScreenSource that renders a procedural animation
// instead of capturing a real display, so the engine (and its test
// suite, and anyone trying vncd before wiring a platform-specific
// capture backend) always has something to serve. Each Capture() call
// renders from the frame counter and then advances it, so two calls
// return successive animation frames; the pixels depend only on the
// counter value.
type SyntheticScreen struct {
	Width, Height int
	Pattern       Pattern

	frame int
}

// NewSyntheticScreen builds a SyntheticScreen of the given size.
func NewSyntheticScreen(width, height int, pattern Pattern) *SyntheticScreen {
	if pattern == "" {
		pattern = PatternColorWheel
	}
	return &SyntheticScreen{Width: width, Height: height, Pattern: pattern}
}

// Capture renders the next animation frame. Each call advances the
// internal frame counter; region, if non-nil, crops the result.
func (s *SyntheticScreen) Capture(ctx context.Context, region *Region) (CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return CaptureResult{}, rfbserr.New("host.SyntheticScreen.Capture", rfbserr.CaptureFatal, "context done", err)
	}

	full := s.render(s.frame)
	s.frame++

	if region == nil {
		return CaptureResult{Pixels: full, Width: s.Width, Height: s.Height}, nil
	}
	return CaptureResult{Pixels: crop(full, s.Width, s.Height, *region), Width: region.W, Height: region.H}, nil
}

func (s *SyntheticScreen) render(frameNumber int) []byte {
	switch s.Pattern {
	case PatternPlasma:
		return renderPlasma(frameNumber, s.Width, s.Height)
	case PatternGradient:
		return renderGradientSweep(frameNumber, s.Width, s.Height)
	default:
		return renderColorWheel(frameNumber, s.Width, s.Height)
	}
}

func crop(full []byte, fullW, fullH int, r Region) []byte {
	out := make([]byte, r.W*r.H*4)
	for row := 0; row < r.H; row++ {
		srcY := r.Y + row
		if srcY < 0 || srcY >= fullH {
			continue
		}
		for col := 0; col < r.W; col++ {
			srcX := r.X + col
			if srcX < 0 || srcX >= fullW {
				continue
			}
			si := (srcY*fullW + srcX) * 4
			di := (row*r.W + col) * 4
			copy(out[di:di+4], full[si:si+4])
		}
	}
	return out
}

// renderColorWheel draws a rotating hue wheel, BGRA-packed.
func renderColorWheel(frameNumber, width, height int) []byte {
	pixels := make([]byte, width*height*4)
	centerX, centerY := float64(width)/2, float64(height)/2
	maxRadius := math.Min(centerX, centerY) * 0.8
	rotation := float64(frameNumber) * 2 * math.Pi / 120

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			dx := float64(col) - centerX
			dy := float64(row) - centerY
			distance := math.Sqrt(dx*dx + dy*dy)
			i := (row*width + col) * 4
			if distance > maxRadius {
				continue
			}
			angle := math.Atan2(dy, dx) + rotation
			hue := angle * 180 / math.Pi
			if hue < 0 {
				hue += 360
			}
			saturation := distance / maxRadius
			r, g, b := hsvToRGB(hue, saturation, 1.0)
			pixels[i] = uint8(b * 255)
			pixels[i+1] = uint8(g * 255)
			pixels[i+2] = uint8(r * 255)
			pixels[i+3] = 255
		}
	}
	return pixels
}

func renderPlasma(frameNumber, width, height int) []byte {
	pixels := make([]byte, width*height*4)
	t := float64(frameNumber) * 0.05

	for row := 0; row < height; row++ {
		y := float64(row) / float64(height)
		for col := 0; col < width; col++ {
			x := float64(col) / float64(width)
			v1 := math.Sin(x*10 + t)
			v2 := math.Sin(y*10 + t*1.2)
			v3 := math.Sin((x+y)*10 + t*0.8)
			v4 := math.Sin(math.Sqrt(x*x+y*y)*10 + t*1.5)
			plasma := (v1 + v2 + v3 + v4) / 4
			hue := (plasma + 1) * 180
			r, g, b := hsvToRGB(hue, 0.8, 0.9)
			i := (row*width + col) * 4
			pixels[i] = uint8(b * 255)
			pixels[i+1] = uint8(g * 255)
			pixels[i+2] = uint8(r * 255)
			pixels[i+3] = 255
		}
	}
	return pixels
}

func renderGradientSweep(frameNumber, width, height int) []byte {
	pixels := make([]byte, width*height*4)
	offset := float64(frameNumber%256) / 256
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			frac := math.Mod(float64(col)/float64(width)+offset, 1.0)
			r, g, b := hsvToRGB(frac*360, 0.6, 1.0)
			i := (row*width + col) * 4
			pixels[i] = uint8(b * 255)
			pixels[i+1] = uint8(g * 255)
			pixels[i+2] = uint8(r * 255)
			pixels[i+3] = 255
		}
	}
	return pixels
}

// hsvToRGB converts hue (degrees, any range, wrapped), saturation and
// value (both 0-1) into RGB components in 0-1.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}
