package encoding

import (
	"testing"

	"github.com/brightloom/vncd/rfb"
)

func allEncodings() []int32 {
	return []int32{rfb.EncodingRaw, rfb.EncodingCopyRect, rfb.EncodingRRE, rfb.EncodingHextile, rfb.EncodingZRLE}
}

func TestSelectorScrollingPrefersCopyRect(t *testing.T) {
	s := &Selector{ClientEncodings: allEncodings(), Profile: ProfileLAN, ZRLE: NewZRLEEncoder()}
	enc := s.Choose(HintScrolling, 1000, &CopyRectSource{SrcX: 4, SrcY: 8})
	if enc.Type() != rfb.EncodingCopyRect {
		t.Fatalf("Type() = %d, want CopyRect", enc.Type())
	}
}

func TestSelectorScrollingWithoutSourceFallsThrough(t *testing.T) {
	s := &Selector{ClientEncodings: allEncodings(), Profile: ProfileWAN, ZRLE: NewZRLEEncoder()}
	enc := s.Choose(HintScrolling, 1000, nil)
	if enc.Type() == rfb.EncodingCopyRect {
		t.Fatal("CopyRect must not be chosen without a verified source match")
	}
}

func TestSelectorSolidPrefersRRE(t *testing.T) {
	s := &Selector{ClientEncodings: allEncodings(), Profile: ProfileWAN, ZRLE: NewZRLEEncoder()}
	enc := s.Choose(HintSolid, 1000, nil)
	if enc.Type() != rfb.EncodingRRE {
		t.Fatalf("Type() = %d, want RRE", enc.Type())
	}
}

func TestSelectorWANPrefersZRLE(t *testing.T) {
	s := &Selector{ClientEncodings: allEncodings(), Profile: ProfileWAN, ZRLE: NewZRLEEncoder()}
	enc := s.Choose(HintDynamic, 1000, nil)
	if enc.Type() != rfb.EncodingZRLE {
		t.Fatalf("Type() = %d, want ZRLE", enc.Type())
	}
}

func TestSelectorWANWithoutZRLEFallsBackToHextile(t *testing.T) {
	s := &Selector{ClientEncodings: []int32{rfb.EncodingRaw, rfb.EncodingHextile}, Profile: ProfileWAN}
	enc := s.Choose(HintDynamic, 1000, nil)
	if enc.Type() != rfb.EncodingHextile {
		t.Fatalf("Type() = %d, want Hextile", enc.Type())
	}
}

func TestSelectorFallbackChainEndsAtRaw(t *testing.T) {
	s := &Selector{ClientEncodings: []int32{rfb.EncodingRaw}, Profile: ProfileWAN}
	enc := s.Choose(HintDynamic, 1000, nil)
	if enc.Type() != rfb.EncodingRaw {
		t.Fatalf("Type() = %d, want Raw", enc.Type())
	}
}

func lanSelector() *Selector {
	return &Selector{
		ClientEncodings:       append(allEncodings(), rfb.EncodingZlib),
		Profile:               ProfileLAN,
		ZRLE:                  NewZRLEEncoder(),
		Zlib:                  NewZlibEncoder(),
		EnableZlib:            true,
		LANRawAreaThreshold:   1000,
		LANRawMaxPixels:       2000,
		LANZlibAreaThreshold:  500,
		LANZlibMinPixels:      100,
		LANZlibWarmupRequests: 2,
	}
}

func TestSelectorLANBelowRawThresholdChoosesRaw(t *testing.T) {
	s := lanSelector()
	enc := s.Choose(HintDynamic, 200, nil)
	if enc.Type() != rfb.EncodingRaw {
		t.Fatalf("Type() = %d, want Raw for a small LAN rectangle", enc.Type())
	}
}

func TestSelectorLANAboveRawThresholdBeforeWarmupChoosesZRLE(t *testing.T) {
	s := lanSelector()
	enc := s.Choose(HintDynamic, 1500, nil)
	if enc.Type() != rfb.EncodingZRLE {
		t.Fatalf("Type() = %d, want ZRLE while the client is still in Zlib warm-up", enc.Type())
	}
}

func TestSelectorLANAfterWarmupChoosesZlib(t *testing.T) {
	s := lanSelector()
	s.NoteRequest()
	s.NoteRequest()
	enc := s.Choose(HintDynamic, 1500, nil)
	if enc.Type() != rfb.EncodingZlib {
		t.Fatalf("Type() = %d, want Zlib once past warm-up", enc.Type())
	}
}

func TestSelectorLANWithoutZlibEnabledFallsBackToZRLE(t *testing.T) {
	s := lanSelector()
	s.EnableZlib = false
	s.NoteRequest()
	s.NoteRequest()
	enc := s.Choose(HintDynamic, 1500, nil)
	if enc.Type() != rfb.EncodingZRLE {
		t.Fatalf("Type() = %d, want ZRLE when Zlib is disabled even past warm-up", enc.Type())
	}
}

func TestSelectorLocalhostChoosesRawRegardlessOfArea(t *testing.T) {
	s := &Selector{ClientEncodings: allEncodings(), Profile: ProfileLocalhost, ZRLE: NewZRLEEncoder()}
	enc := s.Choose(HintDynamic, 1000*1000, nil)
	if enc.Type() != rfb.EncodingRaw {
		t.Fatalf("Type() = %d, want Raw unconditionally on localhost, even for large rectangles", enc.Type())
	}
}

func TestPreferRawIfSmaller(t *testing.T) {
	small := []byte{1, 2, 3}
	large := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	id, chosen := PreferRawIfSmaller(rfb.EncodingRRE, large, small)
	if id != rfb.EncodingRaw {
		t.Fatalf("id = %d, want Raw when the encoder output is larger", id)
	}
	if len(chosen) != len(small) {
		t.Fatal("expected the smaller Raw bytes to be returned")
	}

	id2, chosen2 := PreferRawIfSmaller(rfb.EncodingRRE, small, large)
	if id2 != rfb.EncodingRRE {
		t.Fatalf("id = %d, want RRE when it is smaller than Raw", id2)
	}
	if len(chosen2) != len(small) {
		t.Fatal("expected the RRE bytes to be returned")
	}
}
