package editor

import (
	"image"
	"image/color"
	"testing"
)

func TestRemoveBackground(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 255})
	img.SetNRGBA(1, 0, color.NRGBA{10, 10, 10, 255})
	img.SetNRGBA(2, 0, color.NRGBA{240, 250, 250, 255})

	out := RemoveBackground(img, DefaultBackgroundThreshold)
	if out != img {
		t.Fatal("expected in-place mutation")
	}
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Fatalf("white pixel should be transparent, alpha=%d", a)
	}
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{10, 10, 10, 255}) {
		t.Fatalf("dark pixel must be untouched, got %+v", got)
	}
	// 240 is not strictly above the threshold.
	if a := out.NRGBAAt(2, 0).A; a != 255 {
		t.Fatalf("boundary pixel should stay opaque, alpha=%d", a)
	}
}

func TestSessionRemoveBackgroundLeavesSource(t *testing.T) {
	s := NewSession()
	s.LoadImage(solid(2, 2, color.NRGBA{250, 250, 250, 255}))

	out, err := s.RemoveBackground(DefaultBackgroundThreshold)
	if err != nil {
		t.Fatalf("remove background: %v", err)
	}
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Fatalf("expected transparent pixel, alpha=%d", a)
	}
	if a := s.Source().Pixels().NRGBAAt(0, 0).A; a != 255 {
		t.Fatalf("source must stay intact, alpha=%d", a)
	}
}
