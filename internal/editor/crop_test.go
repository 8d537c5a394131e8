package editor

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestCropRegion(t *testing.T) {
	for _, tc := range []struct {
		name  string
		w, h  int
		ratio Ratio
		want  image.Rectangle
	}{
		{"square landscape", 600, 400, RatioSquare, image.Rect(100, 0, 500, 400)},
		{"square portrait", 400, 600, RatioSquare, image.Rect(0, 100, 400, 500)},
		{"wide from 3:2", 600, 400, RatioWide, image.Rect(0, 31, 600, 369)},
		{"wide from panorama", 1000, 400, RatioWide, image.Rect(144, 0, 855, 400)},
		{"standard from 3:2", 600, 400, RatioStandard, image.Rect(33, 0, 566, 400)},
		{"standard exact", 800, 600, RatioStandard, image.Rect(0, 0, 800, 600)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CropRegion(tc.w, tc.h, tc.ratio)
			if err != nil {
				t.Fatalf("crop region: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCropRegionRejectsUnknownRatio(t *testing.T) {
	if _, err := CropRegion(100, 100, Ratio("3:2")); !errors.Is(err, ErrUnsupportedRatio) {
		t.Fatalf("expected ErrUnsupportedRatio, got %v", err)
	}
	if _, err := ParseRatio("21:9"); !errors.Is(err, ErrUnsupportedRatio) {
		t.Fatalf("expected ErrUnsupportedRatio, got %v", err)
	}
	if r, err := ParseRatio(" 4:3 "); err != nil || r != RatioStandard {
		t.Fatalf("expected 4:3, got %q err=%v", r, err)
	}
}

func TestCropCopiesCenteredPixels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 600, 400))
	marker := color.NRGBA{R: 9, G: 8, B: 7, A: 255}
	src.SetNRGBA(100, 0, marker)

	s := NewSession()
	s.LoadImage(src)

	out, err := s.Crop(RatioSquare)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 400 || b.Dy() != 400 || b.Min != (image.Point{}) {
		t.Fatalf("expected 400x400 at origin, got %v", b)
	}
	if got := out.NRGBAAt(0, 0); got != marker {
		t.Fatalf("expected crop to start at x=100, got %+v", got)
	}
}
