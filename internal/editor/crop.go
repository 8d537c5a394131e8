package editor

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

type Ratio string

const (
	RatioSquare   Ratio = "1:1"
	RatioWide     Ratio = "16:9"
	RatioStandard Ratio = "4:3"
)

func ParseRatio(in string) (Ratio, error) {
	r := Ratio(strings.TrimSpace(in))
	if _, _, ok := r.terms(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRatio, in)
	}
	return r, nil
}

func (r Ratio) terms() (int, int, bool) {
	switch r {
	case RatioSquare:
		return 1, 1, true
	case RatioWide:
		return 16, 9, true
	case RatioStandard:
		return 4, 3, true
	default:
		return 0, 0, false
	}
}

// CropRegion returns the centered window of a w×h raster matching r. The
// proportionally larger axis shrinks; the shrunk length is rounded and the
// offset truncated.
func CropRegion(w, h int, r Ratio) (image.Rectangle, error) {
	rw, rh, ok := r.terms()
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: %q", ErrUnsupportedRatio, string(r))
	}
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("crop %dx%d: %w", w, h, ErrNoImage)
	}

	cropW, cropH := w, h
	if w*rh > h*rw {
		cropW = max(1, int(math.Round(float64(h)*float64(rw)/float64(rh))))
	} else {
		cropH = max(1, int(math.Round(float64(w)*float64(rh)/float64(rw))))
	}

	x := (w - cropW) / 2
	y := (h - cropH) / 2
	return image.Rect(x, y, x+cropW, y+cropH), nil
}

// Crop returns a new raster holding the region of img matching r.
func Crop(img image.Image, r Ratio) (*image.NRGBA, error) {
	b := img.Bounds()
	region, err := CropRegion(b.Dx(), b.Dy(), r)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, region.Add(b.Min)), nil
}
