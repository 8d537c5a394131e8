package editor

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// SourceImage is a decoded raster anchored at the origin. It is never
// mutated after Decode returns.
type SourceImage struct {
	pixels *image.NRGBA
	format string
}

// Decode decodes data under DefaultLimits.
func Decode(data []byte) (*SourceImage, error) {
	return DecodeLimited(data, DefaultLimits())
}

// DecodeLimited reads the header first and refuses images whose declared
// size breaks limits before any pixel buffer is allocated.
func DecodeLimited(data []byte, limits Limits) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty input")}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := limits.CheckSize(cfg.Width, cfg.Height); err != nil {
		return nil, &DecodeError{Err: err}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Err: errors.New("image has no pixels")}
	}

	return &SourceImage{
		pixels: imaging.Clone(img),
		format: format,
	}, nil
}

// NewSourceImage wraps an existing raster, copying it to origin-anchored NRGBA.
func NewSourceImage(img image.Image) *SourceImage {
	return &SourceImage{pixels: imaging.Clone(img), format: "raw"}
}

func (s *SourceImage) Width() int {
	return s.pixels.Bounds().Dx()
}

func (s *SourceImage) Height() int {
	return s.pixels.Bounds().Dy()
}

// Format is the codec name the input was decoded with, e.g. "jpeg" or "webp".
func (s *SourceImage) Format() string {
	return s.format
}

// Pixels returns a copy of the raster.
func (s *SourceImage) Pixels() *image.NRGBA {
	return imaging.Clone(s.pixels)
}
