package editor

import "fmt"

const (
	DefaultMaxDimension  = 16384
	DefaultMaxPixels     = 64_000_000
	DefaultMaxBlurRadius = 100
)

// Limits bound every raster a session allocates: decoded sources, output
// canvases and the blur kernel. Zero fields take the package defaults.
type Limits struct {
	MaxDimension  int
	MaxPixels     int64
	MaxBlurRadius float64
}

func DefaultLimits() Limits {
	return Limits{
		MaxDimension:  DefaultMaxDimension,
		MaxPixels:     DefaultMaxPixels,
		MaxBlurRadius: DefaultMaxBlurRadius,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxDimension <= 0 {
		l.MaxDimension = def.MaxDimension
	}
	if l.MaxPixels <= 0 {
		l.MaxPixels = def.MaxPixels
	}
	if l.MaxBlurRadius <= 0 {
		l.MaxBlurRadius = def.MaxBlurRadius
	}
	return l
}

// CheckSize returns an error wrapping ErrTooLarge when a w×h raster would
// exceed either bound.
func (l Limits) CheckSize(w, h int) error {
	l = l.withDefaults()
	if w > l.MaxDimension || h > l.MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d px per side", ErrTooLarge, w, h, l.MaxDimension)
	}
	if int64(w)*int64(h) > l.MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, w, h, l.MaxPixels)
	}
	return nil
}

func WithLimits(l Limits) Option {
	return func(s *Session) {
		s.limits = l.withDefaults()
	}
}
