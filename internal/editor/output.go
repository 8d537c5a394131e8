package editor

import (
	"fmt"
	"strings"
	"time"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

const (
	DefaultQuality = 90
	MinQuality     = 1
	MaxQuality     = 100
)

const (
	PrefixEditor           = "photoresize"
	PrefixResized          = "resized"
	PrefixCropped          = "cropped"
	PrefixBackgroundRemove = "no-background"
	PrefixPreview          = "preview"
)

// ParseFormat normalizes a user supplied format name. Empty input yields jpeg.
func ParseFormat(in string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, in)
	}
}

func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// OutputSpec describes the export canvas. Width and Height follow the source
// aspect ratio when LockAspect is set and one axis is changed.
type OutputSpec struct {
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Format     Format `json:"format" yaml:"format"`
	Quality    int    `json:"quality" yaml:"quality"`
	LockAspect bool   `json:"lock_aspect" yaml:"lock_aspect"`
}

func DefaultOutputSpec(width, height int) OutputSpec {
	return OutputSpec{
		Width:      width,
		Height:     height,
		Format:     FormatJPEG,
		Quality:    DefaultQuality,
		LockAspect: true,
	}
}

func ClampQuality(q int) int {
	return clampInt(q, MinQuality, MaxQuality)
}

// EncodedOutput is one export result. It is produced per call and never cached.
type EncodedOutput struct {
	Data        []byte
	Filename    string
	ContentType string
	Format      Format
	Width       int
	Height      int
}

// SuggestedFilename builds "<prefix>-<unix-ms>.<ext>".
func SuggestedFilename(prefix string, format Format, at time.Time) string {
	return fmt.Sprintf("%s-%d.%s", prefix, at.UnixMilli(), format.Extension())
}
