//go:build govips && cgo

package editor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsEncoder struct{}

func (govipsEncoder) Encode(img image.Image, format Format, quality int) ([]byte, error) {
	var staged bytes.Buffer
	if err := (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&staged, img); err != nil {
		return nil, fmt.Errorf("stage raster: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load staged raster: %w", err)
	}
	defer ref.Close()

	switch format {
	case FormatJPEG:
		if ref.HasAlpha() {
			if err := ref.Flatten(&vips.Color{R: 0, G: 0, B: 0}); err != nil {
				return nil, fmt.Errorf("flatten alpha: %w", err)
			}
		}
		params := vips.NewJpegExportParams()
		params.Quality = quality
		data, _, err := ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case FormatPNG:
		data, _, err := ref.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		data, _, err := ref.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
