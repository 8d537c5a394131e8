package editor

import "image"

const DefaultBackgroundThreshold = 240

// RemoveBackground clears the alpha of every pixel whose red, green and blue
// are all strictly above threshold. It is a global color cutout with no edge
// feathering. img is modified in place and returned; callers hand over
// ownership.
func RemoveBackground(img *image.NRGBA, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		row := img.Pix[start : start+4*b.Dx()]
		for i := 0; i < len(row); i += 4 {
			if row[i] > threshold && row[i+1] > threshold && row[i+2] > threshold {
				row[i+3] = 0
			}
		}
	}
	return img
}
