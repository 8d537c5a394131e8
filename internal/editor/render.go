package editor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotatedBounds returns the canvas size holding a w×h raster rotated by deg.
// Quarter turns swap or keep the axes exactly.
func rotatedBounds(w, h, deg int) (int, int) {
	switch wrapDegrees(deg) {
	case 0, 180:
		return w, h
	case 90, 270:
		return h, w
	}

	sin, cos := sinCos(deg)
	bw := math.Abs(float64(w)*cos) + math.Abs(float64(h)*sin)
	bh := math.Abs(float64(w)*sin) + math.Abs(float64(h)*cos)
	return max(1, int(math.Round(bw))), max(1, int(math.Round(bh)))
}

// sinCos snaps quarter turns so axis-aligned transforms stay exact.
func sinCos(deg int) (float64, float64) {
	switch wrapDegrees(deg) {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	rad := float64(deg) * math.Pi / 180
	return math.Sin(rad), math.Cos(rad)
}

// composite draws src onto a transparent canvasW×canvasH raster: origin at
// the canvas center, rotate, then flip, then src drawn centered at the given
// uniform scale. Color filters and blur follow in that order.
func composite(src *image.NRGBA, t TransformState, canvasW, canvasH int, scale float64) *image.NRGBA {
	out := drawGeometry(src, t, canvasW, canvasH, scale)
	out = applyColorFilters(out, t)
	if t.BlurRadius > 0 {
		out = imaging.Blur(out, t.BlurRadius)
	}
	return out
}

func drawGeometry(src *image.NRGBA, t TransformState, canvasW, canvasH int, scale float64) *image.NRGBA {
	if scale == 1 && wrapDegrees(t.RotationDegrees)%90 == 0 {
		w, h := rotatedBounds(src.Bounds().Dx(), src.Bounds().Dy(), t.RotationDegrees)
		if w == canvasW && h == canvasH {
			return quarterTurn(src, t)
		}
	}
	return affine(src, t, canvasW, canvasH, scale)
}

// quarterTurn is the pixel-exact path for right angles at unit scale.
func quarterTurn(src *image.NRGBA, t TransformState) *image.NRGBA {
	var out image.Image = src
	if t.FlipHorizontal {
		out = imaging.FlipH(out)
	}
	if t.FlipVertical {
		out = imaging.FlipV(out)
	}

	// imaging rotates counter-clockwise; canvas rotation is clockwise.
	switch wrapDegrees(t.RotationDegrees) {
	case 90:
		out = imaging.Rotate270(out)
	case 180:
		out = imaging.Rotate180(out)
	case 270:
		out = imaging.Rotate90(out)
	}

	if nrgba, ok := out.(*image.NRGBA); ok && nrgba != src {
		return nrgba
	}
	return imaging.Clone(out)
}

func affine(src *image.NRGBA, t TransformState, canvasW, canvasH int, scale float64) *image.NRGBA {
	dst := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))

	sin, cos := sinCos(t.RotationDegrees)
	fx, fy := 1.0, 1.0
	if t.FlipHorizontal {
		fx = -1
	}
	if t.FlipVertical {
		fy = -1
	}

	sb := src.Bounds()
	halfW := float64(sb.Dx()) * scale / 2
	halfH := float64(sb.Dy()) * scale / 2
	cx := float64(canvasW) / 2
	cy := float64(canvasH) / 2

	s2d := f64.Aff3{
		cos * fx * scale, -sin * fy * scale, -cos*fx*halfW + sin*fy*halfH + cx,
		sin * fx * scale, cos * fy * scale, -sin*fx*halfW - cos*fy*halfH + cy,
	}
	draw.BiLinear.Transform(dst, s2d, src, sb, draw.Src, nil)

	return imaging.Clone(dst)
}

// fitScale is the aspect-preserving factor that fits srcW×srcH inside dstW×dstH.
func fitScale(srcW, srcH, dstW, dstH int) float64 {
	return math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
}
