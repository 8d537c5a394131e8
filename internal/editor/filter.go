package editor

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// rgb holds one pixel's color channels in [0,1], non-premultiplied.
type rgb [3]float64

type colorOp func(c *rgb)

type colorMatrix [3][3]float64

func (m colorMatrix) apply(c *rgb) {
	in := *c
	for i := 0; i < 3; i++ {
		c[i] = clamp01(m[i][0]*in[0] + m[i][1]*in[1] + m[i][2]*in[2])
	}
}

func saturateMatrix(s float64) colorMatrix {
	return colorMatrix{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}
}

func hueRotateMatrix(deg float64) colorMatrix {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return colorMatrix{
		{0.213 + cos*0.787 - sin*0.213, 0.715 - cos*0.715 - sin*0.715, 0.072 - cos*0.072 + sin*0.928},
		{0.213 - cos*0.213 + sin*0.143, 0.715 + cos*0.285 + sin*0.140, 0.072 - cos*0.072 - sin*0.283},
		{0.213 - cos*0.213 - sin*0.787, 0.715 - cos*0.715 + sin*0.715, 0.072 + cos*0.928 + sin*0.072},
	}
}

func linear(slope, intercept float64) colorOp {
	return func(c *rgb) {
		for i := range c {
			c[i] = clamp01(c[i]*slope + intercept)
		}
	}
}

// colorOps builds the brightness, contrast, saturate, hue-rotate chain.
// Filters at their no-op value are left out so identity renders are exact.
func colorOps(t TransformState) []colorOp {
	var ops []colorOp
	if t.Brightness != 100 {
		ops = append(ops, linear(t.Brightness/100, 0))
	}
	if t.Contrast != 100 {
		k := t.Contrast / 100
		ops = append(ops, linear(k, 0.5-0.5*k))
	}
	if t.Saturation != 100 {
		ops = append(ops, saturateMatrix(t.Saturation/100).apply)
	}
	if t.HueDegrees != 0 {
		ops = append(ops, hueRotateMatrix(t.HueDegrees).apply)
	}
	return ops
}

func applyColorFilters(img *image.NRGBA, t TransformState) *image.NRGBA {
	ops := colorOps(t)
	if len(ops) == 0 {
		return img
	}

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := rgb{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
		for _, op := range ops {
			op(&v)
		}
		return color.NRGBA{R: to8(v[0]), G: to8(v[1]), B: to8(v[2]), A: c.A}
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
