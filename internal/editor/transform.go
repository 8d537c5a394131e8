package editor

import (
	"fmt"
	"math"
	"strings"
)

const (
	MinPercent = 0
	MaxPercent = 200
)

// TransformState holds the geometric and color adjustments applied on render.
// Percent fields are multipliers where 100 is a no-op.
type TransformState struct {
	RotationDegrees int     `json:"rotation" yaml:"rotation"`
	FlipHorizontal  bool    `json:"flip_horizontal" yaml:"flip_horizontal"`
	FlipVertical    bool    `json:"flip_vertical" yaml:"flip_vertical"`
	Brightness      float64 `json:"brightness" yaml:"brightness"`
	Contrast        float64 `json:"contrast" yaml:"contrast"`
	Saturation      float64 `json:"saturation" yaml:"saturation"`
	HueDegrees      float64 `json:"hue" yaml:"hue"`
	BlurRadius      float64 `json:"blur" yaml:"blur"`
}

func IdentityTransform() TransformState {
	return TransformState{
		Brightness: 100,
		Contrast:   100,
		Saturation: 100,
	}
}

func (t TransformState) IsIdentity() bool {
	return t == IdentityTransform()
}

// TransformPatch is a partial TransformState; nil fields are left untouched.
type TransformPatch struct {
	RotationDegrees *int     `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	FlipHorizontal  *bool    `json:"flip_horizontal,omitempty" yaml:"flip_horizontal,omitempty"`
	FlipVertical    *bool    `json:"flip_vertical,omitempty" yaml:"flip_vertical,omitempty"`
	Brightness      *float64 `json:"brightness,omitempty" yaml:"brightness,omitempty"`
	Contrast        *float64 `json:"contrast,omitempty" yaml:"contrast,omitempty"`
	Saturation      *float64 `json:"saturation,omitempty" yaml:"saturation,omitempty"`
	HueDegrees      *float64 `json:"hue,omitempty" yaml:"hue,omitempty"`
	BlurRadius      *float64 `json:"blur,omitempty" yaml:"blur,omitempty"`
}

func (p TransformPatch) IsEmpty() bool {
	return p == TransformPatch{}
}

// Apply merges the patch into t, clamping or wrapping every provided field.
func (p TransformPatch) Apply(t TransformState) TransformState {
	if p.RotationDegrees != nil {
		t.RotationDegrees = wrapDegrees(*p.RotationDegrees)
	}
	if p.FlipHorizontal != nil {
		t.FlipHorizontal = *p.FlipHorizontal
	}
	if p.FlipVertical != nil {
		t.FlipVertical = *p.FlipVertical
	}
	if p.Brightness != nil {
		t.Brightness = clampFloat(*p.Brightness, MinPercent, MaxPercent)
	}
	if p.Contrast != nil {
		t.Contrast = clampFloat(*p.Contrast, MinPercent, MaxPercent)
	}
	if p.Saturation != nil {
		t.Saturation = clampFloat(*p.Saturation, MinPercent, MaxPercent)
	}
	if p.HueDegrees != nil {
		t.HueDegrees = wrapDegreesFloat(*p.HueDegrees)
	}
	if p.BlurRadius != nil {
		t.BlurRadius = max(0, *p.BlurRadius)
	}
	return t
}

// Axis selects which flip Flip toggles.
type Axis int

const (
	AxisHorizontal Axis = iota
	AxisVertical
)

// ParseAxis accepts "horizontal"/"h" and "vertical"/"v".
func ParseAxis(in string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "horizontal", "h":
		return AxisHorizontal, nil
	case "vertical", "v":
		return AxisVertical, nil
	default:
		return 0, fmt.Errorf("unknown flip axis %q", in)
	}
}

func wrapDegrees(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

func wrapDegreesFloat(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
