package editor

import (
	"context"
	"errors"
	"image"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateEdited
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateEdited:
		return "edited"
	default:
		return "empty"
	}
}

// Session is one editing session: a single source image plus the transform
// and output settings that apply to it. A Session is not safe for concurrent
// use; callers sharing one must synchronize externally.
type Session struct {
	source    *SourceImage
	transform TransformState
	output    OutputSpec
	encoder   Encoder
	limits    Limits
	now       func() time.Time
}

type Option func(*Session)

func WithEncoder(enc Encoder) Option {
	return func(s *Session) {
		if enc != nil {
			s.encoder = enc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		transform: IdentityTransform(),
		output:    DefaultOutputSpec(0, 0),
		encoder:   DefaultEncoder(),
		limits:    DefaultLimits(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	switch {
	case s.source == nil:
		return StateEmpty
	case s.transform.IsIdentity():
		return StateLoaded
	default:
		return StateEdited
	}
}

func (s *Session) Source() *SourceImage {
	return s.source
}

func (s *Session) Transform() TransformState {
	return s.transform
}

func (s *Session) Output() OutputSpec {
	return s.output
}

func (s *Session) Limits() Limits {
	return s.limits
}

// Load decodes data and replaces the current image. The transform returns to
// identity and the output size to the new image's native size; format,
// quality and aspect lock carry over.
func (s *Session) Load(data []byte) (*SourceImage, error) {
	src, err := DecodeLimited(data, s.limits)
	if err != nil {
		return nil, err
	}
	s.replace(src)
	return src, nil
}

// LoadImage installs an already decoded raster.
func (s *Session) LoadImage(img image.Image) *SourceImage {
	src := NewSourceImage(img)
	s.replace(src)
	return src
}

func (s *Session) replace(src *SourceImage) {
	s.source = src
	s.transform = IdentityTransform()
	s.output.Width = src.Width()
	s.output.Height = src.Height()
}

// Upload loads data only when contentType names an image. Other content
// types and empty payloads are ignored without error; the bool reports
// whether a new image was loaded.
func (s *Session) Upload(contentType string, data []byte) (bool, error) {
	if len(data) == 0 || !IsImageContentType(contentType) {
		return false, nil
	}
	if _, err := s.Load(data); err != nil {
		return false, err
	}
	return true, nil
}

func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// SetTransform merges patch; a blur radius above the session's
// Limits.MaxBlurRadius is lowered to it.
func (s *Session) SetTransform(patch TransformPatch) {
	s.transform = patch.Apply(s.transform)
	s.transform.BlurRadius = min(s.transform.BlurRadius, s.limits.MaxBlurRadius)
}

func (s *Session) Rotate(delta int) {
	s.transform.RotationDegrees = wrapDegrees(s.transform.RotationDegrees + delta)
}

func (s *Session) Flip(axis Axis) {
	switch axis {
	case AxisHorizontal:
		s.transform.FlipHorizontal = !s.transform.FlipHorizontal
	case AxisVertical:
		s.transform.FlipVertical = !s.transform.FlipVertical
	}
}

// Reset restores the identity transform and the native output size.
func (s *Session) Reset() {
	s.transform = IdentityTransform()
	if s.source != nil {
		s.output.Width = s.source.Width()
		s.output.Height = s.source.Height()
	}
}

func (s *Session) SetFormat(f Format) {
	s.output.Format = f
}

func (s *Session) SetQuality(q int) {
	s.output.Quality = ClampQuality(q)
}

func (s *Session) SetAspectLock(locked bool) {
	s.output.LockAspect = locked
}

// SetWidth sets the export width; with the aspect lock on, the height follows
// the source ratio.
func (s *Session) SetWidth(w int) {
	s.output.Width = max(0, w)
	if s.output.LockAspect && s.source != nil {
		aspect := float64(s.source.Width()) / float64(s.source.Height())
		s.output.Height = int(math.Round(float64(s.output.Width) / aspect))
	}
}

// SetHeight is SetWidth for the vertical axis.
func (s *Session) SetHeight(h int) {
	s.output.Height = max(0, h)
	if s.output.LockAspect && s.source != nil {
		aspect := float64(s.source.Width()) / float64(s.source.Height())
		s.output.Width = int(math.Round(float64(s.output.Height) * aspect))
	}
}

// SetOutput replaces the whole output spec. Quality is clamped and an empty
// format defaults to jpeg. A canvas over the session limits is rejected with
// an EncodeError wrapping ErrTooLarge and the previous spec stays.
func (s *Session) SetOutput(spec OutputSpec) error {
	if spec.Format == "" {
		spec.Format = FormatJPEG
	}
	spec.Quality = ClampQuality(spec.Quality)
	spec.Width = max(0, spec.Width)
	spec.Height = max(0, spec.Height)
	if err := s.limits.CheckSize(spec.Width, spec.Height); err != nil {
		return &EncodeError{Format: spec.Format, Err: err}
	}
	s.output = spec
	return nil
}

// RenderPreview draws the source with the current transform onto a canvas
// sized to the rotated bounding box.
func (s *Session) RenderPreview() (*image.NRGBA, error) {
	if s.source == nil {
		return nil, ErrNoImage
	}
	w, h := rotatedBounds(s.source.Width(), s.source.Height(), s.transform.RotationDegrees)
	return composite(s.source.pixels, s.transform, w, h, 1), nil
}

// ExportPreview encodes RenderPreview as PNG.
func (s *Session) ExportPreview(ctx context.Context) (EncodedOutput, error) {
	img, err := s.RenderPreview()
	if err != nil {
		return EncodedOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return EncodedOutput{}, err
	}
	return s.encode(img, FormatPNG, MaxQuality, PrefixPreview)
}

// Render draws the current transform onto the output canvas, fitting the
// source with min(W/srcW, H/srcH). Uncovered canvas stays transparent.
func (s *Session) Render() (*image.NRGBA, error) {
	if s.source == nil {
		return nil, ErrNoImage
	}
	return renderOutput(s.source, s.transform, s.output, s.limits)
}

func renderOutput(src *SourceImage, t TransformState, spec OutputSpec, limits Limits) (*image.NRGBA, error) {
	if err := checkCanvas(spec, limits); err != nil {
		return nil, err
	}
	scale := fitScale(src.Width(), src.Height(), spec.Width, spec.Height)
	return composite(src.pixels, t, spec.Width, spec.Height, scale), nil
}

// Export renders onto the output canvas and encodes it. The transform and
// output spec are read once at call time.
func (s *Session) Export(ctx context.Context) (EncodedOutput, error) {
	if s.source == nil {
		return EncodedOutput{}, ErrNoImage
	}
	src, t, spec := s.source, s.transform, s.output

	if err := ctx.Err(); err != nil {
		return EncodedOutput{}, err
	}

	img, err := renderOutput(src, t, spec, s.limits)
	if err != nil {
		return EncodedOutput{}, err
	}
	return s.encode(img, spec.Format, spec.Quality, PrefixEditor)
}

// ExportResized stretches the untransformed source to exactly the output
// size, ignoring the transform state.
func (s *Session) ExportResized(ctx context.Context) (EncodedOutput, error) {
	if s.source == nil {
		return EncodedOutput{}, ErrNoImage
	}
	spec := s.output

	if err := ctx.Err(); err != nil {
		return EncodedOutput{}, err
	}
	if err := checkCanvas(spec, s.limits); err != nil {
		return EncodedOutput{}, err
	}

	img := imaging.Resize(s.source.pixels, spec.Width, spec.Height, imaging.Linear)
	return s.encode(img, spec.Format, spec.Quality, PrefixResized)
}

// checkCanvas runs before any output raster is allocated. SetWidth and
// SetHeight can derive an axis past the limits, so SetOutput alone is not
// enough.
func checkCanvas(spec OutputSpec, limits Limits) error {
	if spec.Width <= 0 || spec.Height <= 0 {
		return &EncodeError{Format: spec.Format, Err: errors.New("canvas has zero width or height")}
	}
	if err := limits.CheckSize(spec.Width, spec.Height); err != nil {
		return &EncodeError{Format: spec.Format, Err: err}
	}
	return nil
}

// RemoveBackground returns a copy of the source with light pixels made
// transparent. threshold is clamped to [0,255].
func (s *Session) RemoveBackground(threshold int) (*image.NRGBA, error) {
	if s.source == nil {
		return nil, ErrNoImage
	}
	return RemoveBackground(s.source.Pixels(), uint8(clampInt(threshold, 0, 255))), nil
}

func (s *Session) ExportBackgroundRemoved(ctx context.Context, threshold int) (EncodedOutput, error) {
	img, err := s.RemoveBackground(threshold)
	if err != nil {
		return EncodedOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return EncodedOutput{}, err
	}
	return s.encode(img, FormatPNG, MaxQuality, PrefixBackgroundRemove)
}

// Crop returns the centered region of the source matching r.
func (s *Session) Crop(r Ratio) (*image.NRGBA, error) {
	if s.source == nil {
		return nil, ErrNoImage
	}
	return Crop(s.source.pixels, r)
}

func (s *Session) ExportCropped(ctx context.Context, r Ratio) (EncodedOutput, error) {
	img, err := s.Crop(r)
	if err != nil {
		return EncodedOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return EncodedOutput{}, err
	}
	return s.encode(img, FormatPNG, MaxQuality, PrefixCropped+"-"+string(r))
}

func (s *Session) encode(img *image.NRGBA, format Format, quality int, prefix string) (EncodedOutput, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return EncodedOutput{}, &EncodeError{Format: format, Err: errors.New("canvas has zero width or height")}
	}

	data, err := s.encoder.Encode(img, format, ClampQuality(quality))
	if err != nil {
		return EncodedOutput{}, &EncodeError{Format: format, Err: err}
	}

	return EncodedOutput{
		Data:        data,
		Filename:    SuggestedFilename(prefix, format, s.now()),
		ContentType: format.ContentType(),
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}
