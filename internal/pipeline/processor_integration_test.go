package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
)

func TestLocalProcessor_FileInTransformFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 240, 120)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(outputDir, editor.WithClock(func() time.Time {
		return time.UnixMilli(1_700_000_000_000)
	}))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	rotation := 90
	req := Request{
		JobID:      "job-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Recipe: domain.Recipe{
			Transform: editor.TransformPatch{RotationDegrees: &rotation},
			Steps: []domain.PipelineStep{
				{ID: "thumb_small", Action: domain.ActionExport, Width: 80, Format: "jpeg", Quality: 75},
				{ID: "square", Action: domain.ActionCrop, Ratio: "1:1"},
				{ID: "cutout", Action: domain.ActionRemoveBackground},
				{ID: "stretched", Action: domain.ActionResize, Width: 50, Height: 50, Format: "png"},
			},
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(result.Outputs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(result.Outputs))
	}
	if result.SourceWidth != 240 || result.SourceHeight != 120 || result.SourceBytes != len(srcBytes) {
		t.Fatalf("unexpected source stats: %+v", result)
	}

	exported := result.Outputs[0]
	if exported.Format != "jpeg" {
		t.Fatalf("expected jpeg output format, got %s", exported.Format)
	}
	if exported.Filename != "photoresize-1700000000000.jpeg" {
		t.Fatalf("unexpected filename %q", exported.Filename)
	}
	if !strings.HasSuffix(exported.Path, "thumb_small_photoresize-1700000000000.jpeg") {
		t.Fatalf("unexpected output path %q", exported.Path)
	}
	verifyImageSize(t, exported.Path, 80, 40)

	cropped := result.Outputs[1]
	if cropped.Filename != "cropped-1:1-1700000000000.png" {
		t.Fatalf("unexpected crop filename %q", cropped.Filename)
	}
	verifyImageSize(t, cropped.Path, 120, 120)

	cutout := result.Outputs[2]
	if cutout.Format != "png" {
		t.Fatalf("expected png cutout, got %s", cutout.Format)
	}
	verifyImageSize(t, cutout.Path, 240, 120)

	verifyImageSize(t, result.Outputs[3].Path, 50, 50)
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		JobID:      "job-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job/source",
		Recipe: domain.Recipe{
			Steps: []domain.PipelineStep{{ID: "thumb_small", Action: domain.ActionExport, Width: 120}},
		},
	})
	if !errors.Is(err, ErrUnsupportedSourceType) {
		t.Fatalf("expected unsupported source_type error, got %v", err)
	}
}

func TestProcessorSurfacesDecodeErrors(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}
	processor.fetcher = staticFetcher{data: []byte("not an image")}
	processor.emitter = discardEmitter{}

	_, err = processor.Process(context.Background(), Request{
		JobID:  "job-corrupt",
		Recipe: domain.Recipe{Steps: []domain.PipelineStep{{ID: "a", Action: domain.ActionExport}}},
	})
	if !errors.Is(err, editor.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func verifyImageSize(t *testing.T, path string, wantW, wantH int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Fatalf("expected %dx%d, got %dx%d", wantW, wantH, b.Dx(), b.Dy())
	}
}
