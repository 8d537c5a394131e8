package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/pipeline"
)

const testRecipe = `
transform:
  rotation: 90
  flip_horizontal: true
  saturation: 0
steps:
  - id: thumb
    action: export
    width: 50
    format: png
  - id: wide
    action: crop
    ratio: "16:9"
  - id: cutout
    action: remove_background
    threshold: 200
`

func TestLoadRecipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	if err := os.WriteFile(path, []byte(testRecipe), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}

	r, err := loadRecipe(path)
	if err != nil {
		t.Fatalf("load recipe: %v", err)
	}
	if r.Transform.RotationDegrees == nil || *r.Transform.RotationDegrees != 90 {
		t.Fatalf("expected rotation 90, got %+v", r.Transform)
	}
	if r.Transform.Saturation == nil || *r.Transform.Saturation != 0 {
		t.Fatalf("expected explicit zero saturation, got %+v", r.Transform.Saturation)
	}
	if len(r.Steps) != 3 || r.Steps[1].Ratio != "16:9" || r.Steps[2].Action != domain.ActionRemoveBackground {
		t.Fatalf("unexpected steps: %+v", r.Steps)
	}
	if r.Steps[2].Threshold == nil || *r.Steps[2].Threshold != 200 {
		t.Fatalf("expected threshold 200, got %v", r.Steps[2].Threshold)
	}
}

func TestLoadRecipeRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	if err := os.WriteFile(path, []byte("steps:\n  - id: a\n    action: export\n    sharpen: 3\n"), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	if _, err := loadRecipe(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestRunWritesOutputs(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "photo.png")
	recipePath := filepath.Join(tmp, "recipe.yaml")
	outDir := filepath.Join(tmp, "out")

	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(in, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := os.WriteFile(recipePath, []byte(testRecipe), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-in", in, "-recipe", recipePath, "-out", outDir}, &stdout, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var outputs []pipeline.Output
	if err := json.Unmarshal(stdout.Bytes(), &outputs); err != nil {
		t.Fatalf("decode stdout: %v", err)
	}
	if len(outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outputs))
	}
	if outputs[0].Width != 50 || outputs[0].Height != 25 {
		t.Fatalf("expected 50x25 export, got %dx%d", outputs[0].Width, outputs[0].Height)
	}
	if outputs[1].Width != 71 || outputs[1].Height != 40 {
		t.Fatalf("expected 71x40 crop, got %dx%d", outputs[1].Width, outputs[1].Height)
	}
	for _, o := range outputs {
		if _, err := os.Stat(o.Path); err != nil {
			t.Fatalf("missing output %s: %v", o.Path, err)
		}
	}
}

func TestRunRequiresInput(t *testing.T) {
	if err := run(context.Background(), []string{"-out", t.TempDir()}, io.Discard, log.New(io.Discard, "", 0)); err == nil {
		t.Fatal("expected error without -in")
	}
}

func TestExitCodeShutsDownEditor(t *testing.T) {
	shutdowns := 0
	orig := shutdownEditor
	shutdownEditor = func() { shutdowns++ }
	defer func() { shutdownEditor = orig }()

	logger := log.New(io.Discard, "", 0)
	if code := exitCode([]string{"-out", t.TempDir()}, io.Discard, logger); code != 1 {
		t.Fatalf("expected exit 1 without -in, got %d", code)
	}
	if code := exitCode([]string{"-h"}, io.Discard, logger); code != 2 {
		t.Fatalf("expected exit 2 for -h, got %d", code)
	}
	if shutdowns != 2 {
		t.Fatalf("expected editor shutdown after every run, got %d", shutdowns)
	}
}
