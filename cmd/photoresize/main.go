package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Swapped in tests to observe teardown.
var (
	startEditor    = editor.Startup
	shutdownEditor = editor.Shutdown
)

func main() {
	logger := log.New(os.Stderr, "[photoresize] ", log.LstdFlags|log.Lmsgprefix)
	os.Exit(exitCode(os.Args[1:], os.Stdout, logger))
}

// exitCode runs the CLI and maps the outcome to a process status. Teardown
// is deferred here so it completes before main exits.
func exitCode(args []string, stdout io.Writer, logger *log.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := startEditor(); err != nil {
		logger.Printf("editor backend startup failed: %v", err)
		return 1
	}
	defer shutdownEditor()

	if err := run(ctx, args, stdout, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		logger.Printf("%v", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("photoresize", flag.ContinueOnError)
	var (
		in      = fs.String("in", "", "source image path")
		recipe  = fs.String("recipe", "", "YAML recipe path; when empty a single export step is built from the flags below")
		out     = fs.String("out", "./photoresize-out", "output directory")
		width   = fs.Int("width", 0, "export width (0 keeps the source width)")
		height  = fs.Int("height", 0, "export height (0 follows the aspect ratio)")
		format  = fs.String("format", "jpeg", "export format: jpeg, png or webp")
		quality = fs.Int("quality", editor.DefaultQuality, "lossy export quality 1-100")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*in) == "" {
		fs.Usage()
		return errors.New("-in is required")
	}

	var (
		r   domain.Recipe
		err error
	)
	if *recipe != "" {
		r, err = loadRecipe(*recipe)
		if err != nil {
			return err
		}
	} else {
		r = domain.Recipe{Steps: []domain.PipelineStep{{
			ID:      "export",
			Action:  domain.ActionExport,
			Width:   *width,
			Height:  *height,
			Format:  *format,
			Quality: *quality,
		}}}
	}

	processor, err := pipeline.NewLocalProcessor(*out)
	if err != nil {
		return err
	}

	jobID := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	logger.Printf("editing in=%s steps=%d backend=%s", *in, len(r.Steps), editor.Backend())

	result, err := processor.Process(ctx, pipeline.Request{
		JobID:      jobID,
		SourceType: pipeline.SourceTypeLocalFile,
		ObjectKey:  *in,
		Recipe:     r,
	})
	if err != nil {
		return err
	}

	for _, o := range result.Outputs {
		logger.Printf("wrote step=%s action=%s size=%dx%d bytes=%d path=%s", o.StepID, o.Action, o.Width, o.Height, o.Bytes, o.Path)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Outputs)
}

func loadRecipe(path string) (domain.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("read recipe: %w", err)
	}

	var r domain.Recipe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return domain.Recipe{}, fmt.Errorf("parse recipe %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return domain.Recipe{}, fmt.Errorf("invalid recipe %s: %w", path, err)
	}
	return r, nil
}
