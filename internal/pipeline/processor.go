package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var (
	ErrUnsupportedSourceType = errors.New("unsupported source_type")
	ErrInvalidStepAction     = errors.New("invalid pipeline action")
)

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Recipe     domain.Recipe
}

type Output struct {
	StepID   string `json:"step_id"`
	Action   string `json:"action"`
	Format   string `json:"format"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	Bytes    int    `json:"bytes"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Success  bool   `json:"success"`
}

type Result struct {
	SourceBytes  int
	SourceWidth  int
	SourceHeight int
	Outputs      []Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, step domain.PipelineStep, out editor.EncodedOutput) (Output, error)
}

type Processor struct {
	fetcher     Fetcher
	transformer Transformer
	emitter     Emitter
	sessionOpts []editor.Option
}

func NewLocalProcessor(outputDir string, opts ...editor.Option) (*Processor, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	return &Processor{
		fetcher:     LocalFileFetcher{},
		transformer: editorTransformer{},
		emitter:     LocalFileEmitter{OutputDir: outputDir},
		sessionOpts: opts,
	}, nil
}

func NewObjectStoreProcessor(fetcher ObjectStoreFetcher, emitter ObjectStoreEmitter, opts ...editor.Option) (*Processor, error) {
	if fetcher.Storage == nil || emitter.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	return &Processor{
		fetcher:     fetcher,
		transformer: editorTransformer{},
		emitter:     emitter,
		sessionOpts: opts,
	}, nil
}

// Process loads the source into a fresh editor session, applies the recipe
// transform once and emits one output per step.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if err := req.Recipe.Validate(); err != nil {
		return Result{}, fmt.Errorf("validate recipe: %w", err)
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	session := editor.NewSession(p.sessionOpts...)
	src, err := session.Load(sourceBytes)
	if err != nil {
		return Result{}, fmt.Errorf("load stage: %w", err)
	}
	session.SetTransform(req.Recipe.Transform)

	out := Result{
		SourceBytes:  len(sourceBytes),
		SourceWidth:  src.Width(),
		SourceHeight: src.Height(),
		Outputs:      make([]Output, 0, len(req.Recipe.Steps)),
	}
	for _, step := range req.Recipe.Steps {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		encoded, err := p.transformer.Transform(ctx, session, step)
		if err != nil {
			return Result{}, fmt.Errorf("transform stage step=%s action=%s: %w", step.ID, step.Action, err)
		}

		written, err := p.emitter.Emit(ctx, req, step, encoded)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage step=%s action=%s: %w", step.ID, step.Action, err)
		}
		out.Outputs = append(out.Outputs, written)
	}

	return out, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, step domain.PipelineStep, out editor.EncodedOutput) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(step.ID) == "" {
		return Output{}, errors.New("pipeline step id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(jobDir, outputName(step, out))
	if err := os.WriteFile(fullPath, out.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return newOutput(step, out, fullPath), nil
}

func newOutput(step domain.PipelineStep, out editor.EncodedOutput, location string) Output {
	return Output{
		StepID:   step.ID,
		Action:   step.Action,
		Format:   string(out.Format),
		Filename: out.Filename,
		Path:     location,
		Bytes:    len(out.Data),
		Width:    out.Width,
		Height:   out.Height,
		Success:  true,
	}
}

// outputName prefixes the editor's suggested filename with the step id so
// several steps of one job never collide.
func outputName(step domain.PipelineStep, out editor.EncodedOutput) string {
	ext := out.Format.Extension()
	base := strings.TrimSuffix(out.Filename, "."+ext)
	return fmt.Sprintf("%s_%s.%s", sanitizePathToken(step.ID), sanitizePathToken(base), ext)
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
