package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
)

// Transformer produces one encoded output from a loaded session.
type Transformer interface {
	Transform(ctx context.Context, session *editor.Session, step domain.PipelineStep) (editor.EncodedOutput, error)
}

type editorTransformer struct{}

func (editorTransformer) Transform(ctx context.Context, session *editor.Session, step domain.PipelineStep) (editor.EncodedOutput, error) {
	select {
	case <-ctx.Done():
		return editor.EncodedOutput{}, ctx.Err()
	default:
	}

	switch strings.ToLower(strings.TrimSpace(step.Action)) {
	case domain.ActionExport:
		if err := applyOutput(session, step); err != nil {
			return editor.EncodedOutput{}, err
		}
		return session.Export(ctx)
	case domain.ActionResize:
		if err := applyOutput(session, step); err != nil {
			return editor.EncodedOutput{}, err
		}
		return session.ExportResized(ctx)
	case domain.ActionCrop:
		ratio, err := editor.ParseRatio(step.Ratio)
		if err != nil {
			return editor.EncodedOutput{}, err
		}
		return session.ExportCropped(ctx, ratio)
	case domain.ActionRemoveBackground:
		threshold := editor.DefaultBackgroundThreshold
		if step.Threshold != nil {
			threshold = *step.Threshold
		}
		return session.ExportBackgroundRemoved(ctx, threshold)
	default:
		return editor.EncodedOutput{}, fmt.Errorf("%w: %q", ErrInvalidStepAction, step.Action)
	}
}

// applyOutput sizes the export canvas from the step. A single axis keeps the
// source aspect ratio; both axes set the canvas exactly; neither keeps the
// native size.
func applyOutput(session *editor.Session, step domain.PipelineStep) error {
	format, err := editor.ParseFormat(step.Format)
	if err != nil {
		return err
	}

	src := session.Source()
	if src == nil {
		return editor.ErrNoImage
	}

	quality := step.Quality
	if quality == 0 {
		quality = editor.DefaultQuality
	}

	if err := session.SetOutput(editor.DefaultOutputSpec(src.Width(), src.Height())); err != nil {
		return err
	}
	session.SetFormat(format)
	session.SetQuality(quality)

	switch {
	case step.Width > 0 && step.Height > 0:
		session.SetAspectLock(false)
		session.SetWidth(step.Width)
		session.SetHeight(step.Height)
	case step.Width > 0:
		session.SetWidth(step.Width)
	case step.Height > 0:
		session.SetHeight(step.Height)
	}
	return nil
}
