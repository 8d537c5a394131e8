package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/storage"
)

const SourceTypeS3Presigned = domain.SourceTypeS3Presigned

const defaultOutputPrefix = "outputs"

// ObjectStore is the slice of *storage.Client the object stages use.
type ObjectStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	PutObject(ctx context.Context, object storage.Object) error
	PresignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}

// ObjectStoreFetcher reads sources uploaded through a presigned PUT.
type ObjectStoreFetcher struct {
	Storage ObjectStore
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if !strings.EqualFold(req.SourceType, SourceTypeS3Presigned) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.ObjectKey)
}

// ObjectStoreEmitter writes each output to <prefix>/<job>/<step>_<name>.<ext>.
type ObjectStoreEmitter struct {
	Storage      ObjectStore
	OutputPrefix string
	// DownloadTTL, when positive, attaches a presigned GET URL to each output.
	DownloadTTL time.Duration
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, step domain.PipelineStep, out editor.EncodedOutput) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(step.ID) == "" {
		return Output{}, errors.New("pipeline step id is required")
	}

	key := e.objectKey(req, step, out)
	err := e.Storage.PutObject(ctx, storage.Object{
		Key:         key,
		Data:        out.Data,
		ContentType: out.ContentType,
		Filename:    out.Filename,
		Metadata: map[string]string{
			"job-id":  req.JobID,
			"step-id": step.ID,
			"action":  step.Action,
			"size":    fmt.Sprintf("%dx%d", out.Width, out.Height),
		},
	})
	if err != nil {
		return Output{}, err
	}

	written := newOutput(step, out, key)
	if e.DownloadTTL <= 0 {
		return written, nil
	}
	if written.URL, err = e.Storage.PresignedGetURL(ctx, key, out.Filename, e.DownloadTTL); err != nil {
		return Output{}, err
	}
	return written, nil
}

func (e ObjectStoreEmitter) objectKey(req Request, step domain.PipelineStep, out editor.EncodedOutput) string {
	prefix := strings.Trim(strings.TrimSpace(e.OutputPrefix), "/")
	if prefix == "" {
		prefix = defaultOutputPrefix
	}
	return path.Join(prefix, sanitizePathToken(req.JobID), outputName(step, out))
}
