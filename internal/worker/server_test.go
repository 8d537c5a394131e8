package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/pipeline"
	"github.com/dunamismax/photoresize/internal/storage"
	"github.com/dunamismax/photoresize/internal/store"
)

func TestRecordUsageWritesUsageLog(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	if err := jobStore.Create(context.Background(), domain.Job{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusProcessing,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "input.png",
		Recipe: domain.Recipe{
			Steps: []domain.PipelineStep{{ID: "thumb", Action: domain.ActionExport, Width: 100}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		jobStore:   jobStore,
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "job-1", "", pipeline.Result{
		SourceBytes: 1_000,
		Outputs: []pipeline.Output{
			{Width: 10, Height: 10, Bytes: 300},
			{Width: 20, Height: 20, Bytes: 400},
		},
	}, 250*time.Millisecond)

	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.UserID != "user-1" {
		t.Fatalf("expected user_id=user-1, got %s", usageStore.log.UserID)
	}
	if usageStore.log.PixelsProcessed != 500 {
		t.Fatalf("expected pixels_processed=500, got %d", usageStore.log.PixelsProcessed)
	}
	if usageStore.log.BytesSaved != 300 {
		t.Fatalf("expected bytes_saved=300, got %d", usageStore.log.BytesSaved)
	}
	if usageStore.log.ComputeTimeMS != 250 {
		t.Fatalf("expected compute_time_ms=250, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordUsagePrefersPayloadUser(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		jobStore:   store.NewMemoryJobStore(),
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "job-3", "user-9", pipeline.Result{}, time.Second)
	if usageStore.log.UserID != "user-9" {
		t.Fatalf("expected user_id=user-9, got %s", usageStore.log.UserID)
	}

	s.recordUsage(context.Background(), "job-4", "", pipeline.Result{}, time.Second)
	if usageStore.log.UserID != "anonymous" {
		t.Fatalf("expected anonymous fallback, got %s", usageStore.log.UserID)
	}
}

func TestRecordUsageClampsNegativeBytesSaved(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "job-2", "", pipeline.Result{
		SourceBytes: 100,
		Outputs: []pipeline.Output{
			{Width: 5, Height: 5, Bytes: 200},
		},
	}, 0)

	if usageStore.log.BytesSaved != 0 {
		t.Fatalf("expected bytes_saved=0, got %d", usageStore.log.BytesSaved)
	}
	if usageStore.log.ComputeTimeMS < 1 {
		t.Fatalf("expected compute_time_ms to be at least 1, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestFailureClassification(t *testing.T) {
	decode := fmt.Errorf("load stage: %w", &editor.DecodeError{Err: errors.New("bad magic")})
	if !isPermanent(decode) || failureKind(decode) != "decode" {
		t.Fatalf("decode errors should be permanent, kind=%s", failureKind(decode))
	}

	webp := fmt.Errorf("transform stage: %w", &editor.EncodeError{Format: editor.FormatWebP, Err: editor.ErrUnsupportedFormat})
	if !isPermanent(webp) || failureKind(webp) != "encode" {
		t.Fatalf("unsupported format should be permanent, kind=%s", failureKind(webp))
	}

	tooLarge := fmt.Errorf("fetch stage: %w", storage.ErrObjectTooLarge)
	if !isPermanent(tooLarge) || failureKind(tooLarge) != "too_large" {
		t.Fatalf("oversized source should be permanent, kind=%s", failureKind(tooLarge))
	}

	canvas := fmt.Errorf("transform stage: %w", &editor.EncodeError{Format: editor.FormatPNG, Err: fmt.Errorf("%w: 20000x20000", editor.ErrTooLarge)})
	if !isPermanent(canvas) || failureKind(canvas) != "too_large" {
		t.Fatalf("oversized canvas should be permanent, kind=%s", failureKind(canvas))
	}

	transient := fmt.Errorf("fetch stage: %w", context.DeadlineExceeded)
	if isPermanent(transient) || failureKind(transient) != "canceled" {
		t.Fatalf("deadline errors should be retried, kind=%s", failureKind(transient))
	}
}

type captureUsageStore struct {
	called bool
	log    domain.UsageLog
}

func (s *captureUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.called = true
	s.log = usage
	return nil
}
