package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	if err := s.Create(ctx, domain.Job{ID: "job-1", Status: domain.JobStatusCreated}); err != nil {
		t.Fatalf("create: %v", err)
	}

	job, err := s.UpdateStatus(ctx, "job-1", domain.JobStatusQueued)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.UpdatedAt.IsZero() {
		t.Fatalf("unexpected job after update: %+v", job)
	}

	if _, err := s.UpdateStatus(ctx, "missing", domain.JobStatusQueued); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing job, got ok=%v err=%v", ok, err)
	}

	if err := s.CreateUsageLog(ctx, domain.UsageLog{JobID: "job-1", PixelsProcessed: 10}); err != nil {
		t.Fatalf("create usage log: %v", err)
	}
	if logs := s.UsageLogs(); len(logs) != 1 || logs[0].PixelsProcessed != 10 {
		t.Fatalf("unexpected usage logs: %+v", logs)
	}
}

func TestMemorySessionStore(t *testing.T) {
	s := NewMemorySessionStore()
	s.Put("abc", editor.NewSession())

	called := false
	if err := s.With("abc", func(sess *editor.Session) error {
		called = sess.State() == editor.StateEmpty
		return nil
	}); err != nil {
		t.Fatalf("with: %v", err)
	}
	if !called {
		t.Fatal("expected callback on empty session")
	}

	if err := s.With("nope", func(*editor.Session) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if !s.Delete("abc") || s.Delete("abc") {
		t.Fatal("expected exactly one successful delete")
	}
}

func TestMemorySessionStoreEvictIdle(t *testing.T) {
	now := time.Unix(1_000, 0)
	s := NewMemorySessionStore()
	s.now = func() time.Time { return now }

	s.Put("old", editor.NewSession())
	now = now.Add(time.Hour)
	s.Put("fresh", editor.NewSession())

	if n := s.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", s.Len())
	}
}

func TestOpenWithoutDSNUsesMemory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), "  ")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()

	if _, ok := s.(*MemoryJobStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}
