package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/photoresize/internal/config"
	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/hibiken/asynq"
)

func TestEditImageTaskRoundTrip(t *testing.T) {
	rotation := 90
	payload := EditImagePayload{
		JobID:      "job-123",
		UserID:     "user-7",
		SourceType: domain.SourceTypeS3Presigned,
		ObjectKey:  "uploads/job-123/source",
		Recipe: domain.Recipe{
			Transform: editor.TransformPatch{RotationDegrees: &rotation},
			Steps: []domain.PipelineStep{
				{ID: "square", Action: domain.ActionCrop, Ratio: "1:1"},
			},
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewEditImageTask(payload)
	if err != nil {
		t.Fatalf("NewEditImageTask returned error: %v", err)
	}
	if task.Type() != TypeEditImage {
		t.Fatalf("expected task type %q, got %q", TypeEditImage, task.Type())
	}

	parsed, err := ParseEditImagePayload(task)
	if err != nil {
		t.Fatalf("ParseEditImagePayload returned error: %v", err)
	}

	if parsed.JobID != payload.JobID || parsed.UserID != payload.UserID {
		t.Fatalf("unexpected ids: %+v", parsed)
	}
	if len(parsed.Recipe.Steps) != 1 || parsed.Recipe.Steps[0].Ratio != "1:1" {
		t.Fatalf("unexpected recipe steps: %+v", parsed.Recipe.Steps)
	}
	if parsed.Recipe.Transform.RotationDegrees == nil || *parsed.Recipe.Transform.RotationDegrees != 90 {
		t.Fatalf("expected rotation patch to survive, got %+v", parsed.Recipe.Transform)
	}
}

func TestNewEditImageTaskRequiresJobID(t *testing.T) {
	if _, err := NewEditImageTask(EditImagePayload{}); err == nil {
		t.Fatal("expected error for missing job_id")
	}
}

func TestEnqueueOptionsFromConfig(t *testing.T) {
	opts := enqueueOptions(config.QueueConfig{Name: "edits", MaxRetry: 3, TaskTimeout: time.Minute, Retention: time.Hour})
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}
	if opts[0].Type() != asynq.QueueOpt || opts[0].Value() != "edits" {
		t.Fatalf("unexpected queue option %v", opts[0])
	}

	if opts := enqueueOptions(config.QueueConfig{Name: "default", MaxRetry: -1}); len(opts) != 1 {
		t.Fatalf("expected queue option only, got %d", len(opts))
	}
}
