package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/pipeline"
	"github.com/dunamismax/photoresize/internal/queue"
)

func TestJobEventCarriesResult(t *testing.T) {
	requested := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := queue.EditImagePayload{
		JobID:       "job-7",
		SourceType:  domain.SourceTypeS3Presigned,
		ObjectKey:   "uploads/job-7/source",
		RequestedAt: requested,
	}
	event := newJobEvent(context.Background(), payload, domain.JobStatusSucceeded).withResult(pipeline.Result{
		SourceWidth:  640,
		SourceHeight: 480,
		SourceBytes:  9000,
		Outputs:      []pipeline.Output{{StepID: "thumb", Action: domain.ActionExport, Width: 64, Height: 48}},
	})

	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if decoded["job_id"] != "job-7" || decoded["status"] != domain.JobStatusSucceeded || decoded["attempt"] != float64(1) {
		t.Fatalf("unexpected event header fields: %v", decoded)
	}
	if _, ok := decoded["error"]; ok {
		t.Fatal("successful event must not carry an error")
	}
	source, _ := decoded["source"].(map[string]any)
	if source["width"] != float64(640) || source["bytes"] != float64(9000) {
		t.Fatalf("unexpected source stats: %v", source)
	}
}

func TestFinalAttemptOutsideAsynq(t *testing.T) {
	if !finalAttempt(context.Background(), errors.New("transient")) {
		t.Fatal("attempts outside asynq should be final")
	}
	if !finalAttempt(context.Background(), editor.ErrDecode) {
		t.Fatal("permanent errors should always be final")
	}
}
