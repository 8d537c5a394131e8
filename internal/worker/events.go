package worker

import (
	"context"
	"time"

	"github.com/dunamismax/photoresize/internal/pipeline"
	"github.com/dunamismax/photoresize/internal/queue"
	"github.com/hibiken/asynq"
)

// jobEvent is the webhook body for both completion and failure.
type jobEvent struct {
	JobID       string            `json:"job_id"`
	Status      string            `json:"status"`
	SourceType  string            `json:"source_type"`
	ObjectKey   string            `json:"object_key,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Attempt     int               `json:"attempt"`
	Source      *sourceStats      `json:"source,omitempty"`
	Outputs     []pipeline.Output `json:"outputs,omitempty"`
	Error       string            `json:"error,omitempty"`
}

type sourceStats struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Bytes  int `json:"bytes"`
}

func newJobEvent(ctx context.Context, payload queue.EditImagePayload, status string) jobEvent {
	retried, _ := asynq.GetRetryCount(ctx)
	return jobEvent{
		JobID:       payload.JobID,
		Status:      status,
		SourceType:  payload.SourceType,
		ObjectKey:   payload.ObjectKey,
		RequestedAt: payload.RequestedAt,
		FinishedAt:  time.Now().UTC(),
		Attempt:     retried + 1,
	}
}

func (e jobEvent) withResult(result pipeline.Result) jobEvent {
	e.Source = &sourceStats{Width: result.SourceWidth, Height: result.SourceHeight, Bytes: result.SourceBytes}
	e.Outputs = result.Outputs
	return e
}

func (e jobEvent) withError(err error) jobEvent {
	e.Error = err.Error()
	return e
}

// finalAttempt reports whether asynq will not run the task again after err.
// Outside an asynq handler every attempt is final.
func finalAttempt(ctx context.Context, err error) bool {
	if isPermanent(err) {
		return true
	}
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return !ok || retried >= maxRetry
}
