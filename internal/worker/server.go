package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/photoresize/internal/config"
	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/pipeline"
	"github.com/dunamismax/photoresize/internal/queue"
	"github.com/dunamismax/photoresize/internal/storage"
	"github.com/dunamismax/photoresize/internal/store"
	"github.com/dunamismax/photoresize/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	storageClient *storage.Client,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
	usageStore store.UsageStore,
	sessionOpts ...editor.Option,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalOutputDir, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline processor: %w", err)
	}

	objectProcessor, err := pipeline.NewObjectStoreProcessor(
		pipeline.ObjectStoreFetcher{Storage: storageClient},
		pipeline.ObjectStoreEmitter{
			Storage:      storageClient,
			OutputPrefix: workerCfg.OutputPrefix,
			DownloadTTL:  workerCfg.DownloadURLTTL,
		},
		sessionOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	var sender webhookSender
	if webhookClient != nil {
		sender = webhookClient
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		webhookClient:   sender,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("photoresize/worker"),
	}
	return s, nil
}

// Start begins consuming edit tasks without blocking; call Shutdown to stop.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeEditImage, s.handleEditImage)
	return s.server.Start(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) handleEditImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseEditImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := payload.Recipe.Validate(); err != nil {
		return fmt.Errorf("invalid recipe: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.edit_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", payload.SourceType),
		attribute.Int("job.recipe_steps", len(payload.Recipe.Steps)),
		attribute.Bool("job.recipe_transform", !payload.Recipe.Transform.IsEmpty()),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		span.SetStatus(codes.Error, "canceled waiting for a slot")
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf(
		"editing job_id=%s source_type=%s steps=%d object_key=%s",
		payload.JobID,
		payload.SourceType,
		len(payload.Recipe.Steps),
		payload.ObjectKey,
	)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	request := pipeline.Request{
		JobID:      payload.JobID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
		Recipe:     payload.Recipe,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		s.metrics.failures.WithLabelValues(failureKind(err)).Inc()

		if !finalAttempt(ctx, err) {
			s.updateJobStatus(ctx, payload.JobID, domain.JobStatusQueued)
			return fmt.Errorf("run pipeline: %w", err)
		}
		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed)
		_ = s.dispatchWebhook(ctx, payload, webhook.EventJobFailed, newJobEvent(ctx, payload, domain.JobStatusFailed).withError(err))
		if isPermanent(err) {
			return fmt.Errorf("run pipeline: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("run pipeline: %w", err)
	}

	s.logger.Printf("edited job_id=%s source=%dx%d outputs=%d", payload.JobID, result.SourceWidth, result.SourceHeight, len(result.Outputs))
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded)
	s.metrics.observeOutputs(result.Outputs)
	s.recordUsage(ctx, payload.JobID, payload.UserID, result, time.Since(startedAt))

	outcome = domain.JobStatusSucceeded

	// The job is already committed; a retry here would rerun the pipeline and
	// bill usage twice, so a failed notification only gets recorded.
	event := newJobEvent(ctx, payload, domain.JobStatusSucceeded).withResult(result)
	if err := s.dispatchWebhook(ctx, payload, webhook.EventJobCompleted, event); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("job.webhook_failed", true))
	}

	span.SetStatus(codes.Ok, "processed")
	return nil
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.EditImagePayload, event string, body jobEvent) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, jobID, userID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID = strings.TrimSpace(userID)
	if userID == "" && s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Printf("usage lookup failed job_id=%s err=%v", jobID, err)
		} else if ok {
			userID = strings.TrimSpace(job.UserID)
		}
	}
	if userID == "" {
		userID = "anonymous"
	}

	sizes := make([]domain.OutputSize, 0, len(result.Outputs))
	for _, output := range result.Outputs {
		sizes = append(sizes, domain.OutputSize{Width: output.Width, Height: output.Height, Bytes: output.Bytes})
	}
	usage := domain.NewUsageLog(jobID, userID, result.SourceBytes, sizes, computeDuration, time.Now())
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed job_id=%s err=%v", jobID, err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(usage.PixelsProcessed))
	s.metrics.bytesSavedTotal.Add(float64(usage.BytesSaved))
	s.metrics.computeTimeMSTotal.Add(float64(usage.ComputeTimeMS))
}

// isPermanent reports whether retrying the job could never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, editor.ErrDecode) ||
		errors.Is(err, editor.ErrTooLarge) ||
		errors.Is(err, editor.ErrUnsupportedFormat) ||
		errors.Is(err, editor.ErrUnsupportedRatio) ||
		errors.Is(err, pipeline.ErrUnsupportedSourceType) ||
		errors.Is(err, storage.ErrObjectTooLarge)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, editor.ErrTooLarge):
		return "too_large"
	case errors.Is(err, editor.ErrDecode):
		return "decode"
	case errors.Is(err, editor.ErrEncode):
		return "encode"
	case errors.Is(err, storage.ErrObjectTooLarge):
		return "too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
