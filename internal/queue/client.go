package queue

import (
	"context"
	"fmt"

	"github.com/dunamismax/photoresize/internal/config"
	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of Client the API depends on.
type Enqueuer interface {
	EnqueueEditImage(ctx context.Context, payload EditImagePayload) (*asynq.TaskInfo, error)
}

type Client struct {
	client *asynq.Client
	opts   []asynq.Option
}

func NewClient(cfg config.QueueConfig) *Client {
	return &Client{
		client: asynq.NewClient(cfg.RedisClientOpt()),
		opts:   enqueueOptions(cfg),
	}
}

// enqueueOptions turns queue config into per-task options. Zero values fall
// back to asynq defaults.
func enqueueOptions(cfg config.QueueConfig) []asynq.Option {
	opts := []asynq.Option{asynq.Queue(cfg.Name)}
	if cfg.MaxRetry >= 0 {
		opts = append(opts, asynq.MaxRetry(cfg.MaxRetry))
	}
	if cfg.TaskTimeout > 0 {
		opts = append(opts, asynq.Timeout(cfg.TaskTimeout))
	}
	if cfg.Retention > 0 {
		opts = append(opts, asynq.Retention(cfg.Retention))
	}
	return opts
}

func (c *Client) EnqueueEditImage(ctx context.Context, payload EditImagePayload) (*asynq.TaskInfo, error) {
	task, err := NewEditImageTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job_id=%s: %w", TypeEditImage, payload.JobID, err)
	}
	return info, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
