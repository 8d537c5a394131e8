package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/photoresize/internal/editor"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

const (
	ActionExport           = "export"
	ActionResize           = "resize"
	ActionCrop             = "crop"
	ActionRemoveBackground = "remove_background"
)

type CreateJobRequest struct {
	UserID     string `json:"user_id,omitempty"`
	SourceType string `json:"source_type"`
	WebhookURL string `json:"webhook_url,omitempty"`
	ObjectKey  string `json:"object_key,omitempty"`
	Recipe     Recipe `json:"recipe"`
}

// Recipe is a stored edit: one transform applied to the source, then one
// output per step.
type Recipe struct {
	Transform editor.TransformPatch `json:"transform" yaml:"transform"`
	Steps     []PipelineStep        `json:"steps" yaml:"steps"`
}

type PipelineStep struct {
	ID        string `json:"id" yaml:"id"`
	Action    string `json:"action" yaml:"action"`
	Width     int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int    `json:"height,omitempty" yaml:"height,omitempty"`
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Quality   int    `json:"quality,omitempty" yaml:"quality,omitempty"`
	Ratio     string `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	Threshold *int   `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Recipe     Recipe
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	return r.Recipe.Validate()
}

func (r Recipe) Validate() error {
	if len(r.Steps) == 0 {
		return errors.New("recipe must contain at least one step")
	}
	seen := make(map[string]struct{}, len(r.Steps))
	for i, step := range r.Steps {
		id := strings.TrimSpace(step.ID)
		if id == "" {
			return fmt.Errorf("steps[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("steps[%d].id %q is duplicated", i, id)
		}
		seen[id] = struct{}{}
		if err := step.Validate(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func (s PipelineStep) Validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Action)) {
	case "":
		return errors.New("action is required")
	case ActionExport, ActionResize:
		if s.Width < 0 || s.Height < 0 {
			return errors.New("width and height must not be negative")
		}
		if err := editor.DefaultLimits().CheckSize(s.Width, s.Height); err != nil {
			return err
		}
		if _, err := editor.ParseFormat(s.Format); err != nil {
			return err
		}
	case ActionCrop:
		if _, err := editor.ParseRatio(s.Ratio); err != nil {
			return err
		}
	case ActionRemoveBackground:
	default:
		return fmt.Errorf("unsupported action: %s", s.Action)
	}
	return nil
}
