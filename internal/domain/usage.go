package domain

import "time"

// UsageLog is the billing record written once per succeeded job.
type UsageLog struct {
	UserID          string    `json:"user_id"`
	JobID           string    `json:"job_id"`
	OutputCount     int       `json:"output_count"`
	SourceBytes     int64     `json:"source_bytes"`
	OutputBytes     int64     `json:"output_bytes"`
	PixelsProcessed int64     `json:"pixels_processed"`
	BytesSaved      int64     `json:"bytes_saved"`
	ComputeTimeMS   int64     `json:"compute_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// OutputSize is the part of a rendered output that usage accounting needs.
type OutputSize struct {
	Width  int
	Height int
	Bytes  int
}

// NewUsageLog totals outputs against the source. BytesSaved never goes
// negative and compute time is at least one millisecond.
func NewUsageLog(jobID, userID string, sourceBytes int, outputs []OutputSize, compute time.Duration, at time.Time) UsageLog {
	usage := UsageLog{
		UserID:        userID,
		JobID:         jobID,
		OutputCount:   len(outputs),
		SourceBytes:   int64(sourceBytes),
		ComputeTimeMS: max(1, compute.Milliseconds()),
		CreatedAt:     at.UTC(),
	}
	for _, out := range outputs {
		usage.PixelsProcessed += int64(out.Width) * int64(out.Height)
		usage.OutputBytes += int64(out.Bytes)
	}
	usage.BytesSaved = max(0, usage.SourceBytes-usage.OutputBytes)
	return usage
}
