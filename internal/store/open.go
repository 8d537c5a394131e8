package store

import (
	"context"
	"strings"
)

// JobUsageStore is the combined store both binaries run against.
type JobUsageStore interface {
	JobStore
	UsageStore
}

// Open connects to postgres when dsn is set and falls back to an in-memory
// store otherwise. The returned close func is never nil.
func Open(ctx context.Context, dsn string) (JobUsageStore, func() error, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemoryJobStore(), func() error { return nil }, nil
	}
	pg, err := NewPostgresJobStore(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
