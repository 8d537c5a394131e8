package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.API.Addr != ":8080" {
		t.Fatalf("expected default api addr, got %q", cfg.API.Addr)
	}
	if cfg.Editor.MaxUploadBytes != 32<<20 {
		t.Fatalf("expected 32MiB upload limit, got %d", cfg.Editor.MaxUploadBytes)
	}
	if cfg.Worker.MaxActiveJobs < 1 || cfg.Worker.Concurrency < 2 {
		t.Fatalf("unexpected worker sizing: %+v", cfg.Worker)
	}
	if cfg.RateLimit.UserIDHeader != "X-User-ID" {
		t.Fatalf("unexpected user id header %q", cfg.RateLimit.UserIDHeader)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PHOTORESIZE_API_ADDR", ":9999")
	t.Setenv("PHOTORESIZE_SESSION_TTL", "5m")
	t.Setenv("WORKER_MAX_ACTIVE_JOBS", "7")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("PHOTORESIZE_RATE_LIMIT_WINDOW", "not-a-duration")
	t.Setenv("PHOTORESIZE_MAX_DIMENSION", "4096")
	t.Setenv("PHOTORESIZE_MAX_BLUR_RADIUS", "12.5")

	cfg := Load()

	if cfg.API.Addr != ":9999" {
		t.Fatalf("expected override addr, got %q", cfg.API.Addr)
	}
	if cfg.Editor.SessionTTL != 5*time.Minute {
		t.Fatalf("expected 5m session ttl, got %s", cfg.Editor.SessionTTL)
	}
	if cfg.Worker.MaxActiveJobs != 7 {
		t.Fatalf("expected 7 active jobs, got %d", cfg.Worker.MaxActiveJobs)
	}
	if !cfg.Storage.UseSSL {
		t.Fatal("expected ssl enabled")
	}
	if cfg.Editor.MaxDimension != 4096 || cfg.Editor.MaxBlurRadius != 12.5 {
		t.Fatalf("expected raster limits 4096/12.5, got %d/%v", cfg.Editor.MaxDimension, cfg.Editor.MaxBlurRadius)
	}
	if cfg.Editor.MaxPixels != 64_000_000 {
		t.Fatalf("expected default pixel budget, got %d", cfg.Editor.MaxPixels)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("invalid duration should fall back, got %s", cfg.RateLimit.Window)
	}
}

func TestRedisOptionsMatchQueue(t *testing.T) {
	q := QueueConfig{RedisAddr: "redis:6380", RedisPassword: "pw", RedisDB: 2}
	opts := q.RedisOptions()
	asynqOpts := q.RedisClientOpt()
	if opts.Addr != asynqOpts.Addr || opts.DB != asynqOpts.DB || opts.Password != asynqOpts.Password {
		t.Fatalf("redis options diverge: %+v vs %+v", opts, asynqOpts)
	}
}
