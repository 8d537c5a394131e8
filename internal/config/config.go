package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	API       APIConfig
	Editor    EditorConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	Addr        string
	PresignTTL  time.Duration
}

// EditorConfig bounds the interactive session surface of the API.
type EditorConfig struct {
	MaxUploadBytes int64
	SessionTTL     time.Duration
	EvictEvery     time.Duration
	// Raster bounds shared by API sessions and worker pipelines.
	MaxDimension   int
	MaxPixels      int64
	MaxBlurRadius  float64
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
	MaxRetry      int
	TaskTimeout   time.Duration
	// Retention keeps finished tasks inspectable in redis.
	Retention time.Duration
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

// RedisOptions returns go-redis options for the same instance the queue uses.
func (q QueueConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	LocalOutputDir string
	OutputPrefix   string
	DownloadURLTTL time.Duration
	MetricsAddr    string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	MaxObjectBytes int64
}

type DatabaseConfig struct {
	DSN string
}

type RateLimitConfig struct {
	Enabled      bool
	Capacity     int
	Window       time.Duration
	UserIDHeader string
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type TelemetryConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:       env("PHOTORESIZE_API_ADDR", ":8080"),
			PresignTTL: envDuration("PHOTORESIZE_PRESIGN_TTL", 15*time.Minute),
		},
		Editor: EditorConfig{
			MaxUploadBytes: int64(envInt("PHOTORESIZE_MAX_UPLOAD_BYTES", 32<<20)),
			SessionTTL:     envDuration("PHOTORESIZE_SESSION_TTL", 30*time.Minute),
			EvictEvery:     envDuration("PHOTORESIZE_SESSION_EVICT_INTERVAL", time.Minute),
			MaxDimension:   envInt("PHOTORESIZE_MAX_DIMENSION", 16384),
			MaxPixels:      int64(envInt("PHOTORESIZE_MAX_PIXELS", 64_000_000)),
			MaxBlurRadius:  envFloat("PHOTORESIZE_MAX_BLUR_RADIUS", 100),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
			MaxRetry:      envInt("PHOTORESIZE_TASK_MAX_RETRY", 5),
			TaskTimeout:   envDuration("PHOTORESIZE_TASK_TIMEOUT", 3*time.Minute),
			Retention:     envDuration("PHOTORESIZE_TASK_RETENTION", 24*time.Hour),
		},
		Worker: WorkerConfig{
			Concurrency:    envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs:  envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			LocalOutputDir: env("WORKER_LOCAL_OUTPUT_DIR", "./.photoresize-output"),
			OutputPrefix:   env("WORKER_OUTPUT_PREFIX", "outputs"),
			DownloadURLTTL: envDuration("WORKER_DOWNLOAD_URL_TTL", time.Hour),
			MetricsAddr:    env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Endpoint:       env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:      env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:      env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:         env("MINIO_BUCKET", "photoresize-jobs"),
			UseSSL:         envBool("MINIO_USE_SSL", false),
			MaxObjectBytes: int64(envInt("MINIO_MAX_OBJECT_BYTES", 64<<20)),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:      envBool("PHOTORESIZE_RATE_LIMIT_ENABLED", true),
			Capacity:     envInt("PHOTORESIZE_RATE_LIMIT_CAPACITY", 60),
			Window:       envDuration("PHOTORESIZE_RATE_LIMIT_WINDOW", time.Minute),
			UserIDHeader: env("PHOTORESIZE_USER_ID_HEADER", "X-User-ID"),
		},
		Webhook: WebhookConfig{
			SigningSecret:  env("PHOTORESIZE_WEBHOOK_SECRET", ""),
			Timeout:        envDuration("PHOTORESIZE_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("PHOTORESIZE_WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("PHOTORESIZE_WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("PHOTORESIZE_WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		Telemetry: TelemetryConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
