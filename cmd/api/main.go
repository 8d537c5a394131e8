package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/photoresize/internal/api"
	"github.com/dunamismax/photoresize/internal/config"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/queue"
	"github.com/dunamismax/photoresize/internal/ratelimit"
	"github.com/dunamismax/photoresize/internal/storage"
	"github.com/dunamismax/photoresize/internal/store"
	"github.com/dunamismax/photoresize/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := editor.Startup(); err != nil {
		logger.Fatalf("editor backend startup failed: %v", err)
	}
	defer editor.Shutdown()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "photoresize-api",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	queueClient := queue.NewClient(cfg.Queue)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	jobStore, closeStore, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("job store init failed: %v", err)
	}
	defer closeStore()

	opts := api.Options{
		Logger:         logger,
		Queue:          queueClient,
		Jobs:           jobStore,
		Sessions:       store.NewMemorySessionStore(),
		PresignTTL:     cfg.API.PresignTTL,
		MaxUploadBytes: cfg.Editor.MaxUploadBytes,
		UserIDHeader:   cfg.RateLimit.UserIDHeader,
		SessionOptions: []editor.Option{editor.WithLimits(editor.Limits{
			MaxDimension:  cfg.Editor.MaxDimension,
			MaxPixels:     cfg.Editor.MaxPixels,
			MaxBlurRadius: cfg.Editor.MaxBlurRadius,
		})},
	}

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint:       cfg.Storage.Endpoint,
		Access:         cfg.Storage.AccessKey,
		Secret:         cfg.Storage.SecretKey,
		Bucket:         cfg.Storage.Bucket,
		UseSSL:         cfg.Storage.UseSSL,
		MaxObjectBytes: cfg.Storage.MaxObjectBytes,
	})
	if err != nil {
		logger.Printf("object storage disabled: %v", err)
	} else if err := storageClient.EnsureBucket(ctx); err != nil {
		logger.Printf("object storage disabled bucket=%s err=%v", cfg.Storage.Bucket, err)
	} else {
		opts.Storage = storageClient
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(cfg.Queue.RedisOptions())
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			logger.Fatalf("rate limiter init failed: %v", err)
		}
		opts.RateLimiter = limiter
	}

	app := api.NewServer(opts)
	go evictSessions(ctx, logger, app.Sessions(), cfg.Editor)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s backend=%s", cfg.API.Addr, editor.Backend())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

func evictSessions(ctx context.Context, logger *log.Logger, sessions *store.MemorySessionStore, cfg config.EditorConfig) {
	ticker := time.NewTicker(cfg.EvictEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.EvictIdle(cfg.SessionTTL); n > 0 {
				logger.Printf("evicted idle sessions count=%d live=%d", n, sessions.Len())
			}
		}
	}
}
