package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"renderq/internal/config"
	"renderq/internal/pkg/logger"
	"renderq/internal/pkg/shutdown"
	"renderq/internal/storage"
	"renderq/internal/store"
	"renderq/internal/worker"
	"renderq/internal/worker/encoder"
	"renderq/internal/worker/generator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "renderq-worker",
	})

	log.Info("starting worker", "version", "0.1.0")

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected", "addr", cfg.Redis.Addr)

	st := store.NewRedisStore(rdb, cfg.Redis.KeyPrefix)

	sp, err := storage.NewProvider(cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	if err := os.MkdirAll(cfg.Worker.ScratchDir, 0o755); err != nil {
		log.LogFatal("failed to create scratch directory", err)
	}

	// Metrics endpoint for scraping.
	metricsServer := &http.Server{
		Addr:    "0.0.0.0:" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	shutdownMgr.Register("metrics-server", func(ctx context.Context) error {
		return metricsServer.Shutdown(ctx)
	})
	go func() {
		log.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	gen := generator.NewHTTPClient(cfg.Worker.GeneratorBaseURL, cfg.Worker.GeneratorTimeout)
	enc := encoder.NewFFmpeg(cfg.Worker.FFmpegBin)

	// The loop stops when the shutdown signal cancels its context.
	ctx, cancel := context.WithCancel(context.Background())
	shutdownMgr.RegisterSimple("worker-loop", cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := worker.Run(ctx, worker.Deps{
			Store:       st,
			Generator:   gen,
			Encoder:     enc,
			Objects:     sp,
			ScratchDir:  cfg.Worker.ScratchDir,
			Log:         log,
			DequeueWait: cfg.Worker.DequeueWait,
		})
		if err != nil && err != context.Canceled {
			log.WithError(err).Error("worker loop exited")
		}
	}()

	shutdownMgr.Wait()
	<-done
}
