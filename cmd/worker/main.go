// Package main runs the background job worker (webhook reconciliation, event
// archival).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phishgate/backend/config"
	"github.com/phishgate/backend/internal/audit"
	"github.com/phishgate/backend/internal/cache"
	"github.com/phishgate/backend/internal/events"
	"github.com/phishgate/backend/internal/realtime"
	"github.com/phishgate/backend/internal/worker"
	"github.com/phishgate/backend/pkg/database"
	"github.com/phishgate/backend/pkg/queue"
	"github.com/phishgate/backend/pkg/redis"
	"github.com/phishgate/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Reconciled events still fan out to connected dashboards via Redis.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	eventRepo := events.NewRepository(pool)
	cacheRepo := cache.NewRepository(pool)
	pipeline := events.NewPipeline(eventRepo, cacheRepo, hub, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	recorder := audit.NewRecorder(audit.NewRepository(pool), logger)
	processor := worker.NewProcessor(pipeline, eventRepo, s3Client, jobQueue, recorder, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
