// Package main is the async job worker entrypoint. It drains the
// indexing and linking streams produced by the HTTP layer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sermon-search-api/internal/application/segmenter"
	"sermon-search-api/internal/config"
	"sermon-search-api/internal/infrastructure/messaging"
	"sermon-search-api/internal/wire"
	"sermon-search-api/pkg/logger"
	"sermon-search-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	app, err := wire.New(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer app.Close()

	backoff := messaging.DefaultBackoffConfig()

	indexConsumer := messaging.NewConsumer(app.Redis.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamSermonIndex,
		Group:        messaging.ConsumerGroupIndexWorker,
		ConsumerName: consumerName("index"),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff:      backoff,
	})

	indexConsumer.RegisterHandler(messaging.TypeSermonIndex, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.IndexJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := app.Pipeline.GenerateEmbeddings(ctx, payload.SermonID, payload.Force, segmenter.ModeNone)
		return err
	})

	linkConsumer := messaging.NewConsumer(app.Redis.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamSegmentLink,
		Group:        messaging.ConsumerGroupLinkWorker,
		ConsumerName: consumerName("link"),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff:      backoff,
	})

	linkConsumer.RegisterHandler(messaging.TypeSegmentLink, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.LinkJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := app.Linker.GenerateLinks(ctx, payload.SegmentID, payload.MinSimilarity, payload.MaxLinks)
		return err
	})

	linkConsumer.RegisterHandler(messaging.TypeSeriesLink, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.SeriesLinkJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := app.Linker.GenerateForSeries(ctx, payload.SeriesID, payload.MinSimilarity, payload.MaxLinks)
		return err
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := indexConsumer.Start(runCtx); err != nil {
		logger.Fatal(ctx, "failed to start index consumer", err)
	}
	if err := linkConsumer.Start(runCtx); err != nil {
		logger.Fatal(ctx, "failed to start link consumer", err)
	}

	go indexConsumer.MonitorDLQ(runCtx, 100)
	go linkConsumer.MonitorDLQ(runCtx, 100)

	logger.Info(ctx, "job worker started",
		"streams", []string{string(messaging.StreamSermonIndex), string(messaging.StreamSegmentLink)})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down worker...")
	cancel()
	indexConsumer.Stop()
	linkConsumer.Stop()
	logger.Info(ctx, "worker exited")
}

func consumerName(role string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s-%d", hostname, role, os.Getpid())
}
