package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"taskpanel/internal/apiclient"
	"taskpanel/internal/cache"
	"taskpanel/internal/config"
	"taskpanel/internal/dashboard"
	"taskpanel/internal/log"
	"taskpanel/internal/service"
	"taskpanel/internal/storage"
	"taskpanel/internal/worker/processor"
	"taskpanel/internal/worker/queue"
)

func main() {
	configPath := pflag.String("config", "", "path to config.yaml")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	api, err := apiclient.New(cfg.RecordAPI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init record api client")
	}

	handler := processor.NewProcessor(
		service.NewArchiveService(objectStore, logger),
		dashboard.NewService(api),
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Activity.Stream,
		cfg.Activity.Group,
		cfg.Activity.Consumer,
		cfg.Activity.ClaimInterval,
		logger,
		handler,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
