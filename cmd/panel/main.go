package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"taskpanel/internal/activity"
	"taskpanel/internal/apiclient"
	"taskpanel/internal/cache"
	"taskpanel/internal/config"
	"taskpanel/internal/dashboard"
	"taskpanel/internal/handlers"
	"taskpanel/internal/jobs"
	"taskpanel/internal/log"
	"taskpanel/internal/server"
	"taskpanel/internal/service"
	"taskpanel/internal/session"
	"taskpanel/internal/tasks"
	"taskpanel/internal/users"
)

func main() {
	configPath := pflag.String("config", "", "path to config.yaml")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	api, err := apiclient.New(cfg.RecordAPI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init record api client")
	}
	if err := api.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("record api not reachable yet")
	}

	sessions := session.NewManager(session.NewRedisStore(redisClient), cfg.Session.Secret, cfg.Session.TTL)
	recorder := activity.Logged(activity.NewPublisher(redisClient, cfg.Activity.Stream, cfg.Activity.MaxLen), logger)
	boards := tasks.NewRegistry(api, logger, service.TaskActivity(recorder, logger))

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:    cfg,
		Log:       logger,
		Auth:      service.NewAuthService(api, sessions, recorder, logger),
		Sessions:  sessions,
		Boards:    boards,
		Dashboard: dashboard.NewService(api),
		Users:     users.NewService(api, recorder, logger),
		Checks: map[string]handlers.Pinger{
			"recordapi": api,
			"redis": handlers.PingFunc(func(ctx context.Context) error {
				return cache.Ping(ctx, redisClient)
			}),
		},
	})
	httpServer := server.NewHTTPServer("panel", cfg, cfg.Panel, logger, handlerSet)

	scheduler := jobs.NewScheduler(cfg.Jobs, recorder, boards, cfg.Session.BoardIdle, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()

	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("panel exited cleanly")
}
