package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"taskpanel/internal/config"
	"taskpanel/internal/database"
	"taskpanel/internal/log"
	"taskpanel/internal/repository"
	"taskpanel/internal/server"
	"taskpanel/internal/store"
)

func main() {
	configPath := pflag.String("config", "", "path to config.yaml")
	skipMigrations := pflag.Bool("skip-migrations", false, "do not run schema migrations on start")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	if !*skipMigrations {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	svc := store.NewService(
		repository.NewUserRepository(dbPool),
		repository.NewTaskRepository(dbPool),
		logger,
	)
	routes := store.NewHandlers(svc, dbPool, cfg.Environment, logger)
	httpServer := server.NewHTTPServer("store", cfg, cfg.Store, logger, routes)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, dbPool)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, db *pgxpool.Pool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	db.Close()
	logger.Info().Msg("store exited cleanly")
}
