// Package main runs the flagscope syncer, which publishes the newest datafile
// revision of every SDK key from Postgres into Redis.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/config"
	"github.com/rafaeljc/flagscope/internal/database"
	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/store"
	"github.com/rafaeljc/flagscope/internal/syncer"
	"github.com/rafaeljc/flagscope/migrations"
)

const poolMonitorInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLog := logger.New(&cfg.App).With(slog.String("component", "syncer"))
	cfg.LogConfig(appLog)

	if !cfg.Syncer.Enabled {
		appLog.Warn("syncer disabled by configuration, exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, appLog)

	// -------------------------------------------------------------------------
	// 2. Infrastructure
	// -------------------------------------------------------------------------
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	go database.RunPoolMonitor(ctx, pool, poolMonitorInterval)

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			return err
		}
		appLog.Info("database migrations applied")
	}

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	go cache.RunPoolMonitor(ctx, redisClient, poolMonitorInterval)

	publisher := cache.NewRedisCache(redisClient)
	defer publisher.Close()

	obs := observability.NewServer(appLog, &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(redisClient),
	)
	obs.Start()

	// -------------------------------------------------------------------------
	// 3. Run
	// -------------------------------------------------------------------------
	svc := syncer.New(appLog, cfg.Syncer, store.NewPostgresStore(pool), publisher)
	runErr := svc.Run(ctx)

	// -------------------------------------------------------------------------
	// 4. Graceful Shutdown
	// -------------------------------------------------------------------------
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		appLog.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	appLog.Info("service exited")
	return runErr
}
