// Package main runs the flagscope API service.
//
// It is the composition root for the datafile upload endpoints and the SDK
// read endpoints, wiring Postgres, the Redis L2 cache, the in-process L1
// cache and the observability server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafaeljc/flagscope/internal/api"
	"github.com/rafaeljc/flagscope/internal/cache"
	"github.com/rafaeljc/flagscope/internal/config"
	"github.com/rafaeljc/flagscope/internal/database"
	"github.com/rafaeljc/flagscope/internal/logger"
	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/store"
	"github.com/rafaeljc/flagscope/internal/viewer"
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

	appLog := logger.New(&cfg.App).With(slog.String("component", "api"))
	cfg.LogConfig(appLog)

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

	l2 := cache.NewRedisCache(redisClient)
	defer l2.Close()

	l1, err := cache.NewMemoryCache(cfg.Cache.L1Capacity, cfg.Cache.L1TTL)
	if err != nil {
		return fmt.Errorf("failed to create view cache: %w", err)
	}
	defer l1.Close()
	go l1.RunMetricsCollector(ctx, poolMonitorInterval)

	// -------------------------------------------------------------------------
	// 3. Wiring
	// -------------------------------------------------------------------------
	// Production config validation already requires a key hash.
	skipAuth := cfg.Server.API.APIKeyHash == ""
	if skipAuth {
		appLog.Warn("no api key hash configured, datafile endpoints are unauthenticated")
	}

	views := viewer.NewService(appLog, l2, l1)
	handler := api.NewAPI(appLog, store.NewPostgresStore(pool), views, api.Options{
		APIKeyHash:       cfg.Server.API.APIKeyHash,
		SkipAuth:         skipAuth,
		MaxDatafileBytes: cfg.Server.API.MaxDatafileBytes,
	})

	obs := observability.NewServer(appLog, &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(redisClient),
	)
	obs.Start()

	srv := &http.Server{
		Addr:              cfg.Server.API.Address(),
		Handler:           handler.Router,
		ReadTimeout:       cfg.Server.API.ReadTimeout,
		WriteTimeout:      cfg.Server.API.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.API.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.API.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.API.MaxHeaderBytes,
	}

	// -------------------------------------------------------------------------
	// 4. Serve
	// -------------------------------------------------------------------------
	errChan := make(chan error, 1)
	go func() {
		appLog.Info("starting api server",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", cfg.Server.API.TLSEnabled),
		)
		var serveErr error
		if cfg.Server.API.TLSEnabled {
			serveErr = srv.ListenAndServeTLS(cfg.Server.API.TLSCert, cfg.Server.API.TLSKey)
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server failed: %w", serveErr)
		}
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		appLog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("api server shutdown failed", slog.String("error", err.Error()))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		appLog.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	appLog.Info("service exited")
	return runErr
}
