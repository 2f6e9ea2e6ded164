package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"mcstatus/internal/api"
	"mcstatus/internal/config"
	"mcstatus/internal/favicon"
	"mcstatus/internal/logging"
	"mcstatus/internal/metrics"
	"mcstatus/internal/middleware"
	"mcstatus/internal/poller"
	"mcstatus/internal/probe"
	"mcstatus/internal/status"
)

const shutdownTimeout = 10 * time.Second

func run(parent context.Context, configPath string, f flags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	logger.Debug("loaded configuration", "path", configPath, "servers", len(cfg.Servers))

	// ── Status cache and poller ──────────────────────────────────────────────
	cache := status.NewCache(cfg.Servers)
	client := probe.New(
		probe.WithTimeout(cfg.QueryTimeout()),
		probe.WithMaxParallel(cfg.MaxParallelQueries),
	)

	opts := poller.Options{Interval: cfg.PollingInterval()}
	faviconDir := ""
	if cfg.FaviconSavePath != "" {
		opts.Favicons = favicon.NewStore(cfg.FaviconSavePath)
		faviconDir = opts.Favicons.Dir()
	}
	p := poller.New(cache, client, opts, logger.Logger)

	// ── Config watch ─────────────────────────────────────────────────────────
	config.Watch(v, cfg, logger.Logger, func(next config.Config) {
		if f.logLevel != "" {
			return
		}
		level, err := logging.ParseLevel(next.LogLevel)
		if err != nil {
			logger.Warn("hot-reload: invalid log level", "level", next.LogLevel)
			return
		}
		logger.SetLevel(level)
		logger.Info("hot-reload applied", "log_level", next.LogLevel)
	})

	// ── API server ───────────────────────────────────────────────────────────
	chain := []middleware.Middleware{
		middleware.Logger(logger.With("component", "api")),
		middleware.CORS(),
	}
	if cfg.RateLimit.Enabled {
		chain = append(chain, middleware.RateLimiter(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger.Logger))
	}
	if cfg.Auth.Enabled {
		chain = append(chain, middleware.JWTAuth(cfg.Auth.Secret, cfg.Auth.Exclude, logger.Logger))
	}

	srv := api.New(api.NewRegistry(cfg.Servers, cache), api.Options{
		Addr:       cfg.ListenAddr(),
		Version:    version,
		StartTime:  time.Now(),
		Middleware: chain,
		Metrics:    metrics.Handler(),
		Logger:     logger.Logger,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("mcstatus started",
		"version", version,
		"servers", cache.Len(),
		"addr", cfg.ListenAddr(),
		"polling_interval", cfg.PollingInterval(),
		"query_timeout", client.Timeout(),
		"max_parallel_queries", cfg.MaxParallelQueries,
		"favicon_dir", faviconDir,
		"rate_limit", cfg.RateLimit.Enabled,
		"auth", cfg.Auth.Enabled,
	)

	p.Start(ctx)

	// ── Shutdown ─────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-p.Done():
		runErr = p.Err()
	}
	p.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		runErr = errors.Join(runErr, fmt.Errorf("api shutdown: %w", err))
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("mcstatus stopped")
	return nil
}
