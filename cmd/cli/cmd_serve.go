package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cxd309/trip-engine/internal/api"
	"github.com/cxd309/trip-engine/internal/cache"
	"github.com/cxd309/trip-engine/internal/config"
	"github.com/cxd309/trip-engine/internal/logging"
	"github.com/cxd309/trip-engine/internal/store"
	"github.com/cxd309/trip-engine/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Serve simulations, run history and acceleration curves over HTTP. Configuration comes from TRIP_* environment variables and .env files.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Environment)
	logger.Info().Str("env", cfg.Environment).Msg("trip-engine starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resultCache, err := cache.New(cache.Config{
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		Size:           cfg.CacheSize,
		TTL:            cfg.CacheTTL,
		DisableOnError: true,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer resultCache.Close()

	var st *store.Store
	if cfg.SQLitePath != "" {
		st, err = store.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	} else {
		logger.Warn().Msg("TRIP_SQLITE_PATH not set, run history and saved curves are disabled")
	}

	handler, err := api.New(api.Options{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		MaxSteps:    cfg.MaxSteps,
	}, resultCache, st, telemetry.New(), logger).Handler()
	if err != nil {
		return fmt.Errorf("initialize api: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down gracefully...")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("trip-engine stopped")
	return nil
}
