// cmd/pollstore/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/FairForge/pollstore/internal/api"
	"github.com/FairForge/pollstore/internal/config"
	"github.com/FairForge/pollstore/internal/drivers"
	"github.com/FairForge/pollstore/internal/engine"
	"github.com/FairForge/pollstore/internal/logging"
	"github.com/FairForge/pollstore/internal/metrics"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "path to a YAML config file")
		port        = pflag.IntP("port", "p", 0, "data-plane port (overrides config and env)")
		pollTimeout = pflag.Duration("poll-timeout", 0, "how long a GET waits for a missing path")
		maxRequests = pflag.Int("max-requests", -1, "requests served per connection, 0 for unlimited")
	)
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pollstore: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *pollTimeout != 0 {
		cfg.Server.PollTimeout = *pollTimeout
	}
	if *maxRequests >= 0 {
		cfg.Server.MaxRequestsPerConnection = *maxRequests
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "pollstore: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pollstore: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := drivers.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if c, ok := driver.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	logger.Info("storage ready",
		zap.String("driver", driver.Name()),
		zap.String("compression", cfg.Storage.Compression))

	store := engine.NewStore(driver, logger, engine.WithStripes(cfg.Storage.LockStripes))
	m := metrics.New()
	if stats, err := store.Stats(ctx); err == nil {
		m.SetBlobs(stats.Blobs)
	} else {
		logger.Warn("could not count existing blobs", zap.Error(err))
	}

	server := api.NewServer(cfg, logger, store, m)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	logger.Info("server stopped", zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))
	return nil
}
