package drivers

import (
	"context"
	"fmt"
	"os"

	"github.com/FairForge/pollstore/internal/config"
	"github.com/FairForge/pollstore/internal/engine"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Open builds the driver described by cfg. Network drivers are wrapped with
// retries, and any driver with compression when one is configured.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (engine.Driver, error) {
	var (
		driver engine.Driver
		err    error
	)

	switch cfg.Driver {
	case config.DriverMemory, "":
		driver = NewMemoryDriver(logger)

	case config.DriverLocal:
		if err := os.MkdirAll(cfg.Local.Path, 0750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		driver = NewLocalDriver(cfg.Local.Path, logger)

	case config.DriverRedis:
		driver, err = NewRedisDriver(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix, logger)

	case config.DriverS3:
		driver, err = NewS3Driver(ctx, cfg.S3, logger)

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if remote := cfg.Driver == config.DriverRedis || cfg.Driver == config.DriverS3; remote && cfg.Retries > 0 {
		driver = NewRetryableDriver(driver, NewRetryPolicy(
			WithMaxAttempts(cfg.Retries+1),
			WithLogger(logger)))
	}

	return WithCompression(driver, cfg.Compression, logger)
}
