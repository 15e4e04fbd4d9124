package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overrides configuration from POLLSTORE_* environment variables.
// Malformed values are ignored.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("POLLSTORE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if port := os.Getenv("POLLSTORE_ADMIN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.AdminPort = p
		}
	}
	if v := os.Getenv("POLLSTORE_POLL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.PollTimeout = d
		}
	}
	if v := os.Getenv("POLLSTORE_MAX_REQUESTS_PER_CONNECTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxRequestsPerConnection = n
		}
	}

	if logLevel := os.Getenv("POLLSTORE_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("POLLSTORE_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	// Storage settings
	cfg.Storage.Driver = GetEnvOrDefault("POLLSTORE_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Compression = GetEnvOrDefault("POLLSTORE_STORAGE_COMPRESSION", cfg.Storage.Compression)
	cfg.Storage.Local.Path = GetEnvOrDefault("POLLSTORE_LOCAL_PATH", cfg.Storage.Local.Path)
	cfg.Storage.Redis.Addr = GetEnvOrDefault("POLLSTORE_REDIS_ADDR", cfg.Storage.Redis.Addr)
	cfg.Storage.Redis.Password = GetEnvOrDefault("POLLSTORE_REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Redis.Prefix = GetEnvOrDefault("POLLSTORE_REDIS_PREFIX", cfg.Storage.Redis.Prefix)
	cfg.Storage.S3.Endpoint = GetEnvOrDefault("POLLSTORE_S3_ENDPOINT", cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.Bucket = GetEnvOrDefault("POLLSTORE_S3_BUCKET", cfg.Storage.S3.Bucket)
	cfg.Storage.S3.AccessKey = GetEnvOrDefault("POLLSTORE_S3_ACCESS_KEY", cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = GetEnvOrDefault("POLLSTORE_S3_SECRET_KEY", cfg.Storage.S3.SecretKey)
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
