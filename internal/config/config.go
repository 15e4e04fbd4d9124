package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port      int `yaml:"port"`
	AdminPort int `yaml:"admin_port"`

	// PollTimeout bounds how long a GET waits for a path that is not there yet.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// MaxRequestsPerConnection is the keep-alive budget; 0 disables it.
	MaxRequestsPerConnection int   `yaml:"max_requests_per_connection"`
	MaxBodyBytes             int64 `yaml:"max_body_bytes"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver      string      `yaml:"driver"`      // memory, local, redis, s3
	Compression string      `yaml:"compression"` // none, zstd, snappy
	LockStripes int         `yaml:"lock_stripes"`
	Retries     int         `yaml:"retries"`
	Local       LocalConfig `yaml:"local"`
	Redis       RedisConfig `yaml:"redis"`
	S3          S3Config    `yaml:"s3"`
}

type LocalConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage driver names
const (
	DriverMemory = "memory"
	DriverLocal  = "local"
	DriverRedis  = "redis"
	DriverS3     = "s3"
)

// Compression algorithms
const (
	CompressionNone   = "none"
	CompressionZstd   = "zstd"
	CompressionSnappy = "snappy"
)

// Default returns the configuration the server runs with when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                     9000,
			AdminPort:                9090,
			PollTimeout:              5 * time.Second,
			MaxRequestsPerConnection: 40,
			MaxBodyBytes:             64 << 20,
			ReadHeaderTimeout:        5 * time.Second,
			IdleTimeout:              10 * time.Second,
			ShutdownTimeout:          30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:      DriverMemory,
			Compression: CompressionNone,
			LockStripes: 256,
			Retries:     2,
			Local: LocalConfig{
				Path: "/tmp/pollstore-data",
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "pollstore:",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be served.
func (c *Config) Validate() error {
	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("config: invalid port: %d", s.Port)
	}
	if s.AdminPort < 0 || s.AdminPort > 65535 {
		return fmt.Errorf("config: invalid admin port: %d", s.AdminPort)
	}
	if s.AdminPort != 0 && s.AdminPort == s.Port {
		return fmt.Errorf("config: admin port must differ from port %d", s.Port)
	}
	if s.PollTimeout <= 0 {
		return fmt.Errorf("config: poll_timeout must be positive, got %s", s.PollTimeout)
	}
	if s.MaxRequestsPerConnection < 0 {
		return fmt.Errorf("config: max_requests_per_connection must not be negative")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max_body_bytes must be positive")
	}
	if s.WriteTimeout != 0 && s.WriteTimeout <= s.PollTimeout {
		return fmt.Errorf("config: write_timeout %s must exceed poll_timeout %s", s.WriteTimeout, s.PollTimeout)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverLocal:
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("config: storage.local.path is required for the local driver")
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("config: storage.redis.addr is required for the redis driver")
		}
		// Stat scans by prefix, so an empty one would count foreign keys.
		if c.Storage.Redis.Prefix == "" {
			return fmt.Errorf("config: storage.redis.prefix is required for the redis driver")
		}
	case DriverS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("config: storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver: %q", c.Storage.Driver)
	}

	if c.Storage.Retries < 0 {
		return fmt.Errorf("config: storage.retries must not be negative")
	}

	switch c.Storage.Compression {
	case "", CompressionNone, CompressionZstd, CompressionSnappy:
	default:
		return fmt.Errorf("config: unknown compression: %q", c.Storage.Compression)
	}

	return nil
}
