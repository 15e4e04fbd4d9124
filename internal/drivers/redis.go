package drivers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/FairForge/pollstore/internal/engine"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hash fields of a stored blob
const (
	fieldData     = "data"
	fieldModified = "modified"
)

// RedisDriver stores each blob as a hash holding its bytes and write time.
type RedisDriver struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisDriver connects to Redis and verifies the connection.
func NewRedisDriver(ctx context.Context, opts *redis.Options, prefix string, logger *zap.Logger) (*RedisDriver, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 2 * time.Second
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDriverFromClient(client, prefix, logger), nil
}

// NewRedisDriverFromClient wraps an existing client.
func NewRedisDriverFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisDriver {
	return &RedisDriver{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (d *RedisDriver) Name() string {
	return "redis"
}

func (d *RedisDriver) key(path string) string {
	return d.prefix + path
}

func (d *RedisDriver) Get(ctx context.Context, path string) (engine.Blob, error) {
	vals, err := d.client.HGetAll(ctx, d.key(path)).Result()
	if err != nil {
		return engine.Blob{}, fmt.Errorf("redis get %s: %w", path, err)
	}
	data, ok := vals[fieldData]
	if !ok {
		return engine.Blob{}, engine.ErrNotFound(path)
	}

	blob := engine.Blob{Path: path, Data: []byte(data)}
	if nanos, err := strconv.ParseInt(vals[fieldModified], 10, 64); err == nil {
		blob.Modified = time.Unix(0, nanos).UTC()
	}
	return blob, nil
}

// Put replaces both fields inside MULTI/EXEC so readers never see a blob
// with new bytes and an old timestamp.
func (d *RedisDriver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	key := d.key(blob.Path)

	var exists *redis.IntCmd
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		pipe.HSet(ctx, key,
			fieldData, blob.Data,
			fieldModified, blob.Modified.UnixNano())
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis put %s: %w", blob.Path, err)
	}

	return exists.Val() > 0, nil
}

func (d *RedisDriver) Stat(ctx context.Context) (engine.DriverStats, error) {
	var stats engine.DriverStats

	iter := d.client.Scan(ctx, 0, d.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := d.client.Do(ctx, "HSTRLEN", iter.Val(), fieldData).Int64()
		if err != nil {
			return engine.DriverStats{}, fmt.Errorf("redis strlen: %w", err)
		}
		stats.Blobs++
		stats.Bytes += n
	}
	if err := iter.Err(); err != nil {
		return engine.DriverStats{}, fmt.Errorf("redis scan: %w", err)
	}
	return stats, nil
}

func (d *RedisDriver) HealthCheck(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (d *RedisDriver) Close() error {
	return d.client.Close()
}
