package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/FairForge/pollstore/internal/engine"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisDriver(t *testing.T) (*RedisDriver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	d, err := NewRedisDriver(context.Background(), &redis.Options{Addr: mr.Addr()}, "pollstore:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, mr
}

func TestRedisDriver(t *testing.T) {
	d, _ := newTestRedisDriver(t)
	exerciseDriver(t, d)
}

func TestRedisDriver_KeyLayout(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestRedisDriver(t)
	when := time.Unix(1700000000, 0).UTC()

	_, err := d.Put(ctx, engine.Blob{Path: "upload/a.ts", Data: []byte("bytes"), Modified: when})
	require.NoError(t, err)

	assert.True(t, mr.Exists("pollstore:upload/a.ts"))
	assert.Equal(t, "bytes", mr.HGet("pollstore:upload/a.ts", "data"))

	blob, err := d.Get(ctx, "upload/a.ts")
	require.NoError(t, err)
	assert.True(t, blob.Modified.Equal(when))
}

func TestRedisDriver_StatIgnoresOtherKeys(t *testing.T) {
	ctx := context.Background()
	d, mr := newTestRedisDriver(t)
	require.NoError(t, mr.Set("unrelated", "x"))

	_, err := d.Put(ctx, engine.Blob{Path: "a", Data: []byte("1234")})
	require.NoError(t, err)

	stats, err := d.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Blobs)
	assert.Equal(t, int64(4), stats.Bytes)
}

func TestRedisDriver_Unreachable(t *testing.T) {
	_, err := NewRedisDriver(context.Background(), &redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}, "", zap.NewNop())
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
