package drivers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FairForge/pollstore/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalDriver(t *testing.T) {
	exerciseDriver(t, NewLocalDriver(t.TempDir(), zap.NewNop()))
}

// TestLocalDriver_HealthCheck tests health check functionality
func TestLocalDriver_HealthCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("HealthyDriver", func(t *testing.T) {
		driver := NewLocalDriver(t.TempDir(), zap.NewNop())
		assert.NoError(t, driver.HealthCheck(ctx), "Health check should pass for valid path")
	})

	t.Run("UnhealthyDriver", func(t *testing.T) {
		driver := NewLocalDriver("/nonexistent/path/12345", zap.NewNop())
		err := driver.HealthCheck(ctx)
		assert.Error(t, err, "Health check should fail for invalid path")
		assert.Contains(t, err.Error(), "health check failed")
	})
}

func TestLocalDriver_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := NewLocalDriver(dir, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := d.Put(ctx, engine.Blob{Path: "upload/x.ts", Data: []byte("v"), Modified: time.Now()})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "upload%2Fx.ts.blob", entries[0].Name())
}

func TestLocalDriver_ModifiedTime(t *testing.T) {
	ctx := context.Background()
	d := NewLocalDriver(t.TempDir(), zap.NewNop())
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := d.Put(ctx, engine.Blob{Path: "dated", Data: []byte("x"), Modified: when})
	require.NoError(t, err)

	blob, err := d.Get(ctx, "dated")
	require.NoError(t, err)
	assert.True(t, blob.Modified.Equal(when), "got %s", blob.Modified)
}

func TestLocalDriver_KeysNeverShareAFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := NewLocalDriver(dir, zap.NewNop())

	// Pairs a path-normalizing filesystem layout would fold together, and
	// a key that is also the parent of another key.
	keys := []string{"p", "p/q", "a", "a/", "x/y", "x/./y", "m/n", "m//n"}
	for _, key := range keys {
		existed, err := d.Put(ctx, engine.Blob{Path: key, Data: []byte("data of " + key)})
		require.NoError(t, err, key)
		assert.False(t, existed, key)
	}

	for _, key := range keys {
		blob, err := d.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, "data of "+key, string(blob.Data), key)
	}

	stats, err := d.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(keys), stats.Blobs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.IsDir(), "keys must not create directories: %s", e.Name())
	}
}

func TestLocalDriver_StatSkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := NewLocalDriver(dir, zap.NewNop())

	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"123"), []byte("partial"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))
	_, err := d.Put(ctx, engine.Blob{Path: tempPrefix + "key", Data: []byte("12")})
	require.NoError(t, err)

	stats, err := d.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Blobs)
	assert.Equal(t, int64(2), stats.Bytes)
}
