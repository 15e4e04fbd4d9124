package drivers

import (
	"bytes"
	"context"
	"testing"

	"github.com/FairForge/pollstore/internal/config"
	"github.com/FairForge/pollstore/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCompressionDriver(t *testing.T) {
	for _, algo := range []string{config.CompressionZstd, config.CompressionSnappy} {
		t.Run(algo, func(t *testing.T) {
			d, err := WithCompression(NewMemoryDriver(zap.NewNop()), algo, zap.NewNop())
			require.NoError(t, err)
			exerciseDriver(t, d)
		})
	}
}

func TestCompressionDriver_StoresCompressedBytes(t *testing.T) {
	ctx := context.Background()
	payload := bytes.Repeat([]byte("segment-0001.ts "), 1024)

	for _, algo := range []string{config.CompressionZstd, config.CompressionSnappy} {
		t.Run(algo, func(t *testing.T) {
			backend := NewMemoryDriver(zap.NewNop())
			d, err := WithCompression(backend, algo, zap.NewNop())
			require.NoError(t, err)

			_, err = d.Put(ctx, engine.Blob{Path: "big", Data: payload})
			require.NoError(t, err)

			raw, err := backend.Get(ctx, "big")
			require.NoError(t, err)
			assert.Less(t, len(raw.Data), len(payload))

			blob, err := d.Get(ctx, "big")
			require.NoError(t, err)
			assert.Equal(t, payload, blob.Data)
		})
	}
}

func TestCompressionDriver_CorruptData(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryDriver(zap.NewNop())
	d, err := WithCompression(backend, config.CompressionZstd, zap.NewNop())
	require.NoError(t, err)

	_, err = backend.Put(ctx, engine.Blob{Path: "bad", Data: []byte("not a zstd frame")})
	require.NoError(t, err)

	_, err = d.Get(ctx, "bad")
	assert.ErrorContains(t, err, "decompress")
}

func TestWithCompression_None(t *testing.T) {
	backend := NewMemoryDriver(zap.NewNop())
	d, err := WithCompression(backend, config.CompressionNone, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, backend, d)
}
