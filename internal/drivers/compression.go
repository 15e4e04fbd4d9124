// internal/drivers/compression.go
package drivers

import (
	"context"
	"fmt"

	"github.com/FairForge/pollstore/internal/config"
	"github.com/FairForge/pollstore/internal/engine"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Compressor compresses whole blobs
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() string
}

// ZstdCompressor implements Compressor using zstd. EncodeAll and DecodeAll
// are safe for concurrent use.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewZstdCompressor() (*ZstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(256*1024*1024))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return c.decoder.DecodeAll(data, nil)
}

func (c *ZstdCompressor) Algorithm() string {
	return config.CompressionZstd
}

// SnappyCompressor implements Compressor using snappy block format
type SnappyCompressor struct{}

func (SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (SnappyCompressor) Algorithm() string {
	return config.CompressionSnappy
}

// CompressionDriver compresses blob bytes before handing them to backend.
type CompressionDriver struct {
	backend    engine.Driver
	compressor Compressor
	logger     *zap.Logger
}

func NewCompressionDriver(backend engine.Driver, compressor Compressor, logger *zap.Logger) *CompressionDriver {
	return &CompressionDriver{
		backend:    backend,
		compressor: compressor,
		logger:     logger,
	}
}

// WithCompression wraps driver for the named algorithm. "none" and "" return
// driver unchanged.
func WithCompression(driver engine.Driver, algorithm string, logger *zap.Logger) (engine.Driver, error) {
	switch algorithm {
	case "", config.CompressionNone:
		return driver, nil
	case config.CompressionZstd:
		c, err := NewZstdCompressor()
		if err != nil {
			return nil, err
		}
		return NewCompressionDriver(driver, c, logger), nil
	case config.CompressionSnappy:
		return NewCompressionDriver(driver, SnappyCompressor{}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}

func (c *CompressionDriver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	compressed, err := c.compressor.Compress(blob.Data)
	if err != nil {
		return false, fmt.Errorf("compress data: %w", err)
	}

	c.logger.Debug("compressed blob",
		zap.String("path", blob.Path),
		zap.Int("raw", len(blob.Data)),
		zap.Int("stored", len(compressed)))

	blob.Data = compressed
	return c.backend.Put(ctx, blob)
}

func (c *CompressionDriver) Get(ctx context.Context, path string) (engine.Blob, error) {
	blob, err := c.backend.Get(ctx, path)
	if err != nil {
		return engine.Blob{}, err
	}

	data, err := c.compressor.Decompress(blob.Data)
	if err != nil {
		return engine.Blob{}, fmt.Errorf("decompress %s: %w", path, err)
	}
	blob.Data = data
	return blob, nil
}

// Stat reports stored (compressed) bytes
func (c *CompressionDriver) Stat(ctx context.Context) (engine.DriverStats, error) {
	return c.backend.Stat(ctx)
}

func (c *CompressionDriver) HealthCheck(ctx context.Context) error {
	return c.backend.HealthCheck(ctx)
}

func (c *CompressionDriver) Name() string {
	return fmt.Sprintf("compressed-%s(%s)", c.compressor.Algorithm(), c.backend.Name())
}

// Close closes the wrapped driver when it holds resources.
func (c *CompressionDriver) Close() error {
	if closer, ok := c.backend.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
