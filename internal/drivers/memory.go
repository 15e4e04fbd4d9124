package drivers

import (
	"bytes"
	"context"
	"sync"

	"github.com/FairForge/pollstore/internal/engine"
	"go.uber.org/zap"
)

// MemoryDriver keeps blobs in process memory.
type MemoryDriver struct {
	mu     sync.RWMutex
	blobs  map[string]engine.Blob
	logger *zap.Logger
}

func NewMemoryDriver(logger *zap.Logger) *MemoryDriver {
	return &MemoryDriver{
		blobs:  make(map[string]engine.Blob),
		logger: logger,
	}
}

func (d *MemoryDriver) Name() string {
	return "memory"
}

func (d *MemoryDriver) Get(ctx context.Context, path string) (engine.Blob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blob, ok := d.blobs[path]
	if !ok {
		return engine.Blob{}, engine.ErrNotFound(path)
	}
	return blob, nil
}

func (d *MemoryDriver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	blob.Data = bytes.Clone(blob.Data)
	if blob.Data == nil {
		blob.Data = []byte{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, existed := d.blobs[blob.Path]
	d.blobs[blob.Path] = blob
	return existed, nil
}

func (d *MemoryDriver) Stat(ctx context.Context) (engine.DriverStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := engine.DriverStats{Blobs: len(d.blobs)}
	for _, blob := range d.blobs {
		stats.Bytes += blob.Size()
	}
	return stats, nil
}

func (d *MemoryDriver) HealthCheck(ctx context.Context) error {
	return nil
}
