package drivers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/FairForge/pollstore/internal/engine"
	"go.uber.org/zap"
)

const (
	tempPrefix = ".pollstore-tmp-"
	blobSuffix = ".blob"
)

// LocalDriver implements the Driver interface for local filesystem.
//
// Every blob is one file directly under basePath, named after the escaped
// key. Keys never become directories, so "p" and "p/q" can both exist and
// the filesystem never folds two keys into one file.
type LocalDriver struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalDriver creates a new local filesystem driver
func NewLocalDriver(basePath string, logger *zap.Logger) *LocalDriver {
	return &LocalDriver{
		basePath: basePath,
		logger:   logger,
	}
}

// Name returns the driver name
func (d *LocalDriver) Name() string {
	return "local"
}

// fileName maps a key to its file. PathEscape escapes "/", so the result is
// a single path element.
func fileName(path string) string {
	return url.PathEscape(path) + blobSuffix
}

func (d *LocalDriver) fullPath(path string) string {
	return filepath.Join(d.basePath, fileName(path))
}

// Get reads the file stored for path
func (d *LocalDriver) Get(ctx context.Context, path string) (engine.Blob, error) {
	fullPath := d.fullPath(path)

	d.logger.Debug("LocalDriver.Get",
		zap.String("path", path),
		zap.String("fullPath", fullPath))

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return engine.Blob{}, engine.ErrNotFound(path)
		}
		return engine.Blob{}, fmt.Errorf("stat file: %w", err)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return engine.Blob{}, engine.ErrNotFound(path)
		}
		return engine.Blob{}, fmt.Errorf("read file: %w", err)
	}

	return engine.Blob{
		Path:     path,
		Data:     data,
		Modified: info.ModTime().UTC(),
	}, nil
}

// Put writes the blob to a temporary file and renames it into place, so a
// concurrent reader sees either the old file or the new one.
func (d *LocalDriver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	fullPath := d.fullPath(blob.Path)

	if err := os.MkdirAll(d.basePath, 0750); err != nil {
		return false, fmt.Errorf("create storage directory: %w", err)
	}

	existed := false
	if _, err := os.Stat(fullPath); err == nil {
		existed = true
	}

	file, err := os.CreateTemp(d.basePath, tempPrefix+"*")
	if err != nil {
		return false, fmt.Errorf("create file: %w", err)
	}
	tmpName := file.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := file.Write(blob.Data); err != nil {
		_ = file.Close()
		return false, fmt.Errorf("failed to write data: %w", err)
	}
	if err := file.Close(); err != nil {
		return false, fmt.Errorf("close file: %w", err)
	}
	if !blob.Modified.IsZero() {
		if err := os.Chtimes(tmpName, blob.Modified, blob.Modified); err != nil {
			return false, fmt.Errorf("set modification time: %w", err)
		}
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return false, fmt.Errorf("rename into place: %w", err)
	}

	return existed, nil
}

// Stat counts the blob files in the base directory
func (d *LocalDriver) Stat(ctx context.Context) (engine.DriverStats, error) {
	var stats engine.DriverStats

	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return engine.DriverStats{}, fmt.Errorf("read %s: %w", d.basePath, err)
	}
	for _, entry := range entries {
		// Temp files never carry the blob suffix.
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), blobSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // Removed while listing
		}
		stats.Blobs++
		stats.Bytes += info.Size()
	}
	return stats, nil
}

// HealthCheck verifies the driver is working
func (d *LocalDriver) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(d.basePath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("health check failed: %s is not a directory", d.basePath)
	}
	return nil
}
