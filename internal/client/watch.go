package client

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher uploads files as they are created or rewritten in a folder.
type Watcher struct {
	uploader *Uploader
	folder   string
	prefix   string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	// OnResult, when set, sees every upload result.
	OnResult func(Result)
}

// NewWatcher starts watching folder. Events are only processed once Run is
// called, but none that happen after NewWatcher returns are lost.
func NewWatcher(uploader *Uploader, folder string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(folder); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", folder, err)
	}

	return &Watcher{
		uploader: uploader,
		folder:   folder,
		prefix:   strings.Trim(filepath.ToSlash(folder), "/"),
		watcher:  fw,
		logger:   logger,
	}, nil
}

// Run processes events until ctx ends. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.logger.Info("watching folder", zap.String("folder", w.folder))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}

			item := Item{
				Local:  event.Name,
				Remote: path.Join(w.prefix, filepath.Base(event.Name)),
			}
			res := w.uploader.Upload(ctx, item)
			w.logger.Debug("uploaded changed file",
				zap.String("local", item.Local),
				zap.String("remote", item.Remote),
				zap.Int("status", res.Status),
				zap.Error(res.Err))
			if w.OnResult != nil {
				w.OnResult(res)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}
