package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
)

// debounceWindow coalesces the burst of write events an editor emits while
// saving one file.
const debounceWindow = 500 * time.Millisecond

// Watch re-ingests course documents in dir whenever they are created or
// modified. Blocks until ctx is done.
func (u *UseCase) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", dir))
	}

	logger := logging.From(ctx)
	logger.Info("watching for document changes", "dir", dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !documentExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)

		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) < debounceWindow {
					continue
				}
				delete(pending, path)

				if _, _, err := u.IngestFile(ctx, path); err != nil {
					if errorsIsFatal(err) {
						return err
					}
					logger.Warn("failed to re-ingest document", "path", path, "error", err)
					continue
				}
			}
		}
	}
}
