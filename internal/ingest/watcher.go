package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	SkipHidden  bool          // ignore dot files and dot directories
	Debounce    time.Duration // coalesce rapid create/write bursts per path
}

// StartWatcher emits paths of supported files created or written under the roots.
// With InitialScan, files already present are emitted first. Sends block until the
// consumer reads or ctx is done. Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	wanted := func(path string) bool {
		return Allowed(path) && !(cfg.SkipHidden && IsHidden(path))
	}
	// addDir watches every directory under root and returns the wanted files found.
	addDir := func(root string) ([]string, error) {
		var found []string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if cfg.SkipHidden && path != root && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if d.Type().IsRegular() && wanted(path) {
				found = append(found, path)
			}
			return nil
		})
		return found, err
	}

	var existing []string
	for _, r := range cfg.Roots {
		found, err := addDir(r)
		if err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		existing = append(existing, found...)
	}
	if !cfg.InitialScan {
		existing = nil
	}

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		send := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range existing {
			if !send(p) {
				return
			}
		}

		pending := map[string]struct{}{}
		timer := time.NewTimer(time.Hour)
		timer.Stop()

		flush := func() bool {
			for p := range pending {
				if !send(p) {
					return false
				}
				delete(pending, p)
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				// Rename and Remove name a path that is gone; a rename target arrives as Create.
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
					continue
				}
				fi, err := os.Stat(e.Name)
				if err != nil {
					continue
				}
				if fi.IsDir() {
					if !e.Has(fsnotify.Create) || (cfg.SkipHidden && IsHidden(e.Name)) {
						continue
					}
					found, err := addDir(e.Name)
					if err != nil {
						logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
					}
					for _, p := range found {
						pending[p] = struct{}{}
					}
				} else if fi.Mode().IsRegular() && wanted(e.Name) {
					pending[e.Name] = struct{}{}
				}
				if len(pending) == 0 {
					continue
				}
				if cfg.Debounce > 0 {
					timer.Reset(cfg.Debounce)
				} else if !flush() {
					return
				}
			case <-timer.C:
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Watch imports files as they appear under the roots until ctx is done.
// Per-file failures are logged and do not stop the watch.
func (im *Importer) Watch(ctx context.Context, userID string, cfg WatchConfig) error {
	events, errs, err := StartWatcher(ctx, cfg, im.logger)
	if err != nil {
		return err
	}
	im.logger.Info("ingest.watch.start", "roots", cfg.Roots, "user_id", userID)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if _, err := im.ImportPath(ctx, userID, path); err != nil {
				im.logger.Warn("ingest.watch.file_failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			im.logger.Warn("ingest.watch.error", "error", err)
		}
	}
}
