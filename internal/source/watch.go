package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures a gallery inbox watcher
type WatchConfig struct {
	// Dir is the directory to watch (not recursive)
	Dir string
	// InitialScan emits images already in Dir before watching
	InitialScan bool
	// Debounce coalesces the create/write bursts of a single file copy
	Debounce time.Duration
}

// Watch emits the path of every image written into cfg.Dir until ctx is done.
// The returned channel is closed when the watcher stops.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan string, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("no directory to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(cfg.Dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", cfg.Dir, err)
	}

	var initial []string
	if cfg.InitialScan {
		entries, err := os.ReadDir(cfg.Dir)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("reading %s: %w", cfg.Dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && IsImageFile(e.Name()) {
				initial = append(initial, filepath.Join(cfg.Dir, e.Name()))
			}
		}
	}

	paths := make(chan string, 64)
	go func() {
		defer close(paths)
		defer w.Close()

		emit := func(p string) bool {
			select {
			case paths <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		pending := map[string]struct{}{}
		timer := time.NewTimer(cfg.Debounce)
		if !timer.Stop() {
			<-timer.C
		}

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				// Renames carry the old name; the new name arrives as Create
				if !IsImageFile(e.Name) || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				pending[e.Name] = struct{}{}
				timer.Reset(cfg.Debounce)
			case <-timer.C:
				for p := range pending {
					delete(pending, p)
					if _, err := os.Stat(p); err != nil {
						continue
					}
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher error", "dir", cfg.Dir, "error", err)
			}
		}
	}()

	return paths, nil
}
