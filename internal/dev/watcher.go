// Package dev holds development-time tooling: the file watcher behind the
// auto-reload feature.
package dev

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// watchedExtensions are the file types whose changes trigger a reload.
var watchedExtensions = map[string]struct{}{
	".go":   {},
	".html": {},
	".htm":  {},
	".js":   {},
	".ts":   {},
	".css":  {},
	".json": {},
}

// ignoredParts are path segments that are never scanned.
var ignoredParts = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"dist":         {},
	"tmp":          {},
	"vendor":       {},
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories to scan.
	Paths []string

	// Interval is the scan period (default 1s).
	Interval time.Duration
}

// Watcher polls file modification times and reports changes. Polling keeps
// the watcher dependency-free and portable; the scan set is small enough
// that a 1s period costs nothing noticeable.
type Watcher struct {
	config WatcherConfig
	logger *slog.Logger

	mu       sync.Mutex
	onChange func(path string)
}

// NewWatcher creates a watcher for the given configuration.
func NewWatcher(config WatcherConfig, logger *slog.Logger) *Watcher {
	if config.Interval == 0 {
		config.Interval = time.Second
	}
	if len(config.Paths) == 0 {
		config.Paths = []string{"."}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		config: config,
		logger: logger.With("component", "dev.watcher"),
	}
}

// OnChange sets the callback invoked with the first changed path per scan.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Start scans until ctx is cancelled. Blocking; run it on its own
// goroutine.
func (w *Watcher) Start(ctx context.Context) {
	previous := w.snapshot()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := w.snapshot()
			if changed := firstChange(previous, current); changed != "" {
				w.logger.Debug("change detected", "path", changed)
				w.mu.Lock()
				fn := w.onChange
				w.mu.Unlock()
				if fn != nil {
					fn(changed)
				}
			}
			previous = current
		}
	}
}

// snapshot walks the watched paths and records the mtime of every watched
// file.
func (w *Watcher) snapshot() map[string]time.Time {
	files := make(map[string]time.Time)
	for _, root := range w.config.Paths {
		filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if _, skip := ignoredParts[d.Name()]; skip && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := watchedExtensions[ext]; !ok {
				return nil
			}
			if info, err := d.Info(); err == nil {
				files[path] = info.ModTime()
			}
			return nil
		})
	}
	return files
}

// firstChange returns a path that was added, removed, or modified between
// two snapshots, or "" when nothing changed.
func firstChange(previous, current map[string]time.Time) string {
	for path, mtime := range current {
		if prev, ok := previous[path]; !ok || !prev.Equal(mtime) {
			return path
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			return path
		}
	}
	return ""
}
