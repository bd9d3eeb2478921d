package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ReloadFunc receives the difference between the previous and the freshly
// loaded config, together with the new config.
type ReloadFunc func(diff ConfigDiff, next *Config)

// Watcher keeps the live configuration in sync with a file on disk. Edits
// that fail to parse or validate are logged and skipped; the last good
// config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	sum     [sha256.Size]byte
	modTime time.Time
	size    int64
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger. By default the watcher logs to
// whatever slog.Default() is at the time of logging.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads path and returns a Watcher holding it. Polling starts with
// [Watcher.Run].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second}
	for _, opt := range opts {
		opt(w)
	}
	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.sum, w.modTime, w.size = snap.cfg, snap.sum, snap.modTime, snap.size
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done and calls onChange for every accepted
// edit. It always returns nil.
func (w *Watcher) Run(ctx context.Context, onChange ReloadFunc) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if diff, next, ok := w.Check(); ok && onChange != nil {
			onChange(diff, next)
		}
	}
}

// Check reloads the file if its size, modification time or content changed.
// ok is false when nothing changed or the new content was rejected.
func (w *Watcher) Check() (diff ConfigDiff, next *Config, ok bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger().Warn("config: cannot stat file", "path", w.path, "err", err)
		return ConfigDiff{}, nil, false
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.modTime) && info.Size() == w.size
	w.mu.Unlock()
	if unchanged {
		return ConfigDiff{}, nil, false
	}

	snap, err := w.read()
	if err != nil {
		w.logger().Warn("config: rejected edit, keeping previous config", "path", w.path, "err", err)
		// Remember the stat so the same broken file is not re-parsed every tick.
		w.mu.Lock()
		w.modTime, w.size = info.ModTime(), info.Size()
		w.mu.Unlock()
		return ConfigDiff{}, nil, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.modTime, w.size = snap.modTime, snap.size
	if snap.sum == w.sum {
		return ConfigDiff{}, nil, false
	}
	prev := w.current
	w.current, w.sum = snap.cfg, snap.sum
	w.logger().Info("config: reloaded", "path", w.path)
	return Diff(prev, snap.cfg), snap.cfg, true
}

func (w *Watcher) logger() *slog.Logger {
	if w.log != nil {
		return w.log
	}
	return slog.Default()
}

type snapshot struct {
	cfg     *Config
	sum     [sha256.Size]byte
	modTime time.Time
	size    int64
}

func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), modTime: info.ModTime(), size: info.Size()}, nil
}
