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

// Reload describes one accepted change of the config file.
type Reload struct {
	Old, New *Config
	Diff     ConfigDiff
}

// Watcher polls a config file for edits. A changed file that still
// validates replaces the current config; an invalid edit is reported once
// and the last valid config stays current.
type Watcher struct {
	path     string
	interval time.Duration

	mu      sync.Mutex
	current *Config
	mtime   time.Time
	hash    [sha256.Size]byte
	bad     [sha256.Size]byte // content last rejected, to log it only once
	hasBad  bool
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

// NewWatcher loads path and returns a watcher holding it as the current
// config. Polling starts with [Watcher.Run].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second}
	for _, o := range opts {
		o(w)
	}
	cfg, hash, mtime, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.hash, w.mtime = cfg, hash, mtime
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is done and calls fn for every accepted change. fn
// runs on the polling goroutine; a slow fn delays the next poll.
func (w *Watcher) Run(ctx context.Context, fn func(Reload)) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		r, changed, err := w.Check()
		if err != nil {
			slog.Warn("config: reload rejected", "path", w.path, "err", err)
			continue
		}
		if changed {
			slog.Info("config: reloaded", "path", w.path, "restart_required", r.Diff.RestartRequired)
			fn(r)
		}
	}
}

// Check polls the file once. It reports changed when new content was
// accepted. An error means the file is unreadable or the new content is
// invalid; the same invalid content is reported only once.
func (w *Watcher) Check() (Reload, bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return Reload{}, false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().Equal(w.mtime) {
		return Reload{}, false, nil
	}

	cfg, hash, mtime, err := w.read()
	w.mtime = mtime
	switch {
	case err != nil && w.hasBad && hash == w.bad:
		return Reload{}, false, nil
	case err != nil:
		w.bad, w.hasBad = hash, true
		return Reload{}, false, err
	case hash == w.hash:
		// Touched without edits.
		return Reload{}, false, nil
	}

	r := Reload{Old: w.current, New: cfg, Diff: Diff(w.current, cfg)}
	w.current, w.hash = cfg, hash
	w.hasBad = false
	return r, true, nil
}

// read loads and validates the file. The hash and mtime are returned even
// when validation fails so the caller can remember rejected content.
func (w *Watcher) read() (*Config, [sha256.Size]byte, time.Time, error) {
	var hash [sha256.Size]byte
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, hash, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, hash, info.ModTime(), err
	}
	hash = sha256.Sum256(data)
	cfg, err := LoadFromReader(bytes.NewReader(data))
	return cfg, hash, info.ModTime(), err
}
