// Package watcher polls the managed ssh_config file and triggers a sync
// when it changes.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/sshweaver/pkg/fsutil"
)

// ChangeCallback is called when the watched file changes.
type ChangeCallback func()

// FileWatcher polls a file's modification time and size.
//
// Polling rather than inotify keeps the watcher working over the SFTP
// filesystem, where there are no change notifications.
type FileWatcher struct {
	fs           fsutil.FileSystem
	path         string
	callback     ChangeCallback
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	lastMod  time.Time
	lastSize int64
	seen     bool
	missing  bool
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithPollInterval sets the polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *FileWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for path on fs, invoking callback on each change.
func New(fs fsutil.FileSystem, path string, callback ChangeCallback, opts ...Option) *FileWatcher {
	w := &FileWatcher{
		fs:           fs,
		path:         path,
		callback:     callback,
		pollInterval: 2 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins polling. Starting twice is a no-op.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.mu.Unlock()

	// Prime the baseline so startup does not count as a change.
	w.poll(false)

	go w.pollLoop(ctx)
	return nil
}

// Stop halts the watcher.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.running = false
}

func (w *FileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(true)
		}
	}
}

// poll checks the file and, when notify is set, fires the callback on change.
func (w *FileWatcher) poll(notify bool) {
	info, err := w.fs.Stat(w.path)
	if err != nil {
		// A missing file is a valid state (nothing exported yet); keep
		// polling quietly until it appears.
		w.mu.Lock()
		w.missing = true
		w.mu.Unlock()
		w.logger.Debug("watched file not statable",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	// A file that appears after being absent counts as a change even
	// though there is no baseline to compare against.
	changed := w.missing || (w.seen && (!info.ModTime().Equal(w.lastMod) || info.Size() != w.lastSize))
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	w.seen = true
	w.missing = false
	w.mu.Unlock()

	if changed && notify {
		w.logger.Info("config file changed",
			slog.String("path", w.path),
			slog.Time("mod_time", info.ModTime()),
		)
		w.callback()
	}
}
