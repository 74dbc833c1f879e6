package watcher

import (
	"context"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeInfo is a minimal os.FileInfo carrying mtime and size.
type fakeInfo struct {
	mod  time.Time
	size int64
}

func (f fakeInfo) Name() string       { return "config" }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() os.FileMode  { return 0600 }
func (f fakeInfo) ModTime() time.Time { return f.mod }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

// fakeFS serves Stat from a mutable fakeInfo.
type fakeFS struct {
	mu      sync.Mutex
	info    fakeInfo
	missing bool
}

func (f *fakeFS) set(mod time.Time, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = fakeInfo{mod: mod, size: size}
	f.missing = false
}

func (f *fakeFS) Stat(path string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return nil, fs.ErrNotExist
	}
	return f.info, nil
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) { return nil, fs.ErrNotExist }
func (f *fakeFS) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestFileWatcher_DetectsChange(t *testing.T) {
	fsys := &fakeFS{}
	fsys.set(time.Now(), 100)

	var triggers atomic.Int32
	w := New(fsys, "/tmp/config", func() { triggers.Add(1) },
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// No change yet: the baseline poll must not fire the callback.
	time.Sleep(50 * time.Millisecond)
	if triggers.Load() != 0 {
		t.Fatalf("callback fired %d times before any change", triggers.Load())
	}

	fsys.set(time.Now().Add(time.Second), 120)
	waitFor(t, time.Second, func() bool { return triggers.Load() >= 1 })
}

func TestFileWatcher_SizeOnlyChange(t *testing.T) {
	mod := time.Now()
	fsys := &fakeFS{}
	fsys.set(mod, 100)

	var triggers atomic.Int32
	w := New(fsys, "/tmp/config", func() { triggers.Add(1) },
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Same mtime, different size still counts as a change.
	fsys.set(mod, 200)
	waitFor(t, time.Second, func() bool { return triggers.Load() >= 1 })
}

func TestFileWatcher_MissingFileThenAppears(t *testing.T) {
	fsys := &fakeFS{missing: true}

	var triggers atomic.Int32
	w := New(fsys, "/tmp/config", func() { triggers.Add(1) },
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// While the file is missing, polling goes on quietly.
	time.Sleep(50 * time.Millisecond)
	if triggers.Load() != 0 {
		t.Fatalf("callback fired for a missing file")
	}

	// The file appearing is itself a change.
	fsys.set(time.Now(), 100)
	waitFor(t, time.Second, func() bool { return triggers.Load() >= 1 })

	// And a later edit still triggers on top of the new baseline.
	fsys.set(time.Now().Add(time.Second), 120)
	waitFor(t, time.Second, func() bool { return triggers.Load() >= 2 })
}

func TestFileWatcher_DeleteThenRecreate(t *testing.T) {
	mod := time.Now()
	fsys := &fakeFS{}
	fsys.set(mod, 100)

	var triggers atomic.Int32
	w := New(fsys, "/tmp/config", func() { triggers.Add(1) },
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	fsys.mu.Lock()
	fsys.missing = true
	fsys.mu.Unlock()
	time.Sleep(50 * time.Millisecond)

	// Recreating with the exact same mtime and size still counts.
	fsys.set(mod, 100)
	waitFor(t, time.Second, func() bool { return triggers.Load() >= 1 })
}

func TestFileWatcher_StartTwice(t *testing.T) {
	fsys := &fakeFS{}
	fsys.set(time.Now(), 100)

	w := New(fsys, "/tmp/config", func() {}, WithPollInterval(10*time.Millisecond))

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Errorf("second Start should be a no-op: %v", err)
	}
	w.Stop()
}

func TestFileWatcher_StopHaltsPolling(t *testing.T) {
	fsys := &fakeFS{}
	fsys.set(time.Now(), 100)

	var triggers atomic.Int32
	w := New(fsys, "/tmp/config", func() { triggers.Add(1) },
		WithPollInterval(10*time.Millisecond))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()

	fsys.set(time.Now().Add(time.Second), 200)
	time.Sleep(50 * time.Millisecond)
	if triggers.Load() != 0 {
		t.Errorf("callback fired %d times after Stop", triggers.Load())
	}
}
