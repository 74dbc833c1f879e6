// Package fsutil defines the filesystem interface the sync engine writes
// the managed ssh_config through, plus the local-disk implementation.
//
// Writes go through WriteFileAtomic: content lands in a temporary file in
// the target directory and is renamed over the destination only once fully
// written, so a failed run can never leave a truncated config behind.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSystem is the file access interface used for the managed config file.
// Implementations exist for the local disk (Local) and for remote machines
// over SFTP (pkg/sshfs).
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
}

// Local implements FileSystem on the local disk.
type Local struct{}

// NewLocal returns a FileSystem backed by the local disk.
func NewLocal() *Local {
	return &Local{}
}

// ReadFile reads the contents of a local file.
func (l *Local) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for a local path.
func (l *Local) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// WriteFileAtomic writes data to path via a temporary file in the same
// directory followed by a rename. The destination either keeps its previous
// content or carries the complete new content; it is never half-written.
func (l *Local) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing temp file %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
