package sshfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/pkg/sftp"
)

// FileSystem implements fsutil.FileSystem over SFTP.
type FileSystem struct {
	client *Client
	logger *slog.Logger

	mu         sync.RWMutex
	sftpClient *sftp.Client
}

// FileSystemOption is a functional option for configuring the FileSystem.
type FileSystemOption func(*FileSystem)

// WithFSLogger sets a custom logger for SFTP operations.
func WithFSLogger(logger *slog.Logger) FileSystemOption {
	return func(fs *FileSystem) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// NewFileSystem creates a new SFTP-based FileSystem over client.
func NewFileSystem(client *Client, opts ...FileSystemOption) *FileSystem {
	fs := &FileSystem{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Connect establishes the SFTP session over the SSH connection.
// The SSH client must be connected before calling this method.
func (fs *FileSystem) Connect(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient != nil {
		return nil
	}

	sshConn, err := fs.client.Connection()
	if err != nil {
		return fmt.Errorf("getting SSH connection: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshConn)
	if err != nil {
		return fmt.Errorf("creating SFTP client: %w", err)
	}

	fs.sftpClient = sftpClient
	fs.logger.Debug("SFTP session established")
	return nil
}

// Close closes the SFTP session. Safe to call multiple times.
// Does not close the underlying SSH connection.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient == nil {
		return nil
	}
	err := fs.sftpClient.Close()
	fs.sftpClient = nil
	return err
}

func (fs *FileSystem) getSFTP() (*sftp.Client, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.sftpClient == nil {
		return nil, ErrNotConnected
	}
	return fs.sftpClient, nil
}

// ReadFile reads the contents of a file on the remote system.
func (fs *FileSystem) ReadFile(filePath string) ([]byte, error) {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return nil, err
	}

	file, err := sftpClient.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", filePath, err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}

	fs.logger.Debug("file read",
		slog.String("path", filePath),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// Stat returns file info for a path on the remote system.
func (fs *FileSystem) Stat(filePath string) (os.FileInfo, error) {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return nil, err
	}

	info, err := sftpClient.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}
	return info, nil
}

// WriteFileAtomic writes data next to the destination and renames it into
// place, matching the local-disk atomic replace discipline. The remote
// server must support the posix-rename extension (OpenSSH does).
func (fs *FileSystem) WriteFileAtomic(filePath string, data []byte, perm os.FileMode) error {
	sftpClient, err := fs.getSFTP()
	if err != nil {
		return err
	}

	tmpName := path.Join(path.Dir(filePath), "."+path.Base(filePath)+".tmp")

	file, err := sftpClient.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("opening temp file %s: %w", tmpName, err)
	}

	n, err := file.Write(data)
	if err != nil {
		_ = file.Close()
		_ = sftpClient.Remove(tmpName)
		return fmt.Errorf("writing temp file %s: %w", tmpName, err)
	}
	if n != len(data) {
		_ = file.Close()
		_ = sftpClient.Remove(tmpName)
		return fmt.Errorf("short write to %s: wrote %d of %d bytes", tmpName, n, len(data))
	}
	if err := file.Close(); err != nil {
		_ = sftpClient.Remove(tmpName)
		return fmt.Errorf("closing temp file %s: %w", tmpName, err)
	}

	if err := sftpClient.Chmod(tmpName, perm); err != nil {
		fs.logger.Warn("failed to set file permissions",
			slog.String("path", tmpName),
			slog.String("error", err.Error()),
		)
	}

	if err := sftpClient.PosixRename(tmpName, filePath); err != nil {
		_ = sftpClient.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filePath, err)
	}

	fs.logger.Debug("file replaced",
		slog.String("path", filePath),
		slog.Int("bytes", len(data)),
	)
	return nil
}
