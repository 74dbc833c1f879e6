package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/sshweaver/internal/account"
	"gitlab.bluewillows.net/root/sshweaver/internal/app"
	"gitlab.bluewillows.net/root/sshweaver/internal/config"
	"gitlab.bluewillows.net/root/sshweaver/internal/metrics"
	"gitlab.bluewillows.net/root/sshweaver/pkg/fsutil"
	"gitlab.bluewillows.net/root/sshweaver/pkg/httputil"
	"gitlab.bluewillows.net/root/sshweaver/pkg/sshfs"
	"gitlab.bluewillows.net/root/sshweaver/sources/docker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sshweaver",
	Short: "Sync a local ssh_config with a cloud account",
	Long: `sshweaver keeps an OpenSSH client configuration file and a cloud
account of connection records in sync.

Entries are matched by group path and label. The pushing side is
authoritative: matching entries are overwritten on the destination and
missing ones are created there, but nothing is ever deleted.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFilePath(),
		"path to sshweaver's own configuration file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadRuntime loads the configuration and installs the logger. Every
// subcommand starts with this.
func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())
	return cfg, logger, nil
}

// newAccountClient builds the account API client, picking up a cached token
// from a previous login when one exists.
func newAccountClient(cfg *config.Config, logger *slog.Logger) *account.Client {
	opts := []account.ClientOption{
		account.WithLogger(logger),
		account.WithHTTPClient(httputil.NewClient(&httputil.ClientConfig{
			Timeout: cfg.AccountTimeout,
			Logger:  logger,
		})),
	}

	creds, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil {
		logger.Warn("ignoring unreadable credentials file", slog.String("error", err.Error()))
	} else if creds.Account.Token != "" {
		opts = append(opts, account.WithToken(creds.Account.Token))
	}

	return account.NewClient(cfg.AccountURL, opts...)
}

// newFileSystem returns the filesystem the managed config file lives on:
// the local disk, or SFTP when a remote target is configured. The returned
// closer must be called when the command is done.
func newFileSystem(ctx context.Context, cfg *config.Config, logger *slog.Logger) (fsutil.FileSystem, func() error, error) {
	if cfg.Remote == nil {
		return fsutil.NewLocal(), func() error { return nil }, nil
	}

	client, err := sshfs.NewClient(&sshfs.Config{
		Host:     cfg.Remote.Host,
		Port:     cfg.Remote.Port,
		User:     cfg.Remote.User,
		KeyFile:  cfg.Remote.KeyFile,
		Password: cfg.Remote.Password,
		Timeout:  cfg.Remote.Timeout,
	}, sshfs.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("configuring remote filesystem: %w", err)
	}

	fs := sshfs.NewFileSystem(client, sshfs.WithFSLogger(logger))
	if err := fs.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", cfg.Remote.Host, err)
	}

	logger.Info("managing config file over sftp",
		slog.String("host", cfg.Remote.Host),
		slog.String("path", cfg.ConfigFile),
	)
	return fs, fs.Close, nil
}

// newApp assembles the App for one command invocation.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, func() error, error) {
	fs, closer, err := newFileSystem(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []app.Option{app.WithLogger(logger)}

	if cfg.DockerEnabled {
		src, err := docker.New(cfg.DockerHost, docker.WithLogger(logger))
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("configuring docker discovery: %w", err)
		}
		opts = append(opts, app.WithDiscoverer(src))
		logger.Info("docker discovery enabled")
	}

	return app.New(cfg, newAccountClient(cfg, logger), fs, opts...), closer, nil
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
