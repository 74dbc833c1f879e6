// sshweaver keeps a local ssh_config in sync with a cloud account of
// connection records. Export pushes the file's entries to the account,
// import writes account entries back into the file, and watch mode does
// both continuously.
package main

import (
	"log/slog"
	"os"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-31"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
