package app

import (
	"context"
	"log/slog"
	"time"

	"gitlab.bluewillows.net/root/sshweaver/internal/health"
	"gitlab.bluewillows.net/root/sshweaver/internal/reconciler"
	"gitlab.bluewillows.net/root/sshweaver/internal/watcher"
)

// shutdownTimeout bounds the health server's drain on exit.
const shutdownTimeout = 5 * time.Second

// Watch runs continuous sync until ctx is canceled: an edit to the config
// file triggers an export, and every sync interval a full round (import then
// export) runs so remote edits land locally too. A health endpoint with
// Prometheus metrics is served alongside.
func (a *App) Watch(ctx context.Context) error {
	healthSrv := health.New(a.cfg.HealthPort, health.WithLogger(a.logger))
	healthSrv.RegisterChecker("account", func(ctx context.Context) error {
		_, err := a.account.FetchConnections(ctx)
		return err
	})
	if err := healthSrv.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("health server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// Buffered so a change landing mid-sync is not lost; repeated changes
	// coalesce into one pending trigger.
	changes := make(chan struct{}, 1)
	w := watcher.New(a.fs, a.cfg.ConfigFile, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	},
		watcher.WithPollInterval(a.cfg.PollInterval),
		watcher.WithLogger(a.logger),
	)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	ticker := time.NewTicker(a.cfg.SyncInterval)
	defer ticker.Stop()

	a.logger.Info("watch mode started",
		slog.String("path", a.cfg.ConfigFile),
		slog.Duration("poll_interval", a.cfg.PollInterval),
		slog.Duration("sync_interval", a.cfg.SyncInterval),
	)

	// Initial full round so the account and the file agree from the start.
	a.fullSync(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("watch mode stopping")
			return nil
		case <-changes:
			a.logger.Info("config file changed, exporting")
			if report, err := a.RunExport(ctx); err != nil {
				a.logger.Error("export failed", slog.String("error", err.Error()))
			} else if report.HasErrors() {
				a.logger.Warn("export finished with failures", slog.Int("failed", report.FailedCount()))
			}
		case <-ticker.C:
			a.fullSync(ctx)
		}
	}
}

// fullSync runs an import then an export. Errors are logged, not returned:
// watch mode keeps going and retries on the next interval.
func (a *App) fullSync(ctx context.Context) {
	if _, err := a.RunImport(ctx); err != nil {
		a.logger.Error("periodic import failed", slog.String("error", err.Error()))
		return
	}
	report, err := a.RunExport(ctx)
	if err != nil {
		a.logger.Error("periodic export failed", slog.String("error", err.Error()))
		return
	}
	if report.HasErrors() {
		a.logger.Warn("periodic export finished with failures",
			slog.Int("failed", report.FailedCount()))
	}
	a.logResolved(report)
}

func (a *App) logResolved(report *reconciler.Report) {
	if report.CreatedCount() == 0 && report.UpdatedCount() == 0 {
		return
	}
	a.logger.Info("periodic sync applied changes",
		slog.Int("created", report.CreatedCount()),
		slog.Int("updated", report.UpdatedCount()),
	)
}
