// Package app wires the parser, reconciler, account client and file access
// into the sync operations exposed by the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gitlab.bluewillows.net/root/sshweaver/internal/account"
	"gitlab.bluewillows.net/root/sshweaver/internal/config"
	"gitlab.bluewillows.net/root/sshweaver/internal/doctor"
	"gitlab.bluewillows.net/root/sshweaver/internal/metrics"
	"gitlab.bluewillows.net/root/sshweaver/internal/model"
	"gitlab.bluewillows.net/root/sshweaver/internal/reconciler"
	"gitlab.bluewillows.net/root/sshweaver/internal/sshconfig"
	"gitlab.bluewillows.net/root/sshweaver/pkg/fsutil"
)

// configFileMode is the permission applied to a freshly written ssh_config.
const configFileMode = os.FileMode(0600)

// AccountAPI is the slice of the account client the app depends on.
type AccountAPI interface {
	FetchConnections(ctx context.Context) ([]*model.Connection, error)
	CreateConnection(ctx context.Context, conn *model.Connection) (string, error)
	UpdateConnection(ctx context.Context, conn *model.Connection) error
}

// Discoverer supplies additional connections from outside the config file,
// such as the Docker label source.
type Discoverer interface {
	Discover(ctx context.Context) ([]*model.Connection, error)
}

// App executes sync runs against one config file and one account.
type App struct {
	cfg        *config.Config
	account    AccountAPI
	fs         fsutil.FileSystem
	rec        *reconciler.Reconciler
	discoverer Discoverer
	logger     *slog.Logger
}

// Option is a functional option for configuring the App.
type Option func(*App)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDiscoverer adds a connection discovery source consulted before exports.
func WithDiscoverer(d Discoverer) Option {
	return func(a *App) {
		a.discoverer = d
	}
}

// WithReconciler sets a custom reconciler.
func WithReconciler(r *reconciler.Reconciler) Option {
	return func(a *App) {
		a.rec = r
	}
}

// New creates an App operating on the config file named by cfg, read and
// written through fs, synced against acct.
func New(cfg *config.Config, acct AccountAPI, fs fsutil.FileSystem, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		account: acct,
		fs:      fs,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rec == nil {
		a.rec = reconciler.New(reconciler.WithLogger(a.logger))
	}
	return a
}

// RunExport pushes the local config file (plus discovered connections) to the
// account. Per-entity rejections are recorded on the report and do not abort
// the run; the run itself fails only when the file cannot be parsed or the
// account cannot be reached at all.
func (a *App) RunExport(ctx context.Context) (*reconciler.Report, error) {
	local, err := a.readLocal()
	if err != nil {
		return nil, err
	}
	a.logWarnings(local)

	if a.discoverer != nil {
		if err := a.mergeDiscovered(ctx, local); err != nil {
			return nil, err
		}
	}

	remote, err := a.account.FetchConnections(ctx)
	if err != nil {
		a.observeFailure(reconciler.DirectionExport)
		return nil, fmt.Errorf("fetching remote connections: %w", err)
	}

	plan := a.rec.PlanExport(local, remote)

	for _, mut := range plan.Mutations {
		key := mut.Conn.Key()
		switch mut.Op {
		case reconciler.ActionCreate:
			id, err := a.account.CreateConnection(ctx, mut.Conn)
			if err != nil {
				a.recordMutationError(plan.Report, key, err)
				continue
			}
			plan.Report.Resolve(key, reconciler.StatusSuccess, id, "")
		case reconciler.ActionUpdate:
			if err := a.account.UpdateConnection(ctx, mut.Conn); err != nil {
				a.recordMutationError(plan.Report, key, err)
				continue
			}
			plan.Report.Resolve(key, reconciler.StatusSuccess, mut.Conn.RemoteID, "")
		}
	}

	plan.Report.Complete()
	a.observe(plan.Report)

	a.logger.Info("export finished",
		slog.Int("created", plan.Report.CreatedCount()),
		slog.Int("updated", plan.Report.UpdatedCount()),
		slog.Int("unchanged", plan.Report.UnchangedCount()),
		slog.Int("failed", plan.Report.FailedCount()),
	)
	return plan.Report, nil
}

// RunImport fetches the account's connections and folds them into the local
// config file, rewriting it atomically. Nothing is written when any earlier
// step fails, so a failed import leaves the file exactly as it was.
func (a *App) RunImport(ctx context.Context) (*reconciler.Report, error) {
	remote, err := a.account.FetchConnections(ctx)
	if err != nil {
		a.observeFailure(reconciler.DirectionImport)
		return nil, fmt.Errorf("fetching remote connections: %w", err)
	}

	local, err := a.readLocal()
	if err != nil {
		return nil, err
	}
	a.logWarnings(local)

	report, err := a.rec.MergeImport(local, remote)
	if err != nil {
		a.observeFailure(reconciler.DirectionImport)
		return nil, fmt.Errorf("merging remote connections: %w", err)
	}

	text, err := sshconfig.Serialize(local)
	if err != nil {
		a.observeFailure(reconciler.DirectionImport)
		return nil, fmt.Errorf("serializing config: %w", err)
	}

	if err := a.fs.WriteFileAtomic(a.cfg.ConfigFile, []byte(text), configFileMode); err != nil {
		a.observeFailure(reconciler.DirectionImport)
		return nil, fmt.Errorf("writing %s: %w", a.cfg.ConfigFile, err)
	}

	a.observe(report)

	a.logger.Info("import finished",
		slog.String("path", a.cfg.ConfigFile),
		slog.Int("created", report.CreatedCount()),
		slog.Int("updated", report.UpdatedCount()),
		slog.Int("unchanged", report.UnchangedCount()),
	)
	return report, nil
}

// Doctor parses the config file and reports entries whose hostnames do not
// resolve, plus any warnings the parser attached to the model.
func (a *App) Doctor(ctx context.Context, d *doctor.Doctor) (*doctor.Result, error) {
	local, err := a.readLocal()
	if err != nil {
		return nil, err
	}
	return d.Check(ctx, local), nil
}

// readLocal parses the managed config file. A missing file is an empty model,
// not an error: first runs start from nothing.
func (a *App) readLocal() (*model.ConfigModel, error) {
	data, err := a.fs.ReadFile(a.cfg.ConfigFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.logger.Debug("config file absent, starting empty", slog.String("path", a.cfg.ConfigFile))
			return model.New(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", a.cfg.ConfigFile, err)
	}

	m, err := sshconfig.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", a.cfg.ConfigFile, err)
	}
	return m, nil
}

// mergeDiscovered adds discovered connections that the file does not already
// define. The file wins on identity collisions.
func (a *App) mergeDiscovered(ctx context.Context, local *model.ConfigModel) error {
	conns, err := a.discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering connections: %w", err)
	}

	for _, conn := range conns {
		if _, err := local.Find(conn.GroupPath, conn.Label); err == nil {
			a.logger.Debug("discovered connection shadowed by config file",
				slog.String("key", conn.Key()))
			continue
		}
		if err := local.AddConnection(conn); err != nil {
			a.logger.Warn("skipping discovered connection",
				slog.String("key", conn.Key()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (a *App) logWarnings(m *model.ConfigModel) {
	for _, w := range m.Warnings {
		a.logger.Warn("config file warning", slog.String("warning", w))
	}
}

// recordMutationError settles one pending action as failed. Conflicts and
// other per-entity rejections are logged and counted but do not stop the run.
func (a *App) recordMutationError(report *reconciler.Report, key string, err error) {
	report.Resolve(key, reconciler.StatusFailed, "", err.Error())
	if account.IsConflict(err) {
		a.logger.Warn("remote rejected entity with a conflict",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.Error("failed to apply entity",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

func (a *App) observe(report *reconciler.Report) {
	status := "success"
	if report.HasErrors() {
		status = "partial"
	}
	metrics.SyncsTotal.WithLabelValues(string(report.Direction), status).Inc()
	metrics.SyncDuration.Observe(report.Duration().Seconds())
	for _, action := range report.Actions {
		if action.Status == reconciler.StatusFailed {
			metrics.EntitiesTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.EntitiesTotal.WithLabelValues(string(action.Type)).Inc()
	}
}

func (a *App) observeFailure(direction reconciler.Direction) {
	metrics.SyncsTotal.WithLabelValues(string(direction), "error").Inc()
}
