// Package reconciler implements the merge logic between a local ConfigModel
// and the set of connection records held by the cloud account.
//
// Matching is always by (group path, label); remote identifiers only matter
// for issuing updates. The side the run is pushed from is authoritative:
// its values overwrite the destination for matching entities, entities
// missing on the destination are created there, and entities present only
// on the destination are never touched. Deletion does not propagate.
package reconciler

import (
	"log/slog"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

// Mutation is one pending change to apply on the destination side.
type Mutation struct {
	// Op is ActionCreate or ActionUpdate.
	Op ActionType

	// Conn carries the authoritative values. For updates against the cloud
	// account, Conn.RemoteID names the record to overwrite.
	Conn *model.Connection
}

// Plan is the outcome of comparing local and remote state for an export.
// Mutations still need to be applied; the report carries a pending action
// per mutation plus one unchanged action per entity already in sync.
type Plan struct {
	Mutations []Mutation
	Report    *Report
}

// Reconciler computes merge plans for both sync directions.
type Reconciler struct {
	logger *slog.Logger
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PlanExport compares the local model against the remote set and returns the
// mutations needed to make the account reflect local state. Remote-only
// records are left alone. Running the resulting plan twice yields an empty
// second plan.
func (r *Reconciler) PlanExport(local *model.ConfigModel, remote []*model.Connection) *Plan {
	plan := &Plan{Report: NewReport(DirectionExport)}

	remoteByKey := indexByKey(remote)

	for _, conn := range local.All() {
		key := conn.Key()
		existing, ok := remoteByKey[key]
		switch {
		case !ok:
			r.logger.Debug("entity missing on remote, will create", slog.String("key", key))
			plan.Mutations = append(plan.Mutations, Mutation{Op: ActionCreate, Conn: conn.Clone()})
			plan.Report.AddAction(Action{Type: ActionCreate, Status: StatusPending, Key: key})
		case conn.Equal(existing):
			plan.Report.AddAction(Action{
				Type:     ActionUnchanged,
				Status:   StatusSuccess,
				Key:      key,
				RemoteID: existing.RemoteID,
			})
		default:
			r.logger.Debug("entity differs, will update",
				slog.String("key", key),
				slog.String("remote_id", existing.RemoteID),
			)
			update := conn.Clone()
			update.RemoteID = existing.RemoteID
			plan.Mutations = append(plan.Mutations, Mutation{Op: ActionUpdate, Conn: update})
			plan.Report.AddAction(Action{
				Type:     ActionUpdate,
				Status:   StatusPending,
				Key:      key,
				RemoteID: existing.RemoteID,
			})
		}
	}

	r.logger.Info("export plan computed",
		slog.Int("local", local.Len()),
		slog.Int("remote", len(remote)),
		slog.Int("mutations", len(plan.Mutations)),
	)

	return plan
}

// MergeImport folds the remote set into the local model, with the remote
// side authoritative for matching entities. Local-only connections are kept.
// The local model is modified in place; the report describes what changed.
func (r *Reconciler) MergeImport(local *model.ConfigModel, remote []*model.Connection) (*Report, error) {
	report := NewReport(DirectionImport)

	for _, rc := range remote {
		key := rc.Key()
		existing, err := local.Find(rc.GroupPath, rc.Label)
		if err != nil {
			r.logger.Debug("entity missing locally, will create", slog.String("key", key))
			if err := local.AddConnection(rc.Clone()); err != nil {
				return nil, err
			}
			report.AddAction(Action{
				Type:     ActionCreate,
				Status:   StatusSuccess,
				Key:      key,
				RemoteID: rc.RemoteID,
			})
			continue
		}

		if existing.Equal(rc) {
			// Keep the remote ID annotation current even when data matches.
			existing.RemoteID = rc.RemoteID
			report.AddAction(Action{
				Type:     ActionUnchanged,
				Status:   StatusSuccess,
				Key:      key,
				RemoteID: rc.RemoteID,
			})
			continue
		}

		r.logger.Debug("entity differs, overwriting local", slog.String("key", key))
		if err := local.Replace(rc.Clone()); err != nil {
			return nil, err
		}
		report.AddAction(Action{
			Type:     ActionUpdate,
			Status:   StatusSuccess,
			Key:      key,
			RemoteID: rc.RemoteID,
		})
	}

	report.Complete()

	r.logger.Info("import merge complete",
		slog.Int("created", report.CreatedCount()),
		slog.Int("updated", report.UpdatedCount()),
		slog.Int("unchanged", report.UnchangedCount()),
	)

	return report, nil
}

func indexByKey(conns []*model.Connection) map[string]*model.Connection {
	idx := make(map[string]*model.Connection, len(conns))
	for _, c := range conns {
		idx[c.Key()] = c
	}
	return idx
}
