package reconciler

import (
	"fmt"
	"strings"
	"time"
)

// Direction identifies which side of a sync run is authoritative.
type Direction string

const (
	// DirectionExport pushes local entries to the cloud account.
	DirectionExport Direction = "export"
	// DirectionImport writes cloud entries into the local config.
	DirectionImport Direction = "import"
)

// ActionType represents the type of reconciliation action on one entity.
type ActionType string

const (
	// ActionCreate indicates the entity will be/was created on the destination.
	ActionCreate ActionType = "create"
	// ActionUpdate indicates the destination entity will be/was overwritten.
	ActionUpdate ActionType = "update"
	// ActionUnchanged indicates both sides already carry identical data.
	ActionUnchanged ActionType = "unchanged"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusPending indicates the action has not been applied yet.
	StatusPending ActionStatus = "pending"
	// StatusSuccess indicates the action was applied.
	StatusSuccess ActionStatus = "success"
	// StatusFailed indicates the destination rejected the action.
	StatusFailed ActionStatus = "failed"
)

// Action records one reconciliation decision for a single entity.
type Action struct {
	// Type is the action type (create, update, unchanged).
	Type ActionType

	// Status is the outcome of the action.
	Status ActionStatus

	// Key is the entity identity: group path and label, slash-joined.
	Key string

	// RemoteID is the cloud account's opaque identifier, when known.
	RemoteID string

	// Error holds the failure message if Status is StatusFailed.
	Error string
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	if a.Error != "" {
		return fmt.Sprintf("[%s] %s %s: %s", a.Status, a.Type, a.Key, a.Error)
	}
	return fmt.Sprintf("[%s] %s %s", a.Status, a.Type, a.Key)
}

// Report holds the complete result of a sync run. It is the change report
// surfaced to the user by the CLI layer.
type Report struct {
	Direction Direction
	StartTime time.Time
	EndTime   time.Time

	// Actions contains one entry per entity considered.
	Actions []Action
}

// NewReport creates a Report with the start time set to now.
func NewReport(direction Direction) *Report {
	return &Report{
		Direction: direction,
		StartTime: time.Now(),
	}
}

// Complete marks the report as complete with the end time set to now.
func (r *Report) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total run duration.
func (r *Report) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction appends an action to the report.
func (r *Report) AddAction(action Action) {
	r.Actions = append(r.Actions, action)
}

// Resolve settles the pending action for key. The remote id is recorded when
// non-empty; a non-empty errMsg marks the action failed.
func (r *Report) Resolve(key string, status ActionStatus, remoteID, errMsg string) {
	for i := range r.Actions {
		if r.Actions[i].Key == key && r.Actions[i].Status == StatusPending {
			r.Actions[i].Status = status
			if remoteID != "" {
				r.Actions[i].RemoteID = remoteID
			}
			r.Actions[i].Error = errMsg
			return
		}
	}
}

func (r *Report) count(t ActionType, s ActionStatus) int {
	n := 0
	for _, a := range r.Actions {
		if a.Type == t && a.Status == s {
			n++
		}
	}
	return n
}

// CreatedCount returns the number of entities created on the destination.
func (r *Report) CreatedCount() int { return r.count(ActionCreate, StatusSuccess) }

// UpdatedCount returns the number of destination entities overwritten.
func (r *Report) UpdatedCount() int { return r.count(ActionUpdate, StatusSuccess) }

// UnchangedCount returns the number of entities already in sync.
func (r *Report) UnchangedCount() int {
	n := 0
	for _, a := range r.Actions {
		if a.Type == ActionUnchanged {
			n++
		}
	}
	return n
}

// Failed returns all failed actions.
func (r *Report) Failed() []Action {
	var out []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			out = append(out, a)
		}
	}
	return out
}

// FailedCount returns the number of failed actions.
func (r *Report) FailedCount() int { return len(r.Failed()) }

// HasErrors returns true if any action failed.
func (r *Report) HasErrors() bool { return r.FailedCount() > 0 }

// Summary returns a human-readable summary of the run.
func (r *Report) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s complete in %s\n", r.Direction, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Created:   %d\n", r.CreatedCount())
	fmt.Fprintf(&sb, "  Updated:   %d\n", r.UpdatedCount())
	fmt.Fprintf(&sb, "  Unchanged: %d\n", r.UnchangedCount())

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed:    %d\n", r.FailedCount())
		for _, a := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", a.String())
		}
	}

	return sb.String()
}
