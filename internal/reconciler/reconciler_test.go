package reconciler

import (
	"testing"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

func localModel(t *testing.T, conns ...*model.Connection) *model.ConfigModel {
	t.Helper()
	m := model.New()
	for _, c := range conns {
		if err := m.AddConnection(c); err != nil {
			t.Fatalf("AddConnection(%s) failed: %v", c.Label, err)
		}
	}
	return m
}

func conn(label, hostname string, port int, group ...string) *model.Connection {
	return &model.Connection{Label: label, Hostname: hostname, Port: port, GroupPath: group}
}

func TestPlanExport_CreatesMissing(t *testing.T) {
	local := localModel(t,
		conn("web", "web.example.com", 22),
		conn("db1", "10.0.0.5", 22, "work", "db"),
	)

	plan := New().PlanExport(local, nil)

	if len(plan.Mutations) != 2 {
		t.Fatalf("got %d mutations, want 2", len(plan.Mutations))
	}
	for _, mut := range plan.Mutations {
		if mut.Op != ActionCreate {
			t.Errorf("mutation for %q is %s, want create", mut.Conn.Key(), mut.Op)
		}
	}
	if got := len(plan.Report.Actions); got != 2 {
		t.Errorf("report has %d actions, want 2", got)
	}
	for _, a := range plan.Report.Actions {
		if a.Status != StatusPending {
			t.Errorf("action %q status = %s, want pending", a.Key, a.Status)
		}
	}
}

func TestPlanExport_UpdatesDiffering(t *testing.T) {
	local := localModel(t, conn("web", "web.example.com", 22))

	remote := conn("web", "web.example.com", 2222)
	remote.RemoteID = "r-1"

	plan := New().PlanExport(local, []*model.Connection{remote})

	if len(plan.Mutations) != 1 {
		t.Fatalf("got %d mutations, want 1", len(plan.Mutations))
	}
	mut := plan.Mutations[0]
	if mut.Op != ActionUpdate {
		t.Errorf("mutation op = %s, want update", mut.Op)
	}
	if mut.Conn.Port != 22 {
		t.Errorf("update must carry local values, got port %d", mut.Conn.Port)
	}
	if mut.Conn.RemoteID != "r-1" {
		t.Errorf("update must target the remote record, got id %q", mut.Conn.RemoteID)
	}
}

func TestPlanExport_LeavesRemoteOnlyAlone(t *testing.T) {
	local := localModel(t, conn("web", "web.example.com", 22))

	remoteOnly := conn("legacy", "legacy.example.com", 22)
	remoteOnly.RemoteID = "r-9"
	matching := conn("web", "web.example.com", 22)
	matching.RemoteID = "r-1"

	plan := New().PlanExport(local, []*model.Connection{remoteOnly, matching})

	if len(plan.Mutations) != 0 {
		t.Fatalf("got %d mutations, want 0: remote-only entries are never touched", len(plan.Mutations))
	}
	if got := plan.Report.UnchangedCount(); got != 1 {
		t.Errorf("unchanged = %d, want 1", got)
	}
}

func TestPlanExport_SameLabelDifferentGroups(t *testing.T) {
	local := localModel(t,
		conn("web", "a.example.com", 22, "work"),
		conn("web", "b.example.com", 22, "home"),
	)

	remote := conn("web", "a.example.com", 22, "work")
	remote.RemoteID = "r-1"

	plan := New().PlanExport(local, []*model.Connection{remote})

	if len(plan.Mutations) != 1 {
		t.Fatalf("got %d mutations, want 1", len(plan.Mutations))
	}
	if plan.Mutations[0].Conn.Key() != "home/web" {
		t.Errorf("only home/web is missing remotely, got %q", plan.Mutations[0].Conn.Key())
	}
}

func TestPlanExport_Idempotent(t *testing.T) {
	local := localModel(t,
		conn("web", "web.example.com", 22),
		conn("db1", "10.0.0.5", 22, "work", "db"),
	)

	// Pretend the first plan was fully applied: remote now mirrors local.
	var remote []*model.Connection
	for i, c := range local.All() {
		rc := c.Clone()
		rc.RemoteID = string(rune('a' + i))
		remote = append(remote, rc)
	}

	plan := New().PlanExport(local, remote)
	if len(plan.Mutations) != 0 {
		t.Errorf("second export should plan nothing, got %d mutations", len(plan.Mutations))
	}
	if got := plan.Report.UnchangedCount(); got != 2 {
		t.Errorf("unchanged = %d, want 2", got)
	}
}

func TestMergeImport_RemoteWins(t *testing.T) {
	local := localModel(t,
		conn("web", "web.example.com", 22),
		conn("nas", "nas.local", 22, "home"),
	)

	updated := conn("web", "web.example.com", 2222)
	updated.RemoteID = "r-1"
	created := conn("db1", "10.0.0.5", 22, "work", "db")
	created.RemoteID = "r-2"

	report, err := New().MergeImport(local, []*model.Connection{updated, created})
	if err != nil {
		t.Fatalf("MergeImport failed: %v", err)
	}

	web, _ := local.Find(nil, "web")
	if web.Port != 2222 {
		t.Errorf("remote values must overwrite local, got port %d", web.Port)
	}
	if web.RemoteID != "r-1" {
		t.Errorf("remote id should be adopted, got %q", web.RemoteID)
	}

	if _, err := local.Find([]string{"work", "db"}, "db1"); err != nil {
		t.Errorf("remote-only entry should be created locally: %v", err)
	}

	// Local-only entries survive: import never deletes.
	if _, err := local.Find([]string{"home"}, "nas"); err != nil {
		t.Errorf("local-only entry was lost: %v", err)
	}

	if report.CreatedCount() != 1 || report.UpdatedCount() != 1 {
		t.Errorf("report created=%d updated=%d, want 1/1", report.CreatedCount(), report.UpdatedCount())
	}
}

func TestMergeImport_UnchangedRefreshesRemoteID(t *testing.T) {
	local := localModel(t, conn("web", "web.example.com", 22))

	remote := conn("web", "web.example.com", 22)
	remote.RemoteID = "r-1"

	report, err := New().MergeImport(local, []*model.Connection{remote})
	if err != nil {
		t.Fatalf("MergeImport failed: %v", err)
	}
	if report.UnchangedCount() != 1 {
		t.Errorf("unchanged = %d, want 1", report.UnchangedCount())
	}

	web, _ := local.Find(nil, "web")
	if web.RemoteID != "r-1" {
		t.Errorf("remote id should be refreshed even when data matches, got %q", web.RemoteID)
	}
}

func TestMergeImport_Idempotent(t *testing.T) {
	local := localModel(t, conn("web", "web.example.com", 22))

	remote := conn("web", "web.example.com", 2222)
	remote.RemoteID = "r-1"
	remoteSet := []*model.Connection{remote, conn("db1", "10.0.0.5", 22, "work", "db")}

	r := New()
	if _, err := r.MergeImport(local, remoteSet); err != nil {
		t.Fatalf("first MergeImport failed: %v", err)
	}

	report, err := r.MergeImport(local, remoteSet)
	if err != nil {
		t.Fatalf("second MergeImport failed: %v", err)
	}
	if report.CreatedCount() != 0 || report.UpdatedCount() != 0 {
		t.Errorf("second merge should change nothing: created=%d updated=%d",
			report.CreatedCount(), report.UpdatedCount())
	}
	if report.UnchangedCount() != 2 {
		t.Errorf("unchanged = %d, want 2", report.UnchangedCount())
	}
}

func TestReport_Resolve(t *testing.T) {
	report := NewReport(DirectionExport)
	report.AddAction(Action{Type: ActionCreate, Status: StatusPending, Key: "web"})
	report.AddAction(Action{Type: ActionUpdate, Status: StatusPending, Key: "db"})

	report.Resolve("web", StatusSuccess, "r-1", "")
	report.Resolve("db", StatusFailed, "", "label already taken")
	report.Complete()

	if report.CreatedCount() != 1 {
		t.Errorf("created = %d, want 1", report.CreatedCount())
	}
	if report.FailedCount() != 1 {
		t.Errorf("failed = %d, want 1", report.FailedCount())
	}
	if !report.HasErrors() {
		t.Error("HasErrors should be true")
	}
	if report.Actions[0].RemoteID != "r-1" {
		t.Errorf("resolved action should carry the remote id, got %q", report.Actions[0].RemoteID)
	}
	if report.Actions[1].Error != "label already taken" {
		t.Errorf("failed action error = %q", report.Actions[1].Error)
	}
}
