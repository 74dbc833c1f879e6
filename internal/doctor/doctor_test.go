package doctor

import (
	"context"
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

// testDoctor returns a Doctor pointed at an address nothing listens on, so
// tests exercising only the non-network paths never read resolv.conf.
func testDoctor(t *testing.T) *Doctor {
	t.Helper()
	d, err := New(WithServer("127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestCheck_LiteralIPsAreSkipped(t *testing.T) {
	m := model.New()
	for _, c := range []*model.Connection{
		{Label: "v4", Hostname: "10.0.0.5", Port: 22},
		{Label: "v6", Hostname: "fd00::1", Port: 22},
	} {
		if err := m.AddConnection(c); err != nil {
			t.Fatalf("AddConnection failed: %v", err)
		}
	}

	result := testDoctor(t).Check(context.Background(), m)
	if result.Checked != 2 {
		t.Errorf("Checked = %d, want 2", result.Checked)
	}
	if !result.OK() {
		t.Errorf("literal IPs must not be resolved: %v", result.Findings)
	}
}

func TestCheck_PatternHostnameIsFlagged(t *testing.T) {
	m := model.New()
	if err := m.AddConnection(&model.Connection{Label: "odd", Hostname: "%h.example.com", Port: 22}); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	result := testDoctor(t).Check(context.Background(), m)
	if len(result.Findings) != 1 {
		t.Fatalf("findings = %v", result.Findings)
	}
	if result.Findings[0].Key != "odd" {
		t.Errorf("finding key = %q", result.Findings[0].Key)
	}
	if !strings.Contains(result.Findings[0].Message, "pattern characters") {
		t.Errorf("finding message = %q", result.Findings[0].Message)
	}
}

func TestCheck_SurfacesModelWarnings(t *testing.T) {
	m := model.New()
	m.Warn("line 4: duplicate Host \"web\", later entry wins")

	result := testDoctor(t).Check(context.Background(), m)
	if len(result.Findings) != 1 {
		t.Fatalf("findings = %v", result.Findings)
	}
	if result.Findings[0].Key != "" {
		t.Errorf("model warnings carry no key, got %q", result.Findings[0].Key)
	}
	if result.Findings[0].String() != "line 4: duplicate Host \"web\", later entry wins" {
		t.Errorf("String = %q", result.Findings[0].String())
	}
}

func TestCheck_CanceledContext(t *testing.T) {
	m := model.New()
	if err := m.AddConnection(&model.Connection{Label: "web", Hostname: "web.example.com", Port: 22}); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := testDoctor(t).Check(ctx, m)
	if result.OK() {
		t.Error("a canceled lookup should surface as a finding")
	}
}
