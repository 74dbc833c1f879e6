package sshconfig

import (
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

func buildModel(t *testing.T, conns ...*model.Connection) *model.ConfigModel {
	t.Helper()
	m := model.New()
	for _, c := range conns {
		if err := m.AddConnection(c); err != nil {
			t.Fatalf("AddConnection(%s) failed: %v", c.Label, err)
		}
	}
	return m
}

func TestSerialize_CanonicalOrder(t *testing.T) {
	m := buildModel(t, &model.Connection{
		Label:        "web",
		Hostname:     "web.example.com",
		Port:         2222,
		User:         "deploy",
		IdentityFile: "~/.ssh/id_ed25519",
		ProxyCommand: "ssh -W %h:%p bastion",
		Extra: []model.Option{
			{Key: "Compression", Value: "yes"},
			{Key: "ForwardAgent", Value: "no"},
		},
	})

	text, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	want := `Host web
    Hostname web.example.com
    Port 2222
    User deploy
    IdentityFile ~/.ssh/id_ed25519
    ProxyCommand ssh -W %h:%p bastion
    Compression yes
    ForwardAgent no

`
	if text != want {
		t.Errorf("Serialize output:\n%s\nwant:\n%s", text, want)
	}
}

func TestSerialize_OmitsEmptyOptionalFields(t *testing.T) {
	m := buildModel(t, &model.Connection{Label: "web", Hostname: "web.example.com", Port: 22})

	text, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	for _, dir := range []string{"User", "IdentityFile", "ProxyCommand"} {
		if strings.Contains(text, dir) {
			t.Errorf("output should not contain %s:\n%s", dir, text)
		}
	}
	if !strings.Contains(text, "Port 22\n") {
		t.Errorf("Port is always written, even at the default:\n%s", text)
	}
}

func TestSerialize_GroupMarkers(t *testing.T) {
	m := buildModel(t,
		&model.Connection{Label: "web", Hostname: "web.example.com", Port: 22},
		&model.Connection{Label: "db1", Hostname: "10.0.0.5", Port: 22, GroupPath: []string{"work", "db"}},
	)

	text, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	if !strings.Contains(text, "#sshweaver:group work/db\nHost db1\n") {
		t.Errorf("grouped block should carry its marker:\n%s", text)
	}
	if strings.Contains(strings.Split(text, "#sshweaver:group")[0], "db1") {
		t.Errorf("db1 must come after its marker:\n%s", text)
	}
}

func TestSerialize_EmptyDeclaredGroup(t *testing.T) {
	m := model.New()
	m.DeclareGroup([]string{"work", "staging"})

	text, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !strings.Contains(text, "#sshweaver:group work/staging\nHost *\n") {
		t.Errorf("empty group should render as marker plus placeholder:\n%s", text)
	}
}

func TestSerialize_InvalidModel(t *testing.T) {
	m := model.New()
	if err := m.AddConnection(&model.Connection{Label: "web", Hostname: "web.example.com", Port: 22}); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	// Corrupt the connection after insertion.
	conn, _ := m.Find(nil, "web")
	conn.Port = 0

	if _, err := Serialize(m); err == nil {
		t.Error("Serialize should reject an invalid connection")
	}
}

func TestRoundTrip(t *testing.T) {
	m := buildModel(t,
		&model.Connection{Label: "web", Hostname: "web.example.com", Port: 22,
			Extra: []model.Option{{Key: "Compression", Value: "yes"}}},
		&model.Connection{Label: "bastion", Hostname: "bastion.example.com", Port: 22, User: "ops",
			GroupPath: []string{"work"}},
		&model.Connection{Label: "db1", Hostname: "10.0.0.5", Port: 5432, User: "postgres",
			IdentityFile: "~/.ssh/db", GroupPath: []string{"work", "db"}},
		&model.Connection{Label: "nas", Hostname: "nas.local", Port: 22, GroupPath: []string{"home"}},
	)
	m.DeclareGroup([]string{"archive"})

	text, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse of serialized output failed: %v", err)
	}

	if parsed.Len() != m.Len() {
		t.Fatalf("round trip changed connection count: %d != %d", parsed.Len(), m.Len())
	}
	orig := m.All()
	got := parsed.All()
	for i := range orig {
		if got[i].Key() != orig[i].Key() {
			t.Errorf("round trip changed order: %q != %q", got[i].Key(), orig[i].Key())
		}
		if !got[i].Equal(orig[i]) {
			t.Errorf("round trip changed %q: %+v != %+v", orig[i].Key(), got[i], orig[i])
		}
	}

	var archived bool
	for _, path := range parsed.GroupPaths() {
		if strings.Join(path, "/") == "archive" {
			archived = true
		}
	}
	if !archived {
		t.Error("round trip lost the empty archive group")
	}

	// Serializing the reparsed model reproduces the same text.
	again, err := Serialize(parsed)
	if err != nil {
		t.Fatalf("second Serialize failed: %v", err)
	}
	if again != text {
		t.Errorf("serialization is not stable:\n%s\nvs:\n%s", text, again)
	}
}
