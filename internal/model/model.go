// Package model defines the in-memory representation of SSH connections
// and the folder-like groups that organize them. All other components
// (parser, serializer, reconciler) operate on these types.
package model

import (
	"strings"
)

// DefaultPort is the SSH port assumed when a config entry does not set one.
const DefaultPort = 22

// Option is a single SSH directive not modeled as a first-class field.
// Options keep their original key casing and verbatim value text so a
// parse/serialize round trip reproduces the exact directive.
type Option struct {
	Key   string
	Value string
}

// Connection is a single host entry.
//
// RemoteID is an opaque identifier assigned by the cloud account. It is an
// annotation attached during reconciliation and never part of entity
// identity; identity is always (GroupPath, Label).
type Connection struct {
	Label        string
	Hostname     string
	Port         int
	User         string
	IdentityFile string
	ProxyCommand string

	// Extra holds unmodeled directives in their original insertion order.
	Extra []Option

	// GroupPath is the sequence of group names from root to the immediate
	// parent. Empty means top level.
	GroupPath []string

	RemoteID string
}

// Key returns the identity of the connection as a slash-separated path.
func (c *Connection) Key() string {
	return joinPath(c.GroupPath, c.Label)
}

// ExtraValue returns the value of an extra option by key, case-insensitively.
func (c *Connection) ExtraValue(key string) (string, bool) {
	for _, opt := range c.Extra {
		if strings.EqualFold(opt.Key, key) {
			return opt.Value, true
		}
	}
	return "", false
}

// Validate checks the connection invariants.
func (c *Connection) Validate() error {
	if c.Label == "" {
		return &ValidationError{Message: "label is required"}
	}
	if c.Hostname == "" {
		return &ValidationError{Label: c.Label, Message: "hostname is required"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ValidationError{Label: c.Label, Message: "port must be between 1 and 65535"}
	}
	for _, opt := range c.Extra {
		if opt.Key == "" {
			return &ValidationError{Label: c.Label, Message: "extra option with empty key"}
		}
		// An empty value would serialize as a key with no value, which the
		// parser rejects; catch it before it can reach a file.
		if opt.Value == "" {
			return &ValidationError{
				Label:   c.Label,
				Message: "extra option " + opt.Key + " has no value",
			}
		}
		if IsKnownDirective(opt.Key) {
			return &ValidationError{
				Label:   c.Label,
				Message: "extra option " + opt.Key + " shadows a first-class field",
			}
		}
	}
	return nil
}

// Equal reports whether two connections carry the same data. RemoteID is an
// annotation and is not compared. Extra options compare by content and order.
func (c *Connection) Equal(other *Connection) bool {
	if c.Label != other.Label ||
		c.Hostname != other.Hostname ||
		c.Port != other.Port ||
		c.User != other.User ||
		c.IdentityFile != other.IdentityFile ||
		c.ProxyCommand != other.ProxyCommand {
		return false
	}
	if !pathEqual(c.GroupPath, other.GroupPath) {
		return false
	}
	if len(c.Extra) != len(other.Extra) {
		return false
	}
	for i := range c.Extra {
		if c.Extra[i] != other.Extra[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the connection.
func (c *Connection) Clone() *Connection {
	out := *c
	out.Extra = append([]Option(nil), c.Extra...)
	out.GroupPath = append([]string(nil), c.GroupPath...)
	return &out
}

// IsKnownDirective reports whether key names a directive modeled as a
// first-class Connection field. Matching is case-insensitive.
func IsKnownDirective(key string) bool {
	switch strings.ToLower(key) {
	case "hostname", "port", "user", "identityfile", "proxycommand":
		return true
	}
	return false
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// group is a node in the derived group tree. Children keep first-seen order.
type group struct {
	name     string
	conns    []*Connection
	children []*group
	index    map[string]*group
}

func newGroup(name string) *group {
	return &group{name: name, index: make(map[string]*group)}
}

func (g *group) child(name string) *group {
	if c, ok := g.index[name]; ok {
		return c
	}
	c := newGroup(name)
	g.index[name] = c
	g.children = append(g.children, c)
	return c
}

// ConfigModel owns an ordered set of connections plus the group tree implied
// by their group paths. A group exists iff at least one connection references
// it, or it was explicitly declared (an empty folder the user created).
type ConfigModel struct {
	root  *group
	byKey map[string]*Connection
	count int

	// Warnings collects non-fatal notes recorded while the model was built,
	// e.g. a duplicate Host pattern where the later block won.
	Warnings []string
}

// New returns an empty ConfigModel.
func New() *ConfigModel {
	return &ConfigModel{
		root:  newGroup(""),
		byKey: make(map[string]*Connection),
	}
}

// Len returns the number of connections in the model.
func (m *ConfigModel) Len() int {
	return m.count
}

// DeclareGroup registers a group path without adding a connection to it.
// Declaring an existing group is a no-op.
func (m *ConfigModel) DeclareGroup(path []string) {
	g := m.root
	for _, name := range path {
		g = g.child(name)
	}
}

// AddConnection validates conn and adds it to the model. It fails with
// DuplicateNameError if a connection with the same (group path, label)
// already exists.
func (m *ConfigModel) AddConnection(conn *Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	key := conn.Key()
	if _, exists := m.byKey[key]; exists {
		return &DuplicateNameError{GroupPath: conn.GroupPath, Label: conn.Label}
	}

	g := m.root
	for _, name := range conn.GroupPath {
		g = g.child(name)
	}
	g.conns = append(g.conns, conn)
	m.byKey[key] = conn
	m.count++
	return nil
}

// Replace swaps an existing connection for conn, or adds conn if no
// connection with its key exists. Used by the reconciler when the remote
// side is authoritative.
func (m *ConfigModel) Replace(conn *Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	key := conn.Key()
	if existing, ok := m.byKey[key]; ok {
		*existing = *conn
		return nil
	}
	return m.AddConnection(conn)
}

// Find returns the connection with the given group path and label, or
// NotFoundError.
func (m *ConfigModel) Find(groupPath []string, label string) (*Connection, error) {
	if conn, ok := m.byKey[joinPath(groupPath, label)]; ok {
		return conn, nil
	}
	return nil, &NotFoundError{GroupPath: groupPath, Label: label}
}

// All returns every connection in deterministic textual-config order:
// connections at each level in insertion order, then each subgroup
// depth-first in first-seen order. Re-iterating yields the same order.
func (m *ConfigModel) All() []*Connection {
	out := make([]*Connection, 0, m.count)
	var walk func(g *group)
	walk = func(g *group) {
		out = append(out, g.conns...)
		for _, child := range g.children {
			walk(child)
		}
	}
	walk(m.root)
	return out
}

// GroupPaths returns every known group path in the same depth-first order
// used by All, including explicitly declared empty groups.
func (m *ConfigModel) GroupPaths() [][]string {
	var out [][]string
	var walk func(g *group, prefix []string)
	walk = func(g *group, prefix []string) {
		for _, child := range g.children {
			path := append(append([]string(nil), prefix...), child.name)
			out = append(out, path)
			walk(child, path)
		}
	}
	walk(m.root, nil)
	return out
}

// Warn records a non-fatal note about the model's construction.
func (m *ConfigModel) Warn(msg string) {
	m.Warnings = append(m.Warnings, msg)
}
