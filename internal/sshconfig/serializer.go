package sshconfig

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

// indent is the leading whitespace for directives inside a Host block.
const indent = "    "

// SerializeError indicates the model violated an invariant while rendering.
// It should not occur for models produced by Parse or validated construction.
type SerializeError struct {
	Key    string
	Reason string
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("serializing %q: %s", e.Key, e.Reason)
}

// Serialize renders a ConfigModel as SSH config text.
//
// Output order follows ConfigModel.All: top-level connections first, then
// each group depth-first. Every grouped Host block is preceded by a marker
// comment carrying its full group path; empty declared groups are rendered
// as a marker followed by a wildcard placeholder block. Directives are
// written in canonical order (Hostname, Port, User, IdentityFile,
// ProxyCommand) with extra options after them in their original insertion
// order, so Parse(Serialize(m)) reproduces m.
func Serialize(m *model.ConfigModel) (string, error) {
	var sb strings.Builder

	emitted := make(map[string]bool)

	for _, conn := range m.All() {
		if err := conn.Validate(); err != nil {
			return "", &SerializeError{Key: conn.Key(), Reason: err.Error()}
		}
		if len(conn.GroupPath) > 0 {
			path := strings.Join(conn.GroupPath, GroupSeparator)
			sb.WriteString(MarkerPrefix + " " + path + "\n")
			markGroupEmitted(emitted, conn.GroupPath)
		}
		writeBlock(&sb, conn)
	}

	// Declared groups with no connections still round-trip, as a marker
	// plus a wildcard placeholder block.
	for _, path := range m.GroupPaths() {
		joined := strings.Join(path, GroupSeparator)
		if emitted[joined] {
			continue
		}
		emitted[joined] = true
		sb.WriteString(MarkerPrefix + " " + joined + "\n")
		sb.WriteString("Host *\n\n")
	}

	return sb.String(), nil
}

// markGroupEmitted records a group path and all its ancestors as present in
// the output, so placeholder blocks are only written for truly empty groups.
func markGroupEmitted(emitted map[string]bool, path []string) {
	for i := 1; i <= len(path); i++ {
		emitted[strings.Join(path[:i], GroupSeparator)] = true
	}
}

func writeBlock(sb *strings.Builder, conn *model.Connection) {
	sb.WriteString("Host " + conn.Label + "\n")
	sb.WriteString(indent + "Hostname " + conn.Hostname + "\n")
	sb.WriteString(indent + "Port " + strconv.Itoa(conn.Port) + "\n")
	if conn.User != "" {
		sb.WriteString(indent + "User " + conn.User + "\n")
	}
	if conn.IdentityFile != "" {
		sb.WriteString(indent + "IdentityFile " + conn.IdentityFile + "\n")
	}
	if conn.ProxyCommand != "" {
		sb.WriteString(indent + "ProxyCommand " + conn.ProxyCommand + "\n")
	}
	for _, opt := range conn.Extra {
		sb.WriteString(indent + opt.Key + " " + opt.Value + "\n")
	}
	sb.WriteString("\n")
}
