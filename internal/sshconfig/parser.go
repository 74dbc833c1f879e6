// Package sshconfig reads and writes the OpenSSH client configuration
// format, extended with structural marker comments that encode the
// folder-like grouping of connections.
//
// The grammar is a flat sequence of directive lines: a "Host <pattern>"
// header opens a new block, and every following "Key Value" line belongs to
// the most recent header. Grouping is not a native SSH concept; it is
// carried by a marker comment of the form
//
//	#sshweaver:group work/db-servers
//
// immediately preceding the Host block it scopes. Any other comment is
// skipped and never interpreted as structure or as a host option.
package sshconfig

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
)

// MarkerPrefix introduces a structural group marker comment.
const MarkerPrefix = "#sshweaver:group"

// GroupSeparator joins group path components inside a marker comment.
const GroupSeparator = "/"

// ParseError describes a malformed line in an SSH config file.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// block accumulates one Host block while scanning.
type block struct {
	line      int
	label     string
	groupPath []string
	hasMarker bool

	hostname     string
	port         int
	user         string
	identityFile string
	proxyCommand string
	extra        []model.Option
}

// wildcardOnly reports whether a Host pattern consists solely of wildcard
// characters, i.e. matches no single real host.
func wildcardOnly(pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, r := range pattern {
		switch r {
		case '*', '?', '.':
		default:
			return false
		}
	}
	return true
}

// Parse reads raw SSH config text and produces a ConfigModel.
//
// Known directives (HostName, Port, User, IdentityFile, ProxyCommand) map
// case-insensitively to first-class fields; the first occurrence wins, as in
// OpenSSH. Every other directive is preserved verbatim, original casing and
// value text included, in the connection's extra options.
//
// A directive before any Host header and a key with no value are fatal. A
// duplicate Host label at the same nesting level is not: the later block
// wins and a warning is recorded on the model. An empty input yields an
// empty model.
func Parse(text string) (*model.ConfigModel, error) {
	m := model.New()

	var cur *block
	var pendingGroup []string
	pendingMarker := false

	finish := func(b *block) error {
		if b == nil {
			return nil
		}
		return closeBlock(m, b)
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if path, ok := parseMarker(line); ok {
				pendingGroup = path
				pendingMarker = true
			}
			// Ordinary comments carry no structure and are dropped.
			continue
		}

		key, value, ok := splitDirective(line)
		if !ok {
			return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("directive %q has no value", line)}
		}

		if strings.EqualFold(key, "Host") {
			if err := finish(cur); err != nil {
				return nil, err
			}
			cur = &block{
				line:      lineNo,
				label:     value,
				groupPath: pendingGroup,
				hasMarker: pendingMarker,
			}
			pendingGroup = nil
			pendingMarker = false
			continue
		}

		if cur == nil {
			return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("directive %q before any Host header", key)}
		}

		if err := applyDirective(cur, lineNo, key, value); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := finish(cur); err != nil {
		return nil, err
	}
	return m, nil
}

// parseMarker extracts the group path from a structural marker comment.
// Returns ok=false for any comment that is not a marker.
func parseMarker(line string) ([]string, bool) {
	rest, found := strings.CutPrefix(line, MarkerPrefix)
	if !found {
		return nil, false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, false
	}
	parts := strings.Split(rest, GroupSeparator)
	path := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			path = append(path, p)
		}
	}
	if len(path) == 0 {
		return nil, false
	}
	return path, true
}

// splitDirective splits a config line into its key and verbatim value text.
// The "Key Value" and "Key=Value" forms are accepted, with optional
// whitespace on either side of the equals sign.
func splitDirective(line string) (key, value string, ok bool) {
	i := strings.IndexAny(line, " \t=")
	if i <= 0 {
		return line, "", false
	}
	key = line[:i]
	value = strings.TrimLeft(line[i:], " \t")
	// At most one equals sign separates key and value; a second one is
	// part of the value itself.
	if strings.HasPrefix(value, "=") {
		value = strings.TrimLeft(value[1:], " \t")
	}
	value = strings.TrimRight(value, " \t")
	if value == "" {
		return key, "", false
	}
	return key, value, true
}

// applyDirective stores one Key Value pair on the current block.
func applyDirective(b *block, lineNo int, key, value string) error {
	switch strings.ToLower(key) {
	case "hostname":
		if b.hostname == "" {
			b.hostname = value
		}
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return &ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid port %q", value)}
		}
		if port < 1 || port > 65535 {
			return &ParseError{Line: lineNo, Reason: fmt.Sprintf("port %d out of range", port)}
		}
		if b.port == 0 {
			b.port = port
		}
	case "user":
		if b.user == "" {
			b.user = value
		}
	case "identityfile":
		if b.identityFile == "" {
			b.identityFile = value
		}
	case "proxycommand":
		if b.proxyCommand == "" {
			b.proxyCommand = value
		}
	default:
		b.extra = append(b.extra, model.Option{Key: key, Value: value})
	}
	return nil
}

// closeBlock classifies a finished block as a connection or a group
// declaration and adds it to the model.
func closeBlock(m *model.ConfigModel, b *block) error {
	if wildcardOnly(b.label) && b.hostname == "" {
		// A wildcard placeholder under a marker declares an empty group.
		// Wildcard defaults blocks without a marker are outside the model;
		// note and skip them rather than guess at a hostname.
		if b.hasMarker {
			m.DeclareGroup(b.groupPath)
		} else {
			m.Warn(fmt.Sprintf("line %d: skipping wildcard Host block %q with no group marker", b.line, b.label))
		}
		return nil
	}

	conn := &model.Connection{
		Label:        b.label,
		Hostname:     b.hostname,
		Port:         b.port,
		User:         b.user,
		IdentityFile: b.identityFile,
		ProxyCommand: b.proxyCommand,
		Extra:        b.extra,
		GroupPath:    b.groupPath,
	}
	if conn.Hostname == "" {
		// OpenSSH uses the Host pattern itself when HostName is absent.
		conn.Hostname = conn.Label
	}
	if conn.Port == 0 {
		conn.Port = model.DefaultPort
	}

	if err := m.AddConnection(conn); err != nil {
		var dup *model.DuplicateNameError
		if errors.As(err, &dup) {
			// Later block wins; keep a note for the user.
			m.Warn(fmt.Sprintf("line %d: duplicate Host %q, later entry wins", b.line, conn.Key()))
			return m.Replace(conn)
		}
		return &ParseError{Line: b.line, Reason: err.Error()}
	}
	return nil
}
