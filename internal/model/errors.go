package model

import (
	"fmt"
	"strings"
)

// DuplicateNameError is returned when a connection with the same
// (group path, label) pair already exists in the model.
type DuplicateNameError struct {
	GroupPath []string
	Label     string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate connection %q", joinPath(e.GroupPath, e.Label))
}

// NotFoundError is returned when a lookup by (group path, label) fails.
type NotFoundError struct {
	GroupPath []string
	Label     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("connection %q not found", joinPath(e.GroupPath, e.Label))
}

// ValidationError describes a connection that violates a model invariant.
type ValidationError struct {
	Label   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("connection %q: %s", e.Label, e.Message)
	}
	return "connection: " + e.Message
}

// joinPath renders a group path plus label as a single slash-separated
// string. Separators inside a component are escaped, so distinct
// (group path, label) pairs never render to the same string: a top-level
// connection labeled "a/b" and a connection "b" in group "a" stay distinct.
func joinPath(groupPath []string, label string) string {
	parts := make([]string, 0, len(groupPath)+1)
	for _, p := range groupPath {
		parts = append(parts, escapeComponent(p))
	}
	parts = append(parts, escapeComponent(label))
	return strings.Join(parts, "/")
}

func escapeComponent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "/", `\/`)
}
