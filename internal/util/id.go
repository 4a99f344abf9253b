// Package util holds small helpers shared across agentwire packages that are
// not part of the public API.
package util

import "github.com/google/uuid"

// NewID returns a random identifier for handler registrations and generated agent ids.
func NewID() string { return uuid.NewString() }

// NewPrefixedID returns NewID prefixed with p and a dash, e.g. "agent-<uuid>".
func NewPrefixedID(p string) string {
	if p == "" {
		return NewID()
	}
	return p + "-" + NewID()
}
