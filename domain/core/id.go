package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID   ID
	GroupID ID
)

func (id RunID) String() string   { return ID(id).String() }
func (id GroupID) String() string { return ID(id).String() }

// NewRunID allocates the identifier of one pipeline execution.
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseRunID parses a string into RunID. Run ids are UUIDs; the canonical
// lowercase form is returned.
func ParseRunID(s string) (RunID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid run ID %q: %w", s, err)
	}
	return RunID(id.String()), nil
}

// ParseGroupID parses a string into GroupID. Surrounding whitespace is dropped
// so that feeds exported by different tools join on the same key.
func ParseGroupID(s string) (GroupID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("group ID cannot be empty")
	}
	return GroupID(s), nil
}
