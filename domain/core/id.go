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
		// Fallback to v4 if v7 fails
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
	// InstanceID identifies one running process writing to shared storage.
	InstanceID ID
	// ClientID identifies one connected editing surface (an SSE subscriber).
	ClientID ID
	// GridKey is the stable storage key a grid is persisted under.
	GridKey string
)

// DefaultGridKey is the key the browser version of the editor stored its grid under.
const DefaultGridKey GridKey = "jsonRawData"

// String conversions for domain IDs
func (id InstanceID) String() string { return ID(id).String() }
func (id ClientID) String() string   { return ID(id).String() }
func (k GridKey) String() string     { return string(k) }

// NewInstanceID returns a fresh instance identifier
func NewInstanceID() InstanceID { return InstanceID(NewID()) }

// NewClientID returns a fresh client identifier
func NewClientID() ClientID { return ClientID(NewID()) }

// ParseGridKey validates a storage key. Keys are opaque but must be non-blank
// and free of whitespace so they can travel in URLs and NOTIFY payloads.
func ParseGridKey(s string) (GridKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("grid key cannot be empty")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("grid key %q contains whitespace", s)
	}
	if len(s) > 128 {
		return "", fmt.Errorf("grid key exceeds 128 characters")
	}
	return GridKey(s), nil
}
