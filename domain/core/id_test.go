package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestInstanceIDsDiffer tests that two instances never share an identity
func TestInstanceIDsDiffer(t *testing.T) {
	a, b := NewInstanceID(), NewInstanceID()
	if a == b {
		t.Errorf("Expected distinct instance IDs, got %s twice", a)
	}
}

// TestParseGridKey tests grid key validation
func TestParseGridKey(t *testing.T) {
	tests := []struct {
		input    string
		expected GridKey
		hasError bool
	}{
		{"jsonRawData", DefaultGridKey, false},
		{"budget-2026", GridKey("budget-2026"), false},
		{"", "", true},
		{"   ", "", true},
		{"has space", "", true},
	}

	for _, test := range tests {
		result, err := ParseGridKey(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestHashShort tests the abbreviated hash form
func TestHashShort(t *testing.T) {
	h := NewHash([]byte("grid"))
	if len(h) != 64 {
		t.Fatalf("Expected 64 hex characters, got %d", len(h))
	}
	if h.Short() != string(h[:12]) {
		t.Errorf("Expected short hash prefix, got %s", h.Short())
	}
	if !h.Equals(NewHash([]byte("grid"))) {
		t.Error("Expected identical input to hash identically")
	}
}

// TestValidationErrorClassification tests error helpers
func TestValidationErrorClassification(t *testing.T) {
	wrapped := errors.Join(ErrRowOutOfRange, errors.New("row 12"))
	if !IsValidationError(wrapped) {
		t.Error("Expected row range error to classify as validation error")
	}
	if IsValidationError(ErrChannelClosed) {
		t.Error("Expected channel error not to classify as validation error")
	}
	if !IsNotFoundError(NewNotFoundError("grid", "k")) {
		t.Error("Expected not found error to classify")
	}
}
