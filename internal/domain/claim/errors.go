package claim

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no claim with the preauth ID exists in
	// the hospital scope. Cross-hospital lookups also return ErrNotFound,
	// never a permission error, so existence is not leaked across tenants.
	ErrNotFound = errors.New("preauth request not found")

	// ErrDuplicate is returned when a preauth ID is submitted twice for
	// the same hospital
	ErrDuplicate = errors.New("preauth request already exists")

	// ErrStaleState is returned when a compare-and-swap update observes a
	// state other than the one the caller read. The caller must reload and
	// resubmit; the engine never retries on its behalf.
	ErrStaleState = errors.New("claim state changed concurrently")

	// ErrStoreUnavailable wraps persistence failures that are fatal for
	// the current call
	ErrStoreUnavailable = errors.New("claim store unavailable")
)

// FieldError describes a single rejected submit field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every missing or malformed field of a submission
// so the caller can fix them all in one pass.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// Add appends a field error and returns the receiver for chaining.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
	return e
}

// HasErrors returns true when at least one field was rejected.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}
