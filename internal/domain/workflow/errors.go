package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTransition is returned when the requested edge is not in the table
	ErrUnknownTransition = errors.New("unknown state transition")

	// ErrRoleNotPermitted is returned when the edge exists but the role may not use it
	ErrRoleNotPermitted = errors.New("role not permitted for transition")

	// ErrInvalidState is returned when a state is not a valid preauth state
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidRole is returned when a role is not a known staff role
	ErrInvalidRole = errors.New("invalid role")
)

// DeniedError carries the structured detail of a rejected transition so
// callers can tell "wrong state" apart from "wrong role" and present the
// allowed alternatives.
type DeniedError struct {
	From    State
	To      State
	Role    Role
	Allowed []Role // roles permitted on the edge; nil when the edge itself is unknown
	reason  error
}

func (e *DeniedError) Error() string {
	if errors.Is(e.reason, ErrRoleNotPermitted) {
		return fmt.Sprintf("role %s not permitted to move %s -> %s (allowed: %v)", e.Role, e.From, e.To, e.Allowed)
	}
	return fmt.Sprintf("no transition defined from %s to %s", e.From, e.To)
}

func (e *DeniedError) Unwrap() error {
	return e.reason
}
