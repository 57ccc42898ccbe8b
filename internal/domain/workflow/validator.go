package workflow

import "fmt"

// Validate reports whether role may move a claim from one state to another.
// It returns nil when the transition table defines the edge and lists the
// role on it. Denials unwrap to ErrUnknownTransition or ErrRoleNotPermitted.
// Pure lookup, no side effects.
func Validate(from, to State, role Role) error {
	if !from.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, from)
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, to)
	}
	if !role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	allowed, ok := transitionTable[Edge{From: from, To: to}]
	if !ok {
		return &DeniedError{From: from, To: to, Role: role, reason: ErrUnknownTransition}
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return &DeniedError{From: from, To: to, Role: role, Allowed: AllowedRoles(from, to), reason: ErrRoleNotPermitted}
}
