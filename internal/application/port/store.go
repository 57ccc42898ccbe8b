// Package port defines the persistence interfaces consumed by the
// application layer. Implementations live in internal/repository.
package port

import (
	"context"
	"time"

	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// ClaimFilter narrows ListClaims. Zero values mean "no filter"; hospital
// scoping is not part of the filter because it is mandatory on every query.
type ClaimFilter struct {
	State     workflow.State
	ClaimType claim.ClaimType
	From      time.Time // inclusive lower bound on creation time
	To        time.Time // exclusive upper bound on creation time
	Limit     int
	Offset    int
}

// TransactionManager groups store calls into one atomic operation. The
// engine uses it to pair the CAS state update with the ledger append.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClaimStore persists claims and their transition ledger. All lookups are
// scoped by hospital ID; a preauth ID from another hospital behaves exactly
// like one that does not exist.
type ClaimStore interface {
	// GetClaim returns the claim or claim.ErrNotFound.
	GetClaim(ctx context.Context, hospitalID, preauthID string) (*claim.Claim, error)

	// CreateClaim stores a new claim, or claim.ErrDuplicate when the
	// (hospital, preauth) pair already exists.
	CreateClaim(ctx context.Context, c *claim.Claim) error

	// CASUpdateState moves the claim's current state from expected to next
	// in one guarded write, stamping the transition time. Returns
	// claim.ErrStaleState when the stored state no longer equals expected.
	CASUpdateState(ctx context.Context, hospitalID, preauthID string, expected, next workflow.State, at time.Time) error

	// UpdateDecisionFields records approval/rejection side fields on the
	// claim row (approved amount, approval reference, rejection reason).
	UpdateDecisionFields(ctx context.Context, c *claim.Claim) error

	// AppendTransition appends one immutable record to the ledger.
	AppendTransition(ctx context.Context, rec *claim.TransitionRecord) error

	// ListTransitions returns the full ledger for the preauth ID in
	// ascending changed_at order.
	ListTransitions(ctx context.Context, hospitalID, preauthID string) ([]*claim.TransitionRecord, error)

	// LatestTransition returns the most recent ledger record, or
	// claim.ErrNotFound when the ledger is empty.
	LatestTransition(ctx context.Context, hospitalID, preauthID string) (*claim.TransitionRecord, error)

	// ListClaims returns the hospital's claims matching the filter, newest
	// first.
	ListClaims(ctx context.Context, hospitalID string, filter ClaimFilter) ([]*claim.Claim, error)
}
