package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// MemoryStore is an in-memory ClaimStore for tests and local development.
// It enforces the same CAS contract as the SQLite store: the state write
// and the expected-state check happen under one lock.
type MemoryStore struct {
	mu          sync.RWMutex
	claims      map[storeKey]*claim.Claim
	transitions map[storeKey][]*claim.TransitionRecord
}

type storeKey struct {
	HospitalID string
	PreauthID  string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:      make(map[storeKey]*claim.Claim),
		transitions: make(map[storeKey][]*claim.TransitionRecord),
	}
}

// GetClaim returns a copy of the claim or claim.ErrNotFound.
func (m *MemoryStore) GetClaim(_ context.Context, hospitalID, preauthID string) (*claim.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[storeKey{hospitalID, preauthID}]
	if !ok {
		return nil, claim.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// CreateClaim stores a new claim or returns claim.ErrDuplicate.
func (m *MemoryStore) CreateClaim(_ context.Context, c *claim.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := storeKey{c.HospitalID, c.PreauthID}
	if _, exists := m.claims[k]; exists {
		return claim.ErrDuplicate
	}
	cp := *c
	m.claims[k] = &cp
	return nil
}

// CASUpdateState swaps the state only when it still equals expected.
func (m *MemoryStore) CASUpdateState(_ context.Context, hospitalID, preauthID string, expected, next workflow.State, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[storeKey{hospitalID, preauthID}]
	if !ok {
		return claim.ErrNotFound
	}
	if c.CurrentState != expected {
		return claim.ErrStaleState
	}
	c.CurrentState = next
	c.LastTransitionAt = at
	return nil
}

// UpdateDecisionFields records approval/rejection outcomes.
func (m *MemoryStore) UpdateDecisionFields(_ context.Context, in *claim.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[storeKey{in.HospitalID, in.PreauthID}]
	if !ok {
		return claim.ErrNotFound
	}
	c.ApprovedAmount = in.ApprovedAmount
	c.ApprovalReference = in.ApprovalReference
	c.RejectionReason = in.RejectionReason
	return nil
}

// AppendTransition appends the record in changed_at order.
func (m *MemoryStore) AppendTransition(_ context.Context, rec *claim.TransitionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := storeKey{rec.HospitalID, rec.PreauthID}
	recs := m.transitions[k]
	cp := *rec

	i := sort.Search(len(recs), func(i int) bool {
		return recs[i].ChangedAt.After(cp.ChangedAt)
	})
	recs = append(recs, nil)
	copy(recs[i+1:], recs[i:])
	recs[i] = &cp
	m.transitions[k] = recs
	return nil
}

// ListTransitions returns copies of the ledger, ascending.
func (m *MemoryStore) ListTransitions(_ context.Context, hospitalID, preauthID string) ([]*claim.TransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.transitions[storeKey{hospitalID, preauthID}]
	out := make([]*claim.TransitionRecord, len(recs))
	for i, r := range recs {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// LatestTransition returns the most recent ledger record.
func (m *MemoryStore) LatestTransition(_ context.Context, hospitalID, preauthID string) (*claim.TransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.transitions[storeKey{hospitalID, preauthID}]
	if len(recs) == 0 {
		return nil, claim.ErrNotFound
	}
	cp := *recs[len(recs)-1]
	return &cp, nil
}

// ListClaims returns the hospital's claims matching the filter, newest first.
func (m *MemoryStore) ListClaims(_ context.Context, hospitalID string, filter port.ClaimFilter) ([]*claim.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*claim.Claim
	for k, c := range m.claims {
		if k.HospitalID != hospitalID {
			continue
		}
		if filter.State != "" && c.CurrentState != filter.State {
			continue
		}
		if filter.ClaimType != "" && c.ClaimType != filter.ClaimType {
			continue
		}
		if !filter.From.IsZero() && c.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !c.CreatedAt.Before(filter.To) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// WithinTx satisfies port.TransactionManager. The memory store has no
// transactions; each method is already atomic under the store lock.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Verify interface compliance
var (
	_ port.ClaimStore         = (*MemoryStore)(nil)
	_ port.TransactionManager = (*MemoryStore)(nil)
)
