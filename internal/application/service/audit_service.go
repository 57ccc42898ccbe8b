package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// StatusProjection is the read model for one claim's current position:
// the claim, its most recent ledger record and the moves the caller's
// role could make next.
type StatusProjection struct {
	Claim              *claim.Claim
	Latest             *claim.TransitionRecord
	AllowedTransitions []workflow.State
}

// AuditService serves history and status projections from the transition
// ledger. It never blocks the write path; each call is one snapshot read.
type AuditService interface {
	// CurrentStatus returns the claim's current state, latest record and
	// allowed next states for the role.
	CurrentStatus(ctx context.Context, actor Actor, preauthID string) (*StatusProjection, error)

	// StatusHistory returns every ledger record for the preauth ID in
	// ascending changed_at order.
	StatusHistory(ctx context.Context, actor Actor, preauthID string) ([]*claim.TransitionRecord, error)

	// ListClaims returns the hospital's claims matching the filter.
	ListClaims(ctx context.Context, actor Actor, filter port.ClaimFilter) ([]*claim.Claim, error)
}

type auditService struct {
	store  port.ClaimStore
	logger *zap.Logger
}

// NewAuditService creates the ledger read service
func NewAuditService(store port.ClaimStore, logger *zap.Logger) AuditService {
	return &auditService{store: store, logger: logger}
}

func (s *auditService) CurrentStatus(ctx context.Context, actor Actor, preauthID string) (*StatusProjection, error) {
	c, err := s.store.GetClaim(ctx, actor.HospitalID, preauthID)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestTransition(ctx, actor.HospitalID, preauthID)
	if err != nil && !errors.Is(err, claim.ErrNotFound) {
		return nil, err
	}

	return &StatusProjection{
		Claim:              c,
		Latest:             latest,
		AllowedTransitions: workflow.TransitionsFrom(c.CurrentState, actor.Role),
	}, nil
}

func (s *auditService) StatusHistory(ctx context.Context, actor Actor, preauthID string) ([]*claim.TransitionRecord, error) {
	// Resolve the claim first so an unknown or cross-hospital preauth ID
	// reads as NotFound rather than an empty history.
	if _, err := s.store.GetClaim(ctx, actor.HospitalID, preauthID); err != nil {
		return nil, err
	}
	return s.store.ListTransitions(ctx, actor.HospitalID, preauthID)
}

func (s *auditService) ListClaims(ctx context.Context, actor Actor, filter port.ClaimFilter) ([]*claim.Claim, error) {
	return s.store.ListClaims(ctx, actor.HospitalID, filter)
}
