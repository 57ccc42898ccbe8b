// Package service contains the application services: PreauthService drives
// the write path of the preauth workflow, AuditService serves the read
// path over the same ledger.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// Actor is the authenticated caller of an operation: the hospital scope it
// acts within and the staff identity/role performing the action. The
// engine trusts it; producing it is the authentication collaborator's job.
type Actor struct {
	HospitalID string
	UserID     string
	Role       workflow.Role
}

// SubmitRequest carries the fields of a new preauth submission.
type SubmitRequest struct {
	PatientID         string          `json:"patient_id"`
	PreauthID         string          `json:"preauth_id"`
	ClaimType         claim.ClaimType `json:"claim_type"`
	InsuranceProvider string          `json:"insurance_provider"`
	PolicyNumber      string          `json:"policy_number"`
	PolicyHolderName  string          `json:"policy_holder_name"`
	PolicyHolderRel   string          `json:"policy_holder_relation"`
	TreatmentType     string          `json:"treatment_type"`
	DiagnosisCode     string          `json:"diagnosis_code"`
	ProcedureCodes    []string        `json:"procedure_codes"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	RequestedAmount   decimal.Decimal `json:"requested_amount"`
	Priority          string          `json:"priority"`
	IsUrgent          bool            `json:"is_urgent"`
	UrgentReason      string          `json:"urgent_reason"`
	DoctorName        string          `json:"doctor_name"`
	TPAName           string          `json:"tpa_name"`
	Remarks           string          `json:"remarks"`
}

// UpdateStatusRequest asks for one state transition.
type UpdateStatusRequest struct {
	PreauthID      string
	RequestedState workflow.State
	Remarks        string
	Payload        claim.StatePayload
}

// TransitionResult is the outcome of an accepted transition.
type TransitionResult struct {
	Claim  *claim.Claim
	Record *claim.TransitionRecord
}

// PreauthService drives the preauth workflow write path
type PreauthService interface {
	// Submit validates and registers a new preauth request in state
	// Registered, appending the initial ledger record.
	Submit(ctx context.Context, actor Actor, req SubmitRequest) (*TransitionResult, error)

	// UpdateStatus performs one validated, role-gated transition with a
	// compare-and-swap on the state read at load time.
	UpdateStatus(ctx context.Context, actor Actor, req UpdateStatusRequest) (*TransitionResult, error)

	// SubmitDischarge attaches a discharge payload and transitions
	// Approved -> DischargeSubmitted.
	SubmitDischarge(ctx context.Context, actor Actor, preauthID string, discharge claim.DischargePayload, remarks string) (*TransitionResult, error)
}

type preauthService struct {
	store  port.ClaimStore
	tx     port.TransactionManager
	logger *zap.Logger
	now    func() time.Time
}

// Option configures the preauth service
type Option func(*preauthService)

// WithClock overrides the time source, used by tests to drive SLA windows.
func WithClock(now func() time.Time) Option {
	return func(s *preauthService) {
		s.now = now
	}
}

// NewPreauthService creates the workflow engine over the given store
func NewPreauthService(store port.ClaimStore, tx port.TransactionManager, logger *zap.Logger, opts ...Option) PreauthService {
	s := &preauthService{
		store:  store,
		tx:     tx,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the request, creates the claim in state Registered and
// appends the initial transition record in one transaction.
func (s *preauthService) Submit(ctx context.Context, actor Actor, req SubmitRequest) (*TransitionResult, error) {
	if err := validateSubmit(&req); err != nil {
		return nil, err
	}
	if req.RequestedAmount.IsZero() {
		req.RequestedAmount = req.EstimatedCost
	}
	if req.Priority == "" {
		req.Priority = claim.PriorityNormal
	}

	now := s.now().UTC()
	c := &claim.Claim{
		HospitalID:        actor.HospitalID,
		PatientID:         req.PatientID,
		PreauthID:         req.PreauthID,
		ClaimType:         req.ClaimType,
		InsuranceProvider: req.InsuranceProvider,
		PolicyNumber:      req.PolicyNumber,
		PolicyHolderName:  req.PolicyHolderName,
		PolicyHolderRel:   req.PolicyHolderRel,
		TreatmentType:     req.TreatmentType,
		DiagnosisCode:     req.DiagnosisCode,
		ProcedureCodes:    req.ProcedureCodes,
		EstimatedCost:     req.EstimatedCost,
		RequestedAmount:   req.RequestedAmount,
		ApprovedAmount:    decimal.Zero,
		CurrentState:      workflow.StateRegistered,
		Priority:          req.Priority,
		IsUrgent:          req.IsUrgent,
		UrgentReason:      req.UrgentReason,
		DoctorName:        req.DoctorName,
		TPAName:           req.TPAName,
		CreatedAt:         now,
		LastTransitionAt:  now,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission payload: %w", err)
	}
	rec := &claim.TransitionRecord{
		ID:            uuid.NewString(),
		PreauthID:     req.PreauthID,
		HospitalID:    actor.HospitalID,
		State:         workflow.StateRegistered,
		PreviousState: "",
		Payload:       claim.StatePayload{Kind: claim.PayloadSubmission, Data: data},
		Remarks:       req.Remarks,
		ChangedBy:     actor.UserID,
		ChangedByRole: actor.Role,
		ChangedAt:     now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateClaim(ctx, c); err != nil {
			return err
		}
		return s.store.AppendTransition(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Preauth registered",
		zap.String("hospital_id", actor.HospitalID),
		zap.String("preauth_id", req.PreauthID),
		zap.String("patient_id", req.PatientID))

	return &TransitionResult{Claim: c, Record: rec}, nil
}

// UpdateStatus loads the claim, validates the requested edge for the
// actor's role and performs the CAS update plus ledger append atomically.
// A lost CAS race surfaces claim.ErrStaleState; the caller reloads and
// resubmits, the engine never retries on its own.
func (s *preauthService) UpdateStatus(ctx context.Context, actor Actor, req UpdateStatusRequest) (*TransitionResult, error) {
	c, err := s.store.GetClaim(ctx, actor.HospitalID, req.PreauthID)
	if err != nil {
		return nil, err
	}
	readState := c.CurrentState

	if err := workflow.Validate(readState, req.RequestedState, actor.Role); err != nil {
		return nil, err
	}

	// SLA is evaluated against the dwell completed in the state being
	// left, based on the prior ledger record's timestamp and level.
	enteredAt := c.LastTransitionAt
	priorEscalation := 0
	latest, err := s.store.LatestTransition(ctx, actor.HospitalID, req.PreauthID)
	switch {
	case err == nil:
		enteredAt = latest.ChangedAt
		priorEscalation = latest.EscalationLevel
	case !errors.Is(err, claim.ErrNotFound):
		return nil, err
	}

	now := s.now().UTC()
	sla := workflow.EvaluateSLA(readState, enteredAt, now, priorEscalation)

	rec := &claim.TransitionRecord{
		ID:              uuid.NewString(),
		PreauthID:       req.PreauthID,
		HospitalID:      actor.HospitalID,
		State:           req.RequestedState,
		PreviousState:   readState,
		Payload:         req.Payload,
		Remarks:         req.Remarks,
		ChangedBy:       actor.UserID,
		ChangedByRole:   actor.Role,
		ChangedAt:       now,
		DurationMinutes: sla.DurationMinutes,
		EscalationLevel: sla.EscalationLevel,
		SLABreach:       sla.Breached,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.CASUpdateState(ctx, actor.HospitalID, req.PreauthID, readState, req.RequestedState, now); err != nil {
			return err
		}
		if err := s.applyDecisionFields(ctx, c, req); err != nil {
			return err
		}
		return s.store.AppendTransition(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	c.CurrentState = req.RequestedState
	c.LastTransitionAt = now

	s.logger.Info("Preauth status updated",
		zap.String("hospital_id", actor.HospitalID),
		zap.String("preauth_id", req.PreauthID),
		zap.String("from", readState.String()),
		zap.String("to", req.RequestedState.String()),
		zap.String("role", actor.Role.String()),
		zap.Bool("sla_breach", sla.Breached))

	return &TransitionResult{Claim: c, Record: rec}, nil
}

// SubmitDischarge wraps the discharge payload into a validated transition
// to DischargeSubmitted. Discharge is a state-local payload on the ledger
// record, not a separate entity.
func (s *preauthService) SubmitDischarge(ctx context.Context, actor Actor, preauthID string, discharge claim.DischargePayload, remarks string) (*TransitionResult, error) {
	data, err := json.Marshal(discharge)
	if err != nil {
		return nil, fmt.Errorf("failed to encode discharge payload: %w", err)
	}
	if remarks == "" {
		remarks = "Discharge information submitted"
	}

	return s.UpdateStatus(ctx, actor, UpdateStatusRequest{
		PreauthID:      preauthID,
		RequestedState: workflow.StateDischargeSubmitted,
		Remarks:        remarks,
		Payload:        claim.StatePayload{Kind: claim.PayloadDischarge, Data: data},
	})
}

// applyDecisionFields mirrors approval/rejection outcomes onto the claim
// row so list and status projections carry them without reading payloads.
func (s *preauthService) applyDecisionFields(ctx context.Context, c *claim.Claim, req UpdateStatusRequest) error {
	switch req.RequestedState {
	case workflow.StateApproved:
		c.ApprovedAmount = c.RequestedAmount
		if req.Payload.Kind == claim.PayloadApproval && len(req.Payload.Data) > 0 {
			var p claim.ApprovalPayload
			if err := json.Unmarshal(req.Payload.Data, &p); err != nil {
				return fmt.Errorf("failed to decode approval payload: %w", err)
			}
			c.ApprovalReference = p.ApprovalReference
			if p.ApprovedAmount != "" {
				amount, err := decimal.NewFromString(p.ApprovedAmount)
				if err != nil {
					return fmt.Errorf("failed to decode approved amount: %w", err)
				}
				c.ApprovedAmount = amount
			}
		}
	case workflow.StateRejected, workflow.StateDischargeRejected:
		c.RejectionReason = req.Remarks
	default:
		return nil
	}
	return s.store.UpdateDecisionFields(ctx, c)
}

func validateSubmit(req *SubmitRequest) error {
	verr := &claim.ValidationError{}

	if req.PatientID == "" {
		verr.Add("patient_id", "required")
	}
	if req.PreauthID == "" {
		verr.Add("preauth_id", "required")
	}
	if req.InsuranceProvider == "" {
		verr.Add("insurance_provider", "required")
	}
	if req.PolicyNumber == "" {
		verr.Add("policy_number", "required")
	}
	if req.TreatmentType == "" {
		verr.Add("treatment_type", "required")
	}
	if req.DiagnosisCode == "" {
		verr.Add("diagnosis_code", "required")
	}
	if req.EstimatedCost.IsZero() {
		verr.Add("estimated_cost", "required")
	} else if req.EstimatedCost.IsNegative() {
		verr.Add("estimated_cost", "must not be negative")
	}
	if req.RequestedAmount.IsNegative() {
		verr.Add("requested_amount", "must not be negative")
	}
	if req.ClaimType == "" {
		req.ClaimType = claim.TypeInpatient
	} else if !req.ClaimType.IsValid() {
		verr.Add("claim_type", "must be inpatient, outpatient or daycare")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
