// Package claim holds the preauthorization claim entities and their
// validation rules. A claim is one insurance preauthorization request,
// scoped to a hospital, moved through the workflow only via accepted
// transitions.
package claim

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// ClaimType classifies the treatment setting of a preauth request.
type ClaimType string

const (
	TypeInpatient  ClaimType = "inpatient"
	TypeOutpatient ClaimType = "outpatient"
	TypeDaycare    ClaimType = "daycare"
)

var validTypes = map[ClaimType]bool{
	TypeInpatient:  true,
	TypeOutpatient: true,
	TypeDaycare:    true,
}

// IsValid returns true if the claim type is known
func (t ClaimType) IsValid() bool {
	return validTypes[t]
}

// Priority levels for a preauth request.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Claim is one preauthorization request. CurrentState always equals the
// state of the most recently appended transition record for the preauth ID;
// it is never written directly, only through an accepted transition.
type Claim struct {
	HospitalID        string              `json:"hospital_id"`
	PatientID         string              `json:"patient_id"`
	PreauthID         string              `json:"preauth_id"` // unique within the hospital
	ClaimType         ClaimType           `json:"claim_type"`
	InsuranceProvider string              `json:"insurance_provider"`
	PolicyNumber      string              `json:"policy_number"`
	PolicyHolderName  string              `json:"policy_holder_name,omitempty"`
	PolicyHolderRel   string              `json:"policy_holder_relation,omitempty"`
	TreatmentType     string              `json:"treatment_type"`
	DiagnosisCode     string              `json:"diagnosis_code"`
	ProcedureCodes    []string            `json:"procedure_codes,omitempty"`
	EstimatedCost     decimal.Decimal     `json:"estimated_cost"`
	RequestedAmount   decimal.Decimal     `json:"requested_amount"`
	ApprovedAmount    decimal.Decimal     `json:"approved_amount"`
	CurrentState      workflow.State      `json:"current_state"`
	Priority          string              `json:"priority,omitempty"`
	IsUrgent          bool                `json:"is_urgent,omitempty"`
	UrgentReason      string              `json:"urgent_reason,omitempty"`
	DoctorName        string              `json:"doctor_name,omitempty"`
	TPAName           string              `json:"tpa_name,omitempty"`
	ApprovalReference string              `json:"approval_reference,omitempty"`
	RejectionReason   string              `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	LastTransitionAt  time.Time           `json:"last_transition_at"`
}

// IsTerminal reports whether the claim has reached a state with no
// outbound transitions.
func (c *Claim) IsTerminal() bool {
	return c.CurrentState.IsTerminal()
}
