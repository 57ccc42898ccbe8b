package claim

import (
	"encoding/json"
	"time"

	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// PayloadKind tags the structured state payload carried by a transition
// record, so readers can decode Data without guessing.
type PayloadKind string

const (
	PayloadSubmission     PayloadKind = "submission"
	PayloadInfoRequest    PayloadKind = "info_request"
	PayloadInfoSubmission PayloadKind = "info_submission"
	PayloadApproval       PayloadKind = "approval"
	PayloadRejection      PayloadKind = "rejection"
	PayloadDischarge      PayloadKind = "discharge"
	PayloadCancellation   PayloadKind = "cancellation"
)

// StatePayload is the role-specific structured data attached to one
// transition. Data stays raw JSON keyed by Kind, so new payload shapes can
// be added without touching the ledger schema.
type StatePayload struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ApprovalPayload is the Data shape for PayloadApproval.
type ApprovalPayload struct {
	ApprovalReference string `json:"approval_reference"`
	ApprovedAmount    string `json:"approved_amount,omitempty"`
}

// InfoRequestPayload is the Data shape for PayloadInfoRequest.
type InfoRequestPayload struct {
	RequiredDocuments []string `json:"required_documents"`
	DueBy             string   `json:"due_by,omitempty"`
}

// DischargePayload is the Data shape for PayloadDischarge. Discharge is a
// state-local payload on the transition record, not a separate entity.
type DischargePayload struct {
	DischargeDate    time.Time `json:"discharge_date"`
	ActualCost       string    `json:"actual_cost"`
	DischargeSummary string    `json:"discharge_summary,omitempty"`
	FinalDiagnosis   string    `json:"final_diagnosis,omitempty"`
	FollowUpRequired bool      `json:"follow_up_required"`
	FollowUpDate     string    `json:"follow_up_date,omitempty"`
}

// TransitionRecord is one entry in the append-only audit ledger. Records
// are immutable once written and ordered by timestamp; the previous_state
// -> state pairs for a preauth ID always form a walk over the transition
// table's edges.
type TransitionRecord struct {
	ID              string         `json:"id"`
	PreauthID       string         `json:"preauth_id"`
	HospitalID      string         `json:"hospital_id"`
	State           workflow.State `json:"state"`
	PreviousState   workflow.State `json:"previous_state,omitempty"` // empty on the initial record
	Payload         StatePayload   `json:"payload"`
	Remarks         string         `json:"remarks,omitempty"`
	ChangedBy       string         `json:"changed_by"`
	ChangedByRole   workflow.Role  `json:"changed_by_role"`
	ChangedAt       time.Time      `json:"changed_at"`
	DurationMinutes int            `json:"duration_minutes"` // dwell in the previous state
	EscalationLevel int            `json:"escalation_level"`
	SLABreach       bool           `json:"sla_breach"`
}
