package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
	"github.com/rcmstack/preauth-engine/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func execActor() Actor {
	return Actor{HospitalID: "HOSP_001", UserID: "user_exec", Role: workflow.RolePreauthExecutive}
}

func processorActor() Actor {
	return Actor{HospitalID: "HOSP_001", UserID: "user_proc", Role: workflow.RoleProcessor}
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		PatientID:         "PAT_001",
		PreauthID:         "PA_2024_001",
		ClaimType:         claim.TypeInpatient,
		InsuranceProvider: "Star Health",
		PolicyNumber:      "POL-99321",
		PolicyHolderName:  "Ramesh Kumar",
		TreatmentType:     "surgical",
		DiagnosisCode:     "K80.2",
		ProcedureCodes:    []string{"47562"},
		EstimatedCost:     decimal.NewFromInt(185000),
		DoctorName:        "Dr. Mehta",
		TPAName:           "MedAssist",
	}
}

func newTestService(t *testing.T, clock *fakeClock) (PreauthService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	opts := []Option{}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	svc := NewPreauthService(store, store, zap.NewNop(), opts...)
	return svc, store
}

func TestSubmit_Success(t *testing.T) {
	svc, store := newTestService(t, nil)

	result, err := svc.Submit(context.Background(), execActor(), validSubmit())
	require.NoError(t, err)
	require.NotNil(t, result.Claim)
	require.NotNil(t, result.Record)

	assert.Equal(t, workflow.StateRegistered, result.Claim.CurrentState)
	assert.Equal(t, claim.PriorityNormal, result.Claim.Priority)
	assert.True(t, result.Claim.RequestedAmount.Equal(decimal.NewFromInt(185000)),
		"requested amount should default to estimated cost")

	assert.NotEmpty(t, result.Record.ID)
	assert.Equal(t, workflow.StateRegistered, result.Record.State)
	assert.Empty(t, result.Record.PreviousState)
	assert.Equal(t, claim.PayloadSubmission, result.Record.Payload.Kind)
	assert.Equal(t, "user_exec", result.Record.ChangedBy)

	stored, err := store.GetClaim(context.Background(), "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateRegistered, stored.CurrentState)

	history, err := store.ListTransitions(context.Background(), "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*SubmitRequest)
		wantFields []string
	}{
		{
			name:       "missing patient id",
			mutate:     func(r *SubmitRequest) { r.PatientID = "" },
			wantFields: []string{"patient_id"},
		},
		{
			name:       "missing preauth id",
			mutate:     func(r *SubmitRequest) { r.PreauthID = "" },
			wantFields: []string{"preauth_id"},
		},
		{
			name:       "missing insurance provider",
			mutate:     func(r *SubmitRequest) { r.InsuranceProvider = "" },
			wantFields: []string{"insurance_provider"},
		},
		{
			name:       "missing policy number",
			mutate:     func(r *SubmitRequest) { r.PolicyNumber = "" },
			wantFields: []string{"policy_number"},
		},
		{
			name:       "missing treatment type",
			mutate:     func(r *SubmitRequest) { r.TreatmentType = "" },
			wantFields: []string{"treatment_type"},
		},
		{
			name:       "missing diagnosis code",
			mutate:     func(r *SubmitRequest) { r.DiagnosisCode = "" },
			wantFields: []string{"diagnosis_code"},
		},
		{
			name:       "zero estimated cost",
			mutate:     func(r *SubmitRequest) { r.EstimatedCost = decimal.Zero },
			wantFields: []string{"estimated_cost"},
		},
		{
			name:       "negative estimated cost",
			mutate:     func(r *SubmitRequest) { r.EstimatedCost = decimal.NewFromInt(-1) },
			wantFields: []string{"estimated_cost"},
		},
		{
			name:       "negative requested amount",
			mutate:     func(r *SubmitRequest) { r.RequestedAmount = decimal.NewFromInt(-500) },
			wantFields: []string{"requested_amount"},
		},
		{
			name:       "unknown claim type",
			mutate:     func(r *SubmitRequest) { r.ClaimType = claim.ClaimType("homecare") },
			wantFields: []string{"claim_type"},
		},
		{
			name: "only identifiers present",
			mutate: func(r *SubmitRequest) {
				*r = SubmitRequest{PatientID: r.PatientID, PreauthID: r.PreauthID}
			},
			wantFields: []string{
				"insurance_provider", "policy_number", "treatment_type",
				"diagnosis_code", "estimated_cost",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			req := validSubmit()
			tt.mutate(&req)

			_, err := svc.Submit(context.Background(), execActor(), req)
			var verr *claim.ValidationError
			require.ErrorAs(t, err, &verr)

			got := make([]string, len(verr.Fields))
			for i, f := range verr.Fields {
				got[i] = f.Field
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestSubmit_Duplicate(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Submit(context.Background(), execActor(), validSubmit())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), execActor(), validSubmit())
	assert.ErrorIs(t, err, claim.ErrDuplicate)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.UpdateStatus(context.Background(), processorActor(), UpdateStatusRequest{
		PreauthID:      "PA_MISSING",
		RequestedState: workflow.StateApproved,
	})
	assert.ErrorIs(t, err, claim.ErrNotFound)
}

func TestUpdateStatus_CrossHospitalIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Submit(context.Background(), execActor(), validSubmit())
	require.NoError(t, err)

	other := Actor{HospitalID: "HOSP_002", UserID: "user_proc", Role: workflow.RoleProcessor}
	_, err = svc.UpdateStatus(context.Background(), other, UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateApproved,
	})
	assert.ErrorIs(t, err, claim.ErrNotFound)
}

func TestUpdateStatus_Denied(t *testing.T) {
	tests := []struct {
		name      string
		actor     Actor
		requested workflow.State
		wantErr   error
	}{
		{
			name:      "preauth executive cannot approve",
			actor:     execActor(),
			requested: workflow.StateApproved,
			wantErr:   workflow.ErrRoleNotPermitted,
		},
		{
			name:      "edge not defined",
			actor:     processorActor(),
			requested: workflow.StateDischargeApproved,
			wantErr:   workflow.ErrUnknownTransition,
		},
		{
			name:      "unknown target state",
			actor:     processorActor(),
			requested: workflow.State("ARCHIVED"),
			wantErr:   workflow.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, nil)
			_, err := svc.Submit(context.Background(), execActor(), validSubmit())
			require.NoError(t, err)

			_, err = svc.UpdateStatus(context.Background(), tt.actor, UpdateStatusRequest{
				PreauthID:      "PA_2024_001",
				RequestedState: tt.requested,
				Remarks:        "should not go through",
			})
			require.ErrorIs(t, err, tt.wantErr)

			// denial must not touch state or ledger
			c, err := store.GetClaim(context.Background(), "HOSP_001", "PA_2024_001")
			require.NoError(t, err)
			assert.Equal(t, workflow.StateRegistered, c.CurrentState)

			history, err := store.ListTransitions(context.Background(), "HOSP_001", "PA_2024_001")
			require.NoError(t, err)
			assert.Len(t, history, 1)
		})
	}
}

func TestUpdateStatus_SLAEscalation(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	_, err := svc.Submit(ctx, execActor(), validSubmit())
	require.NoError(t, err)

	// Registered threshold is 4h; leave after 6h -> breach, level 1.
	clock.Advance(6 * time.Hour)
	result, err := svc.UpdateStatus(ctx, execActor(), UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateNeedMoreInfo,
		Remarks:        "need discharge estimate",
	})
	require.NoError(t, err)
	assert.Equal(t, 360, result.Record.DurationMinutes)
	assert.True(t, result.Record.SLABreach)
	assert.Equal(t, 1, result.Record.EscalationLevel)

	// NeedMoreInfo threshold is 24h; leave after 30h -> consecutive breach, level 2.
	clock.Advance(30 * time.Hour)
	result, err = svc.UpdateStatus(ctx, execActor(), UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateInfoSubmitted,
	})
	require.NoError(t, err)
	assert.True(t, result.Record.SLABreach)
	assert.Equal(t, 2, result.Record.EscalationLevel)

	// InfoSubmitted threshold is 8h; leave after 1h -> on time, level resets.
	clock.Advance(time.Hour)
	result, err = svc.UpdateStatus(ctx, processorActor(), UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, result.Record.DurationMinutes)
	assert.False(t, result.Record.SLABreach)
	assert.Equal(t, 0, result.Record.EscalationLevel)
}

func TestWorkflow_EndToEnd(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newTestService(t, clock)
	ctx := context.Background()

	_, err := svc.Submit(ctx, execActor(), validSubmit())
	require.NoError(t, err)

	steps := []struct {
		actor   Actor
		to      workflow.State
		payload claim.StatePayload
		remarks string
	}{
		{execActor(), workflow.StateNeedMoreInfo, claim.StatePayload{Kind: claim.PayloadInfoRequest}, "attach doctor notes"},
		{execActor(), workflow.StateInfoSubmitted, claim.StatePayload{Kind: claim.PayloadInfoSubmission}, "notes attached"},
		{processorActor(), workflow.StateApproved, approvalPayload(t, "APPR-7731", "150000"), "approved with cap"},
	}
	for _, step := range steps {
		clock.Advance(time.Hour)
		_, err := svc.UpdateStatus(ctx, step.actor, UpdateStatusRequest{
			PreauthID:      "PA_2024_001",
			RequestedState: step.to,
			Remarks:        step.remarks,
			Payload:        step.payload,
		})
		require.NoError(t, err, "transition to %s", step.to)
	}

	c, err := store.GetClaim(ctx, "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateApproved, c.CurrentState)
	assert.Equal(t, "APPR-7731", c.ApprovalReference)
	assert.True(t, c.ApprovedAmount.Equal(decimal.NewFromInt(150000)))

	clock.Advance(time.Hour)
	_, err = svc.SubmitDischarge(ctx, execActor(), "PA_2024_001", claim.DischargePayload{
		DischargeDate:  clock.Now(),
		ActualCost:     "148200",
		FinalDiagnosis: "K80.2",
	}, "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = svc.UpdateStatus(ctx, processorActor(), UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateDischargeApproved,
	})
	require.NoError(t, err)

	c, err = store.GetClaim(ctx, "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateDischargeApproved, c.CurrentState)
	assert.True(t, c.IsTerminal())

	// 1 initial record + 5 transitions, ascending, previous_state chained.
	history, err := store.ListTransitions(ctx, "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Empty(t, history[0].PreviousState)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].State, history[i].PreviousState,
			"record %d must chain from its predecessor", i)
		assert.False(t, history[i].ChangedAt.Before(history[i-1].ChangedAt))
	}
	assert.Equal(t, workflow.StateDischargeApproved, history[5].State)

	// terminal state: nothing further is allowed
	_, err = svc.UpdateStatus(ctx, Actor{HospitalID: "HOSP_001", UserID: "admin_1", Role: workflow.RoleAdmin}, UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateRegistered,
	})
	assert.ErrorIs(t, err, workflow.ErrUnknownTransition)
}

func TestUpdateStatus_RejectionRecordsReason(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, execActor(), validSubmit())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, processorActor(), UpdateStatusRequest{
		PreauthID:      "PA_2024_001",
		RequestedState: workflow.StateRejected,
		Remarks:        "policy lapsed before admission",
	})
	require.NoError(t, err)

	c, err := store.GetClaim(ctx, "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateRejected, c.CurrentState)
	assert.Equal(t, "policy lapsed before admission", c.RejectionReason)
}

// gateStore holds every GetClaim until two callers have loaded, so both
// observe the same prior state before racing on the CAS.
type gateStore struct {
	*repository.MemoryStore
	gate *sync.WaitGroup
}

func (g *gateStore) GetClaim(ctx context.Context, hospitalID, preauthID string) (*claim.Claim, error) {
	c, err := g.MemoryStore.GetClaim(ctx, hospitalID, preauthID)
	g.gate.Done()
	g.gate.Wait()
	return c, err
}

func TestUpdateStatus_ConcurrentConflict(t *testing.T) {
	base := repository.NewMemoryStore()
	gate := &sync.WaitGroup{}
	gate.Add(2)
	store := &gateStore{MemoryStore: base, gate: gate}
	svc := NewPreauthService(store, base, zap.NewNop())
	ctx := context.Background()

	seed := NewPreauthService(base, base, zap.NewNop())
	_, err := seed.Submit(ctx, execActor(), validSubmit())
	require.NoError(t, err)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.UpdateStatus(ctx, processorActor(), UpdateStatusRequest{
				PreauthID:      "PA_2024_001",
				RequestedState: workflow.StateNeedMoreInfo,
			})
			results <- err
		}()
	}

	var succeeded, conflicted int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			succeeded++
		case errors.Is(err, claim.ErrStaleState):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one caller wins the CAS")
	assert.Equal(t, 1, conflicted, "the loser sees the stale-state conflict")

	history, err := base.ListTransitions(ctx, "HOSP_001", "PA_2024_001")
	require.NoError(t, err)
	assert.Len(t, history, 2, "the lost race must not append a ledger record")
}

func approvalPayload(t *testing.T, reference, amount string) claim.StatePayload {
	t.Helper()
	data, err := json.Marshal(claim.ApprovalPayload{ApprovalReference: reference, ApprovedAmount: amount})
	require.NoError(t, err)
	return claim.StatePayload{Kind: claim.PayloadApproval, Data: data}
}
