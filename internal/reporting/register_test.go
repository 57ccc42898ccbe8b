package reporting

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
	"github.com/rcmstack/preauth-engine/internal/repository"
)

func seedClaims(t *testing.T, store *repository.MemoryStore, hospitalID string, ids []string) {
	t.Helper()
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range ids {
		err := store.CreateClaim(context.Background(), &claim.Claim{
			HospitalID:        hospitalID,
			PatientID:         "PAT_001",
			PreauthID:         id,
			ClaimType:         claim.TypeInpatient,
			InsuranceProvider: "Star Health",
			PolicyNumber:      "POL-99321",
			TreatmentType:     "surgical",
			DiagnosisCode:     "K80.2",
			EstimatedCost:     decimal.NewFromInt(185000),
			RequestedAmount:   decimal.NewFromInt(185000),
			ApprovedAmount:    decimal.Zero,
			CurrentState:      workflow.StateRegistered,
			Priority:          claim.PriorityNormal,
			CreatedAt:         base.Add(time.Duration(i) * time.Hour),
			LastTransitionAt:  base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

func TestExport(t *testing.T) {
	store := repository.NewMemoryStore()
	seedClaims(t, store, "HOSP_001", []string{"PA_A", "PA_B"})
	seedClaims(t, store, "HOSP_002", []string{"PA_OTHER"})

	exporter := NewRegisterExporter(store, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), "HOSP_001", port.ClaimFilter{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Claim Register")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per claim in the hospital scope")

	assert.Equal(t, registerHeader, rows[0])
	// newest first
	assert.Equal(t, "PA_B", rows[1][0])
	assert.Equal(t, "PA_A", rows[2][0])
	for _, row := range rows[1:] {
		assert.NotEqual(t, "PA_OTHER", row[0])
	}
}

func TestExport_EmptyRegister(t *testing.T) {
	store := repository.NewMemoryStore()
	exporter := NewRegisterExporter(store, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), "HOSP_001", port.ClaimFilter{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Claim Register")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
